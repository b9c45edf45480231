//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package symex runs the symbolic-execution checks over a set of units: every method with a body
// is explored on its own, in parallel, and the issues of all methods are collected into sorted
// and grouped diagnostics.
package symex

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/checks"
	"go.uber.org/symex/config"
	"go.uber.org/symex/diagnostic"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/yield"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("go.uber.org/symex")

// Analyzer coordinates the analysis of units. It is safe to call Run concurrently.
type Analyzer struct {
	conf     *config.Config
	registry *engine.Registry
	cache    *yield.Cache
	logger   *slog.Logger
	grouping bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger. The default writes text to stderr at the configured level.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithCache shares finalized callee behaviors through c, e.g. one imported from a previous run.
func WithCache(c *yield.Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithGrouping controls whether diagnostics caused by the same source are folded into one.
func WithGrouping(enabled bool) Option {
	return func(a *Analyzer) { a.grouping = enabled }
}

// New returns an analyzer running the checks enabled in conf.
func New(conf *config.Config, opts ...Option) (*Analyzer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	registry, err := checks.Registry(conf.Checks...)
	if err != nil {
		return nil, fmt.Errorf("build check registry: %w", err)
	}
	a := &Analyzer{
		conf:     conf,
		registry: registry,
		grouping: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = conf.NewLogger(os.Stderr)
	}
	if a.cache == nil {
		a.cache = yield.NewCache()
	}
	return a, nil
}

// Cache returns the behaviors finalized so far.
func (a *Analyzer) Cache() *yield.Cache {
	return a.cache
}

// MethodResult is the outcome of one method.
type MethodResult struct {
	Method string
	Pos    token.Position
	// Result is nil when the exploration panicked or failed.
	Result *engine.Result
	// Panic is the recovered value, if any.
	Panic any
	// Err is set when the method could not be analyzed at all.
	Err      error
	Duration time.Duration
}

// Report is the outcome of a run.
type Report struct {
	RunID       string
	Diagnostics []diagnostic.Diagnostic
	// Methods are in the order of the units and of the methods within each unit.
	Methods []MethodResult
}

// Aborted returns the number of methods whose exploration was interrupted.
func (r *Report) Aborted() int {
	n := 0
	for _, m := range r.Methods {
		if m.Result != nil && m.Result.Status == engine.Aborted {
			n++
		}
	}
	return n
}

// Run analyzes every method with a body in units. Units may call each other's methods. Budget
// exhaustion and panics are isolated to the method they happen in; only the cancellation of ctx
// fails the run. Methods reuse the behaviors cached before the run started; what they finalize
// seeds later runs.
func (a *Analyzer) Run(ctx context.Context, units ...*cfg.Unit) (_ *Report, err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := a.logger.With(slog.String("run", runID))

	ctx, span := tracer.Start(ctx, "symex.Run", trace.WithAttributes(
		attribute.String("symex.run", runID),
		attribute.Int("symex.units", len(units)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	program := cfg.NewProgram(units...)
	eng := engine.New(a.conf, program, a.registry, engine.WithLogger(logger), engine.WithCache(a.cache))

	var methods []*cfg.Method
	for _, u := range units {
		for _, m := range u.Methods {
			if m.Body != nil {
				methods = append(methods, m)
			}
		}
	}

	results := make([]MethodResult, len(methods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.conf.Parallelism)
	for i, m := range methods {
		g.Go(func() error {
			results[i] = a.analyzeMethod(gctx, eng, m, logger)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	diags := diagnostic.NewEngine()
	for _, u := range units {
		diags.AddSuppressions(u)
	}
	for _, r := range results {
		if r.Panic != nil {
			diags.AddPanic(r.Method, r.Pos, r.Panic)
			continue
		}
		if r.Result == nil {
			continue
		}
		for _, issue := range r.Result.Issues {
			diags.AddIssue(issue)
		}
		for _, f := range r.Result.Faults {
			diags.AddFault(f, r.Pos)
		}
	}

	report := &Report{
		RunID:       runID,
		Diagnostics: diags.Diagnostics(a.grouping),
		Methods:     results,
	}
	span.SetAttributes(
		attribute.Int("symex.methods", len(methods)),
		attribute.Int("symex.diagnostics", len(report.Diagnostics)),
	)
	logger.Info("analysis finished",
		slog.Int("units", len(units)),
		slog.Int("methods", len(methods)),
		slog.Int("aborted", report.Aborted()),
		slog.Int("diagnostics", len(report.Diagnostics)),
		slog.Duration("elapsed", time.Since(start)))
	return report, nil
}

// analyzeMethod explores m under the per-method timeout. A panic is recovered into the result so
// that the other methods of the run are unaffected.
func (a *Analyzer) analyzeMethod(ctx context.Context, eng *engine.Engine, m *cfg.Method, logger *slog.Logger) (out MethodResult) {
	start := time.Now()
	out = MethodResult{Method: m.ID, Pos: m.Pos}

	ctx, span := tracer.Start(ctx, "symex.AnalyzeMethod", trace.WithAttributes(attribute.String("symex.method", m.ID)))
	defer span.End()
	if a.conf.MethodTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.conf.MethodTimeout)
		defer cancel()
	}

	defer func() {
		out.Duration = time.Since(start)
		_methodDuration.Observe(out.Duration.Seconds())
		if r := recover(); r != nil {
			out.Panic = r
			out.Result = nil
			_methodsAnalyzed.WithLabelValues("panic").Inc()
			span.SetStatus(codes.Error, fmt.Sprint(r))
			logger.Error("exploration panicked",
				slog.String("method", m.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	res, err := eng.Analyze(ctx, m)
	if err != nil {
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out
	}
	out.Result = res
	observe(res)

	span.SetAttributes(
		attribute.String("symex.status", res.Status.String()),
		attribute.Int("symex.nodes", res.Nodes),
		attribute.Int("symex.steps", res.Steps),
		attribute.Int("symex.issues", len(res.Issues)),
	)
	if res.Status == engine.Aborted {
		span.RecordError(res.AbortReason)
	}
	return out
}
