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

// Package engine implements the symbolic execution of method bodies: a worklist exploration of
// the exploded graph of a method, executing the instructions of its control flow graph over
// program states, summarizing callees with method yields and dispatching events to checks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/config"
	"go.uber.org/symex/yield"
)

var (
	// ErrMaxSteps is the reason of explorations interrupted after too many steps.
	ErrMaxSteps = errors.New("step budget exceeded")
	// ErrMaxNodes is the reason of explorations interrupted after creating too many nodes.
	ErrMaxNodes = errors.New("node budget exceeded")
	// ErrMaxStartingStates is the reason of explorations with too many starting states.
	ErrMaxStartingStates = errors.New("too many starting states")
	// ErrNoBody is returned when analyzing a method without a body.
	ErrNoBody = errors.New("method has no body")
)

// Status tells whether an exploration ran to completion.
type Status uint8

const (
	// Done explorations reached a fixpoint.
	Done Status = iota
	// Aborted explorations were interrupted; their partial results are discarded.
	Aborted
)

func (s Status) String() string {
	if s == Aborted {
		return "aborted"
	}
	return "done"
}

// Result is the outcome of the exploration of a method.
type Result struct {
	Method string
	Status Status
	// AbortReason wraps ErrMaxSteps, ErrMaxNodes, ErrMaxStartingStates or a context error.
	AbortReason error
	Issues      []Issue
	// Yields is the behavior of the method; nil when aborted.
	Yields *yield.Behavior
	Faults []Fault
	// Nodes counts the nodes created, Steps the nodes executed.
	Nodes int
	Steps int
	// AlwaysTrue and AlwaysFalse are the branches with a single outcome.
	AlwaysTrue  []*cfg.Instruction
	AlwaysFalse []*cfg.Instruction
	// YieldStats counts the callee yield lookups.
	YieldStats yield.Stats
}

// Engine explores the methods of a program.
type Engine struct {
	conf     *config.Config
	program  *cfg.Program
	registry *Registry
	cache    *yield.Cache
	// seed is the cache as it was when the engine was created.
	seed   *yield.Cache
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCache publishes finalized callee behaviors to c. Explorations only reuse the behaviors c
// held when the engine was created, so that results do not depend on the order in which methods
// are analyzed.
func WithCache(c *yield.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// New returns an engine running the checks of registry over the methods of program.
func New(conf *config.Config, program *cfg.Program, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		conf:     conf,
		program:  program,
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache != nil {
		e.seed = e.cache.Snapshot()
	}
	return e
}

// Analyze explores m with a fresh yield store.
func (e *Engine) Analyze(ctx context.Context, m *cfg.Method) (*Result, error) {
	return e.AnalyzeWithStore(ctx, m, yield.NewSeededStore(e.seed, e.cache))
}

// AnalyzeWithStore explores m, resolving callees through store. Budget exhaustion and
// cancellation are not errors: the result is then Aborted.
func (e *Engine) AnalyzeWithStore(ctx context.Context, m *cfg.Method, store *yield.Store) (*Result, error) {
	if m.Body == nil {
		return nil, fmt.Errorf("analyze %q: %w", m.ID, ErrNoBody)
	}
	store.Begin(m.ID)
	defer store.End(m.ID)

	w := newWalker(ctx, e, m, store, true /* reporting */, 0 /* depth */, nil /* signature */)
	res := w.run()
	res.YieldStats = store.Stats()
	if res.Status == Aborted {
		e.logger.Debug("exploration interrupted",
			slog.String("method", m.ID),
			slog.Any("reason", res.AbortReason),
			slog.Int("steps", res.Steps),
			slog.Int("nodes", res.Nodes))
	}
	for _, f := range res.Faults {
		e.logger.Warn("check panicked", slog.String("method", m.ID), slog.String("check", f.Check),
			slog.String("hook", f.Hook), slog.String("panic", f.Panic))
	}
	return res, nil
}
