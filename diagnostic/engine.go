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

// Package diagnostic hosts the diagnostic engine, which collects the issues and faults of the
// method analyses and turns them into sorted, grouped, user-friendly diagnostics.
package diagnostic

import (
	"cmp"
	"fmt"
	"go/token"
	"os"
	"slices"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/util/tokenhelper"
)

// Diagnostic is a finding ready to be printed.
type Diagnostic struct {
	Pos     token.Position
	Check   string
	Method  string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", tokenhelper.PositionString(d.Pos), d.Message)
}

// Engine is the main engine for generating diagnostics from issues.
type Engine struct {
	conflicts []conflict
	ranges    []Range
	// cwd is the current working directory for trimming the file names, so that positions do not
	// depend on where the front-end ran.
	cwd string
}

// NewEngine creates a new diagnostic engine.
func NewEngine() *Engine {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return &Engine{cwd: cwd}
}

// trim removes the working directory prefix from the file name of position, if any.
func (e *Engine) trim(position token.Position) token.Position {
	return tokenhelper.TrimPosition(e.cwd, position)
}

// AddIssue adds an issue reported by a check.
func (e *Engine) AddIssue(issue engine.Issue) {
	e.conflicts = append(e.conflicts, conflict{
		position: e.trim(issue.Pos),
		check:    issue.Check,
		method:   issue.Method,
		message:  issue.Message,
		flow:     newIssueFlow(issue.Flows, e.trim),
	})
}

// AddFault adds a diagnostic for a check that panicked while analyzing a method declared at pos.
func (e *Engine) AddFault(f engine.Fault, pos token.Position) {
	e.conflicts = append(e.conflicts, conflict{
		position: e.trim(pos),
		check:    f.Check,
		method:   f.Method,
		message:  "INTERNAL PANIC: " + f.Error(),
		internal: true,
	})
}

// AddPanic adds a diagnostic for an analysis that panicked outside of any check.
func (e *Engine) AddPanic(method string, pos token.Position, value any) {
	e.conflicts = append(e.conflicts, conflict{
		position: e.trim(pos),
		method:   method,
		message:  fmt.Sprintf("INTERNAL PANIC: %s: %v", method, value),
		internal: true,
	})
}

// AddSuppressions registers the suppression comments of a unit.
func (e *Engine) AddSuppressions(u *cfg.Unit) {
	e.ranges = append(e.ranges, suppressions(u, e.trim)...)
}

// Diagnostics generates diagnostics from the internally-stored conflicts. The grouping parameter
// controls whether the issues of a check sharing the same source are grouped together (under the
// first diagnostic) for concise reporting. The returned slice of diagnostics is sorted by file
// name and then position in the file.
func (e *Engine) Diagnostics(grouping bool) []Diagnostic {
	conflicts := slices.DeleteFunc(slices.Clone(e.conflicts), func(c conflict) bool {
		return !c.internal && e.suppressed(c)
	})
	slices.SortStableFunc(conflicts, func(a, b conflict) int {
		if n := tokenhelper.ComparePositions(a.position, b.position); n != 0 {
			return n
		}
		if n := cmp.Compare(a.check, b.check); n != 0 {
			return n
		}
		return cmp.Compare(a.message, b.message)
	})
	conflicts = slices.CompactFunc(conflicts, func(a, b conflict) bool {
		return a.position == b.position && a.check == b.check && a.message == b.message
	})

	if grouping {
		conflicts = groupConflicts(conflicts)
	}

	diagnostics := make([]Diagnostic, 0, len(conflicts))
	for _, c := range conflicts {
		diagnostics = append(diagnostics, Diagnostic{
			Pos:     c.position,
			Check:   c.check,
			Method:  c.method,
			Message: c.String(),
		})
	}
	return diagnostics
}

func (e *Engine) suppressed(c conflict) bool {
	return slices.ContainsFunc(e.ranges, func(r Range) bool { return r.covers(c.position, c.check) })
}
