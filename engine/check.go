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

package engine

import (
	"fmt"
	"go/token"
	"runtime/debug"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/flow"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
)

// Check is a consumer of the engine. Besides Name and Init, a check implements the hook
// interfaces below for the events it is interested in. A fresh instance is created for every
// exploration, nested ones included, and Init is called before the exploration starts.
type Check interface {
	Name() string
	Init(m *cfg.Method)
}

// PreStatementChecker is called before an instruction is executed. It returns the state to
// execute the instruction with, or nil to stop the path.
type PreStatementChecker interface {
	PreStatement(ctx *Context, inst *cfg.Instruction) *state.ProgramState
}

// PostStatementChecker is called with every successor of a non-terminating instruction. It
// returns the successor state, or nil to stop the path.
type PostStatementChecker interface {
	PostStatement(ctx *Context, inst *cfg.Instruction) *state.ProgramState
}

// PathEndChecker is called when a path reaches the exit of the method.
type PathEndChecker interface {
	EndOfExecutionPath(ctx *Context)
}

// ExecutionEndChecker is called once the exploration completed.
type ExecutionEndChecker interface {
	EndOfExecution(ctx *Context)
}

// InterruptionChecker is called instead of ExecutionEndChecker when the exploration is aborted.
type InterruptionChecker interface {
	InterruptedExecution(ctx *Context)
}

// Registry lists the checks to instantiate for each exploration.
type Registry struct {
	ctors []func() Check
}

// NewRegistry returns a registry of the checks built by ctors.
func NewRegistry(ctors ...func() Check) *Registry {
	return &Registry{ctors: ctors}
}

// Names returns the names of the registered checks.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ctors))
	for i, ctor := range r.ctors {
		names[i] = ctor().Name()
	}
	return names
}

// checkSet holds the instantiated checks of an exploration, split by hook.
type checkSet struct {
	all    []Check
	pre    []Check
	post   []Check
	end    []Check
	done   []Check
	interr []Check
}

func (r *Registry) instantiate(m *cfg.Method) checkSet {
	var cs checkSet
	if r == nil {
		return cs
	}
	for _, ctor := range r.ctors {
		c := ctor()
		c.Init(m)
		cs.all = append(cs.all, c)
		if _, ok := c.(PreStatementChecker); ok {
			cs.pre = append(cs.pre, c)
		}
		if _, ok := c.(PostStatementChecker); ok {
			cs.post = append(cs.post, c)
		}
		if _, ok := c.(PathEndChecker); ok {
			cs.end = append(cs.end, c)
		}
		if _, ok := c.(ExecutionEndChecker); ok {
			cs.done = append(cs.done, c)
		}
		if _, ok := c.(InterruptionChecker); ok {
			cs.interr = append(cs.interr, c)
		}
	}
	return cs
}

// Issue is a defect reported by a check.
type Issue struct {
	Check   string
	Method  string
	Pos     token.Position
	Message string
	Flows   []flow.Flow
}

// Fault is a panic raised by a check hook. The hook's effect is discarded and the exploration
// goes on.
type Fault struct {
	Check  string
	Hook   string
	Method string
	Panic  string
	Stack  string
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s.%s: %s", f.Check, f.Hook, f.Panic)
}

// Context is the view of the exploration given to check hooks.
type Context struct {
	w           *walker
	node        *explodedgraph.Node
	state       *state.ProgramState
	transitions []*state.ProgramState
}

// State returns the state the hook applies to.
func (c *Context) State() *state.ProgramState {
	return c.state
}

// Node returns the node being executed, or the end-of-path node.
func (c *Context) Node() *explodedgraph.Node {
	return c.node
}

// Method returns the method explored.
func (c *Context) Method() *cfg.Method {
	return c.w.method
}

// Program returns the program the method belongs to.
func (c *Context) Program() *cfg.Program {
	return c.w.engine.program
}

// Values returns the factory of the exploration.
func (c *Context) Values() *symbolic.Factory {
	return c.w.factory
}

// Reporting returns false in nested explorations of callees, where issues are dropped.
func (c *Context) Reporting() bool {
	return c.w.reporting
}

// Conditions returns the outcomes of the branches evaluated so far.
func (c *Context) Conditions() *Conditions {
	return c.w.conditions
}

// FlowOptions returns the flow options of the exploration for the given domains.
func (c *Context) FlowOptions(domains ...constraint.Domain) flow.Options {
	return flow.Options{
		Domains:  domains,
		Method:   c.w.method,
		MaxFlows: c.w.engine.conf.MaxFlows,
		MaxSteps: c.w.engine.conf.MaxFlowSteps,
	}
}

// Flows explains the constraints of v in the given domains at the current node.
func (c *Context) Flows(v *symbolic.Value, domains ...constraint.Domain) []flow.Flow {
	if c.node == nil || !c.w.reporting {
		return nil
	}
	return flow.Compute(c.node, v, c.FlowOptions(domains...))
}

// ReportIssue records an issue. It does nothing in nested explorations.
func (c *Context) ReportIssue(pos token.Position, message string, flows []flow.Flow) {
	if !c.w.reporting {
		return
	}
	c.w.issues = append(c.w.issues, Issue{
		Check:   c.w.current,
		Method:  c.w.method.ID,
		Pos:     pos,
		Message: message,
		Flows:   flows,
	})
}

// AddTransition forks the path: s is explored in addition to the state the hook returns.
func (c *Context) AddTransition(s *state.ProgramState) {
	c.transitions = append(c.transitions, s)
}

// AddExceptionalYield records that the method throws excType when reaching the current point in
// state s. It only matters if v is a parameter of the method, as the yield then tells callers
// which arguments lead to the exception.
func (c *Context) AddExceptionalYield(v *symbolic.Value, s *state.ProgramState, excType string) {
	if c.w.paramIndex(v) < 0 {
		return
	}
	var witness []token.Position
	if c.node != nil {
		witness = c.w.witness(c.node)
	}
	c.w.thrown = append(c.w.thrown, thrownYield{state: s, exception: excType, witness: witness})
}

// safely runs a hook, turning a panic into a fault.
func (w *walker) safely(c Check, hook string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.faults = append(w.faults, Fault{
				Check:  c.Name(),
				Hook:   hook,
				Method: w.method.ID,
				Panic:  fmt.Sprint(r),
				Stack:  string(debug.Stack()),
			})
			ok = false
		}
	}()
	w.current = c.Name()
	f()
	return true
}

// applyStatementHooks runs the pre or post statement hooks over s, returning the surviving
// states, forks included.
func (w *walker) applyStatementHooks(post bool, node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState) []*state.ProgramState {
	checks, hook := w.checks.pre, "PreStatement"
	if post {
		checks, hook = w.checks.post, "PostStatement"
	}
	states := []*state.ProgramState{s}
	for _, c := range checks {
		var next []*state.ProgramState
		for _, st := range states {
			ctx := &Context{w: w, node: node, state: st}
			var out *state.ProgramState
			ok := w.safely(c, hook, func() {
				if post {
					out = c.(PostStatementChecker).PostStatement(ctx, inst)
				} else {
					out = c.(PreStatementChecker).PreStatement(ctx, inst)
				}
			})
			if !ok {
				next = append(next, st)
				continue
			}
			if out != nil {
				next = append(next, out)
			}
			next = append(next, ctx.transitions...)
		}
		states = next
	}
	return states
}

func (w *walker) endOfPath(node *explodedgraph.Node) {
	for _, c := range w.checks.end {
		ctx := &Context{w: w, node: node, state: node.State}
		w.safely(c, "EndOfExecutionPath", func() { c.(PathEndChecker).EndOfExecutionPath(ctx) })
	}
}

func (w *walker) endOfExecution() {
	for _, c := range w.checks.done {
		ctx := &Context{w: w}
		w.safely(c, "EndOfExecution", func() { c.(ExecutionEndChecker).EndOfExecution(ctx) })
	}
}

func (w *walker) interrupted() {
	for _, c := range w.checks.interr {
		ctx := &Context{w: w}
		w.safely(c, "InterruptedExecution", func() { c.(InterruptionChecker).InterruptedExecution(ctx) })
	}
}
