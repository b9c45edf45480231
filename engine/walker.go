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
	"container/heap"
	"context"
	"fmt"
	"go/token"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/config"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
	"go.uber.org/symex/yield"
)

// transition describes an edge about to be added.
type transition struct {
	inst        *cfg.Instruction
	yield       *yield.MethodYield
	callee      string
	exceptional bool
}

func (t transition) edge(parent *explodedgraph.Node) explodedgraph.Edge {
	return explodedgraph.Edge{
		Parent:      parent,
		Instruction: t.inst,
		Yield:       t.yield,
		Callee:      t.callee,
		Exceptional: t.exceptional,
	}
}

type widenKey struct {
	block int
	slot  state.Slot
}

// thrownYield is an exceptional yield added by a check.
type thrownYield struct {
	state     *state.ProgramState
	exception string
	witness   []token.Position
}

// walker explores one method. Nested explorations of callees use their own walker.
type walker struct {
	ctx       context.Context
	engine    *Engine
	conf      *config.Config
	method    *cfg.Method
	body      *cfg.Graph
	store     *yield.Store
	reporting bool
	depth     int
	signature yield.Signature

	factory *symbolic.Factory
	graph   *explodedgraph.Graph
	queue   worklist
	queued  map[*explodedgraph.Node]bool
	seq     int
	// joins holds the latest node of every join block, which the next states reaching the block
	// are merged into.
	joins     map[int]*explodedgraph.Node
	widenings map[widenKey]*symbolic.Value
	params    []*symbolic.Value

	checks     checkSet
	current    string
	conditions *Conditions
	issues     []Issue
	faults     []Fault
	ends       []*explodedgraph.Node
	thrown     []thrownYield
	steps      int
	// approximated is set when a callee could not be explored precisely, making the behavior of
	// this method depend on the exploration in progress.
	approximated bool
}

func newWalker(ctx context.Context, e *Engine, m *cfg.Method, store *yield.Store, reporting bool, depth int, sig yield.Signature) *walker {
	return &walker{
		ctx:        ctx,
		engine:     e,
		conf:       e.conf,
		method:     m,
		body:       m.Body,
		store:      store,
		reporting:  reporting,
		depth:      depth,
		signature:  sig,
		factory:    symbolic.NewFactory(),
		graph:      explodedgraph.New(),
		queued:     make(map[*explodedgraph.Node]bool),
		joins:      make(map[int]*explodedgraph.Node),
		widenings:  make(map[widenKey]*symbolic.Value),
		checks:     e.registry.instantiate(m),
		conditions: newConditions(),
	}
}

func (w *walker) run() *Result {
	res := &Result{Method: w.method.ID}
	err := w.explore()
	res.Nodes, res.Steps = w.graph.Created(), w.steps
	if err != nil {
		w.interrupted()
		res.Status = Aborted
		res.AbortReason = fmt.Errorf("explore %q: %w", w.method.ID, err)
		res.Faults = w.faults
		return res
	}

	res.Yields = w.behavior()
	w.endOfExecution()
	res.Issues = w.issues
	res.Faults = w.faults
	res.AlwaysTrue = w.conditions.AlwaysTrue()
	res.AlwaysFalse = w.conditions.AlwaysFalse()
	return res
}

func (w *walker) explore() error {
	starts, err := w.startingStates()
	if err != nil {
		return err
	}
	for _, s := range starts {
		w.enterBlock(nil, transition{}, w.body.Entry, s)
	}

	for w.queue.Len() > 0 {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if w.steps >= w.conf.MaxSteps {
			return ErrMaxSteps
		}
		if w.graph.Created() > w.conf.MaxNodes {
			return ErrMaxNodes
		}
		node := heap.Pop(&w.queue).(*explodedgraph.Node)
		if !w.queued[node] {
			// Superseded by a merge.
			continue
		}
		delete(w.queued, node)
		w.steps++
		w.execute(node)
	}
	return nil
}

// startingStates binds the parameters and seeds their declared constraints. Nullable parameters
// and the argument of equals fork a null and a non-null state. A nested exploration seeds the
// constraints of the signature instead.
func (w *walker) startingStates() ([]*state.ProgramState, error) {
	s := state.New(w.factory)
	w.params = make([]*symbolic.Value, len(w.method.Params))
	for i, sym := range w.method.Params {
		w.params[i] = w.factory.Fresh()
		s = s.Assign(sym, w.params[i])
	}

	states := []*state.ProgramState{s}
	for i := range w.method.Params {
		param, v := w.method.Param(i), w.params[i]
		var next []*state.ProgramState
		for _, st := range states {
			switch {
			case w.signature != nil:
				ok := true
				if i < len(w.signature) {
					for _, c := range w.signature[i].Slice() {
						if st, ok = st.Constrain(v, c); !ok {
							break
						}
					}
				}
				if ok {
					next = append(next, st)
				}
			case param.Primitive || param.Nullability == cfg.NonNull:
				st, _ = st.Constrain(v, constraint.NotNull)
				next = append(next, st)
			case param.Nullability.CanBeNull() || w.method.IsEquals():
				for _, c := range []constraint.Constraint{constraint.Null, constraint.NotNull} {
					if forked, ok := st.Constrain(v, c); ok {
						next = append(next, forked)
					}
				}
			default:
				next = append(next, st)
			}
		}
		states = next
		if len(states) > w.conf.MaxStartingStates {
			return nil, ErrMaxStartingStates
		}
	}
	return states, nil
}

func (w *walker) execute(node *explodedgraph.Node) {
	block := w.body.Block(node.Point.Block)
	inst := &block.Instructions[node.Point.Index]
	for _, s := range w.applyStatementHooks(false /* post */, node, inst, node.State) {
		w.transfer(node, inst, s)
	}
}

// next continues a path after a non-terminating instruction.
func (w *walker) next(node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState, tr transition) {
	for _, st := range w.applyStatementHooks(true /* post */, node, inst, s) {
		w.enqueue(node.Point.Next(), st, node, tr)
	}
}

// enterBlock continues a path at the start of a block: the visit is counted, dead symbols are
// dropped, and at join blocks the state is merged with the states already there.
func (w *walker) enterBlock(parent *explodedgraph.Node, tr transition, block int, s *state.ProgramState) {
	s = s.Visit(block)
	if s.Visits(block) > w.conf.MaxExecProgramPoint {
		return
	}
	if block == w.body.Exit {
		w.reachExit(parent, tr, s)
		return
	}
	s = w.cleanUp(block, s)

	if !w.conf.DisableJoinMerge && w.body.IsJoin(block) {
		if acc, ok := w.joins[block]; ok {
			if merged, ok := acc.State.Merge(s, w.widen(block)); ok {
				w.mergeInto(acc, parent, tr, block, merged)
				return
			}
		}
	}
	n := w.enqueue(w.blockStart(block, s), s, parent, tr)
	if w.body.IsJoin(block) {
		w.joins[block] = n
	}
}

func (w *walker) blockStart(block int, s *state.ProgramState) explodedgraph.ProgramPoint {
	p := explodedgraph.ProgramPoint{Block: block}
	if w.body.InLoop(block) {
		p.Iteration = s.Visits(block)
	}
	return p
}

func (w *walker) mergeInto(acc, parent *explodedgraph.Node, tr transition, block int, merged *state.ProgramState) {
	if merged.Equal(acc.State) {
		if parent != nil {
			acc.AddEdge(tr.edge(parent))
		}
		return
	}
	n, created := w.graph.Node(w.blockStart(block, merged), merged)
	if parent != nil {
		n.AddEdge(tr.edge(parent))
	}
	if w.queued[acc] {
		w.graph.Supersede(acc, n)
		delete(w.queued, acc)
	} else {
		w.graph.Inherit(acc, n)
	}
	if created {
		w.push(n)
	}
	w.joins[block] = n
}

func (w *walker) widen(block int) func(state.Slot) *symbolic.Value {
	return func(slot state.Slot) *symbolic.Value {
		key := widenKey{block: block, slot: slot}
		if v, ok := w.widenings[key]; ok {
			return v
		}
		v := w.factory.Fresh()
		w.widenings[key] = v
		return v
	}
}

func (w *walker) cleanUp(block int, s *state.ProgramState) *state.ProgramState {
	live := func(sym cfg.SymbolID) bool {
		symbol := w.method.Symbol(sym)
		return symbol == nil || symbol.Kind == cfg.Field || w.body.IsLive(block, sym)
	}
	return s.CleanUp(live, w.params...)
}

func (w *walker) enqueue(p explodedgraph.ProgramPoint, s *state.ProgramState, parent *explodedgraph.Node, tr transition) *explodedgraph.Node {
	n, created := w.graph.Node(p, s)
	if parent != nil {
		n.AddEdge(tr.edge(parent))
	}
	if created {
		w.push(n)
	}
	return n
}

func (w *walker) push(n *explodedgraph.Node) {
	w.seq++
	w.queued[n] = true
	heap.Push(&w.queue, &item{node: n, order: w.body.Order(n.Point.Block), seq: w.seq})
}

// reachExit ends a path. Every distinct end state is summarized by a yield.
func (w *walker) reachExit(parent *explodedgraph.Node, tr transition, s *state.ProgramState) {
	n, created := w.graph.Node(explodedgraph.ProgramPoint{Block: w.body.Exit}, s)
	if parent != nil {
		n.AddEdge(tr.edge(parent))
	}
	if created {
		w.ends = append(w.ends, n)
		w.endOfPath(n)
	}
}

// route propagates an exception raised in the block of node to the first handler catching it, or
// out of the method. An exception of unknown type may be caught by any handler.
func (w *walker) route(node *explodedgraph.Node, s *state.ProgramState, exc *symbolic.Value, tr transition) {
	tr.exceptional = true
	s = s.ClearStack()
	excType := exc.ExceptionType()
	for _, h := range w.body.Block(node.Point.Block).Handlers {
		if excType != "" && !h.Catches(excType, w.engine.program.IsSubtype) {
			continue
		}
		w.enterBlock(node, tr, h.Target, s)
		if excType != "" || len(h.Types) == 0 {
			return
		}
	}
	w.enterBlock(node, tr, w.body.Exit, s.WithExitValue(exc))
}

func (w *walker) paramIndex(v *symbolic.Value) int {
	for i, p := range w.params {
		if p == v {
			return i
		}
	}
	return -1
}

func (w *walker) isField(sym cfg.SymbolID) bool {
	s := w.method.Symbol(sym)
	return s != nil && s.Kind == cfg.Field
}

// witness returns the positions of the instructions along a shortest path from an entry node to
// n.
func (w *walker) witness(n *explodedgraph.Node) []token.Position {
	via := map[*explodedgraph.Node]*explodedgraph.Edge{}
	visited := map[*explodedgraph.Node]bool{n: true}
	queue := []*explodedgraph.Node{n}
	var entry *explodedgraph.Node
	for len(queue) > 0 && entry == nil {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsEntry() {
			entry = cur
			break
		}
		for _, e := range cur.Edges() {
			if !visited[e.Parent] {
				visited[e.Parent] = true
				via[e.Parent] = e
				queue = append(queue, e.Parent)
			}
		}
	}

	var positions []token.Position
	for cur := entry; cur != nil && cur != n; {
		e := via[cur]
		if e.Instruction != nil {
			positions = append(positions, e.Instruction.Pos)
		}
		cur = e.Child()
	}
	return positions
}

// behavior summarizes the end states into yields.
func (w *walker) behavior() *yield.Behavior {
	b := yield.NewBehavior(w.method.ID, w.signature)
	for _, n := range w.ends {
		b.Add(w.yieldOf(n.State, w.witness(n)))
	}
	for _, t := range w.thrown {
		y := w.yieldOf(t.state, t.witness)
		y.Kind = yield.Exceptional
		y.Exception = t.exception
		y.Result = constraint.ByDomain{}
		y.ResultIndex = yield.NoResultIndex
		b.Add(y)
	}
	b.Reduce()
	b.Complete = !w.approximated
	return b
}

var _yieldDomains = []constraint.Domain{constraint.Nullness, constraint.Boolean, constraint.Zero, constraint.Presence}

func (w *walker) yieldOf(s *state.ProgramState, witness []token.Position) *yield.MethodYield {
	y := &yield.MethodYield{
		Params:      make([]constraint.ByDomain, len(w.params)),
		ResultIndex: yield.NoResultIndex,
		Witness:     witness,
	}
	for i, v := range w.params {
		cs := s.Constraints(v).Filter(_yieldDomains...)
		if !w.method.Param(i).IsBoolean() {
			cs = cs.Without(constraint.Boolean)
		}
		y.Params[i] = cs
	}

	exit := s.ExitValue()
	switch {
	case s.ExceptionInFlight():
		y.Kind = yield.Exceptional
		y.Exception = exit.ExceptionType()
	case exit != nil:
		y.ResultIndex = w.paramIndex(exit)
		y.Result = s.Constraints(exit).Filter(_yieldDomains...)
	}
	return y
}
