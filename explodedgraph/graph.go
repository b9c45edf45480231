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

// Package explodedgraph implements the exploded graph of a method: the nodes pair a program point
// with a program state, and the edges record the instruction, and the yield if any, that led from
// one node to the next.
package explodedgraph

import (
	"fmt"
	"slices"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
	"go.uber.org/symex/yield"
)

// ProgramPoint is a position in the control flow graph. Iteration tells apart the passes of a
// path through a block inside a loop.
type ProgramPoint struct {
	Block     int
	Index     int
	Iteration int
}

// Next returns the point of the following instruction in the same block.
func (p ProgramPoint) Next() ProgramPoint {
	return ProgramPoint{Block: p.Block, Index: p.Index + 1, Iteration: p.Iteration}
}

func (p ProgramPoint) String() string {
	if p.Iteration > 0 {
		return fmt.Sprintf("B%d.%d#%d", p.Block, p.Index, p.Iteration)
	}
	return fmt.Sprintf("B%d.%d", p.Block, p.Index)
}

// LearnedConstraint is a constraint a value carries in a node and not in its parent.
type LearnedConstraint struct {
	Value      *symbolic.Value
	Constraint constraint.Constraint
}

// LearnedSymbol is a binding a node holds and its parent does not.
type LearnedSymbol struct {
	Symbol cfg.SymbolID
	Value  *symbolic.Value
}

// Edge is a transition into a node.
type Edge struct {
	Parent *Node
	// Instruction is nil for edges that do not execute an instruction, such as block entries.
	Instruction *cfg.Instruction
	// Yield is the callee yield applied by an invocation.
	Yield *yield.MethodYield
	// Callee is the method invoked when Yield is set.
	Callee string
	// Exceptional is set on edges routing an exception.
	Exceptional bool

	child              *Node
	learned            []LearnedConstraint
	learnedSymbols     []LearnedSymbol
	learnedComputed    bool
	learnedSymComputed bool
}

// Child returns the node the edge enters.
func (e *Edge) Child() *Node {
	return e.child
}

// Learned returns the constraints gained across the edge, in value ID order.
func (e *Edge) Learned() []LearnedConstraint {
	if e.learnedComputed {
		return e.learned
	}
	parent := e.Parent.State
	e.child.State.EachConstraint(func(v *symbolic.Value, cs constraint.ByDomain) bool {
		for _, c := range cs.Learned(parent.Constraints(v)) {
			e.learned = append(e.learned, LearnedConstraint{Value: v, Constraint: c})
		}
		return true
	})
	e.learnedComputed = true
	return e.learned
}

// LearnedSymbols returns the bindings gained or changed across the edge, in symbol order.
func (e *Edge) LearnedSymbols() []LearnedSymbol {
	if e.learnedSymComputed {
		return e.learnedSymbols
	}
	parent := e.Parent.State
	e.child.State.EachBinding(func(sym cfg.SymbolID, v *symbolic.Value) bool {
		if old, ok := parent.Value(sym); !ok || old != v {
			e.learnedSymbols = append(e.learnedSymbols, LearnedSymbol{Symbol: sym, Value: v})
		}
		return true
	})
	e.learnedSymComputed = true
	return e.learnedSymbols
}

func (e *Edge) same(o *Edge) bool {
	return e.Parent == o.Parent && e.Instruction == o.Instruction && e.Yield == o.Yield &&
		e.Exceptional == o.Exceptional
}

// Node pairs a program point with a state.
type Node struct {
	ID    int
	Point ProgramPoint
	State *state.ProgramState

	edges []*Edge
}

// Edges returns the incoming edges in insertion order.
func (n *Node) Edges() []*Edge {
	return n.edges
}

// AddEdge records a transition into n. It returns false if an identical edge exists.
func (n *Node) AddEdge(e Edge) bool {
	for _, existing := range n.edges {
		if existing.same(&e) {
			return false
		}
	}
	e.child = n
	n.edges = append(n.edges, &e)
	return true
}

// IsEntry returns true for the nodes without incoming edges.
func (n *Node) IsEntry() bool {
	return len(n.edges) == 0
}

func (n *Node) String() string {
	return fmt.Sprintf("N%d@%s", n.ID, n.Point)
}

type nodeKey struct {
	point ProgramPoint
	hash  uint64
}

// Graph is the node cache of one exploration: a (point, state) pair maps to a single node.
type Graph struct {
	nodes   map[nodeKey][]*Node
	created int
	live    int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[nodeKey][]*Node)}
}

// Node returns the node of (p, s), creating it if needed. The boolean is true if the node is new.
func (g *Graph) Node(p ProgramPoint, s *state.ProgramState) (*Node, bool) {
	key := nodeKey{point: p, hash: s.Hash()}
	for _, n := range g.nodes[key] {
		if n.State.Equal(s) {
			return n, false
		}
	}
	n := &Node{ID: g.created, Point: p, State: s}
	g.created++
	g.live++
	g.nodes[key] = append(g.nodes[key], n)
	return n, true
}

// Lookup returns the node of (p, s) if it exists.
func (g *Graph) Lookup(p ProgramPoint, s *state.ProgramState) (*Node, bool) {
	for _, n := range g.nodes[nodeKey{point: p, hash: s.Hash()}] {
		if n.State.Equal(s) {
			return n, true
		}
	}
	return nil, false
}

// Supersede replaces old by n: old leaves the cache and its incoming edges are moved to n.
func (g *Graph) Supersede(old, n *Node) {
	key := nodeKey{point: old.Point, hash: old.State.Hash()}
	if i := slices.Index(g.nodes[key], old); i >= 0 {
		g.nodes[key] = slices.Delete(g.nodes[key], i, i+1)
		if len(g.nodes[key]) == 0 {
			delete(g.nodes, key)
		}
		g.live--
	}
	g.Inherit(old, n)
	old.edges = nil
}

// Inherit copies the incoming edges of from to n.
func (g *Graph) Inherit(from, n *Node) {
	for _, e := range from.edges {
		n.AddEdge(Edge{
			Parent:      e.Parent,
			Instruction: e.Instruction,
			Yield:       e.Yield,
			Callee:      e.Callee,
			Exceptional: e.Exceptional,
		})
	}
}

// Created returns the number of nodes created so far, superseded ones included.
func (g *Graph) Created() int {
	return g.created
}

// Len returns the number of nodes in the cache.
func (g *Graph) Len() int {
	return g.live
}
