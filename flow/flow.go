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

// Package flow reconstructs the causal traces, or flows, explaining why a value carries a
// constraint at a node of the exploded graph. Flows are rebuilt on demand by walking the incoming
// edges backward and are never cached.
package flow

import (
	"fmt"
	"go/token"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/symbolic"
)

// Location is one step of a flow.
type Location struct {
	Pos     token.Position
	Message string
}

func (l Location) String() string {
	return fmt.Sprintf("%s: %s", l.Pos, l.Message)
}

// Flow is a sequence of locations, the most recent first.
type Flow []Location

func (f Flow) key() string {
	var sb strings.Builder
	for _, l := range f {
		sb.WriteString(l.Pos.String())
		sb.WriteByte(0)
		sb.WriteString(l.Message)
		sb.WriteByte(0)
	}
	return sb.String()
}

// Options control a flow computation.
type Options struct {
	// Domains restricts the constraints worth explaining; all domains when empty.
	Domains []constraint.Domain
	// Method names the symbols in messages.
	Method *cfg.Method
	// MaxFlows bounds the number of flows returned.
	MaxFlows int
	// MaxSteps bounds the number of backward expansions.
	MaxSteps int
	// SkipExceptions ignores the paths through exceptional edges.
	SkipExceptions bool
}

// WithoutExceptions returns a copy of o ignoring exceptional edges.
func (o Options) WithoutExceptions() Options {
	o.SkipExceptions = true
	return o
}

func (o Options) relevant(c constraint.Constraint) bool {
	return len(o.Domains) == 0 || slices.Contains(o.Domains, c.Domain())
}

func (o Options) name(sym cfg.SymbolID) string {
	if o.Method != nil {
		if s := o.Method.Symbol(sym); s != nil {
			return s.Name
		}
	}
	return "#" + strconv.Itoa(int(sym))
}

type path struct {
	node *explodedgraph.Node
	locs Flow
}

// Compute returns the flows explaining the constraints v carries at node, shortest first. The
// walk is breadth-first: every path ends at an entry node, or at the edge where v first appears.
func Compute(node *explodedgraph.Node, v *symbolic.Value, opts Options) []Flow {
	var (
		flows []Flow
		seen  = make(map[string]bool)
		queue = []path{{node: node}}
		done  = make(map[string]bool)
		steps int
	)
	emit := func(f Flow) {
		if len(f) == 0 {
			return
		}
		if k := f.key(); !done[k] {
			done[k] = true
			flows = append(flows, f)
		}
	}

	for len(queue) > 0 {
		if opts.MaxFlows > 0 && len(flows) >= opts.MaxFlows {
			break
		}
		if opts.MaxSteps > 0 && steps >= opts.MaxSteps {
			break
		}
		steps++
		p := queue[0]
		queue = queue[1:]

		if p.node.IsEntry() {
			emit(append(slices.Clip(p.locs), opts.entryLocations(p.node, v)...))
			continue
		}
		for _, e := range p.node.Edges() {
			if opts.SkipExceptions && e.Exceptional {
				continue
			}
			locs := p.locs
			if loc, ok := opts.edgeLocation(e, v); ok {
				locs = append(slices.Clip(locs), loc)
			}
			if !knows(e.Parent, v) {
				emit(locs)
				continue
			}
			k := strconv.Itoa(e.Parent.ID) + "\x00" + locs.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, path{node: e.Parent, locs: locs})
		}
	}
	return flows
}

// knows returns true if v exists in the state of n.
func knows(n *explodedgraph.Node, v *symbolic.Value) bool {
	s := n.State
	if !s.Constraints(v).IsEmpty() || len(s.Symbols(v)) > 0 || s.ExitValue() == v {
		return true
	}
	return slices.Contains(s.PeekValues(s.StackSize()), v)
}

// constraintText returns the first relevant constraint of v at n.
func (o Options) constraintText(n *explodedgraph.Node, v *symbolic.Value) (string, bool) {
	for _, c := range n.State.Constraints(v).Slice() {
		if o.relevant(c) {
			return c.Text(), true
		}
	}
	return "", false
}

func (o Options) edgeLocation(e *explodedgraph.Edge, v *symbolic.Value) (Location, bool) {
	inst := e.Instruction
	if inst == nil {
		return Location{}, false
	}
	child := e.Child()

	if inst.Op == cfg.OpStore || inst.Op == cfg.OpDeclare {
		for _, ls := range e.LearnedSymbols() {
			if ls.Value != v {
				continue
			}
			if text, ok := o.constraintText(child, v); ok {
				return Location{Pos: inst.Pos, Message: fmt.Sprintf("'%s' is assigned %s.", o.name(ls.Symbol), text)}, true
			}
		}
		return Location{}, false
	}

	var learned constraint.Constraint
	for _, lc := range e.Learned() {
		if lc.Value == v && o.relevant(lc.Constraint) {
			learned = lc.Constraint
			break
		}
	}
	if learned == constraint.None {
		return Location{}, false
	}

	switch {
	case e.Yield != nil && !knows(e.Parent, v):
		callee := cfg.SimpleName(e.Callee) + "()"
		return Location{Pos: inst.Pos, Message: fmt.Sprintf("'%s' can return %s.", callee, learned.Text())}, true
	case e.Yield != nil:
		callee := cfg.SimpleName(e.Callee) + "()"
		if name, ok := o.symbolName(child, v); ok {
			return Location{Pos: inst.Pos, Message: fmt.Sprintf("Implies '%s' is %s. Learned from '%s'.", name, learned.Text(), callee)}, true
		}
	case inst.Op == cfg.OpBranch:
		if name, ok := o.symbolName(child, v); ok {
			return Location{Pos: inst.Pos, Message: fmt.Sprintf("Implies '%s' is %s.", name, learned.Text())}, true
		}
	}
	return Location{}, false
}

func (o Options) symbolName(n *explodedgraph.Node, v *symbolic.Value) (string, bool) {
	if syms := n.State.Symbols(v); len(syms) > 0 {
		return o.name(syms[0]), true
	}
	return "", false
}

// entryLocations explains the constraints seeded at the method entry from declared nullability.
func (o Options) entryLocations(n *explodedgraph.Node, v *symbolic.Value) Flow {
	if o.Method == nil || !n.State.Has(v, constraint.Null) || !o.relevant(constraint.Null) {
		return nil
	}
	for _, sym := range n.State.Symbols(v) {
		if s := o.Method.Symbol(sym); s != nil && s.Kind == cfg.Param && s.Nullability.CanBeNull() {
			return Flow{{Pos: o.Method.Pos, Message: fmt.Sprintf("'%s' is declared nullable.", s.Name)}}
		}
	}
	return nil
}
