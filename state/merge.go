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

package state

import (
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/symbolic"
)

// Slot identifies a storage location of a state: a variable binding, or a position of the operand
// stack counted from the bottom.
type Slot struct {
	Stack bool
	Index int
}

// SymbolSlot returns the slot of the binding of sym.
func SymbolSlot(sym cfg.SymbolID) Slot { return Slot{Index: int(sym)} }

// StackSlot returns the slot of the i-th stack position from the bottom.
func StackSlot(i int) Slot { return Slot{Stack: true, Index: i} }

// Merge joins s and o into a state that over-approximates both. Bindings and stack slots holding
// the same value on both sides keep it; slots holding different values receive widen(slot), a value
// carrying only the constraints both sides agree on. Bindings present on one side only are dropped.
// Constraints of shared values are intersected per domain, and visit counts keep the maximum.
//
// States with different stack depths or exit values are not mergeable; Merge then returns false.
func (s *ProgramState) Merge(o *ProgramState, widen func(Slot) *symbolic.Value) (*ProgramState, bool) {
	if s.stack.Len() != o.stack.Len() || s.exit != o.exit {
		return nil, false
	}
	if s.Equal(o) {
		return s, true
	}

	type widening struct {
		value       *symbolic.Value
		left, right *symbolic.Value
	}
	var widened []widening

	r := s.clone()

	// Constraints first, as the widened slots below override the rows of their fresh values.
	r.constraints = s.constraints
	for it := s.constraints.Iterator(); !it.Done(); {
		id, e, _ := it.Next()
		other, ok := o.constraints.Get(id)
		if !ok {
			r.constraints = r.constraints.Delete(id)
			continue
		}
		if cs := e.cs.Intersect(other.cs); cs != e.cs {
			if cs.IsEmpty() {
				r.constraints = r.constraints.Delete(id)
			} else {
				r.constraints = r.constraints.Set(id, entry{value: e.value, cs: cs})
			}
		}
	}

	r.bindings = s.bindings
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, v, _ := it.Next()
		ov, ok := o.bindings.Get(sym)
		switch {
		case !ok:
			r.bindings = r.bindings.Delete(sym)
		case ov != v:
			w := widen(SymbolSlot(sym))
			r.bindings = r.bindings.Set(sym, w)
			widened = append(widened, widening{value: w, left: v, right: ov})
		}
	}

	for i := 0; i < s.stack.Len(); i++ {
		v, ov := s.stack.Get(i), o.stack.Get(i)
		if v != ov {
			w := widen(StackSlot(i))
			r.stack = r.stack.Set(i, w)
			widened = append(widened, widening{value: w, left: v, right: ov})
		}
	}

	for _, w := range widened {
		cs := s.Constraints(w.left).Intersect(o.Constraints(w.right))
		if cs.IsEmpty() {
			r.constraints = r.constraints.Delete(w.value.ID())
		} else {
			r.constraints = r.constraints.Set(w.value.ID(), entry{value: w.value, cs: cs})
		}
	}

	r.visits = s.visits
	for it := o.visits.Iterator(); !it.Done(); {
		block, n, _ := it.Next()
		if n > s.Visits(block) {
			r.visits = r.visits.Set(block, n)
		}
	}
	return r, true
}

// CleanUp drops the bindings of the symbols that are not live, then the constraints of values no
// longer reachable from a binding, the stack, the exit value or one of roots. Literals and open
// resources are always kept: a resource is not gone once nothing refers to it.
func (s *ProgramState) CleanUp(live func(cfg.SymbolID) bool, roots ...*symbolic.Value) *ProgramState {
	bindings := s.bindings
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, _, _ := it.Next()
		if !live(sym) {
			bindings = bindings.Delete(sym)
		}
	}

	reachable := make(map[int]bool)
	var mark func(v *symbolic.Value)
	mark = func(v *symbolic.Value) {
		if v == nil || reachable[v.ID()] {
			return
		}
		reachable[v.ID()] = true
		for _, op := range v.Operands() {
			mark(op)
		}
	}
	for it := bindings.Iterator(); !it.Done(); {
		_, v, _ := it.Next()
		mark(v)
	}
	for i := 0; i < s.stack.Len(); i++ {
		mark(s.stack.Get(i))
	}
	mark(s.exit)
	for _, v := range roots {
		mark(v)
	}

	constraints := s.constraints
	for it := s.constraints.Iterator(); !it.Done(); {
		id, e, _ := it.Next()
		if !reachable[id] && !e.value.IsLiteral() && !e.cs.Has(constraint.Open) {
			constraints = constraints.Delete(id)
		}
	}

	if bindings == s.bindings && constraints == s.constraints {
		return s
	}
	r := s.clone()
	r.bindings = bindings
	r.constraints = constraints
	return r
}
