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

// Package state implements the program state of the symbolic execution engine: a persistent,
// immutable snapshot of variable bindings, the operand stack, the constraint table and some
// bookkeeping. Every transition returns a new ProgramState sharing structure with its parent, so
// states can be compared for equality, hashed, and reused across branches safely.
package state

import (
	"cmp"
	"fmt"
	"sort"
	"strings"

	"github.com/benbjohnson/immutable"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/symbolic"
)

type symbolComparer struct{}

func (symbolComparer) Compare(a, b cfg.SymbolID) int { return cmp.Compare(a, b) }

type intComparer struct{}

func (intComparer) Compare(a, b int) int { return cmp.Compare(a, b) }

// entry is a row of the constraint table. The value is kept next to its constraints so that the
// table can be iterated without a separate value registry.
type entry struct {
	value *symbolic.Value
	cs    constraint.ByDomain
}

// ProgramState is an immutable abstract state. The zero value is not usable; use New.
type ProgramState struct {
	bindings    *immutable.SortedMap[cfg.SymbolID, *symbolic.Value]
	stack       *immutable.List[*symbolic.Value]
	constraints *immutable.SortedMap[int, entry]
	visits      *immutable.SortedMap[int, int]
	exit        *symbolic.Value

	hash   uint64
	hashed bool
}

// New returns the empty state of an engine whose values come from f. The literals of f are
// constrained as expected.
func New(f *symbolic.Factory) *ProgramState {
	s := &ProgramState{
		bindings:    immutable.NewSortedMap[cfg.SymbolID, *symbolic.Value](symbolComparer{}),
		stack:       immutable.NewList[*symbolic.Value](),
		constraints: immutable.NewSortedMap[int, entry](intComparer{}),
		visits:      immutable.NewSortedMap[int, int](intComparer{}),
	}
	s = s.setConstraints(f.Null(), constraint.Of(constraint.Null))
	s = s.setConstraints(f.Bool(true), constraint.Of(constraint.NotNull, constraint.True))
	s = s.setConstraints(f.Bool(false), constraint.Of(constraint.NotNull, constraint.False))
	return s
}

// clone returns a shallow copy with the hash cache reset, ready to receive one modification.
func (s *ProgramState) clone() *ProgramState {
	return &ProgramState{
		bindings:    s.bindings,
		stack:       s.stack,
		constraints: s.constraints,
		visits:      s.visits,
		exit:        s.exit,
	}
}

// Assign binds sym to v.
func (s *ProgramState) Assign(sym cfg.SymbolID, v *symbolic.Value) *ProgramState {
	if cur, ok := s.bindings.Get(sym); ok && cur == v {
		return s
	}
	r := s.clone()
	r.bindings = s.bindings.Set(sym, v)
	return r
}

// Unbind removes the binding of sym.
func (s *ProgramState) Unbind(sym cfg.SymbolID) *ProgramState {
	if _, ok := s.bindings.Get(sym); !ok {
		return s
	}
	r := s.clone()
	r.bindings = s.bindings.Delete(sym)
	return r
}

// Value returns the value bound to sym.
func (s *ProgramState) Value(sym cfg.SymbolID) (*symbolic.Value, bool) {
	return s.bindings.Get(sym)
}

// Symbols returns the symbols currently bound to v, in ID order.
func (s *ProgramState) Symbols(v *symbolic.Value) []cfg.SymbolID {
	var syms []cfg.SymbolID
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, bound, _ := it.Next()
		if bound == v {
			syms = append(syms, sym)
		}
	}
	return syms
}

// EachBinding calls f for every binding in symbol order until f returns false.
func (s *ProgramState) EachBinding(f func(sym cfg.SymbolID, v *symbolic.Value) bool) {
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, v, _ := it.Next()
		if !f(sym, v) {
			return
		}
	}
}

// ResetFields drops the bindings of the symbols for which isField returns true, so their next read
// observes a fresh value.
func (s *ProgramState) ResetFields(isField func(cfg.SymbolID) bool) *ProgramState {
	bindings := s.bindings
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, _, _ := it.Next()
		if isField(sym) {
			bindings = bindings.Delete(sym)
		}
	}
	if bindings == s.bindings {
		return s
	}
	r := s.clone()
	r.bindings = bindings
	return r
}

// Push pushes v on the operand stack.
func (s *ProgramState) Push(v *symbolic.Value) *ProgramState {
	r := s.clone()
	r.stack = s.stack.Append(v)
	return r
}

// Pop removes the n topmost values. The values are returned in push order: the former top of the
// stack is the last element. Popping more values than the stack holds is a bug of the caller.
func (s *ProgramState) Pop(n int) (*ProgramState, []*symbolic.Value) {
	values := s.PeekValues(n)
	if n == 0 {
		return s, values
	}
	r := s.clone()
	r.stack = s.stack.Slice(0, s.stack.Len()-n)
	return r, values
}

// PeekValues returns the n topmost values in push order without removing them.
func (s *ProgramState) PeekValues(n int) []*symbolic.Value {
	size := s.stack.Len()
	if n > size {
		panic(fmt.Sprintf("operand stack underflow: need %d values, have %d", n, size))
	}
	values := make([]*symbolic.Value, n)
	for i := 0; i < n; i++ {
		values[i] = s.stack.Get(size - n + i)
	}
	return values
}

// Peek returns the top of the stack.
func (s *ProgramState) Peek() *symbolic.Value {
	return s.PeekValues(1)[0]
}

// StackSize returns the depth of the operand stack.
func (s *ProgramState) StackSize() int {
	return s.stack.Len()
}

// ClearStack empties the operand stack, e.g. when control enters an exception handler.
func (s *ProgramState) ClearStack() *ProgramState {
	if s.stack.Len() == 0 {
		return s
	}
	r := s.clone()
	r.stack = immutable.NewList[*symbolic.Value]()
	return r
}

// ExitValue returns the returned value or thrown exception of a path that left the method.
func (s *ProgramState) ExitValue() *symbolic.Value {
	return s.exit
}

// WithExitValue sets the exit value; nil clears it.
func (s *ProgramState) WithExitValue(v *symbolic.Value) *ProgramState {
	if s.exit == v {
		return s
	}
	r := s.clone()
	r.exit = v
	return r
}

// ExceptionInFlight returns true if the exit value is an exception.
func (s *ProgramState) ExceptionInFlight() bool {
	return s.exit != nil && s.exit.Kind() == symbolic.Exceptional
}

// Visits returns how many times the path entered block.
func (s *ProgramState) Visits(block int) int {
	n, _ := s.visits.Get(block)
	return n
}

// Visit records one more entry into block.
func (s *ProgramState) Visit(block int) *ProgramState {
	r := s.clone()
	r.visits = s.visits.Set(block, s.Visits(block)+1)
	return r
}

func (s *ProgramState) String() string {
	var sb strings.Builder
	sb.WriteString("{bindings: [")
	first := true
	s.EachBinding(func(sym cfg.SymbolID, v *symbolic.Value) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "#%d->%s", sym, v)
		return true
	})
	sb.WriteString("], stack: [")
	for i := 0; i < s.stack.Len(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.stack.Get(i).String())
	}
	sb.WriteString("], constraints: [")
	var rows []string
	for it := s.constraints.Iterator(); !it.Done(); {
		_, e, _ := it.Next()
		rows = append(rows, e.value.String()+"="+e.cs.String())
	}
	sort.Strings(rows)
	sb.WriteString(strings.Join(rows, ", "))
	sb.WriteString("]")
	if s.exit != nil {
		fmt.Fprintf(&sb, ", exit: %s", s.exit)
	}
	sb.WriteString("}")
	return sb.String()
}
