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

// maxPropagationDepth bounds the learning of constraints through chains of relations.
const maxPropagationDepth = 16

// Constraints returns the constraints attached to v.
func (s *ProgramState) Constraints(v *symbolic.Value) constraint.ByDomain {
	if v == nil {
		return constraint.ByDomain{}
	}
	e, _ := s.constraints.Get(v.ID())
	return e.cs
}

// Constraint returns the constraint of v in domain d, or constraint.None.
func (s *ProgramState) Constraint(v *symbolic.Value, d constraint.Domain) constraint.Constraint {
	c, _ := s.Constraints(v).Get(d)
	return c
}

// Has returns true if v carries c.
func (s *ProgramState) Has(v *symbolic.Value, c constraint.Constraint) bool {
	return s.Constraints(v).Has(c)
}

// ValuesWith returns the values carrying c, in value ID order.
func (s *ProgramState) ValuesWith(c constraint.Constraint) []*symbolic.Value {
	var values []*symbolic.Value
	for it := s.constraints.Iterator(); !it.Done(); {
		_, e, _ := it.Next()
		if e.cs.Has(c) {
			values = append(values, e.value)
		}
	}
	return values
}

// EachConstraint calls f for every constrained value in value ID order until f returns false.
func (s *ProgramState) EachConstraint(f func(v *symbolic.Value, cs constraint.ByDomain) bool) {
	for it := s.constraints.Iterator(); !it.Done(); {
		_, e, _ := it.Next()
		if !f(e.value, e.cs) {
			return
		}
	}
}

// WithConstraint replaces the constraint of v in the domain of c, ignoring what was there.
func (s *ProgramState) WithConstraint(v *symbolic.Value, c constraint.Constraint) *ProgramState {
	if c == constraint.None {
		return s
	}
	return s.setConstraints(v, s.Constraints(v).With(c))
}

// WithoutConstraint drops the constraint of v in domain d.
func (s *ProgramState) WithoutConstraint(v *symbolic.Value, d constraint.Domain) *ProgramState {
	cur := s.Constraints(v)
	if _, ok := cur.Get(d); !ok {
		return s
	}
	return s.setConstraints(v, cur.Without(d))
}

func (s *ProgramState) setConstraints(v *symbolic.Value, cs constraint.ByDomain) *ProgramState {
	r := s.clone()
	if cs.IsEmpty() {
		r.constraints = s.constraints.Delete(v.ID())
	} else {
		r.constraints = s.constraints.Set(v.ID(), entry{value: v, cs: cs})
	}
	return r
}

// Constrain adds c to v and learns what follows from it: the operand of a negation gets the
// inverse boolean constraint, and the operands of a relation are constrained by the outcome of the
// relation. It returns false, and the receiver unchanged, if c contradicts what is already known
// anywhere along the way; the path is then infeasible.
func (s *ProgramState) Constrain(v *symbolic.Value, c constraint.Constraint) (*ProgramState, bool) {
	r, ok := s.constrain(v, c, 0)
	if !ok {
		return s, false
	}
	return r, true
}

func (s *ProgramState) constrain(v *symbolic.Value, c constraint.Constraint, depth int) (*ProgramState, bool) {
	if c == constraint.None {
		return s, true
	}
	cur := s.Constraints(v)
	if existing, ok := cur.Get(c.Domain()); ok {
		return s, existing == c
	}
	s = s.setConstraints(v, cur.With(c))
	if depth >= maxPropagationDepth || c.Domain() != constraint.Boolean {
		return s, true
	}

	switch v.Kind() {
	case symbolic.Negation:
		return s.constrain(v.Operands()[0], c.Inverse(), depth+1)
	case symbolic.Relational:
		return s.constrainRelation(v, c == constraint.True, depth+1)
	}
	return s, true
}

// constrainRelation learns from the relation v evaluating to holds.
func (s *ProgramState) constrainRelation(v *symbolic.Value, holds bool, depth int) (*ProgramState, bool) {
	op := v.Operator()
	if !holds {
		op = op.Negate()
	}
	operands := v.Operands()
	l, r := operands[0], operands[1]

	ok := true
	switch op {
	case cfg.Eq:
		if l == r {
			return s, true
		}
		// Both sides denote the same value, so they share everything known about either.
		for _, c := range s.Constraints(l).Slice() {
			if s, ok = s.constrain(r, c, depth); !ok {
				return s, false
			}
		}
		for _, c := range s.Constraints(r).Slice() {
			if s, ok = s.constrain(l, c, depth); !ok {
				return s, false
			}
		}
	case cfg.Ne:
		if l == r {
			return s, false
		}
		for _, pair := range [][2]*symbolic.Value{{l, r}, {r, l}} {
			known, other := pair[0], pair[1]
			if s, ok = s.constrainDistinct(known, other, depth); !ok {
				return s, false
			}
		}
	case cfg.Lt, cfg.Gt:
		if l == r {
			return s, false
		}
	}
	return s, true
}

// constrainDistinct learns about other from known != other.
func (s *ProgramState) constrainDistinct(known, other *symbolic.Value, depth int) (*ProgramState, bool) {
	cs := s.Constraints(known)
	ok := true
	if cs.Has(constraint.Null) {
		if s, ok = s.constrain(other, constraint.NotNull, depth); !ok {
			return s, false
		}
	}
	if cs.Has(constraint.IsZero) {
		if s, ok = s.constrain(other, constraint.NonZero, depth); !ok {
			return s, false
		}
	}
	if b, found := cs.Get(constraint.Boolean); found {
		if s, ok = s.constrain(other, b.Inverse(), depth); !ok {
			return s, false
		}
	}
	return s, true
}
