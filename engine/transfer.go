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
	"strconv"
	"strings"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
)

// transfer executes inst over s and continues the resulting paths.
func (w *walker) transfer(node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState) {
	tr := transition{inst: inst}
	switch inst.Op {
	case cfg.OpLiteral:
		w.next(node, inst, w.pushLiteral(inst, s), tr)

	case cfg.OpLoad:
		v, ok := s.Value(inst.Symbol)
		if !ok {
			v = w.factory.Fresh()
			s = s.Assign(inst.Symbol, v)
			if sym := w.method.Symbol(inst.Symbol); sym != nil && (sym.Primitive || sym.Nullability == cfg.NonNull) {
				s = s.WithConstraint(v, constraint.NotNull)
			}
		}
		w.next(node, inst, s.Push(v), tr)

	case cfg.OpStore:
		s, vs := s.Pop(1)
		w.next(node, inst, s.Assign(inst.Symbol, vs[0]), tr)

	case cfg.OpDeclare:
		if inst.HasInit {
			var vs []*symbolic.Value
			s, vs = s.Pop(1)
			s = s.Assign(inst.Symbol, vs[0])
		}
		w.next(node, inst, s, tr)

	case cfg.OpBinary:
		s, vs := s.Pop(2)
		var v *symbolic.Value
		if inst.Operator.IsRelational() {
			v = w.factory.Relation(inst.Operator, vs[0], vs[1])
		} else {
			v = w.factory.Fresh()
		}
		s, _ = s.Constrain(v, constraint.NotNull)
		w.next(node, inst, s.Push(v), tr)

	case cfg.OpUnary:
		s, vs := s.Pop(1)
		var v *symbolic.Value
		if inst.Operator == cfg.Not {
			v = w.factory.Not(vs[0])
		} else {
			v = w.factory.Fresh()
		}
		s, _ = s.Constrain(v, constraint.NotNull)
		w.next(node, inst, s.Push(v), tr)

	case cfg.OpSelect:
		s, _ := s.Pop(1)
		w.next(node, inst, s.Push(w.factory.Fresh()), tr)

	case cfg.OpInvoke:
		w.invoke(node, inst, s)

	case cfg.OpNew:
		w.instantiate(node, inst, s)

	case cfg.OpPop:
		s, _ := s.Pop(1)
		w.next(node, inst, s, tr)

	case cfg.OpCast:
		w.next(node, inst, s, tr)

	case cfg.OpInstanceOf:
		s, vs := s.Pop(1)
		v := w.factory.Fresh()
		s = s.WithConstraint(v, constraint.NotNull)
		if s.Has(vs[0], constraint.Null) {
			s = s.WithConstraint(v, constraint.False)
		}
		w.next(node, inst, s.Push(v), tr)

	case cfg.OpGoto:
		w.enterBlock(node, tr, inst.Targets[0], s)

	case cfg.OpBranch:
		w.branch(node, inst, s)

	case cfg.OpReturn:
		var exit *symbolic.Value
		if inst.HasValue {
			var vs []*symbolic.Value
			s, vs = s.Pop(1)
			exit = vs[0]
		}
		w.enterBlock(node, tr, w.body.Exit, s.WithExitValue(exit))

	case cfg.OpThrow:
		s, vs := s.Pop(1)
		w.route(node, s, w.factory.Exceptional(vs[0], inst.Type), tr)
	}
}

func (w *walker) pushLiteral(inst *cfg.Instruction, s *state.ProgramState) *state.ProgramState {
	switch inst.Literal {
	case cfg.LitNull:
		return s.Push(w.factory.Null())
	case cfg.LitTrue:
		return s.Push(w.factory.Bool(true))
	case cfg.LitFalse:
		return s.Push(w.factory.Bool(false))
	}
	v := w.factory.Fresh()
	s = s.WithConstraint(v, constraint.NotNull)
	if inst.Literal == cfg.LitNumber {
		if zero, ok := isZero(inst.Value); ok {
			if zero {
				s = s.WithConstraint(v, constraint.IsZero)
			} else {
				s = s.WithConstraint(v, constraint.NonZero)
			}
		}
	}
	return s.Push(v)
}

// isZero parses a numeric literal as written in the source, e.g. 0L, 0x0 or 1_000.
func isZero(lit string) (zero bool, ok bool) {
	lit = strings.ReplaceAll(strings.ToLower(lit), "_", "")
	if strings.HasPrefix(lit, "0x") {
		n, err := strconv.ParseUint(strings.TrimSuffix(lit[2:], "l"), 16, 64)
		return n == 0, err == nil
	}
	lit = strings.TrimRight(lit, "lfd")
	f, err := strconv.ParseFloat(lit, 64)
	return f == 0, err == nil
}

// branch assumes the condition on top of the stack true, then false, and continues the feasible
// sides.
func (w *walker) branch(node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState) {
	s, vs := s.Pop(1)
	cond := vs[0]
	tr := transition{inst: inst}
	for i, outcome := range []bool{true, false} {
		st, ok := s.Constrain(cond, constraint.Bool(outcome))
		if !ok {
			continue
		}
		if !cond.IsLiteral() {
			w.conditions.record(inst, outcome)
		}
		w.enterBlock(node, tr, inst.Targets[i], st)
	}
}

// instantiate creates an object. A resource starts open. The declared exceptions of the
// constructor are raised into the handlers of the block, if any.
func (w *walker) instantiate(node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState) {
	s, _ = s.Pop(inst.Args)
	tr := transition{inst: inst}

	if ctor, ok := w.engine.program.Method(inst.Method); ok && len(w.body.Block(node.Point.Block).Handlers) > 0 {
		for _, exc := range ctor.Throws {
			w.route(node, s, w.factory.Exceptional(nil, exc), tr)
		}
	}

	v := w.factory.Fresh()
	s = s.WithConstraint(v, constraint.NotNull)
	if inst.Resource {
		s = s.WithConstraint(v, constraint.Open)
	}
	w.next(node, inst, s.Push(v), tr)
}
