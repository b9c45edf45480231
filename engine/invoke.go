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
	"log/slog"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
	"go.uber.org/symex/yield"
)

// invoke executes a call: the behavior of the callee under the constraints of the arguments is
// resolved, then every yield compatible with the arguments continues the path.
func (w *walker) invoke(node *explodedgraph.Node, inst *cfg.Instruction, s *state.ProgramState) {
	s, operands := s.Pop(inst.StackDepth())
	args := operands
	if inst.Receiver == cfg.ReceiverValue {
		args = operands[1:]
	}

	callee, _ := w.engine.program.Method(inst.Method)
	sig := make(yield.Signature, len(args))
	for i, arg := range args {
		cs := s.Constraints(arg).Filter(_yieldDomains...)
		if callee == nil || i >= len(callee.Params) || !callee.Param(i).IsBoolean() {
			cs = cs.Without(constraint.Boolean)
		}
		sig[i] = cs
	}

	b := w.resolve(inst.Method, callee, sig)
	if b.Receiver && inst.Receiver == cfg.ReceiverValue {
		args = operands
	}
	resetsFields := inst.Receiver == cfg.ReceiverThis && (callee == nil || callee.WritesFields())
	for _, y := range b.Yields {
		st, ok := applyParams(s, args, y)
		if !ok {
			continue
		}
		tr := transition{inst: inst, yield: y, callee: inst.Method}
		if y.Kind == yield.Exceptional {
			w.route(node, st, w.factory.Exceptional(nil, y.Exception), tr)
			continue
		}

		var result *symbolic.Value
		if y.ResultIndex >= 0 && y.ResultIndex < len(args) {
			result = args[y.ResultIndex]
		} else {
			result = w.factory.Fresh()
		}
		for _, c := range y.Result.Slice() {
			if st, ok = st.Constrain(result, c); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		if resetsFields {
			st = st.ResetFields(w.isField)
		}
		w.next(node, inst, st.Push(result), tr)
	}
}

// applyParams assumes the parameter constraints of y on the arguments. It returns false if the
// yield cannot happen with these arguments.
func applyParams(s *state.ProgramState, args []*symbolic.Value, y *yield.MethodYield) (*state.ProgramState, bool) {
	for i, arg := range args {
		for _, c := range y.Param(i).Slice() {
			var ok bool
			if s, ok = s.Constrain(arg, c); !ok {
				return s, false
			}
		}
	}
	return s, true
}

// resolve returns the behavior of a call. Known library methods come first, then the behaviors
// already computed, then declarations without a body. Anything else is explored under the
// signature, unless the callee is already being explored or the call is too deep, in which case
// the worst case is assumed.
func (w *walker) resolve(id string, callee *cfg.Method, sig yield.Signature) *yield.Behavior {
	if b, ok := yield.Builtin(id); ok {
		return b
	}
	if b, ok := w.store.Lookup(id, sig); ok {
		if !b.Complete {
			w.approximated = true
		}
		return b
	}

	switch {
	case callee == nil:
		b := yield.Unknown(id, sig)
		w.store.Store(id, sig, b)
		return b
	case callee.Body == nil || w.conf.DisableInterprocedural:
		b := yield.Contract(callee, sig)
		w.store.Store(id, sig, b)
		return b
	case w.store.InProgress(id) || w.depth >= w.conf.MaxCallDepth:
		w.approximated = true
		return yield.WorstCase(id, sig)
	}

	w.store.Begin(id)
	res := newWalker(w.ctx, w.engine, callee, w.store, false /* reporting */, w.depth+1, sig).run()
	w.store.End(id)
	w.faults = append(w.faults, res.Faults...)
	if res.Status == Aborted {
		w.engine.logger.Debug("callee exploration interrupted",
			slog.String("caller", w.method.ID),
			slog.String("callee", id),
			slog.Any("reason", res.AbortReason))
		w.approximated = true
		return yield.WorstCase(id, sig)
	}
	if !res.Yields.Complete {
		w.approximated = true
	}
	w.store.Store(id, sig, res.Yields)
	return res.Yields
}
