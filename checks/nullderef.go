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

package checks

import (
	"fmt"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/flow"
	"go.uber.org/symex/state"
	"go.uber.org/symex/yield"
)

// NullDereference reports members accessed on a null receiver. Paths dereferencing null end
// there; on the others the receiver is known to be non-null afterwards.
type NullDereference struct {
	reported map[*cfg.Instruction]bool
}

func (c *NullDereference) Name() string { return "NullDereference" }

func (c *NullDereference) Init(*cfg.Method) {
	c.reported = make(map[*cfg.Instruction]bool)
}

func (c *NullDereference) PreStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	if !inst.Dereferences() {
		return s
	}
	recv := s.PeekValues(inst.StackDepth())[0]

	switch s.Constraint(recv, constraint.Nullness) {
	case constraint.Null:
		ctx.AddExceptionalYield(recv, s, yield.NullPointerException)
		if !c.reported[inst] {
			name := nameOf(ctx, recv)
			flows := withLocation(flow.Location{Pos: inst.Pos, Message: fmt.Sprintf("'%s' is dereferenced.", name)},
				ctx.Flows(recv, constraint.Nullness))
			ctx.ReportIssue(inst.Pos, fmt.Sprintf("A \"NullPointerException\" could be thrown; %q is nullable here.", name), flows)
			c.reported[inst] = true
		}
		return nil
	case constraint.None:
		if null, ok := s.Constrain(recv, constraint.Null); ok {
			ctx.AddExceptionalYield(recv, null, yield.NullPointerException)
		}
		s, _ = s.Constrain(recv, constraint.NotNull)
	}
	return s
}

// PostStatement forks the result of calls to methods declared check-for-null.
func (c *NullDereference) PostStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	if inst.Op != cfg.OpInvoke {
		return s
	}
	callee, ok := ctx.Program().Method(inst.Method)
	if !ok || callee.Returns.Void || callee.Returns.Nullability != cfg.CheckForNull {
		return s
	}
	result := s.Peek()
	if _, ok := s.Constraints(result).Get(constraint.Nullness); ok {
		return s
	}
	if null, ok := s.Constrain(result, constraint.Null); ok {
		ctx.AddTransition(null)
	}
	s, _ = s.Constrain(result, constraint.NotNull)
	return s
}
