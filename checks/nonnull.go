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
	"go.uber.org/symex/state"
)

// NonNullSetToNull reports null flowing into a location declared non-null: a field, the value
// returned by the method, or a parameter of a callee.
type NonNullSetToNull struct {
	method   *cfg.Method
	reported map[string]bool
}

func (c *NonNullSetToNull) Name() string { return "NonNullSetToNull" }

func (c *NonNullSetToNull) Init(m *cfg.Method) {
	c.method = m
	c.reported = make(map[string]bool)
}

func (c *NonNullSetToNull) PreStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	switch inst.Op {
	case cfg.OpStore:
		sym := c.method.Symbol(inst.Symbol)
		if sym != nil && sym.Kind == cfg.Field && sym.Nullability == cfg.NonNull && s.Has(s.Peek(), constraint.Null) {
			c.report(ctx, inst, fmt.Sprintf("%q is marked \"NonNull\" but is set to null.", sym.Name))
		}
	case cfg.OpReturn:
		ret := c.method.Returns
		if inst.HasValue && ret.Nullability == cfg.NonNull && s.Has(s.Peek(), constraint.Null) {
			c.report(ctx, inst, "This method's return value is marked \"NonNull\" but null is returned.")
		}
	case cfg.OpInvoke, cfg.OpNew:
		callee, ok := ctx.Program().Method(inst.Method)
		if !ok {
			break
		}
		args := s.PeekValues(inst.Args)
		for i, arg := range args {
			if i >= len(callee.Params) || callee.Param(i).Nullability != cfg.NonNull || !s.Has(arg, constraint.Null) {
				continue
			}
			c.report(ctx, inst, fmt.Sprintf("Parameter %d to this call is marked \"NonNull\" but null could be passed.", i+1))
		}
	}
	return s
}

func (c *NonNullSetToNull) report(ctx *engine.Context, inst *cfg.Instruction, msg string) {
	key := inst.Pos.String() + "\x00" + msg
	if c.reported[key] {
		return
	}
	c.reported[key] = true
	ctx.ReportIssue(inst.Pos, msg, nil)
}
