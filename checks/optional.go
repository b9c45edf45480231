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
	"go.uber.org/symex/symbolic"
	"go.uber.org/symex/yield"
)

var _optionalGet = map[string]bool{
	"java.util.Optional#get()": true,
	"Optional#get()":           true,
}

// OptionalGetBeforeIsPresent reports values read from an optional not known to be present. After
// the report the optional is assumed present, so that a single access is reported per path.
type OptionalGetBeforeIsPresent struct {
	reported map[*cfg.Instruction]bool
}

func (c *OptionalGetBeforeIsPresent) Name() string { return "OptionalGetBeforeIsPresent" }

func (c *OptionalGetBeforeIsPresent) Init(*cfg.Method) {
	c.reported = make(map[*cfg.Instruction]bool)
}

func (c *OptionalGetBeforeIsPresent) PreStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	if inst.Op != cfg.OpInvoke || inst.Receiver != cfg.ReceiverValue || !_optionalGet[inst.Method] {
		return s
	}
	opt := s.PeekValues(inst.StackDepth())[0]

	switch s.Constraint(opt, constraint.Presence) {
	case constraint.Present:
		return s
	case constraint.Absent:
		ctx.AddExceptionalYield(opt, s, yield.NoSuchElementException)
		c.report(ctx, inst, opt)
		return nil
	}
	// Fields may have been checked by another method.
	if boundToField(ctx, opt) {
		return s
	}
	if absent, ok := s.Constrain(opt, constraint.Absent); ok {
		ctx.AddExceptionalYield(opt, absent, yield.NoSuchElementException)
	}
	c.report(ctx, inst, opt)
	s, _ = s.Constrain(opt, constraint.Present)
	return s
}

func (c *OptionalGetBeforeIsPresent) report(ctx *engine.Context, inst *cfg.Instruction, opt *symbolic.Value) {
	if c.reported[inst] {
		return
	}
	c.reported[inst] = true

	owner := "Optional#"
	name := nameOf(ctx, opt)
	if len(ctx.State().Symbols(opt)) > 0 {
		owner = name + "."
	}
	flows := withLocation(flow.Location{Pos: inst.Pos, Message: fmt.Sprintf("'%s' is read.", name)},
		ctx.Flows(opt, constraint.Presence))
	ctx.ReportIssue(inst.Pos,
		fmt.Sprintf("Call \"%sisPresent()\" or \"!%sisEmpty()\" before accessing the value.", owner, owner), flows)
}

func boundToField(ctx *engine.Context, v *symbolic.Value) bool {
	for _, id := range ctx.State().Symbols(v) {
		if sym := ctx.Method().Symbol(id); sym != nil && sym.Kind == cfg.Field {
			return true
		}
	}
	return false
}
