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
)

// DivisionByZero reports divisions and remainders by a zero divisor. The path stops at such a
// division; on the others the divisor is known to be non-zero afterwards.
type DivisionByZero struct {
	reported map[*cfg.Instruction]bool
}

func (c *DivisionByZero) Name() string { return "DivisionByZero" }

func (c *DivisionByZero) Init(*cfg.Method) {
	c.reported = make(map[*cfg.Instruction]bool)
}

func (c *DivisionByZero) PreStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	if !inst.IsDivision() {
		return s
	}
	divisor := s.PeekValues(2)[1]
	switch s.Constraint(divisor, constraint.Zero) {
	case constraint.IsZero:
		if !c.reported[inst] {
			c.reported[inst] = true
			name := nameOf(ctx, divisor)
			flows := withLocation(flow.Location{Pos: inst.Pos, Message: fmt.Sprintf("'%s' is used as divisor.", name)},
				ctx.Flows(divisor, constraint.Zero))
			ctx.ReportIssue(inst.Pos, fmt.Sprintf("Make sure %q can't be zero before doing this division.", name), flows)
		}
		return nil
	case constraint.None:
		s, _ = s.Constrain(divisor, constraint.NonZero)
	}
	return s
}
