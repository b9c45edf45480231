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
	"go.uber.org/symex/symbolic"
)

// UnclosedResources reports the resources still open when a path leaves the method normally. A
// resource is closed by calling close on it. Passing it to another method or constructor, storing
// it in a field or returning it hands it over, and it is no longer tracked.
type UnclosedResources struct {
	created  map[*symbolic.Value]*cfg.Instruction
	reported map[*cfg.Instruction]bool
}

func (c *UnclosedResources) Name() string { return "UnclosedResources" }

func (c *UnclosedResources) Init(*cfg.Method) {
	c.created = make(map[*symbolic.Value]*cfg.Instruction)
	c.reported = make(map[*cfg.Instruction]bool)
}

func (c *UnclosedResources) PreStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	switch inst.Op {
	case cfg.OpInvoke:
		values := s.PeekValues(inst.StackDepth())
		if inst.Receiver == cfg.ReceiverValue && inst.Name == "close" {
			return release(s, values[0])
		}
		if inst.Receiver == cfg.ReceiverValue {
			values = values[1:]
		}
		return release(s, values...)
	case cfg.OpNew:
		return release(s, s.PeekValues(inst.Args)...)
	case cfg.OpReturn:
		if inst.HasValue {
			return release(s, s.Peek())
		}
	case cfg.OpStore:
		if sym := ctx.Method().Symbol(inst.Symbol); sym != nil && sym.Kind == cfg.Field {
			return release(s, s.Peek())
		}
	}
	return s
}

// PostStatement remembers where each resource is created.
func (c *UnclosedResources) PostStatement(ctx *engine.Context, inst *cfg.Instruction) *state.ProgramState {
	s := ctx.State()
	if inst.Op == cfg.OpNew && inst.Resource {
		c.created[s.Peek()] = inst
	}
	return s
}

func (c *UnclosedResources) EndOfExecutionPath(ctx *engine.Context) {
	s := ctx.State()
	if s.ExceptionInFlight() {
		return
	}
	for _, v := range s.ValuesWith(constraint.Open) {
		inst, ok := c.created[v]
		if !ok || c.reported[inst] {
			continue
		}
		c.reported[inst] = true
		ctx.ReportIssue(inst.Pos,
			fmt.Sprintf("Use try-with-resources or close this %q in a \"finally\" clause.", simpleType(inst.Type)), nil)
	}
}

func release(s *state.ProgramState, values ...*symbolic.Value) *state.ProgramState {
	for _, v := range values {
		if s.Has(v, constraint.Open) {
			s = s.WithConstraint(v, constraint.Closed)
		}
	}
	return s
}
