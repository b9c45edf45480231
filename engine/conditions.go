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
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/util/orderedmap"
)

type outcome struct {
	evaluatedTrue  bool
	evaluatedFalse bool
}

// Conditions collects the outcomes of the conditional branches of an exploration, in the order
// the branches were first evaluated.
type Conditions struct {
	outcomes *orderedmap.OrderedMap[*cfg.Instruction, *outcome]
}

func newConditions() *Conditions {
	return &Conditions{outcomes: orderedmap.New[*cfg.Instruction, *outcome]()}
}

func (c *Conditions) record(inst *cfg.Instruction, value bool) {
	o, ok := c.outcomes.Load(inst)
	if !ok {
		o = &outcome{}
		c.outcomes.Store(inst, o)
	}
	if value {
		o.evaluatedTrue = true
	} else {
		o.evaluatedFalse = true
	}
}

// AlwaysTrue returns the branches whose condition never evaluated to false.
func (c *Conditions) AlwaysTrue() []*cfg.Instruction {
	return c.filter(func(o *outcome) bool { return o.evaluatedTrue && !o.evaluatedFalse })
}

// AlwaysFalse returns the branches whose condition never evaluated to true.
func (c *Conditions) AlwaysFalse() []*cfg.Instruction {
	return c.filter(func(o *outcome) bool { return o.evaluatedFalse && !o.evaluatedTrue })
}

func (c *Conditions) filter(keep func(*outcome) bool) []*cfg.Instruction {
	var insts []*cfg.Instruction
	c.outcomes.OrderedRange(func(inst *cfg.Instruction, o *outcome) bool {
		if keep(o) {
			insts = append(insts, inst)
		}
		return true
	})
	return insts
}
