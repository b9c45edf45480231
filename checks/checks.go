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

// Package checks implements the defect detectors driven by the symbolic execution engine. Each
// check reacts to a few engine hooks and reports issues through the engine Context.
package checks

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/flow"
	"go.uber.org/symex/symbolic"
)

// ErrUnknownCheck is returned when a configuration names a check that does not exist.
var ErrUnknownCheck = errors.New("unknown check")

var _constructors = []func() engine.Check{
	func() engine.Check { return &NullDereference{} },
	func() engine.Check { return &ConditionAlwaysTrueOrFalse{} },
	func() engine.Check { return &UnclosedResources{} },
	func() engine.Check { return &NonNullSetToNull{} },
	func() engine.Check { return &DivisionByZero{} },
	func() engine.Check { return &OptionalGetBeforeIsPresent{} },
}

// Names returns the names of all checks.
func Names() []string {
	names := make([]string, len(_constructors))
	for i, ctor := range _constructors {
		names[i] = ctor().Name()
	}
	return names
}

// Registry returns the registry of the named checks, or of all checks if names is empty.
func Registry(names ...string) (*engine.Registry, error) {
	if len(names) == 0 {
		return engine.NewRegistry(_constructors...), nil
	}
	var ctors []func() engine.Check
	for _, name := range names {
		i := slices.Index(Names(), name)
		if i < 0 {
			return nil, fmt.Errorf("%w %q, available checks: %s", ErrUnknownCheck, name, strings.Join(Names(), ", "))
		}
		ctors = append(ctors, _constructors[i])
	}
	return engine.NewRegistry(ctors...), nil
}

// _maxNameLookback bounds the backward walk used to name an anonymous value.
const _maxNameLookback = 64

// nameOf returns how v reads in the source: the variable holding it, or else the text of the
// expression that produced it.
func nameOf(ctx *engine.Context, v *symbolic.Value) string {
	for _, id := range ctx.State().Symbols(v) {
		if sym := ctx.Method().Symbol(id); sym != nil {
			return sym.Name
		}
	}
	cur := ctx.Node()
	for i := 0; cur != nil && i < _maxNameLookback; i++ {
		edges := cur.Edges()
		if len(edges) == 0 {
			break
		}
		e := edges[0]
		if e.Instruction != nil && e.Instruction.Text != "" && producedBy(e, v) {
			return e.Instruction.Text
		}
		cur = e.Parent
	}
	return "value"
}

// producedBy returns true if the instruction of e pushed v.
func producedBy(e *explodedgraph.Edge, v *symbolic.Value) bool {
	switch e.Instruction.Op {
	case cfg.OpLiteral, cfg.OpInvoke, cfg.OpSelect, cfg.OpNew, cfg.OpBinary, cfg.OpUnary:
	default:
		return false
	}
	child := e.Child().State
	return child.StackSize() > 0 && child.Peek() == v
}

// withLocation prepends loc to every flow, or returns a single flow made of loc.
func withLocation(loc flow.Location, flows []flow.Flow) []flow.Flow {
	if len(flows) == 0 {
		return []flow.Flow{{loc}}
	}
	out := make([]flow.Flow, len(flows))
	for i, f := range flows {
		out[i] = append(flow.Flow{loc}, f...)
	}
	return out
}

// simpleType strips the package of a qualified type name.
func simpleType(t string) string {
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		return t[i+1:]
	}
	return t
}
