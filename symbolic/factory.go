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

package symbolic

import (
	"go.uber.org/symex/cfg"
)

type relationKey struct {
	op          cfg.Operator
	left, right int
}

// Factory allocates symbolic values for one engine. Relational and negation values are interned,
// so evaluating the same comparison of the same values twice yields the same identity. A Factory
// is not safe for concurrent use.
type Factory struct {
	next      int
	null      *Value
	trueLit   *Value
	falseLit  *Value
	relations map[relationKey]*Value
	negations map[int]*Value
}

// NewFactory creates a factory with its literal values preallocated.
func NewFactory() *Factory {
	f := &Factory{
		relations: make(map[relationKey]*Value),
		negations: make(map[int]*Value),
	}
	f.null = f.alloc(NullLiteral)
	f.trueLit = f.alloc(TrueLiteral)
	f.falseLit = f.alloc(FalseLiteral)
	return f
}

func (f *Factory) alloc(kind Kind) *Value {
	v := &Value{id: f.next, kind: kind}
	f.next++
	return v
}

// Null returns the null literal.
func (f *Factory) Null() *Value {
	return f.null
}

// Bool returns the true or false literal.
func (f *Factory) Bool(b bool) *Value {
	if b {
		return f.trueLit
	}
	return f.falseLit
}

// Fresh allocates a new plain value.
func (f *Factory) Fresh() *Value {
	return f.alloc(Plain)
}

// Relation returns the value of "left op right". Equality and inequality are symmetric, so their
// operands are ordered by ID before interning.
func (f *Factory) Relation(op cfg.Operator, left, right *Value) *Value {
	if (op == cfg.Eq || op == cfg.Ne) && right.id < left.id {
		left, right = right, left
	}
	key := relationKey{op: op, left: left.id, right: right.id}
	if v, ok := f.relations[key]; ok {
		return v
	}
	v := f.alloc(Relational)
	v.op = op
	v.operands = []*Value{left, right}
	f.relations[key] = v
	return v
}

// Not returns the negation of operand. The negation of a negation is the original value.
func (f *Factory) Not(operand *Value) *Value {
	if operand.kind == Negation {
		return operand.operands[0]
	}
	if v, ok := f.negations[operand.id]; ok {
		return v
	}
	v := f.alloc(Negation)
	v.operands = []*Value{operand}
	f.negations[operand.id] = v
	return v
}

// Exceptional wraps a thrown value. An empty type means the exception type is unknown.
func (f *Factory) Exceptional(thrown *Value, excType string) *Value {
	v := f.alloc(Exceptional)
	v.excType = excType
	if thrown != nil {
		v.operands = []*Value{thrown}
	}
	return v
}

// Count returns the number of values allocated so far.
func (f *Factory) Count() int {
	return f.next
}
