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

// Package symbolic implements the symbolic value store. A symbolic value stands for some runtime
// value at a program point; it carries no concrete data, only an identity and, for derived values,
// the relation it was built from.
package symbolic

import (
	"fmt"

	"go.uber.org/symex/cfg"
)

// Kind is the variant of a symbolic value.
type Kind uint8

const (
	// Plain is a fresh, otherwise unknown value.
	Plain Kind = iota
	// NullLiteral is the null literal.
	NullLiteral
	// TrueLiteral is the true literal.
	TrueLiteral
	// FalseLiteral is the false literal.
	FalseLiteral
	// Relational is the boolean outcome of a comparison between two values.
	Relational
	// Negation is the boolean negation of another value.
	Negation
	// Exceptional is a thrown exception wrapping the thrown value.
	Exceptional
)

var _kindNames = [...]string{"plain", "null", "true", "false", "relational", "negation", "exceptional"}

func (k Kind) String() string {
	if int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a symbolic value. Values are compared by identity: two distinct *Value never denote the
// same symbolic value. IDs are unique within the Factory that created them.
type Value struct {
	id       int
	kind     Kind
	op       cfg.Operator
	operands []*Value
	excType  string
}

// ID returns the factory-scoped identifier of v.
func (v *Value) ID() int {
	return v.id
}

// Kind returns the variant of v.
func (v *Value) Kind() Kind {
	return v.kind
}

// Operator returns the comparison operator of a relational value.
func (v *Value) Operator() cfg.Operator {
	return v.op
}

// Operands returns the operands of a relational (two) or negation (one) value, or the thrown value
// of an exceptional value.
func (v *Value) Operands() []*Value {
	return v.operands
}

// ExceptionType returns the type of an exceptional value. It is empty when unknown.
func (v *Value) ExceptionType() string {
	return v.excType
}

// Wrapped returns the value an exceptional value wraps, or v itself.
func (v *Value) Wrapped() *Value {
	if v.kind == Exceptional && len(v.operands) == 1 {
		return v.operands[0]
	}
	return v
}

// IsLiteral returns true for the null, true and false literals.
func (v *Value) IsLiteral() bool {
	return v.kind == NullLiteral || v.kind == TrueLiteral || v.kind == FalseLiteral
}

func (v *Value) String() string {
	switch v.kind {
	case NullLiteral:
		return "SV_NULL"
	case TrueLiteral:
		return "SV_TRUE"
	case FalseLiteral:
		return "SV_FALSE"
	case Relational:
		return fmt.Sprintf("SV_%d(%s %s %s)", v.id, v.operands[0], v.op, v.operands[1])
	case Negation:
		return fmt.Sprintf("SV_%d(!%s)", v.id, v.operands[0])
	case Exceptional:
		return fmt.Sprintf("SV_%d(throw %s)", v.id, v.excType)
	}
	return fmt.Sprintf("SV_%d", v.id)
}
