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

package cfg

import (
	"fmt"
	"go/token"
	"strings"
)

// Op is the kind of an instruction. The instruction set is stack based: operands are pushed by
// literal and load instructions and popped by operators, calls and terminators.
type Op uint8

const (
	// OpLiteral pushes a literal.
	OpLiteral Op = iota
	// OpLoad pushes the value bound to Symbol.
	OpLoad
	// OpStore pops a value and binds it to Symbol.
	OpStore
	// OpDeclare declares Symbol, popping its initializer if HasInit is set.
	OpDeclare
	// OpBinary pops two operands and pushes the result of Operator.
	OpBinary
	// OpUnary pops one operand and pushes the result of Operator.
	OpUnary
	// OpSelect pops a receiver and pushes the value of its member Name. It dereferences the receiver.
	OpSelect
	// OpInvoke pops Args arguments (and the receiver for ReceiverValue) and pushes the result.
	OpInvoke
	// OpNew pops Args constructor arguments and pushes a new instance of Type.
	OpNew
	// OpPop discards the top of the stack.
	OpPop
	// OpCast converts the top of the stack to Type.
	OpCast
	// OpInstanceOf pops a value and pushes whether it is an instance of Type.
	OpInstanceOf

	// OpGoto jumps to Targets[0].
	OpGoto
	// OpBranch pops a condition and jumps to Targets[0] when true, Targets[1] otherwise.
	OpBranch
	// OpReturn leaves the method, popping the returned value if HasValue is set.
	OpReturn
	// OpThrow pops an exception and throws it.
	OpThrow
)

var _opNames = [...]string{
	OpLiteral:    "literal",
	OpLoad:       "load",
	OpStore:      "store",
	OpDeclare:    "declare",
	OpBinary:     "binary",
	OpUnary:      "unary",
	OpSelect:     "select",
	OpInvoke:     "invoke",
	OpNew:        "new",
	OpPop:        "pop",
	OpCast:       "cast",
	OpInstanceOf: "instanceof",
	OpGoto:       "goto",
	OpBranch:     "branch",
	OpReturn:     "return",
	OpThrow:      "throw",
}

func (o Op) String() string {
	if int(o) < len(_opNames) {
		return _opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// ParseOp parses the textual name of an instruction kind.
func ParseOp(s string) (Op, error) {
	for i, n := range _opNames {
		if n == s {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown instruction %q", s)
}

// IsTerminator returns true for instructions that end a block.
func (o Op) IsTerminator() bool {
	return o >= OpGoto
}

// Operator is the operator of a binary or unary instruction.
type Operator uint8

const (
	NoOperator Operator = iota
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Plus
	Minus
	Mul
	Div
	Rem
	And
	Or
	Xor
	Not
	Complement
)

var _operatorNames = [...]string{
	NoOperator: "",
	Eq:         "==",
	Ne:         "!=",
	Lt:         "<",
	Le:         "<=",
	Gt:         ">",
	Ge:         ">=",
	Plus:       "+",
	Minus:      "-",
	Mul:        "*",
	Div:        "/",
	Rem:        "%",
	And:        "&",
	Or:         "|",
	Xor:        "^",
	Not:        "!",
	Complement: "~",
}

func (o Operator) String() string {
	if int(o) < len(_operatorNames) {
		return _operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", o)
}

// ParseOperator parses the source form of an operator.
func ParseOperator(s string) (Operator, error) {
	for i, n := range _operatorNames {
		if i != 0 && n == s {
			return Operator(i), nil
		}
	}
	return NoOperator, fmt.Errorf("unknown operator %q", s)
}

// IsRelational returns true for comparison operators.
func (o Operator) IsRelational() bool {
	return o >= Eq && o <= Ge
}

// Negate returns the comparison that holds exactly when o does not.
func (o Operator) Negate() Operator {
	switch o {
	case Eq:
		return Ne
	case Ne:
		return Eq
	case Lt:
		return Ge
	case Ge:
		return Lt
	case Gt:
		return Le
	case Le:
		return Gt
	}
	return o
}

// LiteralKind is the kind of a literal instruction.
type LiteralKind uint8

const (
	LitNull LiteralKind = iota
	LitTrue
	LitFalse
	LitNumber
	LitString
	LitOther
)

var _literalNames = [...]string{"null", "true", "false", "number", "string", "other"}

func (k LiteralKind) String() string {
	if int(k) < len(_literalNames) {
		return _literalNames[k]
	}
	return fmt.Sprintf("LiteralKind(%d)", k)
}

// ParseLiteralKind parses the name of a literal kind.
func ParseLiteralKind(s string) (LiteralKind, error) {
	for i, n := range _literalNames {
		if n == s {
			return LiteralKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown literal kind %q", s)
}

// Receiver tells how the receiver of a call is provided.
type Receiver uint8

const (
	// ReceiverNone is a static call.
	ReceiverNone Receiver = iota
	// ReceiverValue is an explicit receiver, pushed before the arguments.
	ReceiverValue
	// ReceiverThis is an implicit call on the current instance.
	ReceiverThis
)

// Instruction is a single typed element of a block. Only the fields relevant to Op are set.
type Instruction struct {
	Op Op
	// Pos and Text locate the instruction in the source for reporting.
	Pos  token.Position
	Text string

	Symbol   SymbolID
	Literal  LiteralKind
	Value    string
	Operator Operator
	Method   string
	Name     string
	Type     string
	Args     int
	Receiver Receiver
	Resource bool
	HasInit  bool
	HasValue bool
	Targets  []int
}

// IsDivision returns true for the division and remainder operators.
func (i *Instruction) IsDivision() bool {
	return i.Op == OpBinary && (i.Operator == Div || i.Operator == Rem)
}

// Dereferences returns true if executing the instruction dereferences the value under the
// arguments, i.e. a member selection or a call on an explicit receiver.
func (i *Instruction) Dereferences() bool {
	return i.Op == OpSelect || (i.Op == OpInvoke && i.Receiver == ReceiverValue)
}

// StackDepth returns the number of operands the instruction consumes.
func (i *Instruction) StackDepth() int {
	switch i.Op {
	case OpStore, OpUnary, OpSelect, OpPop, OpCast, OpInstanceOf, OpBranch, OpThrow:
		return 1
	case OpDeclare:
		if i.HasInit {
			return 1
		}
	case OpBinary:
		return 2
	case OpInvoke:
		if i.Receiver == ReceiverValue {
			return i.Args + 1
		}
		return i.Args
	case OpNew:
		return i.Args
	case OpReturn:
		if i.HasValue {
			return 1
		}
	}
	return 0
}

func (i *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.Op.String())
	switch i.Op {
	case OpLiteral:
		sb.WriteString(" " + i.Literal.String())
		if i.Value != "" {
			sb.WriteString(" " + i.Value)
		}
	case OpLoad, OpStore, OpDeclare:
		fmt.Fprintf(&sb, " #%d", i.Symbol)
	case OpBinary, OpUnary:
		sb.WriteString(" " + i.Operator.String())
	case OpSelect:
		sb.WriteString(" " + i.Name)
	case OpInvoke, OpNew:
		fmt.Fprintf(&sb, " %s/%d", i.Method, i.Args)
	case OpGoto, OpBranch:
		fmt.Fprintf(&sb, " %v", i.Targets)
	}
	if i.Text != "" {
		fmt.Fprintf(&sb, " (%s)", i.Text)
	}
	return sb.String()
}
