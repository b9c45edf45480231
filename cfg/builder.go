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
	"go/token"
)

// MethodBuilder assembles a method and its graph. It is used by the unit loader and by tests.
// Instructions get consecutive source lines unless a block pins a line with At.
type MethodBuilder struct {
	unit   *Unit
	m      *Method
	blocks []*BlockBuilder
	line   int
}

// NewMethod starts the declaration of a method in the unit. The method is only added to the unit
// by Build or Declare.
func (u *Unit) NewMethod(id, name string) *MethodBuilder {
	return &MethodBuilder{
		unit: u,
		m: &Method{
			ID:      id,
			Name:    name,
			Pos:     token.Position{Filename: u.Name, Line: 1, Column: 1},
			Returns: Return{Void: true},
			unit:    u,
		},
		line: 1,
	}
}

// Line sets the declaration line of the method; instruction lines continue from it.
func (mb *MethodBuilder) Line(line int) *MethodBuilder {
	mb.line = line
	mb.m.Pos.Line = line
	return mb
}

// Static marks the method static.
func (mb *MethodBuilder) Static() *MethodBuilder {
	mb.m.Static = true
	return mb
}

// Param declares the next parameter.
func (mb *MethodBuilder) Param(name, typ string, n Nullability) SymbolID {
	s := mb.unit.AddSymbol(name, Param, typ, isPrimitive(typ), n)
	mb.m.Params = append(mb.m.Params, s.ID)
	return s.ID
}

// Local declares a local variable.
func (mb *MethodBuilder) Local(name, typ string) SymbolID {
	return mb.unit.AddSymbol(name, Local, typ, isPrimitive(typ), UnknownNullness).ID
}

// Returns sets the return contract. A "void" type makes the method return nothing.
func (mb *MethodBuilder) Returns(typ string, n Nullability) *MethodBuilder {
	mb.m.Returns = Return{Void: typ == "void" || typ == "", Type: typ, Primitive: isPrimitive(typ), Nullability: n}
	return mb
}

// Throws declares the checked exceptions of the method.
func (mb *MethodBuilder) Throws(types ...string) *MethodBuilder {
	mb.m.Throws = append(mb.m.Throws, types...)
	return mb
}

// Block appends a new block. The first block is the entry.
func (mb *MethodBuilder) Block() *BlockBuilder {
	bb := &BlockBuilder{mb: mb, b: &Block{ID: len(mb.blocks)}}
	mb.blocks = append(mb.blocks, bb)
	return bb
}

// Build appends the exit block, validates the graph and adds the method to the unit.
func (mb *MethodBuilder) Build() (*Method, error) {
	blocks := make([]*Block, 0, len(mb.blocks)+1)
	for _, bb := range mb.blocks {
		blocks = append(blocks, bb.b)
	}
	exit := len(blocks)
	blocks = append(blocks, &Block{ID: exit})
	g, err := NewGraph(blocks, 0, exit)
	if err != nil {
		return nil, err
	}
	mb.m.Body = g
	return mb.Declare()
}

// Declare adds the method to the unit without building a body.
func (mb *MethodBuilder) Declare() (*Method, error) {
	if err := mb.unit.addMethod(mb.m); err != nil {
		return nil, err
	}
	return mb.m, nil
}

// BlockBuilder appends instructions to one block.
type BlockBuilder struct {
	mb   *MethodBuilder
	b    *Block
	line int
}

// ID returns the block ID.
func (bb *BlockBuilder) ID() int {
	return bb.b.ID
}

// At pins the source line of the following instructions of this block.
func (bb *BlockBuilder) At(line int) *BlockBuilder {
	bb.line = line
	return bb
}

// Catch adds an exception handler covering the block.
func (bb *BlockBuilder) Catch(target *BlockBuilder, types ...string) *BlockBuilder {
	bb.b.Handlers = append(bb.b.Handlers, Handler{Types: types, Target: target.b.ID})
	return bb
}

// Last returns the last appended instruction.
func (bb *BlockBuilder) Last() *Instruction {
	return &bb.b.Instructions[len(bb.b.Instructions)-1]
}

// Instructions returns the instructions appended so far.
func (bb *BlockBuilder) Instructions() []Instruction {
	return bb.b.Instructions
}

// Text overrides the source text of the last appended instruction.
func (bb *BlockBuilder) Text(text string) *BlockBuilder {
	bb.Last().Text = text
	return bb
}

func (bb *BlockBuilder) add(inst Instruction) *BlockBuilder {
	line := bb.line
	if line == 0 {
		bb.mb.line++
		line = bb.mb.line
	}
	inst.Pos = token.Position{Filename: bb.mb.unit.Name, Line: line, Column: 1}
	if inst.Op != OpLoad && inst.Op != OpStore && inst.Op != OpDeclare {
		inst.Symbol = NoSymbol
	}
	bb.b.Instructions = append(bb.b.Instructions, inst)
	return bb
}

func (bb *BlockBuilder) name(sym SymbolID) string {
	if s := bb.mb.unit.Symbol(sym); s != nil {
		return s.Name
	}
	return ""
}

// Null pushes the null literal.
func (bb *BlockBuilder) Null() *BlockBuilder {
	return bb.add(Instruction{Op: OpLiteral, Literal: LitNull, Text: "null"})
}

// Bool pushes a boolean literal.
func (bb *BlockBuilder) Bool(v bool) *BlockBuilder {
	if v {
		return bb.add(Instruction{Op: OpLiteral, Literal: LitTrue, Text: "true"})
	}
	return bb.add(Instruction{Op: OpLiteral, Literal: LitFalse, Text: "false"})
}

// Number pushes a numeric literal.
func (bb *BlockBuilder) Number(v string) *BlockBuilder {
	return bb.add(Instruction{Op: OpLiteral, Literal: LitNumber, Value: v, Text: v})
}

// Str pushes a string literal.
func (bb *BlockBuilder) Str(v string) *BlockBuilder {
	return bb.add(Instruction{Op: OpLiteral, Literal: LitString, Value: v, Text: "\"" + v + "\""})
}

// Load pushes the value of a symbol.
func (bb *BlockBuilder) Load(sym SymbolID) *BlockBuilder {
	return bb.add(Instruction{Op: OpLoad, Symbol: sym, Text: bb.name(sym)})
}

// Store pops a value into a symbol.
func (bb *BlockBuilder) Store(sym SymbolID) *BlockBuilder {
	return bb.add(Instruction{Op: OpStore, Symbol: sym, Text: bb.name(sym)})
}

// Declare declares a local, popping its initializer if init is set.
func (bb *BlockBuilder) Declare(sym SymbolID, init bool) *BlockBuilder {
	return bb.add(Instruction{Op: OpDeclare, Symbol: sym, HasInit: init, Text: bb.name(sym)})
}

// Binary applies a binary operator to the two topmost values.
func (bb *BlockBuilder) Binary(op Operator) *BlockBuilder {
	return bb.add(Instruction{Op: OpBinary, Operator: op, Text: op.String()})
}

// Unary applies a unary operator to the topmost value.
func (bb *BlockBuilder) Unary(op Operator) *BlockBuilder {
	return bb.add(Instruction{Op: OpUnary, Operator: op, Text: op.String()})
}

// Select reads member name of the topmost value.
func (bb *BlockBuilder) Select(name string) *BlockBuilder {
	return bb.add(Instruction{Op: OpSelect, Name: name, Text: "." + name})
}

// Invoke calls method with args arguments.
func (bb *BlockBuilder) Invoke(method string, args int, recv Receiver) *BlockBuilder {
	name := SimpleName(method)
	return bb.add(Instruction{Op: OpInvoke, Method: method, Name: name, Args: args, Receiver: recv, Text: name + "()"})
}

// New instantiates typ with args constructor arguments.
func (bb *BlockBuilder) New(typ string, args int) *BlockBuilder {
	return bb.add(Instruction{Op: OpNew, Type: typ, Method: typ + "#<init>", Args: args, Text: "new " + typ + "()"})
}

// NewResource instantiates a type that must be closed after use.
func (bb *BlockBuilder) NewResource(typ string, args int) *BlockBuilder {
	bb.New(typ, args)
	bb.Last().Resource = true
	return bb
}

// Pop discards the topmost value.
func (bb *BlockBuilder) Pop() *BlockBuilder {
	return bb.add(Instruction{Op: OpPop})
}

// Cast converts the topmost value.
func (bb *BlockBuilder) Cast(typ string) *BlockBuilder {
	return bb.add(Instruction{Op: OpCast, Type: typ, Text: "(" + typ + ")"})
}

// InstanceOf tests the topmost value against typ.
func (bb *BlockBuilder) InstanceOf(typ string) *BlockBuilder {
	return bb.add(Instruction{Op: OpInstanceOf, Type: typ, Text: "instanceof " + typ})
}

// Goto ends the block with a jump.
func (bb *BlockBuilder) Goto(target *BlockBuilder) *BlockBuilder {
	return bb.add(Instruction{Op: OpGoto, Targets: []int{target.b.ID}})
}

// Branch ends the block with a conditional jump on the topmost value.
func (bb *BlockBuilder) Branch(then, els *BlockBuilder) *BlockBuilder {
	return bb.add(Instruction{Op: OpBranch, Targets: []int{then.b.ID, els.b.ID}, Text: "if"})
}

// Return ends the block with a return without value.
func (bb *BlockBuilder) Return() *BlockBuilder {
	return bb.add(Instruction{Op: OpReturn, Text: "return"})
}

// ReturnValue ends the block returning the topmost value.
func (bb *BlockBuilder) ReturnValue() *BlockBuilder {
	return bb.add(Instruction{Op: OpReturn, HasValue: true, Text: "return"})
}

// Throw ends the block throwing the topmost value.
func (bb *BlockBuilder) Throw() *BlockBuilder {
	return bb.add(Instruction{Op: OpThrow, Text: "throw"})
}
