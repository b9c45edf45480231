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
	"os"

	"gopkg.in/yaml.v3"
)

// The unit file format is the serialized output of the front-end. YAML is used so that JSON dumps
// are accepted as well.

type unitFile struct {
	Name       string            `yaml:"name"`
	Supertypes map[string]string `yaml:"supertypes"`
	Fields     []symbolFile      `yaml:"fields"`
	Methods    []methodFile      `yaml:"methods"`
	Comments   []Comment         `yaml:"comments"`
}

type symbolFile struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Nullability string `yaml:"nullability"`
}

type methodFile struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Line    int          `yaml:"line"`
	Static  bool         `yaml:"static"`
	Params  []symbolFile `yaml:"params"`
	Locals  []symbolFile `yaml:"locals"`
	Returns symbolFile   `yaml:"returns"`
	Throws  []string     `yaml:"throws"`
	Blocks  []blockFile  `yaml:"blocks"`
}

type blockFile struct {
	ID           int               `yaml:"id"`
	Handlers     []handlerFile     `yaml:"handlers"`
	Instructions []instructionFile `yaml:"instructions"`
}

type handlerFile struct {
	Types  []string `yaml:"types"`
	Target int      `yaml:"target"`
}

type instructionFile struct {
	Op        string `yaml:"op"`
	Line      int    `yaml:"line"`
	Col       int    `yaml:"col"`
	Text      string `yaml:"text"`
	Symbol    string `yaml:"symbol"`
	Literal   string `yaml:"literal"`
	Value     string `yaml:"value"`
	Operator  string `yaml:"operator"`
	Method    string `yaml:"method"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Args      int    `yaml:"args"`
	Receiver  string `yaml:"receiver"`
	Resource  bool   `yaml:"resource"`
	Init      bool   `yaml:"init"`
	WithValue bool   `yaml:"with-value"`
	Targets   []int  `yaml:"targets"`
}

// Load reads a unit file.
func Load(path string) (*Unit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit file: %w", err)
	}
	u, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", path, err)
	}
	return u, nil
}

// Parse decodes a unit from YAML or JSON.
func Parse(b []byte) (*Unit, error) {
	var f unitFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}

	u := NewUnit(f.Name)
	u.Comments = f.Comments
	for t, super := range f.Supertypes {
		u.Supertypes[t] = super
	}
	fields := make(map[string]SymbolID)
	for _, sf := range f.Fields {
		n, err := ParseNullability(sf.Nullability)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", sf.Name, err)
		}
		fields[sf.Name] = u.AddField(sf.Name, sf.Type, n)
	}
	for _, mf := range f.Methods {
		if err := mf.build(u, fields); err != nil {
			return nil, fmt.Errorf("method %q: %w", mf.ID, err)
		}
	}
	return u, nil
}

func (mf *methodFile) build(u *Unit, fields map[string]SymbolID) error {
	name := mf.Name
	if name == "" {
		name = SimpleName(mf.ID)
	}
	mb := u.NewMethod(mf.ID, name)
	if mf.Line > 0 {
		mb.Line(mf.Line)
	}
	if mf.Static {
		mb.Static()
	}
	scope := make(map[string]SymbolID, len(fields))
	for k, v := range fields {
		scope[k] = v
	}
	for _, p := range mf.Params {
		n, err := ParseNullability(p.Nullability)
		if err != nil {
			return fmt.Errorf("param %q: %w", p.Name, err)
		}
		scope[p.Name] = mb.Param(p.Name, p.Type, n)
	}
	for _, l := range mf.Locals {
		scope[l.Name] = mb.Local(l.Name, l.Type)
	}
	n, err := ParseNullability(mf.Returns.Nullability)
	if err != nil {
		return fmt.Errorf("returns: %w", err)
	}
	mb.Returns(mf.Returns.Type, n)
	mb.Throws(mf.Throws...)

	if len(mf.Blocks) == 0 {
		_, err := mb.Declare()
		return err
	}

	blocks := make([]*Block, len(mf.Blocks)+1)
	for _, bf := range mf.Blocks {
		if bf.ID < 0 || bf.ID >= len(mf.Blocks) || blocks[bf.ID] != nil {
			return fmt.Errorf("%w: invalid or duplicate block id %d", ErrMalformedGraph, bf.ID)
		}
		b := &Block{ID: bf.ID}
		for _, h := range bf.Handlers {
			b.Handlers = append(b.Handlers, Handler{Types: h.Types, Target: h.Target})
		}
		for i := range bf.Instructions {
			inst, err := bf.Instructions[i].build(u, scope)
			if err != nil {
				return fmt.Errorf("block %d, instruction %d: %w", bf.ID, i, err)
			}
			b.Instructions = append(b.Instructions, inst)
		}
		blocks[bf.ID] = b
	}
	exit := len(mf.Blocks)
	blocks[exit] = &Block{ID: exit}

	g, err := NewGraph(blocks, 0, exit)
	if err != nil {
		return err
	}
	mb.m.Body = g
	_, err = mb.Declare()
	return err
}

func (f *instructionFile) build(u *Unit, scope map[string]SymbolID) (Instruction, error) {
	op, err := ParseOp(f.Op)
	if err != nil {
		return Instruction{}, err
	}
	inst := Instruction{
		Op:       op,
		Pos:      token.Position{Filename: u.Name, Line: f.Line, Column: f.Col},
		Text:     f.Text,
		Symbol:   NoSymbol,
		Value:    f.Value,
		Method:   f.Method,
		Name:     f.Name,
		Type:     f.Type,
		Args:     f.Args,
		Resource: f.Resource,
		HasInit:  f.Init,
		HasValue: f.WithValue,
		Targets:  f.Targets,
	}
	switch op {
	case OpLoad, OpStore, OpDeclare:
		id, ok := scope[f.Symbol]
		if !ok {
			return Instruction{}, fmt.Errorf("unknown symbol %q", f.Symbol)
		}
		inst.Symbol = id
		if inst.Text == "" {
			inst.Text = f.Symbol
		}
	case OpLiteral:
		if inst.Literal, err = ParseLiteralKind(f.Literal); err != nil {
			return Instruction{}, err
		}
		if inst.Text == "" {
			inst.Text = f.Value
		}
	case OpBinary, OpUnary:
		if inst.Operator, err = ParseOperator(f.Operator); err != nil {
			return Instruction{}, err
		}
	case OpInvoke:
		switch f.Receiver {
		case "", "none", "static":
			inst.Receiver = ReceiverNone
		case "value":
			inst.Receiver = ReceiverValue
		case "this":
			inst.Receiver = ReceiverThis
		default:
			return Instruction{}, fmt.Errorf("unknown receiver %q", f.Receiver)
		}
		if inst.Name == "" {
			inst.Name = SimpleName(f.Method)
		}
		if inst.Text == "" {
			inst.Text = inst.Name + "()"
		}
	case OpNew:
		if inst.Method == "" {
			inst.Method = f.Type + "#<init>"
		}
		if inst.Text == "" {
			inst.Text = "new " + f.Type + "()"
		}
	}
	return inst, nil
}
