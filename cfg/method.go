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

// Return describes the declared return contract of a method.
type Return struct {
	Void        bool
	Type        string
	Primitive   bool
	Nullability Nullability
}

// IsBoolean returns true if the method returns a boolean.
func (r Return) IsBoolean() bool {
	return r.Type == "boolean" || r.Type == "java.lang.Boolean" || r.Type == "Boolean"
}

// Method is a method declaration. Body is nil when only the signature is known, e.g. for library
// methods whose source is not part of the analysis.
type Method struct {
	ID      string
	Name    string
	Pos     token.Position
	Static  bool
	Params  []SymbolID
	Returns Return
	Throws  []string
	Body    *Graph

	unit *Unit
}

// Unit returns the compilation unit declaring the method.
func (m *Method) Unit() *Unit {
	return m.unit
}

// Symbol looks a symbol up in the enclosing unit.
func (m *Method) Symbol(id SymbolID) *Symbol {
	return m.unit.Symbol(id)
}

// Param returns the i-th parameter.
func (m *Method) Param(i int) *Symbol {
	return m.unit.Symbol(m.Params[i])
}

// ParamIndex returns the position of the parameter symbol, or -1.
func (m *Method) ParamIndex(id SymbolID) int {
	for i, p := range m.Params {
		if p == id {
			return i
		}
	}
	return -1
}

// IsEquals returns true for an equals(Object) override, whose argument is always compared against
// null by contract.
func (m *Method) IsEquals() bool {
	return m.Name == "equals" && len(m.Params) == 1 && !m.Static
}

// WritesFields returns true if the method may change a field. Methods without a body are assumed
// to.
func (m *Method) WritesFields() bool {
	if m.Body == nil {
		return true
	}
	for _, b := range m.Body.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op != OpStore {
				continue
			}
			if sym := m.unit.Symbol(inst.Symbol); sym == nil || sym.Kind == Field {
				return true
			}
		}
	}
	return false
}

func (m *Method) String() string {
	return m.ID
}

// SimpleName extracts the method name from an identifier of the form Owner#name(Params).
func SimpleName(id string) string {
	if i := strings.LastIndexByte(id, '#'); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.IndexByte(id, '('); i >= 0 {
		id = id[:i]
	}
	return id
}

// Comment is a source comment.
type Comment struct {
	Line int    `yaml:"line"`
	Text string `yaml:"text"`
}

// Unit is a compilation unit: a symbol table, a set of methods and the part of the type
// hierarchy needed to match exception handlers.
type Unit struct {
	Name    string
	Symbols []*Symbol
	Methods []*Method
	// Supertypes maps a type to its direct supertype.
	Supertypes map[string]string
	// Comments are the line comments of the source, used to suppress diagnostics.
	Comments []Comment

	byID map[string]*Method
}

// NewUnit creates an empty unit.
func NewUnit(name string) *Unit {
	return &Unit{Name: name, Supertypes: make(map[string]string), byID: make(map[string]*Method)}
}

// AddSymbol declares a new symbol in the unit.
func (u *Unit) AddSymbol(name string, kind SymbolKind, typ string, primitive bool, n Nullability) *Symbol {
	s := &Symbol{
		ID:          SymbolID(len(u.Symbols)),
		Name:        name,
		Kind:        kind,
		Type:        typ,
		Primitive:   primitive,
		Nullability: n,
	}
	u.Symbols = append(u.Symbols, s)
	return s
}

// AddField declares a field of the enclosing class.
func (u *Unit) AddField(name, typ string, n Nullability) SymbolID {
	return u.AddSymbol(name, Field, typ, isPrimitive(typ), n).ID
}

// Symbol returns the symbol with the given ID, or nil if the unit does not declare it.
func (u *Unit) Symbol(id SymbolID) *Symbol {
	if id < 0 || int(id) >= len(u.Symbols) {
		return nil
	}
	return u.Symbols[id]
}

// Fields returns the field symbols of the unit.
func (u *Unit) Fields() []*Symbol {
	var fields []*Symbol
	for _, s := range u.Symbols {
		if s.Kind == Field {
			fields = append(fields, s)
		}
	}
	return fields
}

func (u *Unit) addMethod(m *Method) error {
	if _, ok := u.byID[m.ID]; ok {
		return fmt.Errorf("duplicate method %q in unit %q", m.ID, u.Name)
	}
	m.unit = u
	u.byID[m.ID] = m
	u.Methods = append(u.Methods, m)
	return nil
}

// Method returns the method with the given ID.
func (u *Unit) Method(id string) (*Method, bool) {
	m, ok := u.byID[id]
	return m, ok
}

// IsSubtype returns true if t is a (transitive) subtype of super according to the unit hierarchy.
func (u *Unit) IsSubtype(t, super string) bool {
	seen := make(map[string]bool)
	for cur, ok := u.Supertypes[t]; ok && !seen[cur]; cur, ok = u.Supertypes[cur] {
		if cur == super {
			return true
		}
		seen[cur] = true
	}
	return false
}

// Program resolves methods and types across several units.
type Program struct {
	units []*Unit
}

// NewProgram groups units so that calls between them can be resolved.
func NewProgram(units ...*Unit) *Program {
	return &Program{units: units}
}

// Units returns the units of the program.
func (p *Program) Units() []*Unit {
	return p.units
}

// Method returns the first declaration of id among the units.
func (p *Program) Method(id string) (*Method, bool) {
	for _, u := range p.units {
		if m, ok := u.Method(id); ok {
			return m, true
		}
	}
	return nil, false
}

// IsSubtype consults the hierarchy of every unit.
func (p *Program) IsSubtype(t, super string) bool {
	for _, u := range p.units {
		if u.IsSubtype(t, super) {
			return true
		}
	}
	return false
}

func isPrimitive(typ string) bool {
	switch typ {
	case "boolean", "byte", "char", "short", "int", "long", "float", "double":
		return true
	}
	return false
}
