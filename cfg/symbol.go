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
	"strings"
)

// SymbolID identifies a symbol within a compilation unit.
type SymbolID int

// NoSymbol is the zero SymbolID for instructions that do not refer to a symbol.
const NoSymbol SymbolID = -1

// SymbolKind tells locals, parameters and fields apart.
type SymbolKind uint8

const (
	// Local is a local variable of a method.
	Local SymbolKind = iota
	// Param is a formal parameter of a method.
	Param
	// Field is a field of the enclosing class.
	Field
)

func (k SymbolKind) String() string {
	switch k {
	case Local:
		return "local"
	case Param:
		return "param"
	case Field:
		return "field"
	}
	return fmt.Sprintf("SymbolKind(%d)", k)
}

// Nullability is the declared nullability contract of a symbol or a method return value.
type Nullability uint8

const (
	// UnknownNullness means nothing is declared.
	UnknownNullness Nullability = iota
	// Nullable is a weak annotation: the value may be null, but callers are not forced to check.
	Nullable
	// CheckForNull is a strong annotation: every use must be prepared for null.
	CheckForNull
	// NonNull declares the value is never null.
	NonNull
)

var _nullabilityNames = [...]string{"unknown", "nullable", "check-for-null", "nonnull"}

func (n Nullability) String() string {
	if int(n) < len(_nullabilityNames) {
		return _nullabilityNames[n]
	}
	return fmt.Sprintf("Nullability(%d)", n)
}

// ParseNullability parses the textual form used in unit files.
func ParseNullability(s string) (Nullability, error) {
	switch strings.ToLower(s) {
	case "", "unknown":
		return UnknownNullness, nil
	case "nullable":
		return Nullable, nil
	case "check-for-null", "checkfornull":
		return CheckForNull, nil
	case "nonnull", "non-null", "notnull":
		return NonNull, nil
	}
	return UnknownNullness, fmt.Errorf("unknown nullability %q", s)
}

// CanBeNull returns true for both weak and strong nullable annotations.
func (n Nullability) CanBeNull() bool {
	return n == Nullable || n == CheckForNull
}

// Symbol is a declaration from the symbol table of the front-end.
type Symbol struct {
	ID          SymbolID
	Name        string
	Kind        SymbolKind
	Type        string
	Primitive   bool
	Nullability Nullability
}

// IsBoolean returns true if the symbol has a boolean type.
func (s *Symbol) IsBoolean() bool {
	return s.Type == "boolean" || s.Type == "java.lang.Boolean" || s.Type == "Boolean"
}

func (s *Symbol) String() string {
	return s.Name
}
