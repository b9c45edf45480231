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

// Package constraint defines the constraint domains attachable to symbolic values. Each domain is
// a small flat lattice: a value is either unconstrained in a domain (top) or carries exactly one
// constraint of it. Two distinct constraints of the same domain contradict each other.
package constraint

import (
	"fmt"
	"strings"
)

// Domain identifies a constraint lattice.
type Domain uint8

const (
	// Nullness tells whether a value is null.
	Nullness Domain = iota
	// Boolean tells whether a value is true or false.
	Boolean
	// Resource tracks whether a closeable value is open.
	Resource
	// Zero tells whether a numeric value is zero.
	Zero
	// Presence tells whether an optional value holds something.
	Presence

	numDomains
)

// Domains lists every domain in a stable order.
func Domains() []Domain {
	return []Domain{Nullness, Boolean, Resource, Zero, Presence}
}

var _domainNames = [numDomains]string{"nullness", "boolean", "resource", "zero", "presence"}

func (d Domain) String() string {
	if d < numDomains {
		return _domainNames[d]
	}
	return fmt.Sprintf("Domain(%d)", d)
}

// Constraint is a single fact about a value in one domain.
type Constraint uint8

const (
	// None is the absence of constraint.
	None Constraint = iota
	Null
	NotNull
	True
	False
	Open
	Closed
	IsZero
	NonZero
	Present
	Absent
)

var _constraints = [...]struct {
	name    string
	domain  Domain
	inverse Constraint
	text    string
}{
	None:    {"NONE", numDomains, None, ""},
	Null:    {"NULL", Nullness, NotNull, "null"},
	NotNull: {"NOT_NULL", Nullness, Null, "non-null"},
	True:    {"TRUE", Boolean, False, "true"},
	False:   {"FALSE", Boolean, True, "false"},
	Open:    {"OPEN", Resource, Closed, "open"},
	Closed:  {"CLOSED", Resource, Open, "closed"},
	IsZero:  {"ZERO", Zero, NonZero, "zero"},
	NonZero: {"NON_ZERO", Zero, IsZero, "non-zero"},
	Present: {"PRESENT", Presence, Absent, "present"},
	Absent:  {"NOT_PRESENT", Presence, Present, "empty"},
}

// Domain returns the domain the constraint belongs to.
func (c Constraint) Domain() Domain {
	return _constraints[c].domain
}

// Inverse returns the other constraint of a two-valued domain.
func (c Constraint) Inverse() Constraint {
	return _constraints[c].inverse
}

// Contradicts returns true if both constraints cannot hold for the same value.
func (c Constraint) Contradicts(o Constraint) bool {
	return c != None && o != None && c.Domain() == o.Domain() && c != o
}

// Text is the lower-case form used in messages, e.g. "non-null".
func (c Constraint) Text() string {
	return _constraints[c].text
}

func (c Constraint) String() string {
	if int(c) < len(_constraints) {
		return _constraints[c].name
	}
	return fmt.Sprintf("Constraint(%d)", c)
}

// Parse returns the constraint with the given upper-case name.
func Parse(name string) (Constraint, error) {
	for i, c := range _constraints {
		if i != int(None) && c.name == strings.ToUpper(name) {
			return Constraint(i), nil
		}
	}
	return None, fmt.Errorf("unknown constraint %q", name)
}

// Bool returns True or False.
func Bool(b bool) Constraint {
	if b {
		return True
	}
	return False
}
