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

package constraint

import (
	"fmt"
	"strings"
)

// ByDomain holds at most one constraint per domain for a single value. It is a comparable value
// type: equal ByDomains compare equal with ==, and every operation returns a modified copy.
type ByDomain struct {
	c [numDomains]Constraint
}

// Of builds a ByDomain from constraints. A later constraint replaces an earlier one of the same
// domain.
func Of(cs ...Constraint) ByDomain {
	var b ByDomain
	for _, c := range cs {
		b = b.With(c)
	}
	return b
}

// Get returns the constraint of domain d, if any.
func (b ByDomain) Get(d Domain) (Constraint, bool) {
	c := b.c[d]
	return c, c != None
}

// Has returns true if b carries exactly c.
func (b ByDomain) Has(c Constraint) bool {
	return c != None && b.c[c.Domain()] == c
}

// With returns a copy where c replaces the constraint of its domain.
func (b ByDomain) With(c Constraint) ByDomain {
	if c != None {
		b.c[c.Domain()] = c
	}
	return b
}

// Without returns a copy unconstrained in domain d.
func (b ByDomain) Without(d Domain) ByDomain {
	b.c[d] = None
	return b
}

// IsEmpty returns true if no domain is constrained.
func (b ByDomain) IsEmpty() bool {
	return b == ByDomain{}
}

// Len returns the number of constrained domains.
func (b ByDomain) Len() int {
	n := 0
	for _, c := range b.c {
		if c != None {
			n++
		}
	}
	return n
}

// Intersect keeps the domains on which b and o agree. A domain constrained differently, or on one
// side only, becomes unconstrained.
func (b ByDomain) Intersect(o ByDomain) ByDomain {
	var r ByDomain
	for d := range b.c {
		if b.c[d] == o.c[d] {
			r.c[d] = b.c[d]
		}
	}
	return r
}

// Conflicts returns true if some domain is constrained differently by b and o.
func (b ByDomain) Conflicts(o ByDomain) bool {
	for d := range b.c {
		if b.c[d].Contradicts(o.c[d]) {
			return true
		}
	}
	return false
}

// Learned returns the constraints of b that o does not carry.
func (b ByDomain) Learned(o ByDomain) []Constraint {
	var learned []Constraint
	for d := range b.c {
		if b.c[d] != None && b.c[d] != o.c[d] {
			learned = append(learned, b.c[d])
		}
	}
	return learned
}

// Filter keeps only the given domains.
func (b ByDomain) Filter(domains ...Domain) ByDomain {
	var r ByDomain
	for _, d := range domains {
		r.c[d] = b.c[d]
	}
	return r
}

// Each calls f for every constraint in domain order.
func (b ByDomain) Each(f func(Constraint)) {
	for _, c := range b.c {
		if c != None {
			f(c)
		}
	}
}

// Slice returns the constraints in domain order.
func (b ByDomain) Slice() []Constraint {
	var cs []Constraint
	b.Each(func(c Constraint) { cs = append(cs, c) })
	return cs
}

// Key is a compact, canonical encoding of b.
func (b ByDomain) Key() [numDomains]byte {
	var k [numDomains]byte
	for i, c := range b.c {
		k[i] = byte(c)
	}
	return k
}

func (b ByDomain) String() string {
	parts := make([]string, 0, numDomains)
	b.Each(func(c Constraint) { parts = append(parts, c.String()) })
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalBinary encodes b as one byte per domain.
func (b ByDomain) MarshalBinary() ([]byte, error) {
	k := b.Key()
	return k[:], nil
}

// UnmarshalBinary decodes the output of MarshalBinary.
func (b *ByDomain) UnmarshalBinary(data []byte) error {
	if len(data) != int(numDomains) {
		return fmt.Errorf("constraints: want %d bytes, got %d", numDomains, len(data))
	}
	var r ByDomain
	for d, raw := range data {
		c := Constraint(raw)
		if int(c) >= len(_constraints) || (c != None && c.Domain() != Domain(d)) {
			return fmt.Errorf("constraints: invalid constraint %d for domain %s", raw, Domain(d))
		}
		r.c[d] = c
	}
	*b = r
	return nil
}
