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

// Package yield implements method yields: summaries of the behavior of a method under a given
// signature of argument constraints, and their storage for reuse across call sites.
package yield

import (
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/symex/constraint"
)

// Kind distinguishes normal completion from an exception escaping the method.
type Kind uint8

const (
	// Happy yields complete normally.
	Happy Kind = iota
	// Exceptional yields throw.
	Exceptional
)

func (k Kind) String() string {
	if k == Exceptional {
		return "exceptional"
	}
	return "happy"
}

// NoResultIndex is the ResultIndex of a yield that does not return one of its parameters.
const NoResultIndex = -1

// MethodYield summarizes one way a method can complete: the constraints its parameters carry at the
// exit and what it returns or throws.
type MethodYield struct {
	Kind Kind
	// Params holds the constraints of each parameter at the exit. Missing trailing entries are
	// unconstrained.
	Params []constraint.ByDomain
	// Result holds the constraints of the returned value of a happy yield.
	Result constraint.ByDomain
	// ResultIndex is the index of the parameter returned as-is, or NoResultIndex.
	ResultIndex int
	// Exception is the type thrown by an exceptional yield; empty when unknown.
	Exception string
	// Witness is the shortest path, from the entry to the exit, producing the yield.
	Witness []token.Position
}

// Param returns the constraints of the i-th parameter.
func (y *MethodYield) Param(i int) constraint.ByDomain {
	if i < len(y.Params) {
		return y.Params[i]
	}
	return constraint.ByDomain{}
}

// key identifies the yield regardless of its witness.
func (y *MethodYield) key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|%s|", y.Kind, y.ResultIndex, y.Exception)
	k := y.Result.Key()
	sb.Write(k[:])
	for _, p := range y.Params {
		sb.WriteByte('|')
		k := p.Key()
		sb.Write(k[:])
	}
	return sb.String()
}

func (y *MethodYield) String() string {
	params := make([]string, len(y.Params))
	for i, p := range y.Params {
		params[i] = p.String()
	}
	var result string
	switch {
	case y.Kind == Exceptional && y.Exception != "":
		result = "throws " + y.Exception
	case y.Kind == Exceptional:
		result = "throws"
	case y.ResultIndex != NoResultIndex:
		result = fmt.Sprintf("returns param %d", y.ResultIndex)
	default:
		result = "returns " + y.Result.String()
	}
	return fmt.Sprintf("(%s) %s", strings.Join(params, ", "), result)
}

// Signature is the tuple of constraints the arguments of a call carry.
type Signature []constraint.ByDomain

// Key is a canonical encoding of the signature.
func (s Signature) Key() string {
	var sb strings.Builder
	for i, p := range s {
		if i > 0 {
			sb.WriteByte('|')
		}
		k := p.Key()
		sb.Write(k[:])
	}
	return sb.String()
}

func (s Signature) String() string {
	params := make([]string, len(s))
	for i, p := range s {
		params[i] = p.String()
	}
	return "(" + strings.Join(params, ", ") + ")"
}

// Behavior groups the yields of a method explored under a signature. An incomplete behavior comes
// from an interrupted or approximated exploration and is never shared between analyses.
type Behavior struct {
	Method    string
	Signature Signature
	Yields    []*MethodYield
	Complete  bool
	// Receiver is set when the first parameter of the yields is the receiver of the call.
	Receiver bool
}

// NewBehavior returns an empty, complete behavior.
func NewBehavior(method string, sig Signature) *Behavior {
	return &Behavior{Method: method, Signature: sig, Complete: true}
}

// Add appends y unless an identical yield exists, in which case the shorter witness is kept.
func (b *Behavior) Add(y *MethodYield) bool {
	key := y.key()
	for _, existing := range b.Yields {
		if existing.key() == key {
			if len(y.Witness) < len(existing.Witness) {
				existing.Witness = y.Witness
			}
			return false
		}
	}
	b.Yields = append(b.Yields, y)
	return true
}

// HappyYields returns the yields completing normally.
func (b *Behavior) HappyYields() []*MethodYield {
	return b.filter(Happy)
}

// ExceptionalYields returns the yields throwing.
func (b *Behavior) ExceptionalYields() []*MethodYield {
	return b.filter(Exceptional)
}

func (b *Behavior) filter(kind Kind) []*MethodYield {
	var ys []*MethodYield
	for _, y := range b.Yields {
		if y.Kind == kind {
			ys = append(ys, y)
		}
	}
	return ys
}

// Reduce merges pairs of happy yields with the same outcome whose parameters differ in a single
// domain of a single parameter: that domain does not matter, so it is dropped. This repeats until
// no pair qualifies.
func (b *Behavior) Reduce() {
	for reduced := true; reduced; {
		reduced = false
	search:
		for i, y := range b.Yields {
			for j := i + 1; j < len(b.Yields); j++ {
				if merged, ok := reducePair(y, b.Yields[j]); ok {
					b.Yields[i] = merged
					b.Yields = append(b.Yields[:j], b.Yields[j+1:]...)
					reduced = true
					break search
				}
			}
		}
	}
}

func reducePair(a, b *MethodYield) (*MethodYield, bool) {
	if a.Kind != Happy || b.Kind != Happy || a.ResultIndex != b.ResultIndex || a.Result != b.Result {
		return nil, false
	}
	n := max(len(a.Params), len(b.Params))
	param, domain, diffs := -1, constraint.Domain(0), 0
	for i := 0; i < n; i++ {
		pa, pb := a.Param(i), b.Param(i)
		for _, d := range constraint.Domains() {
			ca, _ := pa.Get(d)
			cb, _ := pb.Get(d)
			if ca != cb {
				param, domain = i, d
				diffs++
			}
		}
	}
	if diffs != 1 {
		return nil, false
	}

	merged := *a
	merged.Params = make([]constraint.ByDomain, n)
	for i := range merged.Params {
		merged.Params[i] = a.Param(i)
	}
	merged.Params[param] = merged.Params[param].Without(domain)
	if len(b.Witness) < len(a.Witness) {
		merged.Witness = b.Witness
	}
	return &merged, true
}

func (b *Behavior) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s", b.Method, b.Signature)
	if !b.Complete {
		sb.WriteString(" (incomplete)")
	}
	for _, y := range b.Yields {
		sb.WriteString("\n\t")
		sb.WriteString(y.String())
	}
	return sb.String()
}
