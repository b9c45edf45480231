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

package diagnostic

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/flow"
)

func pos(file string, line int) token.Position {
	return token.Position{Filename: file, Line: line, Column: 1}
}

func npe(file string, line int, flows ...flow.Flow) engine.Issue {
	return engine.Issue{
		Check:   "NullDereference",
		Method:  "A#m()",
		Pos:     pos(file, line),
		Message: `A "NullPointerException" could be thrown; "s" is nullable here.`,
		Flows:   flows,
	}
}

func TestDiagnostics_SortedAndDeduplicated(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.AddIssue(npe("B.java", 3))
	e.AddIssue(npe("A.java", 9))
	e.AddIssue(npe("A.java", 2))
	e.AddIssue(npe("A.java", 2))

	diags := e.Diagnostics(false /* grouping */)
	require.Len(t, diags, 3)
	require.Equal(t, pos("A.java", 2), diags[0].Pos)
	require.Equal(t, pos("A.java", 9), diags[1].Pos)
	require.Equal(t, pos("B.java", 3), diags[2].Pos)
	require.Equal(t, "NullDereference", diags[0].Check)
	require.Equal(t, "A#m()", diags[0].Method)
}

func TestDiagnostics_Flow(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.AddIssue(npe("A.java", 5,
		flow.Flow{
			{Pos: pos("A.java", 5), Message: "'s' is dereferenced."},
			{Pos: pos("A.java", 4), Message: "Implies 's' is null."},
		},
		flow.Flow{
			{Pos: pos("A.java", 5), Message: "'s' is dereferenced."},
			{Message: "'s' is declared nullable."},
		},
	))

	diags := e.Diagnostics(true /* grouping */)
	require.Len(t, diags, 1)
	require.Equal(t, `A "NullPointerException" could be thrown; "s" is nullable here. Observed flow:
	- A.java:4:1: Implies 's' is null.
	- A.java:5:1: 's' is dereferenced.
	(1 other flow(s))`, diags[0].Message)
	require.Equal(t, "A.java:5:1: "+diags[0].Message, diags[0].String())
}

func TestDiagnostics_Grouping(t *testing.T) {
	t.Parallel()

	source := flow.Location{Pos: pos("A.java", 1), Message: "'s' is declared nullable."}
	e := NewEngine()
	for _, line := range []int{7, 3, 5} {
		e.AddIssue(npe("A.java", line, flow.Flow{{Pos: pos("A.java", line), Message: "'s' is dereferenced."}, source}))
	}
	e.AddIssue(npe("A.java", 9))

	grouped := e.Diagnostics(true /* grouping */)
	require.Len(t, grouped, 2)
	require.Equal(t, 3, grouped[0].Pos.Line)
	require.Contains(t, grouped[0].Message,
		`(Same source could also cause issue(s) at 2 other place(s): "A.java:5:1", and "A.java:7:1".)`)
	require.Equal(t, 9, grouped[1].Pos.Line)

	require.Len(t, e.Diagnostics(false /* grouping */), 4)
}

func TestDiagnostics_Panics(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	e.AddFault(engine.Fault{Check: "NullDereference", Hook: "PreStatement", Method: "A#m()", Panic: "boom"}, pos("A.java", 1))
	e.AddPanic("A#n()", token.Position{}, "index out of range")

	diags := e.Diagnostics(true /* grouping */)
	require.Len(t, diags, 2)
	require.Equal(t, "INTERNAL PANIC: A#n(): index out of range", diags[0].Message)
	require.Equal(t, "<no pos info>: INTERNAL PANIC: A#n(): index out of range", diags[0].String())
	require.Equal(t, "INTERNAL PANIC: NullDereference.PreStatement: boom", diags[1].Message)
}

func TestDiagnostics_Suppressions(t *testing.T) {
	t.Parallel()

	u := cfg.NewUnit("A.java")
	u.Comments = []cfg.Comment{
		{Line: 2, Text: "// NOSONAR"},
		{Line: 4, Text: "//nolint:DivisionByZero // checked by the caller"},
		{Line: 6, Text: "// regular comment"},
	}
	e := NewEngine()
	e.AddSuppressions(u)
	for _, line := range []int{2, 4, 6} {
		e.AddIssue(npe("A.java", line))
	}
	e.AddFault(engine.Fault{Check: "NullDereference", Hook: "PreStatement", Panic: "boom"}, pos("A.java", 2))

	diags := e.Diagnostics(false /* grouping */)
	require.Len(t, diags, 3)
	require.Equal(t, 2, diags[0].Pos.Line)
	require.Contains(t, diags[0].Message, "INTERNAL PANIC")
	require.Equal(t, 4, diags[1].Pos.Line)
	require.Equal(t, 6, diags[2].Pos.Line)
}

func TestParseSuppression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		ok     bool
		checks []string
	}{
		{text: "// NOSONAR", ok: true},
		{text: "//nolint", ok: true},
		{text: "//nolint:all", ok: true},
		{text: "//nolint:symex // reason", ok: true},
		{text: "//nolint:NullDereference, DivisionByZero", ok: true, checks: []string{"NullDereference", "DivisionByZero"}},
		{text: "/* NOSONAR */", ok: true},
		{text: "// TODO", ok: false},
	}
	for _, tt := range tests {
		checks, ok := parseSuppression(tt.text)
		require.Equal(t, tt.ok, ok, tt.text)
		require.Equal(t, tt.checks, checks, tt.text)
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
