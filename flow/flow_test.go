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

package flow

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/explodedgraph"
	"go.uber.org/symex/state"
	"go.uber.org/symex/symbolic"
	"go.uber.org/symex/yield"
)

type fixture struct {
	f      *symbolic.Factory
	g      *explodedgraph.Graph
	method *cfg.Method
	s, x   cfg.SymbolID
	next   int
}

func newFixture(t *testing.T) *fixture {
	u := cfg.NewUnit("A.java")
	mb := u.NewMethod("A#m(String)", "m").Line(10)
	s := mb.Param("s", "String", cfg.Nullable)
	x := mb.Local("x", "String")
	m, err := mb.Declare()
	require.NoError(t, err)
	return &fixture{f: symbolic.NewFactory(), g: explodedgraph.New(), method: m, s: s, x: x}
}

func (fx *fixture) node(s *state.ProgramState) *explodedgraph.Node {
	fx.next++
	n, _ := fx.g.Node(explodedgraph.ProgramPoint{Block: 0, Index: fx.next}, s)
	return n
}

func pos(line int) token.Position {
	return token.Position{Filename: "A.java", Line: line, Column: 1}
}

func TestCompute_AssignmentFromNullableParam(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	v := fx.f.Fresh()
	entry := state.New(fx.f).Assign(fx.s, v).WithConstraint(v, constraint.Null)

	n0 := fx.node(entry)
	n1 := fx.node(entry.Push(v))
	n1.AddEdge(explodedgraph.Edge{Parent: n0, Instruction: &cfg.Instruction{Op: cfg.OpLoad, Symbol: fx.s, Pos: pos(11)}})
	n2 := fx.node(entry.Assign(fx.x, v))
	n2.AddEdge(explodedgraph.Edge{Parent: n1, Instruction: &cfg.Instruction{Op: cfg.OpStore, Symbol: fx.x, Pos: pos(11)}})

	flows := Compute(n2, v, Options{Method: fx.method, Domains: []constraint.Domain{constraint.Nullness}})
	require.Equal(t, []Flow{{
		{Pos: pos(11), Message: "'x' is assigned null."},
		{Pos: pos(10), Message: "'s' is declared nullable."},
	}}, flows)

	// Nothing to explain in the boolean domain.
	require.Empty(t, Compute(n2, v, Options{Method: fx.method, Domains: []constraint.Domain{constraint.Boolean}}))
}

func TestCompute_Branch(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	v := fx.f.Fresh()
	before := state.New(fx.f).Assign(fx.x, v)

	n0 := fx.node(before)
	n1 := fx.node(before.WithConstraint(v, constraint.Null))
	n1.AddEdge(explodedgraph.Edge{Parent: n0, Instruction: &cfg.Instruction{Op: cfg.OpBranch, Pos: pos(12)}})

	flows := Compute(n1, v, Options{Method: fx.method})
	require.Equal(t, []Flow{{{Pos: pos(12), Message: "Implies 'x' is null."}}}, flows)
}

func TestCompute_YieldResultAndArgument(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	arg := fx.f.Fresh()
	before := state.New(fx.f).Assign(fx.x, arg)
	call := &cfg.Instruction{Op: cfg.OpInvoke, Method: "A#helper(String)", Pos: pos(13)}
	y := &yield.MethodYield{ResultIndex: yield.NoResultIndex}

	n0 := fx.node(before)

	result := fx.f.Fresh()
	n1 := fx.node(before.Push(result).WithConstraint(result, constraint.Null))
	n1.AddEdge(explodedgraph.Edge{Parent: n0, Instruction: call, Yield: y, Callee: call.Method})
	require.Equal(t, []Flow{{{Pos: pos(13), Message: "'helper()' can return null."}}}, Compute(n1, result, Options{Method: fx.method}))

	n2 := fx.node(before.WithConstraint(arg, constraint.NotNull))
	n2.AddEdge(explodedgraph.Edge{Parent: n0, Instruction: call, Yield: y, Callee: call.Method})
	require.Equal(t, []Flow{{{Pos: pos(13), Message: "Implies 'x' is non-null. Learned from 'helper()'."}}}, Compute(n2, arg, Options{Method: fx.method}))
}

func TestCompute_ShortestFirstAndBounded(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	v := fx.f.Fresh()
	base := state.New(fx.f).Assign(fx.x, v)

	// Two paths reach the same node: a short one through a branch and a longer one through two
	// branches.
	root := fx.node(base)
	mid := fx.node(base.Visit(1))
	mid.AddEdge(explodedgraph.Edge{Parent: root, Instruction: &cfg.Instruction{Op: cfg.OpGoto, Pos: pos(20)}})
	target := fx.node(base.WithConstraint(v, constraint.Null))
	target.AddEdge(explodedgraph.Edge{Parent: mid, Instruction: &cfg.Instruction{Op: cfg.OpBranch, Pos: pos(21)}})
	target.AddEdge(explodedgraph.Edge{Parent: root, Instruction: &cfg.Instruction{Op: cfg.OpBranch, Pos: pos(22)}})

	flows := Compute(target, v, Options{Method: fx.method})
	require.Equal(t, []Flow{
		{{Pos: pos(22), Message: "Implies 'x' is null."}},
		{{Pos: pos(21), Message: "Implies 'x' is null."}},
	}, flows)

	require.Len(t, Compute(target, v, Options{Method: fx.method, MaxFlows: 1}), 1)
	require.Empty(t, Compute(target, v, Options{Method: fx.method, MaxSteps: 1}))
}

func TestCompute_WithoutExceptions(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	v := fx.f.Fresh()
	base := state.New(fx.f).Assign(fx.x, v)

	n0 := fx.node(base)
	n1 := fx.node(base.WithConstraint(v, constraint.Null))
	n1.AddEdge(explodedgraph.Edge{Parent: n0, Instruction: &cfg.Instruction{Op: cfg.OpBranch, Pos: pos(30)}, Exceptional: true})

	opts := Options{Method: fx.method}
	require.Len(t, Compute(n1, v, opts), 1)
	require.Empty(t, Compute(n1, v, opts.WithoutExceptions()))
	require.False(t, opts.SkipExceptions)
}

func TestCompute_Cycle(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	v := fx.f.Fresh()
	base := state.New(fx.f).Assign(fx.x, v)

	a := fx.node(base)
	b := fx.node(base.Visit(1))
	goTo := &cfg.Instruction{Op: cfg.OpGoto, Pos: pos(40)}
	a.AddEdge(explodedgraph.Edge{Parent: b, Instruction: goTo})
	b.AddEdge(explodedgraph.Edge{Parent: a, Instruction: goTo})

	// No location and no entry: the walk ends without flows.
	require.Empty(t, Compute(b, v, Options{Method: fx.method}))
}

func TestLocationString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "A.java:3:1: msg", Location{Pos: pos(3), Message: "msg"}.String())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
