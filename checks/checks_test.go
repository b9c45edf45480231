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

package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/config"
	"go.uber.org/symex/constraint"
	"go.uber.org/symex/engine"
	"go.uber.org/symex/flow"
	"go.uber.org/symex/yield"
)

func run(t *testing.T, m *cfg.Method, names ...string) *engine.Result {
	t.Helper()
	registry, err := Registry(names...)
	require.NoError(t, err)
	res, err := engine.New(config.NewDefault(), cfg.NewProgram(m.Unit()), registry).Analyze(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, engine.Done, res.Status)
	return res
}

func messages(res *engine.Result) []string {
	var msgs []string
	for _, issue := range res.Issues {
		msgs = append(msgs, issue.Message)
	}
	return msgs
}

func flowMessages(f flow.Flow) []string {
	var msgs []string
	for _, loc := range f {
		msgs = append(msgs, loc.Message)
	}
	return msgs
}

func build(t *testing.T, mb *cfg.MethodBuilder) *cfg.Method {
	t.Helper()
	m, err := mb.Build()
	require.NoError(t, err)
	return m
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"NullDereference",
		"ConditionAlwaysTrueOrFalse",
		"UnclosedResources",
		"NonNullSetToNull",
		"DivisionByZero",
		"OptionalGetBeforeIsPresent",
	}, Names())

	r, err := Registry("DivisionByZero", "NullDereference")
	require.NoError(t, err)
	require.Equal(t, []string{"DivisionByZero", "NullDereference"}, r.Names())

	_, err = Registry("Nope")
	require.ErrorIs(t, err, ErrUnknownCheck)
}

func TestNullDereference_NullBranch(t *testing.T) {
	t.Parallel()

	// void m(String s) { if (s == null) { s.length(); } }
	u := cfg.NewUnit("Npe.java")
	mb := u.NewMethod("Npe#m(String)", "m")
	s := mb.Param("s", "String", cfg.UnknownNullness)
	b0, b1, b2 := mb.Block(), mb.Block(), mb.Block()
	b0.Load(s).Null().Binary(cfg.Eq).Branch(b1, b2)
	b1.Load(s).Invoke("String#length()", 0, cfg.ReceiverValue).Pop().Goto(b2)
	b2.Return()
	m := build(t, mb)

	res := run(t, m, "NullDereference")
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	require.Equal(t, "NullDereference", issue.Check)
	require.Equal(t, `A "NullPointerException" could be thrown; "s" is nullable here.`, issue.Message)
	require.Equal(t, b1.Instructions()[1].Pos, issue.Pos)
	require.Len(t, issue.Flows, 1)
	require.Equal(t, []string{"'s' is dereferenced.", "Implies 's' is null."}, flowMessages(issue.Flows[0]))

	exceptional := res.Yields.ExceptionalYields()
	require.Len(t, exceptional, 1)
	require.Equal(t, yield.NullPointerException, exceptional[0].Exception)
	require.True(t, exceptional[0].Param(0).Has(constraint.Null))
}

func TestNullDereference_NarrowsReceiver(t *testing.T) {
	t.Parallel()

	// void m(String s) { s.length(); s.length(); }
	u := cfg.NewUnit("Narrow.java")
	mb := u.NewMethod("Narrow#m(String)", "m")
	s := mb.Param("s", "String", cfg.UnknownNullness)
	mb.Block().
		Load(s).Invoke("String#length()", 0, cfg.ReceiverValue).Pop().
		Load(s).Invoke("String#length()", 0, cfg.ReceiverValue).Pop().
		Return()
	m := build(t, mb)

	res := run(t, m, "NullDereference")
	require.Empty(t, res.Issues)

	happy := res.Yields.HappyYields()
	require.Len(t, happy, 1)
	require.True(t, happy[0].Param(0).Has(constraint.NotNull))
	exceptional := res.Yields.ExceptionalYields()
	require.Len(t, exceptional, 1)
	require.True(t, exceptional[0].Param(0).Has(constraint.Null))
}

func TestNullDereference_NullableParam(t *testing.T) {
	t.Parallel()

	// void m(@CheckForNull String s) { s.length(); }
	u := cfg.NewUnit("Param.java")
	mb := u.NewMethod("Param#m(String)", "m").Line(3)
	s := mb.Param("s", "String", cfg.CheckForNull)
	mb.Block().Load(s).Invoke("String#length()", 0, cfg.ReceiverValue).Pop().Return()
	m := build(t, mb)

	res := run(t, m, "NullDereference")
	require.Len(t, res.Issues, 1)
	require.Equal(t, []string{"'s' is dereferenced.", "'s' is declared nullable."}, flowMessages(res.Issues[0].Flows[0]))
	require.Equal(t, 3, res.Issues[0].Flows[0][1].Pos.Line)
}

func TestNullDereference_CallResult(t *testing.T) {
	t.Parallel()

	// void m() { Lib.find().length(); } with find declared check-for-null.
	u := cfg.NewUnit("Call.java")
	_, err := u.NewMethod("Lib#find()", "find").Static().Returns("String", cfg.CheckForNull).Declare()
	require.NoError(t, err)
	mb := u.NewMethod("Call#m()", "m")
	mb.Block().
		Invoke("Lib#find()", 0, cfg.ReceiverNone).
		Invoke("String#length()", 0, cfg.ReceiverValue).Pop().
		Return()
	m := build(t, mb)

	res := run(t, m, "NullDereference")
	require.Equal(t, []string{`A "NullPointerException" could be thrown; "find()" is nullable here.`}, messages(res))
	require.Equal(t, []string{"'find()' is dereferenced.", "'find()' can return null."}, flowMessages(res.Issues[0].Flows[0]))
}

func TestNullDereference_CheckForNullResultIsForked(t *testing.T) {
	t.Parallel()

	// @CheckForNull String get() { return this.f; }
	// void m() { get().length(); }
	u := cfg.NewUnit("Fork.java")
	f := u.AddField("f", "String", cfg.UnknownNullness)
	gb := u.NewMethod("Fork#get()", "get").Returns("String", cfg.CheckForNull)
	gb.Block().Load(f).ReturnValue()
	build(t, gb)

	mb := u.NewMethod("Fork#m()", "m")
	mb.Block().
		Invoke("Fork#get()", 0, cfg.ReceiverThis).
		Invoke("String#length()", 0, cfg.ReceiverValue).Pop().
		Return()
	m := build(t, mb)

	res := run(t, m, "NullDereference")
	require.Equal(t, []string{`A "NullPointerException" could be thrown; "get()" is nullable here.`}, messages(res))
	require.Len(t, res.Yields.HappyYields(), 1)
}

func TestConditionAlwaysTrueOrFalse(t *testing.T) {
	t.Parallel()

	// void m(boolean c) { Object x = new Object(); if (x == null) { return; } if (c) { return; } }
	u := cfg.NewUnit("Always.java")
	mb := u.NewMethod("Always#m(boolean)", "m")
	c := mb.Param("c", "boolean", cfg.UnknownNullness)
	x := mb.Local("x", "Object")
	b0, b1, b2, b3 := mb.Block(), mb.Block(), mb.Block(), mb.Block()
	b0.New("Object", 0).Declare(x, true).Load(x).Null().Binary(cfg.Eq).Branch(b1, b2)
	b1.Return()
	b2.Load(c).Branch(b3, b1)
	b3.Return()
	m := build(t, mb)

	res := run(t, m, "ConditionAlwaysTrueOrFalse")
	require.Len(t, res.Issues, 1)
	require.Equal(t, `Change this condition so that it does not always evaluate to "false".`, res.Issues[0].Message)
	require.Equal(t, b0.Last().Pos, res.Issues[0].Pos)
}

func TestUnclosedResources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc  string
		use   func(bb *cfg.BlockBuilder, in cfg.SymbolID)
		leaks bool
	}{
		{
			desc: "read only",
			use: func(bb *cfg.BlockBuilder, in cfg.SymbolID) {
				bb.Load(in).Invoke("java.io.FileInputStream#read()", 0, cfg.ReceiverValue).Pop().Return()
			},
			leaks: true,
		},
		{
			desc: "closed",
			use: func(bb *cfg.BlockBuilder, in cfg.SymbolID) {
				bb.Load(in).Invoke("java.io.FileInputStream#close()", 0, cfg.ReceiverValue).Pop().Return()
			},
		},
		{
			desc: "handed over to a call",
			use: func(bb *cfg.BlockBuilder, in cfg.SymbolID) {
				bb.Load(in).Invoke("Pool#keep(InputStream)", 1, cfg.ReceiverNone).Pop().Return()
			},
		},
		{
			desc: "returned",
			use: func(bb *cfg.BlockBuilder, in cfg.SymbolID) {
				bb.Load(in).ReturnValue()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()

			u := cfg.NewUnit("Res.java")
			mb := u.NewMethod("Res#m()", "m").Returns("java.io.InputStream", cfg.UnknownNullness)
			in := mb.Local("in", "java.io.FileInputStream")
			bb := mb.Block()
			bb.NewResource("java.io.FileInputStream", 0).Declare(in, true)
			creation := bb.Instructions()[0].Pos
			tt.use(bb, in)
			m := build(t, mb)

			res := run(t, m, "UnclosedResources")
			if !tt.leaks {
				require.Empty(t, res.Issues)
				return
			}
			require.Len(t, res.Issues, 1)
			require.Equal(t, `Use try-with-resources or close this "FileInputStream" in a "finally" clause.`, res.Issues[0].Message)
			require.Equal(t, creation, res.Issues[0].Pos)
		})
	}
}

func TestNonNullSetToNull(t *testing.T) {
	t.Parallel()

	u := cfg.NewUnit("NonNull.java")
	f := u.AddField("f", "String", cfg.NonNull)
	lb := u.NewMethod("Lib#use(Object)", "use").Static()
	lb.Param("o", "Object", cfg.NonNull)
	_, err := lb.Declare()
	require.NoError(t, err)

	// @NonNull Object m() { this.f = null; Lib.use(null); return null; }
	mb := u.NewMethod("NonNull#m()", "m").Returns("Object", cfg.NonNull)
	mb.Block().
		Null().Store(f).
		Null().Invoke("Lib#use(Object)", 1, cfg.ReceiverNone).Pop().
		Null().ReturnValue()
	m := build(t, mb)

	res := run(t, m, "NonNullSetToNull")
	require.Equal(t, []string{
		`"f" is marked "NonNull" but is set to null.`,
		`Parameter 1 to this call is marked "NonNull" but null could be passed.`,
		`This method's return value is marked "NonNull" but null is returned.`,
	}, messages(res))
}

func TestNonNullSetToNull_UndeclaredSymbol(t *testing.T) {
	t.Parallel()

	u := cfg.NewUnit("Undeclared.java")
	mb := u.NewMethod("Undeclared#m()", "m")
	mb.Block().Null().Store(cfg.SymbolID(42)).Return()
	m := build(t, mb)

	res := run(t, m, "NonNullSetToNull", "NullDereference")
	require.Empty(t, res.Faults)
	require.Empty(t, res.Issues)
}

func TestDivisionByZero(t *testing.T) {
	t.Parallel()

	// int m(int a) { int d = 0; return a / d; }
	u := cfg.NewUnit("Div.java")
	mb := u.NewMethod("Div#m(int)", "m").Returns("int", cfg.UnknownNullness)
	a := mb.Param("a", "int", cfg.UnknownNullness)
	d := mb.Local("d", "int")
	mb.Block().Number("0").Declare(d, true).Load(a).Load(d).Binary(cfg.Div).ReturnValue()
	m := build(t, mb)

	res := run(t, m, "DivisionByZero")
	require.Equal(t, []string{`Make sure "d" can't be zero before doing this division.`}, messages(res))
	require.Equal(t, []string{"'d' is used as divisor.", "'d' is assigned zero."}, flowMessages(res.Issues[0].Flows[0]))
	require.Empty(t, res.Yields.Yields)
}

func TestDivisionByZero_NarrowsDivisor(t *testing.T) {
	t.Parallel()

	// int m(int a, int b) { return a % b; }
	u := cfg.NewUnit("Rem.java")
	mb := u.NewMethod("Rem#m(int,int)", "m").Returns("int", cfg.UnknownNullness)
	a := mb.Param("a", "int", cfg.UnknownNullness)
	b := mb.Param("b", "int", cfg.UnknownNullness)
	mb.Block().Load(a).Load(b).Binary(cfg.Rem).ReturnValue()
	m := build(t, mb)

	res := run(t, m, "DivisionByZero")
	require.Empty(t, res.Issues)
	require.Len(t, res.Yields.Yields, 1)
	require.True(t, res.Yields.Yields[0].Param(1).Has(constraint.NonZero))
}

func TestOptionalGetBeforeIsPresent(t *testing.T) {
	t.Parallel()

	// Object m(Optional o) { Object a = o.get(); return o.get(); }
	u := cfg.NewUnit("Opt.java")
	mb := u.NewMethod("Opt#m(Optional)", "m").Returns("Object", cfg.UnknownNullness)
	o := mb.Param("o", "java.util.Optional", cfg.UnknownNullness)
	mb.Block().
		Load(o).Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).Pop().
		Load(o).Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).ReturnValue()
	m := build(t, mb)

	res := run(t, m, "OptionalGetBeforeIsPresent")
	require.Equal(t, []string{`Call "o.isPresent()" or "!o.isEmpty()" before accessing the value.`}, messages(res))

	exceptional := res.Yields.ExceptionalYields()
	require.Len(t, exceptional, 1)
	require.Equal(t, yield.NoSuchElementException, exceptional[0].Exception)
	require.True(t, exceptional[0].Param(0).Has(constraint.Absent))
}

func TestOptionalGetBeforeIsPresent_Checked(t *testing.T) {
	t.Parallel()

	// void m(Optional o) { if (!o.isEmpty()) { o.get(); } Optional.of("x").get(); }
	u := cfg.NewUnit("Checked.java")
	mb := u.NewMethod("Checked#m(Optional)", "m")
	o := mb.Param("o", "java.util.Optional", cfg.UnknownNullness)
	b0, b1, b2 := mb.Block(), mb.Block(), mb.Block()
	b0.Load(o).Invoke("java.util.Optional#isEmpty()", 0, cfg.ReceiverValue).Branch(b2, b1)
	b1.Load(o).Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).Pop().Goto(b2)
	b2.Number("1").Invoke("java.util.Optional#of(Object)", 1, cfg.ReceiverNone).
		Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).Pop().
		Return()
	m := build(t, mb)

	res := run(t, m, "OptionalGetBeforeIsPresent", "NullDereference")
	require.Empty(t, res.Issues)
}

func TestOptionalGetBeforeIsPresent_Empty(t *testing.T) {
	t.Parallel()

	// void m() { Optional.empty().get(); }
	u := cfg.NewUnit("Empty.java")
	mb := u.NewMethod("Empty#m()", "m").Static()
	mb.Block().
		Invoke("java.util.Optional#empty()", 0, cfg.ReceiverNone).
		Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).Pop().
		Return()
	m := build(t, mb)

	res := run(t, m, "OptionalGetBeforeIsPresent")
	require.Equal(t, []string{`Call "Optional#isPresent()" or "!Optional#isEmpty()" before accessing the value.`}, messages(res))
	// The path ends at the access.
	require.Empty(t, res.Yields.Yields)
}

func TestOptionalGetBeforeIsPresent_Field(t *testing.T) {
	t.Parallel()

	// Object m() { return this.opt.get(); }
	u := cfg.NewUnit("Field.java")
	f := u.AddField("opt", "java.util.Optional", cfg.UnknownNullness)
	mb := u.NewMethod("Field#m()", "m").Returns("Object", cfg.UnknownNullness)
	mb.Block().Load(f).Invoke("java.util.Optional#get()", 0, cfg.ReceiverValue).ReturnValue()
	m := build(t, mb)

	res := run(t, m, "OptionalGetBeforeIsPresent")
	require.Empty(t, res.Issues)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
