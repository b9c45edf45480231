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

package symex

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/checks"
	"go.uber.org/symex/config"
	"go.uber.org/symex/engine"
)

const _npeMessage = `A "NullPointerException" could be thrown; "s" is nullable here.`

const _unitYAML = `
name: A.java
methods:
  - id: "A#m(String)"
    line: 3
    params:
      - {name: s, type: String, nullability: nullable}
    returns: {type: void}
    blocks:
      - id: 0
        instructions:
          - {op: load, symbol: s, line: 4}
          - {op: invoke, method: "String#length()", receiver: value, line: 4}
          - {op: pop, line: 4}
          - {op: return, line: 5}
  - id: "A#broken()"
    line: 8
    returns: {type: void}
    blocks:
      - id: 0
        instructions:
          - {op: pop, line: 9}
          - {op: return, line: 9}
  - id: "A#helper()"
    line: 12
    static: true
    returns: {type: int}
    blocks:
      - id: 0
        instructions:
          - {op: literal, literal: number, value: "1", line: 13}
          - {op: return, with-value: true, line: 13}
  - id: "A#caller()"
    line: 16
    static: true
    returns: {type: void}
    blocks:
      - id: 0
        instructions:
          - {op: invoke, method: "A#helper()", line: 17}
          - {op: pop, line: 17}
          - {op: return, line: 18}
  - id: "Lib#external()"
    returns: {type: void}
`

// The null returned by c() only reaches a() when b() is explored with its callee.
const _chainYAML = `
name: P.java
methods:
  - id: "P#c()"
    line: 3
    static: true
    returns: {type: Object}
    blocks:
      - id: 0
        instructions:
          - {op: literal, literal: "null", line: 4}
          - {op: return, with-value: true, line: 4}
  - id: "P#b()"
    line: 7
    static: true
    returns: {type: Object}
    blocks:
      - id: 0
        instructions:
          - {op: invoke, method: "P#c()", line: 8}
          - {op: return, with-value: true, line: 8}
  - id: "P#a()"
    line: 11
    static: true
    returns: {type: void}
    blocks:
      - id: 0
        instructions:
          - {op: invoke, method: "P#b()", line: 12}
          - {op: invoke, method: "String#length()", receiver: value, line: 12}
          - {op: pop, line: 12}
          - {op: return, line: 13}
`

func chainConfig(parallelism int) *config.Config {
	conf := config.NewDefault()
	conf.MaxCallDepth = 1
	conf.Checks = []string{"NullDereference"}
	conf.Parallelism = parallelism
	return conf
}

func parse(t *testing.T, text string) *cfg.Unit {
	t.Helper()
	u, err := cfg.Parse([]byte(text))
	require.NoError(t, err)
	return u
}

func newAnalyzer(t *testing.T, conf *config.Config, opts ...Option) *Analyzer {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	a, err := New(conf, opts...)
	require.NoError(t, err)
	return a
}

func TestRun(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(t, config.NewDefault())
	report, err := a.Run(context.Background(), parse(t, _unitYAML))
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	// Methods without a body are not explored.
	require.Len(t, report.Methods, 4)
	ids := make([]string, 0, len(report.Methods))
	for _, m := range report.Methods {
		ids = append(ids, m.Method)
	}
	require.Equal(t, []string{"A#m(String)", "A#broken()", "A#helper()", "A#caller()"}, ids)

	require.Len(t, report.Diagnostics, 2)
	require.Equal(t, 4, report.Diagnostics[0].Pos.Line)
	require.Equal(t, "NullDereference", report.Diagnostics[0].Check)
	require.Contains(t, report.Diagnostics[0].Message, _npeMessage)
	require.Contains(t, report.Diagnostics[0].Message, "'s' is declared nullable.")
	require.Equal(t, 8, report.Diagnostics[1].Pos.Line)
	require.Contains(t, report.Diagnostics[1].Message, "INTERNAL PANIC: A#broken(): operand stack underflow")
	require.Zero(t, report.Aborted())

	// The helper's behavior is finalized and shared.
	require.Positive(t, a.Cache().Len())
}

func TestRun_PanicIsolation(t *testing.T) {
	t.Parallel()

	report, err := newAnalyzer(t, config.NewDefault()).Run(context.Background(), parse(t, _unitYAML))
	require.NoError(t, err)

	broken := report.Methods[1]
	require.Equal(t, "A#broken()", broken.Method)
	require.NotNil(t, broken.Panic)
	require.Nil(t, broken.Result)

	for _, i := range []int{0, 2, 3} {
		m := report.Methods[i]
		require.Nil(t, m.Panic, m.Method)
		require.NotNil(t, m.Result, m.Method)
		require.Equal(t, engine.Done, m.Result.Status, m.Method)
	}
}

func TestRun_Suppressed(t *testing.T) {
	t.Parallel()

	u := parse(t, _unitYAML)
	u.Comments = []cfg.Comment{{Line: 4, Text: "// NOSONAR"}}
	report, err := newAnalyzer(t, config.NewDefault()).Run(context.Background(), u)
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 1)
	require.Contains(t, report.Diagnostics[0].Message, "INTERNAL PANIC")
}

func TestRun_SelectedChecks(t *testing.T) {
	t.Parallel()

	conf := config.NewDefault()
	conf.Checks = []string{"DivisionByZero"}
	report, err := newAnalyzer(t, conf).Run(context.Background(), parse(t, _unitYAML))
	require.NoError(t, err)
	for _, d := range report.Diagnostics {
		require.NotEqual(t, "NullDereference", d.Check)
	}
}

func TestRun_Budget(t *testing.T) {
	t.Parallel()

	conf := config.NewDefault()
	conf.MaxSteps = 1
	report, err := newAnalyzer(t, conf).Run(context.Background(), parse(t, _unitYAML))
	require.NoError(t, err)
	require.Equal(t, 3, report.Aborted())
	for _, d := range report.Diagnostics {
		require.Contains(t, d.Message, "INTERNAL PANIC")
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(t, config.NewDefault()).Run(ctx, parse(t, _unitYAML))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_IndependentOfScheduling(t *testing.T) {
	t.Parallel()

	run := func(parallelism int) []string {
		report, err := newAnalyzer(t, chainConfig(parallelism)).Run(context.Background(), parse(t, _chainYAML))
		require.NoError(t, err)
		out := make([]string, 0, len(report.Diagnostics))
		for _, d := range report.Diagnostics {
			out = append(out, d.String())
		}
		return out
	}

	// Sequentially, b() is finalized before a() is analyzed.
	want := run(1)
	require.Empty(t, want)
	for i := 0; i < 20; i++ {
		require.Equal(t, want, run(1))
		require.Equal(t, want, run(8))
	}
}

func TestRun_SeededCache(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(t, chainConfig(1))
	report, err := a.Run(context.Background(), parse(t, _chainYAML))
	require.NoError(t, err)
	require.Empty(t, report.Diagnostics)

	// The behaviors finalized by the first run seed the second.
	report, err = a.Run(context.Background(), parse(t, _chainYAML))
	require.NoError(t, err)
	require.Len(t, report.Diagnostics, 1)
	require.Equal(t, 12, report.Diagnostics[0].Pos.Line)
	require.Contains(t, report.Diagnostics[0].Message, `"b()" is nullable here.`)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	conf := config.NewDefault()
	conf.Checks = []string{"NoSuchCheck"}
	_, err := New(conf)
	require.ErrorIs(t, err, checks.ErrUnknownCheck)

	conf = config.NewDefault()
	conf.LogLevel = "loud"
	_, err = New(conf)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestPrettyPrint(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"\x1b[31merror: \x1b[0m\x1b[95m's'\x1b[0m is \x1b[1mnull\x1b[0m at \x1b[36m\"A.java\"\x1b[0m",
		PrettyPrint(`'s' is null at "A.java"`))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
