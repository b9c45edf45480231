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

// Package symextest implements utility functions for tests.
package symextest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/symex"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/config"
)

// Testing is the subset of testing.TB used by Run.
type Testing interface {
	Helper()
	Errorf(format string, args ...any)
}

var _quotedPattern = regexp.MustCompile("\"(?:[^\"\\\\]|\\\\.)*\"|`[^`]*`")

// FindExpectedValues gathers the expected values of the comments of u that start with
// expectedPrefix, keyed by line. The values are Go string literals, e.g.
// `// want "is nullable here" "another"`.
func FindExpectedValues(u *cfg.Unit, expectedPrefix string) (map[int][]string, error) {
	results := make(map[int][]string)
	for _, c := range u.Comments {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		rest, ok := strings.CutPrefix(text, expectedPrefix)
		if !ok {
			continue
		}
		// If no expected values are written after the prefix, we simply ignore it.
		for _, lit := range _quotedPattern.FindAllString(rest, -1) {
			v, err := strconv.Unquote(lit)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid expectation %s: %w", u.Name, c.Line, lit, err)
			}
			results[c.Line] = append(results[c.Line], v)
		}
	}
	return results, nil
}

type location struct {
	file string
	line int
}

// Run loads the unit files of dir, analyzes them together and checks that every diagnostic
// matches one `// want "regexp"` comment on its line, and that every expectation is matched.
// Diagnostics are not grouped so that each one is checked at its own line.
func Run(t Testing, conf *config.Config, dir string) *symex.Report {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil || len(paths) == 0 {
		t.Errorf("no unit files in %s: %v", dir, err)
		return nil
	}
	slices.Sort(paths)

	want := make(map[location][]*regexp.Regexp)
	units := make([]*cfg.Unit, 0, len(paths))
	for _, p := range paths {
		u, err := cfg.Load(p)
		if err != nil {
			t.Errorf("%v", err)
			return nil
		}
		units = append(units, u)

		expected, err := FindExpectedValues(u, "want")
		if err != nil {
			t.Errorf("%v", err)
			return nil
		}
		for line, patterns := range expected {
			for _, p := range patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					t.Errorf("%s:%d: invalid pattern %q: %v", u.Name, line, p, err)
					continue
				}
				loc := location{file: u.Name, line: line}
				want[loc] = append(want[loc], re)
			}
		}
	}

	a, err := symex.New(conf, symex.WithLogger(slog.New(slog.DiscardHandler)), symex.WithGrouping(false))
	if err != nil {
		t.Errorf("%v", err)
		return nil
	}
	report, err := a.Run(context.Background(), units...)
	if err != nil {
		t.Errorf("%v", err)
		return nil
	}

	for _, d := range report.Diagnostics {
		loc := location{file: d.Pos.Filename, line: d.Pos.Line}
		i := slices.IndexFunc(want[loc], func(re *regexp.Regexp) bool { return re.MatchString(d.Message) })
		if i < 0 {
			t.Errorf("%s: unexpected diagnostic: %s", d.Pos, d.Message)
			continue
		}
		want[loc] = slices.Delete(want[loc], i, i+1)
	}

	locs := make([]location, 0, len(want))
	for loc := range want {
		locs = append(locs, loc)
	}
	slices.SortFunc(locs, func(a, b location) int {
		if c := strings.Compare(a.file, b.file); c != 0 {
			return c
		}
		return a.line - b.line
	})
	for _, loc := range locs {
		for _, re := range want[loc] {
			t.Errorf("%s:%d: no diagnostic was reported matching %q", loc.file, loc.line, re)
		}
	}
	return report
}
