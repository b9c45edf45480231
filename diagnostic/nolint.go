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
	"slices"
	"strings"

	"go.uber.org/symex/cfg"
)

// Range is a suppressed line range of a file. An empty Checks suppresses every check.
type Range struct {
	Filename string
	From, To int
	Checks   []string
}

func (r Range) covers(pos token.Position, check string) bool {
	if pos.Filename != r.Filename || pos.Line < r.From || pos.Line > r.To {
		return false
	}
	return len(r.Checks) == 0 || slices.ContainsFunc(r.Checks, func(c string) bool { return strings.EqualFold(c, check) })
}

// suppressions returns the lines of u carrying a suppression comment: "NOSONAR", "nolint",
// "nolint:symex" or "nolint:<check>,...".
func suppressions(u *cfg.Unit, trim func(token.Position) token.Position) []Range {
	filename := trim(token.Position{Filename: u.Name}).Filename
	var ranges []Range
	for _, comm := range u.Comments {
		checks, ok := parseSuppression(comm.Text)
		if !ok {
			continue
		}
		ranges = append(ranges, Range{Filename: filename, From: comm.Line, To: comm.Line, Checks: checks})
	}
	return ranges
}

// parseSuppression checks if the comment suppresses diagnostics, and which checks it names.
func parseSuppression(text string) (checks []string, ok bool) {
	text = strings.TrimLeft(text, "/* ")
	if strings.HasPrefix(text, "NOSONAR") {
		return nil, true
	}
	if !strings.HasPrefix(text, "nolint") {
		return nil, false
	}

	// strip explanation comments
	split := strings.Split(text, "//")
	text = strings.TrimSpace(split[0])

	parts := strings.Split(text, ":")
	if len(parts) == 1 {
		return nil, true
	}
	for _, linter := range strings.Split(strings.TrimSpace(parts[1]), ",") {
		linter = strings.TrimSpace(linter)
		if strings.EqualFold(linter, "all") || strings.EqualFold(linter, "symex") {
			return nil, true
		}
		checks = append(checks, linter)
	}
	return checks, len(checks) > 0
}
