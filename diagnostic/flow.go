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
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/symex/flow"
	"go.uber.org/symex/util/tokenhelper"
)

// issueFlow is the flow printed with an issue, from the source of the problem to the issue.
type issueFlow struct {
	nodes []node
	// others counts the alternative flows that are not printed.
	others int
}

// newIssueFlow keeps the shortest flow. Flows list the most recent location first, so the
// locations are reversed to print the program flow in its forward order.
func newIssueFlow(flows []flow.Flow, trim func(token.Position) token.Position) issueFlow {
	if len(flows) == 0 {
		return issueFlow{}
	}
	f := issueFlow{others: len(flows) - 1}
	for i := len(flows[0]) - 1; i >= 0; i-- {
		loc := flows[0][i]
		f.nodes = append(f.nodes, node{position: trim(loc.Pos), repr: loc.Message})
	}
	return f
}

// source returns the first location of the flow.
func (f issueFlow) source() (string, bool) {
	if len(f.nodes) == 0 {
		return "", false
	}
	return f.nodes[0].String(), true
}

// String converts the flow to a string representation, where each entry is of the form
// `<pos>: <reason>`.
func (f issueFlow) String() string {
	if len(f.nodes) == 0 {
		return ""
	}
	lines := make([]string, 0, len(f.nodes)+1)
	for _, n := range f.nodes {
		lines = append(lines, n.String())
	}
	if f.others > 0 {
		lines = append(lines, fmt.Sprintf("\t(%d other flow(s))", f.others))
	}
	return " Observed flow:\n" + strings.Join(lines, "\n")
}

type node struct {
	position token.Position
	repr     string
}

func (n *node) String() string {
	return fmt.Sprintf("\t- %s: %s", tokenhelper.PositionString(n.position), n.repr)
}
