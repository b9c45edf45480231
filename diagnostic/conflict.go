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

	"go.uber.org/symex/util/tokenhelper"
)

type conflict struct {
	position token.Position
	check    string
	method   string
	message  string
	flow     issueFlow
	// internal is set for the panics of the analysis itself, which are never suppressed nor
	// grouped.
	internal         bool
	similarConflicts []*conflict
}

func (c *conflict) String() string {
	// build string for similar conflicts (i.e., conflicts with the same source)
	similarConflictsString := ""
	if len(c.similarConflicts) > 0 {
		similarPos := make([]string, len(c.similarConflicts))
		for i, s := range c.similarConflicts {
			similarPos[i] = fmt.Sprintf("\"%s\"", tokenhelper.PositionString(s.position))
		}

		posString := strings.Join(similarPos[:len(similarPos)-1], ", ")
		if len(similarPos) > 1 {
			posString = posString + ", and "
		}
		posString = posString + similarPos[len(similarPos)-1]

		similarConflictsString = fmt.Sprintf("\n\n(Same source could also cause issue(s) at %d "+
			"other place(s): %s.)", len(c.similarConflicts), posString)
	}

	return c.message + c.flow.String() + similarConflictsString
}

func (c *conflict) addSimilarConflict(conflict conflict) {
	c.similarConflicts = append(c.similarConflicts, &conflict)
}

// groupConflicts groups the conflicts of a check with the same flow source together and returns
// the remaining conflicts.
func groupConflicts(allConflicts []conflict) []conflict {
	conflictsMap := make(map[string]int)  // key: check and source, value: index in `allConflicts`
	indicesToIgnore := make(map[int]bool) // indices of conflicts grouped with other conflicts

	for i, c := range allConflicts {
		source, ok := c.flow.source()
		if c.internal || !ok {
			continue
		}
		key := c.check + "\x00" + source
		if existingConflictIndex, ok := conflictsMap[key]; ok {
			allConflicts[existingConflictIndex].addSimilarConflict(c)
			indicesToIgnore[i] = true
		} else {
			conflictsMap[key] = i
		}
	}

	var groupedConflicts []conflict
	for i, c := range allConflicts {
		if !indicesToIgnore[i] {
			groupedConflicts = append(groupedConflicts, c)
		}
	}
	return groupedConflicts
}
