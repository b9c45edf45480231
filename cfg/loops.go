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

package cfg

import (
	"github.com/yourbasic/graph"
)

// computeLoops marks every block that belongs to a strongly connected component with a cycle.
func (g *Graph) computeLoops() {
	gr := graph.New(len(g.Blocks))
	for _, b := range g.Blocks {
		for _, s := range g.successorsWithExit(b) {
			gr.Add(b.ID, s)
		}
	}
	for _, component := range graph.StrongComponents(gr) {
		if len(component) == 1 && !gr.Edge(component[0], component[0]) {
			continue
		}
		for _, v := range component {
			g.loops.Insert(v)
		}
	}
}
