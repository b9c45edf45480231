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
	"cmp"
	"slices"

	"golang.org/x/tools/container/intsets"
)

// computeLiveness runs the classic backward may-liveness analysis over symbols. Handler targets
// contribute their live-in set unconditionally, since an exception may be raised before any write
// of the block.
func (g *Graph) computeLiveness() {
	n := len(g.Blocks)
	use := make([]intsets.Sparse, n)
	def := make([]intsets.Sparse, n)
	for _, b := range g.Blocks {
		for _, inst := range b.Instructions {
			switch inst.Op {
			case OpLoad:
				if !def[b.ID].Has(int(inst.Symbol)) {
					use[b.ID].Insert(int(inst.Symbol))
				}
			case OpStore, OpDeclare:
				def[b.ID].Insert(int(inst.Symbol))
			}
		}
	}

	// Visiting in postorder makes most successors final before their predecessors.
	blocks := make([]int, n)
	for i := range blocks {
		blocks[i] = i
	}
	slices.SortFunc(blocks, func(a, b int) int { return cmp.Compare(g.order[b], g.order[a]) })

	g.liveIn = make([]intsets.Sparse, n)
	for changed := true; changed; {
		changed = false
		for _, id := range blocks {
			b := g.Blocks[id]
			var in intsets.Sparse
			if t := b.Terminator(); t != nil {
				for _, s := range t.Targets {
					in.UnionWith(&g.liveIn[s])
				}
			}
			in.DifferenceWith(&def[id])
			in.UnionWith(&use[id])
			for _, h := range b.Handlers {
				in.UnionWith(&g.liveIn[h.Target])
			}
			if !in.Equals(&g.liveIn[id]) {
				g.liveIn[id].Copy(&in)
				changed = true
			}
		}
	}
}
