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

package engine

import "go.uber.org/symex/explodedgraph"

type item struct {
	node  *explodedgraph.Node
	order int
	seq   int
}

// worklist pops nodes by reverse postorder of their block, then by instruction index, and last
// in first out among equals. Joins are then mostly reached after all their predecessors.
type worklist []*item

func (q worklist) Len() int { return len(q) }

func (q worklist) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.order != b.order {
		return a.order < b.order
	}
	if a.node.Point.Index != b.node.Point.Index {
		return a.node.Point.Index < b.node.Point.Index
	}
	return a.seq > b.seq
}

func (q worklist) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *worklist) Push(x any) { *q = append(*q, x.(*item)) }

func (q *worklist) Pop() any {
	old := *q
	it := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return it.node
}
