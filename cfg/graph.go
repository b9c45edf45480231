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
	"errors"
	"fmt"
	"slices"

	"golang.org/x/tools/container/intsets"
)

// Handler is an exception handler covering a block. A handler without types catches everything,
// like a finally block.
type Handler struct {
	Types  []string
	Target int
}

// Catches returns true if the handler accepts an exception of type exc.
func (h Handler) Catches(exc string, isSubtype func(t, super string) bool) bool {
	if len(h.Types) == 0 {
		return true
	}
	for _, t := range h.Types {
		if t == exc || (isSubtype != nil && isSubtype(exc, t)) {
			return true
		}
	}
	return false
}

// Block is a basic block. Every block but the exit block ends with a terminator.
type Block struct {
	ID           int
	Instructions []Instruction
	// Handlers are the exception handlers covering the block, innermost first.
	Handlers []Handler
}

// Terminator returns the last instruction of the block if it is a terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := &b.Instructions[len(b.Instructions)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the normal and exceptional successors of the block.
func (b *Block) Successors() []int {
	var succs []int
	if t := b.Terminator(); t != nil {
		succs = append(succs, t.Targets...)
	}
	for _, h := range b.Handlers {
		succs = append(succs, h.Target)
	}
	return succs
}

// ErrMalformedGraph is wrapped by all graph construction errors.
var ErrMalformedGraph = errors.New("malformed control-flow graph")

// Graph is the control-flow graph of a method body, along with the block-level facts the engine
// relies on: predecessors, reverse postorder, loop membership and variable liveness.
type Graph struct {
	Blocks []*Block
	Entry  int
	Exit   int

	preds    [][]int
	order    []int
	loops    intsets.Sparse
	liveIn   []intsets.Sparse
	maxStack int
}

// NewGraph validates the blocks and computes the derived facts. Blocks must be indexed by their
// ID; the exit block must be empty.
func NewGraph(blocks []*Block, entry, exit int) (*Graph, error) {
	g := &Graph{Blocks: blocks, Entry: entry, Exit: exit}
	if err := g.validate(); err != nil {
		return nil, err
	}
	g.computePredecessors()
	g.computeOrder()
	g.computeLoops()
	g.computeLiveness()
	return g, nil
}

func (g *Graph) validate() error {
	n := len(g.Blocks)
	if g.Entry < 0 || g.Entry >= n || g.Exit < 0 || g.Exit >= n {
		return fmt.Errorf("%w: entry %d or exit %d out of range [0, %d)", ErrMalformedGraph, g.Entry, g.Exit, n)
	}
	for i, b := range g.Blocks {
		if b == nil || b.ID != i {
			return fmt.Errorf("%w: block at index %d has a mismatching ID", ErrMalformedGraph, i)
		}
		if i == g.Exit {
			if len(b.Instructions) != 0 {
				return fmt.Errorf("%w: exit block %d has instructions", ErrMalformedGraph, i)
			}
			continue
		}
		t := b.Terminator()
		if t == nil {
			return fmt.Errorf("%w: block %d does not end with a terminator", ErrMalformedGraph, i)
		}
		for j := range b.Instructions[:len(b.Instructions)-1] {
			if b.Instructions[j].Op.IsTerminator() {
				return fmt.Errorf("%w: block %d has terminator %q before its end", ErrMalformedGraph, i, b.Instructions[j].Op)
			}
		}
		want := 0
		switch t.Op {
		case OpGoto:
			want = 1
		case OpBranch:
			want = 2
		}
		if len(t.Targets) != want {
			return fmt.Errorf("%w: %s in block %d has %d targets, want %d", ErrMalformedGraph, t.Op, i, len(t.Targets), want)
		}
		for _, s := range b.Successors() {
			if s < 0 || s >= n {
				return fmt.Errorf("%w: block %d jumps to unknown block %d", ErrMalformedGraph, i, s)
			}
		}
	}
	return nil
}

// Block returns the block with the given ID.
func (g *Graph) Block(id int) *Block {
	return g.Blocks[id]
}

// Predecessors returns the IDs of the blocks that can jump to id, including through handlers.
// Returns and throws without a handler reach the exit block.
func (g *Graph) Predecessors(id int) []int {
	return g.preds[id]
}

// IsJoin returns true if states coming from several predecessors meet at the start of block id.
// The exit block is never a join, since each path reaching it is summarized separately.
func (g *Graph) IsJoin(id int) bool {
	return id != g.Exit && len(g.preds[id]) > 1
}

// Order returns the reverse postorder index of block id. Unreachable blocks come last.
func (g *Graph) Order(id int) int {
	return g.order[id]
}

// InLoop returns true if block id belongs to a cycle of the graph.
func (g *Graph) InLoop(id int) bool {
	return g.loops.Has(id)
}

// IsLive returns true if the local symbol may be read on some path starting at block id before
// being written.
func (g *Graph) IsLive(id int, sym SymbolID) bool {
	return g.liveIn[id].Has(int(sym))
}

// MaxStackDepth returns an upper bound of the operand stack depth consumed by one instruction.
func (g *Graph) MaxStackDepth() int {
	return g.maxStack
}

func (g *Graph) exitEdges(b *Block) bool {
	t := b.Terminator()
	return t != nil && (t.Op == OpReturn || t.Op == OpThrow)
}

func (g *Graph) computePredecessors() {
	g.preds = make([][]int, len(g.Blocks))
	add := func(from, to int) {
		if !slices.Contains(g.preds[to], from) {
			g.preds[to] = append(g.preds[to], from)
		}
	}
	for _, b := range g.Blocks {
		for _, s := range b.Successors() {
			add(b.ID, s)
		}
		if g.exitEdges(b) {
			add(b.ID, g.Exit)
		}
		for _, inst := range b.Instructions {
			if d := inst.StackDepth(); d > g.maxStack {
				g.maxStack = d
			}
		}
	}
}

// successorsWithExit is Successors plus the implicit edge to the exit block.
func (g *Graph) successorsWithExit(b *Block) []int {
	succs := b.Successors()
	if g.exitEdges(b) {
		succs = append(succs, g.Exit)
	}
	return succs
}

// computeOrder numbers the blocks in reverse postorder of a depth-first traversal from the entry.
func (g *Graph) computeOrder() {
	numBlocks := len(g.Blocks)
	visited := make([]bool, numBlocks)
	postOrder := make([]int, 0, numBlocks)
	var visit func(cur int)
	visit = func(cur int) {
		visited[cur] = true
		for _, suc := range g.successorsWithExit(g.Blocks[cur]) {
			if !visited[suc] {
				visit(suc)
			}
		}
		postOrder = append(postOrder, cur)
	}
	visit(g.Entry)

	g.order = make([]int, numBlocks)
	for i := range g.order {
		g.order[i] = numBlocks
	}
	for i, b := range postOrder {
		g.order[b] = len(postOrder) - 1 - i
	}
}
