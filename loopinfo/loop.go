// Package loopinfo finds the natural loops of a kernel and arranges them
// in a nest.
package loopinfo

import (
	"fmt"
	"io"
	"sort"

	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/kernel"
)

// Loop is a natural loop: a header and every block that can reach one of
// its latches without passing through the header.
type Loop struct {
	header  *kernel.Block
	latches []*kernel.Block
	blocks  []*kernel.Block
	member  []bool
	parent  *Loop
	depth   int
}

// Header returns the single entry block of the loop.
func (l *Loop) Header() *kernel.Block {
	return l.header
}

// Latches returns the blocks that branch back to the header.
func (l *Loop) Latches() []*kernel.Block {
	return l.latches
}

// Blocks returns the blocks of the loop in block order, nested loops
// included.
func (l *Loop) Blocks() []*kernel.Block {
	return l.blocks
}

// Contains tells if b is part of the loop or of a nested loop.
func (l *Loop) Contains(b *kernel.Block) bool {
	id := int(b.ID())
	return id < len(l.member) && l.member[id]
}

// ExitingBlocks returns the blocks of the loop that have a successor
// outside the loop.
func (l *Loop) ExitingBlocks() []*kernel.Block {
	var exiting []*kernel.Block

	for _, b := range l.blocks {
		for _, s := range b.Successors() {
			if !l.Contains(s) {
				exiting = append(exiting, b)
				break
			}
		}
	}

	return exiting
}

// Parent returns the loop immediately enclosing this one, or nil.
func (l *Loop) Parent() *Loop {
	return l.parent
}

// Depth returns the nesting depth; outermost loops have depth 1.
func (l *Loop) Depth() int {
	return l.depth
}

func (l *Loop) String() string {
	return fmt.Sprintf("loop(%s)", l.header.Name())
}

// Info is the loop nest of one kernel.
type Info struct {
	loops     []*Loop
	innermost []*Loop
}

// New finds the loops of fn. A back edge is an edge whose target dominates
// its source; back edges that share a target form one loop.
func New(fn *kernel.Function, dt *dominance.Tree) *Info {
	n := fn.NumBlocks()
	info := &Info{innermost: make([]*Loop, n)}

	for _, h := range fn.Blocks() {
		var latches []*kernel.Block

		for _, p := range h.Predecessors() {
			if dt.IsReachable(p) && dt.Dominates(h, p) {
				latches = append(latches, p)
			}
		}

		if len(latches) > 0 {
			info.loops = append(info.loops, newLoop(n, h, latches))
		}
	}

	info.nest()

	return info
}

func newLoop(n int, header *kernel.Block, latches []*kernel.Block) *Loop {
	l := &Loop{
		header:  header,
		latches: latches,
		member:  make([]bool, n),
	}

	l.member[header.ID()] = true
	work := append([]*kernel.Block(nil), latches...)

	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]

		if l.member[b.ID()] {
			continue
		}

		l.member[b.ID()] = true
		work = append(work, b.Predecessors()...)
	}

	fn := header.Function()
	for i, in := range l.member {
		if in {
			l.blocks = append(l.blocks, fn.Block(kernel.BlockID(i)))
		}
	}

	return l
}

func (info *Info) nest() {
	bySize := append([]*Loop(nil), info.loops...)
	sort.SliceStable(bySize, func(i, j int) bool {
		return len(bySize[i].blocks) < len(bySize[j].blocks)
	})

	for i, l := range bySize {
		for _, outer := range bySize[i+1:] {
			if outer.Contains(l.header) {
				l.parent = outer
				break
			}
		}
	}

	for _, l := range bySize {
		for p := l; p != nil; p = p.parent {
			l.depth++
		}
	}

	for i := len(bySize) - 1; i >= 0; i-- {
		l := bySize[i]
		for _, b := range l.blocks {
			info.innermost[b.ID()] = l
		}
	}
}

// Loops returns every loop, ordered by header block.
func (info *Info) Loops() []*Loop {
	return info.loops
}

// LoopFor returns the innermost loop that contains b, or nil.
func (info *Info) LoopFor(b *kernel.Block) *Loop {
	return info.innermost[b.ID()]
}

// Dump prints the loop nest.
func (info *Info) Dump(w io.Writer) {
	for _, l := range info.loops {
		fmt.Fprintf(w, "%*s%s depth=%d blocks=[", 2*(l.depth-1), "",
			l.header.Name(), l.depth)

		for i, b := range l.blocks {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, b.Name())
		}

		fmt.Fprintln(w, "]")
	}
}
