// Package guard derives, for every block of a kernel, the branch
// conditions that must all hold for the block to execute.
package guard

import (
	"fmt"
	"io"

	"github.com/oleiade/lane"

	"github.com/sarchlab/coalesce/cdg"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/scev"
)

// Oracle turns branch operands into expressions.
type Oracle interface {
	SCEV(v kernel.Value) scev.Expr
	Minus(lhs, rhs scev.Expr) scev.Expr
}

// Mask holds the guard conditions of every block of a kernel.
type Mask struct {
	fn    *kernel.Function
	conds [][]Condition
}

// Build computes the masks of all blocks of fn. The guard of a block
// collects the conditions of its controllers, of their controllers, and so
// on, visiting each controlling block once.
func Build(fn *kernel.Function, g *cdg.Graph, oracle Oracle) *Mask {
	m := &Mask{
		fn:    fn,
		conds: make([][]Condition, fn.NumBlocks()),
	}

	branchConds := make([]*Condition, fn.NumBlocks())
	branchCondition := func(b *kernel.Block) Condition {
		if branchConds[b.ID()] == nil {
			c := conditionOf(b, oracle)
			branchConds[b.ID()] = &c
		}

		return *branchConds[b.ID()]
	}

	for _, b := range fn.Blocks() {
		visited := make([]bool, fn.NumBlocks())
		visited[b.ID()] = true

		q := lane.NewQueue()
		for _, e := range g.Controllers(b) {
			q.Enqueue(e)
		}

		for !q.Empty() {
			e := q.Dequeue().(cdg.Edge)
			if visited[e.Block.ID()] {
				continue
			}
			visited[e.Block.ID()] = true

			c := branchCondition(e.Block)
			if !e.Taken {
				c = c.Inverted()
			}
			m.conds[b.ID()] = append(m.conds[b.ID()], c)

			for _, up := range g.Controllers(e.Block) {
				q.Enqueue(up)
			}
		}
	}

	return m
}

// conditionOf derives the condition under which the branch ending b takes
// its first successor.
func conditionOf(b *kernel.Block, oracle Oracle) Condition {
	br := b.Terminator()
	if br == nil || br.Opcode() != kernel.OpCondBr {
		return True(b)
	}

	cmp, ok := br.Operand(0).(*kernel.Instruction)
	if !ok || cmp.Opcode() != kernel.OpICmp {
		return True(b)
	}

	diff := oracle.Minus(oracle.SCEV(cmp.Operand(0)), oracle.SCEV(cmp.Operand(1)))

	return NewCondition(b, diff, cmp.Predicate())
}

// Conditions returns the guard of b. An empty guard means b always
// executes.
func (m *Mask) Conditions(b *kernel.Block) []Condition {
	return m.conds[b.ID()]
}

// Dump prints the guard of every block.
func (m *Mask) Dump(w io.Writer) {
	for _, b := range m.fn.Blocks() {
		fmt.Fprintf(w, "%s:", b.Name())

		if len(m.conds[b.ID()]) == 0 {
			fmt.Fprintln(w, " always")
			continue
		}

		fmt.Fprintln(w)

		for _, c := range m.conds[b.ID()] {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
}
