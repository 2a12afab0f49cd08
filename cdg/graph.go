// Package cdg builds the control dependence graph of a kernel from its
// post-dominator tree.
package cdg

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/kernel"
)

var (
	// ErrTooManySuccessors is returned for a block whose terminator has
	// more than two successors.
	ErrTooManySuccessors = errors.New("branch with more than two successors")

	// ErrIllFormed is returned when the control flow does not have the
	// shape the construction relies on, for example a branch that cannot
	// reach a return.
	ErrIllFormed = errors.New("ill-formed control flow")
)

// Edge is one side of a control dependence. Block is the other end of the
// dependence. Taken is true when the dependence follows the first
// successor of the controlling branch.
type Edge struct {
	Block *kernel.Block
	Taken bool
}

// Graph holds the control dependences of one kernel, in both directions.
type Graph struct {
	fn       *kernel.Function
	forward  [][]Edge
	backward [][]Edge
}

// Build computes the control dependences of fn. A block b depends on a
// branch a when one successor of a leads to b without passing through the
// immediate post-dominator of a.
func Build(fn *kernel.Function, pdt *dominance.Tree) (*Graph, error) {
	n := fn.NumBlocks()
	g := &Graph{
		fn:       fn,
		forward:  make([][]Edge, n),
		backward: make([][]Edge, n),
	}

	for _, a := range fn.Blocks() {
		if err := g.addBranch(a, pdt); err != nil {
			return nil, fmt.Errorf("kernel %s: %w", fn.Name(), err)
		}
	}

	for _, a := range fn.Blocks() {
		for _, e := range g.forward[a.ID()] {
			g.backward[e.Block.ID()] = append(g.backward[e.Block.ID()],
				Edge{Block: a, Taken: e.Taken})
		}
	}

	return g, nil
}

func (g *Graph) addBranch(a *kernel.Block, pdt *dominance.Tree) error {
	succs := a.Successors()

	if len(succs) > 2 {
		return fmt.Errorf("%w: block %s has %d successors",
			ErrTooManySuccessors, a.Name(), len(succs))
	}

	if len(succs) < 2 {
		return nil
	}

	if !pdt.IsReachable(a) {
		return fmt.Errorf("%w: branch in block %s never reaches a return",
			ErrIllFormed, a.Name())
	}

	for i, b := range succs {
		if pdt.Dominates(b, a) {
			continue
		}

		if !pdt.IsReachable(b) {
			return fmt.Errorf("%w: successor %s of block %s never reaches a return",
				ErrIllFormed, b.Name(), a.Name())
		}

		if err := g.addEdge(a, b, i == 0, pdt); err != nil {
			return err
		}
	}

	return nil
}

func (g *Graph) addEdge(a, b *kernel.Block, taken bool, pdt *dominance.Tree) error {
	l := pdt.NearestCommonDominator(a, b)
	parent := pdt.Parent(a)

	var stop *kernel.Block

	switch l {
	case parent:
		stop = l
	case a:
		stop = parent
	default:
		return fmt.Errorf("%w: edge %s -> %s: nearest common post-dominator %s",
			ErrIllFormed, a.Name(), b.Name(), blockName(l))
	}

	for w := b; w != stop; w = pdt.Parent(w) {
		if w == nil {
			return fmt.Errorf("%w: edge %s -> %s escapes the post-dominator tree",
				ErrIllFormed, a.Name(), b.Name())
		}

		g.addDependence(a, w, taken)
	}

	return nil
}

func (g *Graph) addDependence(a, w *kernel.Block, taken bool) {
	if a == w {
		return
	}

	for _, e := range g.forward[a.ID()] {
		if e.Block == w {
			return
		}
	}

	g.forward[a.ID()] = append(g.forward[a.ID()], Edge{Block: w, Taken: taken})
}

func blockName(b *kernel.Block) string {
	if b == nil {
		return "<exit>"
	}

	return b.Name()
}

// Function returns the kernel the graph was built for.
func (g *Graph) Function() *kernel.Function {
	return g.fn
}

// Controllers returns the branches b directly depends on. Edge.Block is the
// controlling block.
func (g *Graph) Controllers(b *kernel.Block) []Edge {
	return g.backward[b.ID()]
}

// Dependents returns the blocks that directly depend on the branch ending
// b. Edge.Block is the dependent block.
func (g *Graph) Dependents(b *kernel.Block) []Edge {
	return g.forward[b.ID()]
}

// Dump prints both directions of the graph.
func (g *Graph) Dump(w io.Writer) {
	fmt.Fprintln(w, "forward:")
	g.dump(w, g.forward, "->")

	fmt.Fprintln(w, "backward:")
	g.dump(w, g.backward, "<-")
}

func (g *Graph) dump(w io.Writer, edges [][]Edge, arrow string) {
	for _, b := range g.fn.Blocks() {
		if len(edges[b.ID()]) == 0 {
			continue
		}

		fmt.Fprintf(w, "  %s %s", b.Name(), arrow)

		for _, e := range edges[b.ID()] {
			outcome := "F"
			if e.Taken {
				outcome = "T"
			}

			fmt.Fprintf(w, " %s(%s)", e.Block.Name(), outcome)
		}

		fmt.Fprintln(w)
	}
}
