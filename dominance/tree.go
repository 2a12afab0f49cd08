// Package dominance provides dominator and post-dominator trees over the
// control-flow graph of a kernel.
package dominance

import (
	"log"

	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sarchlab/coalesce/kernel"
)

const (
	noParent    = -1
	unreachable = -2
)

// Tree is a dominator tree. For a post-dominator tree, the root is a
// virtual exit node that is not a block of the function; queries that
// would answer with the virtual exit return nil.
type Tree struct {
	fn     *kernel.Function
	post   bool
	root   int
	parent []int
	depth  []int
}

// NewDominatorTree builds the dominator tree of fn, rooted at the entry
// block.
func NewDominatorTree(fn *kernel.Function) *Tree {
	n := fn.NumBlocks()
	g := simple.NewDirectedGraph()

	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}

	for _, b := range fn.Blocks() {
		for _, s := range b.Successors() {
			addEdge(g, int(b.ID()), int(s.ID()))
		}
	}

	return buildTree(fn, false, 0, n, g)
}

// NewPostDominatorTree builds the post-dominator tree of fn. The tree is
// computed on the reversed control-flow graph, rooted at a virtual exit
// that flows into every returning block.
func NewPostDominatorTree(fn *kernel.Function) *Tree {
	n := fn.NumBlocks()
	exit := n
	g := simple.NewDirectedGraph()

	for i := 0; i <= n; i++ {
		g.AddNode(simple.Node(i))
	}

	for _, b := range fn.Blocks() {
		succs := b.Successors()
		if len(succs) == 0 {
			addEdge(g, exit, int(b.ID()))
		}

		for _, s := range succs {
			addEdge(g, int(s.ID()), int(b.ID()))
		}
	}

	return buildTree(fn, true, exit, n+1, g)
}

// addEdge skips self loops, which cannot change dominance.
func addEdge(g *simple.DirectedGraph, from, to int) {
	if from == to {
		return
	}

	g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
}

func buildTree(
	fn *kernel.Function,
	post bool,
	root, numNodes int,
	g *simple.DirectedGraph,
) *Tree {
	dt := flow.Dominators(simple.Node(root), g)

	t := &Tree{
		fn:     fn,
		post:   post,
		root:   root,
		parent: make([]int, numNodes),
		depth:  make([]int, numNodes),
	}

	for i := 0; i < numNodes; i++ {
		switch idom := dt.DominatorOf(int64(i)); {
		case i == root:
			t.parent[i] = noParent
		case idom == nil:
			t.parent[i] = unreachable
		default:
			t.parent[i] = int(idom.ID())
		}
	}

	for i := range t.depth {
		t.depth[i] = -1
	}

	for i := 0; i < numNodes; i++ {
		t.computeDepth(i)
	}

	return t
}

func (t *Tree) computeDepth(i int) int {
	if t.depth[i] >= 0 {
		return t.depth[i]
	}

	switch t.parent[i] {
	case noParent, unreachable:
		t.depth[i] = 0
	default:
		t.depth[i] = t.computeDepth(t.parent[i]) + 1
	}

	return t.depth[i]
}

// IsPostDominatorTree tells if the tree is a post-dominator tree.
func (t *Tree) IsPostDominatorTree() bool {
	return t.post
}

func (t *Tree) id(b *kernel.Block) int {
	if b.Function() != t.fn {
		log.Panicf("block %s does not belong to kernel %s",
			b.Name(), t.fn.Name())
	}

	return int(b.ID())
}

func (t *Tree) block(i int) *kernel.Block {
	if i < 0 || i >= t.fn.NumBlocks() {
		return nil
	}

	return t.fn.Block(kernel.BlockID(i))
}

// IsReachable tells if the block is part of the tree. In a post-dominator
// tree, blocks that cannot reach a return are not.
func (t *Tree) IsReachable(b *kernel.Block) bool {
	return t.parent[t.id(b)] != unreachable
}

// Parent returns the immediate (post-)dominator of b. It returns nil for
// the entry of a dominator tree, and for blocks immediately post-dominated
// by the virtual exit.
func (t *Tree) Parent(b *kernel.Block) *kernel.Block {
	p := t.parent[t.id(b)]
	if p < 0 {
		return nil
	}

	return t.block(p)
}

// Dominates tells if a (post-)dominates b. Every block dominates itself.
func (t *Tree) Dominates(a, b *kernel.Block) bool {
	x, y := t.id(a), t.id(b)
	if x == y {
		return true
	}

	if t.parent[x] == unreachable || t.parent[y] == unreachable {
		return false
	}

	for t.depth[y] > t.depth[x] {
		y = t.parent[y]
	}

	return x == y
}

// NearestCommonDominator returns the deepest block that (post-)dominates
// both a and b. It returns nil when the answer is the virtual exit of a
// post-dominator tree, or when either block is unreachable.
func (t *Tree) NearestCommonDominator(a, b *kernel.Block) *kernel.Block {
	x, y := t.id(a), t.id(b)

	if t.parent[x] == unreachable || t.parent[y] == unreachable {
		return nil
	}

	for t.depth[x] > t.depth[y] {
		x = t.parent[x]
	}

	for t.depth[y] > t.depth[x] {
		y = t.parent[y]
	}

	for x != y {
		x = t.parent[x]
		y = t.parent[y]
	}

	return t.block(x)
}

// Children returns the blocks immediately (post-)dominated by b, in block
// order.
func (t *Tree) Children(b *kernel.Block) []*kernel.Block {
	x := t.id(b)

	var children []*kernel.Block

	for i, p := range t.parent {
		if p == x {
			children = append(children, t.block(i))
		}
	}

	return children
}
