package cdg_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/cdg"
	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/kernel"
)

func build(src string) (*kernel.Function, *cdg.Graph, error) {
	fn := mustLoad(src)
	g, err := cdg.Build(fn, dominance.NewPostDominatorTree(fn))

	return fn, g, err
}

var _ = Describe("Graph", func() {
	It("should make both arms of a diamond depend on the branch", func() {
		fn, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: condbr, operands: [true], targets: [then, else]}
      - name: then
        instructions:
          - {op: br, targets: [join]}
      - name: else
        instructions:
          - {op: br, targets: [join]}
      - name: join
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		entry := fn.Entry()
		Expect(g.Dependents(entry)).To(Equal([]cdg.Edge{
			{Block: fn.BlockByName("then"), Taken: true},
			{Block: fn.BlockByName("else"), Taken: false},
		}))
		Expect(g.Controllers(fn.BlockByName("then"))).
			To(Equal([]cdg.Edge{{Block: entry, Taken: true}}))
		Expect(g.Controllers(fn.BlockByName("else"))).
			To(Equal([]cdg.Edge{{Block: entry, Taken: false}}))
		Expect(g.Controllers(fn.BlockByName("join"))).To(BeEmpty())
		Expect(g.Controllers(entry)).To(BeEmpty())
	})

	It("should skip a successor that post-dominates the branch", func() {
		fn, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: condbr, operands: [true], targets: [outer, join]}
      - name: outer
        instructions:
          - {op: condbr, operands: [true], targets: [inner, join]}
      - name: inner
        instructions:
          - {op: br, targets: [join]}
      - name: join
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		Expect(g.Dependents(fn.Entry())).To(Equal([]cdg.Edge{
			{Block: fn.BlockByName("outer"), Taken: true},
		}))
		Expect(g.Controllers(fn.BlockByName("inner"))).To(Equal([]cdg.Edge{
			{Block: fn.BlockByName("outer"), Taken: true},
		}))
	})

	It("should not make a loop header control itself", func() {
		fn, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {op: condbr, operands: [true], targets: [body, exit]}
      - name: body
        instructions:
          - {op: br, targets: [header]}
      - name: exit
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		header := fn.BlockByName("header")
		Expect(g.Controllers(header)).To(BeEmpty())
		Expect(g.Controllers(fn.BlockByName("body"))).
			To(Equal([]cdg.Edge{{Block: header, Taken: true}}))
	})

	It("should handle a latch that post-dominates the header", func() {
		fn, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {op: condbr, operands: [true], targets: [then, latch]}
      - name: then
        instructions:
          - {op: br, targets: [latch]}
      - name: latch
        instructions:
          - {op: condbr, operands: [true], targets: [header, exit]}
      - name: exit
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		header := fn.BlockByName("header")
		latch := fn.BlockByName("latch")

		Expect(g.Dependents(latch)).To(Equal([]cdg.Edge{
			{Block: header, Taken: true},
		}))
		Expect(g.Controllers(fn.BlockByName("then"))).
			To(Equal([]cdg.Edge{{Block: header, Taken: true}}))
		Expect(g.Controllers(latch)).To(BeEmpty())
	})

	It("should walk up to the virtual exit", func() {
		fn, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: condbr, operands: [true], targets: [a, b]}
      - name: a
        instructions:
          - {op: ret}
      - name: b
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		Expect(g.Controllers(fn.BlockByName("a"))).
			To(Equal([]cdg.Edge{{Block: fn.Entry(), Taken: true}}))
		Expect(g.Controllers(fn.BlockByName("b"))).
			To(Equal([]cdg.Edge{{Block: fn.Entry(), Taken: false}}))
	})

	It("should reject branches with more than two successors", func() {
		_, _, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: switch, operands: [0], targets: [a, b, c]}
      - name: a
        instructions:
          - {op: ret}
      - name: b
        instructions:
          - {op: ret}
      - name: c
        instructions:
          - {op: ret}
`)
		Expect(err).To(MatchError(cdg.ErrTooManySuccessors))
	})

	It("should reject branches into blocks that never return", func() {
		_, _, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: condbr, operands: [true], targets: [spin, done]}
      - name: spin
        instructions:
          - {op: br, targets: [spin]}
      - name: done
        instructions:
          - {op: ret}
`)
		Expect(err).To(MatchError(cdg.ErrIllFormed))
	})

	It("should dump both directions", func() {
		_, g, err := build(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: condbr, operands: [true], targets: [then, join]}
      - name: then
        instructions:
          - {op: br, targets: [join]}
      - name: join
        instructions:
          - {op: ret}
`)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		g.Dump(&buf)

		Expect(buf.String()).To(Equal(
			"forward:\n  entry -> then(T)\nbackward:\n  then <- entry(T)\n"))
	})
})
