package loopinfo_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
)

var _ = Describe("Info", func() {
	var (
		fn   *kernel.Function
		info *loopinfo.Info
		b    func(string) *kernel.Block
	)

	BeforeEach(func() {
		fn = mustLoad(`
kernels:
  - name: nested
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [oh]}
      - name: oh
        instructions:
          - {op: condbr, operands: [true], targets: [ih, exit]}
      - name: ih
        instructions:
          - {op: condbr, operands: [true], targets: [ib, ol]}
      - name: ib
        instructions:
          - {op: br, targets: [ih]}
      - name: ol
        instructions:
          - {op: br, targets: [oh]}
      - name: exit
        instructions:
          - {op: ret}
`)
		b = fn.BlockByName
		info = loopinfo.New(fn, dominance.NewDominatorTree(fn))
	})

	It("should find one loop per header", func() {
		Expect(info.Loops()).To(HaveLen(2))
		Expect(info.Loops()[0].Header()).To(BeIdenticalTo(b("oh")))
		Expect(info.Loops()[1].Header()).To(BeIdenticalTo(b("ih")))
	})

	It("should collect loop bodies and latches", func() {
		outer, inner := info.Loops()[0], info.Loops()[1]

		Expect(outer.Blocks()).To(Equal(
			[]*kernel.Block{b("oh"), b("ih"), b("ib"), b("ol")}))
		Expect(outer.Latches()).To(Equal([]*kernel.Block{b("ol")}))
		Expect(inner.Blocks()).To(Equal([]*kernel.Block{b("ih"), b("ib")}))
		Expect(inner.Latches()).To(Equal([]*kernel.Block{b("ib")}))
		Expect(outer.Contains(b("exit"))).To(BeFalse())
	})

	It("should nest loops", func() {
		outer, inner := info.Loops()[0], info.Loops()[1]

		Expect(inner.Parent()).To(BeIdenticalTo(outer))
		Expect(outer.Parent()).To(BeNil())
		Expect(outer.Depth()).To(Equal(1))
		Expect(inner.Depth()).To(Equal(2))
	})

	It("should return the innermost loop of a block", func() {
		outer, inner := info.Loops()[0], info.Loops()[1]

		Expect(info.LoopFor(b("entry"))).To(BeNil())
		Expect(info.LoopFor(b("oh"))).To(BeIdenticalTo(outer))
		Expect(info.LoopFor(b("ol"))).To(BeIdenticalTo(outer))
		Expect(info.LoopFor(b("ih"))).To(BeIdenticalTo(inner))
		Expect(info.LoopFor(b("ib"))).To(BeIdenticalTo(inner))
		Expect(info.LoopFor(b("exit"))).To(BeNil())
	})

	It("should find exiting blocks", func() {
		outer, inner := info.Loops()[0], info.Loops()[1]

		Expect(outer.ExitingBlocks()).To(Equal([]*kernel.Block{b("oh")}))
		Expect(inner.ExitingBlocks()).To(Equal([]*kernel.Block{b("ih")}))
	})

	It("should dump the nest", func() {
		var buf bytes.Buffer
		info.Dump(&buf)

		Expect(buf.String()).To(Equal(
			"oh depth=1 blocks=[oh ih ib ol]\n  ih depth=2 blocks=[ih ib]\n"))
	})
})
