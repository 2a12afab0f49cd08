package scev_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
	"github.com/sarchlab/coalesce/scev"
)

const countedLoop = `
kernels:
  - name: k
    args:
      - {name: a, type: ptr}
      - {name: n, type: int}
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: i, op: phi, operands: [0, next], incoming: [entry, body]}
          - {name: c, op: icmp, pred: slt, operands: [i, n]}
          - {op: condbr, operands: [c], targets: [body, exit]}
      - name: body
        instructions:
          - {name: next, op: add, operands: [i, 1]}
          - {name: p, op: gep, operands: [a, i], elem: 4}
          - {name: v, op: load, operands: [p]}
          - {op: br, targets: [header]}
      - name: exit
        instructions:
          - {op: ret}
`

func analyze(src string) (*kernel.Function, *loopinfo.Info, *scev.Evolution) {
	fn := mustLoad(src)
	loops := loopinfo.New(fn, dominance.NewDominatorTree(fn))

	return fn, loops, scev.New(fn, loops)
}

var _ = Describe("Recurrences", func() {
	It("should recognize an induction variable", func() {
		fn, loops, se := analyze(countedLoop)

		i := se.SCEV(fn.InstructionByName("i"))
		rec, ok := i.(*scev.AddRec)
		Expect(ok).To(BeTrue())
		Expect(rec.Loop()).To(BeIdenticalTo(loops.Loops()[0]))
		Expect(rec.String()).To(Equal("{0,+,1}<header>"))
		Expect(se.IsKnownNonNegative(rec)).To(BeTrue())
	})

	It("should fold addresses into the recurrence", func() {
		fn, _, se := analyze(countedLoop)

		p := se.SCEV(fn.InstructionByName("p"))
		Expect(p.String()).To(Equal("{%a,+,4}<header>"))

		next := se.SCEV(fn.InstructionByName("next"))
		Expect(next.String()).To(Equal("{1,+,1}<header>"))
	})

	It("should tell loop-invariant expressions", func() {
		fn, loops, se := analyze(countedLoop)
		loop := loops.Loops()[0]

		Expect(se.IsLoopInvariant(se.SCEV(fn.Arguments()[1]), loop)).To(BeTrue())
		Expect(se.IsLoopInvariant(se.SCEV(fn.InstructionByName("i")), loop)).
			To(BeFalse())
		Expect(se.IsLoopInvariant(se.SCEV(fn.InstructionByName("v")), loop)).
			To(BeFalse())
	})

	It("should leave non-affine phis opaque", func() {
		fn, _, se := analyze(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: i, op: phi, operands: [1, next], incoming: [entry, header]}
          - {name: next, op: mul, operands: [i, 2]}
          - {name: c, op: icmp, pred: ult, operands: [next, 64]}
          - {op: condbr, operands: [c], targets: [header, exit]}
      - name: exit
        instructions:
          - {op: ret}
`)
		i := se.SCEV(fn.InstructionByName("i"))
		Expect(i.String()).To(Equal("%i"))
		Expect(se.SCEV(fn.InstructionByName("next")).String()).
			To(Equal("(2 * %i)"))
	})
})

var _ = Describe("BackedgeTakenCount", func() {
	It("should count up to a symbolic bound", func() {
		_, loops, se := analyze(countedLoop)

		btc := se.BackedgeTakenCount(loops.Loops()[0])
		Expect(btc.String()).To(Equal("smax(0, %n)"))
	})

	DescribeTable("constant loops",
		func(init, step, pred, bound string, exitOnTrue bool, want int64) {
			targets := "[body, exit]"
			if exitOnTrue {
				targets = "[exit, body]"
			}

			_, loops, se := analyze(`
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: i, op: phi, operands: [` + init + `, next], incoming: [entry, body]}
          - {name: c, op: icmp, pred: ` + pred + `, operands: [i, ` + bound + `]}
          - {op: condbr, operands: [c], targets: ` + targets + `}
      - name: body
        instructions:
          - {name: next, op: add, operands: [i, ` + step + `]}
          - {op: br, targets: [header]}
      - name: exit
        instructions:
          - {op: ret}
`)
			btc := se.BackedgeTakenCount(loops.Loops()[0])
			v, ok := scev.AsConstant(btc)
			Expect(ok).To(BeTrue(), btc.String())
			Expect(v).To(Equal(want))
		},
		Entry("slt", "0", "1", "slt", "10", false, int64(10)),
		Entry("sle with stride", "0", "2", "sle", "9", false, int64(5)),
		Entry("ult from offset", "3", "1", "ult", "10", false, int64(7)),
		Entry("sgt counting down", "10", "-1", "sgt", "0", false, int64(10)),
		Entry("sge counting down", "10", "-3", "sge", "0", false, int64(4)),
		Entry("ne", "0", "4", "ne", "32", false, int64(8)),
		Entry("exit on true", "0", "1", "sge", "16", true, int64(16)),
		Entry("never entered", "20", "1", "slt", "10", false, int64(0)),
	)

	It("should give up on loops it does not understand", func() {
		_, loops, se := analyze(`
kernels:
  - name: k
    args:
      - {name: p, type: ptr}
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: x, op: load, operands: [p]}
          - {name: c, op: icmp, pred: ne, operands: [x, 0]}
          - {op: condbr, operands: [c], targets: [header, exit]}
      - name: exit
        instructions:
          - {op: ret}
`)
		btc := se.BackedgeTakenCount(loops.Loops()[0])
		Expect(scev.IsCouldNotCompute(btc)).To(BeTrue())
	})
})
