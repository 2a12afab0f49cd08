package scev_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/scev"
)

var _ = Describe("Evolution", func() {
	var (
		se   *scev.Evolution
		a, b scev.Expr
	)

	BeforeEach(func() {
		fn := mustLoad(`
kernels:
  - name: k
    args:
      - {name: a, type: int}
      - {name: b, type: int}
    blocks:
      - name: entry
        instructions:
          - {op: ret}
`)
		se = scev.New(fn, nil)
		a = se.SCEV(fn.Arguments()[0])
		b = se.SCEV(fn.Arguments()[1])
	})

	It("should intern expressions", func() {
		Expect(se.Constant(7)).To(BeIdenticalTo(se.Constant(7)))
		Expect(se.Add(a, b)).To(BeIdenticalTo(se.Add(b, a)))
		Expect(se.Mul(a, b, se.Constant(2))).
			To(BeIdenticalTo(se.Mul(se.Constant(2), b, a)))
	})

	It("should treat parameters as unknowns", func() {
		u, ok := a.(*scev.Unknown)
		Expect(ok).To(BeTrue())
		Expect(u.Value().Name()).To(Equal("a"))
		Expect(u.Instruction()).To(BeNil())
	})

	It("should fold constants and combine like terms", func() {
		Expect(se.Add(a, se.Constant(3), a).String()).
			To(Equal("(3 + (2 * %a))"))
		Expect(se.IsZero(se.Minus(a, a))).To(BeTrue())
		Expect(se.Add(se.Constant(2), se.Constant(5))).
			To(BeIdenticalTo(se.Constant(7)))
	})

	It("should distribute constants over sums", func() {
		e := se.Mul(se.Constant(4), se.Add(a, se.Constant(1)))
		Expect(e.String()).To(Equal("(4 + (4 * %a))"))
	})

	It("should fold divisions and extrema of constants", func() {
		Expect(se.UDiv(se.Constant(10), se.Constant(3))).
			To(BeIdenticalTo(se.Constant(3)))
		Expect(se.UDiv(a, se.Constant(1))).To(BeIdenticalTo(a))
		Expect(se.SMax(se.Constant(0), se.Constant(-5))).
			To(BeIdenticalTo(se.Constant(0)))
		Expect(se.SMin(se.Constant(0), se.Constant(-5))).
			To(BeIdenticalTo(se.Constant(-5)))
		Expect(se.SMax(a, a)).To(BeIdenticalTo(a))
		Expect(se.ZeroExtend(se.Constant(5))).To(BeIdenticalTo(se.Constant(5)))
	})

	It("should propagate could-not-compute", func() {
		cnc := scev.CouldNotCompute

		Expect(scev.IsCouldNotCompute(se.Add(a, cnc))).To(BeTrue())
		Expect(scev.IsCouldNotCompute(se.Mul(cnc, b))).To(BeTrue())
		Expect(scev.IsCouldNotCompute(se.UDiv(a, cnc))).To(BeTrue())
		Expect(scev.IsCouldNotCompute(se.SMax(cnc))).To(BeTrue())
		Expect(scev.IsCouldNotCompute(se.SignExtend(cnc))).To(BeTrue())
	})

	It("should answer sign queries", func() {
		za := se.ZeroExtend(a)

		Expect(se.IsKnownNonNegative(za)).To(BeTrue())
		Expect(se.IsKnownPositive(se.Add(za, se.Constant(1)))).To(BeTrue())
		Expect(se.IsKnownNonZero(a)).To(BeFalse())
		Expect(se.IsKnownNegative(se.Constant(-2))).To(BeTrue())
		Expect(se.IsKnownNonPositive(se.Constant(0))).To(BeTrue())
		Expect(se.IsKnownNonZero(se.Mul(se.Constant(-3), se.Add(za, se.Constant(1))))).
			To(BeTrue())
	})

	It("should never prove anything about could-not-compute", func() {
		cnc := scev.CouldNotCompute

		Expect(se.IsZero(cnc)).To(BeFalse())
		Expect(se.IsKnownPositive(cnc)).To(BeFalse())
		Expect(se.IsKnownNonNegative(cnc)).To(BeFalse())
		Expect(se.IsKnownNegative(cnc)).To(BeFalse())
		Expect(se.IsKnownNonPositive(cnc)).To(BeFalse())
		Expect(se.IsKnownNonZero(cnc)).To(BeFalse())
	})

	It("should translate arithmetic instructions", func() {
		fn := mustLoad(`
kernels:
  - name: k
    args:
      - {name: p, type: ptr}
      - {name: x, type: int}
    blocks:
      - name: entry
        instructions:
          - {name: s, op: shl, operands: [x, 2]}
          - {name: d, op: sub, operands: [s, x]}
          - {name: w, op: zext, operands: [d]}
          - {name: g, op: gep, operands: [p, w], elem: 8}
          - {name: r, op: urem, operands: [x, 3]}
          - {op: ret}
`)
		se := scev.New(fn, nil)

		Expect(se.SCEV(fn.InstructionByName("d")).String()).
			To(Equal("(3 * %x)"))
		Expect(se.SCEV(fn.InstructionByName("g")).String()).
			To(Equal("(%p + (8 * (zext (3 * %x))))"))

		r, ok := se.SCEV(fn.InstructionByName("r")).(*scev.Unknown)
		Expect(ok).To(BeTrue())
		Expect(r.Instruction().Opcode()).To(Equal(kernel.OpURem))
	})
})
