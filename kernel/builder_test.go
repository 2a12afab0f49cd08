package kernel_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/kernel"
)

var _ = Describe("Builder", func() {
	var (
		b     *kernel.Builder
		entry *kernel.Block
		then  *kernel.Block
		exit  *kernel.Block
		out   *kernel.Argument
		tid   *kernel.Instruction
	)

	BeforeEach(func() {
		b = kernel.NewBuilder("diamond")
		out = b.AddPointerArgument("out", kernel.AddressSpaceGlobal)

		entry = b.AddBlock("entry")
		then = b.AddBlock("then")
		exit = b.AddBlock("exit")

		b.SetInsertBlock(entry)
		tid = b.Call("tid", "get_local_id", kernel.Const(0))
		cond := b.ICmp("even", kernel.PredEQ, tid, kernel.Const(0))
		b.CondBr(cond, then, exit)

		b.SetInsertBlock(then)
		p := b.GEP("p", out, tid, 4)
		b.Store(kernel.Const(1), p)
		b.Br(exit)

		b.SetInsertBlock(exit)
		b.Ret()
	})

	It("should number blocks in creation order", func() {
		fn, err := b.Finish()
		Expect(err).NotTo(HaveOccurred())

		Expect(fn.Entry()).To(BeIdenticalTo(entry))
		for i, block := range fn.Blocks() {
			Expect(block.ID()).To(Equal(kernel.BlockID(i)))
			Expect(fn.Block(block.ID())).To(BeIdenticalTo(block))
		}
	})

	It("should compute predecessors", func() {
		_, err := b.Finish()
		Expect(err).NotTo(HaveOccurred())

		Expect(entry.Predecessors()).To(BeEmpty())
		Expect(then.Predecessors()).To(ConsistOf(entry))
		Expect(exit.Predecessors()).To(ConsistOf(entry, then))
		Expect(entry.Successors()).To(Equal([]*kernel.Block{then, exit}))
	})

	It("should inherit the address space of the base pointer", func() {
		fn, err := b.Finish()
		Expect(err).NotTo(HaveOccurred())

		p := fn.InstructionByName("p")
		Expect(p.AddressSpace()).To(Equal(kernel.AddressSpaceGlobal))
		Expect(p.ElemSize()).To(Equal(int64(4)))
		Expect(p.Type()).To(Equal(kernel.TypePointer))
	})

	It("should expose the pointer operand of memory accesses", func() {
		fn, err := b.Finish()
		Expect(err).NotTo(HaveOccurred())

		store := then.Instructions()[1]
		Expect(store.Opcode()).To(Equal(kernel.OpStore))
		Expect(store.PointerOperand()).To(BeIdenticalTo(fn.InstructionByName("p")))
		Expect(tid.PointerOperand()).To(BeNil())
	})

	It("should reject a block without terminator", func() {
		b.AddBlock("dangling")

		_, err := b.Finish()
		Expect(err).To(MatchError(kernel.ErrMalformed))
	})

	It("should reject a branch with the wrong number of targets", func() {
		b.AddBlock("bad")
		b.Switch(kernel.Const(0))

		_, err := b.Finish()
		Expect(err).To(MatchError(kernel.ErrMalformed))
	})

	It("should keep metadata in lexical order", func() {
		tid.SetMetadata("b", 2)
		tid.SetMetadata("a", 1)

		Expect(tid.MetadataKeys()).To(Equal([]string{"a", "b"}))
		v, ok := tid.Metadata("b")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(int64(2)))
		Expect(tid.String()).To(ContainSubstring("!a=1 !b=2"))
	})

	It("should print the kernel", func() {
		fn, err := b.Finish()
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		fn.Print(&buf)

		Expect(buf.String()).To(ContainSubstring("kernel diamond(global ptr %out)"))
		Expect(buf.String()).To(ContainSubstring("%even = icmp eq %tid, 0"))
		Expect(buf.String()).To(ContainSubstring("condbr %even, then, exit"))
	})
})

var _ = Describe("Predicate", func() {
	DescribeTable("inverse",
		func(p, inverse kernel.Predicate) {
			Expect(p.Inverse()).To(Equal(inverse))
			Expect(p.Inverse().Inverse()).To(Equal(p))
		},
		Entry("eq", kernel.PredEQ, kernel.PredNE),
		Entry("slt", kernel.PredSLT, kernel.PredSGE),
		Entry("sle", kernel.PredSLE, kernel.PredSGT),
		Entry("ult", kernel.PredULT, kernel.PredUGE),
		Entry("ugt", kernel.PredUGT, kernel.PredULE),
		Entry("true", kernel.PredTrue, kernel.PredFalse),
	)

	It("should round-trip names", func() {
		for p := kernel.PredFalse; p <= kernel.PredSLE; p++ {
			parsed, ok := kernel.ParsePredicate(p.String())
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(p))
		}
	})
})
