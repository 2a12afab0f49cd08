package kernel_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/coalesce/kernel"
)

var _ = Describe("Loader", func() {
	It("should load every kernel of a module", func() {
		m, err := kernel.LoadFile("testdata/vector_add.yaml")
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Kernels).To(HaveLen(2))
		Expect(m.Lookup("vector_add")).NotTo(BeNil())
		Expect(m.Lookup("tile_copy")).NotTo(BeNil())
		Expect(m.Lookup("missing")).To(BeNil())
	})

	It("should resolve operands, targets and attributes", func() {
		m, err := kernel.LoadFile("testdata/vector_add.yaml")
		Expect(err).NotTo(HaveOccurred())

		fn := m.Lookup("vector_add")
		Expect(fn.Arguments()).To(HaveLen(4))
		Expect(fn.Arguments()[3].Type()).To(Equal(kernel.TypeInt))

		gid := fn.InstructionByName("gid")
		Expect(gid.Callee()).To(Equal("get_global_id"))
		Expect(gid.Operand(0).(*kernel.Constant).Value()).To(Equal(int64(0)))

		cmp := fn.InstructionByName("inrange")
		Expect(cmp.Predicate()).To(Equal(kernel.PredSLT))
		Expect(cmp.Operand(0)).To(BeIdenticalTo(gid))
		Expect(cmp.Operand(1)).To(BeIdenticalTo(fn.Arguments()[3]))

		entry := fn.Entry()
		Expect(entry.Successors()).To(Equal([]*kernel.Block{
			fn.BlockByName("body"), fn.BlockByName("exit"),
		}))

		pa := fn.InstructionByName("pa")
		Expect(pa.ElemSize()).To(Equal(int64(4)))
		Expect(pa.AddressSpace()).To(Equal(kernel.AddressSpaceGlobal))
	})

	It("should take the address space from the base pointer", func() {
		m, err := kernel.LoadFile("testdata/vector_add.yaml")
		Expect(err).NotTo(HaveOccurred())

		fn := m.Lookup("tile_copy")
		Expect(fn.InstructionByName("pt").AddressSpace()).
			To(Equal(kernel.AddressSpaceLocal))
		Expect(fn.InstructionByName("pi").AddressSpace()).
			To(Equal(kernel.AddressSpaceGlobal))
	})

	It("should allow forward references in phis", func() {
		src := `
kernels:
  - name: loop
    args:
      - {name: n, type: int}
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: i, op: phi, operands: [0, next], incoming: [entry, header]}
          - {name: next, op: add, operands: [i, 1]}
          - {name: c, op: icmp, pred: slt, operands: [next, n]}
          - {op: condbr, operands: [c], targets: [header, exit]}
      - name: exit
        instructions:
          - {op: ret}
`
		m, err := kernel.Load(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())

		fn := m.Lookup("loop")
		phi := fn.InstructionByName("i")
		v, from := phi.Incoming(1)
		Expect(v).To(BeIdenticalTo(fn.InstructionByName("next")))
		Expect(from).To(BeIdenticalTo(fn.BlockByName("header")))
		Expect(fn.BlockByName("header").Predecessors()).
			To(ConsistOf(fn.Entry(), fn.BlockByName("header")))
	})

	DescribeTable("malformed modules",
		func(src string) {
			_, err := kernel.Load(strings.NewReader(src))
			Expect(err).To(MatchError(kernel.ErrMalformed))
		},
		Entry("unknown opcode", `
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: jump}
`),
		Entry("unknown operand", `
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {name: x, op: add, operands: [y, 1]}
          - {op: ret}
`),
		Entry("unknown target", `
kernels:
  - name: k
    blocks:
      - name: entry
        instructions:
          - {op: br, targets: [nowhere]}
`),
		Entry("duplicate value", `
kernels:
  - name: k
    args:
      - {name: x, type: int}
    blocks:
      - name: entry
        instructions:
          - {name: x, op: add, operands: [1, 1]}
          - {op: ret}
`),
		Entry("unknown field", `
kernels:
  - name: k
    colour: blue
`),
	)
})
