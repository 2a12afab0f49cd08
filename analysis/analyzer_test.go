package analysis

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/coalesce/cdg"
	"github.com/sarchlab/coalesce/coalescing"
	"github.com/sarchlab/coalesce/config"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/ndrange"
)

const straightLine = `
kernels:
  - name: tile
    args:
      - {name: a, type: ptr, space: global}
      - {name: t, type: ptr, space: local}
    blocks:
      - name: entry
        instructions:
          - {name: lid, op: call, callee: get_local_id, operands: [0]}
          - {name: gid, op: call, callee: get_global_id, operands: [0]}
          - {name: pa, op: gep, operands: [a, gid], elem: 4}
          - {name: va, op: load, operands: [pa]}
          - {name: idx, op: mul, operands: [lid, 8]}
          - {name: pb, op: gep, operands: [a, idx], elem: 4}
          - {name: vb, op: load, operands: [pb]}
          - {name: pt, op: gep, operands: [t, lid], elem: 128}
          - {op: store, operands: [va, pt]}
          - {name: pu, op: gep, operands: [t, lid], elem: 4}
          - {name: vu, op: load, operands: [pu]}
          - {op: store, operands: [vb, pa]}
          - {op: ret}
`

const guarded = `
kernels:
  - name: guarded
    args:
      - {name: a, type: ptr}
      - {name: n, type: int}
    blocks:
      - name: entry
        instructions:
          - {name: gid, op: call, callee: get_global_id, operands: [0]}
          - {name: inrange, op: icmp, pred: slt, operands: [gid, n]}
          - {op: condbr, operands: [inrange], targets: [body, exit]}
      - name: body
        instructions:
          - {name: pa, op: gep, operands: [a, gid], elem: 4}
          - {name: va, op: load, operands: [pa]}
          - {op: br, targets: [exit]}
      - name: exit
        instructions:
          - {op: ret}
`

const countedLoop = `
kernels:
  - name: loop
    args:
      - {name: a, type: ptr}
      - {name: n, type: int}
    blocks:
      - name: entry
        instructions:
          - {name: gid, op: call, callee: get_global_id, operands: [0]}
          - {op: br, targets: [header]}
      - name: header
        instructions:
          - {name: i, op: phi, operands: [0, next], incoming: [entry, body]}
          - {name: c, op: icmp, pred: slt, operands: [i, n]}
          - {op: condbr, operands: [c], targets: [body, exit]}
      - name: body
        instructions:
          - {name: next, op: add, operands: [i, 1]}
          - {name: off, op: add, operands: [i, gid]}
          - {name: p, op: gep, operands: [a, off], elem: 4}
          - {name: v, op: load, operands: [p]}
          - {op: br, targets: [header]}
      - name: exit
        instructions:
          - {op: ret}
`

const opaqueIndex = `
kernels:
  - name: opaque
    args:
      - {name: a, type: ptr}
    blocks:
      - name: entry
        instructions:
          - {name: gid, op: call, callee: get_global_id, operands: [0]}
          - {name: x, op: xor, operands: [gid, 1]}
          - {name: p, op: gep, operands: [a, x], elem: 4}
          - {name: v, op: load, operands: [p]}
          - {op: ret}
`

const wideSwitch = `
kernels:
  - name: wide
    args:
      - {name: a, type: ptr}
    blocks:
      - name: entry
        instructions:
          - {name: gid, op: call, callee: get_global_id, operands: [0]}
          - {op: switch, operands: [gid], targets: [one, two, three]}
      - name: one
        instructions:
          - {op: ret}
      - name: two
        instructions:
          - {op: ret}
      - name: three
        instructions:
          - {op: ret}
`

var hw = coalescing.HardwareConfig{
	BankCount:     32,
	BankWidth:     4,
	WarpSize:      8,
	CacheLineSize: 32,
}

func newEnvironment(
	fn *kernel.Function,
	groups int,
	args map[string]int64,
) *config.Environment {
	space, err := ndrange.NewSpace([3]int{8, 1, 1}, [3]int{groups, 1, 1})
	Expect(err).NotTo(HaveOccurred())

	factory, err := ndrange.NewWarpFactory(space, hw.WarpSize)
	Expect(err).NotTo(HaveOccurred())

	var warps []*ndrange.Warp
	for g := 0; g < groups; g++ {
		w, err := factory.CreateWarp([3]int{g, 0, 0}, 0)
		Expect(err).NotTo(HaveOccurred())
		warps = append(warps, w)
	}

	bound := make(map[*kernel.Argument]int64)
	for _, a := range fn.Arguments() {
		if v, ok := args[a.Name()]; ok {
			bound[a] = v
		}
	}

	return &config.Environment{
		Hardware: hw,
		Space:    space,
		Warps:    warps,
		Args:     bound,
	}
}

func run(src string, groups int, args map[string]int64) (*kernel.Function, *Report) {
	fn := mustLoad(src)

	a, err := MakeBuilder().
		WithEnvironment(newEnvironment(fn, groups, args)).
		Build(fn)
	Expect(err).NotTo(HaveOccurred())

	r, err := a.Run()
	Expect(err).NotTo(HaveOccurred())

	return fn, r
}

var _ = ginkgo.Describe("Analyzer", func() {
	var (
		mockCtrl *gomock.Controller
		sink     *MockAccessSink
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		sink = NewMockAccessSink(mockCtrl)
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	ginkgo.It("should count transactions and bank conflicts of a branch-free kernel", func() {
		fn, r := run(straightLine, 1, nil)

		Expect(r.LoadTransactions).To(Equal([]int64{1, 8}))
		Expect(r.StoreTransactions).To(Equal([]int64{1}))
		Expect(r.LoadBankConflicts).To(Equal([]int64{0}))
		Expect(r.StoreBankConflicts).To(Equal([]int64{7}))

		v, ok := fn.InstructionByName("vb").Metadata(MetricTransactions)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(int64(8)))

		v, ok = fn.InstructionByName("vu").Metadata(MetricBankConflicts)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(int64(0)))

		_, ok = fn.InstructionByName("vu").Metadata(MetricTransactions)
		Expect(ok).To(BeFalse())
	})

	ginkgo.It("should sum the counts of all warps", func() {
		_, r := run(straightLine, 3, nil)

		Expect(r.LoadTransactions).To(Equal([]int64{3, 24}))
		Expect(r.StoreBankConflicts).To(Equal([]int64{21}))
	})

	ginkgo.It("should only count the work-items that execute the access", func() {
		_, r := run(guarded, 2, map[string]int64{"n": 12})
		Expect(r.LoadTransactions).To(Equal([]int64{2}))

		_, r = run(guarded, 2, map[string]int64{"n": 0})
		Expect(r.LoadTransactions).To(Equal([]int64{0}))
	})

	ginkgo.It("should multiply accesses in loops by the trip count", func() {
		fn := mustLoad(countedLoop)
		env := newEnvironment(fn, 1, map[string]int64{"n": 10})

		a, err := MakeBuilder().WithEnvironment(env).Build(fn)
		Expect(err).NotTo(HaveOccurred())
		r, err := a.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.LoadTransactions).To(Equal([]int64{1}))

		a, err = MakeBuilder().
			WithEnvironment(env).
			WithLoopMultiplier(true).
			Build(fn)
		Expect(err).NotTo(HaveOccurred())
		r, err = a.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(r.LoadTransactions).To(Equal([]int64{10}))
	})

	ginkgo.It("should fail on addresses it cannot resolve", func() {
		fn := mustLoad(opaqueIndex)

		a, err := MakeBuilder().
			WithEnvironment(newEnvironment(fn, 1, nil)).
			Build(fn)
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Run()
		Expect(err).To(MatchError(coalescing.ErrUnresolvedOffset))
		Expect(err.Error()).To(ContainSubstring("kernel opaque, block entry"))
	})

	ginkgo.It("should reject unsupported control flow", func() {
		fn := mustLoad(wideSwitch)

		_, err := MakeBuilder().
			WithEnvironment(newEnvironment(fn, 1, nil)).
			Build(fn)
		Expect(err).To(MatchError(cdg.ErrTooManySuccessors))
	})

	ginkgo.It("should require an environment", func() {
		_, err := MakeBuilder().Build(mustLoad(guarded))
		Expect(err).To(HaveOccurred())
	})

	ginkgo.It("should forward the accesses in program order", func() {
		fn := mustLoad(straightLine)

		var entries []AccessEntry

		gomock.InOrder(
			sink.EXPECT().AddAccess(gomock.Any()).
				Do(func(e AccessEntry) { entries = append(entries, e) }).
				Times(5),
			sink.EXPECT().Flush(),
		)

		a, err := MakeBuilder().
			WithEnvironment(newEnvironment(fn, 1, nil)).
			WithSink(sink).
			Build(fn)
		Expect(err).NotTo(HaveOccurred())

		_, err = a.Run()
		Expect(err).NotTo(HaveOccurred())

		Expect(entries).To(HaveLen(5))
		Expect(entries[2]).To(Equal(AccessEntry{
			Position:     2,
			Kind:         KindStore,
			AddressSpace: "local",
			Block:        "entry",
			Instruction:  "store %va, %pt",
			Metric:       MetricBankConflicts,
			Value:        7,
		}))
		Expect(entries[4].Kind).To(Equal(KindStore))
		Expect(entries[4].AddressSpace).To(Equal("global"))
	})
})

var _ = ginkgo.Describe("Report", func() {
	ginkgo.It("should write flow sequences", func() {
		r := newReport()
		r.add(AccessEntry{Kind: KindLoad, Metric: MetricTransactions, Value: 1})
		r.add(AccessEntry{Kind: KindLoad, Metric: MetricTransactions, Value: 8})
		r.add(AccessEntry{Kind: KindStore, Metric: MetricBankConflicts, Value: 7})

		var buf bytes.Buffer
		Expect(r.WriteYAML(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"load_transactions: [1, 8]\n" +
				"store_transactions: []\n" +
				"load_bank_conflicts: []\n" +
				"store_bank_conflicts: [7]\n"))
	})
})

var _ = ginkgo.Describe("CSVSink", func() {
	ginkgo.It("should write one row per access", func() {
		name := filepath.Join(ginkgo.GinkgoT().TempDir(), "accesses")

		s, err := NewCSVSink(name)
		Expect(err).NotTo(HaveOccurred())

		s.AddAccess(AccessEntry{
			Position:     0,
			Kind:         KindLoad,
			AddressSpace: "global",
			Block:        "entry",
			Instruction:  "%v = load %p",
			Metric:       MetricTransactions,
			Value:        3,
		})
		Expect(s.Close()).To(Succeed())

		f, err := os.Open(name + ".csv")
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0][0]).To(Equal("Position"))
		Expect(rows[1]).To(Equal([]string{
			"0", "load", "global", "entry", "%v = load %p",
			"transaction_number", "3",
		}))
	})
})
