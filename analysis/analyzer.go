// Package analysis predicts the memory behavior of every load and store of
// a kernel for the warps of an environment.
package analysis

import (
	"fmt"

	"github.com/sarchlab/coalesce/cdg"
	"github.com/sarchlab/coalesce/coalescing"
	"github.com/sarchlab/coalesce/config"
	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/guard"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
	"github.com/sarchlab/coalesce/scev"
	"github.com/sarchlab/coalesce/subscript"
)

// Access kinds.
const (
	KindLoad  = "load"
	KindStore = "store"
)

// Metrics, also used as the metadata keys of the analyzed instructions.
const (
	MetricTransactions  = "transaction_number"
	MetricBankConflicts = "conflict_number"
)

// Analyzer computes the transaction and bank conflict counts of the memory
// accesses of one kernel.
type Analyzer struct {
	fn             *kernel.Function
	env            *config.Environment
	loopMultiplier bool
	sink           AccessSink

	se    *scev.Evolution
	loops *loopinfo.Info
	graph *cdg.Graph
	mask  *guard.Mask
	spec  *subscript.Specializer
}

// Function returns the analyzed kernel.
func (a *Analyzer) Function() *kernel.Function {
	return a.fn
}

// ControlDependence returns the control dependence graph of the kernel.
func (a *Analyzer) ControlDependence() *cdg.Graph {
	return a.graph
}

// Mask returns the guard conditions of the blocks of the kernel.
func (a *Analyzer) Mask() *guard.Mask {
	return a.mask
}

// Run analyzes every load and store whose address is computed by a gep,
// in program order. The counts are summed over the warps of the
// environment and attached to the instructions as metadata.
func (a *Analyzer) Run() (*Report, error) {
	report := newReport()
	position := 0

	for _, b := range a.fn.Blocks() {
		for _, inst := range b.Instructions() {
			entry, ok, err := a.analyzeAccess(inst)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			entry.Position = position
			position++

			inst.SetMetadata(entry.Metric, entry.Value)
			report.add(entry)

			if a.sink != nil {
				a.sink.AddAccess(entry)
			}
		}
	}

	if a.sink != nil {
		a.sink.Flush()
	}

	return report, nil
}

func (a *Analyzer) analyzeAccess(
	inst *kernel.Instruction,
) (AccessEntry, bool, error) {
	var kind string

	switch inst.Opcode() {
	case kernel.OpLoad:
		kind = KindLoad
	case kernel.OpStore:
		kind = KindStore
	default:
		return AccessEntry{}, false, nil
	}

	gep, ok := inst.PointerOperand().(*kernel.Instruction)
	if !ok || gep.Opcode() != kernel.OpGEP {
		return AccessEntry{}, false, nil
	}

	local := gep.AddressSpace() == kernel.AddressSpaceLocal
	addr := a.se.SCEV(gep)

	var total int64

	for _, w := range a.env.Warps {
		addrs := a.spec.Addresses(inst, addr, w)
		if len(addrs) == 0 {
			continue
		}

		offsets, err := coalescing.RelativeOffsets(addrs, a.se)
		if err != nil {
			return AccessEntry{}, false, fmt.Errorf(
				"kernel %s, block %s, %s in %s: %w",
				a.fn.Name(), inst.Block().Name(), inst, w, err)
		}

		if local {
			total += int64(coalescing.BankConflictCount(offsets, a.env.Hardware))
		} else {
			total += int64(coalescing.TransactionCount(offsets, a.env.Hardware))
		}
	}

	if a.loopMultiplier {
		if loop := a.loops.LoopFor(inst.Block()); loop != nil {
			count := a.se.BackedgeTakenCount(loop)
			total *= a.spec.ResolveTripCount(count)
		}
	}

	entry := AccessEntry{
		Kind:         kind,
		AddressSpace: gep.AddressSpace().String(),
		Block:        inst.Block().Name(),
		Instruction:  inst.String(),
		Metric:       MetricTransactions,
		Value:        total,
	}

	if local {
		entry.Metric = MetricBankConflicts
	}

	return entry, true, nil
}

// Builder can build Analyzers.
type Builder struct {
	env            *config.Environment
	loopMultiplier bool
	sink           AccessSink
}

// MakeBuilder creates a new Builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithEnvironment sets the hardware, index space, warps and argument
// values the kernel is analyzed with.
func (b Builder) WithEnvironment(env *config.Environment) Builder {
	b.env = env
	return b
}

// WithLoopMultiplier multiplies the counts of the accesses inside a loop
// by the trip count of their innermost loop.
func (b Builder) WithLoopMultiplier(on bool) Builder {
	b.loopMultiplier = on
	return b
}

// WithSink forwards every analyzed access to sink.
func (b Builder) WithSink(sink AccessSink) Builder {
	b.sink = sink
	return b
}

// Build prepares the analysis of fn. It fails if the control flow of fn
// is not supported.
func (b Builder) Build(fn *kernel.Function) (*Analyzer, error) {
	if b.env == nil {
		return nil, fmt.Errorf("kernel %s: no environment", fn.Name())
	}

	graph, err := cdg.Build(fn, dominance.NewPostDominatorTree(fn))
	if err != nil {
		return nil, err
	}

	loops := loopinfo.New(fn, dominance.NewDominatorTree(fn))
	se := scev.New(fn, loops)
	mask := guard.Build(fn, graph, se)

	return &Analyzer{
		fn:             fn,
		env:            b.env,
		loopMultiplier: b.loopMultiplier,
		sink:           b.sink,
		se:             se,
		loops:          loops,
		graph:          graph,
		mask:           mask,
		spec:           subscript.NewSpecializer(se, mask, b.env.Space, b.env.Args),
	}, nil
}
