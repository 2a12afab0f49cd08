package kernel

import (
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when a kernel violates the structural rules of
// the IR.
var ErrMalformed = errors.New("malformed kernel")

// BlockID is the stable index of a block inside its function.
type BlockID int

// Block is a basic block: a straight-line instruction sequence that ends
// with exactly one terminator.
type Block struct {
	id     BlockID
	name   string
	fn     *Function
	instrs []*Instruction
	preds  []*Block
}

// ID returns the index of the block in Function.Blocks.
func (b *Block) ID() BlockID {
	return b.id
}

// Name returns the block label.
func (b *Block) Name() string {
	return b.name
}

// Function returns the function that owns the block.
func (b *Block) Function() *Function {
	return b.fn
}

// Instructions returns the instructions of the block in program order.
func (b *Block) Instructions() []*Instruction {
	return b.instrs
}

// Terminator returns the last instruction of the block, or nil if the
// block does not end with a terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.instrs) == 0 {
		return nil
	}

	last := b.instrs[len(b.instrs)-1]
	if !last.op.IsTerminator() {
		return nil
	}

	return last
}

// Successors returns the blocks control can flow to from this block.
func (b *Block) Successors() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}

	return t.targets
}

// Predecessors returns the blocks that can flow into this block.
func (b *Block) Predecessors() []*Block {
	return b.preds
}

// Function is a kernel: a list of arguments and an arena of blocks, the
// first of which is the entry.
type Function struct {
	name   string
	args   []*Argument
	blocks []*Block
}

// Name returns the kernel name.
func (f *Function) Name() string {
	return f.name
}

// Arguments returns the formal parameters in declaration order.
func (f *Function) Arguments() []*Argument {
	return f.args
}

// Blocks returns all blocks. Blocks()[i].ID() == BlockID(i).
func (f *Function) Blocks() []*Block {
	return f.blocks
}

// NumBlocks returns the number of blocks.
func (f *Function) NumBlocks() int {
	return len(f.blocks)
}

// Block returns the block with the given id.
func (f *Function) Block(id BlockID) *Block {
	return f.blocks[id]
}

// Entry returns the entry block.
func (f *Function) Entry() *Block {
	return f.blocks[0]
}

// BlockByName finds a block by its label.
func (f *Function) BlockByName(name string) *Block {
	for _, b := range f.blocks {
		if b.name == name {
			return b
		}
	}

	return nil
}

// InstructionByName finds the instruction that defines the named value.
func (f *Function) InstructionByName(name string) *Instruction {
	for _, b := range f.blocks {
		for _, inst := range b.instrs {
			if inst.name == name {
				return inst
			}
		}
	}

	return nil
}

// Print writes a textual listing of the kernel.
func (f *Function) Print(w io.Writer) {
	fmt.Fprintf(w, "kernel %s(", f.name)

	for i, a := range f.args {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}

		if a.typ == TypePointer {
			fmt.Fprintf(w, "%s %s %%%s", a.space, a.typ, a.name)
		} else {
			fmt.Fprintf(w, "%s %%%s", a.typ, a.name)
		}
	}

	fmt.Fprintln(w, ") {")

	for _, b := range f.blocks {
		fmt.Fprintf(w, "%s:\n", b.name)

		for _, inst := range b.instrs {
			fmt.Fprintf(w, "  %s\n", inst)
		}
	}

	fmt.Fprintln(w, "}")
}

// verify checks the structural rules and fills in the predecessor lists.
func (f *Function) verify() error {
	if len(f.blocks) == 0 {
		return fmt.Errorf("%w: kernel %s has no blocks", ErrMalformed, f.name)
	}

	for _, b := range f.blocks {
		b.preds = nil
	}

	for _, b := range f.blocks {
		if err := f.verifyBlock(b); err != nil {
			return err
		}
	}

	for _, b := range f.blocks {
		for _, succ := range b.Successors() {
			if !containsBlock(succ.preds, b) {
				succ.preds = append(succ.preds, b)
			}
		}
	}

	return nil
}

func (f *Function) verifyBlock(b *Block) error {
	if b.Terminator() == nil {
		return fmt.Errorf("%w: block %s of kernel %s has no terminator",
			ErrMalformed, b.name, f.name)
	}

	for n, inst := range b.instrs {
		if inst.op.IsTerminator() && n != len(b.instrs)-1 {
			return fmt.Errorf("%w: terminator in the middle of block %s",
				ErrMalformed, b.name)
		}

		for _, t := range inst.targets {
			if t.fn != f {
				return fmt.Errorf("%w: block %s branches out of kernel %s",
					ErrMalformed, b.name, f.name)
			}
		}

		if err := verifyShape(inst); err != nil {
			return fmt.Errorf("%w: block %s: %s", ErrMalformed, b.name, err)
		}
	}

	return nil
}

func verifyShape(inst *Instruction) error {
	want := -1
	targets := -1

	switch {
	case inst.op.IsBinary(), inst.op == OpICmp, inst.op == OpGEP,
		inst.op == OpStore:
		want = 2
	case inst.op.IsCast(), inst.op == OpLoad:
		want = 1
	case inst.op == OpBr:
		want, targets = 0, 1
	case inst.op == OpCondBr:
		want, targets = 1, 2
	case inst.op == OpRet:
		want, targets = 0, 0
	case inst.op == OpPhi:
		if len(inst.incoming) != len(inst.operands) || len(inst.operands) == 0 {
			return fmt.Errorf("phi %s has mismatching incoming lists", inst.name)
		}
	case inst.op == OpSwitch:
		if len(inst.operands) != 1 || len(inst.targets) == 0 {
			return fmt.Errorf("switch needs a condition and targets")
		}
	}

	if want >= 0 && len(inst.operands) != want {
		return fmt.Errorf("%s expects %d operands, got %d",
			inst.op, want, len(inst.operands))
	}

	if targets >= 0 && len(inst.targets) != targets {
		return fmt.Errorf("%s expects %d targets, got %d",
			inst.op, targets, len(inst.targets))
	}

	return nil
}

func containsBlock(blocks []*Block, b *Block) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}

	return false
}

// Module is a set of kernels loaded together.
type Module struct {
	Kernels []*Function
}

// Lookup returns the kernel with the given name, or nil.
func (m *Module) Lookup(name string) *Function {
	for _, k := range m.Kernels {
		if k.name == name {
			return k
		}
	}

	return nil
}
