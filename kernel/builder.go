package kernel

import "log"

// Builder constructs a Function instruction by instruction. Instructions
// are appended to the current insertion block.
type Builder struct {
	fn    *Function
	block *Block
}

// NewBuilder starts a new kernel with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{fn: &Function{name: name}}
}

// AddArgument declares a scalar parameter.
func (b *Builder) AddArgument(name string, typ Type) *Argument {
	a := &Argument{name: name, typ: typ, index: len(b.fn.args)}
	b.fn.args = append(b.fn.args, a)

	return a
}

// AddPointerArgument declares a pointer parameter into the given address
// space.
func (b *Builder) AddPointerArgument(name string, space AddressSpace) *Argument {
	a := b.AddArgument(name, TypePointer)
	a.space = space

	return a
}

// AddBlock appends a new empty block. The first block added is the entry.
// The new block becomes the insertion block.
func (b *Builder) AddBlock(name string) *Block {
	bb := &Block{
		id:   BlockID(len(b.fn.blocks)),
		name: name,
		fn:   b.fn,
	}
	b.fn.blocks = append(b.fn.blocks, bb)
	b.block = bb

	return bb
}

// SetInsertBlock makes bb the block new instructions are appended to.
func (b *Builder) SetInsertBlock(bb *Block) {
	if bb.fn != b.fn {
		log.Panicf("block %s does not belong to kernel %s", bb.name, b.fn.name)
	}

	b.block = bb
}

func (b *Builder) insert(inst *Instruction) *Instruction {
	if b.block == nil {
		log.Panicf("no insertion block in kernel %s", b.fn.name)
	}

	inst.block = b.block
	b.block.instrs = append(b.block.instrs, inst)

	return inst
}

// Binary appends a two-operand integer operation.
func (b *Builder) Binary(op Opcode, name string, lhs, rhs Value) *Instruction {
	if !op.IsBinary() {
		log.Panicf("%s is not a binary opcode", op)
	}

	return b.insert(&Instruction{
		op:       op,
		name:     name,
		typ:      TypeInt,
		operands: []Value{lhs, rhs},
	})
}

// Add appends an addition.
func (b *Builder) Add(name string, lhs, rhs Value) *Instruction {
	return b.Binary(OpAdd, name, lhs, rhs)
}

// Sub appends a subtraction.
func (b *Builder) Sub(name string, lhs, rhs Value) *Instruction {
	return b.Binary(OpSub, name, lhs, rhs)
}

// Mul appends a multiplication.
func (b *Builder) Mul(name string, lhs, rhs Value) *Instruction {
	return b.Binary(OpMul, name, lhs, rhs)
}

// Cast appends an integer width conversion.
func (b *Builder) Cast(op Opcode, name string, v Value) *Instruction {
	if !op.IsCast() {
		log.Panicf("%s is not a cast opcode", op)
	}

	return b.insert(&Instruction{
		op:       op,
		name:     name,
		typ:      TypeInt,
		operands: []Value{v},
	})
}

// ICmp appends an integer comparison.
func (b *Builder) ICmp(name string, pred Predicate, lhs, rhs Value) *Instruction {
	return b.insert(&Instruction{
		op:        OpICmp,
		name:      name,
		typ:       TypeBool,
		predicate: pred,
		operands:  []Value{lhs, rhs},
	})
}

// Call appends a call returning an integer.
func (b *Builder) Call(name, callee string, args ...Value) *Instruction {
	return b.insert(&Instruction{
		op:       OpCall,
		name:     name,
		typ:      TypeInt,
		callee:   callee,
		operands: args,
	})
}

// Phi appends an empty phi. Incoming values are added with AddIncoming.
func (b *Builder) Phi(name string, typ Type) *Instruction {
	return b.insert(&Instruction{
		op:   OpPhi,
		name: name,
		typ:  typ,
	})
}

// AddIncoming adds an incoming edge to a phi.
func (b *Builder) AddIncoming(phi *Instruction, v Value, from *Block) {
	if phi.op != OpPhi {
		log.Panicf("%s is not a phi", phi.name)
	}

	phi.operands = append(phi.operands, v)
	phi.incoming = append(phi.incoming, from)
}

// GEP appends an address computation base + index * elemSize. The result
// lives in the address space of the base pointer.
func (b *Builder) GEP(name string, base, index Value, elemSize int64) *Instruction {
	return b.insert(&Instruction{
		op:       OpGEP,
		name:     name,
		typ:      TypePointer,
		operands: []Value{base, index},
		elemSize: elemSize,
		space:    addressSpaceOf(base),
	})
}

func addressSpaceOf(v Value) AddressSpace {
	switch v := v.(type) {
	case *Argument:
		return v.space
	case *Instruction:
		return v.space
	default:
		return AddressSpacePrivate
	}
}

// Load appends a load of an integer through ptr.
func (b *Builder) Load(name string, ptr Value) *Instruction {
	return b.insert(&Instruction{
		op:       OpLoad,
		name:     name,
		typ:      TypeInt,
		operands: []Value{ptr},
	})
}

// Store appends a store of v through ptr.
func (b *Builder) Store(v, ptr Value) *Instruction {
	return b.insert(&Instruction{
		op:       OpStore,
		typ:      TypeVoid,
		operands: []Value{v, ptr},
	})
}

// Br appends an unconditional branch.
func (b *Builder) Br(target *Block) *Instruction {
	return b.insert(&Instruction{
		op:      OpBr,
		typ:     TypeVoid,
		targets: []*Block{target},
	})
}

// CondBr appends a two-way branch on cond.
func (b *Builder) CondBr(cond Value, ifTrue, ifFalse *Block) *Instruction {
	return b.insert(&Instruction{
		op:       OpCondBr,
		typ:      TypeVoid,
		operands: []Value{cond},
		targets:  []*Block{ifTrue, ifFalse},
	})
}

// Switch appends a multi-way branch on cond.
func (b *Builder) Switch(cond Value, targets ...*Block) *Instruction {
	return b.insert(&Instruction{
		op:       OpSwitch,
		typ:      TypeVoid,
		operands: []Value{cond},
		targets:  targets,
	})
}

// Ret appends a return.
func (b *Builder) Ret() *Instruction {
	return b.insert(&Instruction{op: OpRet, typ: TypeVoid})
}

// Finish validates the kernel and computes the predecessor lists. The
// builder must not be used afterwards.
func (b *Builder) Finish() (*Function, error) {
	if err := b.fn.verify(); err != nil {
		return nil, err
	}

	return b.fn, nil
}
