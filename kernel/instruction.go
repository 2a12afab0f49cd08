package kernel

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode identifies the operation of an instruction.
type Opcode int

// Opcodes understood by the analysis.
const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpShl
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpZExt
	OpSExt
	OpTrunc
	OpICmp
	OpCall
	OpPhi
	OpGEP
	OpLoad
	OpStore
	OpBr
	OpCondBr
	OpSwitch
	OpRet
)

var opcodeNames = [...]string{
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpShl:    "shl",
	OpUDiv:   "udiv",
	OpSDiv:   "sdiv",
	OpURem:   "urem",
	OpSRem:   "srem",
	OpAnd:    "and",
	OpOr:     "or",
	OpXor:    "xor",
	OpZExt:   "zext",
	OpSExt:   "sext",
	OpTrunc:  "trunc",
	OpICmp:   "icmp",
	OpCall:   "call",
	OpPhi:    "phi",
	OpGEP:    "gep",
	OpLoad:   "load",
	OpStore:  "store",
	OpBr:     "br",
	OpCondBr: "condbr",
	OpSwitch: "switch",
	OpRet:    "ret",
}

func (o Opcode) String() string {
	if o >= 0 && int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}

	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOpcode converts the textual name of an opcode back to an Opcode.
func ParseOpcode(s string) (Opcode, bool) {
	for o, name := range opcodeNames {
		if name == s {
			return Opcode(o), true
		}
	}

	return OpRet, false
}

// IsTerminator tells if the opcode ends a basic block.
func (o Opcode) IsTerminator() bool {
	return o == OpBr || o == OpCondBr || o == OpSwitch || o == OpRet
}

// IsBinary tells if the opcode is a two-operand integer operation.
func (o Opcode) IsBinary() bool {
	return o >= OpAdd && o <= OpXor
}

// IsCast tells if the opcode is an integer width conversion.
func (o Opcode) IsCast() bool {
	return o == OpZExt || o == OpSExt || o == OpTrunc
}

// Instruction is a single operation inside a basic block. Which fields are
// meaningful depends on the opcode.
type Instruction struct {
	op       Opcode
	name     string
	typ      Type
	operands []Value
	block    *Block

	callee    string
	predicate Predicate
	incoming  []*Block
	elemSize  int64
	space     AddressSpace
	targets   []*Block

	metadata map[string]int64
}

// Opcode returns the operation of the instruction.
func (i *Instruction) Opcode() Opcode {
	return i.op
}

// Name returns the name of the value the instruction defines, or an empty
// string for instructions that define nothing.
func (i *Instruction) Name() string {
	return i.name
}

// Type returns the type of the defined value.
func (i *Instruction) Type() Type {
	return i.typ
}

// Block returns the basic block that holds the instruction.
func (i *Instruction) Block() *Block {
	return i.block
}

// NumOperands returns the number of operands.
func (i *Instruction) NumOperands() int {
	return len(i.operands)
}

// Operand returns the n-th operand.
func (i *Instruction) Operand(n int) Value {
	return i.operands[n]
}

// Operands returns the operand list. Callers must not modify it.
func (i *Instruction) Operands() []Value {
	return i.operands
}

// Callee returns the name of the called function of a call.
func (i *Instruction) Callee() string {
	return i.callee
}

// Predicate returns the comparison of an icmp.
func (i *Instruction) Predicate() Predicate {
	return i.predicate
}

// NumIncoming returns the number of incoming edges of a phi.
func (i *Instruction) NumIncoming() int {
	return len(i.incoming)
}

// Incoming returns the n-th incoming value of a phi and the block it flows
// from.
func (i *Instruction) Incoming(n int) (Value, *Block) {
	return i.operands[n], i.incoming[n]
}

// ElemSize returns the element size, in bytes, scaled by a gep index.
func (i *Instruction) ElemSize() int64 {
	return i.elemSize
}

// AddressSpace returns the address space of the pointer a gep produces.
func (i *Instruction) AddressSpace() AddressSpace {
	return i.space
}

// Successors returns the target blocks of a terminator.
func (i *Instruction) Successors() []*Block {
	return i.targets
}

// PointerOperand returns the address accessed by a load or a store, or nil
// for any other instruction.
func (i *Instruction) PointerOperand() Value {
	switch i.op {
	case OpLoad:
		return i.operands[0]
	case OpStore:
		return i.operands[1]
	default:
		return nil
	}
}

// SetMetadata attaches an integer annotation to the instruction.
func (i *Instruction) SetMetadata(key string, value int64) {
	if i.metadata == nil {
		i.metadata = make(map[string]int64)
	}

	i.metadata[key] = value
}

// Metadata returns an annotation previously attached to the instruction.
func (i *Instruction) Metadata(key string) (int64, bool) {
	v, ok := i.metadata[key]
	return v, ok
}

// MetadataKeys returns the annotation keys in lexical order.
func (i *Instruction) MetadataKeys() []string {
	keys := make([]string, 0, len(i.metadata))
	for k := range i.metadata {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func operandName(v Value) string {
	switch v := v.(type) {
	case *Constant:
		return v.Name()
	case *Argument:
		return "%" + v.Name()
	case *Instruction:
		if v.name == "" {
			return "%<unnamed>"
		}
		return "%" + v.name
	default:
		return "?"
	}
}

func (i *Instruction) String() string {
	var sb strings.Builder

	if i.name != "" {
		fmt.Fprintf(&sb, "%%%s = ", i.name)
	}

	sb.WriteString(i.op.String())

	switch i.op {
	case OpICmp:
		fmt.Fprintf(&sb, " %s", i.predicate)
	case OpCall:
		fmt.Fprintf(&sb, " @%s", i.callee)
	case OpGEP:
		fmt.Fprintf(&sb, " %s x%d", i.space, i.elemSize)
	}

	for n, v := range i.operands {
		if n == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}

		sb.WriteString(operandName(v))

		if i.op == OpPhi {
			fmt.Fprintf(&sb, " [%s]", i.incoming[n].name)
		}
	}

	for n, t := range i.targets {
		if n == 0 && len(i.operands) == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}

		sb.WriteString(t.name)
	}

	for _, k := range i.MetadataKeys() {
		fmt.Fprintf(&sb, " !%s=%d", k, i.metadata[k])
	}

	return sb.String()
}
