// Package kernel models the compiled form of a data-parallel kernel: a
// function made of basic blocks holding typed instructions.
//
// The model is intentionally small. It carries exactly what the coalescing
// analysis needs from a host compiler: control flow with at most two-way
// branches, integer arithmetic, comparisons, calls to work-item built-ins,
// address computations and memory accesses.
package kernel

import (
	"fmt"
	"strconv"
)

// Type is the type of a kernel value.
type Type int

// Types a value can have.
const (
	TypeVoid Type = iota
	TypeInt
	TypeBool
	TypePointer
)

var typeNames = map[Type]string{
	TypeVoid:    "void",
	TypeInt:     "int",
	TypeBool:    "bool",
	TypePointer: "ptr",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType converts the textual name of a type back to a Type.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}

	return TypeVoid, false
}

// AddressSpace identifies the memory a pointer refers to.
type AddressSpace int

// Address spaces, numbered as in OpenCL-targeting compilers.
const (
	AddressSpacePrivate  AddressSpace = 0
	AddressSpaceGlobal   AddressSpace = 1
	AddressSpaceConstant AddressSpace = 2
	AddressSpaceLocal    AddressSpace = 3
)

var addressSpaceNames = map[AddressSpace]string{
	AddressSpacePrivate:  "private",
	AddressSpaceGlobal:   "global",
	AddressSpaceConstant: "constant",
	AddressSpaceLocal:    "local",
}

func (s AddressSpace) String() string {
	if name, ok := addressSpaceNames[s]; ok {
		return name
	}

	return fmt.Sprintf("addrspace(%d)", int(s))
}

// ParseAddressSpace converts the textual name of an address space back to
// an AddressSpace.
func ParseAddressSpace(s string) (AddressSpace, bool) {
	for space, name := range addressSpaceNames {
		if name == s {
			return space, true
		}
	}

	return AddressSpacePrivate, false
}

// Value is anything that can be used as an instruction operand.
type Value interface {
	Name() string
	Type() Type
}

// Constant is an integer or boolean literal.
type Constant struct {
	value int64
	typ   Type
}

// Const creates an integer constant.
func Const(v int64) *Constant {
	return &Constant{value: v, typ: TypeInt}
}

// Bool creates a boolean constant.
func Bool(b bool) *Constant {
	if b {
		return &Constant{value: 1, typ: TypeBool}
	}

	return &Constant{value: 0, typ: TypeBool}
}

// Value returns the literal value.
func (c *Constant) Value() int64 {
	return c.value
}

// Name returns the literal in decimal form.
func (c *Constant) Name() string {
	return strconv.FormatInt(c.value, 10)
}

// Type returns the type of the literal.
func (c *Constant) Type() Type {
	return c.typ
}

// Argument is a formal parameter of a kernel.
type Argument struct {
	name  string
	typ   Type
	index int
	space AddressSpace
}

// Name returns the parameter name.
func (a *Argument) Name() string {
	return a.name
}

// Type returns the parameter type.
func (a *Argument) Type() Type {
	return a.typ
}

// Index returns the position of the parameter in the kernel signature.
func (a *Argument) Index() int {
	return a.index
}

// AddressSpace returns the address space of a pointer parameter.
func (a *Argument) AddressSpace() AddressSpace {
	return a.space
}
