// Package scev is a small symbolic evaluator for the integer values of a
// kernel. It turns values into expressions over constants, kernel
// parameters and opaque instruction results, recognizes affine induction
// variables, and answers sign queries.
package scev

import (
	"fmt"
	"log"
	"strings"

	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
)

// Expr is a symbolic expression. The set of implementations is closed:
// *Constant, *NAry, *UDiv, *Cast, *AddRec, *Unknown and the value of
// CouldNotCompute. Expressions created by the same Evolution are interned,
// so two structurally equal expressions are the same pointer.
type Expr interface {
	// ID returns the creation index of the expression. Canonical operand
	// orders are defined by IDs.
	ID() int
	String() string

	expr()
}

// Constant is a 64-bit integer literal.
type Constant struct {
	id    int
	value int64
}

// Value returns the literal.
func (c *Constant) Value() int64 { return c.value }

// ID returns the creation index of the expression.
func (c *Constant) ID() int { return c.id }

func (c *Constant) String() string { return fmt.Sprintf("%d", c.value) }

func (c *Constant) expr() {}

// NAryOp is a commutative and associative operator.
type NAryOp int

// Commutative operators.
const (
	OpAdd NAryOp = iota
	OpMul
	OpSMax
	OpUMax
	OpSMin
	OpUMin
)

var nAryOpNames = [...]string{
	OpAdd:  "+",
	OpMul:  "*",
	OpSMax: "smax",
	OpUMax: "umax",
	OpSMin: "smin",
	OpUMin: "umin",
}

func (op NAryOp) String() string {
	return nAryOpNames[op]
}

// NAry applies a commutative operator to two or more operands.
type NAry struct {
	id  int
	op  NAryOp
	ops []Expr
}

// Op returns the operator.
func (n *NAry) Op() NAryOp { return n.op }

// Operands returns the operands in canonical order.
func (n *NAry) Operands() []Expr { return n.ops }

// ID returns the creation index of the expression.
func (n *NAry) ID() int { return n.id }

func (n *NAry) String() string {
	parts := make([]string, len(n.ops))
	for i, o := range n.ops {
		parts[i] = o.String()
	}

	switch n.op {
	case OpAdd, OpMul:
		return "(" + strings.Join(parts, " "+n.op.String()+" ") + ")"
	default:
		return n.op.String() + "(" + strings.Join(parts, ", ") + ")"
	}
}

func (n *NAry) expr() {}

// UDiv is an unsigned division.
type UDiv struct {
	id       int
	lhs, rhs Expr
}

// LHS returns the dividend.
func (d *UDiv) LHS() Expr { return d.lhs }

// RHS returns the divisor.
func (d *UDiv) RHS() Expr { return d.rhs }

// ID returns the creation index of the expression.
func (d *UDiv) ID() int { return d.id }

func (d *UDiv) String() string {
	return fmt.Sprintf("(%s /u %s)", d.lhs, d.rhs)
}

func (d *UDiv) expr() {}

// CastOp is an integer width conversion.
type CastOp int

// Conversions.
const (
	CastZExt CastOp = iota
	CastSExt
	CastTrunc
)

var castOpNames = [...]string{
	CastZExt:  "zext",
	CastSExt:  "sext",
	CastTrunc: "trunc",
}

func (op CastOp) String() string {
	return castOpNames[op]
}

// Cast is a width conversion of an expression.
type Cast struct {
	id      int
	op      CastOp
	operand Expr
}

// Op returns the conversion.
func (c *Cast) Op() CastOp { return c.op }

// Operand returns the converted expression.
func (c *Cast) Operand() Expr { return c.operand }

// ID returns the creation index of the expression.
func (c *Cast) ID() int { return c.id }

func (c *Cast) String() string {
	return fmt.Sprintf("(%s %s)", c.op, c.operand)
}

func (c *Cast) expr() {}

// AddRec is an affine recurrence {Start,+,Step}: the value is Start on the
// first iteration of Loop and grows by Step on every iteration.
type AddRec struct {
	id    int
	start Expr
	step  Expr
	loop  *loopinfo.Loop
}

// Start returns the value on the first iteration.
func (r *AddRec) Start() Expr { return r.start }

// Step returns the per-iteration increment.
func (r *AddRec) Step() Expr { return r.step }

// Loop returns the loop the recurrence iterates in.
func (r *AddRec) Loop() *loopinfo.Loop { return r.loop }

// ID returns the creation index of the expression.
func (r *AddRec) ID() int { return r.id }

func (r *AddRec) String() string {
	return fmt.Sprintf("{%s,+,%s}<%s>", r.start, r.step, r.loop.Header().Name())
}

func (r *AddRec) expr() {}

// Unknown is an opaque reference to a kernel argument or instruction.
type Unknown struct {
	id    int
	value kernel.Value
}

// Value returns the referenced kernel value.
func (u *Unknown) Value() kernel.Value { return u.value }

// Instruction returns the referenced instruction, or nil if the value is
// not an instruction.
func (u *Unknown) Instruction() *kernel.Instruction {
	inst, _ := u.value.(*kernel.Instruction)
	return inst
}

// ID returns the creation index of the expression.
func (u *Unknown) ID() int { return u.id }

func (u *Unknown) String() string {
	if u.value.Name() == "" {
		return "%<unnamed>"
	}

	return "%" + u.value.Name()
}

func (u *Unknown) expr() {}

type couldNotCompute struct{}

func (couldNotCompute) ID() int { return -1 }

func (couldNotCompute) String() string { return "***COULDNOTCOMPUTE***" }

func (couldNotCompute) expr() {}

// CouldNotCompute marks a value that cannot be expressed. Every operator
// applied to it yields CouldNotCompute.
var CouldNotCompute Expr = couldNotCompute{}

// IsCouldNotCompute tells if e is the CouldNotCompute marker.
func IsCouldNotCompute(e Expr) bool {
	_, ok := e.(couldNotCompute)
	return ok
}

// AsConstant returns the literal value of e if e is a constant.
func AsConstant(e Expr) (int64, bool) {
	if c, ok := e.(*Constant); ok {
		return c.value, true
	}

	return 0, false
}

func unknownVariant(e Expr) {
	log.Panicf("unknown expression kind %T", e)
}
