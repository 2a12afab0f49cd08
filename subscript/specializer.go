// Package subscript evaluates symbolic address and guard expressions for
// concrete work-items.
package subscript

import (
	"log"
	"strings"

	"github.com/sarchlab/coalesce/guard"
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/ndrange"
	"github.com/sarchlab/coalesce/scev"
)

// DefaultTripCount is assumed for loops whose trip count cannot be
// resolved.
const DefaultTripCount = 1024

// A Specializer rewrites expressions by substituting the coordinates of a
// work-item, the sizes of the index space and the values of the kernel
// arguments.
type Specializer struct {
	se    *scev.Evolution
	mask  *guard.Mask
	space *ndrange.Space
	args  map[*kernel.Argument]int64
}

// NewSpecializer creates a specializer. Integer arguments missing from
// args stay symbolic.
func NewSpecializer(
	se *scev.Evolution,
	mask *guard.Mask,
	space *ndrange.Space,
	args map[*kernel.Argument]int64,
) *Specializer {
	return &Specializer{
		se:    se,
		mask:  mask,
		space: space,
		args:  args,
	}
}

// Specialize returns e evaluated at the work-item p. The result is a
// constant when every symbol of e is known.
func (s *Specializer) Specialize(e scev.Expr, p ndrange.Point) scev.Expr {
	r := &rewriter{
		Specializer: s,
		point:       p,
		memo:        make(map[scev.Expr]scev.Expr),
	}

	return r.rewrite(e)
}

// IsExecuted tells if the work-item p provably reaches inst.
func (s *Specializer) IsExecuted(inst *kernel.Instruction, p ndrange.Point) bool {
	for _, c := range s.mask.Conditions(inst.Block()) {
		switch {
		case c.IsTrue():
			continue
		case c.IsFalse():
			return false
		}

		e := s.Specialize(c.Expr(), p)
		if !guard.Holds(e, c.Predicate(), s.se) {
			return false
		}
	}

	return true
}

// Addresses returns addr specialized for every work-item of w that
// executes inst, in warp order.
func (s *Specializer) Addresses(
	inst *kernel.Instruction,
	addr scev.Expr,
	w *ndrange.Warp,
) []scev.Expr {
	var addrs []scev.Expr

	c := w.Begin()
	for p, ok := c.Next(); ok; p, ok = c.Next() {
		if !s.IsExecuted(inst, p) {
			continue
		}

		addrs = append(addrs, s.Specialize(addr, p))
	}

	return addrs
}

// ResolveTripCount evaluates a loop trip count at the origin of the index
// space. Counts that do not resolve to a constant default to
// DefaultTripCount.
func (s *Specializer) ResolveTripCount(count scev.Expr) int64 {
	if v, ok := scev.AsConstant(s.Specialize(count, ndrange.Origin())); ok {
		return v
	}

	log.Printf("loop trip count %s cannot be resolved, defaulting to %d",
		count, DefaultTripCount)

	return DefaultTripCount
}

type rewriter struct {
	*Specializer

	point ndrange.Point
	memo  map[scev.Expr]scev.Expr
}

func (r *rewriter) rewrite(e scev.Expr) scev.Expr {
	if done, ok := r.memo[e]; ok {
		return done
	}

	// Phis may reach themselves; a cycle leaves the value symbolic.
	r.memo[e] = e

	done := r.rewriteExpr(e)
	r.memo[e] = done

	return done
}

func (r *rewriter) rewriteExpr(e scev.Expr) scev.Expr {
	switch e := e.(type) {
	case *scev.Constant:
		return e
	case *scev.NAry:
		return r.rewriteNAry(e)
	case *scev.UDiv:
		return r.se.UDiv(r.rewrite(e.LHS()), r.rewrite(e.RHS()))
	case *scev.Cast:
		return r.se.Cast(e.Op(), r.rewrite(e.Operand()))
	case *scev.AddRec:
		return r.rewrite(e.Start())
	case *scev.Unknown:
		return r.rewriteUnknown(e)
	default:
		if scev.IsCouldNotCompute(e) {
			return e
		}

		log.Panicf("cannot specialize expression %s of type %T", e, e)

		return nil
	}
}

func (r *rewriter) rewriteNAry(n *scev.NAry) scev.Expr {
	ops := make([]scev.Expr, len(n.Operands()))

	for i, o := range n.Operands() {
		ops[i] = r.rewrite(o)
		if scev.IsCouldNotCompute(ops[i]) {
			return scev.CouldNotCompute
		}
	}

	switch n.Op() {
	case scev.OpAdd:
		return r.se.Add(ops...)
	case scev.OpMul:
		return r.se.Mul(ops...)
	case scev.OpSMax:
		return r.se.SMax(ops...)
	case scev.OpUMax:
		return r.se.UMax(ops...)
	case scev.OpSMin:
		return r.se.SMin(ops...)
	case scev.OpUMin:
		return r.se.UMin(ops...)
	default:
		log.Panicf("unknown operator %s", n.Op())
		return nil
	}
}

func (r *rewriter) rewriteUnknown(u *scev.Unknown) scev.Expr {
	switch v := u.Value().(type) {
	case *kernel.Argument:
		if c, ok := r.args[v]; ok && v.Type() == kernel.TypeInt {
			return r.se.Constant(c)
		}

		return u
	case *kernel.Instruction:
		return r.rewriteInstruction(u, v)
	default:
		return u
	}
}

func (r *rewriter) operand(inst *kernel.Instruction, i int) scev.Expr {
	return r.rewrite(r.se.SCEV(inst.Operand(i)))
}

func (r *rewriter) rewriteInstruction(
	u *scev.Unknown,
	inst *kernel.Instruction,
) scev.Expr {
	switch inst.Opcode() {
	case kernel.OpCall:
		return r.rewriteCall(u, inst)
	case kernel.OpURem, kernel.OpSRem:
		return r.remainder(inst)
	case kernel.OpSDiv:
		// Two constants fold with signed truncation; anything else is
		// modeled as an unsigned division.
		a, b := r.operand(inst, 0), r.operand(inst, 1)

		x, xok := scev.AsConstant(a)
		y, yok := scev.AsConstant(b)

		if xok && yok && y != 0 {
			return r.se.Constant(x / y)
		}

		return r.se.UDiv(a, b)
	case kernel.OpPhi:
		if inst.NumIncoming() == 0 {
			return u
		}

		v, _ := inst.Incoming(0)

		return r.rewrite(r.se.SCEV(v))
	default:
		return u
	}
}

// remainder expands a % b into a - (a / b) * b, with an unsigned
// division. Two constants fold directly: srem with signed truncation, so
// -7 srem 2 is -1, and urem on the unsigned bit patterns.
func (r *rewriter) remainder(inst *kernel.Instruction) scev.Expr {
	a, b := r.operand(inst, 0), r.operand(inst, 1)

	x, xok := scev.AsConstant(a)
	y, yok := scev.AsConstant(b)

	if xok && yok && y != 0 {
		if inst.Opcode() == kernel.OpSRem {
			return r.se.Constant(x % y)
		}

		return r.se.Constant(int64(uint64(x) % uint64(y)))
	}

	return r.se.Minus(a, r.se.Mul(r.se.UDiv(a, b), b))
}

func (r *rewriter) rewriteCall(
	u *scev.Unknown,
	inst *kernel.Instruction,
) scev.Expr {
	if q, ok := ndrange.Classify(inst); ok {
		switch {
		case q.Kind.IsCoordinate():
			return r.se.Constant(int64(r.point.Coordinate(q.Kind, q.Axis)))
		case q.Kind.IsSize():
			return r.se.Constant(int64(r.space.Size(q.Kind, q.Axis)))
		}
	}

	if isReinterpretCast(inst.Callee()) && inst.NumOperands() == 1 {
		return r.operand(inst, 0)
	}

	return u
}

// isReinterpretCast recognizes the mangled as_int and as_uint built-ins,
// which do not change the bits of their argument.
func isReinterpretCast(callee string) bool {
	return strings.HasPrefix(callee, "_Z") &&
		(strings.Contains(callee, "as_int") || strings.Contains(callee, "as_uint"))
}
