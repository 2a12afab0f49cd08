package scev

import (
	"github.com/sarchlab/coalesce/kernel"
)

// SCEV returns the expression of a kernel value. Values the evaluator
// does not model become Unknown.
func (se *Evolution) SCEV(v kernel.Value) Expr {
	if e, ok := se.values[v]; ok {
		return e
	}

	e := se.translate(v)
	se.remember(v, e)

	return e
}

func (se *Evolution) remember(v kernel.Value, e Expr) {
	se.values[v] = e
	se.trail = append(se.trail, v)
}

func (se *Evolution) translate(v kernel.Value) Expr {
	switch v := v.(type) {
	case *kernel.Constant:
		return se.Constant(v.Value())
	case *kernel.Instruction:
		return se.translateInstruction(v)
	default:
		return se.Unknown(v)
	}
}

func (se *Evolution) translateInstruction(inst *kernel.Instruction) Expr {
	switch inst.Opcode() {
	case kernel.OpAdd:
		return se.Add(se.SCEV(inst.Operand(0)), se.SCEV(inst.Operand(1)))
	case kernel.OpSub:
		return se.Minus(se.SCEV(inst.Operand(0)), se.SCEV(inst.Operand(1)))
	case kernel.OpMul:
		return se.Mul(se.SCEV(inst.Operand(0)), se.SCEV(inst.Operand(1)))
	case kernel.OpUDiv:
		return se.UDiv(se.SCEV(inst.Operand(0)), se.SCEV(inst.Operand(1)))
	case kernel.OpShl:
		return se.translateShl(inst)
	case kernel.OpZExt:
		return se.ZeroExtend(se.SCEV(inst.Operand(0)))
	case kernel.OpSExt:
		return se.SignExtend(se.SCEV(inst.Operand(0)))
	case kernel.OpTrunc:
		return se.Truncate(se.SCEV(inst.Operand(0)))
	case kernel.OpGEP:
		return se.Add(
			se.SCEV(inst.Operand(0)),
			se.Mul(se.SCEV(inst.Operand(1)), se.Constant(inst.ElemSize())),
		)
	case kernel.OpPhi:
		return se.translatePhi(inst)
	default:
		return se.Unknown(inst)
	}
}

func (se *Evolution) translateShl(inst *kernel.Instruction) Expr {
	amount, ok := inst.Operand(1).(*kernel.Constant)
	if !ok || amount.Value() < 0 || amount.Value() > 62 {
		return se.Unknown(inst)
	}

	return se.Mul(se.SCEV(inst.Operand(0)), se.Constant(1<<amount.Value()))
}

// translatePhi recognizes induction variables: a phi in a loop header that
// receives one value from outside the loop and, from every latch, itself
// plus a loop-invariant step.
func (se *Evolution) translatePhi(phi *kernel.Instruction) Expr {
	if se.loops == nil {
		return se.Unknown(phi)
	}

	loop := se.loops.LoopFor(phi.Block())
	if loop == nil || loop.Header() != phi.Block() {
		return se.Unknown(phi)
	}

	var start, next kernel.Value

	for i := 0; i < phi.NumIncoming(); i++ {
		v, from := phi.Incoming(i)

		if loop.Contains(from) {
			if next != nil && next != v {
				return se.Unknown(phi)
			}
			next = v

			continue
		}

		if start != nil && start != v && !sameConstant(start, v) {
			return se.Unknown(phi)
		}
		start = v
	}

	if start == nil || next == nil {
		return se.Unknown(phi)
	}

	self := se.Unknown(phi)
	mark := len(se.trail)
	se.remember(phi, self)

	step := se.stepOf(se.SCEV(next), self)

	se.forget(mark)

	if step == nil || !se.IsLoopInvariant(step, loop) {
		return self
	}

	return se.AddRec(se.SCEV(start), step, loop)
}

// stepOf returns s when e is self + s and s does not mention self.
func (se *Evolution) stepOf(e Expr, self *Unknown) Expr {
	sum, ok := e.(*NAry)
	if !ok || sum.op != OpAdd {
		return nil
	}

	var rest []Expr

	found := false

	for _, o := range sum.ops {
		if o == Expr(self) && !found {
			found = true
			continue
		}

		if mentions(o, self) {
			return nil
		}

		rest = append(rest, o)
	}

	if !found {
		return nil
	}

	return se.Add(rest...)
}

// forget drops the values translated after the trail mark. They may refer
// to a phi whose expression was still being computed.
func (se *Evolution) forget(mark int) {
	for _, v := range se.trail[mark:] {
		delete(se.values, v)
	}

	se.trail = se.trail[:mark]
}

func mentions(e Expr, u *Unknown) bool {
	switch e := e.(type) {
	case *Constant:
		return false
	case *Unknown:
		return e == u
	case *NAry:
		for _, o := range e.ops {
			if mentions(o, u) {
				return true
			}
		}
		return false
	case *UDiv:
		return mentions(e.lhs, u) || mentions(e.rhs, u)
	case *Cast:
		return mentions(e.operand, u)
	case *AddRec:
		return mentions(e.start, u) || mentions(e.step, u)
	case couldNotCompute:
		return false
	default:
		unknownVariant(e)
		return false
	}
}

func sameConstant(a, b kernel.Value) bool {
	ca, ok := a.(*kernel.Constant)
	if !ok {
		return false
	}

	cb, ok := b.(*kernel.Constant)

	return ok && ca.Value() == cb.Value()
}
