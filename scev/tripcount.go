package scev

import (
	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
)

// BackedgeTakenCount returns how many times the back edge of loop is taken
// before the loop exits. Only loops with a single exiting block, whose
// branch compares an affine recurrence of the loop with a constant step
// against a loop-invariant bound, are understood. Other loops yield
// CouldNotCompute.
func (se *Evolution) BackedgeTakenCount(loop *loopinfo.Loop) Expr {
	exiting := loop.ExitingBlocks()
	if len(exiting) != 1 {
		return CouldNotCompute
	}

	br := exiting[0].Terminator()
	if br.Opcode() != kernel.OpCondBr {
		return CouldNotCompute
	}

	cmp, ok := br.Operand(0).(*kernel.Instruction)
	if !ok || cmp.Opcode() != kernel.OpICmp {
		return CouldNotCompute
	}

	pred := cmp.Predicate()
	succs := br.Successors()

	switch {
	case loop.Contains(succs[0]) && !loop.Contains(succs[1]):
	case !loop.Contains(succs[0]) && loop.Contains(succs[1]):
		pred = pred.Inverse()
	default:
		return CouldNotCompute
	}

	lhs := se.SCEV(cmp.Operand(0))
	rhs := se.SCEV(cmp.Operand(1))

	if !se.isRecurrenceOf(lhs, loop) {
		lhs, rhs = rhs, lhs
		pred = pred.Swapped()
	}

	rec, ok := lhs.(*AddRec)
	if !ok || rec.loop != loop || !se.IsLoopInvariant(rhs, loop) {
		return CouldNotCompute
	}

	step, ok := AsConstant(rec.step)
	if !ok || step == 0 {
		return CouldNotCompute
	}

	return se.iterationsWhile(pred, rec.start, step, rhs)
}

func (se *Evolution) isRecurrenceOf(e Expr, loop *loopinfo.Loop) bool {
	rec, ok := e.(*AddRec)
	return ok && rec.loop == loop
}

// iterationsWhile counts the iterations k = 0, 1, ... for which
// start + k*step <pred> bound holds before it first fails.
func (se *Evolution) iterationsWhile(
	pred kernel.Predicate,
	start Expr,
	step int64,
	bound Expr,
) Expr {
	var (
		distance Expr
		stride   int64
		exact    bool
	)

	switch pred {
	case kernel.PredSLT, kernel.PredULT:
		distance, stride = se.Minus(bound, start), step
	case kernel.PredSLE, kernel.PredULE:
		distance = se.Add(se.Minus(bound, start), se.Constant(1))
		stride = step
	case kernel.PredSGT, kernel.PredUGT:
		distance, stride = se.Minus(start, bound), -step
	case kernel.PredSGE, kernel.PredUGE:
		distance = se.Add(se.Minus(start, bound), se.Constant(1))
		stride = -step
	case kernel.PredNE:
		exact = true
		if step > 0 {
			distance, stride = se.Minus(bound, start), step
		} else {
			distance, stride = se.Minus(start, bound), -step
		}
	default:
		return CouldNotCompute
	}

	if stride <= 0 {
		return CouldNotCompute
	}

	distance = se.SMax(se.Constant(0), distance)

	if !exact {
		distance = se.Add(distance, se.Constant(stride-1))
	}

	return se.UDiv(distance, se.Constant(stride))
}
