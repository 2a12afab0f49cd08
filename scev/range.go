package scev

import (
	"math"
)

// Range is a closed interval of signed 64-bit values.
type Range struct {
	Lo, Hi int64
}

var fullRange = Range{Lo: math.MinInt64, Hi: math.MaxInt64}

func (r Range) nonNegative() bool { return r.Lo >= 0 }

func satAdd(a, b int64) int64 {
	s := a + b

	switch {
	case a > 0 && b > 0 && s < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && s >= 0:
		return math.MinInt64
	}

	return s
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}

	p := a * b
	if p/b == a && !(a == -1 && b == math.MinInt64) &&
		!(b == -1 && a == math.MinInt64) {
		return p
	}

	if (a > 0) == (b > 0) {
		return math.MaxInt64
	}

	return math.MinInt64
}

// SignedRange returns an interval that contains every value e can take.
func (se *Evolution) SignedRange(e Expr) Range {
	switch e := e.(type) {
	case *Constant:
		return Range{Lo: e.value, Hi: e.value}
	case *Unknown:
		return fullRange
	case *NAry:
		return se.naryRange(e)
	case *UDiv:
		return se.udivRange(e)
	case *Cast:
		r := se.SignedRange(e.operand)
		if e.op == CastZExt && !r.nonNegative() {
			return Range{Lo: 0, Hi: math.MaxInt64}
		}
		return r
	case *AddRec:
		return se.addRecRange(e)
	case couldNotCompute:
		return fullRange
	default:
		unknownVariant(e)
		return fullRange
	}
}

func (se *Evolution) naryRange(n *NAry) Range {
	r := se.SignedRange(n.ops[0])
	allNonNegative := r.nonNegative()

	for _, o := range n.ops[1:] {
		x := se.SignedRange(o)
		allNonNegative = allNonNegative && x.nonNegative()

		switch n.op {
		case OpAdd:
			r = Range{Lo: satAdd(r.Lo, x.Lo), Hi: satAdd(r.Hi, x.Hi)}
		case OpMul:
			p := [4]int64{
				satMul(r.Lo, x.Lo), satMul(r.Lo, x.Hi),
				satMul(r.Hi, x.Lo), satMul(r.Hi, x.Hi),
			}
			r = Range{Lo: min(p[0], p[1], p[2], p[3]),
				Hi: max(p[0], p[1], p[2], p[3])}
		case OpSMax, OpUMax:
			r = Range{Lo: max(r.Lo, x.Lo), Hi: max(r.Hi, x.Hi)}
		case OpSMin, OpUMin:
			r = Range{Lo: min(r.Lo, x.Lo), Hi: min(r.Hi, x.Hi)}
		}
	}

	if (n.op == OpUMax || n.op == OpUMin) && !allNonNegative {
		return fullRange
	}

	return r
}

func (se *Evolution) udivRange(d *UDiv) Range {
	l := se.SignedRange(d.lhs)
	r := se.SignedRange(d.rhs)

	if !l.nonNegative() || r.Lo <= 0 {
		return Range{Lo: 0, Hi: math.MaxInt64}
	}

	return Range{Lo: l.Lo / r.Hi, Hi: l.Hi / r.Lo}
}

func (se *Evolution) addRecRange(rec *AddRec) Range {
	start := se.SignedRange(rec.start)
	step := se.SignedRange(rec.step)

	switch {
	case step.Lo >= 0:
		return Range{Lo: start.Lo, Hi: math.MaxInt64}
	case step.Hi <= 0:
		return Range{Lo: math.MinInt64, Hi: start.Hi}
	default:
		return fullRange
	}
}

// IsZero tells if e is the constant zero.
func (se *Evolution) IsZero(e Expr) bool {
	v, ok := AsConstant(e)
	return ok && v == 0
}

// IsKnownPositive tells if e is provably greater than zero.
func (se *Evolution) IsKnownPositive(e Expr) bool {
	return !IsCouldNotCompute(e) && se.SignedRange(e).Lo > 0
}

// IsKnownNonNegative tells if e is provably zero or greater.
func (se *Evolution) IsKnownNonNegative(e Expr) bool {
	return !IsCouldNotCompute(e) && se.SignedRange(e).Lo >= 0
}

// IsKnownNegative tells if e is provably less than zero.
func (se *Evolution) IsKnownNegative(e Expr) bool {
	return !IsCouldNotCompute(e) && se.SignedRange(e).Hi < 0
}

// IsKnownNonPositive tells if e is provably zero or less.
func (se *Evolution) IsKnownNonPositive(e Expr) bool {
	return !IsCouldNotCompute(e) && se.SignedRange(e).Hi <= 0
}

// IsKnownNonZero tells if e is provably different from zero.
func (se *Evolution) IsKnownNonZero(e Expr) bool {
	if IsCouldNotCompute(e) {
		return false
	}

	r := se.SignedRange(e)

	return r.Lo > 0 || r.Hi < 0
}
