package scev

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/loopinfo"
)

type exprKind int

const (
	kindConstant exprKind = iota
	kindNAry
	kindUDiv
	kindCast
	kindAddRec
)

type exprKey struct {
	kind  exprKind
	op    int
	value int64
	ops   string
	loop  *loopinfo.Loop
}

// Evolution builds and interns the expressions of one kernel. It is not
// safe for concurrent use.
type Evolution struct {
	fn    *kernel.Function
	loops *loopinfo.Info

	nextID   int
	interned map[exprKey]Expr
	unknowns map[kernel.Value]*Unknown

	values map[kernel.Value]Expr
	trail  []kernel.Value
}

// New creates an Evolution for fn. The loop nest is used to recognize
// induction variables.
func New(fn *kernel.Function, loops *loopinfo.Info) *Evolution {
	return &Evolution{
		fn:       fn,
		loops:    loops,
		interned: make(map[exprKey]Expr),
		unknowns: make(map[kernel.Value]*Unknown),
		values:   make(map[kernel.Value]Expr),
	}
}

// Function returns the kernel the expressions describe.
func (se *Evolution) Function() *kernel.Function {
	return se.fn
}

// Loops returns the loop nest of the kernel.
func (se *Evolution) Loops() *loopinfo.Info {
	return se.loops
}

func (se *Evolution) intern(key exprKey, create func(id int) Expr) Expr {
	if e, ok := se.interned[key]; ok {
		return e
	}

	e := create(se.nextID)
	se.nextID++
	se.interned[key] = e

	return e
}

func idList(ops []Expr) string {
	var sb strings.Builder

	for i, o := range ops {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(o.ID()))
	}

	return sb.String()
}

func anyCouldNotCompute(ops []Expr) bool {
	for _, o := range ops {
		if IsCouldNotCompute(o) {
			return true
		}
	}

	return false
}

func sortByID(ops []Expr) {
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].ID() < ops[j].ID()
	})
}

// Constant returns the literal v.
func (se *Evolution) Constant(v int64) *Constant {
	key := exprKey{kind: kindConstant, value: v}

	return se.intern(key, func(id int) Expr {
		return &Constant{id: id, value: v}
	}).(*Constant)
}

// Unknown returns the opaque reference to v.
func (se *Evolution) Unknown(v kernel.Value) *Unknown {
	if u, ok := se.unknowns[v]; ok {
		return u
	}

	u := &Unknown{id: se.nextID, value: v}
	se.nextID++
	se.unknowns[v] = u

	return u
}

func (se *Evolution) nary(op NAryOp, ops []Expr) Expr {
	if len(ops) == 1 {
		return ops[0]
	}

	key := exprKey{kind: kindNAry, op: int(op), ops: idList(ops)}

	return se.intern(key, func(id int) Expr {
		return &NAry{id: id, op: op, ops: ops}
	})
}

func flatten(op NAryOp, ops []Expr) []Expr {
	var flat []Expr

	for _, o := range ops {
		if n, ok := o.(*NAry); ok && n.op == op {
			flat = append(flat, n.ops...)
			continue
		}

		flat = append(flat, o)
	}

	return flat
}

// Add returns the sum of the operands. Sums are flattened, constants are
// folded and like terms are combined.
func (se *Evolution) Add(ops ...Expr) Expr {
	if anyCouldNotCompute(ops) {
		return CouldNotCompute
	}

	ops = flatten(OpAdd, ops)

	if rec := se.foldAddRecs(ops); rec != nil {
		return rec
	}

	var (
		sum    int64
		order  []Expr
		coeffs = make(map[Expr]int64)
	)

	for _, o := range ops {
		if c, ok := o.(*Constant); ok {
			sum += c.value
			continue
		}

		coeff, rest := se.splitCoefficient(o)
		if _, seen := coeffs[rest]; !seen {
			order = append(order, rest)
		}
		coeffs[rest] += coeff
	}

	var terms []Expr

	for _, rest := range order {
		if coeffs[rest] == 0 {
			continue
		}

		terms = append(terms, se.Mul(se.Constant(coeffs[rest]), rest))
	}

	sortByID(terms)

	if sum != 0 || len(terms) == 0 {
		terms = append([]Expr{se.Constant(sum)}, terms...)
	}

	return se.nary(OpAdd, terms)
}

// splitCoefficient splits a term into its constant factor and the rest.
func (se *Evolution) splitCoefficient(e Expr) (int64, Expr) {
	n, ok := e.(*NAry)
	if !ok || n.op != OpMul {
		return 1, e
	}

	c, ok := n.ops[0].(*Constant)
	if !ok {
		return 1, e
	}

	return c.value, se.nary(OpMul, n.ops[1:])
}

// foldAddRecs merges the recurrences of a sum when the other terms do not
// vary in their loop.
func (se *Evolution) foldAddRecs(ops []Expr) Expr {
	var loop *loopinfo.Loop

	for _, o := range ops {
		if r, ok := o.(*AddRec); ok {
			loop = r.loop
			break
		}
	}

	if loop == nil {
		return nil
	}

	var starts, steps []Expr

	for _, o := range ops {
		if r, ok := o.(*AddRec); ok && r.loop == loop {
			starts = append(starts, r.start)
			steps = append(steps, r.step)
			continue
		}

		if !se.IsLoopInvariant(o, loop) {
			return nil
		}

		starts = append(starts, o)
	}

	if len(starts) == 1 && len(steps) == 1 {
		return nil
	}

	return se.AddRec(se.Add(starts...), se.Add(steps...), loop)
}

// Mul returns the product of the operands. Products are flattened and
// constants are folded. A constant factor is distributed over a sum.
func (se *Evolution) Mul(ops ...Expr) Expr {
	if anyCouldNotCompute(ops) {
		return CouldNotCompute
	}

	ops = flatten(OpMul, ops)

	var (
		prod  int64 = 1
		terms []Expr
	)

	for _, o := range ops {
		if c, ok := o.(*Constant); ok {
			prod *= c.value
			continue
		}

		terms = append(terms, o)
	}

	if prod == 0 || len(terms) == 0 {
		return se.Constant(prod)
	}

	if rec := se.scaleAddRec(prod, terms); rec != nil {
		return rec
	}

	if len(terms) == 1 && prod != 1 {
		if sum, ok := terms[0].(*NAry); ok && sum.op == OpAdd {
			scaled := make([]Expr, len(sum.ops))
			for i, t := range sum.ops {
				scaled[i] = se.Mul(se.Constant(prod), t)
			}

			return se.Add(scaled...)
		}
	}

	sortByID(terms)

	if prod != 1 {
		terms = append([]Expr{se.Constant(prod)}, terms...)
	}

	return se.nary(OpMul, terms)
}

// scaleAddRec rewrites x * {a,+,s} as {x*a,+,x*s} when x does not vary in
// the loop of the recurrence.
func (se *Evolution) scaleAddRec(prod int64, terms []Expr) Expr {
	var (
		rec    *AddRec
		others []Expr
	)

	for _, t := range terms {
		if r, ok := t.(*AddRec); ok && rec == nil {
			rec = r
			continue
		}

		others = append(others, t)
	}

	if rec == nil {
		return nil
	}

	for _, o := range others {
		if !se.IsLoopInvariant(o, rec.loop) {
			return nil
		}
	}

	factor := append([]Expr{se.Constant(prod)}, others...)
	start := se.Mul(append(factor, rec.start)...)
	step := se.Mul(append(factor, rec.step)...)

	return se.AddRec(start, step, rec.loop)
}

// Negate returns -e.
func (se *Evolution) Negate(e Expr) Expr {
	return se.Mul(se.Constant(-1), e)
}

// Minus returns lhs - rhs.
func (se *Evolution) Minus(lhs, rhs Expr) Expr {
	return se.Add(lhs, se.Negate(rhs))
}

// UDiv returns the unsigned quotient lhs / rhs.
func (se *Evolution) UDiv(lhs, rhs Expr) Expr {
	if IsCouldNotCompute(lhs) || IsCouldNotCompute(rhs) {
		return CouldNotCompute
	}

	r, rok := AsConstant(rhs)
	l, lok := AsConstant(lhs)

	switch {
	case rok && r == 1:
		return lhs
	case lok && l == 0:
		return lhs
	case lok && rok && r != 0:
		return se.Constant(int64(uint64(l) / uint64(r)))
	}

	key := exprKey{kind: kindUDiv, ops: idList([]Expr{lhs, rhs})}

	return se.intern(key, func(id int) Expr {
		return &UDiv{id: id, lhs: lhs, rhs: rhs}
	})
}

// SMax returns the signed maximum of the operands.
func (se *Evolution) SMax(ops ...Expr) Expr {
	return se.minMax(OpSMax, ops)
}

// UMax returns the unsigned maximum of the operands.
func (se *Evolution) UMax(ops ...Expr) Expr {
	return se.minMax(OpUMax, ops)
}

// SMin returns the signed minimum of the operands.
func (se *Evolution) SMin(ops ...Expr) Expr {
	return se.minMax(OpSMin, ops)
}

// UMin returns the unsigned minimum of the operands.
func (se *Evolution) UMin(ops ...Expr) Expr {
	return se.minMax(OpUMin, ops)
}

func (se *Evolution) minMax(op NAryOp, ops []Expr) Expr {
	if anyCouldNotCompute(ops) {
		return CouldNotCompute
	}

	ops = flatten(op, ops)

	var (
		folded *int64
		terms  []Expr
		seen   = make(map[Expr]bool)
	)

	for _, o := range ops {
		if c, ok := o.(*Constant); ok {
			v := c.value
			if folded != nil {
				v = pick(op, *folded, v)
			}
			folded = &v

			continue
		}

		if !seen[o] {
			seen[o] = true
			terms = append(terms, o)
		}
	}

	sortByID(terms)

	if folded != nil {
		terms = append([]Expr{se.Constant(*folded)}, terms...)
	}

	return se.nary(op, terms)
}

func pick(op NAryOp, a, b int64) int64 {
	switch op {
	case OpSMax:
		return max(a, b)
	case OpSMin:
		return min(a, b)
	case OpUMax:
		return int64(max(uint64(a), uint64(b)))
	case OpUMin:
		return int64(min(uint64(a), uint64(b)))
	}

	return a
}

// Cast returns the width conversion of e. Expressions are 64 bits wide, so
// conversions of constants fold to the constant.
func (se *Evolution) Cast(op CastOp, e Expr) Expr {
	if IsCouldNotCompute(e) {
		return CouldNotCompute
	}

	if _, ok := e.(*Constant); ok {
		return e
	}

	key := exprKey{kind: kindCast, op: int(op), ops: idList([]Expr{e})}

	return se.intern(key, func(id int) Expr {
		return &Cast{id: id, op: op, operand: e}
	})
}

// ZeroExtend returns the zero extension of e.
func (se *Evolution) ZeroExtend(e Expr) Expr {
	return se.Cast(CastZExt, e)
}

// SignExtend returns the sign extension of e.
func (se *Evolution) SignExtend(e Expr) Expr {
	return se.Cast(CastSExt, e)
}

// Truncate returns the truncation of e.
func (se *Evolution) Truncate(e Expr) Expr {
	return se.Cast(CastTrunc, e)
}

// AddRec returns the recurrence {start,+,step} over loop. A zero step
// yields start.
func (se *Evolution) AddRec(start, step Expr, loop *loopinfo.Loop) Expr {
	if IsCouldNotCompute(start) || IsCouldNotCompute(step) {
		return CouldNotCompute
	}

	if s, ok := AsConstant(step); ok && s == 0 {
		return start
	}

	key := exprKey{
		kind: kindAddRec,
		ops:  idList([]Expr{start, step}),
		loop: loop,
	}

	return se.intern(key, func(id int) Expr {
		return &AddRec{id: id, start: start, step: step, loop: loop}
	})
}

// IsLoopInvariant tells if e has the same value on every iteration of
// loop.
func (se *Evolution) IsLoopInvariant(e Expr, loop *loopinfo.Loop) bool {
	switch e := e.(type) {
	case *Constant:
		return true
	case *Unknown:
		inst := e.Instruction()
		return inst == nil || !loop.Contains(inst.Block())
	case *NAry:
		for _, o := range e.ops {
			if !se.IsLoopInvariant(o, loop) {
				return false
			}
		}
		return true
	case *UDiv:
		return se.IsLoopInvariant(e.lhs, loop) &&
			se.IsLoopInvariant(e.rhs, loop)
	case *Cast:
		return se.IsLoopInvariant(e.operand, loop)
	case *AddRec:
		if loop.Contains(e.loop.Header()) {
			return false
		}
		return se.IsLoopInvariant(e.start, loop) &&
			se.IsLoopInvariant(e.step, loop)
	case couldNotCompute:
		return false
	default:
		unknownVariant(e)
		return false
	}
}
