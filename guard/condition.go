package guard

import (
	"fmt"

	"github.com/sarchlab/coalesce/kernel"
	"github.com/sarchlab/coalesce/scev"
)

// Condition is a requirement for a block to execute: either a constant, or
// "Expr <Predicate> 0" for the difference of the operands of a branch
// comparison.
type Condition struct {
	block *kernel.Block
	expr  scev.Expr
	pred  kernel.Predicate
}

// True returns the condition that always holds.
func True(controller *kernel.Block) Condition {
	return Condition{block: controller, pred: kernel.PredTrue}
}

// False returns the condition that never holds.
func False(controller *kernel.Block) Condition {
	return Condition{block: controller, pred: kernel.PredFalse}
}

// NewCondition returns the condition "expr <pred> 0".
func NewCondition(controller *kernel.Block, expr scev.Expr, pred kernel.Predicate) Condition {
	return Condition{block: controller, expr: expr, pred: pred}
}

// Block returns the controlling block the condition comes from.
func (c Condition) Block() *kernel.Block {
	return c.block
}

// Expr returns the compared expression, or nil for constant conditions.
func (c Condition) Expr() scev.Expr {
	return c.expr
}

// Predicate returns the comparison against zero.
func (c Condition) Predicate() kernel.Predicate {
	return c.pred
}

// IsTrue tells if the condition is the constant true.
func (c Condition) IsTrue() bool {
	return c.expr == nil && c.pred == kernel.PredTrue
}

// IsFalse tells if the condition is the constant false.
func (c Condition) IsFalse() bool {
	return c.expr == nil && c.pred == kernel.PredFalse
}

// Inverted returns the logical negation of the condition.
func (c Condition) Inverted() Condition {
	c.pred = c.pred.Inverse()
	return c
}

func (c Condition) String() string {
	name := "<nil>"
	if c.block != nil {
		name = c.block.Name()
	}

	if c.expr == nil {
		return fmt.Sprintf("%s: %s", name, c.pred)
	}

	return fmt.Sprintf("%s: %s %s 0", name, c.expr, c.pred)
}

// SignOracle answers sign questions about expressions.
type SignOracle interface {
	IsZero(e scev.Expr) bool
	IsKnownPositive(e scev.Expr) bool
	IsKnownNonNegative(e scev.Expr) bool
	IsKnownNegative(e scev.Expr) bool
	IsKnownNonPositive(e scev.Expr) bool
	IsKnownNonZero(e scev.Expr) bool
}

// Holds tells if "expr <pred> 0" is known to be true. Unsigned predicates
// are decided with signed queries. An expression that could not be
// computed never holds, unless the predicate is the constant true.
func Holds(expr scev.Expr, pred kernel.Predicate, oracle SignOracle) bool {
	switch pred {
	case kernel.PredTrue:
		return true
	case kernel.PredFalse:
		return false
	}

	if expr == nil || scev.IsCouldNotCompute(expr) {
		return false
	}

	switch pred {
	case kernel.PredEQ:
		return oracle.IsZero(expr)
	case kernel.PredNE:
		return oracle.IsKnownNonZero(expr)
	case kernel.PredUGT, kernel.PredSGT:
		return oracle.IsKnownPositive(expr)
	case kernel.PredUGE, kernel.PredSGE:
		return oracle.IsKnownNonNegative(expr)
	case kernel.PredULT, kernel.PredSLT:
		return oracle.IsKnownNegative(expr)
	case kernel.PredULE, kernel.PredSLE:
		return oracle.IsKnownNonPositive(expr)
	default:
		return false
	}
}
