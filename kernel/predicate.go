package kernel

import (
	"fmt"
	"log"
)

// Predicate is the comparison performed by an icmp instruction.
type Predicate int

// Comparison predicates.
const (
	PredFalse Predicate = iota
	PredTrue
	PredEQ
	PredNE
	PredUGT
	PredUGE
	PredULT
	PredULE
	PredSGT
	PredSGE
	PredSLT
	PredSLE
)

var predicateNames = [...]string{
	PredFalse: "false",
	PredTrue:  "true",
	PredEQ:    "eq",
	PredNE:    "ne",
	PredUGT:   "ugt",
	PredUGE:   "uge",
	PredULT:   "ult",
	PredULE:   "ule",
	PredSGT:   "sgt",
	PredSGE:   "sge",
	PredSLT:   "slt",
	PredSLE:   "sle",
}

func (p Predicate) String() string {
	if p >= 0 && int(p) < len(predicateNames) {
		return predicateNames[p]
	}

	return fmt.Sprintf("pred(%d)", int(p))
}

// ParsePredicate converts the textual name of a predicate back to a
// Predicate.
func ParsePredicate(s string) (Predicate, bool) {
	for p, name := range predicateNames {
		if name == s {
			return Predicate(p), true
		}
	}

	return PredFalse, false
}

// Inverse returns the predicate that holds exactly when p does not.
func (p Predicate) Inverse() Predicate {
	switch p {
	case PredFalse:
		return PredTrue
	case PredTrue:
		return PredFalse
	case PredEQ:
		return PredNE
	case PredNE:
		return PredEQ
	case PredUGT:
		return PredULE
	case PredUGE:
		return PredULT
	case PredULT:
		return PredUGE
	case PredULE:
		return PredUGT
	case PredSGT:
		return PredSLE
	case PredSGE:
		return PredSLT
	case PredSLT:
		return PredSGE
	case PredSLE:
		return PredSGT
	}

	log.Panicf("unknown predicate %d", int(p))

	return p
}

// Swapped returns the predicate obtained by exchanging the operands.
func (p Predicate) Swapped() Predicate {
	switch p {
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	default:
		return p
	}
}

// IsSigned tells if the predicate interprets its operands as signed.
func (p Predicate) IsSigned() bool {
	return p == PredSGT || p == PredSGE || p == PredSLT || p == PredSLE
}
