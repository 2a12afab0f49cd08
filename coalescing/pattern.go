package coalescing

import (
	"errors"
	"fmt"

	"github.com/sarchlab/coalesce/scev"
)

var (
	// ErrMismatchedBase is returned when the work-items of a warp access
	// memory through different base pointers.
	ErrMismatchedBase = errors.New("addresses do not share a base")

	// ErrUnresolvedOffset is returned when an address does not differ from
	// the base by a constant.
	ErrUnresolvedOffset = errors.New("address offset cannot be resolved")
)

// Oracle subtracts expressions.
type Oracle interface {
	Minus(lhs, rhs scev.Expr) scev.Expr
}

// splitBase matches "base + constant", where base is an opaque value.
func splitBase(e scev.Expr) (*scev.Unknown, int64, bool) {
	switch e := e.(type) {
	case *scev.Unknown:
		return e, 0, true
	case *scev.NAry:
		ops := e.Operands()
		if e.Op() != scev.OpAdd || len(ops) != 2 {
			return nil, 0, false
		}

		c, ok := scev.AsConstant(ops[0])
		if !ok {
			return nil, 0, false
		}

		base, ok := ops[1].(*scev.Unknown)

		return base, c, ok
	default:
		return nil, 0, false
	}
}

// RelativeOffsets returns the byte offsets of the addresses from their
// common base pointer. Addresses that are all constants are returned as
// they are.
func RelativeOffsets(addrs []scev.Expr, oracle Oracle) ([]int64, error) {
	var base *scev.Unknown

	for _, a := range addrs {
		if b, _, ok := splitBase(a); ok {
			base = b
			break
		}
	}

	offsets := make([]int64, 0, len(addrs))

	for _, a := range addrs {
		if b, off, ok := splitBase(a); ok {
			if b != base {
				return nil, fmt.Errorf("%w: %s and %s", ErrMismatchedBase, base, b)
			}

			offsets = append(offsets, off)

			continue
		}

		rel := a
		if base != nil {
			rel = oracle.Minus(a, base)
		}

		off, ok := scev.AsConstant(rel)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedOffset, a)
		}

		offsets = append(offsets, off)
	}

	return offsets, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// TransactionCount returns the number of distinct cache lines the offsets
// fall into.
func TransactionCount(offsets []int64, hw HardwareConfig) int {
	lines := make(map[int64]bool)

	for _, o := range offsets {
		lines[floorDiv(o, int64(hw.CacheLineSize))] = true
	}

	return len(lines)
}

// BankConflictCount returns the number of extra cycles a local memory
// access needs. Work-items hitting the same bank in different rows are
// serialized; hitting the same row is a broadcast.
func BankConflictCount(offsets []int64, hw HardwareConfig) int {
	rowSize := int64(hw.BankCount * hw.BankWidth)
	rows := make(map[int64]map[int64]bool)

	for _, o := range offsets {
		column := floorMod(o, int64(hw.BankCount))

		if rows[column] == nil {
			rows[column] = make(map[int64]bool)
		}

		rows[column][floorDiv(o, rowSize)] = true
	}

	conflicts := 0
	for _, r := range rows {
		conflicts = max(conflicts, len(r)-1)
	}

	return conflicts
}
