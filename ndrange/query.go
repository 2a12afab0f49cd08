// Package ndrange models the index space a kernel is launched over: its
// geometry, the points of the space, the built-in functions that query
// them, and the warps that execute them.
package ndrange

import (
	"github.com/sarchlab/coalesce/kernel"
)

// Dimensions is the number of axes of an index space.
const Dimensions = 3

// QueryKind identifies a work-item built-in function.
type QueryKind int

// Built-in queries. Coordinate queries depend on the work-item; size
// queries only depend on the geometry.
const (
	QueryNone QueryKind = iota
	QueryLocalID
	QueryGlobalID
	QueryGroupID
	QueryLocalSize
	QueryGlobalSize
	QueryNumGroups
)

var builtinNames = map[string]QueryKind{
	"get_local_id":    QueryLocalID,
	"get_global_id":   QueryGlobalID,
	"get_group_id":    QueryGroupID,
	"get_local_size":  QueryLocalSize,
	"get_global_size": QueryGlobalSize,
	"get_num_groups":  QueryNumGroups,
}

func (k QueryKind) String() string {
	for name, kind := range builtinNames {
		if kind == k {
			return name
		}
	}

	return "none"
}

// IsCoordinate tells if the query returns a coordinate of the work-item.
func (k QueryKind) IsCoordinate() bool {
	return k == QueryLocalID || k == QueryGlobalID || k == QueryGroupID
}

// IsSize tells if the query returns a size of the index space.
func (k QueryKind) IsSize() bool {
	return k == QueryLocalSize || k == QueryGlobalSize || k == QueryNumGroups
}

// Query is a recognized call to a built-in, with the axis it asks about.
type Query struct {
	Kind QueryKind
	Axis int
}

// Classify recognizes calls to the work-item built-ins. The axis argument
// must be a constant between 0 and 2.
func Classify(inst *kernel.Instruction) (Query, bool) {
	if inst.Opcode() != kernel.OpCall || inst.NumOperands() != 1 {
		return Query{}, false
	}

	kind, ok := builtinNames[inst.Callee()]
	if !ok {
		return Query{}, false
	}

	axis, ok := inst.Operand(0).(*kernel.Constant)
	if !ok || axis.Value() < 0 || axis.Value() >= Dimensions {
		return Query{}, false
	}

	return Query{Kind: kind, Axis: int(axis.Value())}, true
}
