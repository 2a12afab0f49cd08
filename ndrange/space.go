package ndrange

import (
	"errors"
	"fmt"
)

// UnknownCoordinate is returned by Point.Coordinate and Space.Size for
// queries they cannot answer.
const UnknownCoordinate = -1

// ErrInvalidGeometry is returned for index spaces and warps that cannot
// exist.
var ErrInvalidGeometry = errors.New("invalid index space geometry")

// Space is the geometry of an index space: the size of a work-group and
// the number of work-groups along each axis.
type Space struct {
	localSize [Dimensions]int
	numGroups [Dimensions]int
}

// NewSpace creates a geometry. All sizes must be positive; unused axes
// have size 1.
func NewSpace(localSize, numGroups [Dimensions]int) (*Space, error) {
	for axis := 0; axis < Dimensions; axis++ {
		if localSize[axis] <= 0 || numGroups[axis] <= 0 {
			return nil, fmt.Errorf(
				"%w: local size %v and group count %v must be positive",
				ErrInvalidGeometry, localSize, numGroups)
		}
	}

	return &Space{localSize: localSize, numGroups: numGroups}, nil
}

// LocalSize returns the work-group size along axis.
func (s *Space) LocalSize(axis int) int {
	return s.localSize[axis]
}

// NumGroups returns the number of work-groups along axis.
func (s *Space) NumGroups(axis int) int {
	return s.numGroups[axis]
}

// GlobalSize returns the number of work-items along axis.
func (s *Space) GlobalSize(axis int) int {
	return s.localSize[axis] * s.numGroups[axis]
}

// GroupSize returns the number of work-items in one work-group.
func (s *Space) GroupSize() int {
	return s.localSize[0] * s.localSize[1] * s.localSize[2]
}

// Size answers a size query. It returns UnknownCoordinate for any other
// kind of query.
func (s *Space) Size(kind QueryKind, axis int) int {
	switch kind {
	case QueryLocalSize:
		return s.LocalSize(axis)
	case QueryGlobalSize:
		return s.GlobalSize(axis)
	case QueryNumGroups:
		return s.NumGroups(axis)
	default:
		return UnknownCoordinate
	}
}

// ContainsGroup tells if the group coordinates are inside the space.
func (s *Space) ContainsGroup(group [Dimensions]int) bool {
	for axis := 0; axis < Dimensions; axis++ {
		if group[axis] < 0 || group[axis] >= s.numGroups[axis] {
			return false
		}
	}

	return true
}

// Point returns the work-item with the given local and group coordinates.
func (s *Space) Point(local, group [Dimensions]int) Point {
	p := Point{local: local, group: group}

	for axis := 0; axis < Dimensions; axis++ {
		p.global[axis] = local[axis] + group[axis]*s.localSize[axis]
	}

	return p
}

func (s *Space) String() string {
	return fmt.Sprintf("local %v x groups %v", s.localSize, s.numGroups)
}

// Point identifies one work-item by its local, group and global
// coordinates.
type Point struct {
	local  [Dimensions]int
	group  [Dimensions]int
	global [Dimensions]int
}

// Origin returns the work-item whose coordinates are all zero.
func Origin() Point {
	return Point{}
}

// Local returns the coordinate inside the work-group.
func (p Point) Local(axis int) int { return p.local[axis] }

// Group returns the coordinate of the work-group.
func (p Point) Group(axis int) int { return p.group[axis] }

// Global returns the coordinate in the whole index space.
func (p Point) Global(axis int) int { return p.global[axis] }

// Coordinate answers a coordinate query. It returns UnknownCoordinate for
// any other kind of query.
func (p Point) Coordinate(kind QueryKind, axis int) int {
	switch kind {
	case QueryLocalID:
		return p.local[axis]
	case QueryGlobalID:
		return p.global[axis]
	case QueryGroupID:
		return p.group[axis]
	default:
		return UnknownCoordinate
	}
}

func (p Point) String() string {
	return fmt.Sprintf("local %v group %v global %v", p.local, p.group, p.global)
}
