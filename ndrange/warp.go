package ndrange

import "fmt"

// Warp is the ordered set of work-items that execute together. A warp is
// never modified after creation.
type Warp struct {
	group  [Dimensions]int
	index  int
	points []Point
}

// Group returns the coordinates of the work-group the warp belongs to.
func (w *Warp) Group() [Dimensions]int { return w.group }

// Index returns the position of the warp inside its work-group.
func (w *Warp) Index() int { return w.index }

// Len returns the number of work-items of the warp.
func (w *Warp) Len() int { return len(w.points) }

// At returns the i-th work-item.
func (w *Warp) At(i int) Point { return w.points[i] }

// Begin starts a new traversal of the warp.
func (w *Warp) Begin() *Cursor {
	return &Cursor{warp: w}
}

func (w *Warp) String() string {
	return fmt.Sprintf("warp %d of group %v", w.index, w.group)
}

// Cursor walks the work-items of a warp in order.
type Cursor struct {
	warp *Warp
	pos  int
}

// Next returns the next work-item, or false when the traversal is over.
func (c *Cursor) Next() (Point, bool) {
	if c.pos >= len(c.warp.points) {
		return Point{}, false
	}

	p := c.warp.points[c.pos]
	c.pos++

	return p, true
}

// WarpFactory cuts work-groups into warps. Work-items are numbered in
// row-major order of their local coordinates, x varying fastest.
type WarpFactory struct {
	space    *Space
	warpSize int
}

// NewWarpFactory creates a factory for warps of warpSize work-items.
func NewWarpFactory(space *Space, warpSize int) (*WarpFactory, error) {
	if warpSize <= 0 {
		return nil, fmt.Errorf("%w: warp size %d must be positive",
			ErrInvalidGeometry, warpSize)
	}

	return &WarpFactory{space: space, warpSize: warpSize}, nil
}

// Space returns the geometry the warps are cut from.
func (f *WarpFactory) Space() *Space {
	return f.space
}

// WarpsPerGroup returns the number of warps of a work-group. The last warp
// is partial when the group size is not a multiple of the warp size.
func (f *WarpFactory) WarpsPerGroup() int {
	return (f.space.GroupSize() + f.warpSize - 1) / f.warpSize
}

// CreateWarp returns the warp at warpIndex in the given work-group. Work-item
// i of the warp has the flattened local index warpIndex*warpSize + i.
func (f *WarpFactory) CreateWarp(group [Dimensions]int, warpIndex int) (*Warp, error) {
	if !f.space.ContainsGroup(group) {
		return nil, fmt.Errorf("%w: group %v is outside %s",
			ErrInvalidGeometry, group, f.space)
	}

	if warpIndex < 0 || warpIndex >= f.WarpsPerGroup() {
		return nil, fmt.Errorf("%w: warp %d is outside a group of %d warps",
			ErrInvalidGeometry, warpIndex, f.WarpsPerGroup())
	}

	first := warpIndex * f.warpSize
	n := min(f.warpSize, f.space.GroupSize()-first)

	w := &Warp{
		group:  group,
		index:  warpIndex,
		points: make([]Point, 0, n),
	}

	sizeX := f.space.LocalSize(0)
	area := sizeX * f.space.LocalSize(1)

	for i := 0; i < n; i++ {
		pos := first + i
		local := [Dimensions]int{
			pos % sizeX,
			(pos % area) / sizeX,
			pos / area,
		}

		w.points = append(w.points, f.space.Point(local, group))
	}

	return w, nil
}

// CreateAllWarpsInGroup returns every warp of the work-group, in order.
func (f *WarpFactory) CreateAllWarpsInGroup(group [Dimensions]int) ([]*Warp, error) {
	n := f.WarpsPerGroup()
	warps := make([]*Warp, 0, n)

	for i := 0; i < n; i++ {
		w, err := f.CreateWarp(group, i)
		if err != nil {
			return nil, err
		}

		warps = append(warps, w)
	}

	return warps, nil
}
