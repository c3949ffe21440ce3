// Package topology implements N-dimensional Cartesian topology overlays
// mapping coordinate tuples to system-tree locations (spec.md §3, §4.5).
package topology

import (
	"log"
	"sort"

	"github.com/scorep-tools/cubew/systree"
)

// Dimension describes one axis of a Cartesian topology.
type Dimension struct {
	Size       int
	Periodic   bool
	Name       string // optional, empty if unnamed
}

// Cartesian is one N-dimensional topology.
type Cartesian struct {
	Name string
	Dims []Dimension

	// cells maps a flattened row-major offset to the location filling
	// that cell. Absent entries mean the cell has no assigned location.
	cells map[int]*systree.Location
}

// Define allocates a new Cartesian topology with the given dimensions.
func Define(name string, dims []Dimension) *Cartesian {
	return &Cartesian{Name: name, Dims: dims, cells: make(map[int]*systree.Location)}
}

// offset computes the row-major flattened index of a coordinate tuple:
// offset = c0 + c1*d0 + c2*d0*d1 + ... (spec.md §3, "row-major in the
// first dimension").
func (c *Cartesian) offset(coord []int) (int, bool) {
	if len(coord) != len(c.Dims) {
		return 0, false
	}
	offset := 0
	stride := 1
	for i, d := range c.Dims {
		if coord[i] < 0 || coord[i] >= d.Size {
			return 0, false
		}
		offset += coord[i] * stride
		stride *= d.Size
	}
	return offset, true
}

// SetCoord fills one cell with loc, overwriting silently if the cell was
// already filled (spec.md §4.5). It warns and does nothing if coord is out
// of range (spec.md §7, "out-of-range accessors").
func (c *Cartesian) SetCoord(loc *systree.Location, coord []int) {
	off, ok := c.offset(coord)
	if !ok {
		log.Printf("cubew: topology %q: coordinate %v out of range, ignored", c.Name, coord)
		return
	}
	c.cells[off] = loc
}

// At returns the location assigned to coord, or nil if the cell is empty or
// coord is out of range.
func (c *Cartesian) At(coord []int) *systree.Location {
	off, ok := c.offset(coord)
	if !ok {
		return nil
	}
	return c.cells[off]
}

// Cells returns every filled (offset, location) pair, in ascending offset
// order, for XML emission (spec.md §4.5: "iterates the cell table and
// emits one <coord locId=…> entry per filled cell").
func (c *Cartesian) Cells() []CellEntry {
	out := make([]CellEntry, 0, len(c.cells))
	for off, loc := range c.cells {
		out = append(out, CellEntry{Offset: off, Location: loc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// CellEntry is one filled topology cell.
type CellEntry struct {
	Offset   int
	Location *systree.Location
}

// Coord decodes a row-major offset back into its coordinate tuple, the
// inverse of offset (spec.md §4.5: the anchor's <coord> element carries the
// tuple itself, not just the location it resolves to).
func (c *Cartesian) Coord(offset int) []int {
	coord := make([]int, len(c.Dims))
	for i, d := range c.Dims {
		coord[i] = offset % d.Size
		offset /= d.Size
	}
	return coord
}
