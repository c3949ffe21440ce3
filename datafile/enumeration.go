package datafile

import (
	"github.com/scorep-tools/cubew/calltree"
	"github.com/scorep-tools/cubew/metric"
)

// Enumeration is a metric's local cnode ordering: the mapping from a
// cnode's global id to its per-metric row slot, and back (spec.md §4.6.1).
type Enumeration struct {
	globalToLocal map[int]int
	localToCnode  []*calltree.Cnode
}

// Slots returns the number of local slots (= total cnode count).
func (e *Enumeration) Slots() int { return len(e.localToCnode) }

// LocalSlot returns the local slot for a cnode's global id.
func (e *Enumeration) LocalSlot(globalID int) (int, bool) {
	s, ok := e.globalToLocal[globalID]
	return s, ok
}

// CnodeAt returns the cnode occupying local slot s, for emitting index
// headers in local-slot order (spec.md §4.6.1).
func (e *Enumeration) CnodeAt(s int) *calltree.Cnode {
	if s < 0 || s >= len(e.localToCnode) {
		return nil
	}
	return e.localToCnode[s]
}

// BuildEnumeration computes the local enumeration for a metric of the given
// kind over tree, per the traversal table in spec.md §4.6.1:
//
//	EXCLUSIVE -> preorder depth-first from the call-tree roots
//	INCLUSIVE -> breadth-first level order from the call-tree roots
//	SIMPLE    -> flat registration order
//
// Derived kinds never call this (they store no rows).
func BuildEnumeration(kind metric.Kind, tree *calltree.Tree) *Enumeration {
	e := &Enumeration{globalToLocal: make(map[int]int, tree.CnodeCount())}

	assign := func(c *calltree.Cnode) {
		e.globalToLocal[c.ID()] = len(e.localToCnode)
		e.localToCnode = append(e.localToCnode, c)
	}

	switch kind {
	case metric.Inclusive:
		var queue []*calltree.Cnode
		queue = append(queue, tree.Roots()...)
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]
			assign(c)
			queue = append(queue, c.Children()...)
		}
	case metric.Exclusive:
		var walk func(c *calltree.Cnode)
		walk = func(c *calltree.Cnode) {
			assign(c)
			for _, ch := range c.Children() {
				walk(ch)
			}
		}
		for _, root := range tree.Roots() {
			walk(root)
		}
	default: // Simple and anything else that stores rows
		for _, c := range tree.Cnodes() {
			assign(c)
		}
	}

	return e
}
