// Package systree implements the system-tree dimension: nested
// system-tree-nodes holding location-groups holding locations, in both the
// resident (fully in-memory) and streaming ("plain") construction modes
// (spec.md §3, §4.4).
package systree

import "github.com/scorep-tools/cubew/attrs"

// LocationGroupType is one of the three location-group types.
type LocationGroupType uint8

const (
	Process LocationGroupType = iota
	Metrics
	Accelerator
)

// LocationType is one of the three location types.
type LocationType uint8

const (
	CPUThread LocationType = iota
	Metric
	AcceleratorStream
)

// Location is a leaf entity emitting samples.
type Location struct {
	id int

	Name string
	Rank int
	Type LocationType

	group *LocationGroup
	Attrs attrs.List
}

// ID returns the location's dense identifier.
func (l *Location) ID() int { return l.id }

// Group returns the owning location-group.
func (l *Location) Group() *LocationGroup { return l.group }

// LocationGroup holds an ordered list of locations.
type LocationGroup struct {
	id int

	Name string
	Rank int
	Type LocationGroupType

	node      *SystemTreeNode
	locations []*Location
	Attrs     attrs.List
}

// ID returns the location-group's dense identifier.
func (g *LocationGroup) ID() int { return g.id }

// Node returns the owning system-tree-node.
func (g *LocationGroup) Node() *SystemTreeNode { return g.node }

// Locations returns the group's locations in registration order.
func (g *LocationGroup) Locations() []*Location { return g.locations }

// SystemTreeNode is one node of the nested system tree.
type SystemTreeNode struct {
	id int

	Name        string
	Description string
	Class       string

	parent   *SystemTreeNode
	children []*SystemTreeNode
	groups   []*LocationGroup
	Attrs    attrs.List
}

// ID returns the node's dense identifier.
func (n *SystemTreeNode) ID() int { return n.id }

// Parent returns the parent node, or nil for a root.
func (n *SystemTreeNode) Parent() *SystemTreeNode { return n.parent }

// Children returns the node's children in registration order.
func (n *SystemTreeNode) Children() []*SystemTreeNode { return n.children }

// Groups returns the node's location-groups in registration order.
func (n *SystemTreeNode) Groups() []*LocationGroup { return n.groups }

// Tree owns the resident system tree.
type Tree struct {
	nodes     []*SystemTreeNode
	groups    []*LocationGroup
	locations []*Location
	roots     []*SystemTreeNode

	// accelerator escalates the anchor to version 4.7 (spec.md §3, §8
	// property 8). In resident mode it is set the moment any ACCELERATOR
	// group or ACCELERATOR_STREAM location is registered; in streaming mode
	// it is the hasAccelerator flag passed to SetStreaming.
	accelerator bool

	// Streaming mode: when non-nil, the resident node/group/location
	// slices above are never populated; the anchor emitter pulls from
	// Driver instead (spec.md §4.4).
	Driver          Driver
	DeclaredNodes   int
	DeclaredGroups  int
	DeclaredLocs    int
}

// NewTree creates an empty, resident system tree.
func NewTree() *Tree {
	return &Tree{}
}

// Streaming reports whether this tree uses the streaming driver instead of
// resident storage.
func (t *Tree) Streaming() bool { return t.Driver != nil }

// HasAccelerator reports whether any ACCELERATOR group or
// ACCELERATOR_STREAM location has been registered (resident mode), or
// whether SetStreaming was called with hasAccelerator set (streaming mode,
// see driver.go).
func (t *Tree) HasAccelerator() bool { return t.accelerator }

// Nodes returns every registered system-tree-node in id order (resident
// mode).
func (t *Tree) Nodes() []*SystemTreeNode { return t.nodes }

// Roots returns the root system-tree-nodes in registration order.
func (t *Tree) Roots() []*SystemTreeNode { return t.roots }

// Locations returns every registered location in id order (resident mode).
// Its length is the report-wide per-row thread count (spec.md §4.6.3).
func (t *Tree) Locations() []*Location { return t.locations }

// LocationCount returns the number of locations, resident or declared
// (streaming), used to size every metric's rows.
func (t *Tree) LocationCount() int {
	if t.Streaming() {
		return t.DeclaredLocs
	}
	return len(t.locations)
}

// DefineNode registers a new system-tree-node under parent (nil for a root).
func (t *Tree) DefineNode(name, description, class string, parent *SystemTreeNode) *SystemTreeNode {
	n := &SystemTreeNode{id: len(t.nodes), Name: name, Description: description, Class: class, parent: parent}
	t.nodes = append(t.nodes, n)
	if parent != nil {
		parent.children = append(parent.children, n)
	} else {
		t.roots = append(t.roots, n)
	}
	return n
}

// DefineLocationGroup registers a new location-group under node.
func (t *Tree) DefineLocationGroup(node *SystemTreeNode, name string, rank int, typ LocationGroupType) *LocationGroup {
	g := &LocationGroup{id: len(t.groups), Name: name, Rank: rank, Type: typ, node: node}
	t.groups = append(t.groups, g)
	node.groups = append(node.groups, g)
	if typ == Accelerator {
		t.accelerator = true
	}
	return g
}

// DefineLocation registers a new location under group.
func (t *Tree) DefineLocation(group *LocationGroup, name string, rank int, typ LocationType) *Location {
	l := &Location{id: len(t.locations), Name: name, Rank: rank, Type: typ, group: group}
	t.locations = append(t.locations, l)
	group.locations = append(group.locations, l)
	if typ == AcceleratorStream {
		t.accelerator = true
	}
	return l
}
