package systree

// DescriptorKind tags which of the three system-tree entities a streamed
// Descriptor describes.
type DescriptorKind uint8

const (
	DescNode DescriptorKind = iota
	DescGroup
	DescLocation
)

// Descriptor is one pre-order streamed entity. Exactly the fields matching
// Kind are meaningful. Depth is the nesting depth within the system tree
// (0 for a root node); the anchor emitter uses it to open/close XML scopes
// as depth changes between successive descriptors (spec.md §4.4,
// "responsible for properly opening/closing the XML scopes").
type Descriptor struct {
	Kind  DescriptorKind
	Depth int

	Name        string
	Description string
	Class       string // node only

	Rank int                // group, location
	GType LocationGroupType // group only
	LType LocationType       // location only

	// Accelerator marks an accelerator entity. The anchor writer does not
	// read it: in streaming mode the anchor version comes from the
	// hasAccelerator argument of SetStreaming.
	Accelerator bool

	Attrs []Attribute
}

// Attribute mirrors attrs.Attribute without importing the attrs package,
// keeping Driver implementable without depending on report internals.
type Attribute struct {
	Key, Value string
}

// Driver is a pull-iterator yielding system-tree entities in pre-order
// during anchor emission (spec.md §4.4, DESIGN NOTES "Streaming system-tree
// callback tangle": the original init/step/driver/finish callback
// quadruple is modeled here as a single Go iterator).
//
// Next returns ok=false once every declared entity has been yielded. The
// writer calls Next until it returns ok=false, then treats any per-kind
// count that differs from DeclaredNodes, DeclaredGroups or DeclaredLocs as
// fatal (spec.md §4.4 invariant).
type Driver interface {
	Next() (d Descriptor, ok bool)
}

// SliceDriver is a Driver backed by a pre-built slice, useful for callers
// that already have the full descriptor sequence (e.g. replaying a
// previously-recorded system description without retaining the tree
// structures spec.md describes as unnecessary to keep around).
type SliceDriver struct {
	descs []Descriptor
	pos   int
}

// NewSliceDriver wraps descs as a Driver.
func NewSliceDriver(descs []Descriptor) *SliceDriver {
	return &SliceDriver{descs: descs}
}

// Next implements Driver.
func (d *SliceDriver) Next() (Descriptor, bool) {
	if d.pos >= len(d.descs) {
		return Descriptor{}, false
	}
	desc := d.descs[d.pos]
	d.pos++
	return desc, true
}

// SetStreaming installs a driver and the counts the writer must see exactly
// (spec.md §4.4 invariant: "total emitted counts must exactly equal the
// declared counts; mismatches are fatal").
//
// hasAccelerator must be supplied up front: the root <cube version=...> tag
// is emitted before any system-tree content, so the anchor writer cannot
// wait for an accelerator descriptor to arrive mid-stream to decide the
// version (spec.md §6, §8 property 8). A caller driving a streaming system
// tree already knows its shape (it supplied the counts), so it is expected
// to know this too.
func (t *Tree) SetStreaming(driver Driver, nodes, groups, locations int, hasAccelerator bool) {
	t.Driver = driver
	t.DeclaredNodes = nodes
	t.DeclaredGroups = groups
	t.DeclaredLocs = locations
	t.accelerator = hasAccelerator
}
