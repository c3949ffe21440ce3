// Package attrs holds the small ordered key/value attribute list shared by
// every definition entity (metric, region, cnode, location, location-group,
// system-tree-node, report — spec.md §3, "Attributes").
package attrs

// Attribute is one key/value pair. Entities keep attributes in definition
// order; they round-trip through XML verbatim modulo escaping.
type Attribute struct {
	Key   string
	Value string
}

// List is an ordered attribute collection embeddable in entity structs.
type List struct {
	items []Attribute
}

// Define appends an attribute, preserving insertion order.
func (l *List) Define(key, value string) {
	l.items = append(l.items, Attribute{Key: key, Value: value})
}

// All returns the attributes in definition order. The returned slice must
// not be mutated by the caller.
func (l *List) All() []Attribute {
	return l.items
}
