// Package metric implements the metric tree dimension: display metadata,
// the kind/data-type compatibility rules, derived-metric expressions, and
// the CubePL-safe unique-name sanitizer (spec.md §3, §4.2).
package metric

import (
	"log"
	"strings"

	"github.com/scorep-tools/cubew/attrs"
	"github.com/scorep-tools/cubew/valuecodec"
)

// Kind is one of the six metric kinds (spec.md §3).
type Kind uint8

const (
	Exclusive Kind = iota
	Inclusive
	Simple
	Postderived
	PrederivedInclusive
	PrederivedExclusive
)

func (k Kind) String() string {
	switch k {
	case Exclusive:
		return "EXCLUSIVE"
	case Inclusive:
		return "INCLUSIVE"
	case Simple:
		return "SIMPLE"
	case Postderived:
		return "POSTDERIVED"
	case PrederivedInclusive:
		return "PREDERIVED_INCLUSIVE"
	case PrederivedExclusive:
		return "PREDERIVED_EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// Derived reports whether this kind stores no rows of its own (spec.md §3).
func (k Kind) Derived() bool {
	return k == Postderived || k == PrederivedInclusive || k == PrederivedExclusive
}

// VizType marks a metric as hidden-by-default ("ghost") or shown normally.
type VizType uint8

const (
	Normal VizType = iota
	Ghost
)

// Expressions holds the up-to-five CubePL expressions a derived metric may
// carry (spec.md §3). The writer never evaluates these; they are opaque
// strings emitted verbatim in the anchor XML.
type Expressions struct {
	Value            string
	Init             string
	AggregationPlus  string
	AggregationMinus string
	AggregationOverThreads string
	ValueLocationwise      bool
}

// Metric is one node of the metric tree.
type Metric struct {
	id int

	DisplayName string
	UniqName    string
	Type        valuecodec.ValueType
	Kind        Kind
	Unit        string
	InitialValue string
	URL         string
	Description string
	Viz         VizType
	Cacheable   bool

	Expr Expressions

	parent   *Metric
	children []*Metric

	Attrs attrs.List
}

// ID returns the dense, stable identifier assigned on registration.
func (m *Metric) ID() int { return m.id }

// Parent returns the parent metric, or nil for a root.
func (m *Metric) Parent() *Metric { return m.parent }

// Children returns the metric's children in registration order.
func (m *Metric) Children() []*Metric { return m.children }

// StoresRows reports whether this metric's engine keeps a data/index file
// pair (spec.md §3: every kind except the three derived kinds).
func (m *Metric) StoresRows() bool { return !m.Kind.Derived() }

// cubePLSafe maps any byte outside [A-Za-z0-9:_=] to '_', preserving length
// (spec.md §3, §8 property 6: unique-name sanitation).
func cubePLSafe(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		r := s[i]
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ':', r == '_', r == '=':
			b.WriteByte(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Tree owns the metric forest and enforces registration invariants.
type Tree struct {
	all    []*Metric
	byUniq map[string]*Metric
	Title  string
}

// NewTree creates an empty metric tree.
func NewTree() *Tree {
	return &Tree{byUniq: make(map[string]*Metric)}
}

// All returns every registered metric in id order.
func (t *Tree) All() []*Metric { return t.all }

// Roots returns the metrics with no parent, in registration order.
func (t *Tree) Roots() []*Metric {
	var roots []*Metric
	for _, m := range t.all {
		if m.parent == nil {
			roots = append(roots, m)
		}
	}
	return roots
}

// ByID looks up a metric by its dense identifier.
func (t *Tree) ByID(id int) *Metric {
	if id < 0 || id >= len(t.all) {
		return nil
	}
	return t.all[id]
}

// Define registers a new metric. It applies the kind/data-type coercions
// cubew_metric.c performs rather than rejecting the call outright (spec.md
// §4.2, SPEC_FULL.md "Supplemented features"):
//   - a derived kind forces DataType to DOUBLE;
//   - INCLUSIVE over a non-additive type is downgraded to SIMPLE.
//
// Because the first rule forces every derived metric's own type to DOUBLE at
// the moment it is defined, "a child's derivation rule must operate on a
// double-typed parent" (spec.md §4.2) holds automatically whenever the
// parent is itself derived: there is no way to construct a derived parent
// with a non-DOUBLE type through this function, so no separate rejection
// path is needed for that case (cubew_metric.c carries no such check
// either). A non-derived parent's type is unconstrained, since only a
// derived metric's own declared type is ever coerced.
func (t *Tree) Define(parent *Metric, name, uniqName string, dtype valuecodec.ValueType, kind Kind) (*Metric, error) {
	if kind.Derived() && dtype.Kind != valuecodec.KindDouble {
		log.Printf("cubew: metric %q: derived kind requires DOUBLE, coercing from %s", uniqName, dtype.Kind)
		dtype = valuecodec.ValueType{Kind: valuecodec.KindDouble}
	}
	if kind == Inclusive && !dtype.Kind.Additive() {
		log.Printf("cubew: metric %q: INCLUSIVE is incompatible with %s, downgrading to SIMPLE", uniqName, dtype.Kind)
		kind = Simple
	}

	m := &Metric{
		id:           len(t.all),
		DisplayName:  name,
		UniqName:     cubePLSafe(uniqName),
		Type:         dtype,
		Kind:         kind,
		Cacheable:    true,
		parent:       parent,
	}
	t.all = append(t.all, m)
	t.byUniq[m.UniqName] = m
	if parent != nil {
		parent.children = append(parent.children, m)
	}
	return m, nil
}
