package xmlanchor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scorep-tools/cubew/attrs"
	"github.com/scorep-tools/cubew/calltree"
	"github.com/scorep-tools/cubew/metric"
	"github.com/scorep-tools/cubew/systree"
	"github.com/scorep-tools/cubew/topology"
)

// Data is everything the anchor emitter needs, supplied by the Report so
// this package stays decoupled from the top-level API (spec.md §4.1, §6).
type Data struct {
	Attrs   []attrs.Attribute
	Mirrors []string

	MetricsTitle string
	Metrics      *metric.Tree

	CallTreeTitle string
	CallTree      *calltree.Tree

	SystemTreeTitle string
	SystemTree      *systree.Tree
	Topologies      []*topology.Cartesian
}

// Version returns "4.7" if the system tree carries any accelerator group or
// stream, else "4.4" (spec.md §6, §8 property 8).
func (d *Data) Version() string {
	if d.SystemTree != nil && d.SystemTree.HasAccelerator() {
		return "4.7"
	}
	return "4.4"
}

// Write emits the full anchor document to w.
func Write(w io.Writer, d Data) error {
	bw := bufio.NewWriter(w)
	t := newTagWriter(bw)

	t.writeRaw(`<?xml version="1.0" encoding="UTF-8"?>`)
	t.open("cube", a("version", d.Version()))

	for _, at := range d.Attrs {
		t.selfClose("attr", a("key", at.Key), a("value", at.Value))
	}

	t.open("doc")
	t.open("mirrors")
	for _, m := range d.Mirrors {
		t.textElem("murl", m)
	}
	t.close("mirrors")
	t.close("doc")

	writeMetrics(t, d.MetricsTitle, d.Metrics)
	writeProgram(t, d.CallTreeTitle, d.CallTree)
	if err := writeSystem(t, d.SystemTreeTitle, d.SystemTree, d.Topologies); err != nil {
		return err
	}

	t.close("cube")
	return t.flush()
}

func writeMetrics(t *tagWriter, title string, tree *metric.Tree) {
	t.open("metrics", a("title", title))
	if tree != nil {
		var walk func(m *metric.Metric)
		walk = func(m *metric.Metric) {
			writeMetric(t, m)
			for _, c := range m.Children() {
				walk(c)
			}
			t.close("metric")
		}
		for _, root := range tree.Roots() {
			walk(root)
		}
	}
	t.close("metrics")
}

func writeMetric(t *tagWriter, m *metric.Metric) {
	openAttrs := []attr{a("id", strconv.Itoa(m.ID())), a("type", m.Kind.String())}
	if m.Viz == metric.Ghost {
		openAttrs = append(openAttrs, a("viztype", "ghost"))
	}
	if !m.Cacheable {
		openAttrs = append(openAttrs, a("cacheable", "false"))
	}
	t.open("metric", openAttrs...)
	t.textElem("disp_name", m.DisplayName)
	t.textElem("uniq_name", m.UniqName)
	t.textElem("dtype", m.Type.Decl)
	t.textElem("uom", m.Unit)
	if m.InitialValue != "" {
		t.textElem("val", m.InitialValue)
	}
	t.textElem("url", m.URL)
	t.textElem("descr", m.Description)

	if m.Expr.Value != "" {
		if m.Expr.ValueLocationwise {
			t.open("cubepl", a("locationwise", "false"))
		} else {
			t.open("cubepl")
		}
		t.text(m.Expr.Value)
		t.close("cubepl")
	}
	if m.Expr.Init != "" {
		t.textElem("cubeplinit", m.Expr.Init)
	}
	if m.Expr.AggregationPlus != "" {
		t.open("cubeplaggr", a("cubeplaggrtype", "plus"))
		t.text(m.Expr.AggregationPlus)
		t.close("cubeplaggr")
	}
	if m.Expr.AggregationMinus != "" {
		t.open("cubeplaggr", a("cubeplaggrtype", "minus"))
		t.text(m.Expr.AggregationMinus)
		t.close("cubeplaggr")
	}
	if m.Expr.AggregationOverThreads != "" {
		t.open("cubeplaggr", a("cubeplaggrtype", "aggr"))
		t.text(m.Expr.AggregationOverThreads)
		t.close("cubeplaggr")
	}
	for _, at := range m.Attrs.All() {
		t.selfClose("attr", a("key", at.Key), a("value", at.Value))
	}
	// caller closes </metric> after recursing into children.
}

func writeProgram(t *tagWriter, title string, tree *calltree.Tree) {
	t.open("program", a("title", title))
	if tree != nil {
		for _, r := range tree.Regions() {
			writeRegion(t, r)
		}
		var walk func(c *calltree.Cnode)
		walk = func(c *calltree.Cnode) {
			writeCnodeOpen(t, c)
			for _, ch := range c.Children() {
				walk(ch)
			}
			for _, at := range c.Attrs.All() {
				t.selfClose("attr", a("key", at.Key), a("value", at.Value))
			}
			t.close("cnode")
		}
		for _, root := range tree.Roots() {
			walk(root)
		}
	}
	t.close("program")
}

func writeRegion(t *tagWriter, r *calltree.Region) {
	rattrs := []attr{
		a("id", strconv.Itoa(r.ID())),
		a("name", r.Name),
		a("mangled_name", r.MangledName),
		a("paradigm", r.Paradigm),
		a("role", r.Role),
		a("begin", strconv.Itoa(r.BeginLine)),
		a("end", strconv.Itoa(r.EndLine)),
		a("url", r.URL),
		a("descr", r.Description),
		a("mod", r.Module),
	}
	if len(r.Attrs.All()) == 0 {
		t.selfClose("region", rattrs...)
		return
	}
	t.open("region", rattrs...)
	for _, at := range r.Attrs.All() {
		t.selfClose("attr", a("key", at.Key), a("value", at.Value))
	}
	t.close("region")
}

func writeCnodeOpen(t *tagWriter, c *calltree.Cnode) {
	cattrs := []attr{
		a("id", strconv.Itoa(c.ID())),
		a("calleeId", strconv.Itoa(c.Callee.ID())),
		a("mod", c.Module),
		a("line", strconv.Itoa(c.Line)),
	}
	t.open("cnode", cattrs...)
	for _, p := range c.Params {
		if p.IsString {
			t.selfClose("parameter", a("name", p.Name), a("type", "string"), a("value", p.StrValue))
		} else {
			t.selfClose("parameter", a("name", p.Name), a("type", "numeric"), a("value", strconv.FormatFloat(p.NumValue, 'g', -1, 64)))
		}
	}
}

func locationGroupTypeStr(t systree.LocationGroupType) string {
	switch t {
	case systree.Process:
		return "PROCESS"
	case systree.Metrics:
		return "METRICS"
	case systree.Accelerator:
		return "ACCELERATOR"
	default:
		return "UNKNOWN"
	}
}

func locationTypeStr(t systree.LocationType) string {
	switch t {
	case systree.CPUThread:
		return "CPU_THREAD"
	case systree.Metric:
		return "METRIC"
	case systree.AcceleratorStream:
		return "ACCELERATOR_STREAM"
	default:
		return "UNKNOWN"
	}
}

func writeSystem(t *tagWriter, title string, tree *systree.Tree, topos []*topology.Cartesian) error {
	t.open("system", a("title", title))
	if tree != nil {
		if tree.Streaming() {
			if err := writeSystemStreaming(t, tree); err != nil {
				return err
			}
		} else {
			writeSystemResident(t, tree)
		}
	}
	writeTopologies(t, topos)
	t.close("system")
	return nil
}

func writeSystemResident(t *tagWriter, tree *systree.Tree) {
	var walkNode func(n *systree.SystemTreeNode)
	walkNode = func(n *systree.SystemTreeNode) {
		t.open("system_tree_node",
			a("id", strconv.Itoa(n.ID())), a("name", n.Name),
			a("desc", n.Description), a("class", n.Class))
		for _, at := range n.Attrs.All() {
			t.selfClose("attr", a("key", at.Key), a("value", at.Value))
		}
		for _, g := range n.Groups() {
			t.open("location_group",
				a("id", strconv.Itoa(g.ID())), a("name", g.Name),
				a("rank", strconv.Itoa(g.Rank)), a("type", locationGroupTypeStr(g.Type)))
			for _, at := range g.Attrs.All() {
				t.selfClose("attr", a("key", at.Key), a("value", at.Value))
			}
			for _, l := range g.Locations() {
				if len(l.Attrs.All()) == 0 {
					t.selfClose("location",
						a("id", strconv.Itoa(l.ID())), a("name", l.Name),
						a("rank", strconv.Itoa(l.Rank)), a("type", locationTypeStr(l.Type)))
					continue
				}
				t.open("location",
					a("id", strconv.Itoa(l.ID())), a("name", l.Name),
					a("rank", strconv.Itoa(l.Rank)), a("type", locationTypeStr(l.Type)))
				for _, at := range l.Attrs.All() {
					t.selfClose("attr", a("key", at.Key), a("value", at.Value))
				}
				t.close("location")
			}
			t.close("location_group")
		}
		for _, c := range n.Children() {
			walkNode(c)
		}
		t.close("system_tree_node")
	}
	for _, root := range tree.Roots() {
		walkNode(root)
	}
}

// writeSystemStreaming pulls descriptors from tree.Driver, opening and
// closing <system_tree_node>/<location_group> scopes as depth changes
// between successive descriptors, and assigns dense ids in encounter order
// (spec.md §4.4). It returns an error — treated as fatal by the caller —
// if the number of descriptors of each kind does not match the declared
// counts.
func writeSystemStreaming(t *tagWriter, tree *systree.Tree) error {
	var nodeDepths []int
	groupOpen := false
	nodeID, groupID, locID := 0, 0, 0
	seenNodes, seenGroups, seenLocs := 0, 0, 0

	closeGroup := func() {
		if groupOpen {
			t.close("location_group")
			groupOpen = false
		}
	}

	for {
		d, ok := tree.Driver.Next()
		if !ok {
			break
		}
		switch d.Kind {
		case systree.DescNode:
			seenNodes++
			closeGroup()
			for len(nodeDepths) > d.Depth {
				t.close("system_tree_node")
				nodeDepths = nodeDepths[:len(nodeDepths)-1]
			}
			t.open("system_tree_node",
				a("id", strconv.Itoa(nodeID)), a("name", d.Name),
				a("desc", d.Description), a("class", d.Class))
			nodeDepths = append(nodeDepths, d.Depth)
			nodeID++
		case systree.DescGroup:
			seenGroups++
			closeGroup()
			t.open("location_group",
				a("id", strconv.Itoa(groupID)), a("name", d.Name),
				a("rank", strconv.Itoa(d.Rank)), a("type", locationGroupTypeStr(d.GType)))
			groupOpen = true
			groupID++
		case systree.DescLocation:
			seenLocs++
			t.selfClose("location",
				a("id", strconv.Itoa(locID)), a("name", d.Name),
				a("rank", strconv.Itoa(d.Rank)), a("type", locationTypeStr(d.LType)))
			locID++
		}
	}
	closeGroup()
	for len(nodeDepths) > 0 {
		t.close("system_tree_node")
		nodeDepths = nodeDepths[:len(nodeDepths)-1]
	}

	if seenNodes != tree.DeclaredNodes || seenGroups != tree.DeclaredGroups || seenLocs != tree.DeclaredLocs {
		return fmt.Errorf("xmlanchor: streaming system tree counts disagree: got nodes=%d groups=%d locs=%d, declared nodes=%d groups=%d locs=%d",
			seenNodes, seenGroups, seenLocs, tree.DeclaredNodes, tree.DeclaredGroups, tree.DeclaredLocs)
	}
	return nil
}

func writeTopologies(t *tagWriter, topos []*topology.Cartesian) {
	t.open("topologies")
	for _, c := range topos {
		t.open("cart", a("name", c.Name), a("ndims", strconv.Itoa(len(c.Dims))))
		for _, dim := range c.Dims {
			periodic := "false"
			if dim.Periodic {
				periodic = "true"
			}
			attrList := []attr{a("size", strconv.Itoa(dim.Size)), a("periodic", periodic)}
			if dim.Name != "" {
				attrList = append(attrList, a("name", dim.Name))
			}
			t.selfClose("dim", attrList...)
		}
		for _, cell := range c.Cells() {
			if cell.Location == nil {
				continue
			}
			coord := c.Coord(cell.Offset)
			parts := make([]string, len(coord))
			for i, v := range coord {
				parts[i] = strconv.Itoa(v)
			}
			t.open("coord", a("locId", strconv.Itoa(cell.Location.ID())))
			t.text(strings.Join(parts, " "))
			t.close("coord")
		}
		t.close("cart")
	}
	t.close("topologies")
}
