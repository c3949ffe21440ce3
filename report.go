// Package cubew is a writer for a structured performance-measurement report
// format: one XML anchor document describing four dimensions — metrics,
// call paths, system resources, topologies — plus one binary data/index
// file pair per metric, all packed into a single archive (spec.md §1-§2).
package cubew

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/scorep-tools/cubew/attrs"
	"github.com/scorep-tools/cubew/calltree"
	"github.com/scorep-tools/cubew/container"
	"github.com/scorep-tools/cubew/datafile"
	"github.com/scorep-tools/cubew/internal/bitset"
	"github.com/scorep-tools/cubew/metric"
	"github.com/scorep-tools/cubew/systree"
	"github.com/scorep-tools/cubew/topology"
	"github.com/scorep-tools/cubew/valuecodec"
	"github.com/scorep-tools/cubew/xmlanchor"
)

// Flavour selects whether a report produces the anchor document (MASTER) or
// only its own metric files (SLAVE, spec.md §4.1, §4.6.8).
type Flavour uint8

const (
	Master Flavour = iota
	Slave
)

// errInvalidDefinition is returned by every Define* call once the report has
// locked for writing (spec.md §4.1, §7: caller-usage errors warn and return
// a null entity, never abort).
var errInvalidDefinition = fmt.Errorf("cubew: INVALID_DEFINITION: report is locked for writing")

type metricState struct {
	engine *datafile.Engine
	ghost  bool
	// dataSink is the sink bound at lock time for uncompressed metrics
	// (engine.Open writes straight through it as rows arrive); compressed
	// metrics leave this nil since nothing is written until Finalize.
	dataSink container.WriteSeekCloser
}

// Report owns every dimension tree and coordinates the writing lifecycle
// (spec.md §4.1).
type Report struct {
	flavour     Flavour
	compression bool
	trace       bool

	layout container.Layout

	attrsList attrs.List
	mirrors   []string

	metrics    *metric.Tree
	calltree   *calltree.Tree
	systree    *systree.Tree
	topologies []*topology.Cartesian

	locked bool

	engines map[int]*metricState // metric id -> engine, non-derived metrics only
	misc    map[string][]byte
}

// Create instantiates an empty report targeting archivePath. Compression is
// read once from CUBEW_ZLIB_COMPRESSION ("true"/"yes" enables it; any other
// value, including unset, disables it); CUBEW_TRACE, if set at all, enables
// diagnostic tracing (spec.md §4.1, §6 "Environment", §9 "Global mutable
// writer state" — captured once here rather than consulted ambiently).
func Create(archivePath string, flavour Flavour) (*Report, error) {
	layout, err := container.NewEmbedded(archivePath)
	if err != nil {
		return nil, err
	}
	return newReport(layout, flavour), nil
}

// CreateVirtual instantiates a report that discards every byte it writes,
// for schema-validation callers that want Define*/WriteRow checking without
// disk I/O (spec.md §4.8 "Virtual").
func CreateVirtual(flavour Flavour) *Report {
	return newReport(container.NewVirtual(), flavour)
}

func newReport(layout container.Layout, flavour Flavour) *Report {
	r := &Report{
		flavour:     flavour,
		compression: envEnablesCompression(),
		trace:       os.Getenv("CUBEW_TRACE") != "",
		layout:      layout,
		metrics:     metric.NewTree(),
		calltree:    calltree.NewTree(),
		systree:     systree.NewTree(),
		engines:     make(map[int]*metricState),
		misc:        make(map[string][]byte),
	}
	r.tracef("report created, flavour=%v compression=%v", flavour, r.compression)
	return r
}

func envEnablesCompression() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CUBEW_ZLIB_COMPRESSION")))
	return v == "true" || v == "yes"
}

func (r *Report) tracef(format string, args ...any) {
	if r.trace {
		log.Printf("cubew: "+format, args...)
	}
}

// Locked reports whether the report has frozen dimension editing (the first
// row write has occurred).
func (r *Report) Locked() bool { return r.locked }

// DefineAttribute appends a report-level key/value attribute.
func (r *Report) DefineAttribute(key, value string) {
	r.attrsList.Define(key, value)
}

// DefineMirror appends a mirror URL for the report's data.
func (r *Report) DefineMirror(url string) {
	r.mirrors = append(r.mirrors, url)
}

// SetMetricsTitle sets the metrics pane title.
func (r *Report) SetMetricsTitle(title string) { r.metrics.Title = title }

// SetCalltreeTitle sets the call tree pane title.
func (r *Report) SetCalltreeTitle(title string) { r.calltree.Title = title }

// SetSystemtreeTitle sets the system tree pane title.
func (r *Report) SetSystemtreeTitle(title string) { r.systree.Title = title }

// DefineMetric registers a new metric (spec.md §4.2). Returns
// errInvalidDefinition once the report is locked.
func (r *Report) DefineMetric(parent *metric.Metric, name, uniqName string, dtype valuecodec.ValueType, kind metric.Kind) (*metric.Metric, error) {
	if r.locked {
		log.Printf("cubew: DefineMetric(%q) after lockdown, ignored", uniqName)
		return nil, errInvalidDefinition
	}
	return r.metrics.Define(parent, name, uniqName, dtype, kind)
}

// DefineRegion registers a new region (spec.md §4.3).
func (r *Report) DefineRegion(name, mangled, paradigm, role string, begin, end int, url, descr, module string) (*calltree.Region, error) {
	if r.locked {
		log.Printf("cubew: DefineRegion(%q) after lockdown, ignored", name)
		return nil, errInvalidDefinition
	}
	return r.calltree.DefineRegion(name, mangled, paradigm, role, begin, end, url, descr, module), nil
}

// DefineCnode registers a new call-path node (spec.md §4.3).
func (r *Report) DefineCnode(callee *calltree.Region, parent *calltree.Cnode, module string, line int) (*calltree.Cnode, error) {
	if r.locked {
		log.Printf("cubew: DefineCnode after lockdown, ignored")
		return nil, errInvalidDefinition
	}
	return r.calltree.DefineCnode(callee, parent, module, line), nil
}

// DefineSystemNode registers a new system-tree-node (resident mode, spec.md §4.4).
func (r *Report) DefineSystemNode(name, description, class string, parent *systree.SystemTreeNode) (*systree.SystemTreeNode, error) {
	if r.locked {
		log.Printf("cubew: DefineSystemNode(%q) after lockdown, ignored", name)
		return nil, errInvalidDefinition
	}
	return r.systree.DefineNode(name, description, class, parent), nil
}

// DefineLocationGroup registers a new location-group.
func (r *Report) DefineLocationGroup(node *systree.SystemTreeNode, name string, rank int, typ systree.LocationGroupType) (*systree.LocationGroup, error) {
	if r.locked {
		log.Printf("cubew: DefineLocationGroup(%q) after lockdown, ignored", name)
		return nil, errInvalidDefinition
	}
	return r.systree.DefineLocationGroup(node, name, rank, typ), nil
}

// DefineLocation registers a new location.
func (r *Report) DefineLocation(group *systree.LocationGroup, name string, rank int, typ systree.LocationType) (*systree.Location, error) {
	if r.locked {
		log.Printf("cubew: DefineLocation(%q) after lockdown, ignored", name)
		return nil, errInvalidDefinition
	}
	return r.systree.DefineLocation(group, name, rank, typ), nil
}

// SetStreamingSystemTree switches the system tree to streaming mode: the
// anchor emitter pulls descriptors from driver instead of walking a resident
// tree (spec.md §4.4).
func (r *Report) SetStreamingSystemTree(driver systree.Driver, nodes, groups, locations int, hasAccelerator bool) error {
	if r.locked {
		return errInvalidDefinition
	}
	r.systree.SetStreaming(driver, nodes, groups, locations, hasAccelerator)
	return nil
}

// DefineCartesian allocates a new topology (spec.md §4.5).
func (r *Report) DefineCartesian(name string, dims []topology.Dimension) (*topology.Cartesian, error) {
	if r.locked {
		log.Printf("cubew: DefineCartesian(%q) after lockdown, ignored", name)
		return nil, errInvalidDefinition
	}
	c := topology.Define(name, dims)
	r.topologies = append(r.topologies, c)
	return c, nil
}

// WriteMisc appends an auxiliary file to the archive, named <name>.<ext>
// literally (spec.md §4.8).
func (r *Report) WriteMisc(name string, data []byte) {
	r.misc[name] = data
}

// lockForWriting freezes dimension editing and allocates one engine per
// non-derived metric (spec.md §4.1, "On first row write the report freezes
// dimension editing, computes each metric's local enumeration, and
// allocates per-metric index state").
func (r *Report) lockForWriting() error {
	if r.locked {
		return nil
	}
	r.locked = true
	threadCount := r.systree.LocationCount()

	for _, m := range r.metrics.All() {
		if !m.StoresRows() {
			continue
		}
		enum := datafile.BuildEnumeration(m.Kind, r.calltree)
		engine := datafile.NewEngine(m.Type, threadCount, enum, r.compression)
		st := &metricState{engine: engine, ghost: m.Viz == metric.Ghost}
		if !r.compression {
			sink, err := r.layout.MetricData(m.UniqName, st.ghost)
			if err != nil {
				return fmt.Errorf("cubew: open data file for %q: %w", m.UniqName, err)
			}
			if err := engine.Open(sink); err != nil {
				return err
			}
			st.dataSink = sink
		}
		r.engines[m.ID()] = st
	}
	return nil
}

// SetKnownCnodes tells a metric that only the cnodes whose global id has its
// bit set will receive data, switching its index format to SPARSE (spec.md
// §4.6.2). global is indexed by cnode global id and sized to the call
// tree's current cnode count. Must be called before the metric's first row
// write.
func (r *Report) SetKnownCnodes(m *metric.Metric, global *bitset.SlotMask) error {
	if err := r.lockForWriting(); err != nil {
		return err
	}
	st, ok := r.engines[m.ID()]
	if !ok {
		return nil // derived metric: no engine, nothing to do
	}
	enum := datafile.BuildEnumeration(m.Kind, r.calltree)
	local := bitset.FromGlobal(global, enum.LocalSlot, enum.Slots())
	st.engine.SetKnownCnodes(local)
	return nil
}

// WriteRow writes one row of per-location values for cnode under m (spec.md
// §4.6.6). Derived metrics silently ignore every call.
func (r *Report) WriteRow(m *metric.Metric, c *calltree.Cnode, row valuecodec.Row) error {
	if err := r.lockForWriting(); err != nil {
		return err
	}
	st, ok := r.engines[m.ID()]
	if !ok {
		return nil // derived: stores no data
	}
	return st.engine.WriteRowForCnode(c, row)
}

// Finalize closes every metric's data file, writes its index (unless this
// report is a SLAVE, which never writes indexes), emits the anchor XML in
// MASTER flavour, and commits the container (spec.md §4.1, §4.6.8).
func (r *Report) Finalize() error {
	if err := r.lockForWriting(); err != nil {
		return err
	}

	writeIndex := r.flavour == Master
	for _, m := range r.metrics.All() {
		st, ok := r.engines[m.ID()]
		if !ok {
			continue
		}
		var indexSink container.WriteSeekCloser
		if writeIndex {
			var err error
			indexSink, err = r.layout.MetricIndex(m.UniqName, st.ghost)
			if err != nil {
				return fmt.Errorf("cubew: open index file for %q: %w", m.UniqName, err)
			}
		}

		dataSink := st.dataSink
		if st.engine.Compressed {
			// nothing was staged at lock time; the whole file is written
			// in one sequential pass now (see Engine.Finalize).
			var err error
			dataSink, err = r.layout.MetricData(m.UniqName, st.ghost)
			if err != nil {
				return fmt.Errorf("cubew: open data file for %q: %w", m.UniqName, err)
			}
		}

		if err := st.engine.Finalize(dataSink, indexSink, writeIndex); err != nil {
			return fmt.Errorf("cubew: finalize metric %q: %w", m.UniqName, err)
		}
		if dataSink != nil {
			if err := dataSink.Close(); err != nil {
				return fmt.Errorf("cubew: close data file for %q: %w", m.UniqName, err)
			}
		}
		if indexSink != nil {
			if err := indexSink.Close(); err != nil {
				return fmt.Errorf("cubew: close index file for %q: %w", m.UniqName, err)
			}
		}
	}

	for name, data := range r.misc {
		if err := r.writeMiscFile(name, data); err != nil {
			return err
		}
	}

	if r.flavour == Master {
		if err := r.writeAnchor(); err != nil {
			return err
		}
	}

	return r.layout.Commit()
}

func (r *Report) writeMiscFile(name string, data []byte) error {
	w, err := r.layout.Misc(name)
	if err != nil {
		return fmt.Errorf("cubew: open misc file %q: %w", name, err)
	}
	defer w.Close()
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("cubew: write misc file %q: %w", name, err)
	}
	return nil
}

func (r *Report) writeAnchor() error {
	data := xmlanchor.Data{
		Attrs:           r.anchorAttrs(),
		Mirrors:         r.mirrors,
		MetricsTitle:    r.metrics.Title,
		Metrics:         r.metrics,
		CallTreeTitle:   r.calltree.Title,
		CallTree:        r.calltree,
		SystemTreeTitle: r.systree.Title,
		SystemTree:      r.systree,
		Topologies:      r.topologies,
	}

	w, err := r.layout.AnchorWriter()
	if err != nil {
		return fmt.Errorf("cubew: open anchor writer: %w", err)
	}
	defer w.Close()
	if err := xmlanchor.Write(w, data); err != nil {
		return fmt.Errorf("cubew: write anchor: %w", err)
	}
	return nil
}

// anchorAttrs prepends the CubePL/writer/anchor version attributes the
// anchor always carries ahead of caller-defined attributes (spec.md §6,
// "including the CubePL version, writer version, and anchor version").
func (r *Report) anchorAttrs() []attrs.Attribute {
	out := []attrs.Attribute{
		{Key: "CUBE_CUBEPL_VERSION", Value: "1"},
		{Key: "CUBE_WRITER", Value: "cubew-go"},
		{Key: "CUBE_ANCHOR_VERSION", Value: "2"},
	}
	return append(out, r.attrsList.All()...)
}

func (f Flavour) String() string {
	if f == Slave {
		return "SLAVE"
	}
	return "MASTER"
}
