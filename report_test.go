package cubew

import (
	"testing"

	"github.com/scorep-tools/cubew/container"
	"github.com/scorep-tools/cubew/internal/bitset"
	"github.com/scorep-tools/cubew/metric"
	"github.com/scorep-tools/cubew/systree"
	"github.com/scorep-tools/cubew/valuecodec"
)

// defineOneLocation gives r a single CPU-thread location, so every metric
// row holds exactly one value.
func defineOneLocation(t *testing.T, r *Report) {
	t.Helper()
	node, err := r.DefineSystemNode("host", "", "machine", nil)
	if err != nil {
		t.Fatalf("DefineSystemNode: %v", err)
	}
	group, err := r.DefineLocationGroup(node, "p0", 0, systree.Process)
	if err != nil {
		t.Fatalf("DefineLocationGroup: %v", err)
	}
	if _, err := r.DefineLocation(group, "t0", 0, systree.CPUThread); err != nil {
		t.Fatalf("DefineLocation: %v", err)
	}
}

func TestDefineAfterLockReturnsInvalidDefinition(t *testing.T) {
	r := CreateVirtual(Master)
	double, _ := valuecodec.Parse("DOUBLE")
	m, err := r.DefineMetric(nil, "Time", "time", double, metric.Exclusive)
	if err != nil {
		t.Fatalf("DefineMetric: %v", err)
	}
	region, err := r.DefineRegion("main", "main", "", "", 0, 0, "", "", "main.c")
	if err != nil {
		t.Fatalf("DefineRegion: %v", err)
	}
	c, err := r.DefineCnode(region, nil, "main.c", 1)
	if err != nil {
		t.Fatalf("DefineCnode: %v", err)
	}
	defineOneLocation(t, r)

	if err := r.WriteRow(m, c, valuecodec.NewDoubleRow([]float64{1})); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if !r.Locked() {
		t.Fatal("expected report to be locked after first WriteRow")
	}

	if _, err := r.DefineMetric(nil, "Other", "other", double, metric.Exclusive); err != errInvalidDefinition {
		t.Errorf("DefineMetric after lock = %v, want errInvalidDefinition", err)
	}
	if _, err := r.DefineRegion("f", "f", "", "", 0, 0, "", "", "f.c"); err != errInvalidDefinition {
		t.Errorf("DefineRegion after lock = %v, want errInvalidDefinition", err)
	}
	if _, err := r.DefineCnode(region, nil, "main.c", 2); err != errInvalidDefinition {
		t.Errorf("DefineCnode after lock = %v, want errInvalidDefinition", err)
	}
	if _, err := r.DefineSystemNode("h", "", "machine", nil); err != errInvalidDefinition {
		t.Errorf("DefineSystemNode after lock = %v, want errInvalidDefinition", err)
	}
	if _, err := r.DefineCartesian("ranks", nil); err != errInvalidDefinition {
		t.Errorf("DefineCartesian after lock = %v, want errInvalidDefinition", err)
	}
}

func TestSlaveFlavourWritesNoIndexOrAnchor(t *testing.T) {
	r := CreateVirtual(Slave)
	double, _ := valuecodec.Parse("DOUBLE")
	m, _ := r.DefineMetric(nil, "Time", "time", double, metric.Exclusive)
	region, _ := r.DefineRegion("main", "main", "", "", 0, 0, "", "", "main.c")
	c, _ := r.DefineCnode(region, nil, "main.c", 1)
	defineOneLocation(t, r)

	if err := r.WriteRow(m, c, valuecodec.NewDoubleRow([]float64{2})); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	v := r.layout.(*container.Virtual)
	if got := v.BytesWritten("time.index"); got != 0 {
		t.Errorf("SLAVE wrote %d bytes to an index file, want 0", got)
	}
	if got := v.BytesWritten("anchor.xml"); got != 0 {
		t.Errorf("SLAVE wrote %d bytes to the anchor, want 0", got)
	}
	if got := v.BytesWritten("time.data"); got == 0 {
		t.Error("SLAVE should still write its own data file")
	}
}

func TestMasterFlavourWritesAnchorAndIndex(t *testing.T) {
	r := CreateVirtual(Master)
	double, _ := valuecodec.Parse("DOUBLE")
	m, _ := r.DefineMetric(nil, "Time", "time", double, metric.Exclusive)
	region, _ := r.DefineRegion("main", "main", "", "", 0, 0, "", "", "main.c")
	c, _ := r.DefineCnode(region, nil, "main.c", 1)
	defineOneLocation(t, r)

	// An uncompressed DENSE metric has no index bytes; a known-cnodes mask
	// makes it SPARSE, which gives it an index file.
	global := bitset.New(1)
	global.Set(c.ID())
	if err := r.SetKnownCnodes(m, global); err != nil {
		t.Fatalf("SetKnownCnodes: %v", err)
	}

	if err := r.WriteRow(m, c, valuecodec.NewDoubleRow([]float64{2})); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	v := r.layout.(*container.Virtual)
	if got := v.BytesWritten("anchor.xml"); got == 0 {
		t.Error("MASTER should write a non-empty anchor")
	}
	if got := v.BytesWritten("time.index"); got == 0 {
		t.Error("MASTER should write a non-empty index")
	}
}

func TestSetKnownCnodesSwitchesToSparseIndex(t *testing.T) {
	r := CreateVirtual(Master)
	double, _ := valuecodec.Parse("DOUBLE")
	m, _ := r.DefineMetric(nil, "Time", "time", double, metric.Simple)
	region, _ := r.DefineRegion("f", "f", "", "", 0, 0, "", "", "f.c")
	a, _ := r.DefineCnode(region, nil, "f.c", 1)
	r.DefineCnode(region, nil, "f.c", 2) // b, not known
	defineOneLocation(t, r)

	global := bitset.New(2)
	global.Set(a.ID())
	if err := r.SetKnownCnodes(m, global); err != nil {
		t.Fatalf("SetKnownCnodes: %v", err)
	}
	if err := r.WriteRow(m, a, valuecodec.NewDoubleRow([]float64{1})); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	v := r.layout.(*container.Virtual)
	if got := v.BytesWritten("time.data"); got != 16 {
		t.Errorf("data bytes = %d, want 16 (8-byte marker plus one DOUBLE row)", got)
	}
}

func TestWriteMiscAppearsInOutput(t *testing.T) {
	r := CreateVirtual(Master)
	r.WriteMisc("notes.txt", []byte("hello"))

	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	v := r.layout.(*container.Virtual)
	if got := v.BytesWritten("notes.txt"); got != 5 {
		t.Errorf("notes.txt bytes = %d, want 5", got)
	}
}

func TestDerivedMetricWriteRowIsNoop(t *testing.T) {
	r := CreateVirtual(Master)
	double, _ := valuecodec.Parse("DOUBLE")
	m, _ := r.DefineMetric(nil, "Derived", "derived", double, metric.Postderived)
	region, _ := r.DefineRegion("f", "f", "", "", 0, 0, "", "", "f.c")
	c, _ := r.DefineCnode(region, nil, "f.c", 1)

	if err := r.WriteRow(m, c, valuecodec.NewDoubleRow([]float64{1})); err != nil {
		t.Fatalf("WriteRow on a derived metric should be a silent no-op, got: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	v := r.layout.(*container.Virtual)
	if got := v.BytesWritten("derived.data"); got != 0 {
		t.Errorf("derived metric wrote %d data bytes, want 0 (no engine allocated)", got)
	}
}

func TestFlavourString(t *testing.T) {
	if Master.String() != "MASTER" {
		t.Errorf("Master.String() = %q", Master.String())
	}
	if Slave.String() != "SLAVE" {
		t.Errorf("Slave.String() = %q", Slave.String())
	}
}

func TestAnchorAttrsPrependVersionFields(t *testing.T) {
	r := CreateVirtual(Master)
	r.DefineAttribute("custom", "value")
	got := r.anchorAttrs()
	if len(got) < 4 {
		t.Fatalf("anchorAttrs() len = %d, want at least 4", len(got))
	}
	if got[0].Key != "CUBE_CUBEPL_VERSION" || got[len(got)-1].Key != "custom" {
		t.Errorf("anchorAttrs() = %+v, want version fields first, caller attrs last", got)
	}
}

func TestStreamingSystemTreeEndToEnd(t *testing.T) {
	r := CreateVirtual(Master)
	double, _ := valuecodec.Parse("DOUBLE")
	_, err := r.DefineMetric(nil, "Time", "time", double, metric.Exclusive)
	if err != nil {
		t.Fatalf("DefineMetric: %v", err)
	}
	driver := systree.NewSliceDriver([]systree.Descriptor{
		{Kind: systree.DescNode, Depth: 0, Name: "host"},
		{Kind: systree.DescGroup, Name: "p0", GType: systree.Process},
		{Kind: systree.DescLocation, Name: "t0", LType: systree.CPUThread},
	})
	if err := r.SetStreamingSystemTree(driver, 1, 1, 1, false); err != nil {
		t.Fatalf("SetStreamingSystemTree: %v", err)
	}
	if err := r.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	v := r.layout.(*container.Virtual)
	if v.BytesWritten("anchor.xml") == 0 {
		t.Error("expected a non-empty anchor from the streaming system tree")
	}
}

func TestCreateTargetsEmbeddedLayout(t *testing.T) {
	dir := t.TempDir()
	r, err := Create(dir+"/report.cubex", Master)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := r.layout.(*container.Embedded); !ok {
		t.Errorf("Create() layout = %T, want *container.Embedded", r.layout)
	}
}

func TestEnvEnablesCompressionParsesTrueAndYes(t *testing.T) {
	t.Setenv("CUBEW_ZLIB_COMPRESSION", "True")
	if !envEnablesCompression() {
		t.Error(`envEnablesCompression() = false for "True", want true`)
	}
	t.Setenv("CUBEW_ZLIB_COMPRESSION", "no")
	if envEnablesCompression() {
		t.Error(`envEnablesCompression() = true for "no", want false`)
	}
}

func TestTracefDoesNotPanicWhenDisabled(t *testing.T) {
	r := CreateVirtual(Master)
	r.trace = false
	r.tracef("should not panic even when disabled: %d", 1)
}
