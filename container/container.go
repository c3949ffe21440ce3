// Package container implements the two report output layouts: Embedded,
// which packs the anchor and every metric's data/index files into a single
// .cubex tar archive, and Virtual, which discards everything except byte
// counts (spec.md §4.8, used for schema-validation dry runs).
package container

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archiver/v3"
)

// Layout is the destination a Report writes its files through.
type Layout interface {
	// AnchorWriter returns the sink the anchor XML document is written to.
	AnchorWriter() (io.WriteCloser, error)
	// MetricData returns the sink for a metric's data file, named by its
	// sanitized unique name. ghost distinguishes the "ghost_" prefix a
	// hidden metric's files carry (spec.md §4.8).
	MetricData(uniqName string, ghost bool) (WriteSeekCloser, error)
	// MetricIndex returns the sink for a metric's index file.
	MetricIndex(uniqName string, ghost bool) (WriteSeekCloser, error)
	// Misc returns the sink for a caller-defined auxiliary file, named
	// literally (spec.md §4.8).
	Misc(name string) (io.WriteCloser, error)
	// Commit finishes writing the container (e.g. packs the tar archive).
	// Calling Commit on a layout with nothing left to pack is a no-op.
	Commit() error
}

// WriteSeekCloser is what datafile.Sink requires; defined here too so
// callers outside datafile don't need to import it just to hold a handle.
type WriteSeekCloser interface {
	io.Writer
	io.Seeker
	io.Closer
}

// Embedded is the normal report layout: every file is first written into a
// private temporary directory, then packed into a single tar archive at
// Commit time (spec.md §4.8, "Embedded": "a tar archive containing the
// anchor document and one data/index pair per stored metric").
type Embedded struct {
	archivePath string
	workDir     string
	members     []string
}

// NewEmbedded creates an Embedded layout that will produce archivePath on
// Commit, staging files under a sibling temporary directory.
func NewEmbedded(archivePath string) (*Embedded, error) {
	dir, err := os.MkdirTemp(filepath.Dir(archivePath), ".cubew-*")
	if err != nil {
		return nil, fmt.Errorf("container: create staging dir: %w", err)
	}
	return &Embedded{archivePath: archivePath, workDir: dir}, nil
}

func (e *Embedded) stage(name string) (*os.File, error) {
	path := filepath.Join(e.workDir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("container: stage %s: %w", name, err)
	}
	e.members = append(e.members, path)
	return f, nil
}

// AnchorWriter implements Layout.
func (e *Embedded) AnchorWriter() (io.WriteCloser, error) {
	return e.stage("anchor.xml")
}

func metricFileName(uniqName string, ghost bool, ext string) string {
	if ghost {
		return "ghost_" + uniqName + ext
	}
	return uniqName + ext
}

// MetricData implements Layout.
func (e *Embedded) MetricData(uniqName string, ghost bool) (WriteSeekCloser, error) {
	return e.stage(metricFileName(uniqName, ghost, ".data"))
}

// MetricIndex implements Layout.
func (e *Embedded) MetricIndex(uniqName string, ghost bool) (WriteSeekCloser, error) {
	return e.stage(metricFileName(uniqName, ghost, ".index"))
}

// Misc implements Layout.
func (e *Embedded) Misc(name string) (io.WriteCloser, error) {
	return e.stage(name)
}

// Commit packs every staged member into the final tar archive and removes
// the staging directory.
func (e *Embedded) Commit() error {
	defer os.RemoveAll(e.workDir)
	if len(e.members) == 0 {
		return nil
	}
	if err := os.Remove(e.archivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("container: remove stale archive: %w", err)
	}
	// archiver.Archive infers the format from archivePath's extension; a
	// .cubex extension is not one it recognizes, so the format is forced
	// explicitly rather than inferred.
	if err := (&archiver.Tar{}).Archive(e.members, e.archivePath); err != nil {
		return fmt.Errorf("container: pack archive: %w", err)
	}
	return nil
}

// Virtual is a discarding layout: every sink counts bytes written but keeps
// none of them, for callers that only want to validate definitions without
// paying for I/O (spec.md §4.8, "Virtual").
type Virtual struct {
	anchorBytes int64
	dataBytes   map[string]int64
}

// NewVirtual creates a Virtual layout.
func NewVirtual() *Virtual {
	return &Virtual{dataBytes: make(map[string]int64)}
}

type discardSink struct {
	counter *int64
	pos     int64
}

func (d *discardSink) Write(p []byte) (int, error) {
	n := len(p)
	end := d.pos + int64(n)
	if end > *d.counter {
		*d.counter = end
	}
	d.pos = end
	return n, nil
}

func (d *discardSink) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		d.pos = offset
	case io.SeekCurrent:
		d.pos += offset
	case io.SeekEnd:
		d.pos = *d.counter + offset
	}
	return d.pos, nil
}

func (d *discardSink) Close() error { return nil }

// AnchorWriter implements Layout.
func (v *Virtual) AnchorWriter() (io.WriteCloser, error) {
	v.dataBytes["anchor.xml"] = 0
	return &trackedDiscard{v: v, key: "anchor.xml", discardSink: discardSink{counter: &v.anchorBytes}}, nil
}

// MetricData implements Layout.
func (v *Virtual) MetricData(uniqName string, ghost bool) (WriteSeekCloser, error) {
	key := metricFileName(uniqName, ghost, ".data")
	counter := new(int64)
	v.dataBytes[key] = 0
	return &trackedDiscard{v: v, key: key, discardSink: discardSink{counter: counter}}, nil
}

// MetricIndex implements Layout.
func (v *Virtual) MetricIndex(uniqName string, ghost bool) (WriteSeekCloser, error) {
	key := metricFileName(uniqName, ghost, ".index")
	counter := new(int64)
	v.dataBytes[key] = 0
	return &trackedDiscard{v: v, key: key, discardSink: discardSink{counter: counter}}, nil
}

// trackedDiscard mirrors its final size back into the owning Virtual's map
// on every write, since discardSink alone only knows its own counter.
type trackedDiscard struct {
	discardSink
	v   *Virtual
	key string
}

func (t *trackedDiscard) Write(p []byte) (int, error) {
	n, err := t.discardSink.Write(p)
	t.v.dataBytes[t.key] = *t.discardSink.counter
	return n, err
}

// Misc implements Layout.
func (v *Virtual) Misc(name string) (io.WriteCloser, error) {
	counter := new(int64)
	v.dataBytes[name] = 0
	return &trackedDiscard{v: v, key: name, discardSink: discardSink{counter: counter}}, nil
}

// BytesWritten reports how large a named member would have been, for tests
// asserting the writer reaches expected sizes without touching a disk.
func (v *Virtual) BytesWritten(name string) int64 { return v.dataBytes[name] }

// Commit is a no-op: nothing was ever persisted.
func (v *Virtual) Commit() error { return nil }
