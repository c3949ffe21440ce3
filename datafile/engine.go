// Package datafile implements the per-metric binary data/index engine:
// local enumeration, the optional known-cnodes sparse bitmask, per-row
// compression, and the index file (spec.md §4.6).
package datafile

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/scorep-tools/cubew/calltree"
	"github.com/scorep-tools/cubew/internal/bitset"
	"github.com/scorep-tools/cubew/valuecodec"
)

const (
	MarkerData      = "CUBEX.DA"
	MarkerCompressed = "CUBEX.ZD"
	MarkerIndex     = "CUBEX.IX"
)

// IndexFormat is the index-file format byte (spec.md §4.6.5).
type IndexFormat uint8

const (
	FormatSparse IndexFormat = 1
	// FormatLegacyBitvector (2) is reserved and never written (spec.md §9).
	formatLegacyBitvector IndexFormat = 2
	FormatDense           IndexFormat = 3
)

const indexHeaderVersion uint16 = 1

type subIndexEntry struct {
	startUncompressed uint64
	startCompressed   uint64
	sizeCompressed    uint64
}

// Engine is the per-metric binary writer. One Engine exists for each
// non-derived metric between its first row write and Finalize.
type Engine struct {
	mu sync.Mutex

	ValueType   valuecodec.ValueType
	ThreadCount int
	Compressed  bool

	enum  *Enumeration
	known *bitset.SlotMask // nil => DENSE

	written *bitset.SlotMask

	// uncompressed path
	dataW *seekWriter

	// compressed path: buffered in memory and flushed sequentially at
	// Finalize, since the sub-index's own size (and therefore the offset
	// the first blob lives at) is not known until every row has arrived
	// (spec.md §4.6.4, §4.6.8 — see DESIGN.md for why this replaces the
	// seek-back-and-rewrite description with an equivalent buffered flush).
	subIndex []subIndexEntry
	blobs    bytes.Buffer

	closed bool
}

// NewEngine creates an engine for a metric that stores rows.
func NewEngine(vt valuecodec.ValueType, threadCount int, enum *Enumeration, compressed bool) *Engine {
	return &Engine{
		ValueType:   vt,
		ThreadCount: threadCount,
		enum:        enum,
		Compressed:  compressed,
		written:     bitset.New(enum.Slots()),
	}
}

// SetKnownCnodes installs a known-cnodes bitmask already rewritten to local
// slots (spec.md §4.6.2). Calling this switches the metric's index format
// from DENSE to SPARSE. It must be called before the first row write.
func (e *Engine) SetKnownCnodes(mask *bitset.SlotMask) {
	e.known = mask
}

// rowBytes is the fixed per-row size: thread_count * sizeof(value_type).
func (e *Engine) rowBytes() int {
	return e.ThreadCount * e.ValueType.ElemSize()
}

// declaredRows is N from spec.md §4.6.3: the known-cnode count if SPARSE,
// else the total cnode count.
func (e *Engine) declaredRows() int {
	if e.known != nil {
		return e.known.Count()
	}
	return e.enum.Slots()
}

// Open attaches the uncompressed data sink and writes its marker. Compressed
// engines do not open a sink until Finalize, since the whole file is
// buffered.
func (e *Engine) Open(sink Sink) error {
	if e.Compressed {
		return nil
	}
	e.dataW = newSeekWriter(sink)
	if _, err := e.dataW.Append([]byte(MarkerData)); err != nil {
		return fmt.Errorf("datafile: write marker: %w", err)
	}
	return nil
}

// WriteRow implements the per-row write contract of spec.md §4.6.6 for a
// cnode identified by its global id.
func (e *Engine) WriteRow(cnodeGlobalID int, row valuecodec.Row) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, ok := e.enum.LocalSlot(cnodeGlobalID)
	if !ok {
		return nil // unknown cnode for this metric: silently ignored
	}
	if e.known != nil && !e.known.Test(slot) {
		return nil // sparse exclusivity: bit clear, caller declared it absent
	}

	data, ok := row.Encode(e.ValueType)
	if !ok {
		return nil // unsupported conversion: write nothing (spec.md §4.6.7)
	}
	if len(data) != e.rowBytes() {
		return fmt.Errorf("datafile: row has %d bytes, want %d", len(data), e.rowBytes())
	}

	e.written.Set(slot)

	if e.Compressed {
		return e.writeCompressedRow(slot, data)
	}
	return e.writeUncompressedRow(slot, data)
}

// WriteRowForCnode is a convenience wrapper taking a *calltree.Cnode
// directly, as the Report-level API exposes.
func (e *Engine) WriteRowForCnode(c *calltree.Cnode, row valuecodec.Row) error {
	return e.WriteRow(c.ID(), row)
}

func (e *Engine) physicalPos(slot int) int {
	if e.known != nil {
		return e.known.Rank(slot)
	}
	return slot
}

func (e *Engine) writeUncompressedRow(slot int, data []byte) error {
	pos := e.physicalPos(slot)
	offset := int64(len(MarkerData)) + int64(pos)*int64(e.rowBytes())
	return e.dataW.WriteAt(offset, data)
}

func (e *Engine) writeCompressedRow(slot int, data []byte) error {
	pos := e.physicalPos(slot)
	startUncompressed := uint64(pos) * uint64(e.rowBytes())

	var compressed bytes.Buffer
	zw, err := flate.NewWriter(&compressed, flate.BestSpeed)
	if err != nil {
		return fmt.Errorf("datafile: new flate writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("datafile: compress row: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("datafile: flush row: %w", err)
	}

	startCompressed := uint64(e.blobs.Len())
	e.blobs.Write(compressed.Bytes())
	e.subIndex = append(e.subIndex, subIndexEntry{
		startUncompressed: startUncompressed,
		startCompressed:   startCompressed,
		sizeCompressed:    uint64(compressed.Len()),
	})
	return nil
}

// Written reports whether the given local slot has received a row, for
// tests asserting sparse exclusivity (spec.md §8 property 4).
func (e *Engine) Written(slot int) bool { return e.written.Test(slot) }
