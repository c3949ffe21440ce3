package datafile

import (
	"encoding/binary"
	"fmt"
)

// Finalize closes the metric's data file and, unless writeIndex is false
// (the SLAVE flavour leaves index writing to the master, spec.md §4.6.8),
// writes its index file.
//
// For a compressed metric, dataSink receives the whole CUBEX.ZD file in one
// sequential pass (marker, count, sub-index, blobs) since nothing was
// written to it before now. For an uncompressed metric, dataSink is ignored:
// the engine already wrote directly through the sink given to Open, and only
// pads that file out to its declared size here.
func (e *Engine) Finalize(dataSink Sink, indexSink Sink, writeIndex bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.Compressed {
		if err := e.flushCompressed(dataSink); err != nil {
			return err
		}
	} else {
		total := int64(len(MarkerData)) + int64(e.declaredRows())*int64(e.rowBytes())
		if err := e.dataW.PadTo(total); err != nil {
			return fmt.Errorf("datafile: pad data file: %w", err)
		}
	}

	if !writeIndex {
		return nil
	}
	return e.writeIndexFile(indexSink)
}

func (e *Engine) flushCompressed(sink Sink) error {
	w := newSeekWriter(sink)
	if _, err := w.Append([]byte(MarkerCompressed)); err != nil {
		return fmt.Errorf("datafile: write compressed marker: %w", err)
	}

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(e.subIndex)))
	if _, err := w.Append(countBuf[:]); err != nil {
		return fmt.Errorf("datafile: write compressed count: %w", err)
	}

	for _, ent := range e.subIndex {
		var buf [24]byte
		binary.LittleEndian.PutUint64(buf[0:], ent.startUncompressed)
		binary.LittleEndian.PutUint64(buf[8:], ent.startCompressed)
		binary.LittleEndian.PutUint64(buf[16:], ent.sizeCompressed)
		if _, err := w.Append(buf[:]); err != nil {
			return fmt.Errorf("datafile: write sub-index entry: %w", err)
		}
	}

	if _, err := w.Append(e.blobs.Bytes()); err != nil {
		return fmt.Errorf("datafile: write compressed blobs: %w", err)
	}
	return nil
}

func (e *Engine) format() IndexFormat {
	if e.known != nil {
		return FormatSparse
	}
	return FormatDense
}

// hasIndex reports whether this metric produces an index file at all:
// uncompressed DENSE metrics have none (spec.md §4.6.5).
func (e *Engine) hasIndex() bool {
	return e.known != nil || e.Compressed
}

func (e *Engine) writeIndexFile(sink Sink) error {
	if !e.hasIndex() {
		return nil
	}

	w := newSeekWriter(sink)
	if _, err := w.Append([]byte(MarkerIndex)); err != nil {
		return fmt.Errorf("datafile: write index marker: %w", err)
	}

	var header [7]byte
	binary.LittleEndian.PutUint32(header[0:4], 1) // endian sentinel
	binary.LittleEndian.PutUint16(header[4:6], indexHeaderVersion)
	header[6] = byte(e.format())
	if _, err := w.Append(header[:]); err != nil {
		return fmt.Errorf("datafile: write index header: %w", err)
	}

	if e.format() != FormatSparse {
		return nil
	}

	slots := e.known.Slots()
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(slots)))
	if _, err := w.Append(countBuf[:]); err != nil {
		return fmt.Errorf("datafile: write index count: %w", err)
	}
	for _, s := range slots {
		var sb [4]byte
		binary.LittleEndian.PutUint32(sb[:], uint32(s))
		if _, err := w.Append(sb[:]); err != nil {
			return fmt.Errorf("datafile: write index slot: %w", err)
		}
	}
	return nil
}
