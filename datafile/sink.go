package datafile

import "io"

// Sink is the minimal file-like handle a data/index file is written
// through. *os.File satisfies it directly; the container package's virtual
// layout satisfies it with a discarding implementation (spec.md §4.8).
type Sink interface {
	io.Writer
	io.Seeker
	io.Closer
}

// seekWriter localizes the out-of-order-seek bookkeeping the original
// source threads through an ambient "last_seek_position" global (spec.md §9,
// DESIGN NOTES). It tracks where the underlying sink's cursor actually is
// so a write that continues contiguously from the previous one never issues
// a redundant Seek, and it tracks the highest byte offset it has reached so
// Finalize can pad a sparsely-written file out to its true size.
type seekWriter struct {
	sink       Sink
	pos        int64
	maxWritten int64
	started    bool
}

func newSeekWriter(sink Sink) *seekWriter {
	return &seekWriter{sink: sink}
}

// WriteAt writes data at the given absolute offset, seeking only if the
// sink's cursor is not already positioned there.
func (w *seekWriter) WriteAt(offset int64, data []byte) error {
	if !w.started || w.pos != offset {
		if _, err := w.sink.Seek(offset, io.SeekStart); err != nil {
			return err
		}
		w.started = true
	}
	n, err := w.sink.Write(data)
	w.pos = offset + int64(n)
	if end := offset + int64(len(data)); end > w.maxWritten {
		w.maxWritten = end
	}
	if err != nil {
		return err
	}
	return nil
}

// Append writes data at the sink's current position, returning the offset
// it was written at. Used for the data-file marker, the sequential
// compressed-file flush, and the index file.
func (w *seekWriter) Append(data []byte) (int64, error) {
	start := w.pos
	if !w.started {
		if _, err := w.sink.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		w.started = true
		start = 0
	}
	n, err := w.sink.Write(data)
	w.pos = start + int64(n)
	if w.pos > w.maxWritten {
		w.maxWritten = w.pos
	}
	return start, err
}

// PadTo ensures the sink has been written to at least size bytes, writing a
// single zero byte at size-1 if nothing has reached that far yet (spec.md
// §4.6.8: the file's true size must account for rows that were never
// individually written).
func (w *seekWriter) PadTo(size int64) error {
	if size <= 0 || w.maxWritten >= size {
		return nil
	}
	return w.WriteAt(size-1, []byte{0})
}
