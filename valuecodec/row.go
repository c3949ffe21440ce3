package valuecodec

import (
	"encoding/binary"
	"math"
)

// Atomic is one TAU_ATOMIC sample (spec.md §4.7). SumSq is tracked in memory
// for callers that want it, but is not part of the persisted 32-byte layout
// (see DESIGN.md: the fixed TAU_ATOMIC size of 32 bytes only fits four
// doubles, so the on-disk row keeps count/sum/min/max and drops SumSq).
type Atomic struct {
	Count, Sum, Min, Max, SumSq float64
}

// Row is a caller-supplied row of per-location values, tagged with the type
// it was produced as. The engine converts it to the metric's declared type
// on write (spec.md §4.6.7).
type Row struct {
	Type    ValueType
	Values  []float64  // scalar-convertible kinds: int*, uint*, double, min/max double
	Pairs   [][2]float64 // RATE, COMPLEX
	Atomics []Atomic     // TAU_ATOMIC
	Raw     []byte       // HISTOGRAM, SCALE_FUNC, NDOUBLES, or a pre-encoded generic row
}

// NewDoubleRow builds a Row of DOUBLE-typed values, one per location.
func NewDoubleRow(values []float64) Row {
	return Row{Type: ValueType{Kind: KindDouble}, Values: values}
}

// NewInt64Row builds a Row of INT64-typed values, one per location.
func NewInt64Row(values []int64) Row {
	vs := make([]float64, len(values))
	for i, v := range values {
		vs[i] = float64(v)
	}
	return Row{Type: ValueType{Kind: KindInt64}, Values: vs}
}

// NewUint64Row builds a Row of UINT64-typed values, one per location.
func NewUint64Row(values []uint64) Row {
	vs := make([]float64, len(values))
	for i, v := range values {
		vs[i] = float64(v)
	}
	return Row{Type: ValueType{Kind: KindUint64}, Values: vs}
}

// NewRateRow builds a Row of RATE-typed values (two doubles per location).
func NewRateRow(pairs [][2]float64) Row {
	return Row{Type: ValueType{Kind: KindRate}, Pairs: pairs}
}

// NewComplexRow builds a Row of COMPLEX-typed values (two doubles per location).
func NewComplexRow(pairs [][2]float64) Row {
	return Row{Type: ValueType{Kind: KindComplex}, Pairs: pairs}
}

// NewAtomicRow builds a Row of TAU_ATOMIC-typed values.
func NewAtomicRow(values []Atomic) Row {
	return Row{Type: ValueType{Kind: KindTauAtomic}, Atomics: values}
}

// NewBytesRow wraps an already-encoded row of raw bytes, used for
// HISTOGRAM/SCALE_FUNC/NDOUBLES rows and the generic write-bytes path
// (spec.md §9, "Type-erased row buffers").
func NewBytesRow(t ValueType, raw []byte) Row {
	return Row{Type: t, Raw: raw}
}

func putScalar(buf []byte, k Kind, v float64) {
	switch k {
	case KindInt8:
		buf[0] = byte(int8(v))
	case KindUint8:
		buf[0] = byte(uint8(v))
	case KindInt16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case KindUint16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case KindInt32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case KindUint32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case KindInt64:
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	case KindUint64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case KindDouble, KindMinDouble, KindMaxDouble:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
}

// Encode converts the row to the byte layout of target, returning false if
// the conversion is unsupported (spec.md §4.6.7: unsupported combinations
// write nothing and are silently ignored).
func (r Row) Encode(target ValueType) ([]byte, bool) {
	elem := target.ElemSize()

	switch target.Kind {
	case KindInt8, KindUint8, KindInt16, KindUint16,
		KindInt32, KindUint32, KindInt64, KindUint64,
		KindDouble, KindMinDouble, KindMaxDouble:
		if r.Values == nil {
			// DOUBLE -> HISTOGRAM is handled below; here we require
			// scalar source values.
			return nil, false
		}
		out := make([]byte, len(r.Values)*elem)
		for i, v := range r.Values {
			putScalar(out[i*elem:(i+1)*elem], target.Kind, v)
		}
		return out, true

	case KindRate, KindComplex:
		if r.Pairs == nil {
			return nil, false
		}
		out := make([]byte, len(r.Pairs)*16)
		for i, p := range r.Pairs {
			binary.LittleEndian.PutUint64(out[i*16:], math.Float64bits(p[0]))
			binary.LittleEndian.PutUint64(out[i*16+8:], math.Float64bits(p[1]))
		}
		return out, true

	case KindTauAtomic:
		if r.Atomics == nil {
			return nil, false
		}
		out := make([]byte, len(r.Atomics)*32)
		for i, a := range r.Atomics {
			base := i * 32
			binary.LittleEndian.PutUint64(out[base:], math.Float64bits(a.Count))
			binary.LittleEndian.PutUint64(out[base+8:], math.Float64bits(a.Sum))
			binary.LittleEndian.PutUint64(out[base+16:], math.Float64bits(a.Min))
			binary.LittleEndian.PutUint64(out[base+24:], math.Float64bits(a.Max))
		}
		return out, true

	case KindHistogram:
		// double -> histogram: treated as a raw double row, per spec.md
		// §4.6.7 ("histogram layout is fixed-width per location").
		if r.Raw != nil {
			return r.Raw, true
		}
		if r.Values != nil {
			out := make([]byte, len(r.Values)*8)
			for i, v := range r.Values {
				binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
			}
			return out, true
		}
		return nil, false

	case KindScaleFunc, KindNDoubles:
		if r.Raw != nil {
			return r.Raw, true
		}
		return nil, false

	default:
		return nil, false
	}
}

// Decode is the inverse of Encode for the scalar-convertible kinds, used by
// tests asserting round-trip identity (spec.md §8, property 2).
func Decode(t ValueType, data []byte) []float64 {
	elem := t.ElemSize()
	if elem == 0 || len(data)%elem != 0 {
		return nil
	}
	n := len(data) / elem
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		buf := data[i*elem : (i+1)*elem]
		switch t.Kind {
		case KindInt8:
			out[i] = float64(int8(buf[0]))
		case KindUint8:
			out[i] = float64(buf[0])
		case KindInt16:
			out[i] = float64(int16(binary.LittleEndian.Uint16(buf)))
		case KindUint16:
			out[i] = float64(binary.LittleEndian.Uint16(buf))
		case KindInt32:
			out[i] = float64(int32(binary.LittleEndian.Uint32(buf)))
		case KindUint32:
			out[i] = float64(binary.LittleEndian.Uint32(buf))
		case KindInt64:
			out[i] = float64(int64(binary.LittleEndian.Uint64(buf)))
		case KindUint64:
			out[i] = float64(binary.LittleEndian.Uint64(buf))
		case KindDouble, KindMinDouble, KindMaxDouble:
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
		}
	}
	return out
}
