package valuecodec

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeDoubleRowLittleEndian(t *testing.T) {
	row := NewDoubleRow([]float64{1.5})
	data, ok := row.Encode(ValueType{Kind: KindDouble})
	if !ok {
		t.Fatal("encode failed")
	}
	want := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8, 0x3F}
	if !bytes.Equal(data, want) {
		t.Errorf("got % X, want % X", data, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dt := ValueType{Kind: KindInt64}
	row := NewInt64Row([]int64{-5, 0, 12345})
	data, ok := row.Encode(dt)
	if !ok {
		t.Fatal("encode failed")
	}
	got := Decode(dt, data)
	want := []float64{-5, 0, 12345}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEncodeAtomicRowDropsSumSq(t *testing.T) {
	row := NewAtomicRow([]Atomic{{Count: 1, Sum: 2, Min: 3, Max: 4, SumSq: 99}})
	data, ok := row.Encode(ValueType{Kind: KindTauAtomic})
	if !ok {
		t.Fatal("encode failed")
	}
	if len(data) != 32 {
		t.Fatalf("len = %d, want 32", len(data))
	}
	if got := math.Float64frombits(binary.LittleEndian.Uint64(data[24:])); got != 4 {
		t.Errorf("fourth field = %v, want 4 (Max)", got)
	}
}

func TestEncodeUnsupportedCombinationWritesNothing(t *testing.T) {
	row := Row{Type: ValueType{Kind: KindDouble}} // no Values, no Raw
	_, ok := row.Encode(ValueType{Kind: KindNDoubles, N: 2})
	if ok {
		t.Error("expected Encode to report failure for an empty NDOUBLES row")
	}
}

func TestEncodeRateRow(t *testing.T) {
	row := NewRateRow([][2]float64{{1, 2}, {3, 4}})
	data, ok := row.Encode(ValueType{Kind: KindRate})
	if !ok {
		t.Fatal("encode failed")
	}
	if len(data) != 32 {
		t.Fatalf("len = %d, want 32", len(data))
	}
}
