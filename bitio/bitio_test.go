package bitio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPutBitsEmulationPrevention(t *testing.T) {
	w := NewWriter(16)
	w.PutBits(0x00, 8, true)
	w.PutBits(0x00, 8, true)
	w.PutBits(0x00, 8, true)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []byte{0x00, 0x00, 0x03, 0x00}
	if diff := cmp.Diff(want, w.Bytes()); diff != "" {
		t.Errorf("bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestPutUE(t *testing.T) {
	cases := []struct {
		v        uint32
		wantBits string
	}{
		{0, "1"},
		{1, "010"},
		{7, "0001000"},
	}
	for _, c := range cases {
		w := NewWriter(4)
		w.PutUE(c.v)
		w.WriteAlignZeroBits()
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		got := bitString(w.Bytes(), len(c.wantBits))
		if got != c.wantBits {
			t.Errorf("PutUE(%d) = %s, want %s", c.v, got, c.wantBits)
		}
	}
}

func TestPutSE(t *testing.T) {
	cases := []struct {
		v        int32
		wantBits string
	}{
		{0, "1"},
		{1, "010"},
		{-1, "011"},
	}
	for _, c := range cases {
		w := NewWriter(4)
		w.PutSE(c.v)
		w.WriteAlignZeroBits()
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		got := bitString(w.Bytes(), len(c.wantBits))
		if got != c.wantBits {
			t.Errorf("PutSE(%d) = %s, want %s", c.v, got, c.wantBits)
		}
	}
}

func TestPutStartCodeRequiresWordBoundary(t *testing.T) {
	w := NewWriter(8)
	w.PutBits(0x1, 1, false)
	if err := w.PutStartCode(); err == nil {
		t.Fatal("expected error for start code off word boundary")
	}
}

func TestFixZeroTermination(t *testing.T) {
	w := NewWriter(4)
	w.PutBits(0x00, 8, false)
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	w.FixZeroTermination()
	want := []byte{0x00, 0x03}
	if diff := cmp.Diff(want, w.Bytes()); diff != "" {
		t.Errorf("bytes mismatch (-want +got):\n%s", diff)
	}
}

// bitString renders the first n bits of buf, MSB first, as a string of
// '0'/'1' characters.
func bitString(buf []byte, n int) string {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		bit := (buf[byteIdx] >> uint(bitIdx)) & 1
		if bit == 1 {
			out = append(out, '1')
		} else {
			out = append(out, '0')
		}
	}
	return string(out)
}
