package hkv

import (
	"bytes"
	"strings"
	"testing"
)

func roundTrip(t *testing.T, key, val []byte, wantWidth int) Record {
	t.Helper()
	n, err := EncodedLen(len(key), len(val))
	if err != nil {
		t.Fatalf("EncodedLen: %v", err)
	}
	buf := make([]byte, n)
	written, err := Encode(buf, key, val)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if written != n {
		t.Fatalf("Encode wrote %d, want %d", written, n)
	}
	hl, err := HeaderLen(buf)
	if err != nil {
		t.Fatalf("HeaderLen: %v", err)
	}
	if hl != wantWidth {
		t.Fatalf("HeaderLen = %d, want %d", hl, wantWidth)
	}
	rec, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.HeaderLen != wantWidth {
		t.Fatalf("Decode header width = %d, want %d", rec.HeaderLen, wantWidth)
	}
	if !bytes.Equal(rec.Key, key) {
		t.Fatalf("key round-trip mismatch: got %q want %q", rec.Key, key)
	}
	if !bytes.Equal(rec.Value, val) {
		t.Fatalf("value round-trip mismatch: got %q want %q", rec.Value, val)
	}
	return rec
}

func TestHeaderWidthBoundaries(t *testing.T) {
	roundTrip(t, bytes.Repeat([]byte("a"), 7), bytes.Repeat([]byte("v"), 15), 1)
	roundTrip(t, bytes.Repeat([]byte("a"), 8), []byte("v"), 3)
	roundTrip(t, bytes.Repeat([]byte("a"), 128), []byte("v"), 5)
	roundTrip(t, bytes.Repeat([]byte("a"), 65536), bytes.Repeat([]byte("v"), 65536), 8)
}

func TestSmallestFitSelection(t *testing.T) {
	cases := []struct {
		keyLen, valLen, want int
	}{
		{1, 0, 1},
		{7, 15, 1},
		{8, 15, 3},
		{7, 16, 3},
		{127, 65535, 3},
		{128, 0, 5},
		{65535, 65535, 5},
		{65536, 0, 8},
		{1, 65536, 8},
	}
	for _, c := range cases {
		key := []byte(strings.Repeat("k", c.keyLen))
		val := make([]byte, c.valLen)
		rec := roundTrip(t, key, val, c.want)
		_ = rec
	}
}

func TestValueTooLarge(t *testing.T) {
	if _, err := EncodedLen(MaxKeyHeader8+1, 0); err != ErrValueTooLarge {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestZeroLengthKeyNotHeader1(t *testing.T) {
	// header_1 requires key_len>=1; headerWidth must not select header_1
	// (or any other width) for an empty key.
	if _, err := headerWidth(0, 5); err != ErrValueTooLarge {
		t.Fatalf("zero-length key should not select any header via headerWidth, got err=%v", err)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	if _, err := Decode(nil); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt for empty src, got %v", err)
	}
	if _, err := HeaderLen([]byte{0x02}); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt for invalid low nibble, got %v", err)
	}
}
