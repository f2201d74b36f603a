// ABOUTME: Tests for packet stream files
// ABOUTME: Tests framing, clean end of stream and malformed records
package packetfile

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	packets := []Packet{
		{Data: []byte{0xFC, 0xFF, 0xFE}, FinalRange: 0xDEADBEEF},
		{Data: []byte{}},
		{Data: bytes.Repeat([]byte{0x55}, 300), FinalRange: 1},
	}
	for _, p := range packets {
		if err := w.Write(p); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range packets {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if !bytes.Equal(got.Data, want.Data) || got.FinalRange != want.FinalRange {
			t.Errorf("packet %d: expected %+v, got %+v", i, want, got)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if r.Count() != 3 {
		t.Errorf("expected 3 packets, got %d", r.Count())
	}
}

func TestReadFirstPacketBytes(t *testing.T) {
	// length 2, final range 7, payload AB CD
	raw := []byte{0, 0, 0, 2, 0, 0, 0, 7, 0xAB, 0xCD}

	p, err := NewReader(bytes.NewReader(raw)).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !bytes.Equal(p.Data, []byte{0xAB, 0xCD}) || p.FinalRange != 7 {
		t.Errorf("unexpected packet %+v", p)
	}
}

func TestTruncatedRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"partial header", []byte{0, 0, 0}},
		{"partial payload", []byte{0, 0, 0, 4, 0, 0, 0, 0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.raw)).Next()
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("expected ErrTruncated, got %v", err)
			}
		})
	}
}

func TestPacketTooLarge(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}
	if _, err := NewReader(bytes.NewReader(raw)).Next(); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("expected ErrPacketTooLarge, got %v", err)
	}

	w := NewWriter(io.Discard)
	if err := w.Write(Packet{Data: make([]byte, MaxPacketSize+1)}); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("expected ErrPacketTooLarge, got %v", err)
	}
}
