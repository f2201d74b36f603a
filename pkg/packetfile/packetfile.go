// ABOUTME: Length-prefixed packet reader and writer
// ABOUTME: Frames packets as length, final range and payload
package packetfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the per-record header: length + final range
	HeaderSize = 8

	// MaxPacketSize bounds a single payload; no supported codec comes close
	MaxPacketSize = 1 << 20
)

var (
	// ErrTruncated is returned when a record ends early
	ErrTruncated = errors.New("truncated packet record")

	// ErrPacketTooLarge is returned for payloads above MaxPacketSize
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
)

// Packet is one encoded packet and its encoder final range
type Packet struct {
	Data       []byte
	FinalRange uint32
}

// Reader reads packets from a stream
type Reader struct {
	r      *bufio.Reader
	header [HeaderSize]byte
	count  int
}

// NewReader creates a packet reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next packet, or io.EOF at a clean end of stream
func (r *Reader) Next() (Packet, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	if err == io.EOF {
		return Packet{}, io.EOF
	}
	if err != nil {
		return Packet{}, fmt.Errorf("%w: header of packet %d has %d bytes", ErrTruncated, r.count, n)
	}

	size := binary.BigEndian.Uint32(r.header[0:4])
	if size > MaxPacketSize {
		return Packet{}, fmt.Errorf("%w: packet %d is %d bytes", ErrPacketTooLarge, r.count, size)
	}

	p := Packet{
		Data:       make([]byte, size),
		FinalRange: binary.BigEndian.Uint32(r.header[4:8]),
	}
	if _, err := io.ReadFull(r.r, p.Data); err != nil {
		return Packet{}, fmt.Errorf("%w: payload of packet %d: %v", ErrTruncated, r.count, err)
	}

	r.count++
	return p, nil
}

// Count returns the number of packets read so far
func (r *Reader) Count() int {
	return r.count
}

// Writer writes packets to a stream
type Writer struct {
	w io.Writer
}

// NewWriter creates a packet writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one packet record
func (w *Writer) Write(p Packet) error {
	if len(p.Data) > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(p.Data))
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(p.Data)))
	binary.BigEndian.PutUint32(header[4:8], p.FinalRange)

	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write packet header: %w", err)
	}
	if _, err := w.w.Write(p.Data); err != nil {
		return fmt.Errorf("failed to write packet payload: %w", err)
	}
	return nil
}
