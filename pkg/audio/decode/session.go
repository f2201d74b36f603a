// ABOUTME: Decoder session bound to a fixed channel count and sample rate
// ABOUTME: Supports buffered Input/Output and synchronous Decode over one engine
package decode

import (
	"fmt"

	"github.com/Sendspin/packetdec/internal/heap"
	"github.com/Sendspin/packetdec/pkg/audio"
)

// Stats counts what a session has processed
type Stats struct {
	Submitted uint64 // packets passed to Input or Decode
	Decoded   uint64 // frames returned by Output or Decode
	Failed    uint64 // packets that produced ErrDecodeFailure
}

// Session is a stateful decoder for one stream.
//
// Calls must be issued in order by a single caller. The *audio.ChannelBuffer
// returned by Output and Decode is the same session-owned object every time;
// it is cleared at the start of each Input, Output, Decode and Close, and the
// samples behind its views may be overwritten by the next decode. Using a
// Session after Close returns ErrClosed; holding views across calls is
// undefined.
type Session struct {
	codec      string
	channels   int
	sampleRate int
	engine     Engine
	heap       *heap.Heap
	buf        audio.ChannelBuffer
	planes     [][]float32
	pending    int
	stats      Stats
	closed     bool
}

// NewSession creates a session with an engine from factory
func NewSession(factory Factory, channels, sampleRate int) (*Session, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: no engine factory", ErrInitialization)
	}

	eng, err := factory(channels, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}
	if eng == nil {
		return nil, fmt.Errorf("%w: factory returned no engine", ErrInitialization)
	}

	return &Session{
		channels:   channels,
		sampleRate: sampleRate,
		engine:     eng,
		heap:       heap.New(),
		planes:     make([][]float32, 0, channels),
	}, nil
}

// Channels returns the fixed channel count
func (s *Session) Channels() int {
	return s.channels
}

// SampleRate returns the fixed sample rate
func (s *Session) SampleRate() int {
	return s.sampleRate
}

// Format describes the session
func (s *Session) Format() audio.Format {
	f := audio.Format{
		Codec:      s.codec,
		SampleRate: s.sampleRate,
		Channels:   s.channels,
	}
	if d, ok := s.engine.(interface{ BitDepth() int }); ok {
		f.BitDepth = d.BitDepth()
	}
	return f
}

// Pending returns the number of queued packets not yet passed to Output
func (s *Session) Pending() int {
	return s.pending
}

// Stats returns the session counters
func (s *Session) Stats() Stats {
	return s.stats
}

// Input queues a packet for a later Output call
func (s *Session) Input(packet []byte) error {
	if s.closed {
		return ErrClosed
	}
	s.buf.Clear()
	s.stats.Submitted++

	if err := s.heap.With(packet, s.engine.Enqueue); err != nil {
		s.stats.Failed++
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	s.pending++
	return nil
}

// Output pops the next decoded frame.
// It returns ok=false with a nil error when nothing is queued, and
// ErrDecodeFailure when the queued packet was corrupt. In both cases the
// session stays usable.
func (s *Session) Output() (*audio.ChannelBuffer, bool, error) {
	if s.closed {
		return nil, false, ErrClosed
	}
	s.buf.Clear()

	if s.pending == 0 {
		return nil, false, nil
	}

	n, ok, err := s.engine.Dequeue()
	if ok || err != nil {
		s.pending--
	}
	if err != nil {
		s.stats.Failed++
		return nil, false, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if !ok {
		return nil, false, nil
	}

	if err := s.bind(n); err != nil {
		return nil, false, err
	}
	return &s.buf, true, nil
}

// Decode submits one packet and returns its decoded frame
func (s *Session) Decode(packet []byte) (*audio.ChannelBuffer, error) {
	if s.closed {
		return nil, ErrClosed
	}
	s.buf.Clear()
	s.stats.Submitted++

	var n int
	err := s.heap.With(packet, func(region []byte) error {
		var err error
		n, err = s.engine.Decode(region)
		return err
	})
	if err != nil {
		s.stats.Failed++
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	if err := s.bind(n); err != nil {
		return nil, err
	}
	return &s.buf, nil
}

// bind exposes the engine planes of the last decode through the buffer
func (s *Session) bind(frames int) error {
	s.planes = s.planes[:0]
	for ch := 0; ch < s.channels; ch++ {
		plane := s.engine.Plane(ch)
		if len(plane) != frames {
			s.stats.Failed++
			return fmt.Errorf("%w: channel %d has %d samples, expected %d",
				ErrDecodeFailure, ch, len(plane), frames)
		}
		s.planes = append(s.planes, plane)
	}

	s.buf.Bind(s.planes)
	s.stats.Decoded++
	return nil
}

// Close releases the engine. A second Close returns ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.buf.Clear()
	s.pending = 0

	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("failed to release engine: %v", err)
	}
	return nil
}
