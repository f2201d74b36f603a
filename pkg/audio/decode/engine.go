// ABOUTME: Codec engine interface and the shared engine core
// ABOUTME: Holds the decode queue, interleaved scratch and reusable channel planes
package decode

import "fmt"

// Engine is one exclusively owned codec instance.
// Implementations are not safe for concurrent use.
type Engine interface {
	// Decode decodes one packet into engine-resident planes and returns
	// the number of samples per channel. The engine must not keep packet.
	Decode(packet []byte) (int, error)

	// Enqueue appends a packet to the engine's decode queue.
	// The engine copies whatever it keeps.
	Enqueue(packet []byte) error

	// Dequeue decodes the next queued packet. ok is false when the
	// queue is empty; a non-nil error means the packet was consumed.
	Dequeue() (n int, ok bool, err error)

	// Plane returns the samples of channel ch from the last decode.
	// The slice is overwritten by the next Decode or Dequeue.
	Plane(ch int) []float32

	// Close releases the codec
	Close() error
}

// Factory creates an engine for fixed channels and sample rate
type Factory func(channels, sampleRate int) (Engine, error)

// codec is the format-specific part of an engine
type codec interface {
	// decode appends one packet's interleaved samples to dst and returns it
	decode(packet []byte, dst []float32) ([]float32, error)
	close() error
}

// depthCodec is implemented by codecs that decode integer samples
type depthCodec interface {
	sampleDepth() int
}

// maxChannels bounds the channel count of any engine
const maxChannels = 255

// engine implements Engine on top of a codec
type engine struct {
	codec    codec
	channels int
	scratch  []float32
	planes   [][]float32
	queue    [][]byte
	closed   bool
}

func newEngine(c codec, channels, scratchSize int) *engine {
	return &engine{
		codec:    c,
		channels: channels,
		scratch:  make([]float32, 0, scratchSize),
		planes:   make([][]float32, channels),
	}
}

func (e *engine) Decode(packet []byte) (int, error) {
	if e.closed {
		return 0, errEngineClosed
	}
	if len(packet) == 0 {
		return 0, errEmptyPacket
	}

	out, err := e.codec.decode(packet, e.scratch[:0])
	if err != nil {
		return 0, err
	}
	if cap(out) > cap(e.scratch) {
		e.scratch = out[:0]
	}

	if len(out)%e.channels != 0 {
		return 0, fmt.Errorf("codec produced %d samples for %d channels", len(out), e.channels)
	}

	frames := len(out) / e.channels
	e.deinterleave(out, frames)
	return frames, nil
}

// deinterleave splits interleaved samples into the planes, resizing them
// in place so the previous frame's memory is reused
func (e *engine) deinterleave(interleaved []float32, frames int) {
	for ch := range e.planes {
		if cap(e.planes[ch]) < frames {
			e.planes[ch] = make([]float32, frames)
		}
		e.planes[ch] = e.planes[ch][:frames]
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < e.channels; ch++ {
			e.planes[ch][i] = interleaved[i*e.channels+ch]
		}
	}
}

func (e *engine) Enqueue(packet []byte) error {
	if e.closed {
		return errEngineClosed
	}

	owned := make([]byte, len(packet))
	copy(owned, packet)
	e.queue = append(e.queue, owned)
	return nil
}

func (e *engine) Dequeue() (int, bool, error) {
	if e.closed {
		return 0, false, errEngineClosed
	}
	if len(e.queue) == 0 {
		return 0, false, nil
	}

	packet := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]

	n, err := e.Decode(packet)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (e *engine) Plane(ch int) []float32 {
	if ch < 0 || ch >= len(e.planes) {
		return nil
	}
	return e.planes[ch]
}

// BitDepth returns the integer sample depth of the source, or 0 when the
// codec decodes straight to float or has not seen a frame yet
func (e *engine) BitDepth() int {
	if d, ok := e.codec.(depthCodec); ok {
		return d.sampleDepth()
	}
	return 0
}

func (e *engine) Close() error {
	if e.closed {
		return errEngineClosed
	}
	e.closed = true
	e.queue = nil
	e.planes = nil
	return e.codec.close()
}

// validateParams rejects parameters no engine can use
func validateParams(channels, sampleRate int) error {
	if channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", channels)
	}
	if channels > maxChannels {
		return fmt.Errorf("too many channels: %d (max %d)", channels, maxChannels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	return nil
}
