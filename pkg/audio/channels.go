// ABOUTME: Channel buffer holding one decoded frame
// ABOUTME: Exposes per-channel samples as read-only views into decoder memory
package audio

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a channel index is beyond Size()
var ErrIndexOutOfRange = errors.New("channel index out of range")

// View is a read-only window onto one channel of decoded samples.
//
// A View does not own its samples. It aliases memory owned by the decoder
// session that produced it and is only valid until the next Input, Output,
// Decode or Close call on that session. Reading it afterwards is undefined;
// use Copy or CopyTo to keep samples longer.
type View struct {
	samples []float32
}

// Len returns the number of samples in the view
func (v View) Len() int {
	return len(v.samples)
}

// At returns sample i. It panics if i is out of range, like a slice index.
func (v View) At(i int) float32 {
	return v.samples[i]
}

// CopyTo copies samples into dst and returns the number copied
func (v View) CopyTo(dst []float32) int {
	return copy(dst, v.samples)
}

// Copy returns an owned copy of the samples
func (v View) Copy() []float32 {
	out := make([]float32, len(v.samples))
	copy(out, v.samples)
	return out
}

// ChannelBuffer holds the per-channel views of one decoded frame.
// All views in a buffer have the same length.
type ChannelBuffer struct {
	views []View
}

// Size returns the number of channels currently held
func (b *ChannelBuffer) Size() int {
	return len(b.views)
}

// FrameSize returns the number of samples per channel, 0 when empty
func (b *ChannelBuffer) FrameSize() int {
	if len(b.views) == 0 {
		return 0
	}
	return b.views[0].Len()
}

// Get returns the view for channel index
func (b *ChannelBuffer) Get(index int) (View, error) {
	if index < 0 || index >= len(b.views) {
		return View{}, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, index, len(b.views))
	}
	return b.views[index], nil
}

// Clear resets the buffer to zero channels
func (b *ChannelBuffer) Clear() {
	for i := range b.views {
		b.views[i] = View{}
	}
	b.views = b.views[:0]
}

// Bind points the buffer at decoder-owned planes, one per channel.
// Decoders call this after a successful decode; it does not copy.
func (b *ChannelBuffer) Bind(planes [][]float32) {
	b.Clear()
	for _, p := range planes {
		b.views = append(b.views, View{samples: p})
	}
}

// Interleave appends the frame to dst in interleaved order and returns it
func (b *ChannelBuffer) Interleave(dst []float32) []float32 {
	frames := b.FrameSize()
	for i := 0; i < frames; i++ {
		for _, v := range b.views {
			dst = append(dst, v.samples[i])
		}
	}
	return dst
}
