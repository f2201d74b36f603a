// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback and file backends
package output

import "github.com/Sendspin/packetdec/pkg/audio"

// Output represents a destination for decoded frames
type Output interface {
	// Open initializes the output for the given format
	Open(sampleRate, channels int) error

	// Write outputs one frame. Samples are copied before returning.
	Write(buf *audio.ChannelBuffer) error

	// Close releases output resources
	Close() error
}
