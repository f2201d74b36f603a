// ABOUTME: MP3 codec engine
// ABOUTME: Streams MPEG audio frames through one decoder so the bit reservoir spans packets
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sendspin/packetdec/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs 16-bit stereo
const (
	mp3Channels = 2
	mp3Depth    = 16
)

// mp3ChunkSize is one MPEG-1 Layer III frame of 16-bit stereo output
const mp3ChunkSize = 1152 * mp3Channels * 2

// packetFeed serves the current packet to the long-lived decoder
type packetFeed struct {
	data []byte
}

func (f *packetFeed) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

type mp3Codec struct {
	sampleRate int
	feed       packetFeed
	decoder    *mp3.Decoder
	chunk      []byte
	mismatch   error
}

// NewMP3 creates an MP3 engine. Every packet must hold whole MPEG frames;
// frames may borrow main data from earlier packets of the same session.
func NewMP3(channels, sampleRate int) (Engine, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, err
	}
	if channels != mp3Channels {
		return nil, fmt.Errorf("mp3 decoder always produces stereo, got %d channels", channels)
	}
	c := &mp3Codec{sampleRate: sampleRate, chunk: make([]byte, mp3ChunkSize)}
	return newEngine(c, channels, 0), nil
}

func (c *mp3Codec) decode(packet []byte, dst []float32) ([]float32, error) {
	if c.mismatch != nil {
		return nil, c.mismatch
	}

	c.feed.data = packet
	defer func() { c.feed.data = nil }()

	if c.decoder == nil {
		dec, err := mp3.NewDecoder(&c.feed)
		if err != nil {
			return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
		}
		if dec.SampleRate() != c.sampleRate {
			c.mismatch = fmt.Errorf("mp3 stream is %dHz, session is %dHz", dec.SampleRate(), c.sampleRate)
			return nil, c.mismatch
		}
		c.decoder = dec
	}

	// One Read drains exactly one frame of output. Stopping once the feed is
	// empty keeps the decoder from hitting io.EOF, which would drop the
	// previous frame and with it the bit reservoir.
	start := len(dst)
	for {
		n, err := c.decoder.Read(c.chunk)
		for i := 0; i+2 <= n; i += 2 {
			sample := int16(binary.LittleEndian.Uint16(c.chunk[i:]))
			dst = append(dst, audio.FloatFromInt(int32(sample), mp3Depth))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mp3 decode error: %w", err)
		}
		if len(c.feed.data) == 0 {
			break
		}
	}

	if len(dst) == start {
		return nil, fmt.Errorf("mp3 packet produced no samples")
	}
	return dst, nil
}

func (c *mp3Codec) sampleDepth() int {
	return mp3Depth
}

func (c *mp3Codec) close() error {
	c.decoder = nil
	return nil
}
