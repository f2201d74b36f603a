// ABOUTME: Vorbis codec engine
// ABOUTME: Reads the three Vorbis header packets then decodes audio packets to float32
package decode

import (
	"fmt"

	"github.com/jfreymuth/vorbis"
)

type vorbisCodec struct {
	decoder    vorbis.Decoder
	channels   int
	sampleRate int
	mismatch   error
}

// NewVorbis creates a Vorbis engine. The first three packets must be the
// identification, comment and setup headers; they decode to empty frames.
func NewVorbis(channels, sampleRate int) (Engine, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, err
	}
	return newEngine(&vorbisCodec{channels: channels, sampleRate: sampleRate}, channels, 0), nil
}

func (c *vorbisCodec) decode(packet []byte, dst []float32) ([]float32, error) {
	if c.mismatch != nil {
		return nil, c.mismatch
	}

	if !c.decoder.HeadersRead() {
		if err := c.decoder.ReadHeader(packet); err != nil {
			return nil, fmt.Errorf("vorbis header rejected: %w", err)
		}
		if ch := c.decoder.Channels(); ch != 0 && ch != c.channels {
			c.mismatch = fmt.Errorf("vorbis stream has %d channels, session has %d", ch, c.channels)
			return nil, c.mismatch
		}
		if rate := c.decoder.SampleRate(); rate != 0 && rate != c.sampleRate {
			c.mismatch = fmt.Errorf("vorbis stream is %dHz, session is %dHz", rate, c.sampleRate)
			return nil, c.mismatch
		}
		return dst, nil
	}

	out, err := c.decoder.Decode(packet)
	if err != nil {
		return nil, fmt.Errorf("vorbis decode failed: %w", err)
	}
	return append(dst, out...), nil
}

func (c *vorbisCodec) close() error {
	return nil
}
