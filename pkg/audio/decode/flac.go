// ABOUTME: FLAC codec engine
// ABOUTME: Decodes one FLAC frame per packet to float32 samples
package decode

import (
	"bytes"
	"fmt"

	"github.com/Sendspin/packetdec/pkg/audio"
	"github.com/mewkiz/flac/frame"
)

// flacDefaultBitDepth applies when a frame header defers to STREAMINFO
const flacDefaultBitDepth = 16

type flacCodec struct {
	channels   int
	sampleRate int
	depth      int // of the last decoded frame
}

// NewFLAC creates an engine for raw FLAC frames, one frame per packet
func NewFLAC(channels, sampleRate int) (Engine, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, err
	}
	if channels > 8 {
		return nil, fmt.Errorf("flac supports at most 8 channels, got %d", channels)
	}
	return newEngine(&flacCodec{channels: channels, sampleRate: sampleRate}, channels, 0), nil
}

func (c *flacCodec) decode(packet []byte, dst []float32) ([]float32, error) {
	f, err := frame.Parse(bytes.NewReader(packet))
	if err != nil {
		return nil, fmt.Errorf("flac frame parse failed: %w", err)
	}

	if got := f.Channels.Count(); got != c.channels {
		return nil, fmt.Errorf("flac frame has %d channels, session has %d", got, c.channels)
	}
	if f.SampleRate != 0 && int(f.SampleRate) != c.sampleRate {
		return nil, fmt.Errorf("flac frame is %dHz, session is %dHz", f.SampleRate, c.sampleRate)
	}

	bitDepth := int(f.BitsPerSample)
	if bitDepth == 0 {
		bitDepth = flacDefaultBitDepth
	}

	c.depth = bitDepth

	frames := int(f.BlockSize)
	for _, sub := range f.Subframes {
		if len(sub.Samples) < frames {
			return nil, fmt.Errorf("flac subframe has %d samples, block size is %d", len(sub.Samples), frames)
		}
	}

	for i := 0; i < frames; i++ {
		for _, sub := range f.Subframes {
			dst = append(dst, audio.FloatFromInt(sub.Samples[i], bitDepth))
		}
	}
	return dst, nil
}

func (c *flacCodec) sampleDepth() int {
	return c.depth
}

func (c *flacCodec) close() error {
	return nil
}
