// ABOUTME: Opus codec engine
// ABOUTME: Decodes Opus packets to float32 samples through libopus
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// opusMaxFrameMs is the longest duration a single Opus packet can carry
const opusMaxFrameMs = 120

type opusCodec struct {
	decoder  *opus.Decoder
	channels int
}

// NewOpus creates an Opus engine. libopus accepts 1 or 2 channels at
// 8000, 12000, 16000, 24000 or 48000 Hz.
func NewOpus(channels, sampleRate int) (Engine, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, err
	}

	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	maxFrame := opusMaxFrameMs * sampleRate / 1000
	return newEngine(&opusCodec{decoder: dec, channels: channels}, channels, maxFrame*channels), nil
}

func (c *opusCodec) decode(packet []byte, dst []float32) ([]float32, error) {
	pcm := dst[:cap(dst)]

	n, err := c.decoder.DecodeFloat32(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}
	return pcm[:n*c.channels], nil
}

// close drops the decoder; its state lives in Go memory
func (c *opusCodec) close() error {
	c.decoder = nil
	return nil
}
