// ABOUTME: PCM codec engine
// ABOUTME: Decodes interleaved little-endian 16-bit and 24-bit PCM packets to float32
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Sendspin/packetdec/pkg/audio"
)

type pcmCodec struct {
	channels int
	bitDepth int
}

// NewPCM16 creates an engine for 16-bit PCM packets
func NewPCM16(channels, sampleRate int) (Engine, error) {
	return newPCM(channels, sampleRate, 16)
}

// NewPCM24 creates an engine for packed 24-bit PCM packets
func NewPCM24(channels, sampleRate int) (Engine, error) {
	return newPCM(channels, sampleRate, 24)
}

func newPCM(channels, sampleRate, bitDepth int) (Engine, error) {
	if err := validateParams(channels, sampleRate); err != nil {
		return nil, err
	}
	return newEngine(&pcmCodec{channels: channels, bitDepth: bitDepth}, channels, 0), nil
}

func (c *pcmCodec) decode(packet []byte, dst []float32) ([]float32, error) {
	frameBytes := c.bitDepth / 8 * c.channels
	if len(packet)%frameBytes != 0 {
		return nil, fmt.Errorf("pcm packet of %d bytes is not a whole number of %d-byte frames",
			len(packet), frameBytes)
	}

	if c.bitDepth == 24 {
		// 24-bit PCM: 3 bytes per sample
		for i := 0; i+3 <= len(packet); i += 3 {
			b := [3]byte{packet[i], packet[i+1], packet[i+2]}
			dst = append(dst, audio.FloatFromInt(audio.SampleFrom24Bit(b), 24))
		}
		return dst, nil
	}

	for i := 0; i+2 <= len(packet); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(packet[i:]))
		dst = append(dst, audio.FloatFromInt(int32(sample), 16))
	}
	return dst, nil
}

func (c *pcmCodec) sampleDepth() int {
	return c.bitDepth
}

func (c *pcmCodec) close() error {
	return nil
}
