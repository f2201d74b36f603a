// ABOUTME: Audio type definitions
// ABOUTME: Defines session formats and sample conversion helpers
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes the fixed parameters of one decoder session
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int // 0 for codecs that decode straight to float
}

// String renders the format the way logs print it
func (f Format) String() string {
	if f.BitDepth > 0 {
		return fmt.Sprintf("%s %dHz/%dbit/%dch", f.Codec, f.SampleRate, f.BitDepth, f.Channels)
	}
	return fmt.Sprintf("%s %dHz/%dch", f.Codec, f.SampleRate, f.Channels)
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// FloatFromInt scales a signed integer sample of the given bit depth into [-1, 1)
func FloatFromInt(sample int32, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		return 0
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// FloatToInt16 converts a float sample to int16 with clipping
func FloatToInt16(f float32) int16 {
	scaled := float64(f) * 32768.0
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}
