// ABOUTME: Audio output package for decoded frames
// ABOUTME: Provides Output interface with oto playback and WAV file backends
// Package output sends decoded frames to a device or a file.
//
// Supports oto for cross-platform playback and 16-bit WAV files.
//
// Backends copy samples out of the ChannelBuffer during Write, so the
// buffer may be reused by the next decode as soon as Write returns.
//
// Example:
//
//	out := output.NewWAV("decoded.wav")
//	err := out.Open(48000, 2)
//	err = out.Write(buf)
package output
