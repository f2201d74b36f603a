// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, ChannelBuffer and View plus sample conversion functions
// Package audio provides the types shared by decoders and their hosts.
//
// This package defines:
//   - Format: fixed session parameters (codec, sample rate, channels, bit depth)
//   - ChannelBuffer: one decoded frame as per-channel sample views
//   - View: a read-only, non-owning window onto one channel
//
// Views alias decoder memory. They are valid only until the next mutating
// call on the session that produced them; copy samples out to keep them.
//
// Example:
//
//	buf, err := session.Decode(packet)
//	if err != nil {
//	    return err
//	}
//	left, _ := buf.Get(0)
//	samples := left.Copy() // owned, survives the next Decode
package audio
