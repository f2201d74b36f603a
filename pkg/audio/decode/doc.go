// ABOUTME: Packet decoder sessions over pluggable codec engines
// ABOUTME: Provides Session, Engine, Registry and the built-in Opus, PCM, FLAC, MP3 and Vorbis engines
// Package decode turns encoded audio packets into per-channel float32 frames.
//
// Supports: Opus, PCM (16-bit and 24-bit), FLAC frames, MP3, Vorbis
//
// A Session is bound to a fixed channel count and sample rate and owns one
// Engine. It offers two modes that share the same lifecycle:
//
//   - Buffered: Input queues packets, Output pops the next decoded frame.
//   - Synchronous: Decode submits one packet and returns its frame.
//
// The returned ChannelBuffer is owned by the session. Its views are valid
// only until the next Input, Output, Decode or Close call on the same session.
// A Session must be used by one caller at a time.
//
// Example:
//
//	registry := decode.NewRegistry()
//	session, err := registry.Open("opus", 2, 48000)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	buf, err := session.Decode(packet)
package decode
