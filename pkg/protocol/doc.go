// ABOUTME: Decode wire protocol package
// ABOUTME: Defines protocol messages and WebSocket client for remote decoder sessions
// Package protocol implements the packet decode wire protocol.
//
// A connection carries exactly one decoder session. The client opens it
// with a session/open text message, then sends binary requests (one op
// byte followed by the packet) and receives binary frames or text status
// messages in request order.
//
// Example:
//
//	client, err := protocol.Dial(ctx, "localhost:8937", protocol.SessionOpen{
//	    Codec: "opus", Channels: 2, SampleRate: 48000,
//	})
//	frame, err := client.Decode(packet)
package protocol
