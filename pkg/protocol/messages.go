// ABOUTME: Decode protocol message type definitions
// ABOUTME: Defines JSON control messages and the binary request and frame layouts
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Sendspin/packetdec/pkg/audio"
)

const (
	// ProtocolVersion is the version of the decode protocol we implement
	ProtocolVersion = 1

	// Request op codes, first byte of a binary client message
	OpDecode byte = 1
	OpInput  byte = 2
	OpOutput byte = 3

	// FrameMessageType is the first byte of a binary server frame
	FrameMessageType byte = 0x10

	// FrameHeaderSize is type + seq + channels + frame size
	FrameHeaderSize = 1 + 4 + 2 + 4
)

// Message type names
const (
	TypeSessionOpen   = "session/open"
	TypeSessionOpened = "session/opened"
	TypeSessionError  = "session/error"
	TypeSessionClose  = "session/close"
	TypeDecodeFailure = "decode/failure"
	TypeOutputEmpty   = "output/empty"
)

// Session error kinds
const (
	ErrorKindInitialization = "initialization"
	ErrorKindProtocol       = "protocol"
)

var (
	// ErrMalformed is returned for binary messages that do not parse
	ErrMalformed = errors.New("malformed message")
)

// Message is the top-level wrapper for all JSON messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SessionOpen asks the server to create a decoder session
type SessionOpen struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	ClientName string `json:"client_name,omitempty"`
	Version    int    `json:"version"`
}

// SessionOpened confirms the session
type SessionOpened struct {
	SessionID  string `json:"session_id"`
	ServerName string `json:"server_name"`
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
}

// SessionError reports a rejected session or a protocol violation
type SessionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DecodeFailure reports that request seq produced no frame
type DecodeFailure struct {
	Seq     uint32 `json:"seq"`
	Message string `json:"message"`
}

// OutputEmpty reports that request seq found no queued frame
type OutputEmpty struct {
	Seq uint32 `json:"seq"`
}

// Frame is one decoded frame owned by the receiver
type Frame struct {
	Seq      uint32
	Channels [][]float32
}

// FrameSize returns the number of samples per channel
func (f Frame) FrameSize() int {
	if len(f.Channels) == 0 {
		return 0
	}
	return len(f.Channels[0])
}

// DecodePayload converts a generic payload into its typed struct
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", msg.Type, err)
	}
	return nil
}

// EncodeRequest builds a binary request
func EncodeRequest(op byte, packet []byte) []byte {
	msg := make([]byte, 1+len(packet))
	msg[0] = op
	copy(msg[1:], packet)
	return msg
}

// ParseRequest splits a binary request into op and packet.
// The packet aliases data.
func ParseRequest(data []byte) (byte, []byte, error) {
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("%w: empty request", ErrMalformed)
	}

	op := data[0]
	switch op {
	case OpDecode, OpInput, OpOutput:
		return op, data[1:], nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown op %d", ErrMalformed, op)
	}
}

// EncodeFrame serializes a decoded frame as planar float32 little-endian.
// The buffer is read immediately, so it may be reused afterwards.
func EncodeFrame(seq uint32, buf *audio.ChannelBuffer) []byte {
	channels := buf.Size()
	frameSize := buf.FrameSize()

	msg := make([]byte, FrameHeaderSize+channels*frameSize*4)
	msg[0] = FrameMessageType
	binary.BigEndian.PutUint32(msg[1:5], seq)
	binary.BigEndian.PutUint16(msg[5:7], uint16(channels))
	binary.BigEndian.PutUint32(msg[7:11], uint32(frameSize))

	off := FrameHeaderSize
	for ch := 0; ch < channels; ch++ {
		v, _ := buf.Get(ch)
		for i := 0; i < frameSize; i++ {
			binary.LittleEndian.PutUint32(msg[off:], math.Float32bits(v.At(i)))
			off += 4
		}
	}
	return msg
}

// DecodeFrame parses a binary server frame
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderSize {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes", ErrMalformed, len(data))
	}
	if data[0] != FrameMessageType {
		return Frame{}, fmt.Errorf("%w: binary message type %d", ErrMalformed, data[0])
	}

	seq := binary.BigEndian.Uint32(data[1:5])
	channels := int(binary.BigEndian.Uint16(data[5:7]))
	frameSize := int(binary.BigEndian.Uint32(data[7:11]))

	body := data[FrameHeaderSize:]
	if len(body) != channels*frameSize*4 {
		return Frame{}, fmt.Errorf("%w: %d body bytes for %dx%d samples",
			ErrMalformed, len(body), channels, frameSize)
	}

	f := Frame{Seq: seq, Channels: make([][]float32, channels)}
	off := 0
	for ch := range f.Channels {
		samples := make([]float32, frameSize)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
			off += 4
		}
		f.Channels[ch] = samples
	}
	return f, nil
}
