// ABOUTME: WebSocket client for remote decoder sessions
// ABOUTME: Opens one session per connection and issues requests in order
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Path is the WebSocket endpoint served by decode servers
const Path = "/decode"

var (
	// ErrSessionRejected is returned by Dial when the server refuses the session
	ErrSessionRejected = errors.New("session rejected by server")

	// ErrRemoteDecode is returned when the server could not decode a packet
	ErrRemoteDecode = errors.New("remote decode failed")
)

// Client is one remote decoder session. Calls are serialized.
type Client struct {
	conn    *websocket.Conn
	session SessionOpened
	seq     uint32
	timeout time.Duration
	mu      sync.Mutex
}

// Dial connects to addr and opens a session
func Dial(ctx context.Context, addr string, req SessionOpen) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		timeout: 5 * time.Second,
	}

	if err := c.open(req); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

// open performs the session handshake
func (c *Client) open(req SessionOpen) error {
	if req.Version == 0 {
		req.Version = ProtocolVersion
	}

	if err := c.conn.WriteJSON(Message{Type: TypeSessionOpen, Payload: req}); err != nil {
		return fmt.Errorf("failed to send %s: %w", TypeSessionOpen, err)
	}

	msg, err := c.readJSON()
	if err != nil {
		return fmt.Errorf("failed to read session reply: %w", err)
	}

	switch msg.Type {
	case TypeSessionOpened:
		if err := DecodePayload(msg, &c.session); err != nil {
			return err
		}
		log.Printf("Session opened: %s (%s %dHz/%dch)",
			c.session.SessionID, c.session.Codec, c.session.SampleRate, c.session.Channels)
		return nil
	case TypeSessionError:
		var se SessionError
		if err := DecodePayload(msg, &se); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %s", ErrSessionRejected, se.Kind, se.Message)
	default:
		return fmt.Errorf("expected %s, got %s", TypeSessionOpened, msg.Type)
	}
}

// Session returns the server's confirmation
func (c *Client) Session() SessionOpened {
	return c.session
}

// Decode sends one packet and waits for its frame
func (c *Client) Decode(packet []byte) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq, err := c.send(OpDecode, packet)
	if err != nil {
		return Frame{}, err
	}

	frame, ok, err := c.await(seq)
	if err != nil {
		return Frame{}, err
	}
	if !ok {
		return Frame{}, fmt.Errorf("unexpected empty reply to decode %d", seq)
	}
	return frame, nil
}

// Input queues a packet on the remote session. The server does not reply.
func (c *Client) Input(packet []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.send(OpInput, packet)
	return err
}

// Output pops the next frame; ok is false when nothing is queued
func (c *Client) Output() (Frame, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq, err := c.send(OpOutput, nil)
	if err != nil {
		return Frame{}, false, err
	}
	return c.await(seq)
}

// Close ends the session and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.WriteJSON(Message{Type: TypeSessionClose, Payload: struct{}{}})
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// send writes a binary request and returns its sequence number
func (c *Client) send(op byte, packet []byte) (uint32, error) {
	c.seq++
	if err := c.conn.WriteMessage(websocket.BinaryMessage, EncodeRequest(op, packet)); err != nil {
		return 0, fmt.Errorf("failed to send request %d: %w", c.seq, err)
	}
	return c.seq, nil
}

// await reads the reply to request seq
func (c *Client) await(seq uint32) (Frame, bool, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, false, fmt.Errorf("failed to read reply %d: %w", seq, err)
	}

	if messageType == websocket.BinaryMessage {
		frame, err := DecodeFrame(data)
		if err != nil {
			return Frame{}, false, err
		}
		if frame.Seq != seq {
			return Frame{}, false, fmt.Errorf("reply for request %d, expected %d", frame.Seq, seq)
		}
		return frame, true, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Frame{}, false, fmt.Errorf("failed to parse reply %d: %w", seq, err)
	}

	switch msg.Type {
	case TypeOutputEmpty:
		var empty OutputEmpty
		if err := DecodePayload(msg, &empty); err != nil {
			return Frame{}, false, err
		}
		if empty.Seq != seq {
			return Frame{}, false, fmt.Errorf("reply for request %d, expected %d", empty.Seq, seq)
		}
		return Frame{}, false, nil
	case TypeDecodeFailure:
		var failure DecodeFailure
		if err := DecodePayload(msg, &failure); err != nil {
			return Frame{}, false, err
		}
		if failure.Seq != seq {
			return Frame{}, false, fmt.Errorf("failure for request %d, expected %d", failure.Seq, seq)
		}
		return Frame{}, false, fmt.Errorf("%w: request %d: %s", ErrRemoteDecode, failure.Seq, failure.Message)
	case TypeSessionError:
		var se SessionError
		if err := DecodePayload(msg, &se); err != nil {
			return Frame{}, false, err
		}
		return Frame{}, false, fmt.Errorf("session error: %s: %s", se.Kind, se.Message)
	default:
		return Frame{}, false, fmt.Errorf("unexpected message %s", msg.Type)
	}
}

// readJSON reads one text message with the client timeout
func (c *Client) readJSON() (Message, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg Message
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg, nil
}
