// ABOUTME: WebSocket decode server
// ABOUTME: Opens a decoder session per connection and answers decode requests in order
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/Sendspin/packetdec/internal/discovery"
	"github.com/Sendspin/packetdec/pkg/audio"
	"github.com/Sendspin/packetdec/pkg/audio/decode"
	"github.com/Sendspin/packetdec/pkg/packetfile"
	"github.com/Sendspin/packetdec/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPort is the port decode servers listen on
	DefaultPort = 8937

	// DefaultName identifies the server when none is configured
	DefaultName = "packetdec server"

	writeDeadline = 10 * time.Second
	openTimeout   = 10 * time.Second
)

// ServerConfig configures a decode server
type ServerConfig struct {
	// Port to listen on (default: 8937)
	Port int

	// Name of the server for identification
	Name string

	// Registry to open sessions from (default: decode.NewRegistry())
	Registry *decode.Registry

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// MaxPacketSize bounds a single packet (default: packetfile.MaxPacketSize)
	MaxPacketSize int

	// Debug enables per-request logging
	Debug bool
}

// Server hosts decoder sessions over WebSocket
type Server struct {
	config   ServerConfig
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	conns   map[string]*conn
	connsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
}

// conn is one connection and the session it owns
type conn struct {
	ID     string
	Client string
	Conn   *websocket.Conn
	Opened time.Time

	session *decode.Session
	seq     uint32

	// guards session calls against concurrent Sessions() reads
	mu sync.Mutex
}

// SessionInfo describes a live session
type SessionInfo struct {
	ID         string
	Client     string
	Codec      string
	Channels   int
	SampleRate int
	Pending    int
	Stats      decode.Stats
	Opened     time.Time
}

// NewServer creates a decode server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = DefaultName
	}
	if config.Registry == nil {
		config.Registry = decode.NewRegistry()
	}
	if config.MaxPacketSize == 0 {
		config.MaxPacketSize = packetfile.MaxPacketSize
	}
	if config.MaxPacketSize < 0 {
		return nil, fmt.Errorf("invalid max packet size %d", config.MaxPacketSize)
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local network deployments accept all origins
				return true
			},
		},
		conns:    make(map[string]*conn),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)

	return s, nil
}

// Name returns the configured server name
func (s *Server) Name() string {
	return s.config.Name
}

// Port returns the configured listen port
func (s *Server) Port() int {
	return s.config.Port
}

// Handler returns the HTTP handler serving the decode endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)
	log.Printf("Codecs: %v", s.config.Registry.Codecs())

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.Path,
			Codecs:      s.config.Registry.Codecs(),
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		if s.mdnsManager != nil {
			s.mdnsManager.Stop()
		}
		return err
	}

	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("Server stopped cleanly")
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// shutdown refuses new sessions and closes the live ones. Hijacked
// WebSocket connections are not closed by http.Server.Shutdown.
func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	s.connsMu.RLock()
	for _, c := range s.conns {
		c.Conn.Close()
	}
	s.connsMu.RUnlock()
}

// Sessions returns the live sessions, oldest first
func (s *Server) Sessions() []SessionInfo {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()

	sessions := make([]SessionInfo, 0, len(s.conns))
	for _, c := range s.conns {
		c.mu.Lock()
		format := c.session.Format()
		sessions = append(sessions, SessionInfo{
			ID:         c.ID,
			Client:     c.Client,
			Codec:      format.Codec,
			Channels:   format.Channels,
			SampleRate: format.SampleRate,
			Pending:    c.session.Pending(),
			Stats:      c.session.Stats(),
			Opened:     c.Opened,
		})
		c.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Opened.Before(sessions[j].Opened)
	})
	return sessions
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(ws, r.RemoteAddr)
}

// handleConnection opens the session and serves requests until the client leaves
func (s *Server) handleConnection(ws *websocket.Conn, remote string) {
	defer ws.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	// One op byte on top of the largest packet
	ws.SetReadLimit(int64(s.config.MaxPacketSize) + 1)

	c, err := s.openSession(ws, remote)
	if err != nil {
		log.Printf("Session open failed for %s: %v", remote, err)
		return
	}

	defer func() {
		s.removeConn(c)
		log.Printf("Session closed: %s (%s)", c.ID, c.Client)
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			if err := s.handleRequest(c, data); err != nil {
				log.Printf("Error replying to %s: %v", c.ID, err)
				return
			}
			continue
		}

		if done := s.handleControl(c, data); done {
			return
		}
	}
}

// openSession reads session/open and creates the session it asks for
func (s *Server) openSession(ws *websocket.Conn, remote string) (*conn, error) {
	ws.SetReadDeadline(time.Now().Add(openTimeout))
	messageType, data, err := ws.ReadMessage()
	ws.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", protocol.TypeSessionOpen, err)
	}

	var msg protocol.Message
	if messageType != websocket.TextMessage || json.Unmarshal(data, &msg) != nil || msg.Type != protocol.TypeSessionOpen {
		s.rejectSession(ws, protocol.ErrorKindProtocol, "expected "+protocol.TypeSessionOpen)
		return nil, fmt.Errorf("expected %s", protocol.TypeSessionOpen)
	}

	var req protocol.SessionOpen
	if err := protocol.DecodePayload(msg, &req); err != nil {
		s.rejectSession(ws, protocol.ErrorKindProtocol, err.Error())
		return nil, err
	}

	session, err := s.config.Registry.Open(req.Codec, req.Channels, req.SampleRate)
	if err != nil {
		s.rejectSession(ws, protocol.ErrorKindInitialization, err.Error())
		return nil, err
	}

	client := remote
	if req.ClientName != "" {
		client = req.ClientName
	}

	c := &conn{
		ID:      uuid.New().String(),
		Client:  client,
		Conn:    ws,
		Opened:  time.Now(),
		session: session,
	}

	s.connsMu.Lock()
	s.conns[c.ID] = c
	s.connsMu.Unlock()

	opened := protocol.SessionOpened{
		SessionID:  c.ID,
		ServerName: s.config.Name,
		Codec:      req.Codec,
		Channels:   session.Channels(),
		SampleRate: session.SampleRate(),
	}
	if err := s.sendMessage(c.Conn, protocol.TypeSessionOpened, opened); err != nil {
		s.removeConn(c)
		return nil, fmt.Errorf("error sending %s: %w", protocol.TypeSessionOpened, err)
	}

	log.Printf("Session opened: %s for %s (%s)", c.ID, c.Client, session.Format())
	return c, nil
}

// rejectSession tells the client why no session was opened
func (s *Server) rejectSession(ws *websocket.Conn, kind, message string) {
	if err := s.sendMessage(ws, protocol.TypeSessionError, protocol.SessionError{
		Kind:    kind,
		Message: message,
	}); err != nil {
		log.Printf("Error sending %s: %v", protocol.TypeSessionError, err)
	}
}

// handleRequest runs one binary request against the session and replies
func (s *Server) handleRequest(c *conn, data []byte) error {
	c.seq++
	seq := c.seq

	op, packet, err := protocol.ParseRequest(data)
	if err != nil {
		return s.sendFailure(c, seq, err)
	}

	if s.config.Debug {
		log.Printf("Request %d on %s: op=%d, %d bytes", seq, c.ID, op, len(packet))
	}

	switch op {
	case protocol.OpDecode:
		c.mu.Lock()
		buf, err := c.session.Decode(packet)
		reply := frameOrNil(seq, buf, err)
		c.mu.Unlock()
		if err != nil {
			return s.sendFailure(c, seq, err)
		}
		return s.sendBinary(c.Conn, reply)

	case protocol.OpInput:
		c.mu.Lock()
		err := c.session.Input(packet)
		c.mu.Unlock()
		if err != nil {
			log.Printf("Input %d on %s failed: %v", seq, c.ID, err)
		}
		return nil

	default:
		c.mu.Lock()
		buf, ok, err := c.session.Output()
		var reply []byte
		if ok {
			reply = frameOrNil(seq, buf, err)
		}
		c.mu.Unlock()

		switch {
		case err != nil:
			return s.sendFailure(c, seq, err)
		case !ok:
			return s.sendMessage(c.Conn, protocol.TypeOutputEmpty, protocol.OutputEmpty{Seq: seq})
		default:
			return s.sendBinary(c.Conn, reply)
		}
	}
}

// frameOrNil copies a decoded frame into its reply while the session lock is held
func frameOrNil(seq uint32, buf *audio.ChannelBuffer, err error) []byte {
	if err != nil || buf == nil {
		return nil
	}
	return protocol.EncodeFrame(seq, buf)
}

// handleControl processes a text message; it reports whether the client is done
func (s *Server) handleControl(c *conn, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return false
	}

	switch msg.Type {
	case protocol.TypeSessionClose:
		log.Printf("Client closed session %s", c.ID)
		return true
	default:
		if s.config.Debug {
			log.Printf("Unknown message type: %s", msg.Type)
		}
		return false
	}
}

// sendFailure reports a request that produced no frame
func (s *Server) sendFailure(c *conn, seq uint32, err error) error {
	if s.config.Debug {
		log.Printf("Request %d on %s failed: %v", seq, c.ID, err)
	}
	return s.sendMessage(c.Conn, protocol.TypeDecodeFailure, protocol.DecodeFailure{
		Seq:     seq,
		Message: err.Error(),
	})
}

// sendMessage writes a JSON control message
func (s *Server) sendMessage(ws *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// sendBinary writes a binary frame
func (s *Server) sendBinary(ws *websocket.Conn, data []byte) error {
	ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return ws.WriteMessage(websocket.BinaryMessage, data)
}

// removeConn unregisters a connection and closes its session
func (s *Server) removeConn(c *conn) {
	s.connsMu.Lock()
	delete(s.conns, c.ID)
	s.connsMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.session.Close(); err != nil && !errors.Is(err, decode.ErrClosed) {
		log.Printf("Error closing session %s: %v", c.ID, err)
	}
}
