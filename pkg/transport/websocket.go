// websocket.go implements the WebSocket transport variant, for telephony
// proxies that reach the gateway across infrastructure where raw TCP is
// awkward. The first text message carries the same handshake line as the
// TCP variant; audio frames travel as binary messages, one frame per
// message; control messages toward the proxy are JSON text messages.

package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

// WSTransport adapts one upgraded WebSocket connection.
type WSTransport struct {
	conn       *websocket.Conn
	encoding   audio.Encoding
	frameBytes int

	// gorilla/websocket requires writes to be serialized.
	writeMu sync.Mutex
	closed  atomic.Bool

	handshakeDone bool
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport wraps an upgraded connection carrying frames in enc.
func NewWSTransport(conn *websocket.Conn, enc audio.Encoding) *WSTransport {
	return &WSTransport{
		conn:       conn,
		encoding:   enc,
		frameBytes: audio.FrameBytes(enc),
	}
}

func (t *WSTransport) Handshake(ctx context.Context) (Handshake, error) {
	if t.handshakeDone {
		return Handshake{}, fmt.Errorf("%w: handshake already read", ErrBadHandshake)
	}
	t.handshakeDone = true

	deadline := time.Now().Add(defaultHandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetReadDeadline(deadline)
	defer t.conn.SetReadDeadline(time.Time{})

	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		return Handshake{}, fmt.Errorf("%w: connection ended during handshake: %v", ErrBadHandshake, err)
	}
	if msgType != websocket.TextMessage {
		// Binary before the identity record means audio before handshake.
		return Handshake{}, fmt.Errorf("%w: audio before handshake", ErrBadHandshake)
	}
	line := string(data)
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return ParseHandshake(line)
}

// ReadFrame returns the next binary message. Trailing text messages (e.g.
// keepalives from the proxy) are skipped.
func (t *WSTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		if t.closed.Load() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if len(data) != t.frameBytes {
			return nil, fmt.Errorf("transport: frame size %d, want %d", len(data), t.frameBytes)
		}
		return data, nil
	}
}

func (t *WSTransport) WriteFrame(frame []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *WSTransport) SendHangup() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hangup"}`))
}

func (t *WSTransport) Encoding() audio.Encoding { return t.encoding }

func (t *WSTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *WSTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// WSServerConfig configures the WebSocket listener.
type WSServerConfig struct {
	// Addr is the HTTP listen address (default ":8086").
	Addr string
	// Path is the WebSocket endpoint path (default "/audio").
	Path string
	// Encoding of frames on accepted connections (default PCM16).
	Encoding audio.Encoding
	// ReadBufferSize / WriteBufferSize for the upgrader (default 1024).
	ReadBufferSize  int
	WriteBufferSize int
}

// WSServer upgrades incoming WebSocket connections and hands each one,
// wrapped as a Transport, to the accept callback.
type WSServer struct {
	config   WSServerConfig
	onAccept func(Transport)
	logger   *zap.Logger

	upgrader websocket.Upgrader
	server   *http.Server
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewWSServer creates a server; onAccept runs on its own goroutine per
// accepted connection.
func NewWSServer(cfg WSServerConfig, onAccept func(Transport), logger *zap.Logger) *WSServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8086"
	}
	if cfg.Path == "" {
		cfg.Path = "/audio"
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = 1024
	}
	return &WSServer{
		config:   cfg,
		onAccept: onAccept,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start begins serving the WebSocket endpoint.
func (s *WSServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	s.server = &http.Server{Addr: s.config.Addr, Handler: mux}

	s.logger.Info("websocket transport listening",
		zap.String("addr", s.config.Addr),
		zap.String("path", s.config.Path))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("websocket server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	s.logger.Info("accepted websocket connection", zap.String("remote", conn.RemoteAddr().String()))
	s.onAccept(NewWSTransport(conn, s.config.Encoding))
}

// Close shuts the HTTP server down.
func (s *WSServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	return err
}
