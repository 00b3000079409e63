// tcp.go implements the TCP socket transport variant: a dialer-side audio
// proxy (the FreeSWITCH media module) connects, writes the handshake line,
// then streams raw frames. Control messages back to the proxy are 4-byte
// big-endian length-prefixed JSON payloads interleaved on the same socket.

package transport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

const (
	// maxHandshakeLine bounds the identity record. A connection that sends
	// this much without a newline is streaming audio before its handshake.
	maxHandshakeLine = 512

	defaultHandshakeTimeout = 5 * time.Second
)

// TCPTransport adapts one accepted TCP connection.
type TCPTransport struct {
	conn       net.Conn
	encoding   audio.Encoding
	frameBytes int

	writeMu sync.Mutex
	closed  atomic.Bool

	handshakeDone    bool
	handshakeTimeout time.Duration
}

var _ Transport = (*TCPTransport)(nil)

// NewTCPTransport wraps an accepted connection carrying frames in enc.
func NewTCPTransport(conn net.Conn, enc audio.Encoding) *TCPTransport {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &TCPTransport{
		conn:             conn,
		encoding:         enc,
		frameBytes:       audio.FrameBytes(enc),
		handshakeTimeout: defaultHandshakeTimeout,
	}
}

// Handshake reads the identity line byte-by-byte from the raw stream so no
// audio bytes after the newline are buffered away.
func (t *TCPTransport) Handshake(ctx context.Context) (Handshake, error) {
	if t.handshakeDone {
		return Handshake{}, fmt.Errorf("%w: handshake already read", ErrBadHandshake)
	}
	t.handshakeDone = true

	deadline := time.Now().Add(t.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetReadDeadline(deadline)
	defer t.conn.SetReadDeadline(time.Time{})

	var line []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(t.conn, buf); err != nil {
			return Handshake{}, fmt.Errorf("%w: connection ended during handshake: %v", ErrBadHandshake, err)
		}
		if buf[0] == '\n' {
			break
		}
		line = append(line, buf[0])
		if len(line) > maxHandshakeLine {
			return Handshake{}, fmt.Errorf("%w: no delimiter within %d bytes", ErrBadHandshake, maxHandshakeLine)
		}
	}
	return ParseHandshake(string(line))
}

// ReadFrame blocks until one full frame arrives or the connection ends.
func (t *TCPTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := make([]byte, t.frameBytes)
	if _, err := io.ReadFull(t.conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (t *TCPTransport) WriteFrame(frame []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(frame)
	return err
}

// SendHangup writes a length-prefixed control message asking the proxy to
// drop the call.
func (t *TCPTransport) SendHangup() error {
	if t.closed.Load() {
		return ErrClosed
	}
	payload, err := json.Marshal(map[string]string{"type": "hangup"})
	if err != nil {
		return err
	}
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.conn.Write(prefix); err != nil {
		return err
	}
	_, err = t.conn.Write(payload)
	return err
}

func (t *TCPTransport) Encoding() audio.Encoding { return t.encoding }

func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *TCPTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// TCPServerConfig configures the audio proxy listener.
type TCPServerConfig struct {
	// Addr is the listen address (default ":8085").
	Addr string
	// Encoding of frames on accepted connections (default PCM16).
	Encoding audio.Encoding
}

// TCPServer accepts connections from the telephony-side audio proxy and
// hands each one, wrapped as a Transport, to the accept callback.
type TCPServer struct {
	config   TCPServerConfig
	onAccept func(Transport)
	logger   *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// NewTCPServer creates a server; onAccept is invoked on its own goroutine
// for every accepted connection.
func NewTCPServer(cfg TCPServerConfig, onAccept func(Transport), logger *zap.Logger) *TCPServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8085"
	}
	return &TCPServer{config: cfg, onAccept: onAccept, logger: logger}
}

// Start begins listening and launches the accept loop.
func (s *TCPServer) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.logger.Info("audio transport listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("encoding", s.config.Encoding.String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Error("accept failed", zap.Error(err))
			}
			return
		}
		s.logger.Info("accepted audio connection", zap.String("remote", conn.RemoteAddr().String()))

		// Handler goroutines are deliberately untracked: they block for
		// the life of a call, and draining live calls is the session
		// owner's job, not the listener's.
		tr := NewTCPTransport(conn, s.config.Encoding)
		go s.onAccept(tr)
	}
}

// Close stops accepting and waits for the accept loop to exit. Connections
// already handed to the accept callback stay open; hang their calls up
// through the session owner.
func (s *TCPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}
