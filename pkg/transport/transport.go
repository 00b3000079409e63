// Package transport provides the telephony-side connection adapters.
//
// A Transport delivers exactly one identity handshake followed by raw,
// fixed-size audio frames, and accepts frames plus an out-of-band hangup
// request in the other direction. The session layer is transport-agnostic:
// the TCP proxy variant, the WebSocket variant, and the direct capture
// variant all expose the same interface.
//
// Wire handshake (one delimited line, before any audio):
//
//	SESSION:<session-id>:CALLER:<caller-id>\n
//
// The caller id may be empty. Optional trailing key:value pairs (sample
// rate, channel count, format) are tolerated and ignored.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voicebridge-ai/voicebridge/pkg/audio"
)

// ErrBadHandshake reports a missing or malformed identity record.
var ErrBadHandshake = errors.New("transport: malformed handshake")

// ErrClosed reports I/O on a closed transport.
var ErrClosed = errors.New("transport: closed")

const handshakePrefix = "SESSION"

// Handshake is the session identity record delivered before any audio.
type Handshake struct {
	SessionID string
	CallerID  string // may be empty when unavailable
}

// ParseHandshake parses one handshake line (without the trailing newline).
func ParseHandshake(line string) (Handshake, error) {
	line = strings.TrimRight(line, "\r")
	parts := strings.Split(line, ":")
	if len(parts) < 4 || parts[0] != handshakePrefix {
		return Handshake{}, fmt.Errorf("%w: %q", ErrBadHandshake, line)
	}
	if parts[1] == "" {
		return Handshake{}, fmt.Errorf("%w: missing session id", ErrBadHandshake)
	}
	if parts[2] != "CALLER" {
		return Handshake{}, fmt.Errorf("%w: missing CALLER segment", ErrBadHandshake)
	}
	return Handshake{SessionID: parts[1], CallerID: parts[3]}, nil
}

// Line renders the handshake in wire format, including the newline.
func (h Handshake) Line() string {
	return fmt.Sprintf("%s:%s:CALLER:%s\n", handshakePrefix, h.SessionID, h.CallerID)
}

// Transport is one telephony-side connection carrying a single call.
//
// Implementations must make Close idempotent and safe to call concurrently
// with a blocked ReadFrame, which then returns an error: closing the
// transport is how the session cancels its inbound pump.
type Transport interface {
	// Handshake reads and parses the identity record. It must be called
	// exactly once, before ReadFrame.
	Handshake(ctx context.Context) (Handshake, error)

	// ReadFrame returns the next audio frame in the transport's native
	// encoding. Frames are fixed-size; a short read at stream end is an
	// error. Returns io.EOF-wrapped errors on normal disconnect.
	ReadFrame(ctx context.Context) ([]byte, error)

	// WriteFrame sends one audio frame toward the caller.
	WriteFrame(frame []byte) error

	// SendHangup asks the telephony side to drop the call. It does not
	// close the transport.
	SendHangup() error

	// Encoding reports the sample format this transport carries.
	Encoding() audio.Encoding

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string

	// Close releases the connection. Idempotent.
	Close() error
}
