package aistream

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// EchoDialer returns streams that loop caller audio straight back as
// synthesized output. It exercises the full duplex path without a provider
// connection, which makes it the default endpoint for local runs and tests.
type EchoDialer struct {
	// EventBuffer sizes each stream's event channel. Zero means 256.
	EventBuffer int
}

func (d *EchoDialer) Dial(_ context.Context, cfg Config) (Stream, error) {
	buf := d.EventBuffer
	if buf <= 0 {
		buf = 256
	}
	return &echoStream{
		events: make(chan Event, buf),
		log: logger.L().With(
			zap.String("component", "echo_stream"),
			zap.String("session_id", cfg.SessionID),
		),
	}, nil
}

type echoStream struct {
	mu      sync.Mutex
	events  chan Event
	closed  bool
	started bool

	log *zap.Logger
}

func (s *echoStream) StartAudioContent(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.started = true
	return nil
}

func (s *echoStream) SendAudioChunk(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if !s.started || len(pcm) == 0 {
		return nil
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)
	select {
	case s.events <- Event{Type: EventAudioOutput, Audio: out}:
	default:
		// Consumer stalled; dropping the echo beats blocking the inbound pump.
		s.log.Debug("echo event channel full, dropping chunk", zap.Int("bytes", len(out)))
	}
	return nil
}

func (s *echoStream) SendToolResult(_ context.Context, toolUseID string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.log.Debug("tool result received",
		zap.String("tool_use_id", toolUseID),
		zap.Int("result_bytes", len(result)))
	return nil
}

func (s *echoStream) Events() <-chan Event {
	return s.events
}

func (s *echoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}
