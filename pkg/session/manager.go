package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/transport"
)

// Manager tracks the live sessions of one server process. It is the accept
// callback target for the transport servers: every accepted transport
// becomes one session, run on the accepting goroutine.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *zap.Logger
}

// NewManager creates a manager whose sessions share cfg.
func NewManager(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg.withDefaults(),
		sessions: make(map[*Session]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		log:      logger.L().With(zap.String("component", "session_manager")),
	}
}

// HandleTransport runs one call to completion. It blocks until the session
// closes, which fits transport servers that grant each accepted connection
// its own goroutine.
func (m *Manager) HandleTransport(tr transport.Transport) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = tr.Close()
		return
	}
	s := New(m.cfg, tr)
	m.sessions[s] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, s)
		m.mu.Unlock()
		m.wg.Done()
	}()

	if err := s.Run(m.ctx); err != nil {
		m.log.Warn("session ended with error",
			zap.String("session_id", s.ID()),
			zap.Error(err))
	}
}

// Find returns the live session with the given call session id.
func (m *Manager) Find(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.sessions {
		if s.ID() == sessionID {
			return s, true
		}
	}
	return nil, false
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown hangs up every live session and waits for all of them to close,
// or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	live := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	m.log.Info("shutting down", zap.Int("live_sessions", len(live)))
	for _, s := range live {
		s.Hangup("server shutting down")
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("session manager: shutdown timed out")
	}
}

// ShutdownTimeout is a convenience wrapper around Shutdown with a deadline.
func (m *Manager) ShutdownTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return m.Shutdown(ctx)
}
