// Package session drives one phone call end to end: handshake, AI stream
// establishment, the duplex audio pumps, asynchronous tool dispatch, and
// teardown with recording finalization. A Session owns its transport and
// stream; the Manager owns the set of live sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/aistream"
	"github.com/voicebridge-ai/voicebridge/pkg/audio"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
	"github.com/voicebridge-ai/voicebridge/pkg/recording"
	"github.com/voicebridge-ai/voicebridge/pkg/tools"
	"github.com/voicebridge-ai/voicebridge/pkg/trace"
	"github.com/voicebridge-ai/voicebridge/pkg/transport"
)

// Sentinel causes for normal session endings.
var (
	errPeerHungUp  = errors.New("peer disconnected")
	errStreamEnded = errors.New("ai stream ended")
)

// Session is one live call.
type Session struct {
	cfg Config
	tr  transport.Transport

	mu           sync.Mutex
	id           string
	callerID     string
	hangupReason string

	state    atomic.Int32
	queue    *audio.FrameQueue
	rec      *recording.Recorder
	registry *tools.Registry
	stream   aistream.Stream

	hangupOnce sync.Once
	hangupCh   chan struct{}
	done       chan struct{}
	pumpWG     sync.WaitGroup
	toolWG     sync.WaitGroup

	log *zap.Logger
}

// New wraps an accepted transport. The session id is provisional until the
// handshake supplies the real one.
func New(cfg Config, tr transport.Transport) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:      cfg,
		tr:       tr,
		id:       uuid.NewString(),
		queue:    audio.NewFrameQueue(cfg.QueueCapacity),
		hangupCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateCreated))
	s.log = logger.L().With(
		zap.String("component", "session"),
		zap.String("remote", tr.RemoteAddr()),
	)
	return s
}

// ID returns the call session id (provisional before the handshake).
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// CallerID returns the caller's phone number, if the handshake carried one.
func (s *Session) CallerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callerID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Hangup requests termination. The first caller wins; later calls are no-ops.
func (s *Session) Hangup(reason string) {
	s.hangupOnce.Do(func() {
		s.mu.Lock()
		s.hangupReason = reason
		s.mu.Unlock()
		close(s.hangupCh)
	})
}

func (s *Session) setState(to State) {
	for {
		from := State(s.state.Load())
		if !validTransition(from, to) {
			return
		}
		if s.state.CompareAndSwap(int32(from), int32(to)) {
			s.log.Info("session state",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			_, span := trace.InstrumentStateChange(context.Background(), s.ID(), from.String(), to.String())
			span.End()
			return
		}
	}
}

// Run executes the session to completion. It always drives the state machine
// to Closed and closes Done, regardless of how the call ends.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.serve(ctx)

	normal := err == nil ||
		errors.Is(err, errPeerHungUp) ||
		errors.Is(err, errStreamEnded) ||
		errors.Is(err, context.Canceled)
	if normal {
		s.setState(StateTerminating)
	} else {
		s.log.Error("session failed", zap.Error(err))
		_, span := trace.InstrumentSessionError(context.Background(), s.ID(), err)
		span.End()
		s.setState(StateFailed)
	}

	s.teardown(cancel, errors.Is(err, errPeerHungUp))

	s.setState(StateClosed)
	close(s.done)
	s.log.Info("session closed")

	if normal {
		return nil
	}
	return err
}

// serve runs the call until a termination cause arrives: context cancel,
// hangup request, pump error, peer disconnect, or the AI stream ending.
func (s *Session) serve(ctx context.Context) error {
	s.setState(StateHandshaking)

	hs, err := s.tr.Handshake(ctx)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	s.mu.Lock()
	s.id = hs.SessionID
	s.callerID = hs.CallerID
	s.mu.Unlock()
	s.log = s.log.With(
		zap.String("session_id", hs.SessionID),
		zap.String("caller_id", hs.CallerID),
	)

	ctx, span := trace.InstrumentSessionStart(ctx, hs.SessionID, hs.CallerID, s.tr.Encoding().String())
	defer span.End()

	s.rec = recording.NewRecorder(recording.Config{
		SessionID:    hs.SessionID,
		CallerID:     hs.CallerID,
		MaxDuration:  s.cfg.RecordingMaxDuration,
		InboundGain:  s.cfg.InboundGain,
		OutboundGain: s.cfg.OutboundGain,
		Sink:         s.cfg.RecordingSink,
	})

	s.registry, err = s.cfg.Tools.NewRegistry(s.Hangup)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	stream, err := s.cfg.Dialer.Dial(ctx, aistream.Config{
		SessionID:    hs.SessionID,
		CallerID:     hs.CallerID,
		SystemPrompt: s.cfg.SystemPrompt,
		VoiceID:      s.cfg.VoiceID,
		Tools:        s.registry.Specs(),
	})
	if err != nil {
		return fmt.Errorf("dial ai stream: %w", err)
	}
	s.stream = stream
	if err := stream.StartAudioContent(ctx); err != nil {
		return fmt.Errorf("start audio content: %w", err)
	}

	s.setState(StateActive)
	s.log.Info("session active", zap.String("encoding", s.tr.Encoding().String()))

	errCh := make(chan error, 3)
	s.pumpWG.Add(3)
	go s.inboundPump(ctx, errCh)
	go s.outboundPump(ctx, errCh)
	go s.eventLoop(ctx, errCh)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.hangupCh:
		s.mu.Lock()
		reason := s.hangupReason
		s.mu.Unlock()
		s.log.Info("hangup requested", zap.String("reason", reason))
		return nil
	case err := <-errCh:
		return err
	}
}

// teardown releases all call resources in dependency order and finalizes
// the recording. peerGone suppresses the courtesy hangup message when the
// telephony side already dropped.
func (s *Session) teardown(cancel context.CancelFunc, peerGone bool) {
	if !peerGone {
		if err := s.tr.SendHangup(); err != nil && !errors.Is(err, transport.ErrClosed) {
			s.log.Debug("hangup notify failed", zap.Error(err))
		}
	}

	cancel()
	_ = s.tr.Close()
	if s.stream != nil {
		_ = s.stream.Close()
	}
	s.queue.Close()

	s.pumpWG.Wait()
	s.toolWG.Wait()

	if s.rec != nil {
		fctx, fcancel := context.WithTimeout(context.Background(), s.cfg.FinalizeTimeout)
		defer fcancel()
		loc, err := s.rec.FinishAndUpload(fctx)
		switch {
		case err != nil:
			s.log.Warn("recording finalize failed", zap.Error(err))
		case loc != "":
			_, span := trace.InstrumentRecordingStored(context.Background(), s.ID(), loc)
			span.End()
		}
	}

	if dropped := s.queue.Dropped(); dropped > 0 {
		s.log.Info("playback frames dropped under backpressure", zap.Int("frames", dropped))
	}
}

// inboundPump moves caller audio from the transport into the AI stream,
// transcoding to PCM16 when the wire carries mu-law.
func (s *Session) inboundPump(ctx context.Context, errCh chan<- error) {
	defer s.pumpWG.Done()
	ulaw := s.tr.Encoding() == audio.EncodingULaw

	for {
		frame, err := s.tr.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isDisconnect(err) {
				errCh <- errPeerHungUp
			} else {
				errCh <- fmt.Errorf("read frame: %w", err)
			}
			return
		}

		pcm := frame
		if ulaw {
			pcm = audio.DecodeULawFrame(frame)
		}
		s.rec.RecordInbound(pcm)

		if err := s.stream.SendAudioChunk(ctx, pcm); err != nil {
			if !errors.Is(err, aistream.ErrStreamClosed) && ctx.Err() == nil {
				errCh <- fmt.Errorf("send audio chunk: %w", err)
			}
			return
		}
	}
}

// outboundPump plays queued AI audio toward the caller at a strict one
// frame per 20ms, so the telephony side never has to absorb a burst.
func (s *Session) outboundPump(ctx context.Context, errCh chan<- error) {
	defer s.pumpWG.Done()
	ulaw := s.tr.Encoding() == audio.EncodingULaw

	ticker := time.NewTicker(audio.FrameDurationMs * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pcm, ok := s.queue.Pull(time.Millisecond)
		if !ok {
			continue
		}
		s.rec.RecordOutbound(pcm)

		out := pcm
		if ulaw {
			out = audio.EncodeULawFrame(pcm)
		}
		if err := s.tr.WriteFrame(out); err != nil {
			if ctx.Err() != nil {
				return
			}
			if isDisconnect(err) {
				errCh <- errPeerHungUp
			} else {
				errCh <- fmt.Errorf("write frame: %w", err)
			}
			return
		}
	}
}

// eventLoop consumes AI endpoint events. Tool uses run on their own
// goroutines so a slow tool never stalls audio delivery.
func (s *Session) eventLoop(ctx context.Context, errCh chan<- error) {
	defer s.pumpWG.Done()

	for ev := range s.stream.Events() {
		switch ev.Type {
		case aistream.EventAudioOutput:
			s.queue.Append(ev.Audio)
		case aistream.EventTurnComplete:
			s.queue.FlushTurn()
		case aistream.EventInterrupted:
			if n := s.queue.Clear(); n > 0 {
				s.log.Debug("barge-in, cleared playback queue", zap.Int("frames", n))
			}
		case aistream.EventToolUse:
			s.toolWG.Add(1)
			go s.dispatchTool(ctx, ev)
		case aistream.EventSessionEnded:
			s.log.Info("ai stream ended", zap.String("reason", ev.Reason))
			errCh <- errStreamEnded
			return
		case aistream.EventError:
			errCh <- fmt.Errorf("ai stream: %w", ev.Err)
			return
		}
	}
	errCh <- errStreamEnded
}

func (s *Session) dispatchTool(ctx context.Context, ev aistream.Event) {
	defer s.toolWG.Done()

	tctx, span := trace.InstrumentToolDispatch(ctx, s.ID(), ev.ToolName, ev.ToolUseID)
	defer span.End()

	result := s.registry.Dispatch(tctx, tools.Invocation{
		ToolUseID: ev.ToolUseID,
		Name:      ev.ToolName,
		Input:     ev.ToolInput,
		SessionID: s.ID(),
		CallerID:  s.CallerID(),
	})
	if err := s.stream.SendToolResult(tctx, ev.ToolUseID, result); err != nil &&
		!errors.Is(err, aistream.ErrStreamClosed) {
		s.log.Warn("tool result delivery failed",
			zap.String("tool", ev.ToolName),
			zap.String("tool_use_id", ev.ToolUseID),
			zap.Error(err))
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, transport.ErrClosed)
}
