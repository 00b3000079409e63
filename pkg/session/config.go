package session

import (
	"time"

	"github.com/voicebridge-ai/voicebridge/pkg/aistream"
	"github.com/voicebridge-ai/voicebridge/pkg/recording"
	"github.com/voicebridge-ai/voicebridge/pkg/tools"
)

const (
	defaultFinalizeTimeout = 30 * time.Second
)

// Config carries the shared wiring every session is built from. One Config
// serves all sessions of a Manager; per-call state (recorder, tool registry,
// stream) is derived fresh for each session.
type Config struct {
	// SystemPrompt and VoiceID are passed to the AI endpoint at dial time.
	SystemPrompt string
	VoiceID      string

	// Dialer establishes the AI stream. Nil means the echo loopback.
	Dialer aistream.Dialer

	// Tools builds the per-session tool registry. Nil means the default
	// tool set with a 10s invocation timeout.
	Tools *tools.Factory

	// RecordingSink stores finished call recordings. Nil disables storage.
	RecordingSink recording.Sink

	// RecordingMaxDuration caps stored audio per channel.
	RecordingMaxDuration time.Duration

	// InboundGain and OutboundGain scale recorded samples. Zero means 1.0.
	InboundGain  float64
	OutboundGain float64

	// QueueCapacity bounds outbound playback frames. Zero means the
	// audio package default.
	QueueCapacity int

	// FinalizeTimeout bounds recording upload during teardown. Zero
	// means 30s.
	FinalizeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = &aistream.EchoDialer{}
	}
	if c.Tools == nil {
		c.Tools = &tools.Factory{}
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = defaultFinalizeTimeout
	}
	return c
}
