// Package aistream defines the contract between a call session and a
// bidirectional speech AI endpoint. The session pushes caller audio into a
// Stream and consumes asynchronous events (synthesized audio, tool use
// requests, barge-in notifications) from it. Concrete streams adapt a
// provider wire protocol; EchoDialer provides a provider-free loopback.
package aistream

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrStreamClosed is returned by send operations after Close.
var ErrStreamClosed = errors.New("aistream: stream closed")

// EventType discriminates the events a Stream emits.
type EventType int

const (
	// EventAudioOutput carries a chunk of synthesized PCM16 audio.
	EventAudioOutput EventType = iota
	// EventToolUse asks the session to execute a tool and send back a result.
	EventToolUse
	// EventInterrupted signals the caller barged in; queued output is stale.
	EventInterrupted
	// EventTurnComplete signals the model finished speaking a turn.
	EventTurnComplete
	// EventSessionEnded signals the endpoint closed the conversation.
	EventSessionEnded
	// EventError carries a fatal stream error. No further events follow.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventAudioOutput:
		return "audio_output"
	case EventToolUse:
		return "tool_use"
	case EventInterrupted:
		return "interrupted"
	case EventTurnComplete:
		return "turn_complete"
	case EventSessionEnded:
		return "session_ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single asynchronous message from the AI endpoint.
type Event struct {
	Type EventType

	// Audio holds little-endian PCM16 samples for EventAudioOutput.
	Audio []byte

	// ToolUseID, ToolName and ToolInput are set for EventToolUse.
	// ToolUseID correlates the eventual tool result with this request.
	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage

	// Reason is set for EventSessionEnded.
	Reason string

	// Err is set for EventError.
	Err error
}

// ToolSpec describes a tool advertised to the AI endpoint at dial time.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Config carries per-call parameters for establishing a stream.
type Config struct {
	SessionID    string
	CallerID     string
	SystemPrompt string
	VoiceID      string
	Tools        []ToolSpec
}

// Stream is an active bidirectional conversation with the AI endpoint.
//
// SendAudioChunk and SendToolResult may be called from different goroutines
// than the one draining Events. Events is closed after EventSessionEnded or
// EventError, and always after Close.
type Stream interface {
	// StartAudioContent opens the caller audio input, after which
	// SendAudioChunk may be called.
	StartAudioContent(ctx context.Context) error

	// SendAudioChunk forwards one chunk of caller PCM16 audio.
	SendAudioChunk(ctx context.Context, pcm []byte) error

	// SendToolResult delivers the result of a tool invocation requested
	// by an EventToolUse, correlated by toolUseID.
	SendToolResult(ctx context.Context, toolUseID string, result json.RawMessage) error

	// Events returns the channel of asynchronous endpoint events.
	Events() <-chan Event

	// Close tears the stream down. Safe to call more than once.
	Close() error
}

// Dialer establishes streams. One Dialer serves many concurrent sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Stream, error)
}
