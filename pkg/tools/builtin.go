package tools

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultHangupGrace is how long the hangup tool waits before terminating
// the call, leaving room for the model's goodbye audio to play out.
const DefaultHangupGrace = 3 * time.Second

// HangupFunc terminates the bound call session.
type HangupFunc func(reason string)

// HangupTool lets the model end the call. Termination is deferred by Grace
// so queued farewell audio reaches the caller first.
type HangupTool struct {
	Hangup HangupFunc
	Grace  time.Duration
}

func (t *HangupTool) Name() string        { return "hangup" }
func (t *HangupTool) Description() string { return "End the current phone call once the conversation is complete." }

func (t *HangupTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"reason": {"type": "string", "description": "Short reason the call is ending."}
		}
	}`)
}

func (t *HangupTool) Handle(_ context.Context, inv Invocation) (any, error) {
	var in struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(inv.Input, &in)
	if in.Reason == "" {
		in.Reason = "assistant requested hangup"
	}

	grace := t.Grace
	if grace <= 0 {
		grace = DefaultHangupGrace
	}
	if t.Hangup != nil {
		reason := in.Reason
		time.AfterFunc(grace, func() { t.Hangup(reason) })
	}
	return map[string]string{"message": "the call will end shortly"}, nil
}

// DateTimeTool reports the current date and time, optionally in a named
// IANA timezone.
type DateTimeTool struct {
	// Now is overridable for tests. Nil means time.Now.
	Now func() time.Time
}

func (t *DateTimeTool) Name() string        { return "get_datetime" }
func (t *DateTimeTool) Description() string { return "Get the current date, time and day of week." }

func (t *DateTimeTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {"type": "string", "description": "IANA timezone name, e.g. America/New_York. Defaults to the server timezone."}
		}
	}`)
}

func (t *DateTimeTool) Handle(_ context.Context, inv Invocation) (any, error) {
	var in struct {
		Timezone string `json:"timezone"`
	}
	_ = json.Unmarshal(inv.Input, &in)

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ts := now()
	if in.Timezone != "" {
		loc, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return nil, err
		}
		ts = ts.In(loc)
	}
	return map[string]string{
		"date":        ts.Format("2006-01-02"),
		"time":        ts.Format("15:04:05"),
		"day_of_week": ts.Weekday().String(),
		"timezone":    ts.Location().String(),
	}, nil
}

// CallerPhoneTool exposes the caller's phone number to the model.
type CallerPhoneTool struct{}

func (t *CallerPhoneTool) Name() string { return "get_caller_phone" }
func (t *CallerPhoneTool) Description() string {
	return "Get the phone number of the person on the call."
}

func (t *CallerPhoneTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *CallerPhoneTool) Handle(_ context.Context, inv Invocation) (any, error) {
	phone := inv.CallerID
	if phone == "" {
		phone = "unknown"
	}
	return map[string]string{"phone_number": phone}, nil
}
