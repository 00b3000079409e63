package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Session attributes
	AttrSessionID    = "session.id"
	AttrSessionState = "session.state"
	AttrCallerID     = "session.caller_id"

	// Transport attributes
	AttrTransportKind   = "transport.kind"
	AttrTransportRemote = "transport.remote_addr"

	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioEncoding   = "audio.encoding"
	AttrAudioDirection  = "audio.direction"
	AttrAudioDataSize   = "audio.data_size"

	// Tool attributes
	AttrToolName   = "tool.name"
	AttrToolUseID  = "tool.use_id"
	AttrToolStatus = "tool.status"

	// Recording attributes
	AttrRecordingKey      = "recording.key"
	AttrRecordingLocation = "recording.location"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// SessionAttrs creates attributes for session information
func SessionAttrs(sessionID, callerID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
		attribute.String(AttrCallerID, callerID),
	}
}

// AudioAttrs creates attributes for audio data
func AudioAttrs(sampleRate, dataSize int, encoding, direction string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int(AttrAudioDataSize, dataSize),
		attribute.String(AttrAudioEncoding, encoding),
		attribute.String(AttrAudioDirection, direction),
	}
}

// ToolAttrs creates attributes for tool dispatch
func ToolAttrs(name, useID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolUseID, useID),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
