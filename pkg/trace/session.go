package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentSessionStart creates the root span for one call session
func InstrumentSessionStart(ctx context.Context, sessionID, callerID, transportKind string) (context.Context, trace.Span) {
	attrs := SessionAttrs(sessionID, callerID)
	attrs = append(attrs, attribute.String(AttrTransportKind, transportKind))

	return StartSpan(ctx, "session.run",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentStateChange creates a span for session state transitions
func InstrumentStateChange(ctx context.Context, sessionID, oldState, newState string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session.state_change",
		trace.WithAttributes(
			attribute.String(AttrSessionID, sessionID),
			attribute.String("session.old_state", oldState),
			attribute.String(AttrSessionState, newState),
		),
	)
}

// InstrumentToolDispatch creates a span for one tool invocation
func InstrumentToolDispatch(ctx context.Context, sessionID, toolName, toolUseID string) (context.Context, trace.Span) {
	attrs := ToolAttrs(toolName, toolUseID)
	attrs = append(attrs, attribute.String(AttrSessionID, sessionID))

	return StartSpan(ctx, "session.tool_dispatch",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentRecordingStored creates a span for the finished call recording
func InstrumentRecordingStored(ctx context.Context, sessionID, location string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session.recording_stored",
		trace.WithAttributes(
			attribute.String(AttrSessionID, sessionID),
			attribute.String(AttrRecordingLocation, location),
		),
	)
}

// InstrumentSessionError creates a span for a session failure
func InstrumentSessionError(ctx context.Context, sessionID string, err error) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, "session.error",
		trace.WithAttributes(
			attribute.String(AttrSessionID, sessionID),
		),
	)

	RecordError(span, err)
	return ctx, span
}
