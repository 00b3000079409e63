// Package tools implements the tool registry and dispatcher invoked by the
// AI endpoint mid-conversation. Dispatch never returns an error to the
// caller: every outcome, including unknown tools, handler errors, panics and
// timeouts, is folded into a JSON result so the conversation can continue.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicebridge-ai/voicebridge/pkg/aistream"
	"github.com/voicebridge-ai/voicebridge/pkg/logger"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 10 * time.Second

// Invocation is one tool use request from the AI endpoint.
type Invocation struct {
	ToolUseID string
	Name      string
	Input     json.RawMessage

	// Call context available to handlers.
	SessionID string
	CallerID  string
}

// Tool is a callable capability advertised to the AI endpoint.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Handle(ctx context.Context, inv Invocation) (any, error)
}

// Result is the envelope every dispatch produces.
type Result struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

func errorResult(msg string) json.RawMessage {
	out, _ := json.Marshal(Result{Status: "error", Message: msg})
	return out
}

// Registry holds the tools enabled for one call session.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	log     *zap.Logger
}

// NewRegistry returns an empty registry. A non-positive timeout falls back
// to DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: timeout,
		log:     logger.L().With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name()]; dup {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the tool specs to advertise at dial time, ordered by name.
func (r *Registry) Specs() []aistream.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]aistream.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, aistream.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Dispatch executes one invocation and returns its JSON result. The handler
// runs under the registry timeout; panics and errors become error results.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) json.RawMessage {
	tool, ok := r.Get(inv.Name)
	if !ok {
		r.log.Warn("unknown tool requested",
			zap.String("tool", inv.Name),
			zap.String("session_id", inv.SessionID))
		return errorResult(fmt.Sprintf("unknown tool: %s", inv.Name))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		v, err := tool.Handle(ctx, inv)
		done <- outcome{value: v, err: err}
	}()

	start := time.Now()
	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("tool %s: %w", inv.Name, ctx.Err())}
	}

	if out.err != nil {
		r.log.Warn("tool failed",
			zap.String("tool", inv.Name),
			zap.String("tool_use_id", inv.ToolUseID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(out.err))
		return errorResult(out.err.Error())
	}

	content, err := json.Marshal(out.value)
	if err != nil {
		return errorResult(fmt.Sprintf("tool %s: encode result: %v", inv.Name, err))
	}
	result, _ := json.Marshal(Result{Status: "success", Content: content})

	r.log.Debug("tool dispatched",
		zap.String("tool", inv.Name),
		zap.String("tool_use_id", inv.ToolUseID),
		zap.Duration("elapsed", time.Since(start)))
	return result
}
