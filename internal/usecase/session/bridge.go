// Package session owns the realtime session of a tab and binds it to the
// browser.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"voice-navigator/internal/application/port/input"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/prompts"
)

const (
	CredentialKey = "openai_api_key"

	rateLimitedMessage = "Too many commands at once, wait a moment"
	fallbackGreeting   = "Hello! I'm ready to help you navigate this webpage. You can ask me to click buttons, scroll the page, or read content for you."

	sendTimeout    = 5 * time.Second
	commandTimeout = 30 * time.Second
)

// Deps are shared by every bridge.
type Deps struct {
	Credentials output.CredentialStore
	Transports  output.TransportFactory
	Dispatcher  input.Dispatcher
	Tools       output.ToolRegistry
	Status      output.StatusSink

	CommandsPerSec float64
	CommandBurst   int
}

// Bridge runs the Idle, Connecting, Active, Closing cycle of one tab's
// session. All transport resources belong to it.
type Bridge struct {
	tab     entity.TabID
	deps    Deps
	limiter *rate.Limiter
	logger  output.LoggerPort

	mu        sync.Mutex
	state     entity.SessionState
	transport output.RealtimeTransport
	// gen identifies the current transport; callbacks from older ones are ignored.
	gen  uint64
	seen map[string]struct{}
	// unnamed counts id-less calls of the response in progress, keyed by
	// name and arguments.
	unnamed map[string]int
}

func NewBridge(tab entity.TabID, deps Deps, logger output.LoggerPort) *Bridge {
	if deps.Status == nil {
		deps.Status = nopSink{}
	}
	limit := rate.Inf
	if deps.CommandsPerSec > 0 {
		limit = rate.Limit(deps.CommandsPerSec)
	}
	burst := deps.CommandBurst
	if burst <= 0 {
		burst = 1
	}

	return &Bridge{
		tab:     tab,
		deps:    deps,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithFields(map[string]any{"component": "session", "tab": tab}),
		state:   entity.SessionIdle,
	}
}

func (b *Bridge) State() entity.SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start connects the session. Outside Idle it does nothing and reports the
// current state. No transport is created without a stored credential.
func (b *Bridge) Start(ctx context.Context) (entity.SessionState, error) {
	b.mu.Lock()
	if b.state != entity.SessionIdle {
		state := b.state
		b.mu.Unlock()
		return state, nil
	}

	key, err := b.deps.Credentials.Get(ctx, CredentialKey)
	if err != nil && !errors.Is(err, entity.ErrKeyNotFound) {
		b.mu.Unlock()
		err = fmt.Errorf("read credential: %w", err)
		b.logger.Error("Credential lookup failed", "error", err)
		b.publish(entity.StatusUpdate(entity.StatusInactive, err.Error()))
		return entity.SessionIdle, err
	}
	if err != nil || strings.TrimSpace(key) == "" {
		b.mu.Unlock()
		b.publish(entity.StatusUpdate(entity.StatusInactive, entity.ErrCredentialMissing.Error()))
		return entity.SessionIdle, entity.ErrCredentialMissing
	}

	b.state = entity.SessionConnecting
	b.gen++
	gen := b.gen
	transport := b.deps.Transports.NewTransport()
	b.transport = transport
	b.seen = make(map[string]struct{})
	b.unnamed = make(map[string]int)
	b.mu.Unlock()

	b.logger.Info("Starting voice session")
	b.publish(entity.StatusUpdate(entity.StatusPending, "Connecting..."))

	if err := transport.Open(ctx, key, &handler{bridge: b, gen: gen}); err != nil {
		b.mu.Lock()
		if b.gen == gen {
			b.state = entity.SessionIdle
			b.transport = nil
			b.gen++
		}
		state := b.state
		b.mu.Unlock()

		if closeErr := transport.Close(); closeErr != nil {
			b.logger.Warn("Transport release failed", "error", closeErr)
		}
		if !errors.Is(err, entity.ErrTransportFailure) {
			err = fmt.Errorf("%w: %w", entity.ErrTransportFailure, err)
		}
		b.logger.Error("Voice session failed to start", "error", err)
		b.publish(entity.StatusUpdate(entity.StatusInactive, err.Error()))
		return state, err
	}

	return b.State(), nil
}

// Stop releases the session. It never fails and may be called in any state.
func (b *Bridge) Stop(ctx context.Context) entity.SessionState {
	b.mu.Lock()
	if b.state == entity.SessionIdle || b.state == entity.SessionClosing {
		state := b.state
		b.mu.Unlock()
		return state
	}
	b.state = entity.SessionClosing
	b.gen++
	gen := b.gen
	transport := b.transport
	b.transport = nil
	b.mu.Unlock()

	b.release(transport)

	b.mu.Lock()
	if b.gen == gen {
		b.state = entity.SessionIdle
	}
	state := b.state
	b.mu.Unlock()

	b.logger.Info("Voice session stopped")
	b.publish(entity.StatusUpdate(entity.StatusInactive, "Voice control stopped"))
	return state
}

// SendUserTurn adds a user message and asks for a spoken response.
func (b *Bridge) SendUserTurn(ctx context.Context, text, instructions string) error {
	b.mu.Lock()
	transport, state := b.transport, b.state
	b.mu.Unlock()

	if state != entity.SessionActive || transport == nil {
		return entity.ErrNoActiveSession
	}

	if err := transport.Send(ctx, entity.NewUserTextItem(text)); err != nil {
		return err
	}
	resp := entity.NewResponseCreate(instructions)
	resp.Response.Modalities = []string{"text", "audio"}
	return transport.Send(ctx, resp)
}

func (b *Bridge) opened(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || b.state != entity.SessionConnecting {
		b.mu.Unlock()
		return
	}
	b.state = entity.SessionActive
	transport := b.transport
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	defs := b.deps.Tools.DescribeAll()
	if err := transport.Send(ctx, entity.NewSessionUpdate(defs)); err != nil {
		b.logger.Error("Failed to announce tools", "error", err)
	}

	greeting, err := prompts.GenerateGreeting(prompts.GreetingPrompt, b.deps.Tools)
	if err != nil {
		b.logger.Warn("Failed to render greeting", "error", err)
		greeting = fallbackGreeting
	}
	if err := transport.Send(ctx, entity.NewResponseCreate(greeting)); err != nil {
		b.logger.Error("Failed to send greeting", "error", err)
	}

	b.logger.Info("Voice session active", "tools", len(defs))
	b.publish(entity.StatusUpdate(entity.StatusActive, "Connected and listening..."))
}

func (b *Bridge) event(gen uint64, ev entity.RealtimeEvent) {
	b.mu.Lock()
	current := b.gen == gen && b.state == entity.SessionActive
	transport := b.transport
	b.mu.Unlock()
	if !current {
		return
	}

	switch e := ev.(type) {
	case entity.SessionCreated:
		b.logger.Info("Realtime session created", "session_id", e.SessionID)
	case entity.ErrorEvent:
		b.logger.Warn("Realtime error", "code", e.Code, "message", e.Message)
		b.publish(entity.StatusUpdate(entity.StatusActive, "Realtime error: "+e.Message))
	}

	_, done := ev.(entity.ResponseOutput)
	for _, call := range entity.ToolCalls(ev) {
		if b.repeated(call, done) {
			b.logger.Debug("Skipping repeated call", "call_id", call.CallID, "name", call.Name)
			continue
		}
		b.handleCall(transport, call)
	}
	if done {
		b.mu.Lock()
		clear(b.unnamed)
		b.mu.Unlock()
	}
}

// repeated reports whether call was already handled. Calls with an id are
// matched on it for the whole session. Calls without one are matched on name
// and arguments, and only the summary of a response can repeat them.
func (b *Bridge) repeated(call entity.ToolCallRequest, fromSummary bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if call.CallID != "" {
		if _, dup := b.seen[call.CallID]; dup {
			return true
		}
		b.seen[call.CallID] = struct{}{}
		return false
	}

	key := callKey(call)
	if !fromSummary {
		b.unnamed[key]++
		return false
	}
	if b.unnamed[key] > 0 {
		b.unnamed[key]--
		return true
	}
	return false
}

func callKey(call entity.ToolCallRequest) string {
	var args bytes.Buffer
	if err := json.Compact(&args, call.RawArguments); err != nil {
		return string(call.Name) + "\x00" + string(call.RawArguments)
	}
	return string(call.Name) + "\x00" + args.String()
}

func (b *Bridge) handleCall(transport output.RealtimeTransport, call entity.ToolCallRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var result entity.ToolCallResult
	if b.limiter.Allow() {
		result = b.deps.Dispatcher.Handle(ctx, call)
	} else {
		result = entity.Fail(entity.ErrRateLimited, rateLimitedMessage)
		b.logger.Warn("Tool call rate limited", "name", call.Name, "call_id", call.CallID)
	}

	b.publish(entity.LastCommandUpdate(fmt.Sprintf("%s: %s", call.Name, result.Message)))

	if result.Deferred && !result.IsError() {
		return
	}
	if err := transport.Send(ctx, entity.NewResponseCreate(result.Instructions())); err != nil {
		b.logger.Error("Failed to send tool result", "name", call.Name, "error", err)
	}
}

func (b *Bridge) closed(gen uint64, reason error) {
	b.mu.Lock()
	current := b.gen == gen && (b.state == entity.SessionConnecting || b.state == entity.SessionActive)
	b.mu.Unlock()
	if !current {
		return
	}
	// The callback runs on the transport's goroutine; closing it from here
	// would wait on itself.
	go b.teardown(gen, reason)
}

func (b *Bridge) teardown(gen uint64, reason error) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.state = entity.SessionClosing
	b.gen++
	next := b.gen
	transport := b.transport
	b.transport = nil
	b.mu.Unlock()

	b.release(transport)

	b.mu.Lock()
	if b.gen == next {
		b.state = entity.SessionIdle
	}
	b.mu.Unlock()

	msg := "Connection closed"
	if reason != nil {
		msg = "Connection lost: " + reason.Error()
	}
	b.logger.Warn("Voice session ended by transport", "reason", msg)
	b.publish(entity.StatusUpdate(entity.StatusInactive, msg))
}

func (b *Bridge) release(transport output.RealtimeTransport) {
	if transport == nil {
		return
	}
	if err := transport.Close(); err != nil {
		b.logger.Warn("Transport release failed", "error", err)
	}
}

func (b *Bridge) publish(msg entity.ControlMessage) {
	msg.TabID = b.tab
	b.deps.Status.Publish(msg)
}

// handler binds transport callbacks to the transport generation they
// belong to.
type handler struct {
	bridge *Bridge
	gen    uint64
}

func (h *handler) OnOpen()                         { h.bridge.opened(h.gen) }
func (h *handler) OnEvent(ev entity.RealtimeEvent) { h.bridge.event(h.gen, ev) }
func (h *handler) OnClose(err error)               { h.bridge.closed(h.gen, err) }

type nopSink struct{}

func (nopSink) Publish(entity.ControlMessage) {}
