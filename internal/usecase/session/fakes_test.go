package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

type memCredentials struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newCredentials(key string) *memCredentials {
	c := &memCredentials{values: map[string]string{}}
	if key != "" {
		c.values[CredentialKey] = key
	}
	return c
}

func (c *memCredentials) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	v, ok := c.values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, entity.ErrKeyNotFound)
	}
	return v, nil
}

func (c *memCredentials) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCredentials) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// journal records lifecycle steps across transports in order.
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(step string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, step)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.steps...)
}

type fakeTransport struct {
	id      int
	journal *journal
	openErr error

	mu      sync.Mutex
	handler output.TransportHandler
	sent    []any
	closes  int
}

func (t *fakeTransport) Open(ctx context.Context, credential string, h output.TransportHandler) error {
	t.journal.add("open")
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	h.OnOpen()
	return nil
}

func (t *fakeTransport) Send(ctx context.Context, msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closes > 0 {
		return entity.ErrTransportFailure
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) Close() error {
	t.journal.add("close")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *fakeTransport) emit(ev entity.RealtimeEvent) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	h.OnEvent(ev)
}

func (t *fakeTransport) drop(err error) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	h.OnClose(err)
}

func (t *fakeTransport) messages() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.sent...)
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// responseInstructions returns the instructions of every response.create sent.
func (t *fakeTransport) responseInstructions() []string {
	var out []string
	for _, m := range t.messages() {
		if rc, ok := m.(entity.ResponseCreateMessage); ok {
			out = append(out, rc.Response.Instructions)
		}
	}
	return out
}

type fakeFactory struct {
	mu         sync.Mutex
	journal    journal
	openErr    error
	transports []*fakeTransport
}

func (f *fakeFactory) NewTransport() output.RealtimeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTransport{id: len(f.transports) + 1, journal: &f.journal, openErr: f.openErr}
	f.transports = append(f.transports, t)
	return t
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

func (f *fakeFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[len(f.transports)-1]
}

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []entity.ToolCallRequest
	result entity.ToolCallResult
}

func (d *fakeDispatcher) Handle(ctx context.Context, req entity.ToolCallRequest) entity.ToolCallResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, req)
	return d.result
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeRegistry struct{}

func (fakeRegistry) DescribeAll() []entity.ToolDefinition {
	return []entity.ToolDefinition{{Name: entity.ToolScrollPage, Description: "Scroll the webpage."}}
}

func (fakeRegistry) Resolve(name entity.ToolName) (output.Executor, entity.ToolDefinition, bool) {
	return nil, entity.ToolDefinition{}, false
}

type statusLog struct {
	mu   sync.Mutex
	msgs []entity.ControlMessage
}

func (s *statusLog) Publish(msg entity.ControlMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *statusLog) all() []entity.ControlMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.ControlMessage(nil), s.msgs...)
}

func (s *statusLog) last() entity.ControlMessage {
	all := s.all()
	return all[len(all)-1]
}

func callRequest(id string) entity.ToolCallRequest {
	return entity.ToolCallRequest{CallID: id, Name: entity.ToolScrollPage, RawArguments: json.RawMessage(`"{}"`)}
}
