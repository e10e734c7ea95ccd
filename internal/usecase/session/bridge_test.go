package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/logger"
)

type bridgeFixture struct {
	bridge     *Bridge
	factory    *fakeFactory
	dispatcher *fakeDispatcher
	status     *statusLog
	creds      *memCredentials
}

func newFixture(t *testing.T, key string) *bridgeFixture {
	t.Helper()
	f := &bridgeFixture{
		factory:    &fakeFactory{},
		dispatcher: &fakeDispatcher{result: entity.Ok("Scrolled down by medium")},
		status:     &statusLog{},
		creds:      newCredentials(key),
	}
	f.bridge = NewBridge("tab-1", f.deps(), logger.NewNop())
	return f
}

func (f *bridgeFixture) deps() Deps {
	return Deps{
		Credentials:    f.creds,
		Transports:     f.factory,
		Dispatcher:     f.dispatcher,
		Tools:          fakeRegistry{},
		Status:         f.status,
		CommandsPerSec: 100,
		CommandBurst:   100,
	}
}

func (f *bridgeFixture) start(t *testing.T) *fakeTransport {
	t.Helper()
	state, err := f.bridge.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, entity.SessionActive, state)
	return f.factory.last()
}

func TestStart_WithoutCredential(t *testing.T) {
	f := newFixture(t, "")

	state, err := f.bridge.Start(context.Background())

	assert.ErrorIs(t, err, entity.ErrCredentialMissing)
	assert.Equal(t, entity.SessionIdle, state)
	assert.Equal(t, entity.SessionIdle, f.bridge.State())
	assert.Zero(t, f.factory.count(), "no transport without a credential")
	assert.Equal(t, entity.StatusInactive, f.status.last().Status)
}

func TestStart_AnnouncesToolsThenGreets(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)

	msgs := tr.messages()
	require.Len(t, msgs, 2)

	update, ok := msgs[0].(entity.SessionUpdateMessage)
	require.True(t, ok, "first message is session.update")
	assert.Equal(t, "session.update", update.Type)
	assert.Equal(t, "auto", update.Session.ToolChoice)
	require.Len(t, update.Session.Tools, 1)
	assert.Equal(t, "scroll_page", update.Session.Tools[0].Name)

	greeting, ok := msgs[1].(entity.ResponseCreateMessage)
	require.True(t, ok, "second message is response.create")
	assert.Contains(t, greeting.Response.Instructions, "scroll_page")

	assert.Equal(t, entity.StatusActive, f.status.last().Status)
	assert.Equal(t, entity.TabID("tab-1"), f.status.last().TabID)
}

func TestStart_WhileActiveIsNoop(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.start(t)

	state, err := f.bridge.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.SessionActive, state)
	assert.Equal(t, 1, f.factory.count())
}

func TestStart_TransportFailure(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.factory.openErr = errors.New("handshake refused")

	state, err := f.bridge.Start(context.Background())

	assert.ErrorIs(t, err, entity.ErrTransportFailure)
	assert.Equal(t, entity.SessionIdle, state)
	assert.Equal(t, 1, f.factory.last().closeCount(), "failed transport is released")
	assert.Equal(t, entity.StatusInactive, f.status.last().Status)

	f.factory.openErr = nil
	f.start(t)
}

func TestStart_CredentialStoreFailure(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.creds.err = errors.New("disk I/O error")

	state, err := f.bridge.Start(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrCredentialMissing)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.Equal(t, entity.SessionIdle, state)
	assert.Zero(t, f.factory.count())
	assert.Equal(t, entity.StatusInactive, f.status.last().Status)
	assert.Contains(t, f.status.last().Details, "disk I/O error")
}

func TestStart_TransportTimeout(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.factory.openErr = fmt.Errorf("%w: %w: waiting for connection", entity.ErrTransportFailure, entity.ErrTimeout)

	state, err := f.bridge.Start(context.Background())

	assert.ErrorIs(t, err, entity.ErrTransportFailure)
	assert.ErrorIs(t, err, entity.ErrTimeout)
	assert.Equal(t, entity.SessionIdle, state)
	assert.Equal(t, entity.SessionIdle, f.bridge.State())
	assert.Equal(t, 1, f.factory.last().closeCount())
	assert.Equal(t, entity.StatusInactive, f.status.last().Status)

	f.factory.openErr = nil
	f.start(t)
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t, "sk-test")

	assert.Equal(t, entity.SessionIdle, f.bridge.Stop(context.Background()))

	tr := f.start(t)
	assert.Equal(t, entity.SessionIdle, f.bridge.Stop(context.Background()))
	assert.Equal(t, entity.SessionIdle, f.bridge.Stop(context.Background()))
	assert.Equal(t, 1, tr.closeCount())
}

func TestToolCall_DispatchedOncePerCallID(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)

	call := callRequest("call_1")
	tr.emit(entity.FunctionCallArgumentsDone{Call: call})
	tr.emit(entity.ResponseOutput{Type: "response.done", Calls: []entity.ToolCallRequest{call}})

	assert.Equal(t, 1, f.dispatcher.count())
	instructions := tr.responseInstructions()
	require.Len(t, instructions, 2, "greeting and one result")
	assert.Equal(t, "Command executed: Scrolled down by medium. What else would you like me to do?", instructions[1])

	last := f.status.last()
	assert.Equal(t, entity.ActionLastCommandUpdate, last.Action)
	assert.Equal(t, "scroll_page: Scrolled down by medium", last.Command)
}

func TestToolCall_WithoutIDDispatchedOncePerResponse(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)

	scroll := entity.ToolCallRequest{Name: entity.ToolScrollPage, RawArguments: json.RawMessage(`{"direction": "down"}`)}
	summarized := entity.ToolCallRequest{Name: entity.ToolScrollPage, RawArguments: json.RawMessage(`{"direction":"down"}`)}

	tr.emit(entity.FunctionCallArgumentsDone{Call: scroll})
	tr.emit(entity.ResponseOutput{Type: "response.done", Calls: []entity.ToolCallRequest{summarized}})
	assert.Equal(t, 1, f.dispatcher.count(), "summary repeats the streamed call")

	tr.emit(entity.FunctionCallArgumentsDone{Call: scroll})
	assert.Equal(t, 2, f.dispatcher.count(), "same command in a later response runs again")

	tr.emit(entity.ResponseOutput{Type: "response.done", Calls: []entity.ToolCallRequest{summarized, summarized}})
	assert.Equal(t, 3, f.dispatcher.count(), "only one summarized call matches the streamed one")
}

func TestToolCall_ErrorResult(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.dispatcher.result = entity.Fail(entity.ErrElementNotFound, "Could not find element")
	tr := f.start(t)

	tr.emit(entity.FunctionCallArgumentsDone{Call: callRequest("call_1")})

	instructions := tr.responseInstructions()
	assert.Equal(t,
		"Error: Could not find element. Please try a different approach or provide more specific instructions.",
		instructions[len(instructions)-1])
	assert.Equal(t, entity.SessionActive, f.bridge.State(), "tool errors do not end the session")
}

func TestToolCall_DeferredSendsNoResult(t *testing.T) {
	f := newFixture(t, "sk-test")
	deferred := entity.Ok("Processing page content...")
	deferred.Deferred = true
	f.dispatcher.result = deferred
	tr := f.start(t)

	tr.emit(entity.FunctionCallArgumentsDone{Call: callRequest("call_1")})

	assert.Equal(t, 1, f.dispatcher.count())
	assert.Len(t, tr.responseInstructions(), 1, "only the greeting")
}

func TestToolCall_RateLimited(t *testing.T) {
	f := newFixture(t, "sk-test")
	deps := f.deps()
	deps.CommandsPerSec = 0.001
	deps.CommandBurst = 1
	f.bridge = NewBridge("tab-1", deps, logger.NewNop())
	tr := f.start(t)

	tr.emit(entity.FunctionCallArgumentsDone{Call: callRequest("call_1")})
	tr.emit(entity.FunctionCallArgumentsDone{Call: callRequest("call_2")})

	assert.Equal(t, 1, f.dispatcher.count())
	instructions := tr.responseInstructions()
	assert.Contains(t, instructions[len(instructions)-1], "Too many commands at once, wait a moment")
}

func TestEvents_IgnoredWhenNotActive(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)
	f.bridge.Stop(context.Background())

	tr.emit(entity.FunctionCallArgumentsDone{Call: callRequest("call_1")})
	assert.Zero(t, f.dispatcher.count())
}

func TestErrorEvent_IsNotFatal(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)

	tr.emit(entity.ErrorEvent{Code: "invalid_value", Message: "bad"})

	assert.Equal(t, entity.SessionActive, f.bridge.State())
	assert.Contains(t, f.status.last().Details, "bad")
}

func TestTransportClose_TearsDown(t *testing.T) {
	f := newFixture(t, "sk-test")
	tr := f.start(t)

	tr.drop(errors.New("ice failed"))

	assert.Eventually(t, func() bool {
		return f.bridge.State() == entity.SessionIdle
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return tr.closeCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.status.last().Status == entity.StatusInactive
	}, time.Second, 10*time.Millisecond)

	f.start(t)
	assert.Equal(t, 2, f.factory.count())
}

func TestSendUserTurn(t *testing.T) {
	f := newFixture(t, "sk-test")

	err := f.bridge.SendUserTurn(context.Background(), "text", "summarize")
	assert.ErrorIs(t, err, entity.ErrNoActiveSession)

	tr := f.start(t)
	require.NoError(t, f.bridge.SendUserTurn(context.Background(), "page text", "summarize"))

	msgs := tr.messages()
	require.Len(t, msgs, 4)
	item, ok := msgs[2].(entity.ConversationItemCreateMessage)
	require.True(t, ok)
	assert.Equal(t, "user", item.Item.Role)
	assert.Equal(t, "page text", item.Item.Content[0].Text)

	resp, ok := msgs[3].(entity.ResponseCreateMessage)
	require.True(t, ok)
	assert.Equal(t, "summarize", resp.Response.Instructions)
	assert.Equal(t, []string{"text", "audio"}, resp.Response.Modalities)
}
