package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/application/service"
	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/logger"
)

type recorder struct {
	calls []entity.Arguments
}

func (r *recorder) executor(reply string, err error) output.Executor {
	return func(ctx context.Context, args entity.Arguments) (string, error) {
		r.calls = append(r.calls, args)
		return reply, err
	}
}

func newDispatcher(t *testing.T, defs []entity.ToolDefinition, executors map[entity.ToolName]output.Executor) *UseCase {
	t.Helper()
	registry := service.NewToolRegistry()
	require.NoError(t, registry.Register(defs, executors))
	return New(registry, logger.NewNop())
}

var moveDef = entity.ToolDefinition{
	Name:        "move",
	Description: "Moves things",
	Parameters: map[string]entity.ParameterSpec{
		"direction": {Type: entity.ParamString, Enum: []string{"up", "down"}, Required: true},
		"amount":    {Type: entity.ParamString, Default: "medium"},
		"smooth":    {Type: entity.ParamBoolean},
	},
}

func request(name entity.ToolName, args string) entity.ToolCallRequest {
	raw, _ := json.Marshal(args)
	return entity.ToolCallRequest{CallID: "call_1", Name: name, RawArguments: raw}
}

func TestHandle_UnknownFunction(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{"move": rec.executor("ok", nil)})

	result := d.Handle(context.Background(), request("teleport", `{}`))

	assert.True(t, result.IsError())
	assert.Equal(t, "Unknown function: teleport", result.Message)
	assert.ErrorIs(t, result.Cause, entity.ErrUnknownTool)
	assert.Empty(t, rec.calls)
}

func TestHandle_InvalidJSON(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{"move": rec.executor("ok", nil)})

	for _, raw := range []string{`"{not json"`, `[1,2]`, `"[1,2]"`, `42`} {
		result := d.Handle(context.Background(), entity.ToolCallRequest{Name: "move", RawArguments: json.RawMessage(raw)})
		assert.Equal(t, "Invalid function arguments", result.Message, raw)
		assert.ErrorIs(t, result.Cause, entity.ErrInvalidArguments, raw)
	}
	assert.Empty(t, rec.calls)
}

func TestHandle_SchemaViolation(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{"move": rec.executor("ok", nil)})

	missing := d.Handle(context.Background(), request("move", `{}`))
	assert.True(t, missing.IsError())
	assert.Contains(t, missing.Message, "Invalid function arguments")
	assert.Contains(t, missing.Message, "direction")

	wrongType := d.Handle(context.Background(), request("move", `{"direction":"up","smooth":"very"}`))
	assert.True(t, wrongType.IsError())
	assert.Contains(t, wrongType.Message, "smooth")
	assert.ErrorIs(t, wrongType.Cause, entity.ErrInvalidArguments)

	assert.Empty(t, rec.calls)
}

func TestHandle_EnumIsLeftToExecutor(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{
		"move": rec.executor("", errors.New("Invalid move direction: sideways")),
	})

	result := d.Handle(context.Background(), request("move", `{"direction":"sideways"}`))

	assert.Equal(t, "Invalid move direction: sideways", result.Message)
	require.Len(t, rec.calls, 1)
}

func TestHandle_AppliesDefaults(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{"move": rec.executor("moved", nil)})

	result := d.Handle(context.Background(), request("move", `{"direction":"down"}`))

	require.False(t, result.IsError(), result.Message)
	assert.Equal(t, "moved", result.Message)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "medium", rec.calls[0]["amount"])
	assert.NotContains(t, rec.calls[0], "smooth", "parameters without default stay absent")

	d.Handle(context.Background(), request("move", `{"direction":"down","amount":"lot"}`))
	assert.Equal(t, "lot", rec.calls[1]["amount"])
}

func TestHandle_AcceptsStructuredArguments(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{"move": rec.executor("moved", nil)})

	result := d.Handle(context.Background(), entity.ToolCallRequest{
		Name:         "move",
		RawArguments: json.RawMessage(`{"direction":"up"}`),
	})

	assert.False(t, result.IsError(), result.Message)
	assert.Equal(t, "up", rec.calls[0]["direction"])
}

func TestHandle_ExecutorPanicIsContained(t *testing.T) {
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{
		"move": func(ctx context.Context, args entity.Arguments) (string, error) {
			panic("document is gone")
		},
	})

	var result entity.ToolCallResult
	require.NotPanics(t, func() {
		result = d.Handle(context.Background(), request("move", `{"direction":"up"}`))
	})

	assert.True(t, result.IsError())
	assert.ErrorIs(t, result.Cause, entity.ErrExecutorFailure)
	assert.Equal(t, "Tool move failed: document is gone", result.Message)
}

func TestHandle_ExecutorErrorKeepsCause(t *testing.T) {
	cause := errors.Join(entity.ErrElementNotFound, errors.New("Could not find element"))
	d := newDispatcher(t, []entity.ToolDefinition{moveDef}, map[entity.ToolName]output.Executor{
		"move": func(ctx context.Context, args entity.Arguments) (string, error) {
			return "", cause
		},
	})

	result := d.Handle(context.Background(), request("move", `{"direction":"up"}`))
	assert.ErrorIs(t, result.Cause, entity.ErrElementNotFound)
}

func TestHandle_DeferredResult(t *testing.T) {
	def := entity.ToolDefinition{Name: "read", DeferredResult: true}
	d := newDispatcher(t, []entity.ToolDefinition{def}, map[entity.ToolName]output.Executor{
		"read": (&recorder{}).executor("Processing page content...", nil),
	})

	result := d.Handle(context.Background(), entity.ToolCallRequest{Name: "read"})

	assert.False(t, result.IsError())
	assert.True(t, result.Deferred)
}

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want entity.Arguments
	}{
		{"empty", ``, entity.Arguments{}},
		{"null", `null`, entity.Arguments{}},
		{"empty string", `""`, entity.Arguments{}},
		{"object", `{"a":"b"}`, entity.Arguments{"a": "b"}},
		{"string wrapped", `"{\"a\":true}"`, entity.Arguments{"a": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeArguments(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
