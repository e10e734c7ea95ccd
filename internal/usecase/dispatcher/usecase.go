package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voice-navigator/internal/application/port/input"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ input.Dispatcher = (*UseCase)(nil)

const maxLoggedArgsLen = 500

// UseCase routes one tool call to its executor and turns every outcome,
// including panics, into a ToolCallResult.
type UseCase struct {
	tools  output.ToolRegistry
	logger output.LoggerPort

	mu      sync.Mutex
	schemas map[entity.ToolName]*jsonschema.Schema
}

func New(tools output.ToolRegistry, logger output.LoggerPort) *UseCase {
	return &UseCase{
		tools:   tools,
		logger:  logger.WithField("component", "dispatcher"),
		schemas: make(map[entity.ToolName]*jsonschema.Schema),
	}
}

func (uc *UseCase) Handle(ctx context.Context, req entity.ToolCallRequest) entity.ToolCallResult {
	start := time.Now()
	result := uc.handle(ctx, req)

	fields := []any{
		"name", req.Name,
		"call_id", req.CallID,
		"args", truncate(string(req.RawArguments), maxLoggedArgsLen),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.IsError() {
		uc.logger.Warn("Tool call failed", append(fields, "error", result.Message)...)
	} else {
		uc.logger.Info("Tool call completed", append(fields, "result", result.Message)...)
	}
	return result
}

func (uc *UseCase) handle(ctx context.Context, req entity.ToolCallRequest) entity.ToolCallResult {
	exec, def, ok := uc.tools.Resolve(req.Name)
	if !ok {
		return entity.Fail(entity.ErrUnknownTool, fmt.Sprintf("Unknown function: %s", req.Name))
	}

	args, err := DecodeArguments(req.RawArguments)
	if err != nil {
		return entity.Fail(fmt.Errorf("%w: %v", entity.ErrInvalidArguments, err), "Invalid function arguments")
	}

	if err := uc.validate(def, args); err != nil {
		return entity.Fail(fmt.Errorf("%w: %v", entity.ErrInvalidArguments, err),
			"Invalid function arguments: "+validationDetail(err))
	}

	applyDefaults(def, args)

	message, err := invoke(ctx, req.Name, exec, args)
	if err != nil {
		return entity.Fail(err, err.Error())
	}

	result := entity.Ok(message)
	result.Deferred = def.DeferredResult
	return result
}

func invoke(ctx context.Context, name entity.ToolName, exec output.Executor, args entity.Arguments) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{tool: name, value: r}
		}
	}()
	return exec(ctx, args)
}

// panicError reports a recovered executor panic.
type panicError struct {
	tool  entity.ToolName
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("Tool %s failed: %v", e.tool, e.value)
}

func (e panicError) Unwrap() error {
	return entity.ErrExecutorFailure
}

// DecodeArguments accepts an object, a JSON string holding an object, or
// nothing at all.
func DecodeArguments(raw json.RawMessage) (entity.Arguments, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return entity.Arguments{}, nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return entity.Arguments{}, nil
		}
		data = []byte(s)
	}

	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func (uc *UseCase) validate(def entity.ToolDefinition, args entity.Arguments) error {
	schema, err := uc.schema(def)
	if err != nil {
		return err
	}
	return schema.Validate(map[string]any(args))
}

func (uc *UseCase) schema(def entity.ToolDefinition) (*jsonschema.Schema, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if s, ok := uc.schemas[def.Name]; ok {
		return s, nil
	}

	raw, err := json.Marshal(def.ValidationSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", def.Name, err)
	}
	s, err := jsonschema.CompileString(string(def.Name)+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", def.Name, err)
	}
	uc.schemas[def.Name] = s
	return s, nil
}

func validationDetail(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			return leaf.Message
		}
		return loc + ": " + leaf.Message
	}
	return err.Error()
}

func applyDefaults(def entity.ToolDefinition, args entity.Arguments) {
	for name, spec := range def.Parameters {
		if spec.Default == nil {
			continue
		}
		if _, present := args[name]; !present {
			args[name] = spec.Default
		}
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "... (truncated)"
	}
	return s
}
