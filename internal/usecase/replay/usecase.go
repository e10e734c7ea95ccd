package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"voice-navigator/internal/adapter/tool"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/application/service"
	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/usecase/dispatcher"
)

// Call is one recorded function call as the model would send it.
type Call struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Step pairs a call with the result the dispatcher produced for it.
type Step struct {
	Call   Call
	Result entity.ToolCallResult
}

// UseCase runs recorded calls against a single document without a realtime
// session. User turns produced by read_page are written to out.
type UseCase struct {
	doc    output.DocumentPort
	out    io.Writer
	logger output.LoggerPort
}

func New(doc output.DocumentPort, out io.Writer, logger output.LoggerPort) *UseCase {
	return &UseCase{doc: doc, out: out, logger: logger.WithField("component", "replay")}
}

func ParseCalls(data []byte) ([]Call, error) {
	var calls []Call
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("parse calls: %w", err)
	}
	for i := range calls {
		if calls[i].CallID == "" {
			calls[i].CallID = fmt.Sprintf("replay-%d", i+1)
		}
	}
	return calls, nil
}

func (uc *UseCase) Run(ctx context.Context, calls []Call) ([]Step, error) {
	registry := service.NewToolRegistry()
	if err := registry.RegisterTools(tool.NewBrowserTools(uc, uc, uc.logger)...); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	disp := dispatcher.New(registry, uc.logger)

	steps := make([]Step, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		result := disp.Handle(ctx, entity.ToolCallRequest{
			CallID:       call.CallID,
			Name:         entity.ToolName(call.Name),
			RawArguments: call.Arguments,
		})
		uc.logger.Info("Replayed call", "name", call.Name, "status", result.Status)
		steps = append(steps, Step{Call: call, Result: result})
	}
	return steps, nil
}

func (uc *UseCase) Document(ctx context.Context) (output.DocumentPort, error) {
	return uc.doc, nil
}

func (uc *UseCase) SendUserTurn(ctx context.Context, text, instructions string) error {
	_, err := fmt.Fprintf(uc.out, "--- user turn (%s)\n%s\n", instructions, text)
	return err
}
