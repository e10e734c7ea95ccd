package input

import (
	"context"

	"voice-navigator/internal/domain/entity"
)

type Dispatcher interface {
	Handle(ctx context.Context, req entity.ToolCallRequest) entity.ToolCallResult
}
