package output

import (
	"context"

	"voice-navigator/internal/domain/entity"
)

// Executor runs one tool with decoded, defaulted arguments.
type Executor func(ctx context.Context, args entity.Arguments) (string, error)

type ToolPort interface {
	Definition() entity.ToolDefinition
	Execute(ctx context.Context, args entity.Arguments) (string, error)
}

type ToolRegistry interface {
	DescribeAll() []entity.ToolDefinition
	Resolve(name entity.ToolName) (Executor, entity.ToolDefinition, bool)
}
