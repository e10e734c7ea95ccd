package tool

import (
	"context"
	"fmt"
	"strings"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.ToolPort = (*ScrollTool)(nil)

var scrollPixels = map[string]int{
	"little": 100,
	"medium": 300,
	"lot":    800,
}

const scrollFull = "full"

type ScrollTool struct {
	docs   output.DocumentProvider
	logger output.LoggerPort
}

func NewScrollTool(docs output.DocumentProvider, logger output.LoggerPort) *ScrollTool {
	return &ScrollTool{docs: docs, logger: logger}
}

func (t *ScrollTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolScrollPage,
		Description: "Scroll the webpage. Use top or bottom to jump to the start or end of the page, up or down to move by an amount.",
		Parameters: map[string]entity.ParameterSpec{
			"direction": {
				Type:        entity.ParamString,
				Description: "Direction to scroll: top, bottom, up or down",
				Enum:        []string{"top", "bottom", "up", "down"},
				Required:    true,
			},
			"amount": {
				Type:        entity.ParamString,
				Description: "How far to scroll up or down: little (100px), medium (300px), lot (800px) or full (the whole page)",
				Enum:        []string{"little", "medium", "lot", scrollFull},
				Default:     "medium",
			},
		},
	}
}

func (t *ScrollTool) Execute(ctx context.Context, args entity.Arguments) (string, error) {
	direction := strings.ToLower(strings.TrimSpace(args.String("direction")))
	amount := strings.ToLower(strings.TrimSpace(args.String("amount")))
	if amount == "" {
		amount = "medium"
	}

	switch direction {
	case "top", "bottom", "up", "down":
	default:
		return "", failure(entity.ErrInvalidArguments, "Invalid scroll direction: %s", args.String("direction"))
	}
	if _, ok := scrollPixels[amount]; !ok && amount != scrollFull {
		return "", failure(entity.ErrInvalidArguments, "Invalid scroll amount: %s", args.String("amount"))
	}

	doc, err := t.docs.Document(ctx)
	if err != nil {
		return "", err
	}

	pixels := scrollPixels[amount]
	if amount == scrollFull || direction == "bottom" {
		height, err := doc.ScrollHeight(ctx)
		if err != nil {
			return "", fmt.Errorf("read scroll height: %w", err)
		}
		pixels = height
	}

	switch direction {
	case "top":
		err = doc.ScrollTo(ctx, 0)
	case "bottom":
		err = doc.ScrollTo(ctx, pixels)
	case "up":
		err = doc.ScrollBy(ctx, -pixels)
	case "down":
		err = doc.ScrollBy(ctx, pixels)
	}
	if err != nil {
		return "", fmt.Errorf("scroll %s: %w", direction, err)
	}

	t.logger.Debug("Scrolled page", "direction", direction, "amount", amount, "pixels", pixels)
	return fmt.Sprintf("Scrolled %s by %s", direction, amount), nil
}
