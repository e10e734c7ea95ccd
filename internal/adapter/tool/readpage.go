package tool

import (
	"context"
	"fmt"
	"strings"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/content"
)

var _ output.ToolPort = (*ReadPageTool)(nil)

const (
	readModeFull    = "full"
	readModeSummary = "summary"

	fullInstructions    = "Please read and explain the content of this page."
	summaryInstructions = "Please provide a brief summary of the main points from this page."
	summaryPrefix       = "Please provide a brief summary of this page content: "
)

type ReadPageTool struct {
	docs   output.DocumentProvider
	conv   output.ConversationPort
	logger output.LoggerPort
}

func NewReadPageTool(docs output.DocumentProvider, conv output.ConversationPort, logger output.LoggerPort) *ReadPageTool {
	return &ReadPageTool{docs: docs, conv: conv, logger: logger}
}

func (t *ReadPageTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name: entity.ToolReadPage,
		Description: `Read and understand the content of the current webpage.
The page is converted to markdown and either read out or summarized.`,
		Parameters: map[string]entity.ParameterSpec{
			"mode": {
				Type:        entity.ParamString,
				Description: "Whether to read the full content or just a summary",
				Enum:        []string{readModeFull, readModeSummary},
				Default:     readModeSummary,
			},
		},
		DeferredResult: true,
	}
}

func (t *ReadPageTool) Execute(ctx context.Context, args entity.Arguments) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(args.String("mode")))
	if mode == "" {
		mode = readModeSummary
	}
	if mode != readModeFull && mode != readModeSummary {
		return "", failure(entity.ErrInvalidArguments, "Invalid read mode: %s", args.String("mode"))
	}

	doc, err := t.docs.Document(ctx)
	if err != nil {
		return "", err
	}
	rawHTML, err := doc.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	pageURL, err := doc.URL(ctx)
	if err != nil {
		return "", fmt.Errorf("read page url: %w", err)
	}

	page, err := content.Extract(rawHTML, pageURL, nil)
	if err != nil {
		return "", err
	}

	text, instructions := content.Format(page), fullInstructions
	if mode == readModeSummary {
		text, instructions = summaryPrefix+text, summaryInstructions
	}

	if err := t.conv.SendUserTurn(ctx, text, instructions); err != nil {
		return "", fmt.Errorf("send page content: %w", err)
	}

	t.logger.Debug("Sent page content", "mode", mode, "url", pageURL, "chars", len(text))
	return "Processing page content...", nil
}
