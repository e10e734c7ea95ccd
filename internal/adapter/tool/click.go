package tool

import (
	"context"
	"fmt"
	"strings"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.ToolPort = (*ClickTool)(nil)

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "menuitem": true, "tab": true, "checkbox": true,
}

// elementMatchers maps an element_type value to the elements it covers.
var elementMatchers = map[string]func(entity.ElementInfo) bool{
	"any": func(e entity.ElementInfo) bool {
		switch e.Tag {
		case "A", "BUTTON", "INPUT", "SELECT", "TEXTAREA", "SUMMARY", "LABEL":
			return true
		}
		return interactiveRoles[e.Role]
	},
	"input": func(e entity.ElementInfo) bool {
		return e.Tag == "INPUT" || e.Tag == "TEXTAREA" || e.Tag == "SELECT"
	},
	"button": func(e entity.ElementInfo) bool {
		return e.Tag == "BUTTON" || e.Role == "button" ||
			(e.Tag == "INPUT" && (e.Type == "submit" || e.Type == "button"))
	},
	"link": func(e entity.ElementInfo) bool {
		return e.Tag == "A" || e.Role == "link"
	},
	"heading": func(e entity.ElementInfo) bool {
		switch e.Tag {
		case "H1", "H2", "H3", "H4", "H5", "H6":
			return true
		}
		return e.Role == "heading"
	},
	"paragraph": func(e entity.ElementInfo) bool {
		return e.Tag == "P"
	},
	"list": func(e entity.ElementInfo) bool {
		return e.Tag == "UL" || e.Tag == "OL"
	},
}

type ClickTool struct {
	docs   output.DocumentProvider
	logger output.LoggerPort
}

func NewClickTool(docs output.DocumentProvider, logger output.LoggerPort) *ClickTool {
	return &ClickTool{docs: docs, logger: logger}
}

func (t *ClickTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name:        entity.ToolClickElement,
		Description: "Click a visible element on the page by its text content. A CSS selector is accepted as well.",
		Parameters: map[string]entity.ParameterSpec{
			"text": {
				Type:        entity.ParamString,
				Description: "The text content of the element to click, or a CSS selector",
				Required:    true,
			},
			"element_type": {
				Type:        entity.ParamString,
				Description: "Kind of element to look for",
				Enum:        []string{"any", "input", "button", "link", "heading", "paragraph", "list"},
				Default:     "any",
			},
		},
	}
}

func (t *ClickTool) Execute(ctx context.Context, args entity.Arguments) (string, error) {
	text := strings.TrimSpace(args.String("text"))
	if text == "" {
		return "", failure(entity.ErrInvalidArguments, "Missing text of the element to click")
	}
	elementType := strings.ToLower(strings.TrimSpace(args.String("element_type")))
	if elementType == "" {
		elementType = "any"
	}
	matches, ok := elementMatchers[elementType]
	if !ok {
		return "", failure(entity.ErrInvalidArguments, "Invalid element type: %s", args.String("element_type"))
	}

	doc, err := t.docs.Document(ctx)
	if err != nil {
		return "", err
	}

	ref, err := t.resolve(ctx, doc, text, matches)
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", failure(entity.ErrElementNotFound, "Could not find element")
	}

	if err := doc.Activate(ctx, ref); err != nil {
		return "", fmt.Errorf("activate %s: %w", ref, err)
	}

	t.logger.Debug("Clicked element", "text", text, "element_type", elementType, "ref", ref)
	return fmt.Sprintf("Clicked %s element matching %q", elementType, text), nil
}

// resolve tries text as a selector first, then scans elements in document
// order for the first one of the right kind whose text contains it.
func (t *ClickTool) resolve(ctx context.Context, doc output.DocumentPort, text string, matches func(entity.ElementInfo) bool) (string, error) {
	ref, found, err := doc.Query(ctx, text)
	if err != nil {
		return "", fmt.Errorf("query %q: %w", text, err)
	}
	if found {
		return ref, nil
	}

	elements, err := doc.Elements(ctx)
	if err != nil {
		return "", fmt.Errorf("list elements: %w", err)
	}

	needle := strings.ToLower(text)
	for _, e := range elements {
		if matches(e) && strings.Contains(strings.ToLower(e.Text), needle) {
			return e.Ref, nil
		}
	}
	return "", nil
}
