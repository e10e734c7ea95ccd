package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.ToolPort = (*StyleTool)(nil)

const styleIDPrefix = "voice-nav-style-"

type StyleTool struct {
	docs   output.DocumentProvider
	logger output.LoggerPort
	newID  func() string
}

func NewStyleTool(docs output.DocumentProvider, logger output.LoggerPort) *StyleTool {
	return &StyleTool{
		docs:   docs,
		logger: logger,
		newID:  func() string { return styleIDPrefix + uuid.NewString() },
	}
}

func (t *StyleTool) Definition() entity.ToolDefinition {
	return entity.ToolDefinition{
		Name: entity.ToolInjectCSS,
		Description: `Inject CSS styles into the page to change how elements look.
Examples:
- "Make the background dark" -> inject_css({ selector: "body", css: "background-color: #1a1a1a; color: #ffffff;" })
- "Increase text size" -> inject_css({ selector: "p, h1, h2, h3", properties: { "font-size": "1.2em" } })`,
		Parameters: map[string]entity.ParameterSpec{
			"selector": {
				Type:        entity.ParamString,
				Description: `CSS selector to target elements (e.g., "body", ".class-name", "#id", "p, h1")`,
				Required:    true,
			},
			"css": {
				Type:        entity.ParamString,
				Description: `CSS declarations to apply (e.g., "color: red; font-size: 16px;")`,
			},
			"properties": {
				Type:        entity.ParamObject,
				Description: "CSS properties as a name to value map, used when css is not given",
			},
			"important": {
				Type:        entity.ParamBoolean,
				Description: "Mark every declaration !important",
				Default:     false,
			},
		},
	}
}

func (t *StyleTool) Execute(ctx context.Context, args entity.Arguments) (string, error) {
	selector := strings.TrimSpace(args.String("selector"))
	if selector == "" {
		return "", failure(entity.ErrInvalidArguments, "Missing selector")
	}

	declarations := Declarations(args.String("css"), args.Map("properties"), args.Bool("important"))
	if declarations == "" {
		return "", failure(entity.ErrInvalidArguments, "Missing styles for %q", selector)
	}

	doc, err := t.docs.Document(ctx)
	if err != nil {
		return "", err
	}

	id := t.newID()
	rule := fmt.Sprintf("%s { %s }", selector, declarations)
	if err := doc.InjectStyle(ctx, id, rule); err != nil {
		return "", fmt.Errorf("inject style: %w", err)
	}

	t.logger.Debug("Injected style", "id", id, "rule", rule)
	return fmt.Sprintf("Applied styles to %q", selector), nil
}

// Declarations renders raw css or a property map as "name: value;" text.
// Raw css wins when both are given.
func Declarations(css string, properties map[string]any, important bool) string {
	var decls []string
	if css = strings.TrimSpace(css); css != "" {
		for _, d := range strings.Split(css, ";") {
			if d = strings.TrimSpace(d); d != "" {
				decls = append(decls, d)
			}
		}
	} else {
		names := make([]string, 0, len(properties))
		for name := range properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			value := strings.TrimSpace(fmt.Sprint(properties[name]))
			if value == "" {
				continue
			}
			decls = append(decls, strings.TrimSpace(name)+": "+value)
		}
	}

	for i, d := range decls {
		if important && !strings.HasSuffix(strings.ToLower(d), "!important") {
			d += " !important"
		}
		decls[i] = d + ";"
	}
	return strings.Join(decls, " ")
}
