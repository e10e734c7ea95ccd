package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.StatusSink = (*Console)(nil)

// Console shows voice status in the terminal and reads answers from the user.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	reader *bufio.Reader
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		out:    out,
		reader: bufio.NewReader(in),
	}
}

func (c *Console) AskQuestion(ctx context.Context, question string) (string, error) {
	c.mu.Lock()
	fmt.Fprintf(c.out, "%s ", question)
	c.mu.Unlock()

	answer, err := c.reader.ReadString('\n')
	if err != nil && answer == "" {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (c *Console) Publish(msg entity.ControlMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case entity.ActionStatusUpdate:
		statusColor(msg.Status).Fprintf(c.out, "● %s", statusLabel(msg.Status))
		if msg.Details != "" {
			color.New(color.Faint).Fprintf(c.out, " %s", msg.Details)
		}
		fmt.Fprintln(c.out)
	case entity.ActionLastCommandUpdate:
		name, result, _ := strings.Cut(msg.Command, ": ")
		icon := toolIcon(entity.ToolName(name))
		color.New(color.FgYellow, color.Bold).Fprintf(c.out, "%s %s", icon, name)
		if result != "" {
			fmt.Fprintf(c.out, " %s", truncate(result, 120))
		}
		fmt.Fprintln(c.out)
	}
}

func statusColor(status entity.StatusKind) *color.Color {
	switch status {
	case entity.StatusActive:
		return color.New(color.FgGreen, color.Bold)
	case entity.StatusPending:
		return color.New(color.FgCyan)
	}
	return color.New(color.FgRed)
}

func statusLabel(status entity.StatusKind) string {
	switch status {
	case entity.StatusActive:
		return "Listening"
	case entity.StatusPending:
		return "Connecting"
	}
	return "Voice off"
}

func toolIcon(name entity.ToolName) string {
	icons := map[entity.ToolName]string{
		entity.ToolScrollPage:   "📜",
		entity.ToolClickElement: "🖱️",
		entity.ToolInjectCSS:    "🎨",
		entity.ToolReadPage:     "📖",
	}
	if icon, ok := icons[name]; ok {
		return icon
	}
	return "🔧"
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
