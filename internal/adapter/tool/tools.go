// Package tool holds the DOM actions the realtime model can call.
package tool

import (
	"fmt"

	"voice-navigator/internal/application/port/output"
)

// NewBrowserTools builds the four tools against the document of the tab
// voice control is bound to.
func NewBrowserTools(docs output.DocumentProvider, conv output.ConversationPort, logger output.LoggerPort) []output.ToolPort {
	return []output.ToolPort{
		NewScrollTool(docs, logger),
		NewClickTool(docs, logger),
		NewStyleTool(docs, logger),
		NewReadPageTool(docs, conv, logger),
	}
}

// toolError carries the message spoken back to the model and the sentinel
// it belongs to.
type toolError struct {
	msg   string
	cause error
}

func (e *toolError) Error() string { return e.msg }
func (e *toolError) Unwrap() error { return e.cause }

func failure(cause error, format string, args ...any) error {
	return &toolError{msg: fmt.Sprintf(format, args...), cause: cause}
}
