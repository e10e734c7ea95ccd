package entity

import (
	"encoding/json"
	"sort"
	"strings"
)

type ToolName string

const (
	ToolScrollPage   ToolName = "scroll_page"
	ToolClickElement ToolName = "click_element"
	ToolInjectCSS    ToolName = "inject_css"
	ToolReadPage     ToolName = "read_page"
)

func (t ToolName) String() string {
	return string(t)
}

type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamBoolean ParameterType = "boolean"
	ParamObject  ParameterType = "object"
	ParamNumber  ParameterType = "number"
)

// ParameterSpec describes one named argument of a tool.
type ParameterSpec struct {
	Type        ParameterType
	Description string
	Enum        []string
	Required    bool
	Default     any
}

// ToolDefinition is the registry entry announced to the realtime model.
// DeferredResult marks tools whose answer reaches the user through the
// session event stream instead of the result message.
type ToolDefinition struct {
	Name           ToolName
	Description    string
	Parameters     map[string]ParameterSpec
	DeferredResult bool
}

// FunctionTool is the wire shape of a ToolDefinition inside session.update.
type FunctionTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (d ToolDefinition) FunctionTool() FunctionTool {
	return FunctionTool{
		Type:        "function",
		Name:        d.Name.String(),
		Description: strings.TrimSpace(d.Description),
		Parameters:  d.JSONSchema(),
	}
}

// JSONSchema renders the full parameter schema shown to the model.
func (d ToolDefinition) JSONSchema() map[string]any {
	return d.schema(true)
}

// ValidationSchema renders the structural schema used to check inbound
// arguments: types and required names only. Enumerations are checked by the
// executors so they can answer with a specific message.
func (d ToolDefinition) ValidationSchema() map[string]any {
	return d.schema(false)
}

func (d ToolDefinition) schema(withEnums bool) map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	for _, name := range d.ParameterNames() {
		spec := d.Parameters[name]
		prop := map[string]any{"type": string(spec.Type)}
		if withEnums {
			if spec.Description != "" {
				prop["description"] = spec.Description
			}
			if len(spec.Enum) > 0 {
				prop["enum"] = spec.Enum
			}
			if spec.Default != nil {
				prop["default"] = spec.Default
			}
		}
		properties[name] = prop
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   d.RequiredNames(),
	}
}

func (d ToolDefinition) ParameterNames() []string {
	names := make([]string, 0, len(d.Parameters))
	for name := range d.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d ToolDefinition) RequiredNames() []string {
	required := []string{}
	for _, name := range d.ParameterNames() {
		if d.Parameters[name].Required {
			required = append(required, name)
		}
	}
	return required
}

// Arguments are decoded tool call arguments.
type Arguments map[string]any

func (a Arguments) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Arguments) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

func (a Arguments) Map(key string) map[string]any {
	v, _ := a[key].(map[string]any)
	return v
}

// ToolCallRequest is one function call requested by the remote session.
// RawArguments holds either a JSON object or a JSON string that contains the
// serialized object.
type ToolCallRequest struct {
	CallID       string
	Name         ToolName
	RawArguments json.RawMessage
}

type ResultStatus string

const (
	ResultOK    ResultStatus = "ok"
	ResultError ResultStatus = "error"
)

// ToolCallResult is the single outcome of one ToolCallRequest.
type ToolCallResult struct {
	Status   ResultStatus
	Message  string
	Cause    error
	Deferred bool
}

func Ok(message string) ToolCallResult {
	return ToolCallResult{Status: ResultOK, Message: message}
}

func Fail(cause error, message string) ToolCallResult {
	return ToolCallResult{Status: ResultError, Message: message, Cause: cause}
}

func (r ToolCallResult) IsError() bool {
	return r.Status == ResultError
}

// Instructions renders the result as the text sent back in response.create.
func (r ToolCallResult) Instructions() string {
	msg := strings.TrimRight(strings.TrimSpace(r.Message), ".")
	if r.IsError() {
		return "Error: " + msg + ". Please try a different approach or provide more specific instructions."
	}
	return "Command executed: " + msg + ". What else would you like me to do?"
}
