package entity

// RealtimeEvent is an inbound control-channel event after normalization.
// The concrete types are SessionCreated, FunctionCallArgumentsDone,
// ResponseOutput, ErrorEvent and OtherEvent.
type RealtimeEvent interface {
	EventType() string
}

type SessionCreated struct {
	SessionID string
}

func (SessionCreated) EventType() string { return "session.created" }

// FunctionCallArgumentsDone is a single top-level function call event.
type FunctionCallArgumentsDone struct {
	Call ToolCallRequest
}

func (FunctionCallArgumentsDone) EventType() string { return "response.function_call_arguments.done" }

// ResponseOutput carries the function calls found in a response output list.
type ResponseOutput struct {
	Type  string
	Calls []ToolCallRequest
}

func (e ResponseOutput) EventType() string { return e.Type }

type ErrorEvent struct {
	Code    string
	Message string
}

func (ErrorEvent) EventType() string { return "error" }

type OtherEvent struct {
	Type string
}

func (e OtherEvent) EventType() string { return e.Type }

// ToolCalls returns the requests carried by ev, if any.
func ToolCalls(ev RealtimeEvent) []ToolCallRequest {
	switch e := ev.(type) {
	case FunctionCallArgumentsDone:
		return []ToolCallRequest{e.Call}
	case ResponseOutput:
		return e.Calls
	}
	return nil
}

// Outbound messages.

type SessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type SessionConfig struct {
	Tools      []FunctionTool `json:"tools"`
	ToolChoice string         `json:"tool_choice"`
}

func NewSessionUpdate(defs []ToolDefinition) SessionUpdateMessage {
	tools := make([]FunctionTool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, d.FunctionTool())
	}
	return SessionUpdateMessage{
		Type: "session.update",
		Session: SessionConfig{
			Tools:      tools,
			ToolChoice: "auto",
		},
	}
}

type ResponseCreateMessage struct {
	Type     string         `json:"type"`
	Response ResponseConfig `json:"response"`
}

type ResponseConfig struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions"`
}

func NewResponseCreate(instructions string) ResponseCreateMessage {
	return ResponseCreateMessage{
		Type:     "response.create",
		Response: ResponseConfig{Instructions: instructions},
	}
}

type ConversationItemCreateMessage struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewUserTextItem(text string) ConversationItemCreateMessage {
	return ConversationItemCreateMessage{
		Type: "conversation.item.create",
		Item: ConversationItem{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}
