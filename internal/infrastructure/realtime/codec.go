// Package realtime connects to the OpenAI Realtime API and normalizes the
// events of its control channel.
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"voice-navigator/internal/domain/entity"
)

type wireCall struct {
	Type      string          `json:"type"`
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireEvent struct {
	Type    string `json:"type"`
	Session *struct {
		ID string `json:"id"`
	} `json:"session"`

	wireCall
	FunctionCall *wireCall `json:"function_call"`

	Output   []wireCall `json:"output"`
	Response *struct {
		Output []wireCall `json:"output"`
	} `json:"response"`

	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one control-channel message. Function calls are
// accepted as top-level events, as a nested "function_call" object, and as
// items of a response output list.
func ParseEvent(data []byte) (entity.RealtimeEvent, error) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode realtime event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("decode realtime event: missing type")
	}

	switch ev.Type {
	case "session.created":
		created := entity.SessionCreated{}
		if ev.Session != nil {
			created.SessionID = ev.Session.ID
		}
		return created, nil

	case "response.function_call_arguments.done", "function_call":
		call := ev.wireCall
		if ev.FunctionCall != nil {
			call = *ev.FunctionCall
		}
		if call.Name == "" {
			return nil, fmt.Errorf("decode %s: missing function name", ev.Type)
		}
		return entity.FunctionCallArgumentsDone{Call: toRequest(call)}, nil

	case "response.output", "response.done":
		items := ev.Output
		if ev.Response != nil {
			items = ev.Response.Output
		}
		out := entity.ResponseOutput{Type: ev.Type}
		for _, item := range items {
			if item.Type == "function_call" && item.Name != "" {
				out.Calls = append(out.Calls, toRequest(item))
			}
		}
		return out, nil

	case "error":
		e := entity.ErrorEvent{}
		if ev.Error != nil {
			e.Code, e.Message = ev.Error.Code, ev.Error.Message
		}
		return e, nil
	}

	return entity.OtherEvent{Type: ev.Type}, nil
}

func toRequest(c wireCall) entity.ToolCallRequest {
	return entity.ToolCallRequest{
		CallID:       c.CallID,
		Name:         entity.ToolName(c.Name),
		RawArguments: bytes.Clone(c.Arguments),
	}
}

// EncodeMessage serializes an outbound control-channel message.
func EncodeMessage(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode realtime message: %w", err)
	}
	return data, nil
}
