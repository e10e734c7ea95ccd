package entity

type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionConnecting SessionState = "connecting"
	SessionActive     SessionState = "active"
	SessionClosing    SessionState = "closing"
)

func (s SessionState) String() string {
	return string(s)
}

type TabID string

// VoiceState is what get_state reports.
type VoiceState struct {
	TabID     TabID        `json:"tab_id,omitempty"`
	URL       string       `json:"url,omitempty"`
	State     SessionState `json:"state"`
	Listening bool         `json:"listening"`
}
