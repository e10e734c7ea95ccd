package entity

type ControlAction string

const (
	ActionStart             ControlAction = "start"
	ActionStop              ControlAction = "stop"
	ActionGetState          ControlAction = "get_state"
	ActionStatusUpdate      ControlAction = "status_update"
	ActionLastCommandUpdate ControlAction = "last_command_update"
)

type StatusKind string

const (
	StatusActive   StatusKind = "active"
	StatusInactive StatusKind = "inactive"
	StatusPending  StatusKind = "pending"
)

// ControlMessage is exchanged between the control surface and the voice
// controller. Which fields are set depends on Action.
type ControlMessage struct {
	Action  ControlAction `json:"action" jsonschema:"enum=start,enum=stop,enum=get_state,enum=status_update,enum=last_command_update"`
	TabID   TabID         `json:"tab_id,omitempty"`
	State   *VoiceState   `json:"state,omitempty"`
	Status  StatusKind    `json:"status,omitempty" jsonschema:"enum=active,enum=inactive,enum=pending"`
	Details string        `json:"details,omitempty"`
	Command string        `json:"command,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func StatusUpdate(status StatusKind, details string) ControlMessage {
	return ControlMessage{Action: ActionStatusUpdate, Status: status, Details: details}
}

func LastCommandUpdate(command string) ControlMessage {
	return ControlMessage{Action: ActionLastCommandUpdate, Command: command}
}
