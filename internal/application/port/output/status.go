package output

import "voice-navigator/internal/domain/entity"

// StatusSink receives status_update and last_command_update messages.
type StatusSink interface {
	Publish(msg entity.ControlMessage)
}
