package input

import (
	"context"

	"voice-navigator/internal/domain/entity"
)

// VoiceController is the start/stop/get-state surface used by the CLI and
// the control server.
type VoiceController interface {
	Start(ctx context.Context) (entity.VoiceState, error)
	Stop(ctx context.Context) entity.VoiceState
	State() entity.VoiceState
}
