package output

import (
	"context"

	"voice-navigator/internal/domain/entity"
)

// TransportHandler receives transport callbacks. OnEvent is called serially
// in arrival order.
type TransportHandler interface {
	OnOpen()
	OnEvent(ev entity.RealtimeEvent)
	OnClose(err error)
}

// RealtimeTransport is one realtime session connection.
type RealtimeTransport interface {
	// Open performs the handshake and returns once the control channel is
	// open. Every wait is bounded.
	Open(ctx context.Context, credential string, h TransportHandler) error
	Send(ctx context.Context, msg any) error
	Close() error
}

type TransportFactory interface {
	NewTransport() RealtimeTransport
}
