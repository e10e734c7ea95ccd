package realtime

import (
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/infrastructure/config"
)

var _ output.TransportFactory = (*Factory)(nil)

// Factory builds a fresh transport for every session start.
type Factory struct {
	opts   Options
	api    *Client
	logger output.LoggerPort
}

func NewFactory(opts Options, logger output.LoggerPort) *Factory {
	return &Factory{
		opts:   opts,
		api:    NewClient(opts, logger),
		logger: logger,
	}
}

func (f *Factory) NewTransport() output.RealtimeTransport {
	if f.opts.Transport == config.TransportWebSocket {
		return NewWebSocketTransport(f.opts, f.api, f.logger)
	}
	return NewWebRTCTransport(f.opts, f.api, f.logger)
}
