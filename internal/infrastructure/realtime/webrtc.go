package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.RealtimeTransport = (*WebRTCTransport)(nil)

const eventsChannel = "oai-events"

var errChannelClosed = errors.New("data channel closed")

// WebRTCTransport is a peer connection with one ordered data channel for
// events and one audio line.
type WebRTCTransport struct {
	opts   Options
	api    *Client
	logger output.LoggerPort

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	handler output.TransportHandler
	opened  bool
	closed  bool
	failed  chan error
	ready   chan struct{}
	done    chan struct{}
	audio   *audioPipe

	closeOnce  sync.Once
	notifyOnce sync.Once
}

func NewWebRTCTransport(opts Options, api *Client, logger output.LoggerPort) *WebRTCTransport {
	return &WebRTCTransport{
		opts:   opts,
		api:    api,
		logger: logger.WithField("component", "webrtc"),
		failed: make(chan error, 1),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *WebRTCTransport) Open(ctx context.Context, credential string, h output.TransportHandler) error {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()

	// The connect timeout covers the key exchange as well as negotiation.
	connectCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	key := credential
	if t.opts.EphemeralKey {
		var err error
		if key, err = t.api.EphemeralKey(connectCtx, credential); err != nil {
			return t.waitError(connectCtx, "session key", err)
		}
	}

	connected, err := t.setup()
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrTransportFailure, err)
	}

	if err := t.negotiate(connectCtx, key); err != nil {
		return t.waitError(connectCtx, "negotiation", err)
	}

	select {
	case <-connected:
	case err := <-t.failed:
		return fmt.Errorf("%w: %w", entity.ErrTransportFailure, err)
	case <-connectCtx.Done():
		return t.waitError(connectCtx, "connection", connectCtx.Err())
	}
	t.logger.Info("Peer connection established")
	t.audio.start(t.done)

	channelCtx, cancelChannel := context.WithTimeout(ctx, t.opts.ChannelTimeout)
	defer cancelChannel()

	select {
	case <-t.ready:
		return nil
	case err := <-t.failed:
		return fmt.Errorf("%w: %w", entity.ErrTransportFailure, err)
	case <-channelCtx.Done():
		return t.waitError(channelCtx, "data channel", channelCtx.Err())
	}
}

func (t *WebRTCTransport) setup() (<-chan struct{}, error) {
	cfg := webrtc.Configuration{}
	if t.opts.STUNServer != "" {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{t.opts.STUNServer}}}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	t.mu.Lock()
	t.pc = pc
	t.mu.Unlock()

	connected := make(chan struct{})
	var connectedOnce sync.Once
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.logger.Debug("Peer connection state", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateConnected:
			connectedOnce.Do(func() { close(connected) })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			t.lost(fmt.Errorf("peer connection %s", s))
		}
	})

	if t.audio, err = newAudioPipe(pc, t.opts, t.logger); err != nil {
		return nil, err
	}

	ordered := true
	dc, err := pc.CreateDataChannel(eventsChannel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnOpen(t.channelOpened)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case <-t.ready:
		case <-t.done:
			return
		}
		t.deliver(msg.Data)
	})
	dc.OnClose(func() { t.lost(errChannelClosed) })
	dc.OnError(func(err error) { t.lost(fmt.Errorf("data channel: %w", err)) })

	return connected, nil
}

func (t *WebRTCTransport) negotiate(ctx context.Context, key string) error {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := t.api.ExchangeSDP(ctx, key, t.pc.LocalDescription().SDP)
	if err != nil {
		return err
	}

	if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (t *WebRTCTransport) channelOpened() {
	t.mu.Lock()
	if t.closed || t.opened {
		t.mu.Unlock()
		return
	}
	t.opened = true
	h := t.handler
	t.mu.Unlock()

	t.logger.Info("Data channel opened", "label", eventsChannel)
	h.OnOpen()
	close(t.ready)
}

func (t *WebRTCTransport) deliver(data []byte) {
	ev, err := ParseEvent(data)
	if err != nil {
		t.logger.Warn("Dropping realtime message", "error", err)
		return
	}

	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	h.OnEvent(ev)
}

// lost reports a failure: to Open while it is waiting, to the handler once
// the channel is open. Nothing is reported after Close.
func (t *WebRTCTransport) lost(err error) {
	t.mu.Lock()
	closed, opened, h := t.closed, t.opened, t.handler
	t.mu.Unlock()

	if closed {
		return
	}
	if !opened {
		select {
		case t.failed <- err:
		default:
		}
		return
	}
	t.notifyOnce.Do(func() {
		t.logger.Warn("Realtime transport lost", "error", err)
		h.OnClose(err)
	})
}

func (t *WebRTCTransport) waitError(ctx context.Context, stage string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: waiting for %s", entity.ErrTransportFailure, entity.ErrTimeout, stage)
	}
	return fmt.Errorf("%w: %s: %w", entity.ErrTransportFailure, stage, err)
}

func (t *WebRTCTransport) Send(ctx context.Context, msg any) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	dc, opened, closed := t.dc, t.opened, t.closed
	t.mu.Unlock()

	if dc == nil || !opened || closed {
		return fmt.Errorf("%w: data channel is not open", entity.ErrTransportFailure)
	}
	if err := dc.SendText(string(data)); err != nil {
		return fmt.Errorf("%w: send: %w", entity.ErrTransportFailure, err)
	}
	return nil
}

// Close releases the channel and the connection. Both are attempted even if
// one fails.
func (t *WebRTCTransport) Close() error {
	var errs []error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		dc, pc, audio := t.dc, t.pc, t.audio
		t.mu.Unlock()

		close(t.done)
		if dc != nil {
			if err := dc.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close data channel: %w", err))
			}
		}
		if pc != nil {
			if err := pc.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close peer connection: %w", err))
			}
		}
		if audio != nil {
			if err := audio.close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
