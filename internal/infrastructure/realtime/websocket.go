package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.RealtimeTransport = (*WebSocketTransport)(nil)

// WebSocketTransport carries the same events over a websocket. It has no
// audio line, so it suits text sessions and environments without UDP.
type WebSocketTransport struct {
	opts   Options
	api    *Client
	logger output.LoggerPort

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	handler output.TransportHandler
	closed  bool

	closeOnce  sync.Once
	notifyOnce sync.Once
}

func NewWebSocketTransport(opts Options, api *Client, logger output.LoggerPort) *WebSocketTransport {
	return &WebSocketTransport{
		opts:   opts,
		api:    api,
		logger: logger.WithField("component", "websocket"),
	}
}

func (t *WebSocketTransport) Open(ctx context.Context, credential string, h output.TransportHandler) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+credential)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: t.opts.ConnectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, t.api.websocketURL(), headers)
	if err != nil {
		var netErr net.Error
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%w: %w: waiting for connection", entity.ErrTransportFailure, entity.ErrTimeout)
		}
		if resp != nil {
			return fmt.Errorf("%w: dial failed with status %d: %w", entity.ErrTransportFailure, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: dial failed: %w", entity.ErrTransportFailure, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.handler = h
	t.mu.Unlock()

	t.logger.Info("Connected to realtime websocket", "model", t.opts.Model)
	h.OnOpen()

	go t.readLoop(conn, h)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn, h output.TransportHandler) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.notifyOnce.Do(func() {
					t.logger.Warn("Realtime websocket lost", "error", err)
					h.OnClose(err)
				})
			}
			return
		}

		ev, err := ParseEvent(data)
		if err != nil {
			t.logger.Warn("Dropping realtime message", "error", err)
			continue
		}
		h.OnEvent(ev)
	}
}

func (t *WebSocketTransport) Send(ctx context.Context, msg any) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn, closed := t.conn, t.closed
	t.mu.Unlock()
	if conn == nil || closed {
		return fmt.Errorf("%w: websocket is not open", entity.ErrTransportFailure)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: send: %w", entity.ErrTransportFailure, err)
	}
	return nil
}

func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		conn := t.conn
		t.mu.Unlock()

		if conn == nil {
			return
		}

		t.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		err = conn.Close()
	})
	return err
}
