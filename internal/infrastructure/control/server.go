package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"

	"voice-navigator/internal/application/port/input"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

const actionTimeout = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     localOrigin,
}

// localOrigin admits clients without an Origin header and pages served from
// the loopback host. Any other web page is refused.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Server is the local control surface: a websocket speaking ControlMessage
// plus a few read-only HTTP endpoints.
type Server struct {
	voice  input.VoiceController
	hub    *Broadcaster
	logger output.LoggerPort
	server *http.Server
}

func NewServer(addr string, voice input.VoiceController, hub *Broadcaster, logger output.LoggerPort) *Server {
	s := &Server{
		voice:  voice,
		hub:    hub,
		logger: logger.WithField("component", "control"),
	}

	httpLogger := httplog.NewLogger("voice-navigator", httplog.Options{
		JSON:    true,
		Concise: true,
	}).Output(os.Stderr)

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(httpLogger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/state", s.handleState)
	r.Get("/schema", handleSchema)
	r.Get("/control", s.handleControl)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.logger.Info("Control server listening", "addr", ln.Addr().String())

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(ln)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control shutdown: %w", err)
	}
	if err := <-done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.voice.State())
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	writeJSON(w, http.StatusOK, reflector.Reflect(&entity.ControlMessage{}))
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msg entity.ControlMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("Control write failed", "error", err)
		}
	}

	updates, cancel := s.hub.Subscribe()
	defer cancel()
	go func() {
		for msg := range updates {
			write(msg)
		}
	}()

	if last, ok := s.hub.LastStatus(); ok {
		write(last)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in entity.ControlMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			write(entity.ControlMessage{Error: "invalid JSON"})
			continue
		}
		write(s.apply(r.Context(), in))
	}
}

// apply runs one control request and returns the reply, which always
// carries the resulting state.
func (s *Server) apply(ctx context.Context, in entity.ControlMessage) entity.ControlMessage {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	reply := entity.ControlMessage{Action: in.Action}
	var state entity.VoiceState

	switch in.Action {
	case entity.ActionStart:
		var err error
		state, err = s.voice.Start(ctx)
		if err != nil {
			s.logger.Warn("Start failed", "error", err)
			reply.Error = err.Error()
		}
	case entity.ActionStop:
		state = s.voice.Stop(ctx)
	case entity.ActionGetState:
		state = s.voice.State()
	default:
		reply.Error = fmt.Sprintf("unknown action: %q", in.Action)
		state = s.voice.State()
	}

	reply.TabID = state.TabID
	reply.State = &state
	return reply
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
