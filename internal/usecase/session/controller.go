package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"voice-navigator/internal/application/port/input"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var (
	_ input.VoiceController   = (*Controller)(nil)
	_ output.DocumentProvider = (*Controller)(nil)
	_ output.ConversationPort = (*Controller)(nil)
)

// Pages under these schemes cannot host voice control.
var nonInjectablePrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-search://",
	"devtools://",
}

func Injectable(url string) bool {
	for _, p := range nonInjectablePrefixes {
		if strings.HasPrefix(url, p) {
			return false
		}
	}
	return true
}

// Controller keeps voice control bound to one tab. It is also the document
// and conversation the tools work against.
type Controller struct {
	tabs   output.TabPort
	deps   Deps
	logger output.LoggerPort

	mu     sync.Mutex
	tab    entity.TabID
	url    string
	bridge *Bridge
}

func NewController(tabs output.TabPort, deps Deps, logger output.LoggerPort) *Controller {
	if deps.Status == nil {
		deps.Status = nopSink{}
	}
	return &Controller{
		tabs:   tabs,
		deps:   deps,
		logger: logger.WithField("component", "controller"),
	}
}

// Start binds voice control to the active tab and starts its session.
func (c *Controller) Start(ctx context.Context) (entity.VoiceState, error) {
	info, err := c.tabs.ActiveTab(ctx)
	if err != nil {
		c.deps.Status.Publish(entity.StatusUpdate(entity.StatusInactive, "No active tab"))
		return c.State(), err
	}

	if !Injectable(info.URL) {
		c.deps.Status.Publish(entity.ControlMessage{
			Action:  entity.ActionStatusUpdate,
			TabID:   info.ID,
			Status:  entity.StatusInactive,
			Details: "Voice navigation is not available on this page",
		})
		return c.State(), fmt.Errorf("%s: %w", info.URL, entity.ErrNotInjectable)
	}

	c.mu.Lock()
	old := c.bridge
	if old != nil && c.tab == info.ID {
		c.url = info.URL
		c.mu.Unlock()
		_, err := old.Start(ctx)
		return c.State(), err
	}
	bridge := NewBridge(info.ID, c.deps, c.logger)
	c.tab, c.url, c.bridge = info.ID, info.URL, bridge
	c.mu.Unlock()

	if old != nil {
		old.Stop(ctx)
	}

	c.logger.Info("Binding voice control", "tab", info.ID, "url", info.URL)
	_, err = bridge.Start(ctx)
	return c.State(), err
}

func (c *Controller) Stop(ctx context.Context) entity.VoiceState {
	c.mu.Lock()
	bridge := c.bridge
	c.mu.Unlock()

	if bridge != nil {
		bridge.Stop(ctx)
	}
	return c.State()
}

func (c *Controller) State() entity.VoiceState {
	c.mu.Lock()
	tab, url, bridge := c.tab, c.url, c.bridge
	c.mu.Unlock()

	state := entity.SessionIdle
	if bridge != nil {
		state = bridge.State()
	}
	return entity.VoiceState{
		TabID:     tab,
		URL:       url,
		State:     state,
		Listening: state == entity.SessionActive,
	}
}

// TabActivated moves an active session to the newly focused tab. The old
// session is stopped before the new one starts.
func (c *Controller) TabActivated(ctx context.Context, id entity.TabID) error {
	c.mu.Lock()
	bridge, same := c.bridge, c.tab == id
	c.mu.Unlock()

	if same || bridge == nil || bridge.State() == entity.SessionIdle {
		return nil
	}

	c.logger.Info("Active tab changed", "tab", id)
	bridge.Stop(ctx)
	_, err := c.Start(ctx)
	return err
}

// TabClosed stops the session when its tab goes away.
func (c *Controller) TabClosed(ctx context.Context, id entity.TabID) {
	c.mu.Lock()
	if c.tab != id {
		c.mu.Unlock()
		return
	}
	bridge := c.bridge
	c.tab, c.url, c.bridge = "", "", nil
	c.mu.Unlock()

	c.logger.Info("Bound tab closed", "tab", id)
	if bridge != nil {
		bridge.Stop(ctx)
	}
}

func (c *Controller) Document(ctx context.Context) (output.DocumentPort, error) {
	c.mu.Lock()
	tab := c.tab
	c.mu.Unlock()

	if tab == "" {
		return nil, entity.ErrNoTab
	}
	return c.tabs.Document(ctx, tab)
}

func (c *Controller) SendUserTurn(ctx context.Context, text, instructions string) error {
	c.mu.Lock()
	bridge := c.bridge
	c.mu.Unlock()

	if bridge == nil {
		return entity.ErrNoActiveSession
	}
	return bridge.SendUserTurn(ctx, text, instructions)
}
