package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"voice-navigator/internal/adapter/tool"
	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/application/service"
	"voice-navigator/internal/domain/entity"
	"voice-navigator/internal/infrastructure/browser/rod"
	"voice-navigator/internal/infrastructure/config"
	"voice-navigator/internal/infrastructure/control"
	"voice-navigator/internal/infrastructure/env"
	"voice-navigator/internal/infrastructure/llm/openai"
	"voice-navigator/internal/infrastructure/logger"
	"voice-navigator/internal/infrastructure/realtime"
	"voice-navigator/internal/infrastructure/storage/sqlite"
	"voice-navigator/internal/infrastructure/userinteraction"
	"voice-navigator/internal/usecase/dispatcher"
	"voice-navigator/internal/usecase/session"
)

type Options struct {
	ConfigPath string
	LogName    string

	// Tabs replaces the launched browser, e.g. with an in-memory one.
	Tabs output.TabPort
	// Transports replaces the realtime transport factory.
	Transports output.TransportFactory
	// NoControl skips the control server.
	NoControl bool
	// StatusOut, when set, also prints status updates there.
	StatusOut io.Writer
}

type Container struct {
	Config     config.Config
	Logger     *logger.LoggerAdapter
	Store      *sqlite.Store
	Tabs       output.TabPort
	Browser    *rod.BrowserAdapter
	Tools      *service.ToolRegistryImpl
	Dispatcher *dispatcher.UseCase
	Controller *session.Controller
	Status     *control.Broadcaster
	Control    *control.Server
}

// LoadConfig reads the YAML config and applies environment overrides.
func LoadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(env.NewEnvService())
	return cfg, cfg.Validate()
}

func NewLogger(cfg config.Config, name string) (*logger.LoggerAdapter, error) {
	log, err := logger.NewLoggerAdapter(logger.Options{
		Dir:     cfg.Log.Dir,
		Name:    name,
		Console: cfg.Log.Console,
		Level:   cfg.Log.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

func NewKeyVerifier(cfg config.Config, log output.LoggerPort) *openai.KeyVerifier {
	return openai.NewKeyVerifier(openai.Config{
		BaseURL: cfg.Realtime.BaseURL,
		Model:   cfg.Realtime.Model,
		Logger:  log,
	})
}

func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	name := opts.LogName
	if name == "" {
		name = "navigator"
	}
	log, err := NewLogger(cfg, name)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: log}

	c.Store, err = sqlite.Open(ctx, cfg.Store.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	c.Tabs = opts.Tabs
	if c.Tabs == nil {
		c.Browser, err = rod.NewBrowserAdapter(ctx, rod.BrowserConfig{
			Headless:   cfg.Browser.Headless,
			SlowMotion: cfg.Browser.SlowMotion,
			Timeout:    cfg.Browser.Timeout,
		}, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create browser: %w", err)
		}
		c.Tabs = c.Browser
	}

	transports := opts.Transports
	if transports == nil {
		transports = realtime.NewFactory(realtime.OptionsFromConfig(cfg), log)
	}

	c.Status = control.NewBroadcaster(log)
	var status output.StatusSink = c.Status
	if opts.StatusOut != nil {
		status = statusTee{c.Status, userinteraction.NewConsole(os.Stdin, opts.StatusOut)}
	}
	c.Tools = service.NewToolRegistry()
	c.Dispatcher = dispatcher.New(c.Tools, log)
	c.Controller = session.NewController(c.Tabs, session.Deps{
		Credentials:    c.Store,
		Transports:     transports,
		Dispatcher:     c.Dispatcher,
		Tools:          c.Tools,
		Status:         status,
		CommandsPerSec: cfg.Realtime.CommandsPerSec,
		CommandBurst:   cfg.Realtime.CommandBurst,
	}, log)

	if err := c.Tools.RegisterTools(tool.NewBrowserTools(c.Controller, c.Controller, log)...); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	if !opts.NoControl {
		c.Control = control.NewServer(cfg.Control.Addr, c.Controller, c.Status, log)
	}
	return c, nil
}

func (c *Container) Close() {
	if c.Controller != nil {
		c.Controller.Stop(context.Background())
	}
	if c.Browser != nil {
		c.Browser.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && c.Logger != nil {
			c.Logger.Warn("Store close failed", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}

type statusTee []output.StatusSink

func (t statusTee) Publish(msg entity.ControlMessage) {
	for _, sink := range t {
		sink.Publish(msg)
	}
}
