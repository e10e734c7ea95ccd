package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voice-navigator/internal/di"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the browser and serve the control surface",
		RunE:  runRun,
	}
	cmd.Flags().String("url", "", "page to open (defaults to browser.start_url)")
	cmd.Flags().Bool("start", false, "start voice control as soon as the page is open")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	url, _ := cmd.Flags().GetString("url")
	autoStart, _ := cmd.Flags().GetBool("start")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, di.Options{
		ConfigPath: configPath,
		LogName:    "run",
		StatusOut:  cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer container.Close()
	log := container.Logger

	if url == "" {
		url = container.Config.Browser.StartURL
	}
	tab, err := container.Browser.OpenTab(ctx, url)
	if err != nil {
		return err
	}
	log.Info("Tab opened", "tab", tab.ID, "url", tab.URL)

	go func() {
		if err := container.Browser.Watch(ctx, container.Controller); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("Tab watch stopped", "error", err)
		}
	}()

	if autoStart {
		if _, err := container.Controller.Start(ctx); err != nil {
			log.Error("Voice control did not start", "error", err)
			fmt.Fprintln(cmd.ErrOrStderr(), "Voice control did not start:", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Control surface on ws://%s/control\n", container.Config.Control.Addr)
	if err := container.Control.Run(ctx); err != nil {
		return err
	}
	log.Info("Shutting down")
	return nil
}
