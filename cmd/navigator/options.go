package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voice-navigator/internal/di"
	"voice-navigator/internal/infrastructure/storage/sqlite"
	"voice-navigator/internal/infrastructure/userinteraction"
	"voice-navigator/internal/usecase/session"
)

func newOptionsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "options", Short: "Manage the stored realtime API key"}

	setKey := &cobra.Command{
		Use:   "set-key [key]",
		Short: "Verify and store the API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSetKey,
	}
	setKey.Flags().Bool("no-verify", false, "store the key without checking it against the API")

	show := &cobra.Command{Use: "show", Short: "Show whether a key is stored", Args: cobra.NoArgs, RunE: runShowKey}
	clearKey := &cobra.Command{Use: "clear", Short: "Remove the stored key", Args: cobra.NoArgs, RunE: runClearKey}

	cmd.AddCommand(setKey, show, clearKey)
	return cmd
}

func openStore(cmd *cobra.Command) (*sqlite.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := di.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cmd.Context(), cfg.Store.Path)
}

func runSetKey(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	noVerify, _ := cmd.Flags().GetBool("no-verify")

	key := ""
	if len(args) == 1 {
		key = args[0]
	} else {
		console := userinteraction.NewConsole(cmd.InOrStdin(), cmd.ErrOrStderr())
		answer, err := console.AskQuestion(cmd.Context(), "API key:")
		if err != nil {
			return err
		}
		key = answer
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("please enter an API key")
	}

	cfg, err := di.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if !noVerify {
		log, err := di.NewLogger(cfg, "options")
		if err != nil {
			return err
		}
		defer log.Close()

		if err := di.NewKeyVerifier(cfg, log).Verify(cmd.Context(), key); err != nil {
			return fmt.Errorf("key not saved: %w", err)
		}
	}

	store, err := sqlite.Open(cmd.Context(), cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(cmd.Context(), session.CredentialKey, key); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
	return nil
}

func runShowKey(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := store.Get(cmd.Context(), session.CredentialKey)
	if errors.Is(err, sqlite.ErrNotFound) || (err == nil && key == "") {
		fmt.Fprintln(cmd.OutOrStdout(), "No API key stored")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key:", mask(key))
	return nil
}

func runClearKey(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), session.CredentialKey); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
	return nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}
