package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voice-navigator/internal/infrastructure/browser/memdoc"
	"voice-navigator/internal/infrastructure/logger"
	"voice-navigator/internal/usecase/replay"
)

func newReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <page.html> <calls.json>",
		Short: "Run recorded function calls against a saved page, without a session",
		Args:  cobra.ExactArgs(2),
		RunE:  runReplay,
	}
	cmd.Flags().String("url", "https://replay.local/", "URL the page is treated as coming from")
	cmd.Flags().String("dump", "", "write the resulting HTML to this file")
	cmd.Flags().BoolP("verbose", "v", false, "log each call to stderr")
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	pageURL, _ := cmd.Flags().GetString("url")
	dump, _ := cmd.Flags().GetString("dump")
	verbose, _ := cmd.Flags().GetBool("verbose")

	page, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	calls, err := replay.ParseCalls(data)
	if err != nil {
		return err
	}

	doc, err := memdoc.New(pageURL, string(page))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerAdapter(logger.Options{Name: "replay", Console: verbose, Level: "debug"})
	if err != nil {
		return err
	}
	defer log.Close()

	out := cmd.OutOrStdout()
	steps, err := replay.New(doc, out, log).Run(cmd.Context(), calls)
	for _, step := range steps {
		fmt.Fprintf(out, "%s %s: %s\n", step.Call.CallID, step.Call.Name, step.Result.Instructions())
	}
	if err != nil {
		return err
	}

	if dump != "" {
		html, err := doc.HTML(cmd.Context())
		if err != nil {
			return err
		}
		if err := os.WriteFile(dump, []byte(html), 0o644); err != nil {
			return err
		}
	}
	return nil
}
