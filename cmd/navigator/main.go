package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "navigator",
		Short:         "Voice control for the browser over a realtime speech session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "navigator.yaml", "path to the YAML config file")

	root.AddCommand(newRunCommand())
	root.AddCommand(newOptionsCommand())
	root.AddCommand(newReplayCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
