package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "directory-assistant",
		Short: "Corporate directory chat assistant",
		Long: `directory-assistant answers free-form questions about employees, events,
tasks, activities and company information. It classifies each question,
looks the answer up in the directory and replies in plain text.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newAskCmd(&configPath),
		newSeedCmd(&configPath),
		newReindexCmd(&configPath),
	)
	return root
}
