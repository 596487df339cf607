package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskboard/api/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "taskboard-api",
		Short:         "Task board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (environment variables override it)")

	loadConfig := func() (config.Config, error) {
		if configPath == "" {
			return config.Load(), nil
		}
		return config.LoadFile(configPath)
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newMigrateCmd(loadConfig),
	)
	return root
}
