// Gray Logic Hub polls REST/JSON devices on a schedule and republishes
// their data as entities over MQTT, WebSocket and a small HTTP API.
//
// Usage:
//
//	graylogic-hub run -c config.yaml                  # start the hub
//	graylogic-hub validate -c config.yaml             # check a config file
//	graylogic-hub token --role operator -s dashboard  # mint an API token
//	graylogic-hub version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of tests.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "graylogic-hub",
		Short: "Polling data hub for REST/JSON devices",
		Long: `Gray Logic Hub polls REST/JSON devices on a schedule and republishes
their data as entities.

Each configured entry is one device. Every data category of a device is
polled by its own coordinator; sensors map JSON paths in the category
payload to entities. Entity states are published retained on MQTT,
streamed over WebSocket and served by the HTTP API.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", configPathFromEnv(), "path to config file")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// configPathFromEnv returns GRAYLOGIC_CONFIG if set, otherwise the default.
func configPathFromEnv() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "graylogic-hub %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already printed the error.
		os.Exit(1)
	}
}
