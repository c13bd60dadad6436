package main

import (
	"github.com/spf13/cobra"
)

var appVersion = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "a2a-server",
		Short:         "Run an A2A agent server",
		Long:          "a2a-server serves an agent over the A2A protocol: JSON-RPC over HTTP, SSE streaming, WebSocket and push notifications.",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "path to configuration file (JSON or YAML)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCardCmd())
	return root
}
