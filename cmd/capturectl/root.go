package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aura-capture/backend/pkg/client"
)

type commandContext struct {
	server  string
	timeout time.Duration
	doer    client.HTTPDoer
}

func (c *commandContext) client() *client.Client {
	doer := c.doer
	if doer == nil {
		doer = &http.Client{Timeout: c.timeout}
	}
	return client.New(c.server, doer)
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(nil)
}

func newRootCommandWith(doer client.HTTPDoer) *cobra.Command {
	ctx := &commandContext{doer: doer}

	rootCmd := &cobra.Command{
		Use:           "capturectl",
		Short:         "Upload screen recordings and follow them until they are shareable",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultServer := os.Getenv("CAPTURE_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", defaultServer, "API base URL (env CAPTURE_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", 30*time.Minute, "Per-request HTTP timeout")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))

	return rootCmd
}
