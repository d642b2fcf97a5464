package main

import (
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/gexdex/internal/app"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				cfg.Server.Port = port
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Serve(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from config)")
	return cmd
}
