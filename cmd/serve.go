package cmd

import (
	"os/signal"
	"syscall"

	"github.com/bnema/taskdump/internal/adapters/chat/httpapi"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(app *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API a chat bot talks to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			gin.SetMode(gin.ReleaseMode)
			server := httpapi.NewServer(app.orchestrator, httpapi.Options{
				Logger:    app.logger,
				Clock:     ports.SystemClock{},
				DedupeTTL: app.cfg.Server.DedupeTTL,
			})
			return server.Serve(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", app.cfg.Server.Listen, "Address to listen on")

	return cmd
}
