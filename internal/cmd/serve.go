package cmd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/server"
	"github.com/dotcommander/agentgraph/internal/session"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve blueprint runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireConfig(); err != nil {
				return err
			}
			svc, err := session.New(rt.cfg, config.EnvCredentials{})
			if err != nil {
				return errs.Wrap(err, "Could not start the run service.")
			}

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              rt.cfg.Listen,
				Handler:           server.NewRouter(svc, rt.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			rt.logger.Info("listening", "addr", rt.cfg.Listen, "transcripts", rt.cfg.RecordTranscripts)
			if err := server.Serve(cmd.Context(), srv, shutdownGrace); err != nil {
				return errs.Wrap(err, "The HTTP server stopped unexpectedly.")
			}
			rt.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Listen, "listen", rt.cfg.Listen, present.StdoutStyles().FlagDesc.Render(helpText["listen"]))
	cmd.Flags().BoolVar(&rt.cfg.RecordTranscripts, "record", rt.cfg.RecordTranscripts, present.StdoutStyles().FlagDesc.Render(helpText["record"]))
	return cmd
}
