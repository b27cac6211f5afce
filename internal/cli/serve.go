package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Conceptual-Machines/nearfield-gen/internal/api"
	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

var serveBindings = []flagBinding{
	{config.KeyPort, "port"},
	{config.KeyDatabaseURL, "database-url"},
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview server",
		Long:  "Serve the parameter schema, parameter samples and single rendered images over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd, serveBindings)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, a.version)
		},
	}

	cmd.Flags().String("port", a.v.GetString(config.KeyPort), "Port to listen on")
	cmd.Flags().String("database-url", "", "Postgres URL, reported by /health")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, version string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = openDatabase(cfg.DatabaseURL); err != nil {
			sentry.CaptureException(err)
			return err
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	counters := &metrics.Counters{}
	router, err := api.SetupRouter(db, cfg, counters, newRecorder(ctx, cfg, counters), version)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Starting preview server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sentry.CaptureException(err)
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
