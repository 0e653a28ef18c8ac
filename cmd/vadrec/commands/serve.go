package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/vadrec/internal/health"
	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/resilience"
	"github.com/GriffinCanCode/vadrec/internal/server"
	"github.com/GriffinCanCode/vadrec/internal/session"
	"github.com/GriffinCanCode/vadrec/internal/transcript"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	Long: `Serve the session API over HTTP and WebSocket, the Prometheus metrics
endpoint, and gRPC health for the transcription backend.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(os.Stdout, cfg)

	m := metrics.New()
	hs := health.New()

	ex, err := newExchanger(cfg, m, hs.SetExchangeState)
	if err != nil {
		return err
	}
	m.SetBreakerState(int(resilience.Closed))

	hub := server.NewHub(m)
	history := transcript.NewStore(cfg.HistorySize)
	ctl := session.New(sessionConfig(cfg), newMicrophone(cfg), ex,
		session.WithMetrics(m),
		session.WithObserver(session.Observers{hub, history}),
	)
	defer ctl.Close()

	srv := server.New(ctl, hub, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		Gatherer:       m.Registry,
		History:        history,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: server.ReadHeaderTimeout,
	}

	lis, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("vadrec server starting", "http", cfg.HTTPAddr, "health", cfg.HealthAddr, "backend", cfg.TranscribeBackend)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hs.Serve(lis)
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		hs.Stop()
		return nil
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}
