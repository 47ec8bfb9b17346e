// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/permit-engine/internal/httpapi"
	"github.com/pdiddy/permit-engine/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline HTTP API",
	Long: `Serve exposes the pipeline over HTTP: POST /api/v1/pipeline/run for a
synchronous run, POST /api/v1/pipeline/stream for server-sent progress
events, GET /healthz, and GET /metrics for Prometheus scraping.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	addr, _ := cmd.Flags().GetString("addr")

	logger := newLogger(verbose)
	cfg := loadConfig()
	if addr != "" {
		cfg.Server.Addr = addr
	}

	collector := metrics.NewCollector(nil)
	eng, err := buildEngine(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewHandler(eng.Orchestrator, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving pipeline API", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr config)")
	serveCmd.Flags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
