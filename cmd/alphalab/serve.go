package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/api"
	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the alphalab API server",
	RunE:  runServe,
}

func init() {
	addDataFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	applyDataFlags(cfg)

	var reg *metrics.Registry
	opts := []app.Option{}
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		opts = append(opts, app.WithMetrics(reg))
	}
	results, err := app.OpenResults(cfg.Archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	if results != nil {
		opts = append(opts, app.WithResults(results))
	}

	a := app.New(cfg, log, opts...)
	if err := a.LoadData(); err != nil {
		// The server still answers health and operator listings.
		log.Warn("price data not loaded", zap.Error(err))
	}

	log.Info("starting alphalab server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("archive", results != nil),
	)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		JobTTL:      time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MaxJobs:     cfg.Server.MaxJobs,
		MetricsPath: metricsPath,
	}, api.Dependencies{App: a, Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go server.Janitor(ctx, time.Minute)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down alphalab server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}
