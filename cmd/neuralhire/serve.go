package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/metrics"
	"github.com/nursmen/neuralhire/internal/server"
)

const (
	shutdownTimeout   = 30 * time.Second
	readinessInterval = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking API over HTTP and gRPC health checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := context.WithCancel(parent)
	defer stop()

	log.Info("starting neuralhire",
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("index", cfg.IndexBackend),
		zap.String("reranker", cfg.RerankProvider),
		zap.Bool("llm_validation", cfg.LLMValidation),
	)

	a, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	match, err := a.matchService(ctx)
	if err != nil {
		return err
	}

	metrics.Register()

	grpcServer := server.NewGRPCServer(server.GRPCServerConfig{Port: cfg.GRPCPort, Logger: log})
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, match, a.repo)

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go grpcServer.WatchReadiness(ctx, a.repo, readinessInterval)

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
		shutdownErr = err
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown gRPC server", zap.Error(err))
		shutdownErr = err
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}

	log.Info("servers stopped")
	return nil
}
