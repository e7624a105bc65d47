package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hnproxy/internal/app"
	"hnproxy/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	addr := cfg.Addr
	if flagAddr != "" {
		addr = flagAddr
	}

	srv, err := app.NewServer(cfg, logger.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, addr); err != nil {
		logger.Log.Error("Server exited with error", zap.Error(err))
		return err
	}
	return nil
}
