package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/config"
	"github.com/QQCPM/ChatChat/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	config.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
	if err := srv.Run(ctx); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
		os.Exit(1)
	}
}
