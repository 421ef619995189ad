package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"wine-tasting/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Start()
	logrus.WithField("port", app.Config.ServerPort).Info("Wine tasting server running")

	<-ctx.Done()
	stop()
	logrus.Info("Shutdown signal received, draining rooms and workers")
	app.Shutdown()
}
