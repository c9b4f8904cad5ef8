package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"constellation/internal/config"
	"constellation/internal/events"
	"constellation/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	// Level is validated during Load
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to NATS")
		}
		pub = natsPub
		log.WithField("url", cfg.NATSURL).Info("Publishing events to NATS")
	}

	srv, err := server.New(cfg, log, pub)
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutting down...")

	if err := srv.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}
	if err := pub.Close(); err != nil {
		log.WithError(err).Error("Error closing event publisher")
	}
}
