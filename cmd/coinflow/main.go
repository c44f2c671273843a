package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appconfig "coinflow/config"
	"coinflow/connector"
	"coinflow/logger"
	"coinflow/models"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Coinflow.Name,
		"version": cfg.Coinflow.Version,
	}).Info("starting coinflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}

	var cred *models.Credential
	if key := os.Getenv("VENUE_API_KEY"); key != "" {
		cred = &models.Credential{
			Key:        key,
			Secret:     os.Getenv("VENUE_API_SECRET"),
			Passphrase: os.Getenv("VENUE_API_PASSPHRASE"),
		}
	}

	sink := func(events []models.Event) {
		for _, evt := range events {
			log.WithComponent("sink").WithFields(logger.Fields{
				"kind":  string(evt.Kind()),
				"event": evt,
			}).Debug("normalized event")
		}
	}

	connectors := make([]*connector.Connector, 0, len(cfg.Markets))
	for _, market := range cfg.Markets {
		c := connector.New(cfg, market, cred, log)
		if err := c.Connect(ctx, sink); err != nil {
			log.WithError(err).WithFields(logger.Fields{"symbol": c.Symbol()}).Error("failed to connect")
			continue
		}
		connectors = append(connectors, c)
	}

	if len(connectors) == 0 {
		log.WithComponent("main").Error("no connector could be started")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	for _, c := range connectors {
		if err := c.Stop(stopCtx); err != nil {
			log.WithError(err).WithFields(logger.Fields{"symbol": c.Symbol()}).Warn("stop failed")
		}
	}

	log.WithComponent("main").Info("coinflow stopped")
}
