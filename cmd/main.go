package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ota-fleet-manager/internal/config"
	"ota-fleet-manager/internal/infrastructure/database/postgres"
	"ota-fleet-manager/internal/infrastructure/storage"
	"ota-fleet-manager/internal/ingestion"
	"ota-fleet-manager/internal/logger"
	"ota-fleet-manager/internal/routes"
	"ota-fleet-manager/internal/usecase/rollout"
	pkgmqtt "ota-fleet-manager/pkg/mqtt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("environment", env),
	)

	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		logger.Fatal("Database configuration is missing. Please set DB_HOST and DB_NAME environment variables.")
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := postgres.Migrate(db); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store, err := storage.NewFileBinaryStore(cfg.Storage.FirmwareDir)
	if err != nil {
		logger.Fatal("Failed to initialize firmware storage", zap.Error(err))
	}

	// OTA command publishing and telemetry ingestion are both optional: with
	// no broker configured the HTTP API drives the same transitions.
	var publisher rollout.CommandPublisher
	var commandPublisher *ingestion.CommandPublisher
	if cfg.MQTT.Broker != "" {
		mqttCfg := &pkgmqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}

		commandPublisher = ingestion.NewCommandPublisher(mqttCfg, cfg.MQTT.CommandPrefix, cfg.MQTT.QoS)
		if err := commandPublisher.Connect(); err != nil {
			logger.Fatal("Failed to connect OTA command publisher", zap.Error(err))
		}
		defer commandPublisher.Disconnect()
		publisher = commandPublisher
	}

	router, services := routes.SetupRoutes(cfg, db, store, publisher)

	if cfg.MQTT.Broker != "" {
		ingestCfg := &ingestion.MQTTIngestionConfig{
			ClientConfig: &pkgmqtt.Config{
				Broker:   cfg.MQTT.Broker,
				ClientID: cfg.MQTT.ClientID + "-ingest",
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
			},
			HeartbeatTopic: cfg.MQTT.HeartbeatTopic,
			ProgressTopic:  cfg.MQTT.ProgressTopic,
			ResultTopic:    cfg.MQTT.ResultTopic,
			QoS:            cfg.MQTT.QoS,
		}

		ingestClient, err := ingestion.NewMQTTIngestionClient(ingestCfg, services.Devices, services.Rollouts)
		if err != nil {
			logger.Fatal("Failed to build MQTT ingestion client", zap.Error(err))
		}
		if err := ingestClient.Start(); err != nil {
			logger.Fatal("Failed to start MQTT ingestion", zap.Error(err))
		}
		defer ingestClient.Stop()
	} else {
		logger.Info("MQTT broker not configured, telemetry ingestion disabled")
	}

	// Flip devices offline after prolonged heartbeat silence
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()
	go services.Devices.StartLivenessSweeper(sweeperCtx, time.Minute, cfg.MQTT.OfflineAfter)

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Failed to shutdown server", zap.Error(err))
	}

	log.Println("Server exited properly")
}
