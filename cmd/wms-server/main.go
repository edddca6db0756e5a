package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wmshub/internal/config"
	"wmshub/internal/logging"
	"wmshub/internal/microservices/tcp"
	"wmshub/internal/warehouse"
)

func main() {
	// Configuration
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", "error", err.Error())
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	zones, err := config.LoadZones(cfg.ZonesFile)
	if err != nil {
		return err
	}
	store, err := warehouse.NewStore(zones)
	if err != nil {
		return err
	}
	if cfg.SeedSampleData {
		sample := warehouse.SampleData(time.Now())
		if err := store.Seed(sample); err != nil {
			return err
		}
		logger.Info("sample_data_seeded", "packages", len(sample))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := newJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// stopped by Close after the server, so shutdown-time events still flush
	journal.Start(context.Background())
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("journal_close_failed", "error", err.Error())
		}
	}()

	logger.Info("starting_tcp_server",
		"go_env", cfg.GoEnv,
		"tcp_addr", cfg.Addr(),
		"zones", store.ZoneIDs(),
		"redis_enabled", cfg.RedisURL != "",
		"postgres_enabled", cfg.DatabaseURL != "",
	)

	// Create and start TCP server
	server := tcp.NewServer(cfg.Addr(), store, journal, tcp.Options{
		MaxPayload:   cfg.MaxPayloadBytes,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
	})
	if err := server.Listen(); err != nil {
		return err
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve()
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
		server.Stop()
		logger.Info("server_stopped_gracefully")
		return nil
	case err := <-errChan:
		server.Stop()
		return err
	}
}

// newJournal wires the optional Redis and Postgres sinks.
func newJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tcp.Journal, error) {
	var sinks []tcp.Sink
	if cfg.RedisURL != "" {
		redisSink, err := tcp.NewRedisSink(cfg.RedisURL, cfg.RedisPassword, cfg.RedisChannel, cfg.RedisKeyTTL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, redisSink)
		logger.Info("redis_sink_enabled", "channel", cfg.RedisChannel)
	}
	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pgSink, err := tcp.NewPostgresSink(connectCtx, cfg.DatabaseURL)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, pgSink)
		logger.Info("postgres_sink_enabled")
	}
	return tcp.NewJournal(tcp.JournalOptions{
		Buffer:        cfg.JournalBuffer,
		BatchSize:     cfg.JournalBatchSize,
		FlushInterval: cfg.JournalFlushInterval,
		Logger:        logger,
	}, sinks...), nil
}
