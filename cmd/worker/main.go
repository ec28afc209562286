// Package main is the entry point for the warelog background worker.
// It relays outbox events to the storefront and sweeps exhausted
// messages to the dead letter queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"warelog/internal/infrastructure/storage/postgres"
	"warelog/internal/infrastructure/stocksync"
	"warelog/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting warelog worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	handler := stocksync.NewHandler(stocksync.Config{
		EndpointURL: getEnv("STOCKSYNC_ENDPOINT_URL", ""),
		AuthToken:   getEnv("STOCKSYNC_AUTH_TOKEN", ""),
		Timeout:     getEnvDuration("STOCKSYNC_TIMEOUT", 10*time.Second),
	})

	batchSize := getEnvInt("OUTBOX_BATCH_SIZE", 100)
	relay := postgres.NewOutboxRelay(pool.Unwrap(), batchSize, handler)

	worker := &Worker{
		relay:        relay,
		log:          log.WithComponent("worker"),
		pollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker polls the outbox and delivers pending messages.
type Worker struct {
	relay        *postgres.OutboxRelay
	log          *logger.Logger
	pollInterval time.Duration
}

// Run processes the outbox until the context is cancelled. Messages that
// exhausted their retries are swept to the DLQ once an hour.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	dlqTicker := time.NewTicker(1 * time.Hour)
	defer dlqTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			// Drain everything that is ready before sleeping again.
			for {
				processed, err := w.relay.ProcessBatch(ctx)
				if err != nil {
					w.log.Errorw("outbox batch failed", "error", err)
					break
				}
				if processed == 0 {
					break
				}
				w.log.Debugw("outbox batch processed", "count", processed)
			}

		case <-dlqTicker.C:
			moved, err := w.relay.MoveToDLQ(ctx)
			if err != nil {
				w.log.Errorw("dlq sweep failed", "error", err)
				continue
			}
			if moved > 0 {
				w.log.Warnw("messages moved to dlq", "count", moved)
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
