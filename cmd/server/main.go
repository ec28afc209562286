// Package main is the entry point for the warelog API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"warelog/internal/domain/catalogs/taxrate"
	"warelog/internal/domain/catalogs/warehouse"
	"warelog/internal/domain/documents"
	"warelog/internal/domain/ordersync"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
	v1 "warelog/internal/infrastructure/http/v1"
	"warelog/internal/infrastructure/numerator"
	"warelog/internal/infrastructure/storage/postgres"
	"warelog/internal/infrastructure/storage/postgres/catalog_repo"
	"warelog/internal/infrastructure/storage/postgres/document_repo"
	"warelog/internal/infrastructure/storage/postgres/register_repo"
	"warelog/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting warelog server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// Document events go through the transactional outbox; the worker
	// binary relays them to the storefront.
	events := postgres.NewOutboxPublisher(txManager)

	// --- Repositories ---
	warehouseRepo := catalog_repo.NewWarehouseRepo(txManager)
	taxRateRepo := catalog_repo.NewTaxRateRepo(txManager)
	stockRepo := register_repo.NewStockLevelRepo(txManager)
	batchRepo := register_repo.NewStockBatchRepo(txManager)
	documentRepo := document_repo.NewDocumentRepo(txManager)

	// --- Services ---
	warehouseService := warehouse.NewService(warehouseRepo, txManager)
	taxRateService := taxrate.NewService(taxRateRepo, txManager)
	stockService := stock.NewService(stockRepo, txManager, events)
	batchService := batch.NewService(batchRepo, txManager)

	// TxManager serves as the numerator querier so sequence updates commit
	// together with the document insert.
	numbers := numerator.New(txManager)

	documentService := documents.NewService(
		documentRepo,
		stockService,
		batchService,
		numbers,
		taxRateService,
		txManager,
		events,
	)

	orderSyncCfg := ordersync.DefaultConfig()
	if statuses := getEnv("ORDER_SHIPPED_STATUSES", ""); statuses != "" {
		orderSyncCfg.ShippedStatuses = strings.Split(statuses, ",")
	}
	orderSyncService := ordersync.NewService(documentService, warehouseService, orderSyncCfg)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:       pool,
		Logger:     log,
		Documents:  documentService,
		Stock:      stockService,
		Batches:    batchService,
		Warehouses: warehouseService,
		TaxRates:   taxRateService,
		OrderSync:  orderSyncService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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
