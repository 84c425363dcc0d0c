package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"payment-gateway/internal/api"
	"payment-gateway/internal/config"
	"payment-gateway/internal/db"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/idgen"
	"payment-gateway/internal/kafka"
	"payment-gateway/internal/ledger"
	"payment-gateway/internal/logging"
	"payment-gateway/internal/metrics"
	"payment-gateway/internal/settlement"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.MustLoadConfig(".")

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics, logger)

	if cfg.Logs.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	var store ledger.Store
	closeStore := func() {}
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("Using in-memory ledger, data is lost on restart")
		store = ledger.NewMemoryStore(ledger.TestMerchant())
	default:
		connStr := db.GetConnStr(cfg.Database)
		if err := db.RunMigrations(connStr, cfg.Database.MigrationsDir); err != nil {
			log.Fatal(err)
		}

		dbpool, err := db.GetPool(ctx, connStr, cfg.Database.MaxConns)
		if err != nil {
			log.Fatal(err)
		}
		store = db.NewLedgerRepository(dbpool)
		closeStore = dbpool.Close
	}

	ids := idgen.New(cfg.IDs.Seed)
	simulator := settlement.NewSimulator(cfg.Settlement, logger)
	logger.Info("Settlement simulator ready",
		"testMode", cfg.Settlement.TestMode,
		"blocking", cfg.Settlement.Blocking,
		"seed", simulator.Seed(),
		"idSeed", ids.Seed())

	opts := []engine.Option{
		engine.WithStrictExpiry(cfg.Validation.StrictExpiry),
		engine.WithBlocking(cfg.Settlement.Blocking),
	}

	closeWriter := func() {}
	if cfg.Kafka.Broker.URL != "" {
		writer := kafka.NewWriter(cfg.Kafka, logger)
		opts = append(opts, engine.WithPublisher(kafka.NewPublisher(writer, logger)))
		closeWriter = func() {
			if err := writer.Close(); err != nil {
				logger.Error("Error closing Kafka writer", "error", err)
			}
		}
	}

	eng := engine.New(store, ids, simulator, logger, opts...)
	handler := api.NewHandler(eng, store, logger, cfg.Server.TestEndpoints)
	server := api.NewHTTPServer(handler.Router(), cfg.Server, logger)

	if err := server.Run(ctx); err != nil {
		logger.Error("HTTP server stopped with error", "error", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout(cfg))
	defer cancel()
	if err := simulator.Shutdown(drainCtx); err != nil {
		logger.Warn("Settlements still pending at shutdown", "pending", simulator.Pending(), "error", err)
	}

	eventsCtx, cancelEvents := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancelEvents()
	if err := eng.Close(eventsCtx); err != nil {
		logger.Warn("Payment events still queued at shutdown", "error", err)
	}

	closeWriter()
	closeStore()
	logger.Info("Payment gateway stopped", slog.Int("pending", simulator.Pending()))
}

// drainTimeout leaves in-flight settlements enough time to reach their
// slowest configured delay.
func drainTimeout(cfg *config.Config) time.Duration {
	longest := max(cfg.Settlement.UPIDelay, cfg.Settlement.CardDelay, cfg.Settlement.TestDelay)
	return longest + cfg.Server.ShutdownTimeout
}
