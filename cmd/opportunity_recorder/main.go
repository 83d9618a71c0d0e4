package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/arbwatch/internal/config"
	"github.com/hetulpatel/arbwatch/internal/kafka"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matches"
	sqlstore "github.com/hetulpatel/arbwatch/internal/storage/sqlite"
	"github.com/hetulpatel/arbwatch/internal/workers"
)

// opportunity_recorder consumes the opportunity topic and writes every
// payload to sqlite.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		logging.Fatalf("[opportunity-recorder] config: %v", err)
	}
	logging.InitFromEnv()
	if cfg.SQLitePath == "" {
		logging.Fatalf("[opportunity-recorder] SQLITE_PATH is required")
	}

	brokers := kafka.Brokers(cfg.Kafka.Brokers...)
	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[opportunity-recorder] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.Kafka.Topic); err != nil {
		logging.Errorf("[opportunity-recorder] ensure topic warning: %v", err)
	}
	cancelEnsure()

	store, err := sqlstore.Open(cfg.SQLitePath)
	if err != nil {
		logging.Fatalf("[opportunity-recorder] open sqlite: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[opportunity-recorder] create tables: %v", err)
	}

	logging.Infof("[opportunity-recorder] consuming %s with group %s (%d workers)",
		cfg.Kafka.Topic, cfg.Kafka.Group, cfg.Kafka.Workers)
	workers.Run(ctx, workers.KafkaReaders(brokers, cfg.Kafka.Topic, cfg.Kafka.Group), cfg.Kafka.Workers,
		func(ctx context.Context, p *matches.Payload) error {
			if err := store.InsertOpportunities(ctx, []matches.Payload{*p}); err != nil {
				return err
			}
			if best, ok := p.Opportunity.BestLevel(); ok {
				logging.Infof("[opportunity-recorder] pair=%s dir=%s qty=%.0f profit=%.4f",
					p.PairID, best.Direction(), best.Quantity, best.ProfitPercentage)
			}
			return nil
		})
}
