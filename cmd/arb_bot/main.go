package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/arbwatch/internal/arb"
	"github.com/hetulpatel/arbwatch/internal/bot"
	"github.com/hetulpatel/arbwatch/internal/cache"
	"github.com/hetulpatel/arbwatch/internal/config"
	"github.com/hetulpatel/arbwatch/internal/fees"
	"github.com/hetulpatel/arbwatch/internal/kafka"
	"github.com/hetulpatel/arbwatch/internal/kalshi"
	"github.com/hetulpatel/arbwatch/internal/llm"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matcher"
	"github.com/hetulpatel/arbwatch/internal/polymarket"
	"github.com/hetulpatel/arbwatch/internal/queue"
	sqlstore "github.com/hetulpatel/arbwatch/internal/storage/sqlite"
	"github.com/hetulpatel/arbwatch/internal/validator"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logging.Fatalf("[arb-bot] config: %v", err)
	}
	logging.InitFromEnv()

	kalshiClient := mustKalshi(cfg)
	polyClient := polymarket.NewClient(polymarket.Config{
		GammaURL:          cfg.Polymarket.GammaURL,
		ClobURL:           cfg.Polymarket.ClobURL,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
		MaxMarkets:        cfg.Polymarket.MaxMarkets,
	})

	m, err := matcher.New(matcher.Config{Threshold: cfg.MatchThreshold, Workers: cfg.MatchWorkers})
	if err != nil {
		logging.Fatalf("[arb-bot] matcher: %v", err)
	}
	engine, err := arb.NewEngine(arb.Config{MinProfit: cfg.MinProfit, Workers: cfg.BookWorkers})
	if err != nil {
		logging.Fatalf("[arb-bot] engine: %v", err)
	}
	feeModel, err := fees.New(fees.Config{
		KalshiCoefficient: cfg.KalshiFeeCoefficient,
		PolymarketRate:    cfg.PolymarketFeeRate,
	})
	if err != nil {
		logging.Fatalf("[arb-bot] fees: %v", err)
	}

	deps := bot.Deps{
		Kalshi:     kalshiClient,
		Polymarket: polyClient,
		Matcher:    m,
		MatchLog:   matcher.NewLogger(matcher.ParseLogMode(cfg.MatchLogMode), cfg.MatchLogPath),
		Engine:     engine,
		Fees:       feeModel,
		Out:        os.Stdout,
	}

	if cfg.SQLitePath != "" {
		store, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			logging.Fatalf("[arb-bot] open sqlite: %v", err)
		}
		defer store.Close()
		if err := store.CreateTables(ctx); err != nil {
			logging.Fatalf("[arb-bot] create tables: %v", err)
		}
		deps.Store = store
		logging.Infof("[arb-bot] recording cycles to %s", store.Path())
	}

	if cfg.Validator.Enabled {
		svc, closeFn := mustValidator(cfg)
		defer closeFn()
		deps.Validator = svc
	}

	if cfg.Kafka.Enabled {
		pub, closeFn := setupPublisher(ctx, cfg)
		defer closeFn()
		if pub != nil {
			deps.Publisher = pub
		}
	}

	b, err := bot.New(bot.Config{
		PollInterval: cfg.PollInterval,
		RetryDelay:   cfg.RetryDelay,
		BookWorkers:  cfg.BookWorkers,
		MinProfit:    cfg.MinProfit,
	}, deps)
	if err != nil {
		logging.Fatalf("[arb-bot] %v", err)
	}

	if *once {
		if _, err := b.RunCycle(ctx); err != nil {
			logging.Fatalf("[arb-bot] cycle failed: %v", err)
		}
		return
	}
	b.Run(ctx)
}

func mustKalshi(cfg config.Config) *kalshi.Client {
	kcfg := kalshi.Config{
		BaseURL:           cfg.Kalshi.BaseURL,
		RequestsPerSecond: cfg.Kalshi.RequestsPerSecond,
		MaxMarkets:        cfg.Kalshi.MaxMarkets,
		APIKeyID:          cfg.Kalshi.APIKeyID,
	}
	if cfg.Kalshi.PrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.Kalshi.PrivateKeyPath)
		if err != nil {
			logging.Fatalf("[arb-bot] read kalshi key: %v", err)
		}
		kcfg.PrivateKeyPEM = pem
	}
	client, err := kalshi.NewClient(kcfg)
	if err != nil {
		logging.Fatalf("[arb-bot] kalshi client: %v", err)
	}
	return client
}

func mustValidator(cfg config.Config) (*validator.Service, func()) {
	client, err := llm.New(llm.Config{
		APIKey:    cfg.Validator.APIKey,
		BaseURL:   cfg.Validator.BaseURL,
		Model:     cfg.Validator.Model,
		MaxTokens: cfg.Validator.MaxTokens,
		Timeout:   cfg.Validator.Timeout,
		JSONMode:  true,
		Retries:   2,
	})
	if err != nil {
		logging.Fatalf("[arb-bot] llm client: %v", err)
	}

	var verdicts cache.VerdictCache
	closeFn := func() {}
	if cfg.Redis.Addr != "" {
		verdicts, err = cache.NewRedisVerdictCache(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.VerdictTTL,
		})
		if err != nil {
			logging.Fatalf("[arb-bot] verdict cache: %v", err)
		}
		closeFn = func() { _ = verdicts.Close() }
	}

	svc, err := validator.NewService(validator.Config{
		LLM:          client,
		Cache:        verdicts,
		SystemPrompt: cfg.Validator.SystemPrompt,
	})
	if err != nil {
		logging.Fatalf("[arb-bot] validator: %v", err)
	}
	logging.Infof("[arb-bot] resolution validator enabled (model=%s)", client.Model())
	return svc, closeFn
}

// setupPublisher returns nil when the broker never came up; the bot then
// runs without publishing.
func setupPublisher(ctx context.Context, cfg config.Config) (*queue.Publisher, func()) {
	brokers := kafka.Brokers(cfg.Kafka.Brokers...)
	setupCtx, cancel := context.WithTimeout(ctx, 75*time.Second)
	defer cancel()
	writer := kafka.SetupWriter(setupCtx, "arb-bot", brokers, cfg.Kafka.Topic)
	if writer == nil {
		return nil, func() {}
	}

	var dedupe cache.OpportunityCache
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisOpportunityCache(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.OpportunityTTL,
		})
		if err != nil {
			logging.Errorf("[arb-bot] opportunity cache disabled: %v", err)
		} else {
			dedupe = c
		}
	}

	closeFn := func() {
		if err := writer.Close(); err != nil {
			logging.Warnf("[arb-bot] close kafka writer: %v", err)
		}
		if dedupe != nil {
			_ = dedupe.Close()
		}
	}
	logging.Infof("[arb-bot] publishing opportunities to %s", cfg.Kafka.Topic)
	return queue.NewPublisher(writer, dedupe), closeFn
}
