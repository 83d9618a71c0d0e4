package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultMatchThreshold = 80
	DefaultMinProfit      = 0.02
	DefaultPollInterval   = 30 * time.Second
	DefaultRetryDelay     = 5 * time.Second
	DefaultKalshiRPS      = 5.0
	DefaultPolymarketRPS  = 10.0
	DefaultKalshiFeeCoeff = 0.07
	DefaultPolyFeeRate    = 0.0
	DefaultBookWorkers    = 8
	DefaultOpportunityTTL = 240 * time.Hour
)

// Config is everything the bot binaries read from the environment.
type Config struct {
	Kalshi     KalshiConfig
	Polymarket PolymarketConfig

	MatchThreshold int
	MinProfit      float64
	PollInterval   time.Duration
	RetryDelay     time.Duration
	BookWorkers    int
	MatchWorkers   int

	KalshiFeeCoefficient float64
	PolymarketFeeRate    float64

	MatchLogMode string
	MatchLogPath string

	SQLitePath string

	Redis     RedisConfig
	Kafka     KafkaConfig
	Validator ValidatorConfig
}

type KalshiConfig struct {
	BaseURL           string
	APIKeyID          string
	PrivateKeyPath    string
	RequestsPerSecond float64
	MaxMarkets        int
}

type PolymarketConfig struct {
	GammaURL          string
	ClobURL           string
	RequestsPerSecond float64
	MaxMarkets        int
}

// RedisConfig is optional; an empty Addr disables the caches.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	OpportunityTTL time.Duration
	VerdictTTL     time.Duration
}

// KafkaConfig is optional; Enabled=false skips publishing.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	Group   string
	Workers int
}

type ValidatorConfig struct {
	Enabled      bool
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Timeout      time.Duration
}

// Load reads envFile (if it exists) into the process environment and builds a
// Config. Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment with defaults applied.
func FromEnv() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:           envString("KALSHI_BASE_URL", ""),
			APIKeyID:          envString("KALSHI_API_KEY_ID", ""),
			PrivateKeyPath:    envString("KALSHI_PRIVATE_KEY_PATH", ""),
			RequestsPerSecond: envFloat("KALSHI_REQUESTS_PER_SECOND", DefaultKalshiRPS),
			MaxMarkets:        envInt("KALSHI_MAX_MARKETS", 0),
		},
		Polymarket: PolymarketConfig{
			GammaURL:          envString("POLY_GAMMA_URL", ""),
			ClobURL:           envString("POLY_CLOB_URL", ""),
			RequestsPerSecond: envFloat("POLY_REQUESTS_PER_SECOND", DefaultPolymarketRPS),
			MaxMarkets:        envInt("POLY_MAX_MARKETS", 0),
		},
		MatchThreshold:       envInt("FUZZY_MATCH_THRESHOLD", DefaultMatchThreshold),
		MinProfit:            envFloat("MIN_PROFIT_THRESHOLD", DefaultMinProfit),
		PollInterval:         time.Duration(envInt("POLL_INTERVAL_SECONDS", int(DefaultPollInterval/time.Second))) * time.Second,
		RetryDelay:           time.Duration(envInt("RETRY_DELAY_SECONDS", int(DefaultRetryDelay/time.Second))) * time.Second,
		BookWorkers:          envInt("BOOK_WORKERS", DefaultBookWorkers),
		MatchWorkers:         envInt("MATCH_WORKERS", 0),
		KalshiFeeCoefficient: envFloat("KALSHI_FEE_COEFFICIENT", DefaultKalshiFeeCoeff),
		PolymarketFeeRate:    envFloat("POLY_FEE_RATE", DefaultPolyFeeRate),
		MatchLogMode:         envString("MATCH_LOG_MODE", "quiet"),
		MatchLogPath:         envString("MATCH_LOG_PATH", ""),
		SQLitePath:           envString("SQLITE_PATH", ""),
		Redis: RedisConfig{
			Addr:           envString("REDIS_ADDR", ""),
			Password:       envString("REDIS_PASSWORD", ""),
			DB:             envInt("REDIS_DB", 0),
			OpportunityTTL: time.Duration(envInt("OPPORTUNITY_CACHE_TTL_HOURS", int(DefaultOpportunityTTL/time.Hour))) * time.Hour,
			VerdictTTL:     time.Duration(envInt("VERDICT_CACHE_TTL_HOURS", 240)) * time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled: envBool("KAFKA_ENABLED", false),
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("OPPORTUNITY_TOPIC", "arb.opportunities"),
			Group:   envString("OPPORTUNITY_RECORDER_GROUP", "opportunity-recorder"),
			Workers: envInt("OPPORTUNITY_RECORDER_WORKERS", 1),
		},
		Validator: ValidatorConfig{
			Enabled:      envBool("VALIDATOR_ENABLED", false),
			APIKey:       envString("NEBIUS_API_KEY", ""),
			BaseURL:      envString("NEBIUS_BASE_URL", ""),
			Model:        envString("VALIDATOR_MODEL", ""),
			SystemPrompt: envString("VALIDATOR_SYSTEM_PROMPT", ""),
			MaxTokens:    envInt("VALIDATOR_MAX_TOKENS", 800),
			Timeout:      time.Duration(envInt("VALIDATOR_TIMEOUT_SECONDS", 45)) * time.Second,
		},
	}
}

// Validate rejects values the core components would refuse anyway, so the
// binaries fail at startup instead of mid-cycle.
func (c Config) Validate() error {
	var errs []error
	if c.MatchThreshold < 0 || c.MatchThreshold > 100 {
		errs = append(errs, fmt.Errorf("FUZZY_MATCH_THRESHOLD %d outside [0,100]", c.MatchThreshold))
	}
	if !finite(c.MinProfit) || c.MinProfit < 0 || c.MinProfit > 1 {
		errs = append(errs, fmt.Errorf("MIN_PROFIT_THRESHOLD %v outside [0,1]", c.MinProfit))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive"))
	}
	if c.Kalshi.RequestsPerSecond <= 0 || c.Polymarket.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("request rates must be positive"))
	}
	if !finite(c.KalshiFeeCoefficient) || c.KalshiFeeCoefficient < 0 {
		errs = append(errs, fmt.Errorf("KALSHI_FEE_COEFFICIENT %v must be >= 0", c.KalshiFeeCoefficient))
	}
	if !finite(c.PolymarketFeeRate) || c.PolymarketFeeRate < 0 {
		errs = append(errs, fmt.Errorf("POLY_FEE_RATE %v must be >= 0", c.PolymarketFeeRate))
	}
	if c.Kalshi.PrivateKeyPath != "" && c.Kalshi.APIKeyID == "" {
		errs = append(errs, fmt.Errorf("KALSHI_PRIVATE_KEY_PATH set without KALSHI_API_KEY_ID"))
	}
	if c.Validator.Enabled && strings.TrimSpace(c.Validator.APIKey) == "" {
		errs = append(errs, fmt.Errorf("VALIDATOR_ENABLED requires NEBIUS_API_KEY"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_ENABLED requires KAFKA_BROKERS"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func envString(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return def
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
