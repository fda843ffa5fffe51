// Package config loads engine configuration from an optional YAML file
// and the environment. Environment variables override file values and
// use the FX_ prefix with underscores (FX_FEED_KIND, FX_HTTP_ADDR).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fxquant/fx-engine/internal/model"
)

var (
	ErrNoPairs     = errors.New("config: at least one pair is required")
	ErrBadEquity   = errors.New("config: equity must be a positive decimal")
	ErrBadFeedKind = errors.New("config: feed.kind must be csv or websocket")
)

// Config is the full engine configuration.
type Config struct {
	Pairs        []model.Pair
	HomeCurrency string
	Equity       decimal.Decimal

	Backtest  bool
	Heartbeat time.Duration
	MaxIters  int
	QueueSize int

	FeedKind    string // "csv" or "websocket"
	CSVDir      string
	FeedWSURL   string
	ExecLatency time.Duration

	Strategy       string // "dummy" or "macross"
	SignalInterval int
	ShortWindow    int
	LongWindow     int
	SignalUnits    decimal.Decimal

	MaxUnitsPerPair    decimal.Decimal
	MaxCorrelatedUnits decimal.Decimal

	OutputDir   string
	DatabaseURL string
	RedisURL    string
	HTTPAddr    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("home_currency", "JPY")
	v.SetDefault("equity", "1000000")
	v.SetDefault("backtest", true)
	v.SetDefault("heartbeat", "0s")
	v.SetDefault("max_iters", 100_000_000)
	v.SetDefault("queue_size", 1024)
	v.SetDefault("feed.kind", "csv")
	v.SetDefault("feed.csv_dir", "data")
	v.SetDefault("exec.latency", "0s")
	v.SetDefault("strategy.name", "dummy")
	v.SetDefault("strategy.interval", 1000)
	v.SetDefault("strategy.short_window", 500)
	v.SetDefault("strategy.long_window", 5000)
	v.SetDefault("strategy.units", "100")
	v.SetDefault("risk.max_units_per_pair", "0")
	v.SetDefault("risk.max_correlated_units", "0")
	v.SetDefault("output_dir", "results")
	v.SetDefault("http_addr", ":8080")
}

// Load reads engine.yaml from dir (if present) and the environment.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("engine")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("FX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	cfg := Config{
		HomeCurrency:   strings.ToUpper(v.GetString("home_currency")),
		Backtest:       v.GetBool("backtest"),
		Heartbeat:      v.GetDuration("heartbeat"),
		MaxIters:       v.GetInt("max_iters"),
		QueueSize:      v.GetInt("queue_size"),
		FeedKind:       v.GetString("feed.kind"),
		CSVDir:         v.GetString("feed.csv_dir"),
		FeedWSURL:      v.GetString("feed.ws_url"),
		ExecLatency:    v.GetDuration("exec.latency"),
		Strategy:       v.GetString("strategy.name"),
		SignalInterval: v.GetInt("strategy.interval"),
		ShortWindow:    v.GetInt("strategy.short_window"),
		LongWindow:     v.GetInt("strategy.long_window"),
		OutputDir:      v.GetString("output_dir"),
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis_url"),
		HTTPAddr:       v.GetString("http_addr"),
	}

	for _, raw := range v.GetStringSlice("pairs") {
		pair, err := model.ParsePair(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: pair %q: %w", raw, err)
		}
		cfg.Pairs = append(cfg.Pairs, pair)
	}
	if len(cfg.Pairs) == 0 {
		return Config{}, ErrNoPairs
	}

	var err error
	cfg.Equity, err = decimal.NewFromString(v.GetString("equity"))
	if err != nil || cfg.Equity.Sign() <= 0 {
		return Config{}, ErrBadEquity
	}
	cfg.SignalUnits, err = decimal.NewFromString(v.GetString("strategy.units"))
	if err != nil {
		return Config{}, fmt.Errorf("config: strategy.units: %w", err)
	}
	cfg.MaxUnitsPerPair, err = decimal.NewFromString(v.GetString("risk.max_units_per_pair"))
	if err != nil {
		return Config{}, fmt.Errorf("config: risk.max_units_per_pair: %w", err)
	}
	cfg.MaxCorrelatedUnits, err = decimal.NewFromString(v.GetString("risk.max_correlated_units"))
	if err != nil {
		return Config{}, fmt.Errorf("config: risk.max_correlated_units: %w", err)
	}

	switch cfg.FeedKind {
	case "csv", "websocket":
	default:
		return Config{}, ErrBadFeedKind
	}
	return cfg, nil
}
