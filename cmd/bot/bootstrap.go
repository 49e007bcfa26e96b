package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"dual-llm-trader/internal/audit"
	"dual-llm-trader/internal/credpool"
	"dual-llm-trader/internal/health"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/llm/gemini"
	"dual-llm-trader/internal/llm/llmobs"
	"dual-llm-trader/internal/llm/noop"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/marketdata"
	"dual-llm-trader/internal/news"
	"dual-llm-trader/internal/store"
	"dual-llm-trader/internal/strategic"
	"dual-llm-trader/internal/tactical"
	"dual-llm-trader/internal/trace"
	"dual-llm-trader/internal/trade"
	"dual-llm-trader/internal/tradelog"
	"dual-llm-trader/internal/types"
)

// initializeSystem sets up env, logger, and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("TRADER_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// system bundles the wired components main drives.
type system struct {
	planner  interfaces.Planner
	executor interfaces.Executor
	machine  *trade.Machine
	pool     *credpool.Pool
	monitor  *health.Monitor
	sink     interfaces.Sink
}

func buildSystem(ctx context.Context, cfg *store.Config) (*system, error) {
	pool, err := buildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	inference := buildInference(ctx, cfg)
	monitor := health.NewMonitor(time.Duration(cfg.Health.GracePeriodSeconds) * time.Second)

	feed := marketdata.NewCoinbaseFeed(cfg.Data.BaseURL,
		time.Duration(cfg.Data.TimeoutSeconds)*time.Second)
	agg := marketdata.NewAggregator(feed, cfg.Data.BarTolerance)

	var headlines interfaces.HeadlineSource
	if cfg.News.Enabled {
		headlines = news.NewScraper(10 * time.Second)
	}

	planner := strategic.New(strategic.Params{
		Symbol:          cfg.Symbol,
		Model:           cfg.Strategic.Model,
		Candles4H:       cfg.Strategic.Candles4H,
		Candles1H:       cfg.Strategic.Candles1H,
		Candles15M:      cfg.Strategic.Candles15M,
		DefaultValidity: time.Duration(cfg.Strategic.ValidForHours) * time.Hour,
		MaxHeadlines:    cfg.News.MaxHeadlines,
	}, agg, pool, inference, sink, headlines, monitor)

	machine := trade.NewMachine(trade.Params{
		Symbol:          cfg.Symbol,
		EntryConfidence: cfg.Trade.EntryConfidence,
		ExitConfidence:  cfg.Trade.ExitConfidence,
		QuoteAmount:     decimal.NewFromFloat(cfg.Trade.QuoteAmount),
		ExitPolicy:      cfg.Trade.ExitPolicy,
	}, sink)

	executor := tactical.New(tactical.Params{
		Symbol:     cfg.Symbol,
		Model:      cfg.Tactical.Model,
		Candles1H:  cfg.Tactical.Candles1H,
		Candles15M: cfg.Tactical.Candles15M,
		Candles1M:  cfg.Tactical.Candles1M,
	}, agg, pool, inference, sink, planner, machine, monitor)

	return &system{
		planner:  planner,
		executor: executor,
		machine:  machine,
		pool:     pool,
		monitor:  monitor,
		sink:     sink,
	}, nil
}

func buildPool(ctx context.Context, cfg *store.Config) (*credpool.Pool, error) {
	opts := credpool.Options{
		CooldownSeed: time.Duration(cfg.Credentials.CooldownSeedSeconds) * time.Second,
		CooldownCap:  time.Duration(cfg.Credentials.CooldownCapSeconds) * time.Second,
	}
	pool, err := credpool.LoadFromEnv(
		cfg.Credentials.PrimaryEnvPrefix, cfg.Credentials.MaxPrimary,
		cfg.Credentials.SecondaryEnvPrefix, cfg.Credentials.MaxSecondary,
		opts)
	if err != nil {
		if dryRun() {
			logger.Warn(ctx, "No credentials configured, using a synthetic one for dry run")
			return credpool.New([]types.Credential{
				{ID: "dry_run_1", Class: types.ClassPrimary, Key: "dry-run"},
			}, opts), nil
		}
		logger.ErrorWithErr(ctx, "No inference credentials configured", err)
		return nil, err
	}
	pool.LogHealth(ctx)
	return pool, nil
}

func buildSink(ctx context.Context, cfg *store.Config) (interfaces.Sink, error) {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")
	if url == "" || key == "" {
		if cfg.Audit.Required {
			return nil, fmt.Errorf("audit sink required but SUPABASE_URL/SUPABASE_SERVICE_KEY not set")
		}
		logger.Warn(ctx, "No audit backend configured, records stay in memory and local logs")
		return audit.NewMemorySink(), nil
	}

	sink := audit.NewSupabaseSink(url, key, audit.Options{
		Retries: cfg.Audit.Retries,
		Backoff: time.Duration(cfg.Audit.BackoffSeconds) * time.Second,
		Timeout: time.Duration(cfg.Audit.TimeoutSeconds) * time.Second,
	})
	if err := sink.Ping(ctx); err != nil {
		if cfg.Audit.Required {
			logger.ErrorWithErr(ctx, "Audit backend unreachable", err)
			return nil, err
		}
		logger.Warn(ctx, "Audit backend unreachable at startup, continuing degraded", "error", err)
	}
	return sink, nil
}

func buildInference(ctx context.Context, cfg *store.Config) interfaces.Inference {
	if dryRun() {
		logger.Warn(ctx, "Dry run mode, inference returns canned WAIT responses")
		return llmobs.Wrap(noop.New())
	}
	client := gemini.New(cfg.Inference.BaseURL,
		time.Duration(cfg.Inference.TimeoutSeconds)*time.Second)
	return llmobs.Wrap(client)
}

func dryRun() bool {
	return os.Getenv("TRADER_DRY_RUN") == "1"
}
