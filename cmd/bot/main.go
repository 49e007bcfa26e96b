package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dual-llm-trader/internal/api"
	"dual-llm-trader/internal/eod"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/sched"
	"dual-llm-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	must(err)
	compressOldLogs(ctx)

	sys, err := buildSystem(ctx, cfg)
	must(err)

	strategicRunner := sched.NewRunner("strategic", cfg.StrategicInterval(), 0, func(ctx context.Context) {
		if err := sys.planner.Tick(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Strategic tick error", err)
		}
	})
	tacticalRunner := sched.NewRunner("tactical", cfg.TacticalInterval(), 0, func(ctx context.Context) {
		if _, err := sys.executor.Tick(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Tactical tick error", err)
		}
	})

	go strategicRunner.Run(ctx)
	go tacticalRunner.Run(ctx)

	if addr := os.Getenv("TRADER_STATUS_ADDR"); addr != "" {
		statusSrv := api.NewServer(addr, cfg.Symbol,
			sys.planner, sys.machine, sys.pool, sys.monitor, sys.sink)
		go func() {
			if err := statusSrv.Run(ctx); err != nil {
				logger.Warn(ctx, "Status server stopped", "error", err)
			}
		}()
	}

	eodTick := time.NewTicker(time.Minute)
	defer eodTick.Stop()
	healthTick := time.NewTicker(5 * time.Minute)
	defer healthTick.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "Trader started", "symbol", cfg.Symbol)
	for {
		select {
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeYesterday(); err == nil && p != "" {
					logger.Info(ctx, "Daily summary written", "path", p)
				}
			}
		case <-healthTick.C:
			sys.pool.LogHealth(ctx)
			if sys.monitor.Degraded() {
				logger.Error(ctx, "Both cadences credential-starved beyond grace period")
			}
			if sys.sink.Degraded() {
				logger.Warn(ctx, "Audit sink degraded, records falling back to local log")
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			cancel()
			if p, err := eod.SummarizeDay(time.Now().UTC()); err == nil && p != "" {
				logger.Info(ctx, "Daily summary written", "path", p)
			}
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = trace.Shutdown(shutdownCtx)
			return
		}
	}
}
