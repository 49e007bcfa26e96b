// Package audit persists directives, decisions, trades, candles and
// system logs through the Supabase PostgREST API.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/tradelog"
	"dual-llm-trader/internal/types"
)

// Options bound the retry behavior of every write.
type Options struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

// SupabaseSink writes each record kind to its table, retrying a
// bounded number of times and falling back to the local tradelog.
// Records are upserted by record_id, so a replayed retry cannot
// create a duplicate row.
type SupabaseSink struct {
	client   *resty.Client
	opts     Options
	degraded atomic.Bool
	sleep    func(time.Duration) // test hook
}

var _ interfaces.Sink = (*SupabaseSink)(nil)

func NewSupabaseSink(baseURL, serviceKey string, opts Options) *SupabaseSink {
	client := resty.New()
	client.SetBaseURL(baseURL + "/rest/v1")
	client.SetTimeout(opts.Timeout)
	client.SetHeader("apikey", serviceKey)
	client.SetHeader("Authorization", "Bearer "+serviceKey)
	client.SetHeader("Content-Type", "application/json")
	return &SupabaseSink{client: client, opts: opts, sleep: time.Sleep}
}

// Ping verifies the persistence boundary is reachable; used as a
// fatal startup check when audit is required.
func (s *SupabaseSink) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/system_logs?limit=1")
	if err != nil {
		return fmt.Errorf("%w: %v", faults.ErrAuditWriteFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: ping http %d", faults.ErrAuditWriteFailed, resp.StatusCode())
	}
	return nil
}

func (s *SupabaseSink) Degraded() bool {
	return s.degraded.Load()
}

func (s *SupabaseSink) Record(ctx context.Context, rec types.LogRecord) error {
	return s.upsert(ctx, "system_logs", rec.ID, map[string]any{
		"record_id":     rec.ID,
		"timestamp":     rec.Ts.UTC().Format(time.RFC3339),
		"level":         rec.Level,
		"component":     rec.Component,
		"message":       rec.Message,
		"error_details": rec.Details,
	})
}

func (s *SupabaseSink) RecordTrade(ctx context.Context, trade types.ClosedTrade) error {
	return s.upsert(ctx, "trades", trade.ID, map[string]any{
		"record_id":    trade.ID,
		"symbol":       trade.Symbol,
		"quantity":     trade.Qty.String(),
		"entry_price":  trade.EntryPrice,
		"exit_price":   trade.ExitPrice,
		"entry_time":   trade.EntryTime.UTC().Format(time.RFC3339),
		"exit_time":    trade.ExitTime.UTC().Format(time.RFC3339),
		"profit_loss":  trade.RealizedPnL.String(),
		"reason":       trade.Reason,
		"directive_id": trade.DirectiveID,
	})
}

func (s *SupabaseSink) RecordDirective(ctx context.Context, d types.Directive) error {
	zones, _ := json.Marshal(d.EntryZones)
	targets, _ := json.Marshal(d.Targets)
	return s.upsert(ctx, "directives", d.ID, map[string]any{
		"record_id":          d.ID,
		"version":            d.Version,
		"created_at":         d.CreatedAt.UTC().Format(time.RFC3339),
		"valid_for_seconds":  int(d.ValidFor.Seconds()),
		"bias":               d.Bias,
		"trend_4h":           d.Trend,
		"confidence":         d.Confidence,
		"entry_zones":        json.RawMessage(zones),
		"targets":            json.RawMessage(targets),
		"invalidation_level": d.Invalidation,
		"reasoning":          d.Rationale,
		"credential_id":      d.CredentialID,
	})
}

func (s *SupabaseSink) RecordDecision(ctx context.Context, dec types.TacticalDecision) error {
	return s.upsert(ctx, "decisions", dec.ID, map[string]any{
		"record_id":    dec.ID,
		"timestamp":    dec.Ts.UTC().Format(time.RFC3339),
		"action":       string(dec.Action),
		"confidence":   dec.Confidence,
		"directive_id": dec.DirectiveID,
		"price":        dec.Price,
		"pattern":      dec.Pattern,
		"reasoning":    dec.Reason,
	})
}

func (s *SupabaseSink) RecordCandles(ctx context.Context, snap types.CandleSnapshot) error {
	rows := make([]map[string]any, 0, len(snap.Candles))
	for _, c := range snap.Candles {
		rows = append(rows, map[string]any{
			"timestamp": time.Unix(c.Ts, 0).UTC().Format(time.RFC3339),
			"symbol":    snap.Symbol,
			"timeframe": string(snap.Timeframe),
			"open":      c.Open,
			"high":      c.High,
			"low":       c.Low,
			"close":     c.Close,
			"volume":    c.Volume,
		})
	}
	// Candles are naturally keyed; conflict target mirrors the
	// original schema's unique index.
	return s.withRetry(ctx, "candles", func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("on_conflict", "timestamp,symbol,timeframe").
			SetHeader("Prefer", "resolution=merge-duplicates").
			SetBody(rows).
			Post("/candles")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("candles http %d", resp.StatusCode())
		}
		return nil
	}, func() json.RawMessage {
		b, _ := json.Marshal(rows)
		return b
	})
}

func (s *SupabaseSink) ReadLatestPortfolio(ctx context.Context) (types.PortfolioBalances, error) {
	var rows []struct {
		Base      string    `json:"base_balance"`
		Quote     string    `json:"quote_balance"`
		Total     string    `json:"total_value"`
		Timestamp time.Time `json:"timestamp"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&rows).
		Get("/portfolio?order=timestamp.desc&limit=1")
	if err != nil {
		return types.PortfolioBalances{}, fmt.Errorf("%w: %v", faults.ErrAuditWriteFailed, err)
	}
	if resp.IsError() {
		return types.PortfolioBalances{}, fmt.Errorf("%w: portfolio http %d", faults.ErrAuditWriteFailed, resp.StatusCode())
	}
	if len(rows) == 0 {
		// Fresh book: the original system seeds a 10k quote balance.
		return types.PortfolioBalances{
			Base:       decimal.Zero,
			Quote:      decimal.NewFromInt(10000),
			TotalValue: decimal.NewFromInt(10000),
			Ts:         time.Now().UTC(),
		}, nil
	}
	base, _ := decimal.NewFromString(rows[0].Base)
	quote, _ := decimal.NewFromString(rows[0].Quote)
	total, _ := decimal.NewFromString(rows[0].Total)
	return types.PortfolioBalances{Base: base, Quote: quote, TotalValue: total, Ts: rows[0].Timestamp}, nil
}

func (s *SupabaseSink) WritePortfolio(ctx context.Context, b types.PortfolioBalances) error {
	id := b.Ts.UTC().Format(time.RFC3339)
	return s.upsert(ctx, "portfolio", id, map[string]any{
		"record_id":     id,
		"timestamp":     b.Ts.UTC().Format(time.RFC3339),
		"base_balance":  b.Base.String(),
		"quote_balance": b.Quote.String(),
		"total_value":   b.TotalValue.String(),
	})
}

func (s *SupabaseSink) upsert(ctx context.Context, table, recordID string, row map[string]any) error {
	return s.withRetry(ctx, table, func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParam("on_conflict", "record_id").
			SetHeader("Prefer", "resolution=merge-duplicates").
			SetBody([]map[string]any{row}).
			Post("/" + table)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("%s http %d", table, resp.StatusCode())
		}
		return nil
	}, func() json.RawMessage {
		b, _ := json.Marshal(row)
		return b
	})
}

// withRetry runs the write with bounded backoff. On final failure the
// payload goes to the local fallback log and the sink flags itself
// degraded; trading logic is never halted by a failed write.
func (s *SupabaseSink) withRetry(ctx context.Context, kind string, call func() error, payload func() json.RawMessage) error {
	var lastErr error
	for attempt := 0; attempt < s.opts.Retries; attempt++ {
		if attempt > 0 {
			s.sleep(s.opts.Backoff * time.Duration(attempt))
		}
		if err := call(); err != nil {
			lastErr = err
			continue
		}
		s.degraded.Store(false)
		return nil
	}

	s.degraded.Store(true)
	logger.ErrorWithErr(ctx, "Audit write failed after retries, falling back to local log", lastErr,
		"kind", kind, "retries", s.opts.Retries)
	if err := tradelog.AppendFallback(tradelog.FallbackEntry{
		RecordID: kind + "-" + time.Now().UTC().Format("20060102T150405.000Z"),
		Kind:     kind,
		Payload:  payload(),
	}); err != nil {
		logger.ErrorWithErr(ctx, "Local audit fallback write failed", err, "kind", kind)
	}
	return fmt.Errorf("%w: %s: %v", faults.ErrAuditWriteFailed, kind, lastErr)
}
