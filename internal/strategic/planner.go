// Package strategic runs the hourly analysis cycle that produces the
// trading directive.
package strategic

import (
	"context"
	"time"

	"dual-llm-trader/internal/credpool"
	"dual-llm-trader/internal/health"
	"dual-llm-trader/internal/ids"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/llm/prompts"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/trace"
	"dual-llm-trader/internal/types"
)

const component = "strategic"

// credentialAttempts is one acquire plus one retry with a freshly
// acquired credential before the tick gives up.
const credentialAttempts = 2

type Params struct {
	Symbol          string
	Model           string
	Candles4H       int
	Candles1H       int
	Candles15M      int
	DefaultValidity time.Duration
	MaxHeadlines    int
}

type Planner struct {
	params    Params
	agg       interfaces.Aggregator
	pool      interfaces.CredentialPool
	inference interfaces.Inference
	sink      interfaces.Sink
	headlines interfaces.HeadlineSource // optional
	monitor   *health.Monitor
	store     *Store
	now       func() time.Time
}

var _ interfaces.Planner = (*Planner)(nil)

func New(params Params, agg interfaces.Aggregator, pool interfaces.CredentialPool,
	inference interfaces.Inference, sink interfaces.Sink,
	headlines interfaces.HeadlineSource, monitor *health.Monitor) *Planner {
	return &Planner{
		params:    params,
		agg:       agg,
		pool:      pool,
		inference: inference,
		sink:      sink,
		headlines: headlines,
		monitor:   monitor,
		store:     NewStore(),
		now:       time.Now,
	}
}

// Current exposes the committed directive to the tactical executor.
func (p *Planner) Current() *types.Directive {
	return p.store.Current(p.now())
}

// Tick runs one strategic cycle: fetch, analyze, commit. Every
// failure mode leaves the previous directive current and only skips
// this tick.
func (p *Planner) Tick(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "strategic.Tick")
	defer span.End()

	snaps, price, ok := p.fetchData(ctx)
	if !ok {
		return nil
	}

	prompt := prompts.Strategic(p.params.Symbol, snaps, price, p.fetchHeadlines(ctx))

	raw, credID, ok := p.analyze(ctx, prompt)
	if !ok {
		return nil
	}

	directive, err := ParseDirective(raw, p.params.DefaultValidity)
	if err != nil {
		// A malformed response must never overwrite a valid
		// directive with garbage.
		logger.ErrorWithErr(ctx, "Discarding malformed strategic response", err,
			"response_chars", len(raw))
		p.auditLog(ctx, "ERROR", "strategic response discarded", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	// An abandoned tick's late result is discarded, not committed.
	if ctx.Err() != nil {
		logger.Warn(ctx, "Strategic tick abandoned before commit")
		return nil
	}

	directive.ID = ids.New()
	directive.CreatedAt = p.now()
	directive.CredentialID = credID
	p.store.Commit(directive)

	logger.Directive(ctx, directive.Bias, directive.Confidence, directive.Version,
		"entry_zones", len(directive.EntryZones),
		"invalidation", directive.Invalidation,
		"valid_for", directive.ValidFor.String(),
	)
	if err := p.sink.RecordDirective(ctx, *directive); err != nil {
		logger.Warn(ctx, "Directive audit write degraded", "error", err)
	}
	p.archiveCandles(ctx, snaps)
	return nil
}

func (p *Planner) specs() []types.TimeframeSpec {
	return []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: p.params.Candles4H, Mandatory: true},
		{Timeframe: types.TF1H, Bars: p.params.Candles1H, Mandatory: true},
		{Timeframe: types.TF15M, Bars: p.params.Candles15M, Mandatory: true},
	}
}

func (p *Planner) fetchData(ctx context.Context) (map[types.Timeframe]types.CandleSnapshot, float64, bool) {
	snaps, err := p.agg.Fetch(ctx, p.params.Symbol, p.specs())
	if err != nil {
		logger.ErrorWithErr(ctx, "Strategic data fetch failed, skipping tick", err,
			"symbol", p.params.Symbol)
		p.auditLog(ctx, "ERROR", "strategic tick skipped: data unavailable", map[string]any{
			"error": err.Error(),
		})
		return nil, 0, false
	}
	price, err := p.agg.Spot(ctx, p.params.Symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Spot price fetch failed, skipping tick", err,
			"symbol", p.params.Symbol)
		p.auditLog(ctx, "ERROR", "strategic tick skipped: no spot price", map[string]any{
			"error": err.Error(),
		})
		return nil, 0, false
	}
	return snaps, price, true
}

func (p *Planner) fetchHeadlines(ctx context.Context) []string {
	if p.headlines == nil || p.params.MaxHeadlines <= 0 {
		return nil
	}
	hs, err := p.headlines.Headlines(ctx, p.params.MaxHeadlines)
	if err != nil {
		logger.Warn(ctx, "Headline fetch failed, continuing without", "error", err)
		return nil
	}
	return hs
}

// analyze acquires a credential and issues the inference call, with
// one retry on a fresh credential before giving up for this tick.
func (p *Planner) analyze(ctx context.Context, prompt string) (raw, credID string, ok bool) {
	var lastErr error
	for attempt := 0; attempt < credentialAttempts; attempt++ {
		cred, err := p.pool.Acquire(types.ClassPrimary)
		if err != nil {
			p.monitor.NoteExhausted(health.CycleStrategic)
			logger.Error(ctx, "Credential pool exhausted, skipping strategic tick",
				"attempt", attempt+1)
			p.auditLog(ctx, "ERROR", "strategic tick skipped: credentials exhausted", nil)
			return "", "", false
		}
		p.monitor.NoteOK(health.CycleStrategic)

		out, err := p.inference.Generate(ctx, cred, p.params.Model, prompt)
		if err != nil {
			lastErr = err
			p.pool.Report(cred.ID, credpool.ClassifyOutcome(err))
			logger.Warn(ctx, "Strategic inference attempt failed",
				"attempt", attempt+1, "credential", cred.ID, "error", err)
			continue
		}
		p.pool.Report(cred.ID, types.OutcomeSuccess)
		return out, cred.ID, true
	}
	logger.ErrorWithErr(ctx, "Strategic inference failed on all attempts", lastErr)
	p.auditLog(ctx, "ERROR", "strategic tick skipped: inference failed", map[string]any{
		"error": lastErr.Error(),
	})
	return "", "", false
}

func (p *Planner) archiveCandles(ctx context.Context, snaps map[types.Timeframe]types.CandleSnapshot) {
	for _, snap := range snaps {
		if err := p.sink.RecordCandles(ctx, snap); err != nil {
			logger.Warn(ctx, "Candle archive write degraded",
				"timeframe", string(snap.Timeframe), "error", err)
		}
	}
}

func (p *Planner) auditLog(ctx context.Context, level, msg string, details map[string]any) {
	rec := types.LogRecord{
		ID:        ids.New(),
		Ts:        p.now(),
		Level:     level,
		Component: component,
		Message:   msg,
		Details:   details,
	}
	if err := p.sink.Record(ctx, rec); err != nil {
		logger.Warn(ctx, "System log audit write degraded", "error", err)
	}
}
