// Package tactical runs the per-minute execution cycle: it reads the
// current strategic directive, decides ENTER/WAIT/REJECT, and drives
// the trade state machine. Every failure mode degrades to WAIT.
package tactical

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
	"dual-llm-trader/internal/tradelog"
	"dual-llm-trader/internal/types"
)

const component = "tactical"

const credentialAttempts = 2

type Params struct {
	Symbol     string
	Model      string
	Candles1H  int
	Candles15M int
	Candles1M  int
}

// Machine is the synchronous position-transition collaborator.
type Machine interface {
	Evaluate(ctx context.Context, dec types.TacticalDecision, d *types.Directive, price float64) error
	State() types.PositionState
}

type Executor struct {
	params    Params
	agg       interfaces.Aggregator
	pool      interfaces.CredentialPool
	inference interfaces.Inference
	sink      interfaces.Sink
	planner   interfaces.Planner
	machine   Machine
	monitor   *health.Monitor
	now       func() time.Time
}

var _ interfaces.Executor = (*Executor)(nil)

func New(params Params, agg interfaces.Aggregator, pool interfaces.CredentialPool,
	inference interfaces.Inference, sink interfaces.Sink,
	planner interfaces.Planner, machine Machine, monitor *health.Monitor) *Executor {
	return &Executor{
		params:    params,
		agg:       agg,
		pool:      pool,
		inference: inference,
		sink:      sink,
		planner:   planner,
		machine:   machine,
		monitor:   monitor,
		now:       time.Now,
	}
}

// Tick runs one tactical cycle and returns the decision acted on.
// The returned error is always nil: degraded cycles surface as WAIT
// with confidence 0 so the scheduler never stops the loop.
func (e *Executor) Tick(ctx context.Context) (types.TacticalDecision, error) {
	ctx, span := trace.StartSpan(ctx, "tactical.Tick")
	defer span.End()

	directive := e.planner.Current()
	flat := e.machine.State() == types.PositionFlat

	// Startup window: nothing to act on and no position to protect,
	// so skip the feed entirely.
	if directive == nil && flat {
		logger.Debug(ctx, "No active directive, waiting")
		return e.emit(ctx, e.waitDecision("no active directive"), nil, 0), nil
	}

	price, err := e.agg.Spot(ctx, e.params.Symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Spot price fetch failed, waiting", err)
		e.auditLog(ctx, "ERROR", "tactical tick degraded: no spot price", map[string]any{
			"error": err.Error(),
		})
		return e.emit(ctx, e.waitDecision("spot price unavailable"), directive, 0), nil
	}

	// An expired directive counts as none, but an open position still
	// gets its stop/target checks against the live price.
	if directive == nil {
		logger.Warn(ctx, "Directive expired with position open, managing exits only")
		return e.emit(ctx, e.waitDecision("directive expired"), nil, price), nil
	}

	// Entry pre-check: while flat, a price outside every entry zone
	// cannot lead to an entry, so the model call is skipped.
	if _, inZone := directive.InZone(price); flat && !inZone {
		logger.Debug(ctx, "Price outside entry zones, waiting",
			"price", price, "directive_id", directive.ID)
		return e.emit(ctx, e.waitDecision("price outside entry zones"), directive, price), nil
	}

	snaps, err := e.agg.Fetch(ctx, e.params.Symbol, e.specs())
	if err != nil {
		logger.ErrorWithErr(ctx, "Tactical data fetch failed, waiting", err)
		e.auditLog(ctx, "ERROR", "tactical tick degraded: data unavailable", map[string]any{
			"error": err.Error(),
		})
		return e.emit(ctx, e.waitDecision("market data unavailable"), directive, price), nil
	}

	raw, ok := e.analyze(ctx, prompts.Tactical(e.params.Symbol, directive, snaps, price))
	if !ok {
		return e.emit(ctx, e.waitDecision("inference unavailable"), directive, price), nil
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		logger.ErrorWithErr(ctx, "Discarding malformed tactical response", err,
			"response_chars", len(raw))
		e.auditLog(ctx, "ERROR", "tactical response discarded", map[string]any{
			"error": err.Error(),
		})
		return e.emit(ctx, e.waitDecision("response malformed"), directive, price), nil
	}

	// A decision arriving after the tick was abandoned must not move
	// the position.
	if ctx.Err() != nil {
		logger.Warn(ctx, "Tactical tick abandoned before acting")
		return e.waitDecision("tick abandoned"), nil
	}

	return e.emit(ctx, decision, directive, price), nil
}

func (e *Executor) specs() []types.TimeframeSpec {
	return []types.TimeframeSpec{
		{Timeframe: types.TF1H, Bars: e.params.Candles1H, Mandatory: true},
		{Timeframe: types.TF15M, Bars: e.params.Candles15M, Mandatory: true},
		{Timeframe: types.TF1M, Bars: e.params.Candles1M, Mandatory: true},
	}
}

func (e *Executor) analyze(ctx context.Context, prompt string) (string, bool) {
	var lastErr error
	for attempt := 0; attempt < credentialAttempts; attempt++ {
		cred, err := e.pool.Acquire(types.ClassPrimary)
		if err != nil {
			e.monitor.NoteExhausted(health.CycleTactical)
			logger.Error(ctx, "Credential pool exhausted, waiting", "attempt", attempt+1)
			e.auditLog(ctx, "ERROR", "tactical tick degraded: credentials exhausted", nil)
			return "", false
		}
		e.monitor.NoteOK(health.CycleTactical)

		out, err := e.inference.Generate(ctx, cred, e.params.Model, prompt)
		if err != nil {
			lastErr = err
			e.pool.Report(cred.ID, credpool.ClassifyOutcome(err))
			logger.Warn(ctx, "Tactical inference attempt failed",
				"attempt", attempt+1, "credential", cred.ID, "error", err)
			continue
		}
		e.pool.Report(cred.ID, types.OutcomeSuccess)
		return out, true
	}
	logger.ErrorWithErr(ctx, "Tactical inference failed on all attempts", lastErr)
	e.auditLog(ctx, "ERROR", "tactical tick degraded: inference failed", map[string]any{
		"error": lastErr.Error(),
	})
	return "", false
}

// emit finalizes the decision, drives the state machine, and audits
// the decision whether or not it caused a transition.
func (e *Executor) emit(ctx context.Context, dec types.TacticalDecision, d *types.Directive, price float64) types.TacticalDecision {
	dec.ID = ids.New()
	dec.Ts = e.now()
	dec.Price = price
	if d != nil {
		dec.DirectiveID = d.ID
	}

	logger.Decision(ctx, e.params.Symbol, string(dec.Action), dec.Confidence, dec.Reason,
		"price", price, "directive_id", dec.DirectiveID)

	if price > 0 {
		if err := e.machine.Evaluate(ctx, dec, d, price); err != nil {
			logger.ErrorWithErr(ctx, "Trade evaluation failed", err)
		}
	}

	if err := e.sink.RecordDecision(ctx, dec); err != nil {
		logger.Warn(ctx, "Decision audit write degraded", "error", err)
	}
	if err := tradelog.AppendDecision(tradelog.DecisionEntry{
		Time:        dec.Ts.UTC().Format(time.RFC3339),
		RecordID:    dec.ID,
		Symbol:      e.params.Symbol,
		Action:      string(dec.Action),
		Confidence:  dec.Confidence,
		Price:       price,
		DirectiveID: dec.DirectiveID,
		Reason:      dec.Reason,
	}); err != nil {
		logger.Warn(ctx, "Local decision log write failed", "error", err)
	}
	return dec
}

func (e *Executor) waitDecision(reason string) types.TacticalDecision {
	return types.TacticalDecision{
		Action:     types.ActionWait,
		Confidence: 0,
		Reason:     reason,
	}
}

func (e *Executor) auditLog(ctx context.Context, level, msg string, details map[string]any) {
	rec := types.LogRecord{
		ID:        ids.New(),
		Ts:        e.now(),
		Level:     level,
		Component: component,
		Message:   msg,
		Details:   details,
	}
	if err := e.sink.Record(ctx, rec); err != nil {
		logger.Warn(ctx, "System log audit write degraded", "error", err)
	}
}
