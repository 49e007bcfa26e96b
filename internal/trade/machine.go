// Package trade is the paper-trade state machine: a single FLAT/OPEN
// position driven by tactical decisions and the live price.
package trade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dual-llm-trader/internal/ids"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/tradelog"
	"dual-llm-trader/internal/types"
)

// ExitPolicy selects the realized price for a REJECT-triggered close.
const (
	ExitPolicyMarket = "MARKET"
	ExitPolicyStop   = "STOP"
)

// Close reasons recorded on the trade ledger.
const (
	ReasonStopLoss   = "STOP_LOSS"
	ReasonTakeProfit = "TAKE_PROFIT"
	ReasonReject     = "STRATEGY_REJECT"
)

type Params struct {
	Symbol          string
	EntryConfidence int
	ExitConfidence  int
	QuoteAmount     decimal.Decimal
	ExitPolicy      string
}

// Machine holds at most one open position. All transitions run
// synchronously inside the tactical tick, so the mutex only guards
// against readers on other goroutines (stats, shutdown).
type Machine struct {
	params Params
	sink   interfaces.Sink

	mu  sync.Mutex
	pos *types.Position
	now func() time.Time
}

func NewMachine(params Params, sink interfaces.Sink) *Machine {
	if params.ExitPolicy == "" {
		params.ExitPolicy = ExitPolicyMarket
	}
	return &Machine{params: params, sink: sink, now: time.Now}
}

func (m *Machine) State() types.PositionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return types.PositionFlat
	}
	return types.PositionOpen
}

// Position returns a copy of the open position, or nil when flat.
func (m *Machine) Position() *types.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return nil
	}
	p := *m.pos
	return &p
}

// Evaluate applies one tactical decision at the current price.
// Unmatched decisions leave the state untouched.
func (m *Machine) Evaluate(ctx context.Context, dec types.TacticalDecision, d *types.Directive, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos == nil {
		return m.evaluateFlat(ctx, dec, d, price)
	}
	return m.evaluateOpen(ctx, dec, price)
}

func (m *Machine) evaluateFlat(ctx context.Context, dec types.TacticalDecision, d *types.Directive, price float64) error {
	if dec.Action != types.ActionEnter {
		return nil
	}
	if dec.Confidence < m.params.EntryConfidence {
		logger.Info(ctx, "Entry below confidence threshold, staying flat",
			"confidence", dec.Confidence, "threshold", m.params.EntryConfidence)
		return nil
	}
	if d == nil {
		logger.Warn(ctx, "Entry without an active directive, staying flat")
		return nil
	}
	if _, ok := d.InZone(price); !ok {
		// The model said enter but price left the zone since the
		// pre-check; do not chase.
		logger.Warn(ctx, "Entry price outside directive zones, staying flat",
			"price", price)
		return nil
	}
	return m.open(ctx, dec, d, price)
}

func (m *Machine) evaluateOpen(ctx context.Context, dec types.TacticalDecision, price float64) error {
	pos := m.pos
	switch {
	case pos.Stop > 0 && price <= pos.Stop:
		return m.close(ctx, price, ReasonStopLoss)
	case pos.Target > 0 && price >= pos.Target:
		return m.close(ctx, price, ReasonTakeProfit)
	case dec.Action == types.ActionReject && dec.Confidence >= m.params.ExitConfidence:
		exit := price
		if m.params.ExitPolicy == ExitPolicyStop && pos.Stop > 0 {
			exit = pos.Stop
		}
		return m.close(ctx, exit, ReasonReject)
	}
	return nil
}

func (m *Machine) open(ctx context.Context, dec types.TacticalDecision, d *types.Directive, price float64) error {
	book, err := m.sink.ReadLatestPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("read portfolio: %w", err)
	}
	spend := decimal.Min(m.params.QuoteAmount, book.Quote)
	if spend.LessThanOrEqual(decimal.Zero) {
		logger.Warn(ctx, "Quote balance exhausted, cannot open",
			"quote", book.Quote.String())
		return nil
	}
	px := decimal.NewFromFloat(price)
	qty := spend.DivRound(px, 8)

	now := m.now()
	m.pos = &types.Position{
		Symbol:      m.params.Symbol,
		EntryPrice:  price,
		Qty:         qty,
		EntryTime:   now,
		Stop:        d.Invalidation,
		Target:      d.FirstTarget(),
		DirectiveID: d.ID,
	}

	book.Quote = book.Quote.Sub(spend)
	book.Base = book.Base.Add(qty)
	book.TotalValue = book.Quote.Add(book.Base.Mul(px))
	book.Ts = now
	if err := m.sink.WritePortfolio(ctx, book); err != nil {
		logger.Warn(ctx, "Portfolio audit write degraded", "error", err)
	}

	logger.Trade(ctx, m.params.Symbol, "OPEN", qty.String(), price,
		"stop", m.pos.Stop, "target", m.pos.Target, "directive_id", d.ID)
	m.auditEvent(ctx, "position opened", map[string]any{
		"qty": qty.String(), "price": price,
		"stop": m.pos.Stop, "target": m.pos.Target,
		"directive_id": d.ID,
	})
	if err := tradelog.Append(tradelog.TradeEntry{
		Time:        now.UTC().Format(time.RFC3339),
		RecordID:    ids.New(),
		Symbol:      m.params.Symbol,
		Event:       "OPEN",
		Qty:         qty.String(),
		EntryPrice:  price,
		DirectiveID: d.ID,
	}); err != nil {
		logger.Warn(ctx, "Local trade log write failed", "error", err)
	}
	return nil
}

func (m *Machine) close(ctx context.Context, exitPrice float64, reason string) error {
	pos := m.pos
	m.pos = nil

	now := m.now()
	entry := decimal.NewFromFloat(pos.EntryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	pnl := exit.Sub(entry).Mul(pos.Qty)

	closed := types.ClosedTrade{
		ID:          ids.New(),
		Symbol:      pos.Symbol,
		Qty:         pos.Qty,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		RealizedPnL: pnl,
		Reason:      reason,
		DirectiveID: pos.DirectiveID,
	}

	book, err := m.sink.ReadLatestPortfolio(ctx)
	if err != nil {
		logger.Warn(ctx, "Portfolio read degraded on close", "error", err)
	} else {
		book.Base = book.Base.Sub(pos.Qty)
		book.Quote = book.Quote.Add(pos.Qty.Mul(exit))
		book.TotalValue = book.Quote.Add(book.Base.Mul(exit))
		book.Ts = now
		if err := m.sink.WritePortfolio(ctx, book); err != nil {
			logger.Warn(ctx, "Portfolio audit write degraded", "error", err)
		}
	}

	logger.Trade(ctx, pos.Symbol, "CLOSE", pos.Qty.String(), exitPrice,
		"reason", reason, "pnl", pnl.String(), "directive_id", pos.DirectiveID)
	if err := m.sink.RecordTrade(ctx, closed); err != nil {
		logger.Warn(ctx, "Trade audit write degraded", "error", err)
	}
	if err := tradelog.Append(tradelog.TradeEntry{
		Time:        now.UTC().Format(time.RFC3339),
		RecordID:    closed.ID,
		Symbol:      pos.Symbol,
		Event:       "CLOSE",
		Qty:         pos.Qty.String(),
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: pnl.String(),
		Reason:      reason,
		DirectiveID: pos.DirectiveID,
	}); err != nil {
		logger.Warn(ctx, "Local trade log write failed", "error", err)
	}
	return nil
}

func (m *Machine) auditEvent(ctx context.Context, msg string, details map[string]any) {
	rec := types.LogRecord{
		ID:        ids.New(),
		Ts:        m.now(),
		Level:     "INFO",
		Component: "trade",
		Message:   msg,
		Details:   details,
	}
	if err := m.sink.Record(ctx, rec); err != nil {
		logger.Warn(ctx, "System log audit write degraded", "error", err)
	}
}
