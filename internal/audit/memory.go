package audit

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/types"
)

// MemorySink keeps every record in memory. It backs tests and runs
// without external persistence configured.
type MemorySink struct {
	mu         sync.Mutex
	Logs       []types.LogRecord
	Trades     []types.ClosedTrade
	Directives []types.Directive
	Decisions  []types.TacticalDecision
	Candles    []types.CandleSnapshot
	Portfolio  *types.PortfolioBalances
}

var _ interfaces.Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Record(_ context.Context, rec types.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, rec)
	return nil
}

func (m *MemorySink) RecordTrade(_ context.Context, trade types.ClosedTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Upsert by record key, mirroring the remote sink's idempotence.
	for i, t := range m.Trades {
		if t.ID == trade.ID {
			m.Trades[i] = trade
			return nil
		}
	}
	m.Trades = append(m.Trades, trade)
	return nil
}

func (m *MemorySink) RecordDirective(_ context.Context, d types.Directive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Directives = append(m.Directives, d)
	return nil
}

func (m *MemorySink) RecordDecision(_ context.Context, dec types.TacticalDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions = append(m.Decisions, dec)
	return nil
}

func (m *MemorySink) RecordCandles(_ context.Context, snap types.CandleSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Candles = append(m.Candles, snap)
	return nil
}

func (m *MemorySink) ReadLatestPortfolio(context.Context) (types.PortfolioBalances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Portfolio == nil {
		return types.PortfolioBalances{
			Base:       decimal.Zero,
			Quote:      decimal.NewFromInt(10000),
			TotalValue: decimal.NewFromInt(10000),
		}, nil
	}
	return *m.Portfolio, nil
}

func (m *MemorySink) WritePortfolio(_ context.Context, b types.PortfolioBalances) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Portfolio = &b
	return nil
}

func (m *MemorySink) Degraded() bool { return false }

// TradeCount is a convenience for assertions.
func (m *MemorySink) TradeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Trades)
}
