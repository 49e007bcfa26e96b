package interfaces

import (
	"context"

	"dual-llm-trader/internal/types"
)

// Sink is the append-only persistence collaborator. Calls are
// fire-and-forget for trading logic but must not silently drop:
// implementations retry a bounded number of times, then fall back to
// the local log and flag themselves degraded.
type Sink interface {
	Record(ctx context.Context, rec types.LogRecord) error
	RecordTrade(ctx context.Context, trade types.ClosedTrade) error
	RecordDirective(ctx context.Context, d types.Directive) error
	RecordDecision(ctx context.Context, dec types.TacticalDecision) error
	RecordCandles(ctx context.Context, snap types.CandleSnapshot) error
	ReadLatestPortfolio(ctx context.Context) (types.PortfolioBalances, error)
	WritePortfolio(ctx context.Context, b types.PortfolioBalances) error
	Degraded() bool
}
