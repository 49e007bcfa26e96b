package interfaces

import (
	"context"

	"dual-llm-trader/internal/types"
)

// Feed is the raw market-data collaborator: one timeframe window or
// one spot price per call.
type Feed interface {
	Candles(ctx context.Context, symbol string, tf types.Timeframe, bars int) ([]types.Candle, error)
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// Aggregator assembles validated multi-timeframe snapshots from a Feed.
type Aggregator interface {
	Fetch(ctx context.Context, symbol string, specs []types.TimeframeSpec) (map[types.Timeframe]types.CandleSnapshot, error)
	Spot(ctx context.Context, symbol string) (float64, error)
}
