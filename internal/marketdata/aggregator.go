// Package marketdata fetches and validates multi-timeframe candle
// windows from the external feed.
package marketdata

import (
	"context"
	"fmt"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/types"
)

type Aggregator struct {
	feed interfaces.Feed
	// tolerance is how many bars a window may be short of the request
	// before it is rejected as DataUnavailable.
	tolerance int
}

var _ interfaces.Aggregator = (*Aggregator)(nil)

func NewAggregator(feed interfaces.Feed, tolerance int) *Aggregator {
	return &Aggregator{feed: feed, tolerance: tolerance}
}

// Fetch assembles one validated snapshot per requested timeframe.
// Timeframes fail independently; a missing mandatory timeframe fails
// the whole call, a missing optional one is just absent from the map.
func (a *Aggregator) Fetch(ctx context.Context, symbol string, specs []types.TimeframeSpec) (map[types.Timeframe]types.CandleSnapshot, error) {
	out := make(map[types.Timeframe]types.CandleSnapshot, len(specs))
	for _, spec := range specs {
		snap, err := a.fetchOne(ctx, symbol, spec)
		if err != nil {
			if spec.Mandatory {
				return nil, fmt.Errorf("mandatory timeframe %s: %w", spec.Timeframe, err)
			}
			logger.Warn(ctx, "Optional timeframe unavailable",
				"symbol", symbol, "timeframe", string(spec.Timeframe), "error", err)
			continue
		}
		out[spec.Timeframe] = snap
	}
	return out, nil
}

func (a *Aggregator) Spot(ctx context.Context, symbol string) (float64, error) {
	return a.feed.SpotPrice(ctx, symbol)
}

func (a *Aggregator) fetchOne(ctx context.Context, symbol string, spec types.TimeframeSpec) (types.CandleSnapshot, error) {
	candles, err := a.feed.Candles(ctx, symbol, spec.Timeframe, spec.Bars)
	if err != nil {
		if faults.IsTimeout(err) {
			return types.CandleSnapshot{}, fmt.Errorf("%w: feed timeout", faults.ErrDataUnavailable)
		}
		return types.CandleSnapshot{}, err
	}
	if len(candles) < spec.Bars-a.tolerance {
		return types.CandleSnapshot{}, fmt.Errorf("%w: got %d of %d bars",
			faults.ErrDataUnavailable, len(candles), spec.Bars)
	}
	if err := validate(candles); err != nil {
		return types.CandleSnapshot{}, fmt.Errorf("%w: %v", faults.ErrDataUnavailable, err)
	}
	return types.CandleSnapshot{Symbol: symbol, Timeframe: spec.Timeframe, Candles: candles}, nil
}

// validate enforces the snapshot invariants: strictly increasing bar
// times and well-formed OHLCV fields.
func validate(candles []types.Candle) error {
	var prev int64
	for i, c := range candles {
		if c.Ts <= 0 {
			return fmt.Errorf("bar %d has no timestamp", i)
		}
		if i > 0 && c.Ts <= prev {
			return fmt.Errorf("bar %d time %d not after %d", i, c.Ts, prev)
		}
		prev = c.Ts
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("bar %d has non-positive price", i)
		}
		if c.High < c.Low {
			return fmt.Errorf("bar %d high %.2f below low %.2f", i, c.High, c.Low)
		}
		if c.Volume < 0 {
			return fmt.Errorf("bar %d has negative volume", i)
		}
	}
	return nil
}
