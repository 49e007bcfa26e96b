package marketdata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/types"
)

type fakeFeed struct {
	candles map[types.Timeframe][]types.Candle
	err     error
	price   float64
}

func (f *fakeFeed) Candles(_ context.Context, _ string, tf types.Timeframe, _ int) ([]types.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[tf], nil
}

func (f *fakeFeed) SpotPrice(context.Context, string) (float64, error) {
	return f.price, nil
}

func bars(n int, start int64, step int64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		out[i] = types.Candle{
			Ts: start + int64(i)*step, Open: 100, High: 110, Low: 90, Close: 105, Volume: 10,
		}
	}
	return out
}

func TestFetchValidSnapshot(t *testing.T) {
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{
		types.TF4H: bars(100, 1_700_000_000, 14400),
	}}
	agg := NewAggregator(feed, 5)

	snaps, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
	})
	require.NoError(t, err)
	require.Len(t, snaps[types.TF4H].Candles, 100)
	assert.Equal(t, "BTC-USD", snaps[types.TF4H].Symbol)
}

func TestFetchShortWindowIsDataUnavailable(t *testing.T) {
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{
		types.TF4H: bars(80, 1_700_000_000, 14400),
	}}
	agg := NewAggregator(feed, 5)

	_, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
	})
	assert.ErrorIs(t, err, faults.ErrDataUnavailable)
}

func TestFetchWithinToleranceAccepted(t *testing.T) {
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{
		types.TF1H: bars(165, 1_700_000_000, 3600),
	}}
	agg := NewAggregator(feed, 5)

	snaps, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF1H, Bars: 168, Mandatory: true},
	})
	require.NoError(t, err)
	assert.Len(t, snaps[types.TF1H].Candles, 165)
}

func TestFetchRejectsNonIncreasingTimestamps(t *testing.T) {
	cs := bars(100, 1_700_000_000, 14400)
	cs[50].Ts = cs[49].Ts // duplicate bar time
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{types.TF4H: cs}}
	agg := NewAggregator(feed, 5)

	_, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
	})
	assert.ErrorIs(t, err, faults.ErrDataUnavailable)
}

func TestFetchRejectsBadBar(t *testing.T) {
	cs := bars(100, 1_700_000_000, 14400)
	cs[10].Close = 0
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{types.TF4H: cs}}
	agg := NewAggregator(feed, 5)

	_, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
	})
	assert.ErrorIs(t, err, faults.ErrDataUnavailable)
}

func TestOptionalTimeframeFailureDoesNotDiscardOthers(t *testing.T) {
	feed := &fakeFeed{candles: map[types.Timeframe][]types.Candle{
		types.TF4H: bars(100, 1_700_000_000, 14400),
		// TF15M absent entirely
	}}
	agg := NewAggregator(feed, 5)

	snaps, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
		{Timeframe: types.TF15M, Bars: 96, Mandatory: false},
	})
	require.NoError(t, err)
	assert.Contains(t, snaps, types.TF4H)
	assert.NotContains(t, snaps, types.TF15M)
}

func TestFeedTimeoutMapsToDataUnavailable(t *testing.T) {
	feed := &fakeFeed{err: context.DeadlineExceeded}
	agg := NewAggregator(feed, 5)

	_, err := agg.Fetch(context.Background(), "BTC-USD", []types.TimeframeSpec{
		{Timeframe: types.TF4H, Bars: 100, Mandatory: true},
	})
	assert.ErrorIs(t, err, faults.ErrDataUnavailable)
	assert.False(t, errors.Is(err, faults.ErrResponseMalformed))
}
