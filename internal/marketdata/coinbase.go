package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/trace"
	"dual-llm-trader/internal/types"
)

// granularities maps timeframe labels to Coinbase candle granularity
// in seconds.
var granularities = map[types.Timeframe]int{
	types.TF1M:  60,
	types.TF15M: 900,
	types.TF1H:  3600,
	types.TF4H:  14400,
}

// CoinbaseFeed fetches candles and spot prices from the Coinbase
// Exchange public REST API.
type CoinbaseFeed struct {
	client *resty.Client
}

func NewCoinbaseFeed(baseURL string, timeout time.Duration) *CoinbaseFeed {
	if baseURL == "" {
		baseURL = "https://api.exchange.coinbase.com"
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return &CoinbaseFeed{client: client}
}

// Candles fetches up to bars candles for one timeframe, oldest first.
func (f *CoinbaseFeed) Candles(ctx context.Context, symbol string, tf types.Timeframe, bars int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Candles")
	defer span.End()

	gran, ok := granularities[tf]
	if !ok {
		return nil, fmt.Errorf("%w: unknown timeframe %q", faults.ErrDataUnavailable, tf)
	}

	// Coinbase rows: [time, low, high, open, close, volume], newest first.
	var raw [][]float64
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("granularity", strconv.Itoa(gran)).
		SetResult(&raw).
		Get(fmt.Sprintf("/products/%s/candles", symbol))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrDataUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: feed http %d", faults.ErrDataUnavailable, resp.StatusCode())
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, types.Candle{
			Ts:     int64(row[0]),
			Low:    row[1],
			High:   row[2],
			Open:   row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Ts < candles[j].Ts })
	if len(candles) > bars {
		candles = candles[len(candles)-bars:]
	}
	return candles, nil
}

// SpotPrice fetches the instantaneous ticker price.
func (f *CoinbaseFeed) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.SpotPrice")
	defer span.End()

	var out struct {
		Price string `json:"price"`
	}
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/products/%s/ticker", symbol))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", faults.ErrDataUnavailable, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("%w: ticker http %d", faults.ErrDataUnavailable, resp.StatusCode())
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad ticker price %q", faults.ErrDataUnavailable, out.Price)
	}
	return price, nil
}
