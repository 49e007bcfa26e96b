// Package ta computes the indicator summary attached to each
// timeframe block in the model prompts.
package ta

import (
	"fmt"
	"math"

	"dual-llm-trader/internal/types"
)

func closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

func RSI(vals []float64, period int) float64 {
	if len(vals) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(vals) - period; i < len(vals); i++ {
		d := vals[i] - vals[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(vals []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(vals, n)
	sd := StdDev(vals, n)
	return mid, mid + k*sd, mid - k*sd
}

// ATR over the snapshot's last period bars.
func ATR(candles []types.Candle, period int) float64 {
	if len(candles) < period+1 || period <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		tr1 := candles[i].High - candles[i].Low
		tr2 := math.Abs(candles[i].High - candles[i-1].Close)
		tr3 := math.Abs(candles[i].Low - candles[i-1].Close)
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(period)
}

// Summary renders one indicator line for a snapshot, omitting
// indicators the window is too short for.
func Summary(snap types.CandleSnapshot) string {
	cl := closes(snap.Candles)
	parts := ""
	add := func(label string, v float64) {
		if math.IsNaN(v) {
			return
		}
		if parts != "" {
			parts += ", "
		}
		parts += fmt.Sprintf("%s=%.2f", label, v)
	}
	add("SMA20", SMA(cl, 20))
	add("SMA50", SMA(cl, 50))
	add("RSI14", RSI(cl, 14))
	add("ATR14", ATR(snap.Candles, 14))
	if mid, up, low := Bollinger(cl, 20, 2); !math.IsNaN(mid) {
		parts += fmt.Sprintf(", BB20=[%.2f, %.2f, %.2f]", low, mid, up)
	}
	if parts == "" {
		return ""
	}
	return "Indicators: " + parts
}
