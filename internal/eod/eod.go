// Package eod writes the daily CSV summary of closed paper trades
// from the local trade log.
package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dual-llm-trader/internal/tradelog"
)

type aggRow struct {
	Symbol   string
	Closed   int
	Wins     int
	Losses   int
	TotalPnL decimal.Decimal
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func tradeFile(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func csvPath(t time.Time) string {
	return filepath.Join(logDir(), "eod", t.UTC().Format("2006-01-02")+".csv")
}

// SummarizeDay aggregates the day's closed trades into a CSV report.
// A day with no trade log, or no closes, yields no file and no error.
func SummarizeDay(t time.Time) (string, error) {
	inPath := tradeFile(t)
	f, err := os.Open(inPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e tradelog.TradeEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue // tolerate partial lines from a crashed run
		}
		if e.Event != "CLOSE" {
			continue
		}
		row := aggs[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol}
			aggs[e.Symbol] = row
		}
		pnl, err := decimal.NewFromString(e.RealizedPnL)
		if err != nil {
			continue
		}
		row.Closed++
		if pnl.IsNegative() {
			row.Losses++
		} else {
			row.Wins++
		}
		row.TotalPnL = row.TotalPnL.Add(pnl)
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	if err := w.Write([]string{"symbol", "closed", "wins", "losses", "realized_pnl", "avg_pnl"}); err != nil {
		return "", err
	}
	total := decimal.Zero
	for _, k := range keys {
		r := aggs[k]
		avg := r.TotalPnL.DivRound(decimal.NewFromInt(int64(r.Closed)), 2)
		rec := []string{
			r.Symbol,
			fmt.Sprintf("%d", r.Closed),
			fmt.Sprintf("%d", r.Wins),
			fmt.Sprintf("%d", r.Losses),
			r.TotalPnL.StringFixed(2),
			avg.StringFixed(2),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		total = total.Add(r.TotalPnL)
	}
	if err := w.Write([]string{"TOTAL", "", "", "", total.StringFixed(2), ""}); err != nil {
		return "", err
	}
	return outPath, nil
}

// ShouldRunNow reports whether yesterday's summary is still missing.
func ShouldRunNow() (bool, string) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	path := csvPath(yesterday)
	if _, err := os.Stat(path); err == nil {
		return false, path
	}
	return true, path
}

// SummarizeYesterday is the scheduler entry point.
func SummarizeYesterday() (string, error) {
	return SummarizeDay(time.Now().UTC().AddDate(0, 0, -1))
}
