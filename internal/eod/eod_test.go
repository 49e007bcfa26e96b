package eod

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/tradelog"
)

func writeTradeLog(t *testing.T, dir string, day time.Time, entries []tradelog.TradeEntry) {
	t.Helper()
	path := filepath.Join(dir, day.UTC().Format("2006-01-02")+".txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for _, e := range entries {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		fmt.Fprintln(f, string(b))
	}
}

func TestSummarizeDayAggregatesCloses(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	writeTradeLog(t, dir, day, []tradelog.TradeEntry{
		{Symbol: "BTC-USD", Event: "OPEN", Qty: "0.001", EntryPrice: 91000},
		{Symbol: "BTC-USD", Event: "CLOSE", Qty: "0.001", EntryPrice: 91000, ExitPrice: 93000, RealizedPnL: "2.00", Reason: "TAKE_PROFIT"},
		{Symbol: "BTC-USD", Event: "OPEN", Qty: "0.001", EntryPrice: 92000},
		{Symbol: "BTC-USD", Event: "CLOSE", Qty: "0.001", EntryPrice: 92000, ExitPrice: 90000, RealizedPnL: "-2.50", Reason: "STOP_LOSS"},
	})

	path, err := SummarizeDay(day)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"symbol", "closed", "wins", "losses", "realized_pnl", "avg_pnl"}, rows[0])
	assert.Equal(t, []string{"BTC-USD", "2", "1", "1", "-0.50", "-0.25"}, rows[1])
	assert.Equal(t, "TOTAL", rows[2][0])
	assert.Equal(t, "-0.50", rows[2][4])
}

func TestSummarizeDayNoLogIsNotAnError(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	path, err := SummarizeDay(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSummarizeDayOnlyOpensYieldsNoReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	day := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)

	writeTradeLog(t, dir, day, []tradelog.TradeEntry{
		{Symbol: "BTC-USD", Event: "OPEN", Qty: "0.001", EntryPrice: 91000},
	})

	path, err := SummarizeDay(day)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSummarizeDaySkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	day := time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC)

	path := filepath.Join(dir, day.Format("2006-01-02")+".txt")
	content := `{"Symbol":"BTC-USD","Event":"CLOSE","RealizedPnL":"1.25"}
not json at all
{"Symbol":"BTC-USD","Event":"CLOSE","RealizedPnL":"broken`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := SummarizeDay(day)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD", "1", "1", "0", "1.25", "1.25"}, rows[1])
}
