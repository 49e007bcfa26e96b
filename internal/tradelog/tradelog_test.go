package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []TradeEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []TradeEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e TradeEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestAppendKeepsCallerTimestamp(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	stamp := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC).Format(time.RFC3339)

	require.NoError(t, Append(TradeEntry{
		Time:     stamp,
		RecordID: "rec_1",
		Symbol:   "BTC-USD",
		Event:    "CLOSE",
	}))

	entries := readEntries(t, dailyFilepath(time.Now().UTC()))
	require.Len(t, entries, 1)
	assert.Equal(t, stamp, entries[0].Time)
}

func TestAppendStampsMissingTimestamp(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	require.NoError(t, Append(TradeEntry{
		RecordID: "rec_2",
		Symbol:   "BTC-USD",
		Event:    "OPEN",
	}))

	entries := readEntries(t, dailyFilepath(time.Now().UTC()))
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].Time)
	_, err := time.Parse(time.RFC3339, entries[0].Time)
	assert.NoError(t, err)
}
