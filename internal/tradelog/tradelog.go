// Package tradelog is the local append-only JSONL log: the trade
// ledger mirror and the fallback for audit records that could not be
// persisted remotely.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

type TradeEntry struct {
	Time, RecordID, Symbol, Event string
	Qty                           string
	EntryPrice, ExitPrice         float64
	RealizedPnL                   string
	Reason                        string
	DirectiveID                   string
}

type DecisionEntry struct {
	Time, RecordID, Symbol, Action string
	Confidence                     int
	Price                          float64
	DirectiveID                    string
	Reason                         string
}

// FallbackEntry captures an audit record that exhausted its remote
// retries, keyed so it can be replayed later.
type FallbackEntry struct {
	Time, RecordID, Kind string
	Payload              json.RawMessage
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func decisionsFilepath(t time.Time) string {
	return filepath.Join(logDir(), "decisions", t.UTC().Format("2006-01-02")+".txt")
}

func fallbackFilepath(t time.Time) string {
	return filepath.Join(logDir(), "audit-fallback", t.UTC().Format("2006-01-02")+".txt")
}

func Append(e TradeEntry) error {
	now := time.Now().UTC()
	if e.Time == "" {
		e.Time = now.Format(time.RFC3339)
	}
	return appendLine(dailyFilepath(now), e)
}

func AppendDecision(e DecisionEntry) error {
	now := time.Now().UTC()
	if e.Time == "" {
		e.Time = now.Format(time.RFC3339)
	}
	return appendLine(decisionsFilepath(now), e)
}

func AppendFallback(e FallbackEntry) error {
	now := time.Now().UTC()
	if e.Time == "" {
		e.Time = now.Format(time.RFC3339)
	}
	return appendLine(fallbackFilepath(now), e)
}

func appendLine(path string, v any) error {
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(v)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips log files older than retentionDays.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()
		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, e5 := io.Copy(gw, in); e5 == nil {
			_ = gw.Close()
			_ = out.Close()
			_ = os.Remove(p)
		} else {
			_ = gw.Close()
			_ = out.Close()
		}
		return nil
	})
}
