// Package prompts builds the opaque text payloads sent to the
// inference service.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dual-llm-trader/internal/ta"
	"dual-llm-trader/internal/types"
)

// FormatCandles renders a snapshot's bars as one line per bar, the
// form the models are instructed against.
func FormatCandles(snap types.CandleSnapshot, limit int) string {
	candles := snap.Candles
	if len(candles) == 0 {
		return "No data available"
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	lines := make([]string, 0, len(candles))
	for _, c := range candles {
		lines = append(lines, fmt.Sprintf(
			"Time: %s, O: %.2f, H: %.2f, L: %.2f, C: %.2f, V: %.0f",
			time.Unix(c.Ts, 0).UTC().Format(time.RFC3339),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		))
	}
	return strings.Join(lines, "\n")
}

// section is a candle block plus its indicator summary.
func section(snap types.CandleSnapshot) string {
	s := FormatCandles(snap, 0)
	if ind := ta.Summary(snap); ind != "" {
		s += "\n" + ind
	}
	return s
}

// Strategic builds the hourly analysis prompt from the three
// mandated timeframes plus optional headlines.
func Strategic(symbol string, snaps map[types.Timeframe]types.CandleSnapshot, price float64, headlines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a master market strategist for %s. Produce a strategic directive for the next 1-4 hours for your tactical execution AI.

=== MARKET DATA ===

1. 4H CANDLES (Primary Trend & Structure):
%s

2. 1H CANDLES (Momentum & Secondary Structure):
%s

3. 15m CANDLES (Recent Price Action):
%s

Current Price: $%.2f
`, symbol,
		section(snaps[types.TF4H]),
		section(snaps[types.TF1H]),
		section(snaps[types.TF15M]),
		price)

	if len(headlines) > 0 {
		b.WriteString("\n=== RECENT HEADLINES ===\n")
		for _, h := range headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	b.WriteString(`
=== YOUR MISSION ===

Determine the 4H trend, identify the key supply/demand zones, establish a strategic bias, define high-probability entry zones, and set the invalidation level.

=== RESPONSE FORMAT (JSON ONLY) ===

Respond ONLY with a valid JSON object, no text before or after:
{
    "bias": "LONG_BIAS" | "SHORT_BIAS" | "NEUTRAL",
    "reasoning": "Strategic analysis of the structure and why this bias was chosen.",
    "trend_4h": "UPTREND" | "DOWNTREND" | "RANGE",
    "confidence": 1-10,
    "entry_zones": [{"min": 0.0, "max": 0.0, "priority": "PRIMARY"}],
    "invalidation_level": 0.0,
    "targets": [{"price": 0.0, "level": "TP1"}],
    "valid_for_hours": 4
}
`)
	return b.String()
}

// Tactical builds the per-minute execution prompt from the current
// directive and the short-window snapshots.
func Tactical(symbol string, d *types.Directive, snaps map[types.Timeframe]types.CandleSnapshot, price float64) string {
	directiveJSON, _ := json.MarshalIndent(directivePayload(d), "", "  ")
	return fmt.Sprintf(`You are a tactical execution AI for %s. Execute the strategic directive below with precision.

=== STRATEGIC DIRECTIVE ===
%s

=== CURRENT MARKET (Real-Time) ===

Current Price: $%.2f
Time: %s

1. 1H CANDLES (Immediate Context):
%s

2. 15m CANDLES (Building Momentum):
%s

3. 1m CANDLES (Entry Pattern Recognition):
%s

=== YOUR TACTICAL DECISION ===

Check whether price sits inside a designated entry zone, whether confirmation patterns are present right now, and whether any avoidance condition applies. Then decide: ENTER, WAIT, or REJECT.

=== RESPONSE FORMAT (JSON ONLY) ===

Respond ONLY with a valid JSON object:
{
    "action": "ENTER" | "WAIT" | "REJECT",
    "reasoning": "Brief tactical analysis.",
    "confidence": 1-10,
    "pattern_detected": "pattern name or None"
}
`, symbol, directiveJSON, price, time.Now().UTC().Format(time.RFC3339),
		section(snaps[types.TF1H]),
		section(snaps[types.TF15M]),
		section(snaps[types.TF1M]))
}

func directivePayload(d *types.Directive) map[string]any {
	return map[string]any{
		"bias":               d.Bias,
		"trend_4h":           d.Trend,
		"confidence":         d.Confidence,
		"reasoning":          d.Rationale,
		"entry_zones":        d.EntryZones,
		"invalidation_level": d.Invalidation,
		"targets":            d.Targets,
		"issued_at":          d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
