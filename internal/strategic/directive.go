package strategic

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/types"
)

// Store holds the current directive behind an atomic pointer.
// Single writer (the planner), many readers; a reader always sees a
// fully-old or fully-new directive, never a partial one.
type Store struct {
	cur     atomic.Pointer[types.Directive]
	version atomic.Uint64
}

func NewStore() *Store { return &Store{} }

// Current returns the committed directive, or nil when none exists
// yet or the latest one has expired.
func (s *Store) Current(now time.Time) *types.Directive {
	d := s.cur.Load()
	if d == nil || d.Expired(now) {
		return nil
	}
	return d
}

// Commit atomically replaces the current directive, assigning the
// next version. The directive must not be mutated after commit.
func (s *Store) Commit(d *types.Directive) {
	d.Version = s.version.Add(1)
	s.cur.Store(d)
}

var validBias = map[string]bool{"LONG_BIAS": true, "SHORT_BIAS": true, "NEUTRAL": true}

type directiveWire struct {
	Bias              string            `json:"bias"`
	Reasoning         string            `json:"reasoning"`
	Trend4H           string            `json:"trend_4h"`
	Confidence        int               `json:"confidence"`
	EntryZones        []types.EntryZone `json:"entry_zones"`
	InvalidationLevel float64           `json:"invalidation_level"`
	Targets           []types.Target    `json:"targets"`
	ValidForHours     int               `json:"valid_for_hours"`
}

// ParseDirective turns a raw inference response into a directive, or
// ErrResponseMalformed; a malformed response must never replace prior
// valid state, so the caller discards it.
func ParseDirective(raw string, defaultValidity time.Duration) (*types.Directive, error) {
	var w directiveWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrResponseMalformed, err)
	}
	if !validBias[w.Bias] {
		return nil, fmt.Errorf("%w: bad bias %q", faults.ErrResponseMalformed, w.Bias)
	}
	if w.Confidence < 1 || w.Confidence > 10 {
		return nil, fmt.Errorf("%w: confidence %d out of range", faults.ErrResponseMalformed, w.Confidence)
	}
	if w.InvalidationLevel <= 0 {
		return nil, fmt.Errorf("%w: invalidation level %.2f", faults.ErrResponseMalformed, w.InvalidationLevel)
	}
	for _, z := range w.EntryZones {
		if z.Low <= 0 || z.High <= 0 || z.Low >= z.High {
			return nil, fmt.Errorf("%w: entry zone [%.2f, %.2f]", faults.ErrResponseMalformed, z.Low, z.High)
		}
	}
	for _, tgt := range w.Targets {
		if tgt.Price <= 0 {
			return nil, fmt.Errorf("%w: target price %.2f", faults.ErrResponseMalformed, tgt.Price)
		}
	}

	validity := defaultValidity
	if w.ValidForHours > 0 {
		validity = time.Duration(w.ValidForHours) * time.Hour
	}
	return &types.Directive{
		Bias:         w.Bias,
		Trend:        w.Trend4H,
		Confidence:   w.Confidence,
		EntryZones:   w.EntryZones,
		Targets:      w.Targets,
		Invalidation: w.InvalidationLevel,
		Rationale:    w.Reasoning,
		ValidFor:     validity,
	}, nil
}

// stripFences removes markdown code fencing some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
