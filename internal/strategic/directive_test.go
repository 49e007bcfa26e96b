package strategic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/types"
)

const goodResponse = `{
	"bias": "LONG_BIAS",
	"reasoning": "4H uptrend with higher lows, demand zone holding",
	"trend_4h": "UPTREND",
	"confidence": 8,
	"entry_zones": [{"min": 91000.0, "max": 91500.0, "priority": "PRIMARY"}],
	"invalidation_level": 90000.0,
	"targets": [{"price": 92500.0, "level": "TP1"}],
	"valid_for_hours": 4
}`

func TestParseDirectiveValid(t *testing.T) {
	d, err := ParseDirective(goodResponse, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "LONG_BIAS", d.Bias)
	assert.Equal(t, 8, d.Confidence)
	assert.Equal(t, 4*time.Hour, d.ValidFor)
	assert.Equal(t, 90000.0, d.Invalidation)
	require.Len(t, d.EntryZones, 1)
	assert.Equal(t, 92500.0, d.FirstTarget())
}

func TestParseDirectiveStripsMarkdownFences(t *testing.T) {
	d, err := ParseDirective("```json\n"+goodResponse+"\n```", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "LONG_BIAS", d.Bias)
}

func TestParseDirectiveDefaultValidity(t *testing.T) {
	raw := `{"bias":"NEUTRAL","reasoning":"r","trend_4h":"RANGE","confidence":5,"entry_zones":[],"invalidation_level":90000,"targets":[]}`
	d, err := ParseDirective(raw, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d.ValidFor)
}

func TestParseDirectiveRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "the market looks bullish"},
		{"bad bias", `{"bias":"MEGA_LONG","confidence":5,"invalidation_level":90000}`},
		{"confidence too high", `{"bias":"NEUTRAL","confidence":11,"invalidation_level":90000}`},
		{"confidence zero", `{"bias":"NEUTRAL","confidence":0,"invalidation_level":90000}`},
		{"missing invalidation", `{"bias":"NEUTRAL","confidence":5}`},
		{"inverted zone", `{"bias":"NEUTRAL","confidence":5,"invalidation_level":90000,"entry_zones":[{"min":92000,"max":91000}]}`},
		{"negative target", `{"bias":"NEUTRAL","confidence":5,"invalidation_level":90000,"targets":[{"price":-1}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDirective(tc.raw, time.Hour)
			assert.ErrorIs(t, err, faults.ErrResponseMalformed)
		})
	}
}

func TestStoreSwapIsAtomic(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	// Writer commits directives whose fields are internally
	// consistent; readers must never observe a mixed one.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			price := float64(90000 + i)
			s.Commit(&types.Directive{
				CreatedAt:    now,
				ValidFor:     time.Hour,
				Bias:         "LONG_BIAS",
				Confidence:   5,
				Invalidation: price,
				Targets:      []types.Target{{Price: price, Label: "TP1"}},
			})
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				d := s.Current(now)
				if d == nil {
					continue
				}
				// Invalidation and target were written together;
				// a torn read would break this equality.
				if d.Invalidation != d.Targets[0].Price {
					t.Errorf("torn directive: invalidation %.0f vs target %.0f",
						d.Invalidation, d.Targets[0].Price)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestStoreExpiredDirectiveReadsAsAbsent(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.Commit(&types.Directive{CreatedAt: now, ValidFor: time.Hour})

	assert.NotNil(t, s.Current(now.Add(30*time.Minute)))
	assert.Nil(t, s.Current(now.Add(2*time.Hour)))
}

func TestStoreVersionsIncrease(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Commit(&types.Directive{CreatedAt: now, ValidFor: time.Hour})
	s.Commit(&types.Directive{CreatedAt: now, ValidFor: time.Hour})
	assert.Equal(t, uint64(2), s.Current(now).Version)
}
