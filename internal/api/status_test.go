package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/audit"
	"dual-llm-trader/internal/credpool"
	"dual-llm-trader/internal/health"
	"dual-llm-trader/internal/trade"
	"dual-llm-trader/internal/types"
)

type fakePlanner struct {
	directive *types.Directive
}

func (f *fakePlanner) Tick(context.Context) error { return nil }
func (f *fakePlanner) Current() *types.Directive  { return f.directive }

func testServer(planner *fakePlanner) *Server {
	sink := audit.NewMemorySink()
	machine := trade.NewMachine(trade.Params{
		Symbol:          "BTC-USD",
		EntryConfidence: 7,
		ExitConfidence:  7,
		QuoteAmount:     decimal.NewFromInt(100),
	}, sink)
	pool := credpool.New([]types.Credential{
		{ID: "primary_1", Class: types.ClassPrimary, Key: "k"},
	}, credpool.Options{CooldownSeed: time.Second, CooldownCap: time.Minute})
	return NewServer(":0", "BTC-USD", planner, machine, pool,
		health.NewMonitor(30*time.Minute), sink)
}

func TestHealthzOK(t *testing.T) {
	s := testServer(&fakePlanner{})
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 200, rec.Code)
}

func TestStatusFlatNoDirective(t *testing.T) {
	s := testServer(&fakePlanner{})
	rec := httptest.NewRecorder()

	s.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	require.Equal(t, 200, rec.Code)
	var p statusPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "BTC-USD", p.Symbol)
	assert.Equal(t, string(types.PositionFlat), p.Position)
	assert.Nil(t, p.Directive)
	assert.Equal(t, 1, p.Credentials.Total)
	assert.False(t, p.Degraded)
}

func TestStatusReportsActiveDirective(t *testing.T) {
	d := &types.Directive{
		ID:         "01JTESTDIRECTIVE0000000000",
		CreatedAt:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		ValidFor:   4 * time.Hour,
		Bias:       "LONG_BIAS",
		Confidence: 8,
		Version:    3,
	}
	s := testServer(&fakePlanner{directive: d})
	rec := httptest.NewRecorder()

	s.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))

	var p statusPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotNil(t, p.Directive)
	assert.Equal(t, "LONG_BIAS", p.Directive.Bias)
	assert.Equal(t, uint64(3), p.Directive.Version)
	assert.Equal(t, "2026-04-01T14:00:00Z", p.Directive.ExpiresAt)
}
