package strategic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/audit"
	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/health"
	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/types"
)

type fakeAgg struct {
	snaps    map[types.Timeframe]types.CandleSnapshot
	fetchErr error
	price    float64
	spotErr  error
}

func (f *fakeAgg) Fetch(context.Context, string, []types.TimeframeSpec) (map[types.Timeframe]types.CandleSnapshot, error) {
	return f.snaps, f.fetchErr
}

func (f *fakeAgg) Spot(context.Context, string) (float64, error) {
	return f.price, f.spotErr
}

type fakePool struct {
	acquireErr error
	acquired   int
	outcomes   []types.Outcome
}

func (f *fakePool) Acquire(types.CredentialClass) (types.Credential, error) {
	if f.acquireErr != nil {
		return types.Credential{}, f.acquireErr
	}
	f.acquired++
	return types.Credential{ID: "primary_1", Class: types.ClassPrimary, Key: "k"}, nil
}

func (f *fakePool) Report(_ string, outcome types.Outcome) {
	f.outcomes = append(f.outcomes, outcome)
}

type fakeInference struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeInference) Generate(context.Context, types.Credential, string, string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	return f.responses[i], nil
}

func testSnaps() map[types.Timeframe]types.CandleSnapshot {
	snap := func(tf types.Timeframe) types.CandleSnapshot {
		return types.CandleSnapshot{
			Symbol:    "BTC-USD",
			Timeframe: tf,
			Candles: []types.Candle{
				{Ts: 1000, Open: 91000, High: 91200, Low: 90900, Close: 91100, Volume: 3},
			},
		}
	}
	return map[types.Timeframe]types.CandleSnapshot{
		types.TF4H:  snap(types.TF4H),
		types.TF1H:  snap(types.TF1H),
		types.TF15M: snap(types.TF15M),
	}
}

func testPlanner(agg *fakeAgg, pool *fakePool, inf interfaces.Inference, sink *audit.MemorySink) *Planner {
	p := New(Params{
		Symbol:          "BTC-USD",
		Model:           "gemini-2.5-pro",
		Candles4H:       1,
		Candles1H:       1,
		Candles15M:      1,
		DefaultValidity: 4 * time.Hour,
	}, agg, pool, inf, sink, nil, health.NewMonitor(30*time.Minute))
	return p
}

func TestTickCommitsDirective(t *testing.T) {
	sink := audit.NewMemorySink()
	pool := &fakePool{}
	p := testPlanner(
		&fakeAgg{snaps: testSnaps(), price: 91100},
		pool,
		&fakeInference{responses: []string{goodResponse}},
		sink,
	)

	require.NoError(t, p.Tick(context.Background()))

	d := p.Current()
	require.NotNil(t, d)
	assert.Equal(t, "LONG_BIAS", d.Bias)
	assert.Equal(t, "primary_1", d.CredentialID)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, []types.Outcome{types.OutcomeSuccess}, pool.outcomes)
	assert.Len(t, sink.Directives, 1)
	assert.Len(t, sink.Candles, 3)
}

func TestTickDataUnavailableSkipsWithoutInference(t *testing.T) {
	sink := audit.NewMemorySink()
	inf := &fakeInference{}
	p := testPlanner(
		&fakeAgg{fetchErr: faults.ErrDataUnavailable},
		&fakePool{},
		inf,
		sink,
	)

	require.NoError(t, p.Tick(context.Background()))

	assert.Nil(t, p.Current())
	assert.Zero(t, inf.calls)
	require.Len(t, sink.Logs, 1)
	assert.Equal(t, "ERROR", sink.Logs[0].Level)
	assert.Equal(t, "strategic", sink.Logs[0].Component)
}

func TestTickMalformedResponseKeepsPreviousDirective(t *testing.T) {
	sink := audit.NewMemorySink()
	agg := &fakeAgg{snaps: testSnaps(), price: 91100}
	p := testPlanner(agg, &fakePool{},
		&fakeInference{responses: []string{goodResponse, "I am unable to produce JSON today"}},
		sink,
	)

	require.NoError(t, p.Tick(context.Background()))
	before := p.Current()
	require.NotNil(t, before)

	require.NoError(t, p.Tick(context.Background()))
	after := p.Current()
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Version, after.Version)
}

func TestTickRetriesOnceOnInferenceError(t *testing.T) {
	sink := audit.NewMemorySink()
	pool := &fakePool{}
	inf := &fakeInference{
		errs:      []error{faults.ErrRateLimited, nil},
		responses: []string{"", goodResponse},
	}
	p := testPlanner(&fakeAgg{snaps: testSnaps(), price: 91100}, pool, inf, sink)

	require.NoError(t, p.Tick(context.Background()))

	assert.Equal(t, 2, inf.calls)
	assert.Equal(t, []types.Outcome{types.OutcomeRateLimited, types.OutcomeSuccess}, pool.outcomes)
	require.NotNil(t, p.Current())
}

func TestTickGivesUpAfterSecondInferenceFailure(t *testing.T) {
	sink := audit.NewMemorySink()
	inf := &fakeInference{errs: []error{faults.ErrRateLimited, faults.ErrRateLimited}}
	p := testPlanner(&fakeAgg{snaps: testSnaps(), price: 91100}, &fakePool{}, inf, sink)

	require.NoError(t, p.Tick(context.Background()))

	assert.Equal(t, 2, inf.calls)
	assert.Nil(t, p.Current())
}

func TestTickExhaustedPoolSkips(t *testing.T) {
	sink := audit.NewMemorySink()
	mon := health.NewMonitor(30 * time.Minute)
	p := testPlanner(&fakeAgg{snaps: testSnaps(), price: 91100},
		&fakePool{acquireErr: faults.ErrCredentialExhausted},
		&fakeInference{}, sink)
	p.monitor = mon

	require.NoError(t, p.Tick(context.Background()))

	assert.Nil(t, p.Current())
	require.Len(t, sink.Logs, 1)
	assert.Contains(t, sink.Logs[0].Message, "credentials exhausted")
}

func TestTickAbandonedContextDoesNotCommit(t *testing.T) {
	sink := audit.NewMemorySink()
	agg := &fakeAgg{snaps: testSnaps(), price: 91100}

	ctx, cancel := context.WithCancel(context.Background())
	inf := &cancellingInference{cancel: cancel, response: goodResponse}
	p := testPlanner(agg, &fakePool{}, inf, sink)

	require.NoError(t, p.Tick(ctx))

	assert.Nil(t, p.Current(), "late result of an abandoned tick must be discarded")
	assert.Empty(t, sink.Directives)
}

// cancellingInference cancels the tick context while the model call
// is in flight, simulating an overrun abandoned by the scheduler.
type cancellingInference struct {
	cancel   context.CancelFunc
	response string
}

func (c *cancellingInference) Generate(context.Context, types.Credential, string, string) (string, error) {
	c.cancel()
	return c.response, nil
}
