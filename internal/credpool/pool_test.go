package credpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/types"
)

func testCreds() []types.Credential {
	return []types.Credential{
		{ID: "primary-1", Class: types.ClassPrimary, Key: "k1"},
		{ID: "primary-2", Class: types.ClassPrimary, Key: "k2"},
		{ID: "primary-3", Class: types.ClassPrimary, Key: "k3"},
		{ID: "secondary-1", Class: types.ClassSecondary, Key: "s1"},
	}
}

func testPool(t *testing.T) (*Pool, *time.Time) {
	t.Helper()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	p := New(testCreds(), Options{CooldownSeed: 30 * time.Second, CooldownCap: 15 * time.Minute})
	p.now = func() time.Time { return now }
	return p, &now
}

func TestAcquireRotatesLeastRecentlyUsed(t *testing.T) {
	p, now := testPool(t)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(types.ClassPrimary)
		require.NoError(t, err)
		assert.Equal(t, types.ClassPrimary, c.Class)
		assert.False(t, seen[c.ID], "credential %s handed out twice before rotation completed", c.ID)
		seen[c.ID] = true
		*now = now.Add(time.Second)
	}
}

func TestAcquireNeverReturnsCooldownCredential(t *testing.T) {
	p, now := testPool(t)

	// Arbitrary failure sequence: whatever has failed and is cooling
	// down must never come back from Acquire.
	outcomes := []types.Outcome{
		types.OutcomeRateLimited, types.OutcomeSuccess, types.OutcomeAuthFailed,
		types.OutcomeRateLimited, types.OutcomeRateLimited, types.OutcomeError,
		types.OutcomeSuccess, types.OutcomeRateLimited,
	}
	for i, outcome := range outcomes {
		c, err := p.Acquire(types.ClassPrimary)
		if err != nil {
			assert.ErrorIs(t, err, faults.ErrCredentialExhausted)
			*now = now.Add(time.Minute)
			continue
		}
		p.mu.Lock()
		st := p.creds[c.ID]
		assert.False(t, st.cooldownUntil.After(*now),
			"step %d: acquired %s while in cooldown until %v", i, c.ID, st.cooldownUntil)
		p.mu.Unlock()
		p.Report(c.ID, outcome)
		*now = now.Add(time.Second)
	}
}

func TestPrimaryExhaustionFallsBackToSecondary(t *testing.T) {
	p, now := testPool(t)

	// Three consecutive rate limits against primaries puts every
	// primary into cooldown.
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(types.ClassPrimary)
		require.NoError(t, err)
		require.Equal(t, types.ClassPrimary, c.Class)
		p.Report(c.ID, types.OutcomeRateLimited)
		*now = now.Add(time.Second)
	}

	c, err := p.Acquire(types.ClassPrimary)
	require.NoError(t, err)
	assert.Equal(t, types.ClassSecondary, c.Class, "fourth acquisition should fall back to secondary")
}

func TestExhaustedWhenAllCooling(t *testing.T) {
	p, now := testPool(t)

	for i := 0; i < 4; i++ {
		c, err := p.Acquire(types.ClassPrimary)
		require.NoError(t, err)
		p.Report(c.ID, types.OutcomeRateLimited)
		*now = now.Add(time.Second)
	}

	_, err := p.Acquire(types.ClassPrimary)
	assert.ErrorIs(t, err, faults.ErrCredentialExhausted)

	// Cooldown expiry makes the pool usable again without any reset call.
	*now = now.Add(16 * time.Minute)
	_, err = p.Acquire(types.ClassPrimary)
	assert.NoError(t, err)
}

func TestCooldownGrowsExponentiallyAndCaps(t *testing.T) {
	p := New(testCreds(), Options{CooldownSeed: 30 * time.Second, CooldownCap: 15 * time.Minute})

	assert.Equal(t, 30*time.Second, p.cooldownFor(1))
	assert.Equal(t, time.Minute, p.cooldownFor(2))
	// Third consecutive failure forces the cap.
	assert.Equal(t, 15*time.Minute, p.cooldownFor(3))
	assert.Equal(t, 15*time.Minute, p.cooldownFor(7))
}

func TestSuccessClearsFailureState(t *testing.T) {
	p, now := testPool(t)

	c, err := p.Acquire(types.ClassPrimary)
	require.NoError(t, err)
	p.Report(c.ID, types.OutcomeRateLimited)
	p.Report(c.ID, types.OutcomeRateLimited)
	p.Report(c.ID, types.OutcomeSuccess)

	p.mu.Lock()
	st := p.creds[c.ID]
	assert.Zero(t, st.failures)
	assert.True(t, st.cooldownUntil.IsZero())
	p.mu.Unlock()
	_ = now
}

func TestGenericErrorsForceCapAfterThree(t *testing.T) {
	p, now := testPool(t)

	c, err := p.Acquire(types.ClassPrimary)
	require.NoError(t, err)

	p.Report(c.ID, types.OutcomeError)
	p.Report(c.ID, types.OutcomeError)
	p.mu.Lock()
	assert.True(t, p.creds[c.ID].cooldownUntil.IsZero(), "two generic errors should not cool down")
	p.mu.Unlock()

	p.Report(c.ID, types.OutcomeError)
	p.mu.Lock()
	assert.Equal(t, now.Add(15*time.Minute), p.creds[c.ID].cooldownUntil)
	p.mu.Unlock()
}

func TestHealthCounts(t *testing.T) {
	p, now := testPool(t)

	c, err := p.Acquire(types.ClassPrimary)
	require.NoError(t, err)
	p.Report(c.ID, types.OutcomeRateLimited)

	h := p.Health()
	assert.Equal(t, 4, h.Total)
	assert.Equal(t, 3, h.Usable)
	assert.Equal(t, 1, h.Cooldown)
	_ = now
}
