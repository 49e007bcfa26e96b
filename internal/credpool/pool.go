// Package credpool rotates inference credentials across the two
// cadences. Selection is a pure function over health snapshots so it
// can be tested without network calls.
package credpool

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/types"
)

// forceCapAfter is the consecutive-failure count that forces a
// cooldown equal to the cap regardless of attempt number.
const forceCapAfter = 3

type credState struct {
	cred          types.Credential
	lastUsed      time.Time
	failures      int
	cooldownUntil time.Time
}

// Options tune cooldown growth. Seed is the first-failure cooldown,
// doubled per consecutive failure up to Cap.
type Options struct {
	CooldownSeed time.Duration
	CooldownCap  time.Duration
}

type Pool struct {
	mu    sync.Mutex
	creds map[string]*credState
	order []string // stable iteration order for deterministic ties
	opts  Options
	now   func() time.Time
}

// New builds a pool from a fixed credential set. The set never
// changes during a run.
func New(creds []types.Credential, opts Options) *Pool {
	p := &Pool{
		creds: make(map[string]*credState, len(creds)),
		opts:  opts,
		now:   time.Now,
	}
	for _, c := range creds {
		p.creds[c.ID] = &credState{cred: c}
		p.order = append(p.order, c.ID)
	}
	return p
}

// LoadFromEnv reads numbered key variables (PREFIX1..PREFIXn) for
// both classes, the way the deployment supplies them.
func LoadFromEnv(primaryPrefix string, maxPrimary int, secondaryPrefix string, maxSecondary int, opts Options) (*Pool, error) {
	var creds []types.Credential
	for i := 1; i <= maxPrimary; i++ {
		if key := os.Getenv(fmt.Sprintf("%s%d", primaryPrefix, i)); key != "" {
			creds = append(creds, types.Credential{
				ID:    fmt.Sprintf("primary-%d", i),
				Class: types.ClassPrimary,
				Key:   key,
			})
		}
	}
	for i := 1; i <= maxSecondary; i++ {
		if key := os.Getenv(fmt.Sprintf("%s%d", secondaryPrefix, i)); key != "" {
			creds = append(creds, types.Credential{
				ID:    fmt.Sprintf("secondary-%d", i),
				Class: types.ClassSecondary,
				Key:   key,
			})
		}
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("no inference credentials configured")
	}
	return New(creds, opts), nil
}

// Acquire returns the least-recently-used usable credential of the
// requested class, falling back to the other class before declaring
// exhaustion. It never blocks waiting for a cooldown to end.
func (p *Pool) Acquire(class types.CredentialClass) (types.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if id, ok := selectCredential(p.snapshot(), class, now); ok {
		st := p.creds[id]
		st.lastUsed = now
		return st.cred, nil
	}
	other := types.ClassSecondary
	if class == types.ClassSecondary {
		other = types.ClassPrimary
	}
	if id, ok := selectCredential(p.snapshot(), other, now); ok {
		st := p.creds[id]
		st.lastUsed = now
		return st.cred, nil
	}
	return types.Credential{}, faults.ErrCredentialExhausted
}

// Report records the outcome of a use. Success clears failure state;
// rate-limit and auth failures grow the cooldown exponentially.
func (p *Pool) Report(id string, outcome types.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.creds[id]
	if !ok {
		return
	}
	switch outcome {
	case types.OutcomeSuccess:
		st.failures = 0
		st.cooldownUntil = time.Time{}
	case types.OutcomeRateLimited, types.OutcomeAuthFailed:
		st.failures++
		st.cooldownUntil = p.now().Add(p.cooldownFor(st.failures))
	case types.OutcomeError:
		st.failures++
		if st.failures >= forceCapAfter {
			st.cooldownUntil = p.now().Add(p.opts.CooldownCap)
		}
	}
}

func (p *Pool) cooldownFor(failures int) time.Duration {
	if failures >= forceCapAfter {
		return p.opts.CooldownCap
	}
	d := p.opts.CooldownSeed
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.opts.CooldownCap {
			return p.opts.CooldownCap
		}
	}
	if d > p.opts.CooldownCap {
		d = p.opts.CooldownCap
	}
	return d
}

// Health summarizes pool state for status logging.
type Health struct {
	Total    int
	Usable   int
	Cooldown int
}

func (p *Pool) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := Health{Total: len(p.creds)}
	now := p.now()
	for _, id := range p.order {
		if p.creds[id].cooldownUntil.After(now) {
			h.Cooldown++
		} else {
			h.Usable++
		}
	}
	return h
}

// LogHealth emits pool health at INFO.
func (p *Pool) LogHealth(ctx context.Context) {
	h := p.Health()
	logger.Info(ctx, "Credential pool health",
		"total", h.Total, "usable", h.Usable, "cooldown", h.Cooldown)
}

type candidate struct {
	id            string
	class         types.CredentialClass
	lastUsed      time.Time
	cooldownUntil time.Time
}

func (p *Pool) snapshot() []candidate {
	out := make([]candidate, 0, len(p.order))
	for _, id := range p.order {
		st := p.creds[id]
		out = append(out, candidate{
			id:            id,
			class:         st.cred.Class,
			lastUsed:      st.lastUsed,
			cooldownUntil: st.cooldownUntil,
		})
	}
	return out
}

// ClassifyOutcome maps an inference error onto the pool outcome the
// caller reports back.
func ClassifyOutcome(err error) types.Outcome {
	switch {
	case faults.IsRateLimit(err):
		return types.OutcomeRateLimited
	case faults.IsAuthFailure(err):
		return types.OutcomeAuthFailed
	default:
		return types.OutcomeError
	}
}

// selectCredential picks the least-recently-used candidate of the
// class that is not in cooldown. Pure: no state is touched.
func selectCredential(cands []candidate, class types.CredentialClass, now time.Time) (string, bool) {
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if c.class != class || c.cooldownUntil.After(now) {
			continue
		}
		if best == nil || c.lastUsed.Before(best.lastUsed) {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	return best.id, true
}
