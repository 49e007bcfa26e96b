package interfaces

import (
	"context"

	"dual-llm-trader/internal/types"
)

// Planner runs one strategic cycle. A nil error with no new directive
// is a skipped tick (data or credentials unavailable).
type Planner interface {
	Tick(ctx context.Context) error
	Current() *types.Directive
}

// Executor runs one tactical cycle and returns the decision it acted
// on. Degraded cycles return WAIT, never an error that halts the loop.
type Executor interface {
	Tick(ctx context.Context) (types.TacticalDecision, error)
}

// HeadlineSource provides optional market-context headlines for the
// strategic prompt. Failures never block a cycle.
type HeadlineSource interface {
	Headlines(ctx context.Context, limit int) ([]string, error)
}
