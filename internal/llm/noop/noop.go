// Package noop is the offline inference stand-in: every call returns
// a neutral response so the loops can run without a provider.
package noop

import (
	"context"
	"strings"

	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/types"
)

type Client struct{}

var _ interfaces.Inference = (*Client)(nil)

func New() *Client { return &Client{} }

func (c *Client) Generate(_ context.Context, _ types.Credential, _, prompt string) (string, error) {
	// Tactical prompts get a WAIT, strategic prompts a NEUTRAL
	// directive, both syntactically valid.
	if strings.Contains(prompt, "tactical execution AI") {
		return `{"action":"WAIT","reasoning":"noop provider","confidence":1,"pattern_detected":"None"}`, nil
	}
	return `{"bias":"NEUTRAL","reasoning":"noop provider","trend_4h":"RANGE","confidence":1,"entry_zones":[],"invalidation_level":1.0,"targets":[],"valid_for_hours":1}`, nil
}
