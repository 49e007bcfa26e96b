package tactical

import (
	"encoding/json"
	"fmt"
	"strings"

	"dual-llm-trader/internal/faults"
	"dual-llm-trader/internal/types"
)

type decisionWire struct {
	Action          string `json:"action"`
	Reasoning       string `json:"reasoning"`
	Confidence      int    `json:"confidence"`
	PatternDetected string `json:"pattern_detected"`
}

// ParseDecision validates a tactical model response. Any defect maps
// to ErrResponseMalformed; the caller degrades to WAIT, never ENTER.
func ParseDecision(raw string) (types.TacticalDecision, error) {
	var w decisionWire
	if err := json.Unmarshal([]byte(stripFences(raw)), &w); err != nil {
		return types.TacticalDecision{}, fmt.Errorf("%w: %v", faults.ErrResponseMalformed, err)
	}

	var action types.Action
	switch w.Action {
	case "ENTER", "ENTER_LONG":
		action = types.ActionEnter
	case "WAIT", "ENTER_SHORT": // long-only book: short signals hold
		action = types.ActionWait
	case "REJECT":
		action = types.ActionReject
	default:
		return types.TacticalDecision{}, fmt.Errorf("%w: unknown action %q",
			faults.ErrResponseMalformed, w.Action)
	}
	if w.Confidence < 1 || w.Confidence > 10 {
		return types.TacticalDecision{}, fmt.Errorf("%w: confidence %d out of range",
			faults.ErrResponseMalformed, w.Confidence)
	}

	return types.TacticalDecision{
		Action:     action,
		Confidence: w.Confidence,
		Pattern:    w.PatternDetected,
		Reason:     w.Reasoning,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
