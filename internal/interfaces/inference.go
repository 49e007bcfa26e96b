package interfaces

import (
	"context"

	"dual-llm-trader/internal/types"
)

// Inference is the opaque model call: a prompt in, structured text
// out. The caller owns parsing and credential bookkeeping.
type Inference interface {
	Generate(ctx context.Context, cred types.Credential, model, prompt string) (string, error)
}

// CredentialPool rotates inference credentials across both cadences.
// Acquire never blocks waiting for a cooldown to end.
type CredentialPool interface {
	Acquire(class types.CredentialClass) (types.Credential, error)
	Report(id string, outcome types.Outcome)
}
