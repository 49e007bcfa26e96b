// Package llmobs wraps an Inference client with logging and tracing.
package llmobs

import (
	"context"

	"dual-llm-trader/internal/interfaces"
	"dual-llm-trader/internal/logger"
	"dual-llm-trader/internal/trace"
	"dual-llm-trader/internal/types"
)

type observableInference struct {
	inner interfaces.Inference
}

var _ interfaces.Inference = (*observableInference)(nil)

func Wrap(inner interfaces.Inference) interfaces.Inference {
	return &observableInference{inner: inner}
}

func (o *observableInference) Generate(ctx context.Context, cred types.Credential, model, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "inference.Generate")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Requesting inference",
		"credential", cred.ID,
		"class", string(cred.Class),
		"model", model,
		"prompt_chars", len(prompt),
	)

	out, err := o.inner.Generate(ctx, cred, model, prompt)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Inference call failed", err,
			"credential", cred.ID,
			"model", model,
		)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Inference response received",
		"credential", cred.ID,
		"model", model,
		"response_chars", len(out),
	)
	return out, nil
}
