// Package llm wraps the external classification oracle. The contract is a
// single request in, one JSON-object answer out; no streaming, no
// multi-turn state.
package llm

import "context"

// Client is the interface the classifiers depend on.
type Client interface {
	// Complete sends a system hint plus one user prompt and returns the
	// oracle's full text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
