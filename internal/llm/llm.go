// Package llm wraps the generative-text collaborator behind a single
// narrow interface: one prompt in, one completion out. The mediator
// never depends on a concrete backend.
package llm

import "context"

type Generator interface {
	// Generate sends a prompt and blocks until the full completion is
	// available or ctx/timeout expires. A single attempt per call; the
	// caller decides how to degrade on failure.
	Generate(ctx context.Context, prompt string) (string, error)
}
