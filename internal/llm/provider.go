// Package llm defines the language-model boundary of the answering pipeline.
package llm

import "context"

// Provider produces a single, non-streaming completion for prompt with the named model.
// An empty model selects the provider's default.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, model string) (string, error)
}
