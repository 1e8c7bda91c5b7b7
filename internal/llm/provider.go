// Package llm routes text generation across prioritized backend providers
// with retry, per-provider model fallback, and a guaranteed emergency
// result.
package llm

import "context"

// Provider is one text-generation backend. Never call a specific backend
// directly; always go through the Router.
type Provider interface {
	// Generate produces text for the prompt using the given model. Errors
	// wrap ErrRateLimited when the backend throttled the call, or
	// ErrProviderFailed otherwise.
	Generate(ctx context.Context, prompt, systemPrompt, model string) (string, error)
	// Name returns the provider identifier (e.g. "openai").
	Name() string
}

// ProviderEntry is one routing slot: a provider, its rank (lower tried
// first), its primary model, and an optional fallback model tried once when
// the primary is exhausted.
type ProviderEntry struct {
	Provider      Provider
	Rank          int
	PrimaryModel  string
	FallbackModel string
}
