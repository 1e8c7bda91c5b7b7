package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// EmergencyProvenance tags results produced by the router's built-in
// last-resort template rather than any provider.
const EmergencyProvenance = "emergency:fallback"

// RetryPolicy bounds the rate-limit retry loop around each primary-model
// call. Explicit policy object, composed around the call, not baked into it.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy mirrors the service defaults: 3 total attempts,
// 2s initial delay doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// Router tries providers in rank order until one produces text. Its
// configuration is immutable after construction.
//
// Per provider: the primary model is attempted with exponential backoff on
// rate limits (other failures are not retried), then the fallback model
// once, then the next provider. Earlier providers are never revisited. If
// everything is exhausted the router returns a labeled emergency note, so
// Generate never fails outright.
type Router struct {
	entries []ProviderEntry
	retry   RetryPolicy
	now     func() time.Time
}

// NewRouter creates a Router over the given entries, sorted ascending by
// rank. The slice is copied; later mutation of the caller's slice has no
// effect.
func NewRouter(entries []ProviderEntry, retry RetryPolicy) *Router {
	sorted := make([]ProviderEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy()
	}

	return &Router{entries: sorted, retry: retry, now: time.Now}
}

// Providers returns the configured provider names in routing order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Provider.Name()
	}
	return names
}

// Generate produces text for the prompt and reports its provenance as
// "<provider>:<model>", or EmergencyProvenance when every provider was
// exhausted. The returned text is always non-empty.
func (r *Router) Generate(ctx context.Context, prompt, systemPrompt string) (string, string) {
	for _, entry := range r.entries {
		name := entry.Provider.Name()

		text, err := r.callWithRetry(ctx, entry.Provider, prompt, systemPrompt, entry.PrimaryModel)
		if err == nil {
			return text, fmt.Sprintf("%s:%s", name, entry.PrimaryModel)
		}
		slog.Warn("primary model exhausted",
			"provider", name, "model", entry.PrimaryModel, "error", err)

		if entry.FallbackModel == "" {
			continue
		}

		// Fallback model gets exactly one attempt.
		text, err = entry.Provider.Generate(ctx, prompt, systemPrompt, entry.FallbackModel)
		if err == nil {
			return text, fmt.Sprintf("%s:%s", name, entry.FallbackModel)
		}
		slog.Warn("fallback model failed",
			"provider", name, "model", entry.FallbackModel, "error", err)
	}

	slog.Error("all providers exhausted, using emergency fallback",
		"providers", len(r.entries))
	return r.emergencyNote(), EmergencyProvenance
}

// callWithRetry attempts one model, retrying with exponential backoff only
// when the provider reported rate limiting.
func (r *Router) callWithRetry(ctx context.Context, p Provider, prompt, systemPrompt, model string) (string, error) {
	var text string

	op := func() error {
		out, err := p.Generate(ctx, prompt, systemPrompt, model)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	b.Multiplier = r.retry.Multiplier
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(r.retry.MaxAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return text, nil
}

// emergencyNote is the deterministic placeholder returned when no provider
// produced text. Callers distinguish it by provenance, never by content.
func (r *Router) emergencyNote() string {
	return fmt.Sprintf(`📅 **Date & Time**: %s

😊 **Mood/Feelings**: [Unable to analyze]

🌟 **Key Events**:
This audio was transcribed but note generation failed.

💭 **Thoughts & Reflections**:
Please refer to the transcription directly.

🎯 **Takeaways**:
System encountered an error when attempting to generate diary notes.

---
*Note: This is an emergency fallback response due to service unavailability.*`,
		r.now().Format("2006-01-02 15:04"))
}
