package llm

import "errors"

var (
	// ErrRateLimited marks provider throttling. The only retryable failure
	// kind at the per-model level.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrProviderFailed marks a non-retryable generation failure.
	ErrProviderFailed = errors.New("provider call failed")
)
