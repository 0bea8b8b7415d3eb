// Package llm provides the generation backend fallback client. An ordered
// list of providers is tried in sequence; the first non-empty response wins.
package llm

import (
	"context"
	"strings"
)

// Request is a provider-agnostic generation request
type Request struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Provider is one generation backend. Generate returns the produced text;
// an empty result must be reported as an error, never as ("", nil).
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (string, error)
}

// IsRateLimitError checks if an error is a backend rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	return IsRateLimitMessage(err.Error())
}

// IsRateLimitMessage is the classifier for failure text that has already
// lost its error type, such as a terminal workflow error.
func IsRateLimitMessage(msg string) bool {
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "Too Many Requests") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota")
}
