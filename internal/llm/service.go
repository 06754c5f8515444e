// Package llm provides text completion clients used as the table
// normalization service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Service turns a prompt into text. Implementations signal rate limiting
// with a *ThrottledError so callers can back off longer than for other
// failures.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ThrottledError reports that the provider asked the caller to slow down.
type ThrottledError struct {
	StatusCode int
	Message    string
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("throttled (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// StatusError is a non-throttling HTTP failure from a provider.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// IsThrottled reports whether err carries a rate-limit signal.
func IsThrottled(err error) bool {
	var te *ThrottledError
	return errors.As(err, &te)
}

// Passthrough echoes the text after the first prompt separator. It stands in
// for a real provider when none is configured.
type Passthrough struct{}

// PromptSeparator divides instructions from the payload in a prompt.
const PromptSeparator = "\n---\n"

func (Passthrough) Complete(_ context.Context, prompt string) (string, error) {
	if i := strings.Index(prompt, PromptSeparator); i >= 0 {
		return prompt[i+len(PromptSeparator):], nil
	}
	return prompt, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\s*```$")

// StripCodeBlock removes a Markdown code fence wrapped around a reply.
func StripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
