// Package normalize rebuilds table candidate chunks through an external
// service with bounded, differentiated retries.
package normalize

import (
	"context"
	"log/slog"

	"github.com/dgallion1/coursemd/internal/llm"
)

// Adapter calls the normalization service for one chunk at a time. It holds
// no per-chunk state, so one Adapter may serve many goroutines.
type Adapter struct {
	svc    llm.Service
	policy Policy
	log    *slog.Logger

	// Sleep waits between attempts. Tests swap it for a recorder.
	Sleep Sleeper
}

func NewAdapter(svc llm.Service, policy Policy, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		svc:    svc,
		policy: policy.withDefaults(),
		log:    log,
		Sleep:  SleepContext,
	}
}

// Normalize sends chunkText to the service and returns the rebuilt text. After
// the last failed attempt it returns an *ExhaustedError; callers keep the
// original chunk in that case.
func (a *Adapter) Normalize(ctx context.Context, chunkText string) (string, error) {
	prompt := BuildTablePrompt(chunkText)

	for attempt := 1; ; attempt++ {
		r := ResultOf(a.svc.Complete(ctx, prompt))
		if r.Kind == Success {
			return r.Text, nil
		}

		wait, retry := a.policy.Next(attempt, r)
		if !retry {
			return "", &ExhaustedError{Attempts: attempt, LastKind: r.Kind, Err: r.Err}
		}
		a.log.Warn("normalization attempt failed",
			"attempt", attempt,
			"kind", r.Kind.String(),
			"backoff", wait,
			"error", r.Err,
		)
		if err := a.Sleep(ctx, wait); err != nil {
			return "", &ExhaustedError{Attempts: attempt, LastKind: r.Kind, Err: err}
		}
	}
}
