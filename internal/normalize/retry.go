package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/coursemd/internal/llm"
)

// Kind is the three-way outcome of one service attempt.
type Kind int

const (
	Success Kind = iota
	Throttled
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Throttled:
		return "throttled"
	default:
		return "failed"
	}
}

// Result is one attempt's outcome. Text is set on Success, Err otherwise.
type Result struct {
	Kind Kind
	Text string
	Err  error
}

var errEmptyReply = errors.New("empty reply")

// ResultOf maps a service reply onto a Result. A reply that is empty once
// code fences are stripped counts as a failure.
func ResultOf(text string, err error) Result {
	switch {
	case err == nil:
		text = llm.StripCodeBlock(text)
		if strings.TrimSpace(text) == "" {
			return Result{Kind: Failed, Err: errEmptyReply}
		}
		return Result{Kind: Success, Text: text}
	case llm.IsThrottled(err):
		return Result{Kind: Throttled, Err: err}
	default:
		return Result{Kind: Failed, Err: err}
	}
}

// Policy bounds attempts and sets the wait between them. Waits are counted
// in Units: a throttled attempt n waits n*ThrottleStep units, any other
// failure waits FailureDelay units.
type Policy struct {
	MaxAttempts  int
	Unit         time.Duration
	ThrottleStep int
	FailureDelay int
}

// DefaultPolicy is three attempts with 10/20 second throttle backoff and a
// 2 second delay after other failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		Unit:         time.Second,
		ThrottleStep: 10,
		FailureDelay: 2,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Unit <= 0 {
		p.Unit = d.Unit
	}
	if p.ThrottleStep <= 0 {
		p.ThrottleStep = d.ThrottleStep
	}
	if p.FailureDelay <= 0 {
		p.FailureDelay = d.FailureDelay
	}
	return p
}

// Next decides what follows attempt (1-based) given its result: whether to
// try again and how long to wait first.
func (p Policy) Next(attempt int, r Result) (wait time.Duration, retry bool) {
	p = p.withDefaults()
	if r.Kind == Success || attempt >= p.MaxAttempts {
		return 0, false
	}
	if r.Kind == Throttled {
		return time.Duration(attempt*p.ThrottleStep) * p.Unit, true
	}
	return time.Duration(p.FailureDelay) * p.Unit, true
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrExhausted matches every *ExhaustedError.
var ErrExhausted = errors.New("normalization attempts exhausted")

// ExhaustedError is returned once no attempt succeeded.
type ExhaustedError struct {
	Attempts int
	LastKind Kind
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts (last %s): %v", ErrExhausted, e.Attempts, e.LastKind, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
