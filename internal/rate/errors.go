package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches every [*LimitError] with errors.Is.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Scope names the counter that ran out.
type Scope string

const (
	ScopeEmail   Scope = "email"
	ScopeIP      Scope = "ip"
	ScopeRefresh Scope = "refresh"
)

// LimitError reports an exhausted budget and when its window reopens.
type LimitError struct {
	Scope Scope
	// RetryAfter is the remaining window; zero when Redis has no TTL for the key.
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds returns the Retry-After value for err, rounded up to a
// whole second, or fallback when err carries no window.
func RetryAfterSeconds(err error, fallback int) int {
	var le *LimitError
	if !errors.As(err, &le) || le.RetryAfter <= 0 {
		return fallback
	}
	secs := int((le.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
