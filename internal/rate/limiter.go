package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// DefaultConfig allows five failed logins per email and per IP every 15
// minutes, and 30 refreshes per session per minute.
func DefaultConfig() Config {
	return Config{
		EnableIPThrottle:        true,
		EnableRefreshThrottle:   true,
		MaxLoginAttempts:        5,
		LoginCooldownDuration:   15 * time.Minute,
		MaxRefreshAttempts:      30,
		RefreshCooldownDuration: time.Minute,
	}
}

// hitScript counts one hit and opens the window on the first one.
// Returns {count, pttl}.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Limiter enforces per-email and per-IP login budgets and a per-session
// refresh budget using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns a [*LimitError] when the email or IP has used up its
// failed-login budget. It does not count an attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if err := l.peek(ctx, ScopeEmail, loginUserKey(email), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.peek(ctx, ScopeIP, loginIPKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records a failed login for the email and IP. It returns a
// [*LimitError] once a counter passes the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if err := l.hit(ctx, ScopeEmail, loginUserKey(email), l.config.MaxLoginAttempts, l.config.LoginCooldownDuration); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.hit(ctx, ScopeIP, loginIPKey(ip), l.config.MaxLoginAttempts, l.config.LoginCooldownDuration)
	}
	return nil
}

// ResetLogin clears the per-email counter after a successful login. The IP
// counter is left alone so one good account cannot launder a spraying IP.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, loginUserKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh for the session and returns a
// [*LimitError] once the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, sessionID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	return l.hit(ctx, ScopeRefresh, refreshKey(sessionID), l.config.MaxRefreshAttempts, l.config.RefreshCooldownDuration)
}

// LoginAttempts returns the failed-login count for an email. Missing keys
// return zero.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginUserKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(count, 0)), nil
}

// peek fails once the counter has reached limit.
func (l *Limiter) peek(ctx context.Context, scope Scope, key string, limit int) error {
	var (
		get  *redis.StringCmd
		pttl *redis.DurationCmd
	)
	_, err := l.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := get.Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < int64(limit) {
		return nil
	}
	return &LimitError{Scope: scope, RetryAfter: max(pttl.Val(), 0)}
}

// hit counts one event and fails when the count passes limit.
func (l *Limiter) hit(ctx context.Context, scope Scope, key string, limit int, window time.Duration) error {
	res, err := hitScript.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}
	if res[0] <= int64(limit) {
		return nil
	}
	return &LimitError{Scope: scope, RetryAfter: time.Duration(max(res[1], 0)) * time.Millisecond}
}

func loginUserKey(email string) string {
	return "gs:rl:login:" + strings.ToLower(strings.TrimSpace(email))
}

func loginIPKey(ip string) string {
	return "gs:rl:loginip:" + ip
}

func refreshKey(sessionID string) string {
	return "gs:rl:refresh:" + sessionID
}
