package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRefreshNotFound = errors.New("refresh session not found")
	ErrRefreshReuse    = errors.New("refresh token reuse detected")
)

// rotateRefreshScript swaps the stored secret hash only when the presented one
// matches. A mismatch means an already-rotated token was replayed, so the
// whole session is revoked.
//
// KEYS[1] session key
// ARGV[1] presented hash, ARGV[2] next hash, ARGV[3] ttl in ms
// Returns {1, uid} on success, {0, ""} when missing, {-1, uid} on reuse.
const rotateRefreshScript = `
local data = redis.call('HMGET', KEYS[1], 'uid', 'hash')
local uid = data[1]
if not uid then
  return {0, ''}
end
if data[2] ~= ARGV[1] then
  redis.call('DEL', KEYS[1])
  return {-1, uid}
end
redis.call('HSET', KEYS[1], 'hash', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, uid}
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RefreshStore keeps server-side refresh sessions. Each session is a hash
// {uid, hash} whose TTL is the refresh lifetime.
type RefreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRefreshStore(redisClient redis.UniversalClient, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = "gs:rs"
	}
	return &RefreshStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RefreshStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save creates a refresh session for userID.
func (s *RefreshStore) Save(ctx context.Context, sessionID, userID, secretHash string, ttl time.Duration) error {
	key := s.key(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "uid", userID, "hash", secretHash)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Rotate replaces the secret hash of a session and extends it by ttl. Exactly
// one of several concurrent rotations with the same presented hash succeeds;
// the rest see [ErrRefreshReuse] and the session is gone.
func (s *RefreshStore) Rotate(ctx context.Context, sessionID, presentedHash, nextHash string, ttl time.Duration) (string, error) {
	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.key(sessionID)},
		presentedHash, nextHash, ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return "", fmt.Errorf("%w: unexpected rotate reply", ErrStoreUnavailable)
	}

	status, _ := res[0].(int64)
	uid, _ := res[1].(string)
	switch status {
	case 1:
		return uid, nil
	case -1:
		return uid, ErrRefreshReuse
	default:
		return "", ErrRefreshNotFound
	}
}

// Owner returns the user that owns a session.
func (s *RefreshStore) Owner(ctx context.Context, sessionID string) (string, error) {
	uid, err := s.redis.HGet(ctx, s.key(sessionID), "uid").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrRefreshNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return uid, nil
}

// Revoke deletes a session. Revoking a missing session is not an error.
func (s *RefreshStore) Revoke(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
