package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrStoreUnavailable = errors.New("store redis unavailable")
)

// UserRecord is the persisted account. PasswordHash is empty for accounts
// created through an external identity provider.
type UserRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	ProviderID   string    `json:"provider_id,omitempty"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserStore keeps accounts as JSON under <prefix>:id:<id> with a unique email
// index under <prefix>:email:<email>.
type UserStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewUserStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *UserStore {
	if prefix == "" {
		prefix = "gs:usr"
	}
	if now == nil {
		now = time.Now
	}
	return &UserStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *UserStore) idKey(id string) string {
	return s.prefix + ":id:" + id
}

func (s *UserStore) emailKey(email string) string {
	return s.prefix + ":email:" + normalizeEmail(email)
}

// Create stores a password account with the "user" role.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*UserRecord, error) {
	return s.create(ctx, &UserRecord{Email: email, PasswordHash: passwordHash})
}

// CreateOAuth stores an account linked to an external identity.
func (s *UserStore) CreateOAuth(ctx context.Context, email, provider, providerID string) (*UserRecord, error) {
	return s.create(ctx, &UserRecord{Email: email, Provider: provider, ProviderID: providerID})
}

func (s *UserStore) create(ctx context.Context, rec *UserRecord) (*UserRecord, error) {
	now := s.now().UTC()
	rec.ID = uuid.NewString()
	rec.Email = normalizeEmail(rec.Email)
	rec.Roles = []string{"user"}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(rec.Email), rec.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !claimed {
		return nil, ErrUserExists
	}

	if err := s.redis.Set(ctx, s.idKey(rec.ID), data, 0).Err(); err != nil {
		_ = s.redis.Del(ctx, s.emailKey(rec.Email)).Err()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// FindByID loads one account.
func (s *UserStore) FindByID(ctx context.Context, id string) (*UserRecord, error) {
	data, err := s.redis.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	if rec.Roles == nil {
		rec.Roles = []string{}
	}
	return &rec, nil
}

// FindByEmail loads one account by case-insensitive email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.FindByID(ctx, id)
}

// AddRole grants role to the account. Granting a held role is a no-op.
func (s *UserStore) AddRole(ctx context.Context, id, role string) error {
	return s.update(ctx, id, func(rec *UserRecord) bool {
		for _, r := range rec.Roles {
			if r == role {
				return false
			}
		}
		rec.Roles = append(rec.Roles, role)
		return true
	})
}

// SetPasswordHash replaces the stored hash, e.g. after a cost upgrade.
func (s *UserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, id, func(rec *UserRecord) bool {
		if rec.PasswordHash == hash {
			return false
		}
		rec.PasswordHash = hash
		return true
	})
}

// update applies fn to the record under optimistic locking. fn reports
// whether it changed anything.
func (s *UserStore) update(ctx context.Context, id string, fn func(*UserRecord) bool) error {
	key := s.idKey(id)
	return s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrUserNotFound
			}
			return err
		}

		var rec UserRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode user %s: %w", id, err)
		}
		if !fn(&rec) {
			return nil
		}
		rec.UpdatedAt = s.now().UTC()

		next, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}, key)
}

// Count returns the number of stored accounts.
func (s *UserStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+":id:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
