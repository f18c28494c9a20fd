package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestUserCreateAndFind(t *testing.T) {
	_, rdb := newTestRedis(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	users := NewUserStore(rdb, "", func() time.Time { return fixed })
	ctx := context.Background()

	rec, err := users.Create(ctx, "  Ada@Example.COM ", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Email != "ada@example.com" || rec.ID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("expected injected clock, got %v", rec.CreatedAt)
	}

	byEmail, err := users.FindByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if byEmail.ID != rec.ID || byEmail.PasswordHash != "hash" {
		t.Fatalf("FindByEmail returned %+v", byEmail)
	}
	if len(byEmail.Roles) != 1 || byEmail.Roles[0] != "user" {
		t.Fatalf("expected default role, got %v", byEmail.Roles)
	}

	if _, err := users.Create(ctx, "ada@example.com", "other"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := users.FindByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserConcurrentCreateSameEmail(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := NewUserStore(rdb, "", nil)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := users.Create(context.Background(), "race@example.com", "h"); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected one account, got %d", created)
	}
	n2, err := users.Count(context.Background())
	if err != nil || n2 != 1 {
		t.Fatalf("Count = %d, %v", n2, err)
	}
}

func TestUserAddRoleAndOAuth(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := NewUserStore(rdb, "", nil)
	ctx := context.Background()

	rec, err := users.CreateOAuth(ctx, "g@example.com", "google", "sub-1")
	if err != nil {
		t.Fatalf("CreateOAuth: %v", err)
	}
	if rec.PasswordHash != "" || rec.Provider != "google" {
		t.Fatalf("unexpected oauth record %+v", rec)
	}

	for i := 0; i < 2; i++ {
		if err := users.AddRole(ctx, rec.ID, "admin"); err != nil {
			t.Fatalf("AddRole: %v", err)
		}
	}
	got, err := users.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.Roles) != 2 || got.Roles[1] != "admin" {
		t.Fatalf("expected [user admin], got %v", got.Roles)
	}

	if err := users.AddRole(ctx, "nobody", "admin"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserSetPasswordHash(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := NewUserStore(rdb, "", nil)
	ctx := context.Background()

	rec, err := users.Create(ctx, "rehash@example.com", "old-hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := users.SetPasswordHash(ctx, rec.ID, "new-hash"); err != nil {
		t.Fatalf("SetPasswordHash: %v", err)
	}
	got, err := users.FindByEmail(ctx, "REHASH@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Fatalf("expected new-hash, got %q", got.PasswordHash)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "user" {
		t.Fatalf("roles changed: %v", got.Roles)
	}
	if err := users.SetPasswordHash(ctx, "nobody", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshRotate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	refresh := NewRefreshStore(rdb, "")
	ctx := context.Background()

	if err := refresh.Save(ctx, "sid", "u1", "h1", time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL("gs:rs:sid"); ttl != time.Hour {
		t.Fatalf("expected 1h TTL, got %v", ttl)
	}

	uid, err := refresh.Rotate(ctx, "sid", "h1", "h2", 2*time.Hour)
	if err != nil || uid != "u1" {
		t.Fatalf("Rotate = %q, %v", uid, err)
	}
	if got := mr.HGet("gs:rs:sid", "hash"); got != "h2" {
		t.Fatalf("expected rotated hash, got %q", got)
	}
	if ttl := mr.TTL("gs:rs:sid"); ttl != 2*time.Hour {
		t.Fatalf("expected extended TTL, got %v", ttl)
	}

	owner, err := refresh.Owner(ctx, "sid")
	if err != nil || owner != "u1" {
		t.Fatalf("Owner = %q, %v", owner, err)
	}
}

func TestRefreshReuseRevokes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	refresh := NewRefreshStore(rdb, "")
	ctx := context.Background()

	if err := refresh.Save(ctx, "sid", "u1", "h1", time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := refresh.Rotate(ctx, "sid", "h1", "h2", time.Hour); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	uid, err := refresh.Rotate(ctx, "sid", "h1", "h3", time.Hour)
	if !errors.Is(err, ErrRefreshReuse) || uid != "u1" {
		t.Fatalf("expected reuse for u1, got %q, %v", uid, err)
	}
	if mr.Exists("gs:rs:sid") {
		t.Fatalf("reuse must delete the session")
	}
	if _, err := refresh.Rotate(ctx, "sid", "h2", "h4", time.Hour); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound, got %v", err)
	}
}

func TestRefreshRevokeAndExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	refresh := NewRefreshStore(rdb, "")
	ctx := context.Background()

	if err := refresh.Revoke(ctx, "never-saved"); err != nil {
		t.Fatalf("Revoke missing: %v", err)
	}

	if err := refresh.Save(ctx, "a", "u1", "h", time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := refresh.Revoke(ctx, "a"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := refresh.Owner(ctx, "a"); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound after revoke, got %v", err)
	}

	if err := refresh.Save(ctx, "b", "u1", "h", time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := refresh.Rotate(ctx, "b", "h", "h2", time.Minute); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestStoresReportRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	users := NewUserStore(rdb, "", nil)
	refresh := NewRefreshStore(rdb, "")
	mr.Close()

	ctx := context.Background()
	if _, err := users.Create(ctx, "x@example.com", "h"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Create: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := refresh.Rotate(ctx, "sid", "a", "b", time.Minute); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Rotate: expected ErrStoreUnavailable, got %v", err)
	}
}
