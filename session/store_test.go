package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func testUser() User {
	return User{ID: "u1", Email: "a@x.io", CreatedAt: time.Unix(1700000000, 0).UTC()}
}

func TestNewStoreStartsBootstrappingAndSignedOut(t *testing.T) {
	s := NewStore()
	got := s.Read()
	if !got.Bootstrapping {
		t.Fatal("expected bootstrapping on a fresh store")
	}
	if got.Authenticated() || got.User != nil || got.AccessToken != "" {
		t.Fatalf("expected signed-out session, got %+v", got)
	}
	if got.Roles == nil || len(got.Roles) != 0 {
		t.Fatalf("expected empty roles, got %#v", got.Roles)
	}
}

func TestWriteAuthenticatedThenUnauthenticated(t *testing.T) {
	s := NewStore()

	got, err := s.Write(Authenticated(testUser(), []string{"user"}, "T1"), Bootstrapped())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !got.Authenticated() || got.Bootstrapping {
		t.Fatalf("unexpected session after login: %+v", got)
	}
	if s.AccessToken() != "T1" {
		t.Fatalf("expected T1, got %q", s.AccessToken())
	}

	got, err = s.Write(Unauthenticated())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got.User != nil || got.AccessToken != "" || len(got.Roles) != 0 {
		t.Fatalf("expected cleared session, got %+v", got)
	}
	if got.Bootstrapping {
		t.Fatal("clearing identity must not reset bootstrapping")
	}
	if s.Version() != 2 {
		t.Fatalf("expected version 2, got %d", s.Version())
	}
}

func TestWriteRejectsIdentityWithoutCredential(t *testing.T) {
	s := NewStore()
	if _, err := s.Write(Authenticated(testUser(), nil, "")); !errors.Is(err, ErrInconsistentSession) {
		t.Fatalf("expected ErrInconsistentSession, got %v", err)
	}
	if s.Version() != 0 || s.Read().User != nil {
		t.Fatal("rejected write must not change the store")
	}

	clearToken := func(sess *Session) { sess.AccessToken = "" }
	if _, err := s.Write(Authenticated(testUser(), nil, "T"), clearToken); !errors.Is(err, ErrInconsistentSession) {
		t.Fatalf("expected ErrInconsistentSession, got %v", err)
	}
}

func TestReadReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	if _, err := s.Write(Authenticated(testUser(), []string{"user"}, "T1")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := s.Read()
	got.Roles[0] = "admin"
	got.User.Email = "mutated"

	again := s.Read()
	if again.Roles[0] != "user" || again.User.Email != "a@x.io" {
		t.Fatalf("store state leaked through Read: %+v", again)
	}
}

func TestSubscribeReceivesCurrentThenUpdatesInOrder(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(4)
	defer cancel()

	first := <-ch
	if !first.Bootstrapping {
		t.Fatalf("expected initial bootstrapping value, got %+v", first)
	}

	if _, err := s.Write(Authenticated(testUser(), []string{"user"}, "T1")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := s.Write(Bootstrapped()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	second := <-ch
	third := <-ch
	if second.AccessToken != "T1" || !second.Bootstrapping {
		t.Fatalf("unexpected second value: %+v", second)
	}
	if third.Bootstrapping {
		t.Fatalf("unexpected third value: %+v", third)
	}
}

func TestSlowSubscriberSeesLatestValue(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := 0; i < 50; i++ {
		tok := "T" + string(rune('a'+i%26))
		if _, err := s.Write(Authenticated(testUser(), nil, tok)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if _, err := s.Write(Unauthenticated()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	latest := <-ch
	if latest.AccessToken != "" {
		t.Fatalf("expected latest (signed-out) value, got %+v", latest)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(1)
	<-ch
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if _, err := s.Write(Bootstrapped()); err != nil {
		t.Fatalf("Write after unsubscribe failed: %v", err)
	}
}

func TestConcurrentWritesKeepInvariant(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe(8)
	defer cancel()

	done := make(chan struct{})
	violations := make(chan Session, 1)
	go func() {
		defer close(done)
		for v := range ch {
			if (v.User == nil) != (v.AccessToken == "") {
				select {
				case violations <- v:
				default:
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					_, _ = s.Write(Authenticated(testUser(), []string{"user"}, "T"))
				} else {
					_, _ = s.Write(Unauthenticated())
				}
				r := s.Read()
				if (r.User == nil) != (r.AccessToken == "") {
					select {
					case violations <- r:
					default:
					}
				}
			}
		}(i)
	}
	wg.Wait()
	cancel()
	<-done

	select {
	case v := <-violations:
		t.Fatalf("observed inconsistent session: %+v", v)
	default:
	}
}

func TestHasAnyRole(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		required []string
		want     bool
	}{
		{"no requirement", nil, nil, true},
		{"match", []string{"user", "admin"}, []string{"admin"}, true},
		{"any of", []string{"user"}, []string{"admin", "user"}, true},
		{"disjoint", []string{"user"}, []string{"admin"}, false},
		{"no roles", nil, []string{"admin"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Session{Roles: tc.roles}).HasAnyRole(tc.required); got != tc.want {
				t.Fatalf("HasAnyRole=%v want %v", got, tc.want)
			}
		})
	}
}
