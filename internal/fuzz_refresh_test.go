package internal

import (
	"testing"
)

// FuzzDecodeRefreshToken exercises refresh token decoding with arbitrary strings.
// Invalid inputs must return errors, never panic.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	sid, err := NewSessionID()
	if err == nil {
		secret, err := NewRefreshSecret()
		if err == nil {
			f.Add(EncodeRefreshToken(sid, secret))
		}
	}

	f.Add("!!!not-base64!!!")
	f.Add("aGVsbG8=")
	f.Add("dG9vLXNob3J0")

	f.Fuzz(func(t *testing.T, input string) {
		sessionID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		sid2, secret2, err := DecodeRefreshToken(EncodeRefreshToken(sessionID, secret))
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if sid2 != sessionID {
			t.Errorf("roundtrip session ID mismatch: %q vs %q", sid2, sessionID)
		}
		if secret2 != secret {
			t.Error("roundtrip secret mismatch")
		}
	})
}

func TestRefreshTokenCarriesSessionID(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}

	gotSID, gotSecret, err := DecodeRefreshToken(EncodeRefreshToken(sid, secret))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotSID.String() != sid.String() || gotSecret.Hash() != secret.Hash() {
		t.Fatal("decoded token does not match")
	}

	parsed, err := ParseSessionID(sid.String())
	if err != nil || parsed != sid {
		t.Fatalf("parse session id: %v", err)
	}
	if len(secret.Hash()) != 64 {
		t.Fatalf("expected hex sha256, got %q", secret.Hash())
	}
}

func TestNewStateIsUnique(t *testing.T) {
	a, err := NewState()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	b, _ := NewState()
	if a == "" || a == b {
		t.Fatalf("expected distinct states, got %q %q", a, b)
	}
}
