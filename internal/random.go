package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// SessionID names one server-side refresh session.
type SessionID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
	stateSize           = 32
)

var (
	errSessionIDSize    = errors.New("invalid session id size")
	errRefreshTokenSize = errors.New("invalid refresh token size")
)

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errSessionIDSize
	}

	copy(sid[:], raw)
	return sid, nil
}

// RefreshSecret is the random half of a refresh token. Only its hash is stored.
type RefreshSecret [refreshSecretSize]byte

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// Hash returns the hex SHA-256 of the secret, the form kept in Redis.
func (s RefreshSecret) Hash() string {
	sum := sha256.Sum256(s[:])
	return hex.EncodeToString(sum[:])
}

// EncodeRefreshToken packs session id and secret into the opaque cookie value.
func EncodeRefreshToken(sessionID SessionID, secret RefreshSecret) string {
	var raw [refreshTokenRawSize]byte
	copy(raw[:len(sessionID)], sessionID[:])
	copy(raw[len(sessionID):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeRefreshToken(token string) (SessionID, RefreshSecret, error) {
	var (
		sid    SessionID
		secret RefreshSecret
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return sid, secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return sid, secret, errRefreshTokenSize
	}

	copy(sid[:], raw[:len(sid)])
	copy(secret[:], raw[len(sid):])

	return sid, secret, nil
}

// NewState returns an unguessable value for the OAuth state parameter.
func NewState() (string, error) {
	var b [stateSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
