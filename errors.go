package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/internal/authapi"
)

var (
	// ErrNotBootstrapped is returned by [Client.AwaitReady] when ctx ends before
	// the startup session check completes.
	ErrNotBootstrapped = errors.New("session not bootstrapped")
	// ErrSessionEnded is returned when a refresh outcome arrives after the
	// session it belonged to was replaced by logout, login, or ApplySession.
	ErrSessionEnded = errors.New("session ended while refresh was in flight")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrClientClosed is returned by lifecycle calls made after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrUnauthorized matches an [APIError] with status 401.
	ErrUnauthorized = authapi.ErrUnauthorized
	// ErrBadRequest matches an [APIError] with status 400.
	ErrBadRequest = authapi.ErrBadRequest
	// ErrRateLimited matches an [APIError] with status 429.
	ErrRateLimited = authapi.ErrRateLimited
	// ErrMalformedPayload is returned when a success response lacks a user or token.
	ErrMalformedPayload = authapi.ErrMalformedPayload
)

// APIError is a non-2xx answer from the authentication service. Its Message is
// the service's error text and is safe to show to the user.
type APIError = authapi.Error
