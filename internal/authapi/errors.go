package authapi

import (
	"errors"
	"net/http"
	"strconv"
)

var (
	// ErrUnauthorized matches any 401 answer from the service.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest matches any 400 answer from the service.
	ErrBadRequest = errors.New("bad request")
	// ErrRateLimited matches any 429 answer from the service.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedPayload is returned when a success response cannot be used.
	ErrMalformedPayload = errors.New("malformed session payload")
)

// Error is a non-2xx answer from the authentication service. Message is the
// service's "error" field verbatim, suitable for showing to the user.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return "auth service: " + strconv.Itoa(e.Status) + ": " + e.Message
}

// Is maps the status code onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}
