// Package internal holds helpers private to goSession: refresh token encoding
// and secure random values for the reference authentication service.
//
// # Sub-packages
//
//   - authapi: wire client for the authentication service
//   - authserver: reference authentication service
//   - logging: logrus construction
//   - rate: Redis-backed fixed-window counters
//   - stores: Redis-backed users and refresh sessions
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
package internal
