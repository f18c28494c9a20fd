// Package stores provides the Redis persistence behind the reference
// authentication service: user accounts and refresh sessions.
//
// # Design
//
// Users are JSON records with a unique email index claimed by SETNX. Refresh
// sessions are hashes holding the owner and the SHA-256 of the current refresh
// secret. Rotation is a Lua compare-and-swap, so a replayed refresh token can
// win at most once; a losing replay revokes the session.
//
// # What this package must NOT do
//
//   - Store plaintext refresh secrets or passwords.
//   - Make authentication decisions; handlers in authserver do that.
package stores
