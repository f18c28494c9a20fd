// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login. [Argon2.Equalize] spends
// one verification worth of work for accounts that do not exist. Every decode
// failure wraps [ErrMalformedHash].
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Registration policy beyond
// input length bounds is enforced by the authentication service.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goSession package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
