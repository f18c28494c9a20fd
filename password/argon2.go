package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
	algorithmID           = "argon2id"
)

// DefaultMaxPasswordBytes caps password input when Config.MaxPasswordBytes is zero.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooShort is returned by Hash for passwords under the minimum length.
	ErrPasswordTooShort = errors.New("password must be at least 8 bytes")
	// ErrPasswordTooLong is returned by Hash and Verify for oversized input.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash wraps every failure to decode a stored hash.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrInvalidConfig wraps every rejected cost parameter.
	ErrInvalidConfig = errors.New("invalid password config")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the work an attacker can force per attempt.
	MaxPasswordBytes int
}

// DefaultConfig returns the parameters used by the reference service.
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             1,
		Parallelism:      4,
		SaltLength:       16,
		KeyLength:        32,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Validate reports the first cost parameter below its floor.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, minMemoryKB)
	case c.Time < minTimeCost:
		return fmt.Errorf("%w: time must be >= %d", ErrInvalidConfig, minTimeCost)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("%w: parallelism must be >= %d", ErrInvalidConfig, minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	}
	return nil
}

// params are the cost settings recorded in one PHC string.
type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func (p params) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, p.parallelism)
}

// phc is a decoded $argon2id$ string.
type phc struct {
	params
	salt []byte
	key  []byte
}

func (h phc) encode() string {
	return "$" + algorithmID +
		"$v=" + strconv.Itoa(argon2.Version) +
		"$" + h.params.String() +
		"$" + base64.StdEncoding.EncodeToString(h.salt) +
		"$" + base64.StdEncoding.EncodeToString(h.key)
}

func (h phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
}

// Argon2 hashes and verifies passwords in PHC string format. It is safe for
// concurrent use.
type Argon2 struct {
	config Config

	dummyOnce sync.Once
	dummy     phc
}

// NewArgon2 returns a hasher using cfg after validating its cost floors.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

func (a *Argon2) params() params {
	return params{memory: a.config.Memory, time: a.config.Time, parallelism: a.config.Parallelism}
}

// Hash derives a new salted hash. Passwords are hashed as raw bytes without
// Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	h := phc{params: a.params(), salt: make([]byte, a.config.SaltLength)}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	// derive takes the key length from h.key.
	h.key = make([]byte, a.config.KeyLength)
	h.key = h.derive(password)
	return h.encode(), nil
}

// Verify reports whether password matches encoded. The comparison runs in
// constant time; the cost is the one recorded in encoded.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.derive(password), h.key) == 1, nil
}

// Equalize spends the same work as a Verify against a hash produced with the
// current parameters, and always reports a mismatch. Login paths call it for
// unknown accounts so response time does not reveal which emails exist.
func (a *Argon2) Equalize(password string) {
	a.dummyOnce.Do(func() {
		a.dummy = phc{
			params: a.params(),
			salt:   make([]byte, a.config.SaltLength),
			key:    make([]byte, a.config.KeyLength),
		}
		_, _ = io.ReadFull(rand.Reader, a.dummy.salt)
	})
	if len(password) > a.config.MaxPasswordBytes {
		return
	}
	_ = subtle.ConstantTimeCompare(a.dummy.derive(password), a.dummy.key)
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current ones, so the caller can re-hash after a successful login.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := decode(encoded)
	if err != nil {
		return false, err
	}
	cur := a.params()
	return cur.memory > h.memory ||
		cur.time > h.time ||
		cur.parallelism > h.parallelism ||
		uint32(len(h.key)) != a.config.KeyLength, nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}

func decode(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phc{}, malformed("want 5 $-separated fields")
	}
	if parts[1] != algorithmID {
		return phc{}, malformed("unsupported algorithm " + strconv.Quote(parts[1]))
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return phc{}, malformed("missing version")
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return phc{}, malformed("unsupported version " + strconv.Quote(version))
	}

	p, err := decodeParams(parts[3])
	if err != nil {
		return phc{}, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return phc{}, malformed("bad salt")
	}
	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return phc{}, malformed("bad key")
	}
	return phc{params: p, salt: salt, key: key}, nil
}

func decodeParams(field string) (params, error) {
	var (
		p    params
		seen = map[string]bool{}
	)
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return p, malformed("want m,t,p parameters")
	}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return p, malformed("bad parameter " + strconv.Quote(pair))
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return p, malformed("bad memory")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return p, malformed("bad time")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return p, malformed("bad parallelism")
			}
			p.parallelism = uint8(v)
		default:
			return p, malformed("unknown parameter " + strconv.Quote(name))
		}
	}
	return p, nil
}
