package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// Argon2idParams are the cost parameters for password hashing. They are
// embedded in every encoded hash, so raising them later never invalidates
// hashes produced with the old values.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns the current hashing cost parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Memory:      64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// ErrInvalidHash indicates an encoded hash that cannot be parsed. It is an
// infrastructure fault (corrupt stored data), not a failed verification.
var ErrInvalidHash = errors.New("invalid encoded password hash")

// Hasher produces and verifies argon2id password hashes. The key derivation
// is deliberately expensive, so every computation is dispatched through a
// bounded semaphore: a burst of login attempts queues here instead of
// saturating the process. Acquire honors the caller's context deadline.
type Hasher struct {
	params Argon2idParams
	sem    *semaphore.Weighted
}

// NewHasher creates a Hasher allowing at most maxConcurrent simultaneous
// key derivations.
func NewHasher(params Argon2idParams, maxConcurrent int64) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{
		params: params,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// Hash derives an encoded hash from plaintext with a fresh random salt.
// Output format is the PHC string representation:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<base64 salt>$<base64 digest>
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := h.deriveKey(ctx, []byte(plaintext), salt, h.params)
	if err != nil {
		return "", err
	}

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify recomputes the hash of plaintext using the parameters embedded in
// encoded and compares in constant time. A malformed encoded hash returns
// ErrInvalidHash; a mismatch returns (false, nil).
func (h *Hasher) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate, err := h.deriveKey(ctx, []byte(plaintext), salt, params)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// DummyVerify burns the same work as a real verification. Login runs it when
// the username does not exist so that account enumeration by response timing
// is not possible.
func (h *Hasher) DummyVerify(ctx context.Context, plaintext string) {
	salt := make([]byte, h.params.SaltLength)
	_, _ = h.deriveKey(ctx, []byte(plaintext), salt, h.params)
}

// deriveKey runs the KDF under the concurrency semaphore.
func (h *Hasher) deriveKey(ctx context.Context, plaintext, salt []byte, params Argon2idParams) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("hashing capacity unavailable: %w", err)
	}
	defer h.sem.Release(1)

	key := argon2.IDKey(plaintext, salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return key, nil
}

// decodeHash parses a PHC-encoded argon2id hash into its parameters, salt,
// and derived key.
func decodeHash(encoded string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return params, nil, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	params.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, ErrInvalidHash
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
