// Package lockgate implements password locks on documents: hashing, the
// owner-side lock edit rules and the viewer-side unlock cache.
package lockgate

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	defaultMemory     = 64 * 1024
	defaultIterations = 3
	defaultThreads    = 1
	defaultSaltLength = 16
	defaultKeyLength  = 32

	// Bounds accepted when reading a stored hash.
	maxMemory     = 1024 * 1024
	maxIterations = 16
	minSaltLength = 8
	minKeyLength  = 16
	maxKeyLength  = 64
)

type argon2idHash struct {
	m    uint32
	t    uint32
	p    uint8
	salt []byte
	sum  []byte
}

// Hash returns an argon2id PHC string for password.
func Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	salt := make([]byte, defaultSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(password), salt, defaultIterations, defaultMemory, defaultThreads, defaultKeyLength)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		defaultMemory,
		defaultIterations,
		defaultThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether password matches hash. Besides argon2id PHC strings
// it accepts the bare hex SHA-256 digests written by older clients.
func Verify(hash, password string) bool {
	if strings.HasPrefix(hash, "$argon2id$") {
		h, err := parseArgon2idHash(hash)
		if err != nil {
			return false
		}
		sum := argon2.IDKey([]byte(password), h.salt, h.t, h.m, h.p, uint32(len(h.sum)))
		return subtle.ConstantTimeCompare(sum, h.sum) == 1
	}
	if isLegacyDigest(hash) {
		sum := sha256.Sum256([]byte(password))
		want, _ := hex.DecodeString(strings.ToLower(hash))
		return subtle.ConstantTimeCompare(sum[:], want) == 1
	}
	return false
}

// Valid reports whether hash is a verifiable lock hash: an argon2id PHC
// string with sane parameters or a legacy SHA-256 digest.
func Valid(hash string) bool {
	if isLegacyDigest(hash) {
		return true
	}
	_, err := parseArgon2idHash(hash)
	return err == nil
}

// IsLegacy reports whether hash is an old SHA-256 digest that should be
// re-hashed on the next successful unlock.
func IsLegacy(hash string) bool {
	return isLegacyDigest(hash)
}

func isLegacyDigest(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

func parseArgon2idHash(phc string) (*argon2idHash, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errors.New("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return nil, fmt.Errorf("unsupported argon2id version: %s", parts[2])
	}
	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return nil, errors.New("invalid argon2id params")
	}
	var m, t, p uint64
	for _, param := range params {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid argon2id params")
		}
		var err error
		switch kv[0] {
		case "m":
			m, err = strconv.ParseUint(kv[1], 10, 32)
		case "t":
			t, err = strconv.ParseUint(kv[1], 10, 32)
		case "p":
			p, err = strconv.ParseUint(kv[1], 10, 8)
		default:
			return nil, errors.New("invalid argon2id params")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid argon2id %s", kv[0])
		}
	}

	if m < 8*p || m > maxMemory {
		return nil, fmt.Errorf("argon2id memory out of range: %d", m)
	}
	if t < 1 || t > maxIterations {
		return nil, fmt.Errorf("argon2id iterations out of range: %d", t)
	}
	if p < 1 {
		return nil, errors.New("argon2id parallelism must be at least 1")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return nil, errors.New("invalid argon2id salt")
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) < minKeyLength || len(sum) > maxKeyLength {
		return nil, errors.New("invalid argon2id hash")
	}
	return &argon2idHash{m: uint32(m), t: uint32(t), p: uint8(p), salt: salt, sum: sum}, nil
}
