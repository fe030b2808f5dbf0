package cipher

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the salt length produced by NewSalt and required by DeriveKey.
const SaltSize = 16

// KDFParams tunes argon2id.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams follows the RFC 9106 second recommended option.
var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// GenerateKey returns a random KeySize key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cipher: generate key: %w", err)
	}
	return key, nil
}

// NewSalt returns a random SaltSize salt. Store it next to the collection;
// it is not secret.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cipher: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase into a KeySize master key with argon2id.
// The first params entry, if any, overrides DefaultKDFParams.
func DeriveKey(passphrase, salt []byte, params ...KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("cipher: passphrase is empty")
	}
	if len(salt) < SaltSize {
		return nil, fmt.Errorf("cipher: salt must be at least %d bytes, got %d", SaltSize, len(salt))
	}
	p := DefaultKDFParams
	if len(params) > 0 {
		p = params[0]
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, fmt.Errorf("cipher: invalid argon2id parameters %+v", p)
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, KeySize), nil
}
