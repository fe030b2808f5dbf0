// Package cipher provides ready-made encryption capabilities for docstore
// adapters. Every type here satisfies docstore.Cipher; the engine itself never
// depends on this package.
//
// Stored payloads are base64 text so encrypted collections stay printable:
//
//   - XChaCha: XChaCha20-Poly1305 under a per-collection key derived with
//     HKDF-SHA256, with the collection name bound in as additional data.
//   - Age: age X25519 recipients, useful when several parties (a device
//     and an escrow key) must be able to read the collection.
//   - Base64: reversible encoding with no secrecy, for tests and demos.
//
// Key material is held in memguard enclaves and only opened for the duration
// of a single Encrypt or Decrypt call.
package cipher

import "errors"

var (
	// ErrKeySize is returned for keys that are not KeySize bytes.
	ErrKeySize = errors.New("cipher: key must be 32 bytes")
	// ErrMalformed is returned for payloads that cannot be parsed.
	ErrMalformed = errors.New("cipher: malformed payload")
	// ErrAuthentication is returned when a payload fails authentication.
	ErrAuthentication = errors.New("cipher: authentication failed")
	// ErrNoIdentity is returned by Decrypt on encrypt-only ciphers.
	ErrNoIdentity = errors.New("cipher: no identity configured")
)
