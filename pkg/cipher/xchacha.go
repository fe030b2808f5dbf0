package cipher

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of master and derived keys.
const KeySize = chacha20poly1305.KeySize

// Version is the first byte of every XChaCha blob and part of its AAD.
const Version byte = 0x01

// Overhead is version + nonce + tag.
const Overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// Changing the info string invalidates every existing payload.
var hkdfInfoCollection = []byte("docstore.collection.v1:")

// XChaCha encrypts one collection. Blobs are
//
//	base64( version | nonce (24) | ciphertext+tag )
//
// and authenticate the version byte and the BLAKE3 hash of the collection
// name, so a payload copied to another collection fails to decrypt.
type XChaCha struct {
	key *memguard.Enclave
	aad []byte
}

// NewXChaCha derives the collection key from masterKey. masterKey is not
// retained or modified.
func NewXChaCha(masterKey []byte, collection string) (*XChaCha, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(masterKey))
	}
	info := append(append([]byte{}, hkdfInfoCollection...), collection...)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, info), derived); err != nil {
		return nil, fmt.Errorf("cipher: derive collection key: %w", err)
	}

	nameHash := blake3.Sum256([]byte(collection))
	aad := make([]byte, 0, 1+len(nameHash))
	aad = append(aad, Version)
	aad = append(aad, nameHash[:]...)

	return &XChaCha{
		// NewEnclave wipes derived.
		key: memguard.NewEnclave(derived),
		aad: aad,
	}, nil
}

// Encrypt implements docstore.Encrypter.
func (x *XChaCha) Encrypt(plaintext []byte) ([]byte, error) {
	key, err := x.key.Open()
	if err != nil {
		return nil, fmt.Errorf("cipher: open key: %w", err)
	}
	defer key.Destroy()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cipher: create XChaCha20-Poly1305: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}

	blob := make([]byte, 1+len(nonce), Overhead+len(plaintext))
	blob[0] = Version
	copy(blob[1:], nonce[:])
	blob = aead.Seal(blob, nonce[:], plaintext, x.aad)

	out := make([]byte, base64.StdEncoding.EncodedLen(len(blob)))
	base64.StdEncoding.Encode(out, blob)
	return out, nil
}

// Decrypt implements docstore.Decrypter.
func (x *XChaCha) Decrypt(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	blob := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(blob, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	blob = blob[:n]

	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: blob is %d bytes, minimum is %d", ErrMalformed, len(blob), Overhead)
	}
	if blob[0] != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformed, blob[0])
	}

	key, err := x.key.Open()
	if err != nil {
		return nil, fmt.Errorf("cipher: open key: %w", err)
	}
	defer key.Destroy()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cipher: create XChaCha20-Poly1305: %w", err)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], x.aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}
