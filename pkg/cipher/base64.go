package cipher

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// Base64 is a reversible encoding with no secrecy. It keeps the encrypted
// code path exercised in tests and demos.
type Base64 struct{}

// Encrypt implements docstore.Encrypter.
func (Base64) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(plaintext)))
	base64.StdEncoding.Encode(out, plaintext)
	return out, nil
}

// Decrypt implements docstore.Decrypter.
func (Base64) Decrypt(payload []byte) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
