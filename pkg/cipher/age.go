package cipher

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/awnumar/memguard"
)

// Age encrypts to one or more age X25519 recipients and decrypts with an
// optional identity. Payloads are base64 of the binary age format.
type Age struct {
	recipients []age.Recipient
	identity   *memguard.Enclave
}

// GenerateAgeIdentity returns a new AGE-SECRET-KEY-1... identity and its
// age1... recipient.
func GenerateAgeIdentity() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("cipher: generate age identity: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}

// NewAge builds a cipher that decrypts with identity and encrypts to the
// identity's own recipient plus any extra recipients (e.g. an escrow key).
func NewAge(identity string, extraRecipients ...string) (*Age, error) {
	id, err := age.ParseX25519Identity(identity)
	if err != nil {
		return nil, fmt.Errorf("cipher: parse age identity: %w", err)
	}
	recipients, err := parseRecipients(extraRecipients)
	if err != nil {
		return nil, err
	}
	return &Age{
		recipients: append([]age.Recipient{id.Recipient()}, recipients...),
		identity:   memguard.NewEnclave([]byte(identity)),
	}, nil
}

// NewAgeRecipients builds an encrypt-only cipher. Decrypt fails with
// ErrNoIdentity.
func NewAgeRecipients(recipients ...string) (*Age, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("cipher: at least one age recipient is required")
	}
	parsed, err := parseRecipients(recipients)
	if err != nil {
		return nil, err
	}
	return &Age{recipients: parsed}, nil
}

func parseRecipients(keys []string) ([]age.Recipient, error) {
	out := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("cipher: parse age recipient %q: %w", key, err)
		}
		out = append(out, recipient)
	}
	return out, nil
}

// Encrypt implements docstore.Encrypter.
func (a *Age) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.recipients...)
	if err != nil {
		return nil, fmt.Errorf("cipher: create age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("cipher: write age payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cipher: finalize age payload: %w", err)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(out, buf.Bytes())
	return out, nil
}

// Decrypt implements docstore.Decrypter.
func (a *Age) Decrypt(payload []byte) ([]byte, error) {
	if a.identity == nil {
		return nil, ErrNoIdentity
	}
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	key, err := a.identity.Open()
	if err != nil {
		return nil, fmt.Errorf("cipher: open age identity: %w", err)
	}
	defer key.Destroy()

	id, err := age.ParseX25519Identity(key.String())
	if err != nil {
		return nil, fmt.Errorf("cipher: parse age identity: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}
