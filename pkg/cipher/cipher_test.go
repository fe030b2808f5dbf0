package cipher_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docstore "github.com/goliatone/go-docstore"
	"github.com/goliatone/go-docstore/pkg/cipher"
	"github.com/goliatone/go-docstore/pkg/storage"
)

var (
	_ docstore.Cipher = (*cipher.XChaCha)(nil)
	_ docstore.Cipher = (*cipher.Age)(nil)
	_ docstore.Cipher = cipher.Base64{}
)

// fastKDF keeps argon2id cheap in tests.
var fastKDF = cipher.KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1}

func newKey(t *testing.T) []byte {
	t.Helper()
	key, err := cipher.GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, cipher.KeySize)
	return key
}

func TestXChaChaRoundTrip(t *testing.T) {
	key := newKey(t)
	c, err := cipher.NewXChaCha(key, "notes.json")
	require.NoError(t, err)

	plaintext := []byte(`[{"id":"a"}]`)
	payload, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), `"id"`)

	_, err = base64.StdEncoding.DecodeString(string(payload))
	require.NoError(t, err, "payload should be printable base64")

	got, err := c.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestXChaChaUsesFreshNonces(t *testing.T) {
	c, err := cipher.NewXChaCha(newKey(t), "notes.json")
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestXChaChaDoesNotRetainMasterKey(t *testing.T) {
	key := newKey(t)
	original := append([]byte(nil), key...)

	_, err := cipher.NewXChaCha(key, "notes.json")
	require.NoError(t, err)
	assert.Equal(t, original, key)
}

func TestXChaChaRejectsBadKeySize(t *testing.T) {
	_, err := cipher.NewXChaCha([]byte("short"), "notes.json")
	require.ErrorIs(t, err, cipher.ErrKeySize)
}

func TestXChaChaBindsCollectionName(t *testing.T) {
	key := newKey(t)
	notes, err := cipher.NewXChaCha(key, "notes.json")
	require.NoError(t, err)
	tasks, err := cipher.NewXChaCha(key, "tasks.json")
	require.NoError(t, err)

	payload, err := notes.Encrypt([]byte("[]"))
	require.NoError(t, err)

	_, err = tasks.Decrypt(payload)
	require.ErrorIs(t, err, cipher.ErrAuthentication)
}

func TestXChaChaRejectsWrongKey(t *testing.T) {
	a, err := cipher.NewXChaCha(newKey(t), "notes.json")
	require.NoError(t, err)
	b, err := cipher.NewXChaCha(newKey(t), "notes.json")
	require.NoError(t, err)

	payload, err := a.Encrypt([]byte("[]"))
	require.NoError(t, err)

	_, err = b.Decrypt(payload)
	require.ErrorIs(t, err, cipher.ErrAuthentication)
}

func TestXChaChaDetectsTampering(t *testing.T) {
	c, err := cipher.NewXChaCha(newKey(t), "notes.json")
	require.NoError(t, err)
	payload, err := c.Encrypt([]byte(`[{"id":"a"}]`))
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(string(payload))
	require.NoError(t, err)

	t.Run("ciphertext", func(t *testing.T) {
		tampered := append([]byte(nil), blob...)
		tampered[len(tampered)-1] ^= 0xff
		_, err := c.Decrypt([]byte(base64.StdEncoding.EncodeToString(tampered)))
		require.ErrorIs(t, err, cipher.ErrAuthentication)
	})

	t.Run("version", func(t *testing.T) {
		tampered := append([]byte(nil), blob...)
		tampered[0] = 0x02
		_, err := c.Decrypt([]byte(base64.StdEncoding.EncodeToString(tampered)))
		require.ErrorIs(t, err, cipher.ErrMalformed)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := c.Decrypt([]byte(base64.StdEncoding.EncodeToString(blob[:cipher.Overhead-1])))
		require.ErrorIs(t, err, cipher.ErrMalformed)
	})

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Decrypt([]byte(`[{"id":"a"}]`))
		require.ErrorIs(t, err, cipher.ErrMalformed)
	})
}

func TestDeriveKey(t *testing.T) {
	salt, err := cipher.NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, cipher.SaltSize)

	a, err := cipher.DeriveKey([]byte("correct horse"), salt, fastKDF)
	require.NoError(t, err)
	b, err := cipher.DeriveKey([]byte("correct horse"), salt, fastKDF)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, cipher.KeySize)

	other, err := cipher.DeriveKey([]byte("battery staple"), salt, fastKDF)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = cipher.DeriveKey(nil, salt, fastKDF)
	assert.Error(t, err)
	_, err = cipher.DeriveKey([]byte("pw"), []byte("short"), fastKDF)
	assert.Error(t, err)
	_, err = cipher.DeriveKey([]byte("pw"), salt, cipher.KDFParams{})
	assert.Error(t, err)
}

func TestAgeRoundTripAndEscrow(t *testing.T) {
	identity, _, err := cipher.GenerateAgeIdentity()
	require.NoError(t, err)
	escrowIdentity, escrowRecipient, err := cipher.GenerateAgeIdentity()
	require.NoError(t, err)

	device, err := cipher.NewAge(identity, escrowRecipient)
	require.NoError(t, err)

	payload, err := device.Encrypt([]byte(`[{"id":"a"}]`))
	require.NoError(t, err)

	got, err := device.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))

	escrow, err := cipher.NewAge(escrowIdentity)
	require.NoError(t, err)
	got, err = escrow.Decrypt(payload)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))

	stranger, _, err := cipher.GenerateAgeIdentity()
	require.NoError(t, err)
	outsider, err := cipher.NewAge(stranger)
	require.NoError(t, err)
	_, err = outsider.Decrypt(payload)
	require.ErrorIs(t, err, cipher.ErrAuthentication)
}

func TestAgeEncryptOnly(t *testing.T) {
	_, recipient, err := cipher.GenerateAgeIdentity()
	require.NoError(t, err)

	c, err := cipher.NewAgeRecipients(recipient)
	require.NoError(t, err)
	payload, err := c.Encrypt([]byte("[]"))
	require.NoError(t, err)

	_, err = c.Decrypt(payload)
	require.ErrorIs(t, err, cipher.ErrNoIdentity)

	_, err = cipher.NewAgeRecipients()
	assert.Error(t, err)
	_, err = cipher.NewAgeRecipients("not-a-recipient")
	assert.Error(t, err)
	_, err = cipher.NewAge("not-an-identity")
	assert.Error(t, err)
}

func TestBase64(t *testing.T) {
	var c cipher.Base64
	payload, err := c.Encrypt([]byte("[]"))
	require.NoError(t, err)
	assert.Equal(t, "W10=", string(payload))

	got, err := c.Decrypt(append(payload, '\n'))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	_, err = c.Decrypt([]byte("%%"))
	require.ErrorIs(t, err, cipher.ErrMalformed)
}

type note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (n note) RecordKey() string { return n.ID }

func TestXChaChaWithAdapter(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemory()

	salt, err := cipher.NewSalt()
	require.NoError(t, err)
	key, err := cipher.DeriveKey([]byte("passphrase"), salt, fastKDF)
	require.NoError(t, err)
	c, err := cipher.NewXChaCha(key, "notes.json")
	require.NoError(t, err)

	adapter, err := docstore.New[note]("notes.json", fs,
		docstore.WithCipher(c),
		docstore.WithEnforceEncryption(),
	)
	require.NoError(t, err)
	require.NoError(t, adapter.Register(ctx, nil))

	require.NoError(t, adapter.Save(ctx, []note{{ID: "a", Title: "Alpha"}}, docstore.ChangeSet[note]{}))

	stored, ok := fs.Bytes("notes.json")
	require.True(t, ok)
	assert.False(t, bytes.Contains(stored, []byte("Alpha")))

	loaded, err := adapter.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []note{{ID: "a", Title: "Alpha"}}, loaded)

	// Tampered payloads are refused rather than silently parsed.
	fs.Put("notes.json", append([]byte("AAAA"), stored...))
	_, err = adapter.Load(ctx)
	require.ErrorIs(t, err, docstore.ErrDecryptionFailed)
}
