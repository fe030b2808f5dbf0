package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is implemented by every type stored in a collection. Keys are
// compared only by equality; all other fields are opaque to the engine.
type Record interface {
	RecordKey() string
}

// Document is an untyped record whose identity key is its "id" entry.
type Document map[string]any

// RecordKey implements Record. The key is the compact JSON form of the id,
// so the number 1 and the string "1" stay distinct while 1 and 1.0 match.
// A missing id yields "".
func (d Document) RecordKey() string {
	switch id := d["id"].(type) {
	case nil:
		return ""
	case string:
		return strconv.Quote(id)
	case json.Number:
		if f, err := id.Float64(); err == nil {
			return formatNumber(f)
		}
		return id.String()
	case float64:
		return formatNumber(id)
	case float32:
		return formatNumber(float64(id))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(id)
	default:
		raw, err := json.Marshal(id)
		if err != nil {
			return fmt.Sprintf("%T:%v", id, id)
		}
		return string(raw)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ChangeSet describes a delta against the previously loaded collection.
// Modified entries replace records with a matching key, Removed entries are
// deleted by key and Added entries are appended.
type ChangeSet[T Record] struct {
	Added    []T `json:"added,omitempty"`
	Modified []T `json:"modified,omitempty"`
	Removed  []T `json:"removed,omitempty"`
}

// Empty reports whether the change set carries no records.
func (c ChangeSet[T]) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// ChangeFunc receives a private copy of the collection after registration and
// after every successful save.
type ChangeFunc[T Record] func(ctx context.Context, items []T) error

// Encrypter turns the plaintext JSON encoding of a collection into the
// payload stored on disk.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
}

// Decrypter reverses an Encrypter.
type Decrypter interface {
	Decrypt(payload []byte) ([]byte, error)
}

// Cipher bundles both directions.
type Cipher interface {
	Encrypter
	Decrypter
}

// EncryptFunc adapts a function to Encrypter.
type EncryptFunc func(plaintext []byte) ([]byte, error)

// Encrypt implements Encrypter.
func (f EncryptFunc) Encrypt(plaintext []byte) ([]byte, error) {
	return f(plaintext)
}

// DecryptFunc adapts a function to Decrypter.
type DecryptFunc func(payload []byte) ([]byte, error)

// Decrypt implements Decrypter.
func (f DecryptFunc) Decrypt(payload []byte) ([]byte, error) {
	return f(payload)
}
