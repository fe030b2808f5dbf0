package docstore_test

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	docstore "github.com/goliatone/go-docstore"
	"github.com/goliatone/go-docstore/pkg/storage"
)

const notesName = "notes.json"

type note struct {
	ID    string   `json:"id" validate:"required"`
	Title string   `json:"title" validate:"required"`
	Tags  []string `json:"tags,omitempty"`
}

func (n note) RecordKey() string { return n.ID }

// advisoryLog collects advisories raised by an adapter.
type advisoryLog struct {
	mu    sync.Mutex
	items []docstore.Advisory
}

func (l *advisoryLog) option() docstore.Option {
	return docstore.WithAdvisoryHandler(docstore.AdvisoryHandlerFunc(func(_ context.Context, a docstore.Advisory) {
		l.mu.Lock()
		l.items = append(l.items, a)
		l.mu.Unlock()
	}))
}

func (l *advisoryLog) codes() []docstore.AdvisoryCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]docstore.AdvisoryCode, 0, len(l.items))
	for _, a := range l.items {
		out = append(out, a.Code)
	}
	return out
}

func (l *advisoryLog) has(code docstore.AdvisoryCode) bool {
	for _, c := range l.codes() {
		if c == code {
			return true
		}
	}
	return false
}

func (l *advisoryLog) count(code docstore.AdvisoryCode) int {
	n := 0
	for _, c := range l.codes() {
		if c == code {
			n++
		}
	}
	return n
}

// base64Cipher is a reversible, non-secret cipher: encrypt is base64 of the
// JSON encoding and decrypt is its inverse.
func base64Cipher() (docstore.EncryptFunc, docstore.DecryptFunc) {
	enc := docstore.EncryptFunc(func(plaintext []byte) ([]byte, error) {
		return []byte(base64.StdEncoding.EncodeToString(plaintext)), nil
	})
	dec := docstore.DecryptFunc(func(payload []byte) ([]byte, error) {
		return base64.StdEncoding.DecodeString(string(payload))
	})
	return enc, dec
}

// plainFS wraps Memory without advertising atomic replacement, so the
// writer removes the canonical file before promoting.
type plainFS struct {
	mem *storage.Memory
}

func (p plainFS) Exists(ctx context.Context, name string) (bool, error) {
	return p.mem.Exists(ctx, name)
}

func (p plainFS) Read(ctx context.Context, name string) ([]byte, error) {
	return p.mem.Read(ctx, name)
}

func (p plainFS) Write(ctx context.Context, name string, data []byte) error {
	return p.mem.Write(ctx, name, data)
}

func (p plainFS) Remove(ctx context.Context, name string) error {
	return p.mem.Remove(ctx, name)
}

func (p plainFS) List(ctx context.Context, prefix string) ([]string, error) {
	return p.mem.List(ctx, prefix)
}

// unlistableFS hides List as well.
type unlistableFS struct {
	mem *storage.Memory
}

func (u unlistableFS) Exists(ctx context.Context, name string) (bool, error) {
	return u.mem.Exists(ctx, name)
}

func (u unlistableFS) Read(ctx context.Context, name string) ([]byte, error) {
	return u.mem.Read(ctx, name)
}

func (u unlistableFS) Write(ctx context.Context, name string, data []byte) error {
	return u.mem.Write(ctx, name, data)
}

func (u unlistableFS) Remove(ctx context.Context, name string) error {
	return u.mem.Remove(ctx, name)
}

func namesWith(mem *storage.Memory, infix string) []string {
	var out []string
	for _, name := range mem.Names() {
		if strings.Contains(name, infix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func keys(items []note) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
