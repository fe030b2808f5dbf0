// Package redisfs stores docstore files as Redis string keys.
package redisfs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-docstore/pkg/storage"
)

// Config configures the Redis filesystem.
type Config struct {
	Prefix string        // key prefix, default "docstore:"
	TTL    time.Duration // expiry applied on write, 0 = no expiry
}

// FS implements storage.FileSystem over any go-redis client (Client,
// ClusterClient, Ring). SET replaces values atomically.
type FS struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed filesystem.
func New(client redis.Cmdable, config ...Config) *FS {
	cfg := Config{Prefix: "docstore:"}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "docstore:"
	}
	return &FS{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

// AtomicReplace implements storage.AtomicReplacer.
func (f *FS) AtomicReplace() bool {
	return true
}

func (f *FS) key(name string) string {
	return f.prefix + name
}

func (f *FS) Exists(ctx context.Context, name string) (bool, error) {
	n, err := f.client.Exists(ctx, f.key(name)).Result()
	if err != nil {
		return false, fmt.Errorf("redisfs: exists %q: %w", name, err)
	}
	return n > 0, nil
}

func (f *FS) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := f.client.Get(ctx, f.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("redisfs: read %q: %w", name, err)
	}
	return data, nil
}

func (f *FS) Write(ctx context.Context, name string, data []byte) error {
	if err := f.client.Set(ctx, f.key(name), data, f.ttl).Err(); err != nil {
		return fmt.Errorf("redisfs: write %q: %w", name, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, name string) error {
	n, err := f.client.Del(ctx, f.key(name)).Result()
	if err != nil {
		return fmt.Errorf("redisfs: remove %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return nil
}

func (f *FS) List(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(f.key(prefix)) + "*"
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := f.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redisfs: list %q: %w", prefix, err)
		}
		for _, key := range keys {
			names = append(names, strings.TrimPrefix(key, f.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(names)
	return names, nil
}

func escapeGlob(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
