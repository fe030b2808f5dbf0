// Package gcsfs stores docstore files as objects in a Google Cloud Storage
// bucket. Object uploads become visible only when the writer is closed, so a
// reader never observes a partial object.
package gcsfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/goliatone/go-docstore/pkg/storage"
)

// Option configures an FS.
type Option func(*FS)

// WithPrefix places every object under prefix (e.g. "apps/notes/").
func WithPrefix(prefix string) Option {
	return func(f *FS) {
		f.prefix = normalizePrefix(prefix)
	}
}

// FS implements storage.FileSystem over a bucket handle.
type FS struct {
	bucket *gcs.BucketHandle
	prefix string
	client *gcs.Client
}

// New wraps a bucket handle. The caller keeps ownership of its client.
func New(bucket *gcs.BucketHandle, opts ...Option) *FS {
	f := &FS{bucket: bucket}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Open creates a client for bucketName. Close releases the client.
func Open(ctx context.Context, bucketName string, clientOpts []option.ClientOption, opts ...Option) (*FS, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("gcsfs: bucket name is required")
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcsfs: create client: %w", err)
	}
	f := New(client.Bucket(bucketName), opts...)
	f.client = client
	return f, nil
}

// Close closes the client when it was created by Open.
func (f *FS) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// AtomicReplace implements storage.AtomicReplacer.
func (f *FS) AtomicReplace() bool {
	return true
}

// ObjectName maps a docstore file name to its object name.
func (f *FS) ObjectName(name string) string {
	return f.prefix + name
}

func (f *FS) Exists(ctx context.Context, name string) (bool, error) {
	_, err := f.bucket.Object(f.ObjectName(name)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("gcsfs: exists %q: %w", name, err)
	}
	return true, nil
}

func (f *FS) Read(ctx context.Context, name string) ([]byte, error) {
	reader, err := f.bucket.Object(f.ObjectName(name)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("gcsfs: open %q: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcsfs: read %q: %w", name, err)
	}
	return data, nil
}

func (f *FS) Write(ctx context.Context, name string, data []byte) error {
	writer := f.bucket.Object(f.ObjectName(name)).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("gcsfs: write %q: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gcsfs: finalize %q: %w", name, err)
	}
	return nil
}

func (f *FS) Remove(ctx context.Context, name string) error {
	err := f.bucket.Object(f.ObjectName(name)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("gcsfs: remove %q: %w", name, err)
	}
	return nil
}

func (f *FS) List(ctx context.Context, prefix string) ([]string, error) {
	it := f.bucket.Objects(ctx, &gcs.Query{Prefix: f.ObjectName(prefix)})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcsfs: list %q: %w", prefix, err)
		}
		if name, ok := f.fileName(attrs.Name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *FS) fileName(object string) (string, bool) {
	if !strings.HasPrefix(object, f.prefix) {
		return "", false
	}
	name := strings.TrimPrefix(object, f.prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
