package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory selects the base directory an OS filesystem is rooted at.
type Directory string

const (
	// DirectoryData resolves to $XDG_DATA_HOME or ~/.local/share.
	DirectoryData Directory = "data"
	// DirectoryDocuments resolves to ~/Documents.
	DirectoryDocuments Directory = "documents"
	// DirectoryCache resolves to os.UserCacheDir.
	DirectoryCache Directory = "cache"
	// DirectoryTemp resolves to os.TempDir.
	DirectoryTemp Directory = "temp"
)

// ParseDirectory converts a config token into a Directory.
func ParseDirectory(value string) (Directory, error) {
	switch Directory(strings.ToLower(strings.TrimSpace(value))) {
	case DirectoryData, "":
		return DirectoryData, nil
	case DirectoryDocuments:
		return DirectoryDocuments, nil
	case DirectoryCache:
		return DirectoryCache, nil
	case DirectoryTemp:
		return DirectoryTemp, nil
	default:
		return "", fmt.Errorf("storage: unknown directory %q", value)
	}
}

// ResolveDirectory returns the absolute path backing dir.
func ResolveDirectory(dir Directory) (string, error) {
	switch dir {
	case DirectoryData, "":
		if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
			return xdg, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("storage: resolve data directory: %w", err)
		}
		return filepath.Join(home, ".local", "share"), nil
	case DirectoryDocuments:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("storage: resolve documents directory: %w", err)
		}
		return filepath.Join(home, "Documents"), nil
	case DirectoryCache:
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("storage: resolve cache directory: %w", err)
		}
		return cache, nil
	case DirectoryTemp:
		return os.TempDir(), nil
	default:
		return "", fmt.Errorf("storage: unknown directory %q", dir)
	}
}

// OSOption configures an OS filesystem.
type OSOption func(*OS)

// WithSubdirectory nests the root under name (e.g. an application id).
func WithSubdirectory(name string) OSOption {
	return func(o *OS) {
		if name = strings.TrimSpace(name); name != "" {
			o.root = filepath.Join(o.root, name)
		}
	}
}

// WithFileMode sets the permission bits used for written files.
func WithFileMode(mode fs.FileMode) OSOption {
	return func(o *OS) {
		o.fileMode = mode
	}
}

// WithDirMode sets the permission bits used when creating the root.
func WithDirMode(mode fs.FileMode) OSOption {
	return func(o *OS) {
		o.dirMode = mode
	}
}

// OS stores files as siblings inside a single root directory. Writes go
// through a temp file, fsync and rename, so a reader never sees a torn file.
type OS struct {
	root     string
	fileMode fs.FileMode
	dirMode  fs.FileMode
}

// NewOS roots a filesystem at the directory selected by dir.
func NewOS(dir Directory, opts ...OSOption) (*OS, error) {
	root, err := ResolveDirectory(dir)
	if err != nil {
		return nil, err
	}
	return NewOSAt(root, opts...)
}

// NewOSAt roots a filesystem at an explicit path.
func NewOSAt(root string, opts ...OSOption) (*OS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage: root directory is required")
	}
	o := &OS{
		root:     filepath.Clean(root),
		fileMode: 0o600,
		dirMode:  0o700,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o, nil
}

// Root returns the directory files are stored in.
func (o *OS) Root() string {
	return o.root
}

// AtomicReplace implements AtomicReplacer.
func (o *OS) AtomicReplace() bool {
	return true
}

func (o *OS) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("storage: invalid file name %q", name)
	}
	return filepath.Join(o.root, name), nil
}

func (o *OS) Exists(_ context.Context, name string) (bool, error) {
	path, err := o.path(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat %q: %w", name, err)
	}
	return info.Mode().IsRegular(), nil
}

func (o *OS) Read(_ context.Context, name string) ([]byte, error) {
	path, err := o.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("storage: read %q: %w", name, err)
	}
	return data, nil
}

func (o *OS) Write(_ context.Context, name string, data []byte) error {
	path, err := o.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(o.root, o.dirMode); err != nil {
		return fmt.Errorf("storage: create root %q: %w", o.root, err)
	}

	tmp, err := os.CreateTemp(o.root, ".docstore-*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %q: %w", name, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %q: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %q: %w", name, err)
	}
	if err := os.Chmod(tmpPath, o.fileMode); err != nil {
		return fmt.Errorf("storage: chmod %q: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("storage: rename %q: %w", name, err)
	}
	success = true
	return nil
}

func (o *OS) Remove(_ context.Context, name string) error {
	path, err := o.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("storage: remove %q: %w", name, err)
	}
	return nil
}

func (o *OS) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(o.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list %q: %w", o.root, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
