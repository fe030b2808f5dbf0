package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryHooks inject faults into a Memory filesystem. A non-nil error
// returned by a hook aborts the call before any state changes.
type MemoryHooks struct {
	Exists func(name string) error
	Read   func(name string) error
	Write  func(name string, data []byte) error
	Remove func(name string) error
	// Transform rewrites bytes returned by Read (e.g. simulate bit rot).
	Transform func(name string, data []byte) []byte
}

// Memory is an in-memory FileSystem intended for tests and examples. It keeps
// defensive copies so callers cannot alias stored bytes.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
	hooks MemoryHooks
}

// NewMemory constructs an empty Memory filesystem.
func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}}
}

// SetHooks replaces the fault-injection hooks.
func (m *Memory) SetHooks(hooks MemoryHooks) {
	m.mu.Lock()
	m.hooks = hooks
	m.mu.Unlock()
}

// Put seeds name with data, bypassing hooks.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	m.files[name] = cloneBytes(data)
	m.mu.Unlock()
}

// Bytes returns the stored bytes for name, bypassing hooks.
func (m *Memory) Bytes(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return cloneBytes(data), ok
}

// Names returns every stored name sorted ascending.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AtomicReplace implements AtomicReplacer.
func (m *Memory) AtomicReplace() bool {
	return true
}

func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hooks.Exists != nil {
		if err := m.hooks.Exists(name); err != nil {
			return false, err
		}
	}
	_, ok := m.files[name]
	return ok, nil
}

func (m *Memory) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hooks.Read != nil {
		if err := m.hooks.Read(name); err != nil {
			return nil, err
		}
	}
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	out := cloneBytes(data)
	if m.hooks.Transform != nil {
		out = m.hooks.Transform(name, out)
	}
	return out, nil
}

func (m *Memory) Write(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hooks.Write != nil {
		if err := m.hooks.Write(name, data); err != nil {
			return err
		}
	}
	m.files[name] = cloneBytes(data)
	return nil
}

func (m *Memory) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hooks.Remove != nil {
		if err := m.hooks.Remove(name); err != nil {
			return err
		}
	}
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(m.files, name)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
