package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
)

var _ FileStore = (*Memory)(nil)

// Memory keeps files in memory.
type Memory struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, p string) (io.ReadCloser, error) {
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.files[c]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Write(_ context.Context, p string) (io.WriteCloser, error) {
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.writes++
	m.mu.Unlock()
	return &memoryWriter{m: m, path: c}, nil
}

func (m *Memory) Delete(_ context.Context, p string) error {
	c, err := cleanPath(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.files, c)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	c, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	_, ok := m.files[c]
	m.mu.Unlock()
	return ok, nil
}

// Paths returns the stored paths in sorted order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Writes returns the number of writers opened.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type memoryWriter struct {
	m    *Memory
	path string
	buf  bytes.Buffer
	done bool
}

func (w *memoryWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *memoryWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (w *memoryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.m.mu.Lock()
	w.m.files[w.path] = bytes.Clone(w.buf.Bytes())
	w.m.mu.Unlock()
	return nil
}
