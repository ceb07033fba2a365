package vfs

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFS is an in-memory FileSystem keyed by slash-separated paths. Safe for
// concurrent use; asset emission fans out writes.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (m *MemFS) Stat(p string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = path.Clean(p)
	if data, ok := m.files[p]; ok {
		return memFileInfo{name: path.Base(p), size: int64(len(data))}, nil
	}
	if m.dirs[p] {
		return memFileInfo{name: path.Base(p), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: os.ErrNotExist}
}

func (m *MemFS) ReadFile(p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = path.Clean(p)
	data, ok := m.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: os.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemFS) WriteFile(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[p] = stored
	m.markDirs(path.Dir(p))
	return nil
}

func (m *MemFS) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markDirs(path.Clean(p))
	return nil
}

func (m *MemFS) markDirs(p string) {
	for p != "" && p != "." && p != "/" {
		m.dirs[p] = true
		p = path.Dir(p)
	}
}

func (m *MemFS) Join(elem ...string) string { return path.Join(elem...) }

// Paths returns all file paths in sorted order.
func (m *MemFS) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasDir reports whether a directory was created at p.
func (m *MemFS) HasDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[path.Clean(p)]
}

// String renders the file listing, one path per line, for test diagnostics.
func (m *MemFS) String() string {
	return strings.Join(m.Paths(), "\n")
}

type memFileInfo struct {
	name string
	size int64
	dir  bool
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return fi.dir }
func (fi memFileInfo) Sys() any           { return nil }
