// Package vfs defines the filesystem adapter the build pipeline reads inputs
// from and writes artifacts to, with an OS-backed implementation and an
// in-memory implementation for tests and nested builds.
package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the narrow contract the orchestrator requires. Join is part
// of the contract so a filesystem can define its own path shape.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	MkdirAll(path string) error
	Join(elem ...string) string
}

// OS is the operating-system filesystem.
type OS struct{}

// NewOS returns an OS-backed filesystem adapter.
func NewOS() OS { return OS{} }

func (OS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (OS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OS) WriteFile(path string, data []byte) error { return os.WriteFile(path, data, 0o644) }

func (OS) MkdirAll(path string) error { return os.MkdirAll(path, 0o755) }

func (OS) Join(elem ...string) string { return filepath.Join(elem...) }

// IsNotExist reports whether err indicates a missing file on any FileSystem
// implementation in this package.
func IsNotExist(err error) bool { return os.IsNotExist(err) }
