// Package watchfs adapts fsnotify to the change-notification contract the
// watch loop consumes.
package watchfs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/logfields"
)

// Source watches one or more directory trees and emits a Change per detected
// modification. Directories created under a watched root are picked up as
// they appear.
type Source struct {
	watcher *fsnotify.Watcher
	changes chan compiler.Change

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

// New creates a Source watching the given root directories recursively.
func New(roots ...string) (*Source, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	s := &Source{
		watcher: watcher,
		changes: make(chan compiler.Change, 64),
		stop:    make(chan struct{}),
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve watch root %s: %w", root, err)
		}
		if err := s.addTree(abs); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	go s.loop()
	return s, nil
}

// Changes implements compiler.ChangeSource.
func (s *Source) Changes() <-chan compiler.Change { return s.changes }

// Close stops watching and closes the change channel. Safe to call twice.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()
	return s.watcher.Close()
}

func (s *Source) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if werr := s.watcher.Add(path); werr != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, werr)
		}
		return nil
	})
}

func (s *Source) loop() {
	defer close(s.changes)
	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", logfields.Error(err))
		}
	}
}

func (s *Source) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	modTime := time.Now()
	if info, err := os.Stat(event.Name); err == nil {
		modTime = info.ModTime()
		// New directories under a watched root join the watch set.
		if info.IsDir() && event.Op&fsnotify.Create != 0 {
			if werr := s.addTree(event.Name); werr != nil {
				slog.Warn("failed to watch new directory", logfields.Path(event.Name), logfields.Error(werr))
			}
			return
		}
	}

	select {
	case s.changes <- compiler.Change{Path: event.Name, ModTime: modTime}:
	case <-s.stop:
	}
}
