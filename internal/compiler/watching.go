package compiler

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/logfields"
)

// Change is one detected modification from a change-notification source.
// Absence of a notification for a path means unchanged since the last build.
type Change struct {
	Path    string
	ModTime time.Time
}

// ChangeSource feeds a watch session with modifications. Closing the source
// closes its Changes channel.
type ChangeSource interface {
	Changes() <-chan Change
	Close() error
}

// WatchOptions configures a continuous-build session.
type WatchOptions struct {
	// AggregateTimeout batches rapid change bursts into one rebuild.
	AggregateTimeout time.Duration

	// Handler is invoked after every watch iteration with that
	// iteration's stats or error.
	Handler func(*Stats, error)
}

const defaultAggregateTimeout = 200 * time.Millisecond

// Watch starts a continuous-build session: an immediate first build, then a
// rebuild per aggregated change notification. The same concurrency guard as
// Run applies, but the timestamp tables are NOT reset; they persist across
// iterations so each build can tell which inputs changed since the previous
// completed one.
func (c *Compiler) Watch(ctx context.Context, source ChangeSource, opts WatchOptions) (*Watching, error) {
	if opts.AggregateTimeout <= 0 {
		opts.AggregateTimeout = defaultAggregateTimeout
	}

	c.mu.Lock()
	if c.running || c.watching != nil {
		c.mu.Unlock()
		return nil, errors.ConcurrentRun(c.Name)
	}
	w := &Watching{
		compiler:   c,
		source:     source,
		opts:       opts,
		ctx:        ctx,
		aggregated: make(map[string]time.Time),
	}
	c.watching = w
	c.mu.Unlock()

	if source != nil {
		go w.loop()
	}
	w.scheduleBuild()
	return w, nil
}

// Watching is one active continuous-build session. Close stops scheduling
// further builds; it never aborts a build already in progress.
type Watching struct {
	compiler *Compiler
	source   ChangeSource
	opts     WatchOptions
	ctx      context.Context

	mu         sync.Mutex
	closed     bool
	building   bool
	pending    bool
	aggregated map[string]time.Time
	debounce   *time.Timer
}

// Compiler returns the owning compiler.
func (w *Watching) Compiler() *Compiler { return w.compiler }

// Closed reports whether the session has been closed.
func (w *Watching) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Pending reports whether an invalidation is waiting on the in-flight build.
func (w *Watching) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *Watching) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case change, ok := <-w.source.Changes():
			if !ok {
				return
			}
			w.onChange(change)
		}
	}
}

func (w *Watching) onChange(change Change) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.aggregated[change.Path] = change.ModTime
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.opts.AggregateTimeout, w.scheduleBuild)
	w.mu.Unlock()

	w.fireInvalid(&InvalidEvent{Path: change.Path, ChangeTime: change.ModTime})
}

// Invalidate marks the session dirty and schedules a rebuild without
// waiting for the next external notification.
func (w *Watching) Invalidate() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.fireInvalid(&InvalidEvent{ChangeTime: time.Now()})
	w.scheduleBuild()
}

func (w *Watching) fireInvalid(ev *InvalidEvent) {
	if err := w.compiler.Hooks.Invalid.Call(w.ctx, ev); err != nil {
		w.compiler.logger.Warn("invalid hook reported an error", logfields.Error(err))
	}
}

// Close stops scheduling further builds and releases the change-notification
// subscription. An in-flight build runs to completion.
func (w *Watching) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	var err error
	if w.source != nil {
		err = w.source.Close()
	}

	c := w.compiler
	c.mu.Lock()
	if c.watching == w {
		c.watching = nil
	}
	c.mu.Unlock()

	if herr := c.Hooks.WatchClose.Call(context.Background(), c); herr != nil {
		c.logger.Warn("watchClose hook reported an error", logfields.Error(herr))
	}
	return err
}

// scheduleBuild starts an iteration now, or defers it until the in-flight
// one finishes.
func (w *Watching) scheduleBuild() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.building {
		w.pending = true
		w.mu.Unlock()
		return
	}
	w.building = true
	w.mu.Unlock()
	go w.run()
}

// run executes watch iterations until no invalidation is pending. Exactly
// one run goroutine is active at a time (guarded by w.building), which keeps
// the timestamp tables single-writer between builds.
func (w *Watching) run() {
	for {
		w.mu.Lock()
		changes := w.aggregated
		w.aggregated = make(map[string]time.Time)
		w.mu.Unlock()

		for path, ts := range changes {
			w.compiler.FileTimestamps[path] = ts
			w.compiler.ContextTimestamps[filepath.Dir(path)] = ts
		}

		var stats *Stats
		err := w.compiler.acquireRun()
		if err == nil {
			stats, err = w.compiler.build(w.ctx, true)
		}
		if w.opts.Handler != nil {
			w.opts.Handler(stats, err)
		}

		w.mu.Lock()
		if w.pending && !w.closed {
			w.pending = false
			w.mu.Unlock()
			continue
		}
		w.building = false
		w.mu.Unlock()
		return
	}
}
