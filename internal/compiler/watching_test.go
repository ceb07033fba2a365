package compiler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bunderrors "git.home.luguber.info/inful/bundler/internal/errors"
)

type fakeSource struct {
	ch     chan Change
	closed atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan Change, 16)}
}

func (f *fakeSource) Changes() <-chan Change { return f.ch }

func (f *fakeSource) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.ch)
	}
	return nil
}

func awaitStats(t *testing.T, results <-chan *Stats) *Stats {
	t.Helper()
	select {
	case s := <-results:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a watch iteration")
		return nil
	}
}

func watchTestSetup(t *testing.T, opts Options) (*Compiler, *fakeSource, chan *Stats) {
	t.Helper()
	c, _, _ := newTestCompiler(t, opts)
	source := newFakeSource()
	results := make(chan *Stats, 16)
	return c, source, results
}

func TestWatchRunsInitialBuild(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	var watchRun, beforeRun atomic.Int32
	require.NoError(t, c.Hooks.WatchRun.Tap("count", func(context.Context, *Compiler) error {
		watchRun.Add(1)
		return nil
	}))
	require.NoError(t, c.Hooks.BeforeRun.Tap("count", func(context.Context, *Compiler) error {
		beforeRun.Add(1)
		return nil
	}))

	w, err := c.Watch(context.Background(), source, WatchOptions{
		Handler: func(s *Stats, err error) {
			require.NoError(t, err)
			results <- s
		},
	})
	require.NoError(t, err)
	defer w.Close()

	stats := awaitStats(t, results)
	require.NotNil(t, stats)
	require.Equal(t, int32(1), watchRun.Load())
	require.Equal(t, int32(0), beforeRun.Load(), "watch iterations use watchRun, not beforeRun/run")
}

func TestWatchRebuildsOnChangeAndCarriesTimestamps(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	w, err := c.Watch(context.Background(), source, WatchOptions{
		AggregateTimeout: 10 * time.Millisecond,
		Handler: func(s *Stats, err error) {
			require.NoError(t, err)
			results <- s
		},
	})
	require.NoError(t, err)
	defer w.Close()

	awaitStats(t, results) // initial build

	changeTime := time.Unix(500, 0)
	source.ch <- Change{Path: "/src/a.js", ModTime: changeTime}

	awaitStats(t, results) // rebuild triggered by the change
	require.Equal(t, changeTime, c.FileTimestamps["/src/a.js"])
	require.Equal(t, changeTime, c.ContextTimestamps["/src"])

	// A later iteration still sees the earlier timestamps: tables are
	// carried forward, never reset mid-watch.
	source.ch <- Change{Path: "/src/b.js", ModTime: time.Unix(600, 0)}
	awaitStats(t, results)
	require.Equal(t, changeTime, c.FileTimestamps["/src/a.js"])
	require.Equal(t, time.Unix(600, 0), c.FileTimestamps["/src/b.js"])
}

func TestWatchInvalidateSchedulesRebuild(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	var invalidEvents atomic.Int32
	require.NoError(t, c.Hooks.Invalid.Tap("count", func(context.Context, *InvalidEvent) error {
		invalidEvents.Add(1)
		return nil
	}))

	w, err := c.Watch(context.Background(), source, WatchOptions{
		Handler: func(s *Stats, err error) {
			require.NoError(t, err)
			results <- s
		},
	})
	require.NoError(t, err)
	defer w.Close()

	awaitStats(t, results)
	w.Invalidate()
	awaitStats(t, results)
	require.GreaterOrEqual(t, invalidEvents.Load(), int32(1))
}

func TestWatchCloseStopsScheduling(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	w, err := c.Watch(context.Background(), source, WatchOptions{
		AggregateTimeout: 10 * time.Millisecond,
		Handler: func(s *Stats, err error) {
			if err == nil {
				results <- s
			}
		},
	})
	require.NoError(t, err)

	awaitStats(t, results)

	var closeSeen atomic.Bool
	require.NoError(t, c.Hooks.WatchClose.Tap("observe", func(context.Context, *Compiler) error {
		closeSeen.Store(true)
		return nil
	}))
	require.NoError(t, w.Close())
	require.True(t, w.Closed())
	require.True(t, closeSeen.Load())
	require.True(t, source.closed.Load(), "close releases the change-notification subscription")

	// Invalidate after close is a no-op.
	w.Invalidate()
	select {
	case <-results:
		t.Fatal("no build may be scheduled after close")
	case <-time.After(150 * time.Millisecond):
	}

	// The compiler is free for a fresh session afterwards.
	_, err = c.Run(context.Background())
	require.NoError(t, err)
}

func TestWatchWhileRunningFails(t *testing.T) {
	c, source, _ := watchTestSetup(t, Options{})
	release := make(chan struct{})
	entered := make(chan struct{})
	require.NoError(t, c.Hooks.Make.Tap("block", func(context.Context, *Compilation) error {
		close(entered)
		<-release
		return nil
	}))

	done := make(chan struct{})
	go func() {
		_, _ = c.Run(context.Background())
		close(done)
	}()
	<-entered

	_, err := c.Watch(context.Background(), source, WatchOptions{})
	var berr *bunderrors.BuildError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, bunderrors.CategoryConcurrency, berr.Category)

	close(release)
	<-done
}

func TestRunWhileWatchingFails(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	w, err := c.Watch(context.Background(), source, WatchOptions{
		AggregateTimeout: 10 * time.Millisecond,
		Handler: func(s *Stats, err error) {
			require.NoError(t, err)
			results <- s
		},
	})
	require.NoError(t, err)
	defer w.Close()

	awaitStats(t, results) // initial build
	changeTime := time.Unix(500, 0)
	source.ch <- Change{Path: "/src/a.js", ModTime: changeTime}
	awaitStats(t, results)
	require.Equal(t, changeTime, c.FileTimestamps["/src/a.js"])

	// Between iterations the session still owns the compiler: an ad-hoc
	// run is rejected and the timestamp tables stay intact.
	_, err = c.Run(context.Background())
	var berr *bunderrors.BuildError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, bunderrors.CategoryConcurrency, berr.Category)
	require.Equal(t, changeTime, c.FileTimestamps["/src/a.js"])

	// Closing the session frees the compiler for fresh runs again.
	require.NoError(t, w.Close())
	_, err = c.Run(context.Background())
	require.NoError(t, err)
}

func TestSecondWatchOnSameCompilerFails(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	w, err := c.Watch(context.Background(), source, WatchOptions{
		Handler: func(s *Stats, err error) {
			if err == nil {
				results <- s
			}
		},
	})
	require.NoError(t, err)
	defer w.Close()
	awaitStats(t, results)

	_, err = c.Watch(context.Background(), newFakeSource(), WatchOptions{})
	require.Error(t, err)
}

func TestWatchCoalescesInvalidationDuringBuild(t *testing.T) {
	c, source, results := watchTestSetup(t, Options{})
	slow := make(chan struct{}, 8)
	require.NoError(t, c.Hooks.Make.Tap("slow", func(context.Context, *Compilation) error {
		slow <- struct{}{}
		time.Sleep(50 * time.Millisecond)
		return nil
	}))

	w, err := c.Watch(context.Background(), source, WatchOptions{
		Handler: func(s *Stats, err error) {
			require.NoError(t, err)
			results <- s
		},
	})
	require.NoError(t, err)
	defer w.Close()

	<-slow // initial build in progress
	w.Invalidate()

	awaitStats(t, results) // initial build
	awaitStats(t, results) // rebuild for the pending invalidation
}
