// Package compiler implements the hook-driven build orchestrator: a state
// machine that sequences resolution, graph construction, sealing, and
// emission through named hooks, with incremental-build bookkeeping carried
// across watch iterations and nested child builds.
package compiler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/logfields"
	"git.home.luguber.info/inful/bundler/internal/records"
	"git.home.luguber.info/inful/bundler/internal/vfs"
)

// Compiler owns one build configuration and drives the ordered stage
// sequence for it. At most one build attempt is in flight per instance; the
// running flag is the mutual-exclusion primitive and resets unconditionally
// when an attempt ends, success or failure.
type Compiler struct {
	Name  string
	Hooks *CompilerHooks

	// InputFS serves source reads; OutputFS receives emitted assets and
	// persisted records. A child compiler shares its parent's InputFS.
	InputFS  vfs.FileSystem
	OutputFS vfs.FileSystem

	// Records carries opaque incremental-build metadata across builds.
	Records *records.Store

	// FileTimestamps and ContextTimestamps map paths to the last-seen
	// modification time for dirty detection across watch iterations.
	// Shared by reference with the watch loop and spawned children;
	// only the instance currently executing a build attempt mutates
	// them.
	FileTimestamps    map[string]time.Time
	ContextTimestamps map[string]time.Time

	options Options
	logger  *slog.Logger

	// parentCompilation is nil for a top-level compiler and set for a
	// spawned child; completed child output is merged into it.
	parentCompilation *Compilation

	mu       sync.Mutex
	running  bool
	watching *Watching
}

// Option customizes a Compiler at construction.
type Option func(*Compiler)

// WithInputFS replaces the input filesystem adapter.
func WithInputFS(fsys vfs.FileSystem) Option {
	return func(c *Compiler) { c.InputFS = fsys }
}

// WithOutputFS replaces the output filesystem adapter.
func WithOutputFS(fsys vfs.FileSystem) Option {
	return func(c *Compiler) { c.OutputFS = fsys }
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// New creates a Compiler for the given options.
func New(opts Options, options ...Option) *Compiler {
	c := &Compiler{
		Name:              opts.Name,
		Hooks:             newCompilerHooks(),
		InputFS:           vfs.NewOS(),
		OutputFS:          vfs.NewOS(),
		Records:           records.NewStore(),
		FileTimestamps:    make(map[string]time.Time),
		ContextTimestamps: make(map[string]time.Time),
		options:           opts,
		logger:            slog.Default(),
	}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.With(logfields.Compiler(c.Name))
	return c
}

// Options returns the compiler's configuration.
func (c *Compiler) Options() Options { return c.options }

// Logger returns the compiler's logger.
func (c *Compiler) Logger() *slog.Logger { return c.logger }

// Running reports whether a build attempt is in flight.
func (c *Compiler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compiler) acquireRun() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.ConcurrentRun(c.Name)
	}
	c.running = true
	return nil
}

func (c *Compiler) releaseRun() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Run executes one build. It fails immediately with a concurrency-guard
// error, mutating nothing, if a build is already in flight or a watch
// session owns the compiler: the watch loop is the sole writer of the
// timestamp tables until it closes, and an ad-hoc run would reset them
// mid-watch. A fresh run resets the timestamp tables; watch iterations keep
// them (see Watch).
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	c.mu.Lock()
	if c.running || c.watching != nil {
		c.mu.Unlock()
		return nil, errors.ConcurrentRun(c.Name)
	}
	c.running = true
	c.mu.Unlock()
	c.FileTimestamps = make(map[string]time.Time)
	c.ContextTimestamps = make(map[string]time.Time)
	return c.build(ctx, false)
}

// build drives one build attempt through the fixed stage sequence. The
// running flag resets and the hooks unseal no matter how the attempt ends.
func (c *Compiler) build(ctx context.Context, watching bool) (stats *Stats, err error) {
	startTime := time.Now()
	c.Hooks.seal()
	defer func() {
		c.Hooks.unseal()
		c.releaseRun()
		if err != nil {
			if ferr := c.Hooks.Failed.Call(ctx, err); ferr != nil {
				c.logger.Warn("failed hook reported an error", logfields.Error(ferr))
			}
		}
	}()

	if watching {
		if err = c.Hooks.WatchRun.Call(ctx, c); err != nil {
			return nil, err
		}
	} else {
		if err = c.Hooks.BeforeRun.Call(ctx, c); err != nil {
			return nil, err
		}
		if err = c.Hooks.Run.Call(ctx, c); err != nil {
			return nil, err
		}
	}

	if err = c.ReadRecords(); err != nil {
		return nil, err
	}
	stats, err = c.buildCycle(ctx, startTime)
	return stats, err
}

// buildCycle runs the compile→emit sequence, looping for additional passes.
// The loop is unbounded by default; a collaborator that keeps requesting
// passes is trusted to terminate unless MaxAdditionalPasses is set.
func (c *Compiler) buildCycle(ctx context.Context, startTime time.Time) (*Stats, error) {
	for pass := 0; ; pass++ {
		c.logger.Debug("starting compilation pass", logfields.Pass(pass))
		comp, err := c.compile(ctx)
		if err != nil {
			return nil, err
		}

		emit := true
		if should, decided, err := c.Hooks.ShouldEmit.Call(ctx, comp); err != nil {
			return nil, err
		} else if decided && !should {
			// Intentional early exit, not an error: skip all writes
			// and go straight to records + done.
			c.logger.Debug("emission vetoed by shouldEmit")
			emit = false
		}

		if emit {
			if err := c.emitAssets(ctx, comp); err != nil {
				return nil, err
			}

			need, err := comp.needsAdditionalPass(ctx)
			if err != nil {
				return nil, err
			}
			if need {
				comp.NeedAdditionalPass = true
				comp.EndTime = time.Now()
				// Report the current (incomplete) result before
				// looping with a new session.
				if err := c.Hooks.Done.Call(ctx, newStats(comp, startTime, comp.EndTime)); err != nil {
					return nil, err
				}
				if err := c.Hooks.AdditionalPass.Call(ctx, c); err != nil {
					return nil, err
				}
				if max := c.options.MaxAdditionalPasses; max > 0 && pass+1 > max {
					return nil, errors.AdditionalPassLimit(max)
				}
				continue
			}
		}

		if err := c.EmitRecords(); err != nil {
			return nil, err
		}

		comp.EndTime = time.Now()
		stats := newStats(comp, startTime, comp.EndTime)
		if err := c.Hooks.Done.Call(ctx, stats); err != nil {
			return nil, err
		}
		c.logger.Info("build finished",
			logfields.Compilation(comp.ID),
			logfields.DurationMS(float64(stats.Duration().Milliseconds())),
			slog.Int("assets", len(comp.AssetNames())),
			slog.Int("errors", len(comp.Errors())))
		return stats, nil
	}
}

// compile drives one attempt from beforeCompile through afterCompile and
// returns the sealed session.
func (c *Compiler) compile(ctx context.Context) (*Compilation, error) {
	params := &Params{Compiler: c, Resolver: c.options.Resolver}
	if err := c.Hooks.BeforeCompile.Call(ctx, params); err != nil {
		return nil, err
	}
	if err := c.Hooks.Compile.Call(ctx, params); err != nil {
		return nil, err
	}

	comp := newCompilation(c, params)
	c.logger.Debug("created compilation", logfields.Compilation(comp.ID))
	if err := c.Hooks.ThisCompilation.Call(ctx, comp); err != nil {
		return nil, err
	}
	if err := c.Hooks.Compilation.Call(ctx, comp); err != nil {
		return nil, err
	}

	// All independent entry-builders run concurrently here.
	if err := c.Hooks.Make.Call(ctx, comp); err != nil {
		return nil, err
	}
	if err := comp.Finish(ctx); err != nil {
		return nil, err
	}
	if err := comp.Seal(ctx); err != nil {
		return nil, err
	}
	if err := c.Hooks.AfterCompile.Call(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// ReadRecords loads persisted records from the configured input path. No
// configured path or a missing file yields an empty store; malformed content
// is a hard error that aborts the build before the compile stage.
func (c *Compiler) ReadRecords() error {
	return c.Records.ReadFrom(c.InputFS, c.options.RecordsInputPath)
}

// EmitRecords persists the record store to the configured output path,
// creating missing parent directories. No configured path is a no-op.
func (c *Compiler) EmitRecords() error {
	return c.Records.WriteTo(c.OutputFS, c.options.RecordsOutputPath)
}
