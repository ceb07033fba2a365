package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/config"
	"git.home.luguber.info/inful/bundler/internal/history"
	"git.home.luguber.info/inful/bundler/internal/logfields"
	"git.home.luguber.info/inful/bundler/internal/observability"
	"git.home.luguber.info/inful/bundler/internal/plugins"
	"git.home.luguber.info/inful/bundler/internal/report"
	"git.home.luguber.info/inful/bundler/internal/scheduler"
	"git.home.luguber.info/inful/bundler/internal/watchfs"
)

var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"bundler.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
	} `cmd:"" help:"Run a single build"`

	Watch struct {
	} `cmd:"" help:"Build and rebuild on source changes"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct {
	} `cmd:"" help:"Print the version"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "build":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "watch":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.Verbose {
		cfg.Logging.Level = "debug"
	}
	observability.SetupLogging(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, nil
}

// setup wires the compiler with plugins, metrics, reporters, and history.
// The returned cleanup must run before exit.
func setup(cfg *config.Config) (*compiler.Compiler, func(), error) {
	c := compiler.New(cfg.CompilerOptions())

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	pluginList := []plugins.Plugin{plugins.NewStatic()}
	if cfg.Plugins.Markdown {
		pluginList = append(pluginList, plugins.NewMarkdown())
	}
	if err := plugins.ApplyAll(c, pluginList...); err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics()
		metrics.InstrumentCompiler(c)
		srv := metrics.Serve(cfg.Metrics.Addr)
		cleanups = append(cleanups, func() { _ = srv.Shutdown(context.Background()) })
		slog.Info("Metrics endpoint listening", "addr", cfg.Metrics.Addr)
	}

	reporters := []report.Reporter{&report.LogReporter{}}
	if cfg.Report.Enabled {
		natsReporter, err := report.NewNATSReporter(cfg.Report.NATSURL, cfg.Report.Subject)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = natsReporter.Close() })
		reporters = append(reporters, report.WithRetry(natsReporter, report.DefaultRetryPolicy()))
	}
	report.Attach(c, reporters...)

	if cfg.History.Enabled {
		recorder, err := history.NewRecorder(cfg.History.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = recorder.Close() })
		recorder.Attach(c)
	}

	return c, cleanup, nil
}

func runBuild(cfg *config.Config) error {
	c, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := c.Run(context.Background())
	if err != nil {
		return err
	}
	if stats.HasErrors() {
		for _, buildErr := range stats.Compilation.Errors() {
			slog.Warn("Compilation error", logfields.Error(buildErr))
		}
	}
	return nil
}

func runWatch(cfg *config.Config) error {
	c, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	source, err := watchfs.New(cfg.Context)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watching, err := c.Watch(ctx, source, compiler.WatchOptions{
		AggregateTimeout: cfg.Watch.AggregateTimeout.Std(),
		Handler: func(stats *compiler.Stats, buildErr error) {
			if buildErr != nil {
				slog.Error("Rebuild failed", logfields.Error(buildErr))
				return
			}
			slog.Info("Rebuild finished",
				logfields.Compilation(stats.Compilation.ID),
				logfields.DurationMS(float64(stats.Duration().Milliseconds())))
		},
	})
	if err != nil {
		return err
	}

	if interval := cfg.Watch.RebuildInterval.Std(); interval > 0 {
		sched, err := scheduler.New()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleRebuild(interval, watching); err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	slog.Info("Watching for changes", logfields.Path(cfg.Context))
	<-ctx.Done()
	return watching.Close()
}
