// Package report delivers build summaries to external sinks after each run.
package report

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/logfields"
)

// Reporter receives a summary after every completed build attempt.
type Reporter interface {
	Report(ctx context.Context, summary compiler.Summary) error
}

// Attach taps the compiler's done hook so every reporter sees every build.
// Reporter failures are logged and never fail the build.
func Attach(c *compiler.Compiler, reporters ...Reporter) {
	if len(reporters) == 0 {
		return
	}
	c.Hooks.Done.MustTap("report", func(ctx context.Context, stats *compiler.Stats) error {
		summary := stats.Summarize()
		for _, r := range reporters {
			if err := r.Report(ctx, summary); err != nil {
				c.Logger().Warn("build report delivery failed",
					logfields.Compiler(c.Name),
					logfields.Error(err))
			}
		}
		return nil
	})
}

// LogReporter writes the summary to structured logs.
type LogReporter struct {
	Logger *slog.Logger
}

func (r *LogReporter) Report(_ context.Context, summary compiler.Summary) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("build finished",
		logfields.Compiler(summary.Compiler),
		logfields.Compilation(summary.CompilationID),
		logfields.DurationMS(float64(summary.DurationMS)),
		slog.Int("assets", len(summary.Assets)),
		slog.Int("emitted_assets", summary.EmittedAssets),
		slog.Int("errors", len(summary.Errors)))
	return nil
}
