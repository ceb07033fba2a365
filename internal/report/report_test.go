package report

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/vfs"
)

type captureReporter struct {
	summaries []compiler.Summary
	err       error
}

func (r *captureReporter) Report(_ context.Context, s compiler.Summary) error {
	r.summaries = append(r.summaries, s)
	return r.err
}

func newReportTestCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	return compiler.New(compiler.Options{Name: "report-test", Output: compiler.OutputOptions{Dir: "/out"}},
		compiler.WithInputFS(vfs.NewMemFS()),
		compiler.WithOutputFS(vfs.NewMemFS()),
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestAttachDeliversSummaryAfterBuild(t *testing.T) {
	c := newReportTestCompiler(t)
	c.Hooks.Make.MustTap("emit", func(ctx context.Context, comp *compiler.Compilation) error {
		comp.EmitAssetString("app.js", "x")
		return nil
	})
	sink := &captureReporter{}
	Attach(c, sink)

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.summaries, 1)
	summary := sink.summaries[0]
	require.Equal(t, "report-test", summary.Compiler)
	require.Equal(t, []string{"app.js"}, summary.Assets)
	require.Equal(t, 1, summary.EmittedAssets)
	require.NotEmpty(t, summary.CompilationID)
}

func TestReporterFailureDoesNotFailBuild(t *testing.T) {
	c := newReportTestCompiler(t)
	Attach(c, &captureReporter{err: context.DeadlineExceeded})

	_, err := c.Run(context.Background())
	require.NoError(t, err)
}

func TestLogReporterUsesDefaultLoggerWhenNil(t *testing.T) {
	r := &LogReporter{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, r.Report(context.Background(), compiler.Summary{Compiler: "x"}))
}
