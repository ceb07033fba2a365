package plugins

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/vfs"
)

type namedPlugin struct {
	name    string
	applied *[]string
	err     error
}

func (p *namedPlugin) Name() string { return p.name }

func (p *namedPlugin) Apply(*compiler.Compiler) error {
	*p.applied = append(*p.applied, p.name)
	return p.err
}

func newPluginTestCompiler(t *testing.T, opts compiler.Options) (*compiler.Compiler, *vfs.MemFS, *vfs.MemFS) {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "plugin-test"
	}
	if opts.Output.Dir == "" {
		opts.Output.Dir = "/out"
	}
	in := vfs.NewMemFS()
	out := vfs.NewMemFS()
	c := compiler.New(opts,
		compiler.WithInputFS(in),
		compiler.WithOutputFS(out),
		compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return c, in, out
}

func TestApplyAllRunsInOrderAndStopsAtFailure(t *testing.T) {
	c, _, _ := newPluginTestCompiler(t, compiler.Options{})
	var applied []string
	err := ApplyAll(c,
		&namedPlugin{name: "a", applied: &applied},
		&namedPlugin{name: "b", applied: &applied, err: context.DeadlineExceeded},
		&namedPlugin{name: "c", applied: &applied},
	)
	require.Error(t, err)
	require.ErrorContains(t, err, "plugin b")
	require.Equal(t, []string{"a", "b"}, applied)
}

func TestStaticEmitsConfiguredEntries(t *testing.T) {
	c, in, out := newPluginTestCompiler(t, compiler.Options{
		Context: "/src",
		Entries: []string{"index.js", "lib/util.js"},
	})
	require.NoError(t, in.WriteFile("/src/index.js", []byte("entry")))
	require.NoError(t, in.WriteFile("/src/lib/util.js", []byte("util")))
	require.NoError(t, ApplyAll(c, NewStatic()))

	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"index.js", "util.js"}, stats.Compilation.AssetNames())
	content, err := out.ReadFile("/out/index.js")
	require.NoError(t, err)
	require.Equal(t, "entry", string(content))
}

func TestStaticFailsBuildOnMissingEntry(t *testing.T) {
	c, _, _ := newPluginTestCompiler(t, compiler.Options{
		Context: "/src",
		Entries: []string{"missing.js"},
	})
	require.NoError(t, ApplyAll(c, NewStatic()))

	_, err := c.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "compilation failed")
}

func TestMarkdownRendersToHTML(t *testing.T) {
	c, in, out := newPluginTestCompiler(t, compiler.Options{
		Context: "/src",
		Entries: []string{"readme.md"},
	})
	require.NoError(t, in.WriteFile("/src/readme.md", []byte("# Title")))
	require.NoError(t, ApplyAll(c, NewStatic(), NewMarkdown()))

	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"readme.html"}, stats.Compilation.AssetNames())
	content, err := out.ReadFile("/out/readme.html")
	require.NoError(t, err)
	require.Contains(t, string(content), "<h1>Title</h1>")
}

func TestMarkdownLeavesOtherAssetsAlone(t *testing.T) {
	c, in, out := newPluginTestCompiler(t, compiler.Options{
		Context: "/src",
		Entries: []string{"app.js"},
	})
	require.NoError(t, in.WriteFile("/src/app.js", []byte("code")))
	require.NoError(t, ApplyAll(c, NewStatic(), NewMarkdown()))

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	content, err := out.ReadFile("/out/app.js")
	require.NoError(t, err)
	require.Equal(t, "code", string(content))
}
