package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundler/internal/vfs"
)

func TestEmitWritesAssetsAndMarksEmitted(t *testing.T) {
	c, _, out := newTestCompiler(t, Options{})
	require.NoError(t, c.Hooks.Make.Tap("produce", func(_ context.Context, comp *Compilation) error {
		comp.EmitAssetString("app.js", "console.log(1)")
		comp.EmitAsset("style.css", []byte("body{}"))
		return nil
	}))

	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	data, err := out.ReadFile("/out/app.js")
	require.NoError(t, err)
	require.Equal(t, "console.log(1)", string(data))

	a, ok := stats.Compilation.Asset("app.js")
	require.True(t, ok)
	require.True(t, a.Emitted)
	require.Equal(t, "/out/app.js", a.ExistsAt)
}

func TestEmitStripsQueryStringSuffix(t *testing.T) {
	c, _, out := newTestCompiler(t, Options{})
	require.NoError(t, c.Hooks.Make.Tap("produce", func(_ context.Context, comp *Compilation) error {
		comp.EmitAssetString("app.js?v=abc123", "versioned")
		return nil
	}))

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	data, err := out.ReadFile("/out/app.js")
	require.NoError(t, err)
	require.Equal(t, "versioned", string(data))
}

func TestEmitCreatesNestedDirectories(t *testing.T) {
	c, _, out := newTestCompiler(t, Options{})
	require.NoError(t, c.Hooks.Make.Tap("produce", func(_ context.Context, comp *Compilation) error {
		comp.EmitAssetString("js/vendor/lib.js", "lib")
		return nil
	}))

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.True(t, out.HasDir("/out/js/vendor"))
	_, err = out.ReadFile("/out/js/vendor/lib.js")
	require.NoError(t, err)
}

func TestEmitSkipsAssetAlreadyAtTarget(t *testing.T) {
	c, _, out := newTestCompiler(t, Options{})
	require.NoError(t, c.Hooks.Make.Tap("produce", func(_ context.Context, comp *Compilation) error {
		comp.EmitAssetString("app.js", "content")
		a, _ := comp.Asset("app.js")
		a.ExistsAt = "/out/app.js"
		a.Emitted = true
		return nil
	}))

	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	// No write happened and the emitted flag was cleared for this round.
	require.Empty(t, out.Paths())
	a, ok := stats.Compilation.Asset("app.js")
	require.True(t, ok)
	require.False(t, a.Emitted)
	require.Equal(t, "/out/app.js", a.ExistsAt)
}

type failingWriteFS struct {
	*vfs.MemFS
	failOn string
}

func (f *failingWriteFS) WriteFile(path string, data []byte) error {
	if strings.HasSuffix(path, f.failOn) {
		return errors.New("write rejected")
	}
	return f.MemFS.WriteFile(path, data)
}

func TestEmitFailureKeepsSiblingWrites(t *testing.T) {
	out := &failingWriteFS{MemFS: vfs.NewMemFS(), failOn: "bad.js"}
	c := New(Options{Name: "test", Output: OutputOptions{Dir: "/out"}},
		WithInputFS(vfs.NewMemFS()), WithOutputFS(out))
	require.NoError(t, c.Hooks.Make.Tap("produce", func(_ context.Context, comp *Compilation) error {
		comp.EmitAssetString("good.js", "ok")
		comp.EmitAssetString("bad.js", "nope")
		return nil
	}))
	var afterEmit bool
	require.NoError(t, c.Hooks.AfterEmit.Tap("observe", func(context.Context, *Compilation) error {
		afterEmit = true
		return nil
	}))

	_, err := c.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "asset emission failed")

	// The sibling write that succeeded stays on disk; no rollback.
	data, rerr := out.ReadFile("/out/good.js")
	require.NoError(t, rerr)
	require.Equal(t, "ok", string(data))
	require.False(t, afterEmit, "afterEmit must not run when emission failed")
	require.False(t, c.Running())
}
