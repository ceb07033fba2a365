package plugins

import (
	"context"
	"path"
	"sync"

	"git.home.luguber.info/inful/bundler/internal/compiler"
	"git.home.luguber.info/inful/bundler/internal/errors"
)

// Static is the built-in entry builder: during the make stage it reads every
// configured entry from the input filesystem, and at seal time it registers
// the contents as assets named after the entry's base name.
type Static struct {
	mu      sync.Mutex
	pending map[string]map[string][]byte // compilation ID -> asset name -> content
}

// NewStatic returns an entry builder plugin.
func NewStatic() *Static {
	return &Static{pending: make(map[string]map[string][]byte)}
}

func (p *Static) Name() string { return "static" }

func (p *Static) Apply(c *compiler.Compiler) error {
	if err := c.Hooks.Make.Tap(p.Name(), p.makeEntries); err != nil {
		return err
	}
	return c.Hooks.Compilation.Tap(p.Name(), func(ctx context.Context, comp *compiler.Compilation) error {
		return comp.Hooks.Seal.Tap(p.Name(), p.sealEntries)
	})
}

func (p *Static) makeEntries(ctx context.Context, comp *compiler.Compilation) error {
	c := comp.Compiler
	opts := c.Options()
	files := make(map[string][]byte, len(opts.Entries))
	for _, entry := range opts.Entries {
		target := entry
		if opts.Context != "" {
			target = c.InputFS.Join(opts.Context, entry)
		}
		content, err := c.InputFS.ReadFile(target)
		if err != nil {
			return errors.CompileFailed(comp.Name, err).WithContext("entry", entry)
		}
		files[path.Base(entry)] = content
	}
	p.mu.Lock()
	p.pending[comp.ID] = files
	p.mu.Unlock()
	return nil
}

func (p *Static) sealEntries(ctx context.Context, comp *compiler.Compilation) error {
	p.mu.Lock()
	files := p.pending[comp.ID]
	delete(p.pending, comp.ID)
	p.mu.Unlock()
	for name, content := range files {
		comp.EmitAsset(name, content)
	}
	return nil
}
