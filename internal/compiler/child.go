package compiler

import (
	"context"

	"git.home.luguber.info/inful/bundler/internal/errors"
	"git.home.luguber.info/inful/bundler/internal/logfields"
	"git.home.luguber.info/inful/bundler/internal/records"
)

// CreateChildCompiler spawns a nested, independently sequenced build owned
// by this session (a manifest or secondary bundle, typically). The child
// shares the parent's resolver configuration, input filesystem, and
// timestamp tables by reference; it gets an isolated output configuration
// layered over the parent's. Its records entry is keyed by the child's
// normalized name at the position given by its spawn index among same-named
// siblings, so a pre-existing entry is reused across parent rebuilds.
func (comp *Compilation) CreateChildCompiler(name string, output OutputOptions) *Compiler {
	parent := comp.Compiler

	comp.mu.Lock()
	index := comp.childCounters[name]
	comp.childCounters[name]++
	comp.mu.Unlock()

	opts := parent.options
	opts.Name = name
	opts.Output = mergeOutput(parent.options.Output, output)
	// Records propagate through the parent store entry, not a separate
	// file owned by the child.
	opts.RecordsInputPath = ""
	opts.RecordsOutputPath = ""

	normalized := records.NormalizeName(parent.options.Context, name)
	child := &Compiler{
		Name:              name,
		Hooks:             newCompilerHooks(),
		InputFS:           parent.InputFS,
		OutputFS:          parent.OutputFS,
		Records:           parent.Records.Child(normalized, index),
		FileTimestamps:    parent.FileTimestamps,
		ContextTimestamps: parent.ContextTimestamps,
		options:           opts,
		logger:            parent.logger.With(logfields.Compiler(name)),
		parentCompilation: comp,
	}
	parent.Hooks.inheritTo(child.Hooks)
	parent.logger.Debug("spawned child compiler",
		logfields.Compiler(name), logfields.Compilation(comp.ID))
	return child
}

// RunAsChild executes the child's compile sequence inside the parent's build
// attempt. On success the child's produced assets merge into the parent
// session's asset mapping and the child compilation is appended to the
// parent's children.
func (c *Compiler) RunAsChild(ctx context.Context) (*Compilation, error) {
	parent := c.parentCompilation
	if parent == nil {
		return nil, errors.New(errors.CategoryInternal, errors.SeverityFatal, "RunAsChild called on a top-level compiler").
			WithContext("compiler", c.Name)
	}

	comp, err := c.compile(ctx)
	if err != nil {
		return nil, err
	}

	for name, asset := range comp.assetsSnapshot() {
		parent.setAsset(name, asset)
	}
	parent.appendChild(comp)
	return comp, nil
}

// ParentCompilation returns the owning parent session, or nil for a
// top-level compiler.
func (c *Compiler) ParentCompilation() *Compilation {
	return c.parentCompilation
}
