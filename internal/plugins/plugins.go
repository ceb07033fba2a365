// Package plugins defines the tap-based extension point for the bundler.
// A plugin installs its behavior by tapping compiler and compilation hooks.
package plugins

import (
	"fmt"

	"git.home.luguber.info/inful/bundler/internal/compiler"
)

// Plugin extends a compiler by tapping its hooks during Apply.
type Plugin interface {
	// Name is the unique plugin identifier, used as the tap name.
	Name() string

	// Apply installs the plugin's taps. It is called once, before the first
	// build, while the compiler's hooks are still open for tapping.
	Apply(c *compiler.Compiler) error
}

// ApplyAll applies plugins in order, stopping at the first failure.
func ApplyAll(c *compiler.Compiler, plugins ...Plugin) error {
	for _, p := range plugins {
		if err := p.Apply(c); err != nil {
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}
