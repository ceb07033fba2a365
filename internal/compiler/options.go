package compiler

// Options configures one Compiler instance. A child compiler receives a copy
// of its parent's options with the output section layered over.
type Options struct {
	// Name identifies the compiler in logs, records, and reports.
	Name string

	// Context is the base directory entry requests and child-compiler
	// names are resolved against.
	Context string

	// Entries are the initial build requests handed to the make-stage
	// collaborators.
	Entries []string

	// Output controls where assets are written.
	Output OutputOptions

	// RecordsInputPath is the file records are read from before each
	// top-level build. Empty means start from an empty store.
	RecordsInputPath string

	// RecordsOutputPath is the file records are persisted to after a
	// successful build. Empty disables persistence.
	RecordsOutputPath string

	// Resolver is handed unchanged to the module-factory collaborators
	// and shared with spawned child compilers.
	Resolver ResolverOptions

	// MaxAdditionalPasses caps the cooperative additional-pass loop.
	// Zero preserves the unbounded default; exceeding a nonzero cap
	// fails the build.
	MaxAdditionalPasses int
}

// OutputOptions controls asset emission.
type OutputOptions struct {
	// Dir is the directory emitted assets are joined onto.
	Dir string
}

// ResolverOptions is opaque to the orchestrator; it only carries these
// settings to the resolution collaborators.
type ResolverOptions struct {
	Extensions []string
	Aliases    map[string]string
}

// mergeOutput layers an override onto base; non-zero override fields win.
func mergeOutput(base, override OutputOptions) OutputOptions {
	out := base
	if override.Dir != "" {
		out.Dir = override.Dir
	}
	return out
}

// Params are the build parameters passed through the beforeCompile and
// compile hooks; collaborators may swap the resolver settings a compilation
// is constructed with.
type Params struct {
	Compiler *Compiler
	Resolver ResolverOptions
}
