package compiler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/bundler/internal/hooks"
)

// Asset is one produced output: content plus emission bookkeeping. ExistsAt
// records the absolute path the content was last written to; an asset whose
// computed target equals ExistsAt is skipped on the next emission round.
type Asset struct {
	Source   []byte
	ExistsAt string
	Emitted  bool
}

// CompilationHooks are the session-scoped dispatch points driven between the
// make and afterCompile stages.
type CompilationHooks struct {
	// FinishModules resolves deferred and optional dependencies once the
	// make stage has contributed everything.
	FinishModules *hooks.Hook[*Compilation]

	// Seal turns the resolved dependency set into the final asset set.
	Seal      *hooks.Hook[*Compilation]
	AfterSeal *hooks.Hook[*Compilation]

	// NeedAdditionalPass lets a collaborator request a cooperative re-run
	// of the make/seal stages within the same top-level build.
	NeedAdditionalPass *hooks.BailHook[*Compilation, bool]
}

func newCompilationHooks() *CompilationHooks {
	return &CompilationHooks{
		FinishModules:      hooks.New[*Compilation]("finishModules", hooks.AsyncSeries, "compilation"),
		Seal:               hooks.New[*Compilation]("seal", hooks.AsyncSeries, "compilation"),
		AfterSeal:          hooks.New[*Compilation]("afterSeal", hooks.AsyncSeries, "compilation"),
		NeedAdditionalPass: hooks.NewBail[*Compilation, bool]("needAdditionalPass"),
	}
}

// Compilation is the mutable state of exactly one build attempt, from graph
// construction through sealing. It is created fresh for every attempt
// (including every additional pass and watch iteration), handed by reference
// into every hook invocation of that attempt, and not reused afterwards.
type Compilation struct {
	ID        string
	Name      string
	Compiler  *Compiler
	Params    *Params
	StartTime time.Time
	EndTime   time.Time

	Hooks *CompilationHooks

	// NeedAdditionalPass is set by the orchestrator after the session's
	// needAdditionalPass hook reports more work.
	NeedAdditionalPass bool

	mu            sync.Mutex
	assets        map[string]*Asset
	errs          []error
	children      []*Compilation
	childCounters map[string]int
}

func newCompilation(c *Compiler, params *Params) *Compilation {
	return &Compilation{
		ID:            uuid.NewString(),
		Name:          c.Name,
		Compiler:      c,
		Params:        params,
		StartTime:     time.Now(),
		Hooks:         newCompilationHooks(),
		assets:        make(map[string]*Asset),
		childCounters: make(map[string]int),
	}
}

// EmitAsset registers produced content under name. Re-emitting a name
// replaces the content but keeps the exists-at bookkeeping so unchanged
// targets are still skipped at write time.
func (comp *Compilation) EmitAsset(name string, source []byte) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	if existing, ok := comp.assets[name]; ok {
		existing.Source = source
		return
	}
	comp.assets[name] = &Asset{Source: source}
}

// EmitAssetString registers textual content, coercing it to bytes.
func (comp *Compilation) EmitAssetString(name, source string) {
	comp.EmitAsset(name, []byte(source))
}

// ReplaceAsset renames an asset while swapping its content, keeping the
// exists-at bookkeeping of whichever name already existed. Transform
// collaborators use this to substitute a rendered rendition for its source.
func (comp *Compilation) ReplaceAsset(oldName, newName string, source []byte) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	if a, ok := comp.assets[newName]; ok {
		a.Source = source
	} else {
		comp.assets[newName] = &Asset{Source: source}
	}
	if oldName != newName {
		delete(comp.assets, oldName)
	}
}

// Asset returns the named asset.
func (comp *Compilation) Asset(name string) (*Asset, bool) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	a, ok := comp.assets[name]
	return a, ok
}

// AssetNames returns all asset names in sorted order.
func (comp *Compilation) AssetNames() []string {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	names := make([]string, 0, len(comp.assets))
	for name := range comp.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (comp *Compilation) assetsSnapshot() map[string]*Asset {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	out := make(map[string]*Asset, len(comp.assets))
	for name, a := range comp.assets {
		out[name] = a
	}
	return out
}

func (comp *Compilation) setAsset(name string, a *Asset) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	comp.assets[name] = a
}

func (comp *Compilation) markEmitted(name, existsAt string, emitted bool) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	if a, ok := comp.assets[name]; ok {
		a.ExistsAt = existsAt
		a.Emitted = emitted
	}
}

// AddError records a session error. Session errors do not abort the attempt
// by themselves; they surface in the done report.
func (comp *Compilation) AddError(err error) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	comp.errs = append(comp.errs, err)
}

// Errors returns the accumulated session errors.
func (comp *Compilation) Errors() []error {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	out := make([]error, len(comp.errs))
	copy(out, comp.errs)
	return out
}

// HasErrors reports whether any session error was recorded.
func (comp *Compilation) HasErrors() bool {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	return len(comp.errs) > 0
}

// Children returns the compilations of completed child compilers.
func (comp *Compilation) Children() []*Compilation {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	out := make([]*Compilation, len(comp.children))
	copy(out, comp.children)
	return out
}

func (comp *Compilation) appendChild(child *Compilation) {
	comp.mu.Lock()
	defer comp.mu.Unlock()
	comp.children = append(comp.children, child)
}

// Finish resolves deferred dependencies via the finishModules hook.
func (comp *Compilation) Finish(ctx context.Context) error {
	return comp.Hooks.FinishModules.Call(ctx, comp)
}

// Seal runs the external sealing step that builds the final asset set.
func (comp *Compilation) Seal(ctx context.Context) error {
	if err := comp.Hooks.Seal.Call(ctx, comp); err != nil {
		return err
	}
	return comp.Hooks.AfterSeal.Call(ctx, comp)
}

// needsAdditionalPass consults the session's cooperative hook.
func (comp *Compilation) needsAdditionalPass(ctx context.Context) (bool, error) {
	need, decided, err := comp.Hooks.NeedAdditionalPass.Call(ctx, comp)
	if err != nil {
		return false, err
	}
	return decided && need, nil
}
