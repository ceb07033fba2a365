package compiler

import (
	"time"

	"git.home.luguber.info/inful/bundler/internal/hooks"
)

// InvalidEvent is passed to the invalid hook when a watch session is
// invalidated. Path is empty for an explicit Invalidate call.
type InvalidEvent struct {
	Path       string
	ChangeTime time.Time
}

// CompilerHooks are the compiler's lifecycle dispatch points, in stage
// order. Collaborators tap them before a build starts; the tap lists are
// sealed while a build is in flight.
type CompilerHooks struct {
	BeforeRun       *hooks.Hook[*Compiler]
	Run             *hooks.Hook[*Compiler]
	WatchRun        *hooks.Hook[*Compiler]
	BeforeCompile   *hooks.Hook[*Params]
	Compile         *hooks.Hook[*Params]
	ThisCompilation *hooks.Hook[*Compilation]
	Compilation     *hooks.Hook[*Compilation]
	Make            *hooks.Hook[*Compilation]
	AfterCompile    *hooks.Hook[*Compilation]
	ShouldEmit      *hooks.BailHook[*Compilation, bool]
	Emit            *hooks.Hook[*Compilation]
	AfterEmit       *hooks.Hook[*Compilation]
	AdditionalPass  *hooks.Hook[*Compiler]
	Done            *hooks.Hook[*Stats]
	Failed          *hooks.Hook[error]
	Invalid         *hooks.Hook[*InvalidEvent]
	WatchClose      *hooks.Hook[*Compiler]
}

func newCompilerHooks() *CompilerHooks {
	return &CompilerHooks{
		BeforeRun:       hooks.New[*Compiler]("beforeRun", hooks.AsyncSeries, "compiler"),
		Run:             hooks.New[*Compiler]("run", hooks.AsyncSeries, "compiler"),
		WatchRun:        hooks.New[*Compiler]("watchRun", hooks.AsyncSeries, "compiler"),
		BeforeCompile:   hooks.New[*Params]("beforeCompile", hooks.AsyncSeries, "params"),
		Compile:         hooks.New[*Params]("compile", hooks.Sync, "params"),
		ThisCompilation: hooks.New[*Compilation]("thisCompilation", hooks.Sync, "compilation"),
		Compilation:     hooks.New[*Compilation]("compilation", hooks.Sync, "compilation"),
		Make:            hooks.New[*Compilation]("make", hooks.AsyncParallel, "compilation"),
		AfterCompile:    hooks.New[*Compilation]("afterCompile", hooks.AsyncSeries, "compilation"),
		ShouldEmit:      hooks.NewBail[*Compilation, bool]("shouldEmit", "compilation"),
		Emit:            hooks.New[*Compilation]("emit", hooks.AsyncSeries, "compilation"),
		AfterEmit:       hooks.New[*Compilation]("afterEmit", hooks.AsyncSeries, "compilation"),
		AdditionalPass:  hooks.New[*Compiler]("additionalPass", hooks.AsyncSeries, "compiler"),
		Done:            hooks.New[*Stats]("done", hooks.AsyncSeries, "stats"),
		Failed:          hooks.New[error]("failed", hooks.Sync, "error"),
		Invalid:         hooks.New[*InvalidEvent]("invalid", hooks.Sync, "event"),
		WatchClose:      hooks.New[*Compiler]("watchClose", hooks.Sync, "compiler"),
	}
}

type sealer interface {
	Seal()
	Unseal()
}

func (h *CompilerHooks) all() []sealer {
	return []sealer{
		h.BeforeRun, h.Run, h.WatchRun, h.BeforeCompile, h.Compile,
		h.ThisCompilation, h.Compilation, h.Make, h.AfterCompile,
		h.ShouldEmit, h.Emit, h.AfterEmit, h.AdditionalPass, h.Done,
		h.Failed, h.Invalid, h.WatchClose,
	}
}

func (h *CompilerHooks) seal() {
	for _, s := range h.all() {
		s.Seal()
	}
}

func (h *CompilerHooks) unseal() {
	for _, s := range h.all() {
		s.Unseal()
	}
}

// inheritTo copies tap registrations onto a spawned child compiler's hooks.
// make, compile, emit, afterEmit, invalid, done, and thisCompilation start
// empty: the child's own collaborators control those exclusively.
func (h *CompilerHooks) inheritTo(child *CompilerHooks) {
	h.BeforeRun.InheritTo(child.BeforeRun)
	h.Run.InheritTo(child.Run)
	h.WatchRun.InheritTo(child.WatchRun)
	h.BeforeCompile.InheritTo(child.BeforeCompile)
	h.Compilation.InheritTo(child.Compilation)
	h.AfterCompile.InheritTo(child.AfterCompile)
	h.ShouldEmit.InheritTo(child.ShouldEmit)
	h.AdditionalPass.InheritTo(child.AdditionalPass)
	h.Failed.InheritTo(child.Failed)
	h.WatchClose.InheritTo(child.WatchClose)
}
