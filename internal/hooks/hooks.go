// Package hooks provides named event-dispatch points for the build pipeline.
// A Hook holds an ordered list of taps (registered handlers) and invokes them
// according to a call discipline fixed at construction time. Pluggable
// objects own their hooks as plain struct fields; there is no shared base
// type and no reflection-based dispatch.
package hooks

import (
	"context"
	"fmt"
	"sync"
)

// Discipline selects the invocation algorithm for a Hook.
type Discipline int

const (
	// Sync invokes every tap in registration order without suspension.
	Sync Discipline = iota

	// AsyncSeries invokes taps strictly one after another; each must
	// complete before the next starts. The first failure short-circuits
	// the remaining taps.
	AsyncSeries

	// AsyncParallel starts all taps without waiting for one another and
	// completes once every tap has finished. Started taps are never
	// cancelled; the first failure by completion order becomes the
	// hook's failure.
	AsyncParallel
)

// String returns the discipline name for diagnostics.
func (d Discipline) String() string {
	switch d {
	case Sync:
		return "sync"
	case AsyncSeries:
		return "async-series"
	case AsyncParallel:
		return "async-parallel"
	default:
		return fmt.Sprintf("discipline(%d)", int(d))
	}
}

// TapFn is a handler registered on a Hook.
type TapFn[T any] func(ctx context.Context, v T) error

type tap[T any] struct {
	name string
	fn   TapFn[T]
}

// Hook is a named dispatch point carrying a value of type T to its taps.
// Taps may only be registered while the hook is unsealed; the owning
// orchestrator seals its hooks for the duration of a build so that tap
// ordering stays deterministic within one build attempt.
type Hook[T any] struct {
	name       string
	discipline Discipline
	argNames   []string

	mu     sync.Mutex
	sealed bool
	taps   []tap[T]
}

// New creates a hook with the given name and discipline. argNames describe
// the declared argument shape and are used in diagnostics only.
func New[T any](name string, discipline Discipline, argNames ...string) *Hook[T] {
	return &Hook[T]{name: name, discipline: discipline, argNames: argNames}
}

// Name returns the hook's name.
func (h *Hook[T]) Name() string { return h.name }

// Discipline returns the hook's call discipline.
func (h *Hook[T]) Discipline() Discipline { return h.discipline }

// ArgNames returns the declared argument shape.
func (h *Hook[T]) ArgNames() []string { return h.argNames }

// Tap registers a handler under the given name. Registration order is the
// dispatch tie-break. Tapping a sealed hook (a build is in flight) is an
// error; register taps before starting the build or wait for it to finish.
func (h *Hook[T]) Tap(name string, fn TapFn[T]) error {
	if fn == nil {
		return fmt.Errorf("hook %s: nil tap %q", h.name, name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return fmt.Errorf("hook %s(%v): cannot tap %q while a build is running", h.name, h.argNames, name)
	}
	h.taps = append(h.taps, tap[T]{name: name, fn: fn})
	return nil
}

// MustTap registers a handler and panics on error. Intended for plugin
// setup paths that run before any build starts.
func (h *Hook[T]) MustTap(name string, fn TapFn[T]) {
	if err := h.Tap(name, fn); err != nil {
		panic(err)
	}
}

// TapCount reports the number of registered taps.
func (h *Hook[T]) TapCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.taps)
}

// Seal freezes the tap list until Unseal is called.
func (h *Hook[T]) Seal() {
	h.mu.Lock()
	h.sealed = true
	h.mu.Unlock()
}

// Unseal reopens the hook for tap registration.
func (h *Hook[T]) Unseal() {
	h.mu.Lock()
	h.sealed = false
	h.mu.Unlock()
}

// InheritTo copies this hook's taps onto dst in registration order.
// Used when a child compiler inherits its parent's tap registrations.
func (h *Hook[T]) InheritTo(dst *Hook[T]) {
	h.mu.Lock()
	taps := make([]tap[T], len(h.taps))
	copy(taps, h.taps)
	h.mu.Unlock()

	dst.mu.Lock()
	dst.taps = append(dst.taps, taps...)
	dst.mu.Unlock()
}

func (h *Hook[T]) snapshot() []tap[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	taps := make([]tap[T], len(h.taps))
	copy(taps, h.taps)
	return taps
}

// Call dispatches v to the registered taps under the hook's discipline.
// A hook with no taps succeeds immediately.
func (h *Hook[T]) Call(ctx context.Context, v T) error {
	taps := h.snapshot()
	if len(taps) == 0 {
		return nil
	}
	switch h.discipline {
	case AsyncParallel:
		return h.callParallel(ctx, v, taps)
	default:
		// Sync and AsyncSeries share the sequential short-circuit
		// algorithm; a sync tap simply must not block.
		return h.callSeries(ctx, v, taps)
	}
}

func (h *Hook[T]) callSeries(ctx context.Context, v T, taps []tap[T]) error {
	for _, t := range taps {
		if err := t.fn(ctx, v); err != nil {
			return fmt.Errorf("hook %s: tap %q: %w", h.name, t.name, err)
		}
	}
	return nil
}

func (h *Hook[T]) callParallel(ctx context.Context, v T, taps []tap[T]) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, t := range taps {
		wg.Add(1)
		go func(t tap[T]) {
			defer wg.Done()
			// No cancellation: a failure elsewhere must not stop a
			// tap that has already started.
			if err := t.fn(ctx, v); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("hook %s: tap %q: %w", h.name, t.name, err)
				}
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()
	return firstErr
}
