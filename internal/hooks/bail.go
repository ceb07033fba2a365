package hooks

import (
	"context"
	"fmt"
	"sync"
)

// BailFn is a handler on a BailHook. It returns its result together with a
// decided flag; an undecided tap passes control to the next one.
type BailFn[T, R any] func(ctx context.Context, v T) (result R, decided bool, err error)

type bailTap[T, R any] struct {
	name string
	fn   BailFn[T, R]
}

// BailHook dispatches with sync-bail semantics: taps run in registration
// order and dispatch stops at the first tap that returns a decided result,
// which becomes the hook's result. Later taps are never invoked. Used for
// veto-style decisions such as whether a build's output should be emitted.
type BailHook[T, R any] struct {
	name     string
	argNames []string

	mu     sync.Mutex
	sealed bool
	taps   []bailTap[T, R]
}

// NewBail creates a sync-bail hook.
func NewBail[T, R any](name string, argNames ...string) *BailHook[T, R] {
	return &BailHook[T, R]{name: name, argNames: argNames}
}

// Name returns the hook's name.
func (h *BailHook[T, R]) Name() string { return h.name }

// ArgNames returns the declared argument shape.
func (h *BailHook[T, R]) ArgNames() []string { return h.argNames }

// Tap registers a handler. Same sealing contract as Hook.Tap.
func (h *BailHook[T, R]) Tap(name string, fn BailFn[T, R]) error {
	if fn == nil {
		return fmt.Errorf("hook %s: nil tap %q", h.name, name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return fmt.Errorf("hook %s(%v): cannot tap %q while a build is running", h.name, h.argNames, name)
	}
	h.taps = append(h.taps, bailTap[T, R]{name: name, fn: fn})
	return nil
}

// MustTap registers a handler and panics on error.
func (h *BailHook[T, R]) MustTap(name string, fn BailFn[T, R]) {
	if err := h.Tap(name, fn); err != nil {
		panic(err)
	}
}

// TapCount reports the number of registered taps.
func (h *BailHook[T, R]) TapCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.taps)
}

// Seal freezes the tap list until Unseal is called.
func (h *BailHook[T, R]) Seal() {
	h.mu.Lock()
	h.sealed = true
	h.mu.Unlock()
}

// Unseal reopens the hook for tap registration.
func (h *BailHook[T, R]) Unseal() {
	h.mu.Lock()
	h.sealed = false
	h.mu.Unlock()
}

// InheritTo copies this hook's taps onto dst in registration order.
func (h *BailHook[T, R]) InheritTo(dst *BailHook[T, R]) {
	h.mu.Lock()
	taps := make([]bailTap[T, R], len(h.taps))
	copy(taps, h.taps)
	h.mu.Unlock()

	dst.mu.Lock()
	dst.taps = append(dst.taps, taps...)
	dst.mu.Unlock()
}

// Call invokes taps in order until one decides. The zero R with decided
// false means every tap passed; a tap error aborts dispatch immediately.
func (h *BailHook[T, R]) Call(ctx context.Context, v T) (R, bool, error) {
	h.mu.Lock()
	taps := make([]bailTap[T, R], len(h.taps))
	copy(taps, h.taps)
	h.mu.Unlock()

	var zero R
	for _, t := range taps {
		r, decided, err := t.fn(ctx, v)
		if err != nil {
			return zero, false, fmt.Errorf("hook %s: tap %q: %w", h.name, t.name, err)
		}
		if decided {
			return r, true, nil
		}
	}
	return zero, false, nil
}
