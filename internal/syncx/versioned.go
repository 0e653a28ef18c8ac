// Package syncx provides extended synchronization primitives
package syncx

import (
	"context"
	"sync"
)

// Versioned holds a value that readers can load or wait on. Every Store
// bumps the version; the initial value is version 1.
type Versioned[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{} // closed and replaced on Store
}

// NewVersioned creates a versioned value.
func NewVersioned[T any](initial T) *Versioned[T] {
	return &Versioned[T]{value: initial, version: 1, changed: make(chan struct{})}
}

// Get returns a copy of the value (T should be value type or immutable).
func (v *Versioned[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Load returns the value with its version.
func (v *Versioned[T]) Load() (T, uint64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value, v.version
}

// Store replaces the value, wakes waiters and returns the new version.
func (v *Versioned[T]) Store(x T) uint64 {
	v.mu.Lock()
	v.value = x
	v.version++
	ver := v.version
	ch := v.changed
	v.changed = make(chan struct{})
	v.mu.Unlock()

	close(ch)
	return ver
}

// Wait returns as soon as the version is greater than after. When ctx ends
// first it returns the current value and ctx's error.
func (v *Versioned[T]) Wait(ctx context.Context, after uint64) (T, uint64, error) {
	for {
		v.mu.RLock()
		val, ver, ch := v.value, v.version, v.changed
		v.mu.RUnlock()

		if ver > after {
			return val, ver, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return val, ver, ctx.Err()
		}
	}
}
