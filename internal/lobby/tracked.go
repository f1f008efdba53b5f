package lobby

// tracked wraps a value with a dirty bit so the actor can publish snapshots
// at most once per event, and only when something actually changed.
type tracked[T any] struct {
	value T
	dirty bool
}

func newTracked[T any](v T) tracked[T] {
	return tracked[T]{value: v}
}

// Read returns the value without touching the dirty bit.
func (t *tracked[T]) Read() T { return t.value }

// Write returns a mutable pointer and marks the value dirty.
func (t *tracked[T]) Write() *T {
	t.dirty = true
	return &t.value
}

// Dirty reports whether the value changed since the last reset.
func (t *tracked[T]) Dirty() bool { return t.dirty }

// ResetIfDirty returns the value and clears the flag iff it was set.
func (t *tracked[T]) ResetIfDirty() (T, bool) {
	if !t.dirty {
		var zero T
		return zero, false
	}
	t.dirty = false
	return t.value, true
}
