// Package optional holds a value that may not have been set yet.
package optional

// Optional wraps a value of type T together with whether it was set.
// The zero value is empty.
type Optional[T any] struct {
	value T
	set   bool
}

// Of returns an Optional holding v.
func Of[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Set stores v.
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.set = true
}

// HasValue reports whether a value was stored.
func (o Optional[T]) HasValue() bool {
	return o.set
}

// Get returns the stored value, or the zero value of T when empty.
func (o Optional[T]) Get() T {
	return o.value
}

// Lookup returns the stored value and whether it was set.
func (o Optional[T]) Lookup() (T, bool) {
	return o.value, o.set
}
