// Package rows provides read-only, indexable row collections.
package rows

// Collection is an ordered, immutable sequence of rows addressable by offset
// in [0, Len()). Implementations must be safe for concurrent reads.
type Collection[T any] interface {
	Len() int
	At(i int) T
}

// Slice adapts a Go slice to Collection. The slice must not be modified while
// the collection is in use.
type Slice[T any] []T

// Len returns the number of rows.
func (s Slice[T]) Len() int { return len(s) }

// At returns the row at offset i.
func (s Slice[T]) At(i int) T { return s[i] }
