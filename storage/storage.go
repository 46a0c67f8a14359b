// Package storage defines the append-only leaf log that the range engine,
// the inclusion prover and the consistency prover consume. The core never
// depends on a concrete backend: memstore and sqlstore are collaborators
// that satisfy LeafStore, not part of the core's dependency surface.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned by Leaf and LeafRange when the requested index
// or range falls outside [1, size].
var ErrOutOfRange = errors.New("storage: index out of range")

// LeafStore is the append-only leaf log any backend must implement. All
// four operations must linearize with respect to concurrent callers:
// Append assigns monotonically increasing 1-based indices, and Leaf /
// LeafRange observe a consistent prefix of them (I1).
type LeafStore interface {
	// Append hashes entry with the tree's leaf hasher and persists the
	// pair, returning the 1-based index assigned to it.
	Append(ctx context.Context, entry []byte) (uint64, error)

	// Leaf returns the hash stored at the given 1-based index. Returns
	// ErrOutOfRange if index is not in [1, Size()].
	Leaf(ctx context.Context, index uint64) ([]byte, error)

	// LeafRange returns, in order, width leaf hashes starting at the
	// 0-based offset. Returns ErrOutOfRange if [offset, offset+width)
	// is not contained in [0, Size()).
	LeafRange(ctx context.Context, offset, width uint64) ([][]byte, error)

	// Size returns the current number of leaves.
	Size(ctx context.Context) (uint64, error)
}

// OutOfRangeError wraps ErrOutOfRange with the offending range, for callers
// that want the detail without parsing the error string.
type OutOfRangeError struct {
	Offset, Width, Size uint64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("storage: range [%d, %d) out of bounds for size %d", e.Offset, e.Offset+e.Width, e.Size)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
