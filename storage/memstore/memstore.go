// Package memstore implements an in-memory storage.LeafStore. It keeps the
// original entry alongside its leaf hash in two parallel slices, the way
// pymerkle's InmemoryTree keeps Leaf nodes that carry both data and digest.
// Intended for tests, debugging and small trees; every append copies the
// slices' backing array as needed under a single mutex.
package memstore

import (
	"context"
	"sync"

	"github.com/sakuralog/merkle/hash"
	"github.com/sakuralog/merkle/storage"
)

// Store is a non-persistent LeafStore safe for concurrent use.
type Store struct {
	hasher *hash.Hasher

	mu      sync.RWMutex
	entries [][]byte
	hashes  [][]byte
}

// New returns an empty Store that hashes appended entries with h.
func New(h *hash.Hasher) *Store {
	return &Store{hasher: h}
}

// Append implements storage.LeafStore.
func (s *Store) Append(_ context.Context, entry []byte) (uint64, error) {
	digest := s.hasher.HashLeaf(entry)

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(entry))
	copy(cp, entry)
	s.entries = append(s.entries, cp)
	s.hashes = append(s.hashes, digest)

	return uint64(len(s.hashes)), nil
}

// Leaf implements storage.LeafStore.
func (s *Store) Leaf(_ context.Context, index uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 1 || index > uint64(len(s.hashes)) {
		return nil, &storage.OutOfRangeError{Offset: index, Width: 1, Size: uint64(len(s.hashes))}
	}
	return s.hashes[index-1], nil
}

// LeafRange implements storage.LeafStore.
func (s *Store) LeafRange(_ context.Context, offset, width uint64) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := uint64(len(s.hashes))
	if width == 0 {
		return nil, nil
	}
	if offset+width > size {
		return nil, &storage.OutOfRangeError{Offset: offset, Width: width, Size: size}
	}

	out := make([][]byte, width)
	copy(out, s.hashes[offset:offset+width])
	return out, nil
}

// Size implements storage.LeafStore.
func (s *Store) Size(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.hashes)), nil
}

// Entry returns the raw, unhashed data stored at the given 1-based index.
// Not part of the LeafStore contract; a convenience for callers that need
// to recover what they appended.
func (s *Store) Entry(_ context.Context, index uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 1 || index > uint64(len(s.entries)) {
		return nil, &storage.OutOfRangeError{Offset: index, Width: 1, Size: uint64(len(s.entries))}
	}
	return s.entries[index-1], nil
}
