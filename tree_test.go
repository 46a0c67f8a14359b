// Copyright 2022 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merkle

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sakuralog/merkle/hash"
	"github.com/sakuralog/merkle/proof"
	"github.com/sakuralog/merkle/storage/memstore"
)

func newTestTree(t *testing.T, cfg Config) (*Tree, *memstore.Store) {
	t.Helper()
	if cfg.Algorithm == "" {
		cfg.Algorithm = "sha256"
		cfg.Security = true
	}
	h, err := hash.New(cfg.Algorithm, cfg.Security)
	if err != nil {
		t.Fatalf("hash.New: %v", err)
	}
	store := memstore.New(h)
	tree, err := New(store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tree, store
}

func appendEntries(t *testing.T, tree *Tree, entries ...string) {
	t.Helper()
	for _, e := range entries {
		if _, err := tree.Append(context.Background(), []byte(e)); err != nil {
			t.Fatalf("Append(%q): %v", e, err)
		}
	}
}

// Boundary scenario: an empty tree's state is HashEmpty.
func TestStateEmptyTree(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	root, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	h, _ := hash.New("sha256", true)
	if diff := cmp.Diff(h.HashEmpty(), root); diff != "" {
		t.Errorf("empty state mismatch (-want +got):\n%s", diff)
	}
}

// Boundary scenario: a single-entry tree's state is HashLeaf("a").
func TestStateSingleEntry(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a")

	root, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	h, _ := hash.New("sha256", true)
	if diff := cmp.Diff(h.HashLeaf([]byte("a")), root); diff != "" {
		t.Errorf("single-entry state mismatch (-want +got):\n%s", diff)
	}
}

// Boundary scenario: a two-entry tree's state is sha256(0x01 || leaf("a")
// || leaf("b")).
func TestStateTwoEntries(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b")

	root, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	h, _ := hash.New("sha256", true)
	want := h.HashPair(h.HashLeaf([]byte("a")), h.HashLeaf([]byte("b")))
	if diff := cmp.Diff(want, root); diff != "" {
		t.Errorf("two-entry state mismatch (-want +got):\n%s", diff)
	}
}

// Boundary scenario: a three-entry tree's state folds as
// hash_pair(hash_pair(leaf(a),leaf(b)), leaf(c)).
func TestStateThreeEntries(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b", "c")

	root, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	h, _ := hash.New("sha256", true)
	want := h.HashPair(h.HashPair(h.HashLeaf([]byte("a")), h.HashLeaf([]byte("b"))), h.HashLeaf([]byte("c")))
	if diff := cmp.Diff(want, root); diff != "" {
		t.Errorf("three-entry state mismatch (-want +got):\n%s", diff)
	}
}

// Boundary scenario: an inclusion proof for the 1-based index 1 (leaf "a")
// in a three-leaf tree verifies against the three-entry root.
func TestProveInclusionThreeLeafTree(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b", "c")

	root, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	p, err := tree.ProveInclusion(ctx, 1, nil)
	if err != nil {
		t.Fatalf("ProveInclusion: %v", err)
	}

	h, _ := hash.New("sha256", true)
	if err := proof.VerifyInclusion(h, []byte("a"), p, root); err != nil {
		t.Errorf("VerifyInclusion: %v", err)
	}
}

// Boundary scenario: a consistency proof from size 3 to size 5 over
// "a".."e" verifies both the old and new roots.
func TestProveConsistencyThreeToFive(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b", "c", "d", "e")

	size3 := uint64(3)
	oldRoot, err := tree.State(ctx, &size3)
	if err != nil {
		t.Fatalf("State(3): %v", err)
	}
	newRoot, err := tree.State(ctx, nil)
	if err != nil {
		t.Fatalf("State: %v", err)
	}

	p, err := tree.ProveConsistency(ctx, 3, nil)
	if err != nil {
		t.Fatalf("ProveConsistency: %v", err)
	}

	wantRule := []uint8{1, 1, 0, 0}
	wantSubset := []uint8{0, 1, 1, 0}
	if diff := cmp.Diff(wantRule, p.Rule); diff != "" {
		t.Errorf("rule mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantSubset, p.Subset); diff != "" {
		t.Errorf("subset mismatch (-want +got):\n%s", diff)
	}

	h, _ := hash.New("sha256", true)
	if err := proof.VerifyConsistency(h, p, oldRoot, newRoot); err != nil {
		t.Errorf("VerifyConsistency: %v", err)
	}
}

func TestProveInclusionOutOfRange(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b", "c")

	if _, err := tree.ProveInclusion(ctx, 0, nil); err == nil {
		t.Error("ProveInclusion(0): want error, got nil")
	}
	if _, err := tree.ProveInclusion(ctx, 4, nil); err == nil {
		t.Error("ProveInclusion(4): want error, got nil")
	}
	big := uint64(10)
	if _, err := tree.ProveInclusion(ctx, 1, &big); err == nil {
		t.Error("ProveInclusion with size beyond current size: want error, got nil")
	}
}

func TestProveConsistencyOutOfRange(t *testing.T) {
	tree, _ := newTestTree(t, Config{})
	ctx := context.Background()
	appendEntries(t, tree, "a", "b", "c")

	big := uint64(10)
	if _, err := tree.ProveConsistency(ctx, 1, &big); err == nil {
		t.Error("ProveConsistency with size2 beyond current size: want error, got nil")
	}
	if _, err := tree.ProveConsistency(ctx, 5, nil); err == nil {
		t.Error("ProveConsistency with size1 beyond current size: want error, got nil")
	}
}

// P8: the optimized and naive code paths must agree on every state root,
// inclusion path and consistency path for every size and sub-range up to a
// modest bound.
func TestOptimizedAgreesWithNaive(t *testing.T) {
	const maxSize = 19
	entries := make([]string, maxSize)
	for i := range entries {
		entries[i] = string(rune('a' + i))
	}

	opt, _ := newTestTree(t, Config{})
	naive, _ := newTestTree(t, Config{DisableOptimizations: true})
	ctx := context.Background()

	for _, e := range entries {
		appendEntries(t, opt, e)
		appendEntries(t, naive, e)
	}

	for size := uint64(0); size <= maxSize; size++ {
		size := size
		wantRoot, err := naive.State(ctx, &size)
		if err != nil {
			t.Fatalf("naive.State(%d): %v", size, err)
		}
		gotRoot, err := opt.State(ctx, &size)
		if err != nil {
			t.Fatalf("opt.State(%d): %v", size, err)
		}
		if diff := cmp.Diff(wantRoot, gotRoot); diff != "" {
			t.Errorf("State(%d) mismatch (-want +got):\n%s", size, diff)
		}

		for index := uint64(1); index <= size; index++ {
			wantP, err := naive.ProveInclusion(ctx, index, &size)
			if err != nil {
				t.Fatalf("naive.ProveInclusion(%d,%d): %v", index, size, err)
			}
			gotP, err := opt.ProveInclusion(ctx, index, &size)
			if err != nil {
				t.Fatalf("opt.ProveInclusion(%d,%d): %v", index, size, err)
			}
			if diff := cmp.Diff(wantP, gotP); diff != "" {
				t.Errorf("ProveInclusion(%d,%d) mismatch (-want +got):\n%s", index, size, diff)
			}
		}

		for size1 := uint64(0); size1 <= size; size1++ {
			size1 := size1
			wantP, err := naive.ProveConsistency(ctx, size1, &size)
			if err != nil {
				t.Fatalf("naive.ProveConsistency(%d,%d): %v", size1, size, err)
			}
			gotP, err := opt.ProveConsistency(ctx, size1, &size)
			if err != nil {
				t.Fatalf("opt.ProveConsistency(%d,%d): %v", size1, size, err)
			}
			if diff := cmp.Diff(wantP, gotP); diff != "" {
				t.Errorf("ProveConsistency(%d,%d) mismatch (-want +got):\n%s", size1, size, diff)
			}
		}
	}
}

func TestCacheInfoAndClear(t *testing.T) {
	tree, _ := newTestTree(t, Config{Threshold: 2})
	ctx := context.Background()
	entries := make([]string, 16)
	for i := range entries {
		entries[i] = string(rune('a' + i))
	}
	appendEntries(t, tree, entries...)

	if _, err := tree.State(ctx, nil); err != nil {
		t.Fatalf("State: %v", err)
	}
	stats := tree.CacheInfo()
	if stats.Misses == 0 {
		t.Error("CacheInfo().Misses = 0, want > 0 after computing subroots")
	}

	tree.CacheClear()
	stats = tree.CacheInfo()
	if stats.SizeBytes != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("CacheInfo() after Clear = %+v, want all zero", stats)
	}
}

func TestCacheDisabled(t *testing.T) {
	tree, _ := newTestTree(t, Config{DisableCache: true})
	stats := tree.CacheInfo()
	if diff := cmp.Diff(stats, tree.CacheInfo()); diff != "" {
		t.Errorf("CacheInfo() not stable: %s", diff)
	}
	if stats.CapacityBytes != 0 {
		t.Errorf("CacheInfo().CapacityBytes = %d, want 0 when caching disabled", stats.CapacityBytes)
	}
	// CacheClear must be a harmless no-op.
	tree.CacheClear()
}

// FuzzInclusionProofAndVerify checks that every inclusion proof the tree
// produces verifies against the state it was proven against, for every
// (index, size) pair over a bounded range of tree sizes.
func FuzzInclusionProofAndVerify(f *testing.F) {
	for size := 0; size <= 8; size++ {
		for index := 1; index <= size; index++ {
			f.Add(uint64(index), uint64(size))
		}
	}
	f.Fuzz(func(t *testing.T, index, size uint64) {
		if size >= math.MaxUint16 {
			return
		}
		if index < 1 || index > size {
			return
		}
		tree, _ := newTestTree(t, Config{})
		ctx := context.Background()
		for i := uint64(0); i < size; i++ {
			appendEntries(t, tree, string(rune('a'+(i%26))))
		}
		root, err := tree.State(ctx, nil)
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		p, err := tree.ProveInclusion(ctx, index, nil)
		if err != nil {
			t.Fatalf("ProveInclusion(%d,%d): %v", index, size, err)
		}
		h, _ := hash.New("sha256", true)
		leaf := []byte(string(rune('a' + ((index - 1) % 26))))
		if err := proof.VerifyInclusion(h, leaf, p, root); err != nil {
			t.Errorf("VerifyInclusion(%d,%d): %v", index, size, err)
		}
	})
}

// FuzzConsistencyProofAndVerify checks that every consistency proof the
// tree produces verifies against both endpoints' states, for every
// (size1, size2) pair over a bounded range of tree sizes.
func FuzzConsistencyProofAndVerify(f *testing.F) {
	for size := 0; size <= 8; size++ {
		for size1 := 0; size1 <= size; size1++ {
			f.Add(uint64(size1), uint64(size))
		}
	}
	f.Fuzz(func(t *testing.T, size1, size2 uint64) {
		if size2 >= math.MaxUint16 {
			return
		}
		if size1 > size2 {
			return
		}
		tree, _ := newTestTree(t, Config{})
		ctx := context.Background()
		for i := uint64(0); i < size2; i++ {
			appendEntries(t, tree, string(rune('a'+(i%26))))
		}
		oldRoot, err := tree.State(ctx, &size1)
		if err != nil {
			t.Fatalf("State(%d): %v", size1, err)
		}
		newRoot, err := tree.State(ctx, &size2)
		if err != nil {
			t.Fatalf("State(%d): %v", size2, err)
		}
		p, err := tree.ProveConsistency(ctx, size1, &size2)
		if err != nil {
			t.Fatalf("ProveConsistency(%d,%d): %v", size1, size2, err)
		}
		h, _ := hash.New("sha256", true)
		if err := proof.VerifyConsistency(h, p, oldRoot, newRoot); err != nil {
			t.Errorf("VerifyConsistency(%d,%d): %v", size1, size2, err)
		}
	})
}
