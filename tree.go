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

// Package merkle ties a LeafStore, a Hasher and an optional subroot cache
// together into an append-only log that can compute its own root and
// produce inclusion and consistency proofs against it.
package merkle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sakuralog/merkle/hash"
	"github.com/sakuralog/merkle/lrucache"
	"github.com/sakuralog/merkle/proof"
	"github.com/sakuralog/merkle/storage"
)

// defaultThreshold and defaultCapacity match the values the original
// implementation ships as library defaults.
const (
	defaultThreshold uint64 = 128
	defaultCapacity  int64  = 1 << 30
)

// Config controls how a Tree hashes, caches and whether it takes its
// optimized or naive code paths.
type Config struct {
	// Algorithm and Security select the leaf/interior hash function; see
	// hash.New.
	Algorithm string
	Security  bool

	// Threshold is the minimum perfect-subtree width eligible for the
	// subroot cache. Zero selects the default of 128.
	Threshold uint64

	// Capacity is the subroot cache's byte budget. Zero selects the
	// default of 1 GiB. Ignored when DisableCache is set.
	Capacity int64

	// DisableOptimizations forces the naive recursive forms of the range,
	// inclusion and consistency algorithms, bypassing the subroot cache
	// entirely. Intended for cross-checking and small trees, not
	// production use.
	DisableOptimizations bool

	// DisableCache constructs the tree without a subroot cache while
	// still using the optimized iterative algorithms.
	DisableCache bool

	// Logger receives construction and cache-eviction events. A nil
	// Logger disables logging.
	Logger *zap.SugaredLogger
}

// Tree is an append-only Merkle log backed by a LeafStore.
type Tree struct {
	store  storage.LeafStore
	hasher *hash.Hasher
	cache  *lrucache.Cache
	cfg    Config
	log    *zap.SugaredLogger
}

// New constructs a Tree over store. store may already hold leaves (e.g.
// reopening a persisted log); New never resets it.
func New(store storage.LeafStore, cfg Config) (*Tree, error) {
	hasher, err := hash.New(cfg.Algorithm, cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("merkle: %w", err)
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = defaultCapacity
	}

	t := &Tree{
		store:  store,
		hasher: hasher,
		cfg:    cfg,
		log:    cfg.Logger,
	}
	if !cfg.DisableCache && !cfg.DisableOptimizations {
		t.cache = lrucache.New(cfg.Capacity, cfg.Logger)
	}

	if t.log != nil {
		t.log.Infow("merkle tree opened",
			"algorithm", cfg.Algorithm, "security", cfg.Security,
			"threshold", cfg.Threshold, "capacity", cfg.Capacity,
			"disableOptimizations", cfg.DisableOptimizations, "disableCache", cfg.DisableCache)
	}
	return t, nil
}

// Append hashes and persists entry, returning its 1-based leaf index.
func (t *Tree) Append(ctx context.Context, entry []byte) (uint64, error) {
	index, err := t.store.Append(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("merkle: append: %w", err)
	}
	if t.log != nil {
		t.log.Debugw("leaf appended", "index", index)
	}
	return index, nil
}

// Size returns the tree's current number of leaves.
func (t *Tree) Size(ctx context.Context) (uint64, error) {
	size, err := t.store.Size(ctx)
	if err != nil {
		return 0, fmt.Errorf("merkle: size: %w", err)
	}
	return size, nil
}

// State returns the root digest over the first size leaves. A nil size
// defaults to the tree's current size.
func (t *Tree) State(ctx context.Context, size *uint64) ([]byte, error) {
	n, err := t.resolveSize(ctx, size)
	if err != nil {
		return nil, err
	}
	root, err := t.getRoot(ctx, 0, n)
	if err != nil {
		return nil, fmt.Errorf("merkle: state: %w", err)
	}
	return root, nil
}

// ProveInclusion produces a proof that the leaf at the 1-based index is
// included in the state at size. A nil size defaults to the tree's current
// size. index and size must satisfy 1 <= index <= size <= current size.
func (t *Tree) ProveInclusion(ctx context.Context, index uint64, size *uint64) (proof.Proof, error) {
	current, err := t.Size(ctx)
	if err != nil {
		return proof.Proof{}, err
	}
	n, err := t.resolveSize(ctx, size)
	if err != nil {
		return proof.Proof{}, err
	}
	if index < 1 || index > n || n > current {
		return proof.Proof{}, &InvalidChallengeError{
			Reason: fmt.Sprintf("index %d or size %d out of range for tree of size %d", index, n, current),
		}
	}

	var rule []uint8
	var path [][]byte
	if t.cfg.DisableOptimizations {
		rule, path, err = t.inclusionPathNaive(ctx, 0, index-1, n, 0)
	} else {
		rule, path, err = t.inclusionPath(ctx, index-1, n)
	}
	if err != nil {
		return proof.Proof{}, fmt.Errorf("merkle: prove inclusion: %w", err)
	}

	return proof.Proof{
		Algorithm: t.cfg.Algorithm,
		Security:  t.cfg.Security,
		Size:      n,
		Rule:      rule,
		Path:      path,
	}, nil
}

// ProveConsistency produces a proof that the state at size1 is a prefix of
// the state at size2. A nil size2 defaults to the tree's current size.
// size1 and size2 must satisfy 0 <= size1 <= size2 <= current size.
func (t *Tree) ProveConsistency(ctx context.Context, size1 uint64, size2 *uint64) (proof.Proof, error) {
	current, err := t.Size(ctx)
	if err != nil {
		return proof.Proof{}, err
	}
	n2, err := t.resolveSize(ctx, size2)
	if err != nil {
		return proof.Proof{}, err
	}
	if size1 > n2 || n2 > current {
		return proof.Proof{}, &InvalidChallengeError{
			Reason: fmt.Sprintf("size1 %d or size2 %d out of range for tree of size %d", size1, n2, current),
		}
	}

	var rule, subset []uint8
	var path [][]byte
	if t.cfg.DisableOptimizations {
		rule, subset, path, err = t.consistencyPathNaive(ctx, 0, size1, n2, 0)
	} else {
		rule, subset, path, err = t.consistencyPath(ctx, size1, n2)
	}
	if err != nil {
		return proof.Proof{}, fmt.Errorf("merkle: prove consistency: %w", err)
	}

	return proof.Proof{
		Algorithm: t.cfg.Algorithm,
		Security:  t.cfg.Security,
		Size:      n2,
		Rule:      rule,
		Subset:    subset,
		Path:      path,
	}, nil
}

// CacheInfo returns the subroot cache's current usage and hit/miss
// counters. The zero value is returned when caching is disabled.
func (t *Tree) CacheInfo() lrucache.Stats {
	if t.cache == nil {
		return lrucache.Stats{}
	}
	return t.cache.Stats()
}

// CacheClear empties the subroot cache. A no-op when caching is disabled.
func (t *Tree) CacheClear() {
	if t.cache != nil {
		t.cache.Clear()
	}
}

func (t *Tree) resolveSize(ctx context.Context, size *uint64) (uint64, error) {
	if size != nil {
		return *size, nil
	}
	return t.Size(ctx)
}

