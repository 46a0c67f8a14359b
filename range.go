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

	"github.com/sakuralog/merkle/internal/pow2"
)

// getRoot computes the digest over the 0-based leaf offsets [start, end),
// decomposing the span into its perfect power-of-two subtrees (largest
// first, left to right) and folding them right-to-left with hash_pair so
// the result is bit-identical to getRootNaive's direct recursive
// definition for every span. Each perfect subtree is resolved through
// getSubroot, which consults the cache once its width clears the
// configured threshold.
func (t *Tree) getRoot(ctx context.Context, start, end uint64) ([]byte, error) {
	if t.cfg.DisableOptimizations {
		return t.getRootNaive(ctx, start, end)
	}
	if end == start {
		return t.hasher.HashEmpty(), nil
	}

	exponents := pow2.Decompose(end - start)
	chunks := make([][]byte, len(exponents))
	offset := start
	for i, p := range exponents {
		width := uint64(1) << p
		subroot, err := t.getSubroot(ctx, offset, width)
		if err != nil {
			return nil, err
		}
		chunks[i] = subroot
		offset += width
	}

	acc := chunks[len(chunks)-1]
	for i := len(chunks) - 2; i >= 0; i-- {
		acc = t.hasher.HashPair(chunks[i], acc)
	}
	return acc, nil
}

// getRootNaive is the unoptimized recursive reference form (RFC 9162,
// section 2): split at the largest power of two strictly less than the
// span, recurse on both halves, and combine. It never touches the cache,
// so it is used both for DisableOptimizations and for cross-checking
// getRoot in tests.
func (t *Tree) getRootNaive(ctx context.Context, start, end uint64) ([]byte, error) {
	if end == start {
		return t.hasher.HashEmpty(), nil
	}
	if end == start+1 {
		return t.store.Leaf(ctx, start+1)
	}

	k := pow2.SplitPoint(end - start)
	left, err := t.getRootNaive(ctx, start, start+k)
	if err != nil {
		return nil, err
	}
	right, err := t.getRootNaive(ctx, start+k, end)
	if err != nil {
		return nil, err
	}
	return t.hasher.HashPair(left, right), nil
}

// getSubroot returns the digest of the perfect subtree [offset,
// offset+width), consulting the cache when width meets the configured
// threshold and bypassing it otherwise.
func (t *Tree) getSubroot(ctx context.Context, offset, width uint64) ([]byte, error) {
	if t.cache == nil || width < t.cfg.Threshold {
		return t.getSubrootUncached(ctx, offset, width)
	}
	return t.cache.GetOrCompute(offset, width, func() ([]byte, error) {
		return t.getSubrootUncached(ctx, offset, width)
	})
}

// getSubrootUncached computes a perfect subtree's digest by loading its
// width leaf hashes and repeatedly folding adjacent pairs until one
// digest remains.
func (t *Tree) getSubrootUncached(ctx context.Context, offset, width uint64) ([]byte, error) {
	level, err := t.store.LeafRange(ctx, offset, width)
	if err != nil {
		return nil, err
	}
	for len(level) > 1 {
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, t.hasher.HashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0], nil
}
