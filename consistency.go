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

type consistencyFrame struct {
	bit  uint8
	mask uint8
	a, b uint64
}

// consistencyPath produces the rule/subset/path triple certifying that the
// state at size1 is a prefix of the state at size1+span, where span =
// size2-size1. offset tracks size1's position within the shrinking
// [start, start+limit) window; mask records, for each deferred subtree,
// whether it belongs to the prior tree (1) or only the new one (0).
func (t *Tree) consistencyPath(ctx context.Context, offset, size2 uint64) ([]uint8, []uint8, [][]byte, error) {
	start, limit := uint64(0), size2
	var bit uint8
	var stack []consistencyFrame

	for offset != limit && !(offset == 0 && limit == 1) {
		k := pow2.SplitPoint(limit)
		mask := uint8(0)

		if offset < k {
			stack = append(stack, consistencyFrame{bit, 0, start + k, start + limit})
			limit = k
			bit = 0
		} else {
			mask = 1
			stack = append(stack, consistencyFrame{bit, mask, start, start + k})
			start += k
			offset -= k
			limit -= k
			bit = 1
		}
	}

	var base []byte
	var baseMask uint8
	var err error
	if offset == limit {
		baseMask = 1
		base, err = t.getRoot(ctx, start, start+limit)
	} else {
		baseMask = 0
		base, err = t.store.Leaf(ctx, start+offset+1)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	rule := []uint8{bit}
	subset := []uint8{baseMask}
	path := [][]byte{base}

	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		node, err := t.getRoot(ctx, f.a, f.b)
		if err != nil {
			return nil, nil, nil, err
		}
		rule = append(rule, f.bit)
		subset = append(subset, f.mask)
		path = append(path, node)
	}

	rule[len(rule)-1] = 0
	return rule, subset, path, nil
}

// consistencyPathNaive is the direct recursive definition of the same
// path. Used when DisableOptimizations is set and to cross-check
// consistencyPath in tests.
func (t *Tree) consistencyPathNaive(ctx context.Context, start, offset, limit uint64, bit uint8) ([]uint8, []uint8, [][]byte, error) {
	if offset == limit {
		node, err := t.getRootNaive(ctx, start, start+limit)
		if err != nil {
			return nil, nil, nil, err
		}
		return []uint8{bit}, []uint8{1}, [][]byte{node}, nil
	}
	if offset == 0 && limit == 1 {
		leaf, err := t.store.Leaf(ctx, start+offset+1)
		if err != nil {
			return nil, nil, nil, err
		}
		return []uint8{bit}, []uint8{0}, [][]byte{leaf}, nil
	}

	k := pow2.SplitPoint(limit)

	var rule, subset []uint8
	var path [][]byte
	var node []byte
	var mask uint8
	var err error
	if offset < k {
		rule, subset, path, err = t.consistencyPathNaive(ctx, start, offset, k, 0)
		if err != nil {
			return nil, nil, nil, err
		}
		node, err = t.getRootNaive(ctx, start+k, start+limit)
	} else {
		rule, subset, path, err = t.consistencyPathNaive(ctx, start+k, offset-k, limit-k, 1)
		if err != nil {
			return nil, nil, nil, err
		}
		node, err = t.getRootNaive(ctx, start, start+k)
		mask = 1
	}
	if err != nil {
		return nil, nil, nil, err
	}

	rule = append(rule, bit)
	subset = append(subset, mask)
	path = append(path, node)
	return rule, subset, path, nil
}
