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

type inclusionFrame struct {
	bit  uint8
	a, b uint64
}

// inclusionPath produces the rule/path pair for the leaf at 0-based offset
// against the range [0, size), iteratively: each loop iteration defers the
// partner subtree not containing offset onto a stack, narrowing [start,
// limit) down to the singleton containing offset. Unwinding the stack in
// LIFO order yields the path from the leaf up to size's root.
func (t *Tree) inclusionPath(ctx context.Context, offset, size uint64) ([]uint8, [][]byte, error) {
	start, limit := uint64(0), size
	var bit uint8
	var stack []inclusionFrame

	for limit > start+1 {
		k := pow2.SplitPoint(limit - start)
		if offset < start+k {
			stack = append(stack, inclusionFrame{bit, start + k, limit})
			limit = start + k
			bit = 0
		} else {
			stack = append(stack, inclusionFrame{bit, start, start + k})
			start = start + k
			bit = 1
		}
	}

	base, err := t.store.Leaf(ctx, offset+1)
	if err != nil {
		return nil, nil, err
	}
	rule := []uint8{bit}
	path := [][]byte{base}

	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		node, err := t.getRoot(ctx, f.a, f.b)
		if err != nil {
			return nil, nil, err
		}
		rule = append(rule, f.bit)
		path = append(path, node)
	}

	// The terminal rule bit only ever marks which branch the loop exited
	// from; it plays no role in verification and is normalized to 0 so two
	// otherwise-identical proofs never differ by this alone.
	rule[len(rule)-1] = 0
	return rule, path, nil
}

// inclusionPathNaive is the direct recursive definition of the same path,
// used when DisableOptimizations is set and to cross-check inclusionPath
// in tests. It never touches the subroot cache.
func (t *Tree) inclusionPathNaive(ctx context.Context, start, offset, limit uint64, bit uint8) ([]uint8, [][]byte, error) {
	if offset == start && start == limit-1 {
		leaf, err := t.store.Leaf(ctx, offset+1)
		if err != nil {
			return nil, nil, err
		}
		return []uint8{bit}, [][]byte{leaf}, nil
	}

	k := pow2.SplitPoint(limit - start)

	var rule []uint8
	var path [][]byte
	var node []byte
	var err error
	if offset < start+k {
		rule, path, err = t.inclusionPathNaive(ctx, start, offset, start+k, 0)
		if err != nil {
			return nil, nil, err
		}
		node, err = t.getRootNaive(ctx, start+k, limit)
	} else {
		rule, path, err = t.inclusionPathNaive(ctx, start+k, offset, limit, 1)
		if err != nil {
			return nil, nil, err
		}
		node, err = t.getRootNaive(ctx, start, start+k)
	}
	if err != nil {
		return nil, nil, err
	}

	rule = append(rule, bit)
	path = append(path, node)
	return rule, path, nil
}
