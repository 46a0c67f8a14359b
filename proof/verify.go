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

package proof

import (
	"bytes"
	"fmt"

	"github.com/sakuralog/merkle/hash"
)

// RootMismatchError is returned by VerifyInclusion and VerifyConsistency
// when a proof is structurally sound and rehashes cleanly, but the
// resulting digest does not match the caller's commitment. It unwraps to an
// ErrInvalidProof.
type RootMismatchError struct {
	// Computed is the digest the proof folded to.
	Computed []byte
	// Expected is the commitment the caller supplied.
	Expected []byte
}

func (e *RootMismatchError) Error() string {
	return fmt.Sprintf("proof: root mismatch: computed %x, expected %x", e.Computed, e.Expected)
}

func (e *RootMismatchError) Unwrap() error {
	return &ErrInvalidProof{Reason: "root mismatch"}
}

// fold rebuilds the accumulator for a rule/path pair as described in
// section 4.5: starting at path[0], step j (for j >= 1) combines path[j]
// into the accumulator on the left or right according to rule[j-1]. The
// final rule bit is never consulted, matching its status as a
// structurally insignificant placeholder.
func fold(h *hash.Hasher, rule []uint8, path [][]byte) []byte {
	acc := path[0]
	for j := 1; j < len(path); j++ {
		if rule[j-1] == 0 {
			acc = h.HashPair(acc, path[j])
		} else {
			acc = h.HashPair(path[j], acc)
		}
	}
	return acc
}

// VerifyInclusion checks that proof, folded against leaf, reproduces
// target. leaf is the raw entry bytes; it is hashed with HashLeaf before
// folding begins.
func VerifyInclusion(h *hash.Hasher, leaf []byte, proof Proof, target []byte) error {
	if proof.IsConsistency() {
		return &ErrInvalidProof{Reason: "proof carries subset bits, not an inclusion proof"}
	}
	if err := proof.Validate(); err != nil {
		return err
	}
	if len(proof.Path) == 0 {
		return &ErrInvalidProof{Reason: "empty inclusion path"}
	}

	path := make([][]byte, len(proof.Path))
	copy(path, proof.Path)
	path[0] = h.HashLeaf(leaf)

	computed := fold(h, proof.Rule, path)
	if !bytes.Equal(computed, target) {
		return &RootMismatchError{Computed: computed, Expected: target}
	}
	return nil
}

// VerifyConsistency checks that proof, folded two ways, reproduces both
// oldRoot (the state commitment at the prior size) and newRoot (the state
// commitment at proof.Size). Per section 4.8 the old-root accumulator
// uses only the steps marked proof.Subset[i] == 1; the new-root
// accumulator uses every step. When no step is marked as part of the prior
// tree (as for a prior size of zero below a non-empty later tree), oldRoot
// is compared against the empty-tree digest.
func VerifyConsistency(h *hash.Hasher, proof Proof, oldRoot, newRoot []byte) error {
	if !proof.IsConsistency() {
		return &ErrInvalidProof{Reason: "proof carries no subset bits, not a consistency proof"}
	}
	if err := proof.Validate(); err != nil {
		return err
	}
	if len(proof.Path) == 0 {
		return &ErrInvalidProof{Reason: "empty consistency path"}
	}

	var oldRule []uint8
	var oldPath [][]byte
	for i, s := range proof.Subset {
		if s == 1 {
			oldRule = append(oldRule, proof.Rule[i])
			oldPath = append(oldPath, proof.Path[i])
		}
	}

	var computedOld []byte
	if len(oldPath) == 0 {
		computedOld = h.HashEmpty()
	} else {
		computedOld = fold(h, oldRule, oldPath)
	}
	if !bytes.Equal(computedOld, oldRoot) {
		return &RootMismatchError{Computed: computedOld, Expected: oldRoot}
	}

	computedNew := fold(h, proof.Rule, proof.Path)
	if !bytes.Equal(computedNew, newRoot) {
		return &RootMismatchError{Computed: computedNew, Expected: newRoot}
	}
	return nil
}
