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

// Package proof contains the self-describing proof record produced by
// inclusion and consistency provers, its recommended JSON wire shape, and
// the verifier that rehashes a proof and compares it to a caller-supplied
// commitment.
package proof

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Proof is a record carrying everything a verifier needs to recompute a
// root, except the target commitment itself (spec section 4.7).
//
// For an inclusion proof, Subset is empty and Size is the subtree size the
// leaf was proven against. For a consistency proof, Subset has the same
// length as Rule and Path, and marks which steps belong to the prior tree
// of size1 (Subset[i] == 1) versus only to the later tree (Subset[i] ==
// 0); Size is the later tree's size.
type Proof struct {
	Algorithm string
	Security  bool
	Size      uint64
	Rule      []uint8
	Subset    []uint8
	Path      [][]byte
}

// ErrInvalidProof is returned by Validate, and by the verifier in this
// package, whenever a proof is structurally malformed. A RootMismatchError,
// returned when a proof fails to rehash to the expected commitment, unwraps
// to an ErrInvalidProof, so errors.As matches every verification failure.
type ErrInvalidProof struct {
	Reason string
}

func (e *ErrInvalidProof) Error() string {
	return fmt.Sprintf("proof: invalid proof: %s", e.Reason)
}

// Validate checks the structural invariants from spec section 4.7:
// len(Rule) == len(Path), and len(Subset) is either 0 or len(Path).
func (p Proof) Validate() error {
	if len(p.Rule) != len(p.Path) {
		return &ErrInvalidProof{Reason: fmt.Sprintf("len(rule)=%d != len(path)=%d", len(p.Rule), len(p.Path))}
	}
	if len(p.Subset) != 0 && len(p.Subset) != len(p.Path) {
		return &ErrInvalidProof{Reason: fmt.Sprintf("len(subset)=%d not in {0, %d}", len(p.Subset), len(p.Path))}
	}
	return nil
}

// IsConsistency reports whether the proof carries subset bits, i.e. was
// produced by a consistency prover rather than an inclusion prover.
func (p Proof) IsConsistency() bool {
	return len(p.Subset) > 0
}

// wireProof is the JSON shape from spec section 6.2: lowercase hex digests,
// an empty array (never null) for an inclusion proof's subset field.
type wireProof struct {
	Algorithm string   `json:"algorithm"`
	Security  bool     `json:"security"`
	Size      uint64   `json:"size"`
	Rule      []uint8  `json:"rule"`
	Subset    []uint8  `json:"subset"`
	Path      []string `json:"path"`
}

// MarshalJSON implements json.Marshaler using the wire shape of spec
// section 6.2.
func (p Proof) MarshalJSON() ([]byte, error) {
	w := wireProof{
		Algorithm: p.Algorithm,
		Security:  p.Security,
		Size:      p.Size,
		Rule:      p.Rule,
		Subset:    p.Subset,
		Path:      make([]string, len(p.Path)),
	}
	if w.Rule == nil {
		w.Rule = []uint8{}
	}
	if w.Subset == nil {
		w.Subset = []uint8{}
	}
	for i, digest := range p.Path {
		w.Path[i] = hex.EncodeToString(digest)
	}
	// encoding/json writes a []uint8 as a base64 string; the outer Rule and
	// Subset fields shadow the embedded ones so both are written as arrays.
	rule := make([]int, len(w.Rule))
	for i, b := range w.Rule {
		rule[i] = int(b)
	}
	subset := make([]int, len(w.Subset))
	for i, b := range w.Subset {
		subset[i] = int(b)
	}
	return json.Marshal(struct {
		wireProof
		Rule   []int `json:"rule"`
		Subset []int `json:"subset"`
	}{wireProof: w, Rule: rule, Subset: subset})
}

// UnmarshalJSON implements json.Unmarshaler using the wire shape of spec
// section 6.2.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var w wireProof
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("proof: unmarshal: %w", err)
	}

	path := make([][]byte, len(w.Path))
	for i, s := range w.Path {
		digest, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("proof: unmarshal: path[%d]: %w", i, err)
		}
		path[i] = digest
	}

	*p = Proof{
		Algorithm: w.Algorithm,
		Security:  w.Security,
		Size:      w.Size,
		Rule:      w.Rule,
		Subset:    w.Subset,
		Path:      path,
	}
	return nil
}
