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

// Package hash implements the domain-separated leaf and interior hashing
// discipline used throughout this module: a one-byte prefix distinguishes a
// leaf digest from an interior-pair digest, defeating the classic
// second-preimage attack that reinterprets a pair of child hashes as a leaf.
package hash

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

const chunkSize = 1024

var leafPrefix = []byte{0x00}
var pairPrefix = []byte{0x01}

// ErrUnsupportedAlgorithm is returned by New for an unrecognized algorithm
// name.
type ErrUnsupportedAlgorithm struct {
	Algorithm string
}

func (e *ErrUnsupportedAlgorithm) Error() string {
	return fmt.Sprintf("hash: unsupported algorithm %q", e.Algorithm)
}

var constructors = map[string]func() hash.Hash{
	"sha224":      sha256.New224,
	"sha256":      sha256.New,
	"sha384":      sha512.New384,
	"sha512":      sha512.New,
	"sha3_224":    sha3.New224,
	"sha3_256":    sha3.New256,
	"sha3_384":    sha3.New384,
	"sha3_512":    sha3.New512,
	"keccak_256":  sha3.NewLegacyKeccak256,
	"keccak_512":  sha3.NewLegacyKeccak512,
	"md5":         md5.New,
}

// Hasher encapsulates the elementary hashing operations for one algorithm
// and security setting. It is an immutable value: every method constructs a
// fresh hash.Hash per call, so a Hasher may be shared freely across
// goroutines.
type Hasher struct {
	algorithm string
	security  bool
	newHash   func() hash.Hash
}

// New constructs a Hasher for the named algorithm. Names are
// case-insensitive and accept either '-' or '_' as the word separator (e.g.
// "SHA3-256" and "sha3_256" are equivalent). Returns ErrUnsupportedAlgorithm
// if the algorithm is not recognized.
func New(algorithm string, security bool) (*Hasher, error) {
	normalized := normalize(algorithm)
	newHash, ok := constructors[normalized]
	if !ok {
		return nil, &ErrUnsupportedAlgorithm{Algorithm: algorithm}
	}
	return &Hasher{algorithm: algorithm, security: security, newHash: newHash}, nil
}

func normalize(algorithm string) string {
	out := make([]byte, len(algorithm))
	for i := 0; i < len(algorithm); i++ {
		c := algorithm[i]
		switch {
		case c == '-':
			c = '_'
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Algorithm returns the algorithm name the Hasher was constructed with.
func (h *Hasher) Algorithm() string { return h.algorithm }

// Security reports whether domain-separation prefixes are applied.
func (h *Hasher) Security() bool { return h.security }

// HashEmpty returns the digest of the empty byte string, with no prefix.
// This is the canonical root of a tree with zero leaves (I6).
func (h *Hasher) HashEmpty() []byte {
	return h.consume(nil)
}

// HashRaw returns the digest of buf with no prefix prepended, regardless of
// the security setting. Used for fixture comparisons and for values that
// must match a bare hash of some external byte string.
func (h *Hasher) HashRaw(buf []byte) []byte {
	return h.consume(buf)
}

// HashLeaf returns the digest of buf prefixed with 0x00 when security is
// enabled (I4).
func (h *Hasher) HashLeaf(buf []byte) []byte {
	return h.consumePrefixed(leafPrefix, buf)
}

// HashPair returns the digest of the concatenation of left and right,
// prefixed with 0x01 when security is enabled (I4).
func (h *Hasher) HashPair(left, right []byte) []byte {
	hasher := h.newHash()
	if h.security {
		hasher.Write(pairPrefix)
	}
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

func (h *Hasher) consumePrefixed(prefix, buf []byte) []byte {
	if !h.security {
		return h.consume(buf)
	}
	hasher := h.newHash()
	hasher.Write(prefix)
	writeChunked(hasher, buf)
	return hasher.Sum(nil)
}

func (h *Hasher) consume(buf []byte) []byte {
	hasher := h.newHash()
	writeChunked(hasher, buf)
	return hasher.Sum(nil)
}

// writeChunked feeds buf to hasher in fixed-size chunks. The result is
// identical to a single Write call; chunking only bounds the size of any
// intermediate copy a particular hash.Hash implementation might make.
func writeChunked(hasher hash.Hash, buf []byte) {
	for offset := 0; offset < len(buf); offset += chunkSize {
		end := offset + chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		hasher.Write(buf[offset:end])
	}
}
