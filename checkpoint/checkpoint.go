// Copyright 2025 The Tessera authors. All Rights Reserved.
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

// Package checkpoint wraps a tree's root in a note-signed text body, so a
// published state can be distributed and authenticated independently of
// whatever transport carries it. It is a thin convenience layered on top
// of the core tree: nothing in this module requires a checkpoint to exist.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/sumdb/note"
)

// Sign produces a note-signed checkpoint body for (origin, size, root): a
// three-line text naming the log, the tree size and the base64-encoded
// root hash, signed by signer.
func Sign(signer note.Signer, origin string, size uint64, root []byte) ([]byte, error) {
	if origin == "" {
		return nil, fmt.Errorf("checkpoint: origin must not be empty")
	}
	text := formatBody(origin, size, root)
	return note.Sign(&note.Note{Text: text}, signer)
}

// Verify checks that checkpoint is a validly signed note for origin,
// whose signature verifies against verifier, and returns the size and root
// it commits to.
func Verify(verifier note.Verifier, origin string, checkpoint []byte) (uint64, []byte, error) {
	n, err := note.Open(checkpoint, note.VerifierList(verifier))
	if err != nil {
		return 0, nil, fmt.Errorf("checkpoint: %w", err)
	}

	gotOrigin, size, root, err := parseBody(n.Text)
	if err != nil {
		return 0, nil, fmt.Errorf("checkpoint: %w", err)
	}
	if gotOrigin != origin {
		return 0, nil, fmt.Errorf("checkpoint: origin %q, want %q", gotOrigin, origin)
	}
	return size, root, nil
}

func formatBody(origin string, size uint64, root []byte) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n", origin)
	fmt.Fprintf(&b, "%d\n", size)
	fmt.Fprintf(&b, "%s\n", base64.StdEncoding.EncodeToString(root))
	return b.String()
}

func parseBody(text string) (origin string, size uint64, root []byte, err error) {
	s := bufio.NewScanner(strings.NewReader(text))

	if !s.Scan() {
		return "", 0, nil, fmt.Errorf("missing origin line")
	}
	origin = s.Text()

	if !s.Scan() {
		return "", 0, nil, fmt.Errorf("missing size line")
	}
	size, err = strconv.ParseUint(s.Text(), 10, 64)
	if err != nil {
		return "", 0, nil, fmt.Errorf("size %q is not a valid uint64: %w", s.Text(), err)
	}

	if !s.Scan() {
		return "", 0, nil, fmt.Errorf("missing root hash line")
	}
	root, err = base64.StdEncoding.DecodeString(s.Text())
	if err != nil {
		return "", 0, nil, fmt.Errorf("root hash %q is not base64: %w", s.Text(), err)
	}

	return origin, size, root, nil
}
