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

import "fmt"

// InvalidChallengeError is returned by ProveInclusion and ProveConsistency
// when the requested index or size pair is out of range for the tree's
// current state.
type InvalidChallengeError struct {
	Reason string
}

func (e *InvalidChallengeError) Error() string {
	return fmt.Sprintf("merkle: invalid challenge: %s", e.Reason)
}
