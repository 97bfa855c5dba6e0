// Copyright 2025 Tom Barlow
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

package workflow

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewRunID generates a run identifier of the form YYYYMMDD_HHMMSS_xxxx,
// where xxxx is four hex characters from a cryptographic source. The
// timestamp uses the caller's clock, so pass a time already in the
// configured timezone. Collisions within one second are assumed
// practically impossible.
func NewRunID(now time.Time) string {
	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand never fails on supported platforms
		panic("workflow: reading random bytes: " + err.Error())
	}
	return now.Format("20060102_150405") + "_" + hex.EncodeToString(suffix)
}
