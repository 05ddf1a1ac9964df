// Copyright 2025 Poiesic Systems
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


package openai

import "regexp"

// unquotedKey matches an object key that lost its opening quote, e.g. `{tags":` or `, tags":`.
var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z][A-Za-z_]*)":`)

// repairJSON restores missing opening quotes on object keys, a common small-model slip:
// `{tags": ["a"]}` becomes `{"tags": ["a"]}`. Well-formed input is returned unchanged.
func repairJSON(s string) string {
	return unquotedKey.ReplaceAllString(s, `$1"$2":`)
}
