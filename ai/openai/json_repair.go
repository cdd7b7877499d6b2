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

import (
	"regexp"
	"strings"
)

// unquotedKey matches an object key that lost its opening quote,
// e.g. `, mid":` or `{index":`.
var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z_ ]*?)\s*":`)

// repairJSON fixes common JSON formatting issues from LLM responses.
// It restores missing opening quotes before object keys.
func repairJSON(s string) string {
	return unquotedKey.ReplaceAllString(s, `$1"$2":`)
}

// extractJSON strips markdown code fences and any prose surrounding the
// outermost JSON object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
