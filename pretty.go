//  Copyright (c) 2023 Uber Technologies, Inc.
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

package symex

import (
	"fmt"
	"regexp"
)

var (
	_namePattern        = regexp.MustCompile(`'(.*?)'`)
	_quotedPattern      = regexp.MustCompile(`"(.*?)"`)
	_nullabilityPattern = regexp.MustCompile(`(?i)\b(null|nullable|nonnull)\b`)
)

// PrettyPrint colors a diagnostic message for a terminal: names in magenta, quoted strings in
// cyan and nullability words in bold.
func PrettyPrint(msg string) string {
	errorStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 31, "error: ")   // red
	nameStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 95, "'${1}'")     // magenta
	quotedStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 36, `"${1}"`)   // cyan
	nullabilityStr := fmt.Sprintf("\x1b[%dm%s\x1b[0m", 1, "${1}") // bold

	msg = _nullabilityPattern.ReplaceAllString(msg, nullabilityStr)
	msg = _namePattern.ReplaceAllString(msg, nameStr)
	msg = _quotedPattern.ReplaceAllString(msg, quotedStr)
	return errorStr + msg
}
