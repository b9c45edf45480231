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

// Package tokenhelper hosts helper functions that enhance the `token` package (e.g., around
// position and file path formatting etc.).
package tokenhelper

import (
	"cmp"
	"go/token"
	"path/filepath"
	"strings"
)

// RelTo returns the path of filename relative to dir. If filename is not an absolute path under
// dir, it returns the filename itself.
func RelTo(dir, filename string) string {
	if dir == "" || !filepath.IsAbs(filename) {
		return filename
	}
	rel, err := filepath.Rel(dir, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filename
	}
	return rel
}

// TrimPosition returns pos with its file name made relative to dir.
func TrimPosition(dir string, pos token.Position) token.Position {
	pos.Filename = RelTo(dir, pos.Filename)
	return pos
}

// ComparePositions orders positions by file name, then line, then column.
func ComparePositions(a, b token.Position) int {
	if n := cmp.Compare(a.Filename, b.Filename); n != 0 {
		return n
	}
	if n := cmp.Compare(a.Line, b.Line); n != 0 {
		return n
	}
	return cmp.Compare(a.Column, b.Column)
}

// PositionString formats pos, or a placeholder for an invalid position.
func PositionString(pos token.Position) string {
	if !pos.IsValid() {
		return "<no pos info>"
	}
	return pos.String()
}
