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

package symex_test

import (
	"path/filepath"
	"testing"

	"go.uber.org/symex/config"
	"go.uber.org/symex/symextest"
)

func TestScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
	}{
		{name: "nullderef", description: "null dereferences on branches, call results and suppressions"},
		{name: "conditions", description: "conditions that always evaluate to the same value"},
		{name: "resources", description: "resources that are never closed"},
		{name: "nonnull", description: "null flowing into non-null fields, parameters and returns"},
		{name: "division", description: "divisors that can be zero"},
		{name: "interprocedural", description: "nullable results of callees with a body"},
		{name: "optional", description: "optional values read before their presence is known"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			symextest.Run(t, config.NewDefault(), filepath.Join("testdata", "units", tt.name))
		})
	}
}
