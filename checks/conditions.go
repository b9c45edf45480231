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

package checks

import (
	"fmt"

	"go.uber.org/symex/cfg"
	"go.uber.org/symex/engine"
)

// ConditionAlwaysTrueOrFalse reports the conditions that evaluated to the same value on every
// explored path.
type ConditionAlwaysTrueOrFalse struct{}

func (*ConditionAlwaysTrueOrFalse) Name() string { return "ConditionAlwaysTrueOrFalse" }

func (*ConditionAlwaysTrueOrFalse) Init(*cfg.Method) {}

func (*ConditionAlwaysTrueOrFalse) EndOfExecution(ctx *engine.Context) {
	for _, inst := range ctx.Conditions().AlwaysTrue() {
		ctx.ReportIssue(inst.Pos, alwaysMessage(true), nil)
	}
	for _, inst := range ctx.Conditions().AlwaysFalse() {
		ctx.ReportIssue(inst.Pos, alwaysMessage(false), nil)
	}
}

func alwaysMessage(value bool) string {
	return fmt.Sprintf("Change this condition so that it does not always evaluate to \"%t\".", value)
}
