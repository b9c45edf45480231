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

package config

// This file hosts the default budgets of the engine. Each of them can be overridden through the
// configuration file; the defaults mirror what has proven to keep analysis time bounded on large
// code bases without losing most findings.

// DefaultMaxSteps is the number of worklist steps after which the exploration of a single method is
// aborted. Raising it lets deeply branching methods finish, at the cost of memory and time spent
// on methods that would otherwise be abandoned anyway.
const DefaultMaxSteps = 16000

// DefaultMaxNodes bounds the number of distinct exploded graph nodes per method.
const DefaultMaxNodes = 50000

// DefaultMaxExecProgramPoint is the number of times a single path may enter the same block. Loops
// are therefore unrolled at most this many times before the path is dropped.
const DefaultMaxExecProgramPoint = 2

// DefaultMaxStartingStates bounds the number of entry states created by forking nullable
// parameters.
const DefaultMaxStartingStates = 1024

// DefaultMaxFlows is the maximum number of flows attached to a single issue.
const DefaultMaxFlows = 20

// DefaultMaxFlowSteps bounds the number of backward expansions performed while reconstructing the
// flows of one issue.
const DefaultMaxFlowSteps = 10000

// DefaultMaxCallDepth bounds the nesting of callee explorations triggered by a single method.
const DefaultMaxCallDepth = 8

// DefaultLogLevel is the log level used when none is configured.
const DefaultLogLevel = "info"
