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

// Command symex runs the symbolic-execution checks over unit files produced by a front-end and
// manages the exported method yields that can seed later runs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, following the convention of go/analysis drivers.
const (
	_exitOK     = 0
	_exitError  = 1
	_exitIssues = 3
)

// errIssuesFound is returned by analyze when at least one diagnostic was printed.
var errIssuesFound = errors.New("issues found")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "symex",
		Short:         "Path-sensitive bug finder for class-based method CFGs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newYieldsCmd())
	return root
}

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
		os.Exit(_exitOK)
	case errors.Is(err, errIssuesFound):
		os.Exit(_exitIssues)
	default:
		fmt.Fprintf(os.Stderr, "symex: %v\n", err)
		os.Exit(_exitError)
	}
}
