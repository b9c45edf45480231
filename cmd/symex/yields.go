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

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/symex/yield"
)

func newYieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "yields",
		Short: "Export or inspect the method yields computed by an analysis",
	}
	cmd.AddCommand(newYieldsExportCmd())
	cmd.AddCommand(newYieldsInspectCmd())
	return cmd
}

func newYieldsExportCmd() *cobra.Command {
	var (
		opts   runOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "export -o FILE [flags] UNIT_FILE...",
		Short: "Analyze the unit files and write the finalized method yields to a file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, _, err := opts.run(cmd, args)
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create yields file: %w", err)
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("close yields file: %w", cerr)
				}
			}()
			if err := a.Cache().Export(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d behavior(s) to %s\n", a.Cache().Len(), output)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write the yields to.")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newYieldsInspectCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "inspect [flags] YIELDS_FILE",
		Short: "Print the method yields stored in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open yields: %w", err)
			}
			defer f.Close()

			cache := yield.NewCache()
			if err := cache.Import(f); err != nil {
				return fmt.Errorf("import %q: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			for _, b := range cache.Behaviors() {
				if method != "" && !strings.HasPrefix(b.Method, method) {
					continue
				}
				fmt.Fprintln(out, b.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "Only print the behaviors of methods whose ID starts with this prefix.")
	return cmd
}
