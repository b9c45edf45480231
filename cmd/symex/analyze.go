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
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/symex"
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/config"
	"go.uber.org/symex/diagnostic"
	"go.uber.org/symex/yield"
)

// runOptions are the flags shared by the commands that run an analysis. Flags explicitly set on
// the command line override the values of the config file.
type runOptions struct {
	configFile string
	yieldsIn   string
	flags      *config.Config
}

func (o *runOptions) register(cmd *cobra.Command) {
	o.flags = config.NewDefault()
	f := cmd.Flags()
	f.StringVar(&o.configFile, "config", "", "YAML config file; flags set explicitly take precedence over it.")
	f.StringVar(&o.yieldsIn, "yields-in", "", "File of method yields exported by a previous run, used to seed the callee cache.")
	f.IntVar(&o.flags.MaxSteps, "max-steps", o.flags.MaxSteps, "Maximum number of worklist steps per method.")
	f.IntVar(&o.flags.MaxNodes, "max-nodes", o.flags.MaxNodes, "Maximum number of exploded graph nodes per method.")
	f.IntVar(&o.flags.MaxExecProgramPoint, "max-exec-program-point", o.flags.MaxExecProgramPoint, "Maximum number of times one path may enter the same block.")
	f.IntVar(&o.flags.MaxStartingStates, "max-starting-states", o.flags.MaxStartingStates, "Maximum number of entry states of a method.")
	f.IntVar(&o.flags.MaxFlows, "max-flows", o.flags.MaxFlows, "Maximum number of flows reported with one issue.")
	f.IntVar(&o.flags.MaxCallDepth, "max-call-depth", o.flags.MaxCallDepth, "Maximum nesting of callee explorations.")
	f.DurationVar(&o.flags.MethodTimeout, "method-timeout", o.flags.MethodTimeout, "Wall-clock budget of one method; 0 disables it.")
	f.IntVar(&o.flags.Parallelism, "parallelism", o.flags.Parallelism, "Number of methods analyzed concurrently.")
	f.BoolVar(&o.flags.DisableJoinMerge, "disable-join-merge", o.flags.DisableJoinMerge, "Keep states apart at join points.")
	f.BoolVar(&o.flags.DisableInterprocedural, "disable-interprocedural", o.flags.DisableInterprocedural, "Use declared contracts for every call.")
	f.StringSliceVar(&o.flags.Checks, "checks", nil, "Comma-separated list of checks to run; all by default.")
	f.StringVar(&o.flags.LogLevel, "log-level", o.flags.LogLevel, "One of debug, info, warn or error.")
}

// config reads the config file, if any, and applies the flags that were set explicitly.
func (o *runOptions) config(cmd *cobra.Command) (*config.Config, error) {
	conf := config.NewDefault()
	if o.configFile != "" {
		var err error
		if conf, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}
	overrides := map[string]func(){
		"max-steps":               func() { conf.MaxSteps = o.flags.MaxSteps },
		"max-nodes":               func() { conf.MaxNodes = o.flags.MaxNodes },
		"max-exec-program-point":  func() { conf.MaxExecProgramPoint = o.flags.MaxExecProgramPoint },
		"max-starting-states":     func() { conf.MaxStartingStates = o.flags.MaxStartingStates },
		"max-flows":               func() { conf.MaxFlows = o.flags.MaxFlows },
		"max-call-depth":          func() { conf.MaxCallDepth = o.flags.MaxCallDepth },
		"method-timeout":          func() { conf.MethodTimeout = o.flags.MethodTimeout },
		"parallelism":             func() { conf.Parallelism = o.flags.Parallelism },
		"disable-join-merge":      func() { conf.DisableJoinMerge = o.flags.DisableJoinMerge },
		"disable-interprocedural": func() { conf.DisableInterprocedural = o.flags.DisableInterprocedural },
		"checks":                  func() { conf.Checks = o.flags.Checks },
		"log-level":               func() { conf.LogLevel = o.flags.LogLevel },
	}
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// run loads the units and analyzes them.
func (o *runOptions) run(cmd *cobra.Command, paths []string, opts ...symex.Option) (*symex.Analyzer, *symex.Report, error) {
	conf, err := o.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	units := make([]*cfg.Unit, 0, len(paths))
	for _, p := range paths {
		u, err := cfg.Load(p)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, u)
	}

	cache := yield.NewCache()
	if o.yieldsIn != "" {
		f, err := os.Open(o.yieldsIn)
		if err != nil {
			return nil, nil, fmt.Errorf("open yields: %w", err)
		}
		defer f.Close()
		if err := cache.Import(f); err != nil {
			return nil, nil, fmt.Errorf("import %q: %w", o.yieldsIn, err)
		}
	}

	opts = append([]symex.Option{
		symex.WithLogger(conf.NewLogger(cmd.ErrOrStderr())),
		symex.WithCache(cache),
	}, opts...)
	a, err := symex.New(conf, opts...)
	if err != nil {
		return nil, nil, err
	}
	report, err := a.Run(cmd.Context(), units...)
	if err != nil {
		return nil, nil, err
	}
	return a, report, nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		opts       runOptions
		pretty     bool
		noGrouping bool
		includes   string
		excludes   string
	)
	cmd := &cobra.Command{
		Use:   "analyze [flags] UNIT_FILE...",
		Short: "Report the issues found in the methods of the given unit files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			include, err := parseFilePrefixes(includes)
			if err != nil {
				return fmt.Errorf("parse file prefixes for error inclusion: %w", err)
			}
			exclude, err := parseFilePrefixes(excludes)
			if err != nil {
				return fmt.Errorf("parse file prefixes for error exclusion: %w", err)
			}

			_, report, err := opts.run(cmd, args, symex.WithGrouping(!noGrouping))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			n := 0
			for _, d := range report.Diagnostics {
				if !reported(d, include, exclude) {
					continue
				}
				n++
				if pretty {
					fmt.Fprintf(out, "%s: %s\n", d.Pos, symex.PrettyPrint(d.Message))
				} else {
					fmt.Fprintln(out, d.String())
				}
			}
			if n > 0 {
				return fmt.Errorf("%w: %d diagnostic(s)", errIssuesFound, n)
			}
			return nil
		},
	}
	opts.register(cmd)
	f := cmd.Flags()
	f.BoolVar(&pretty, "pretty", false, "Color the messages for a terminal.")
	f.BoolVar(&noGrouping, "no-grouping", false, "Report every issue, even those sharing a source with another one.")
	f.StringVar(&includes, "include-errors-in-files", "", "A comma-separated list of file prefixes to report errors in; all files by default.")
	f.StringVar(&excludes, "exclude-errors-in-files", "", "A comma-separated list of file prefixes to exclude from error reporting. This takes precedence over include-errors-in-files.")
	return cmd
}

// reported tells whether d passes the file prefix filters.
func reported(d diagnostic.Diagnostic, include, exclude []string) bool {
	p, err := filepath.Abs(d.Pos.Filename)
	if err != nil || d.Pos.Filename == "" {
		return len(include) == 0
	}
	for _, e := range exclude {
		if strings.HasPrefix(p, e) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, i := range include {
		if strings.HasPrefix(p, i) {
			return true
		}
	}
	return false
}

// parseFilePrefixes parses the comma-separated list of file prefixes, converts them to absolute
// file paths, and returns them as a slice.
func parseFilePrefixes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	list := strings.Split(s, ",")
	for i := range list {
		p, err := filepath.Abs(strings.TrimSpace(list[i]))
		if err != nil {
			return nil, fmt.Errorf("convert %q to absolute path: %w", list[i], err)
		}
		list[i] = p
	}
	return list, nil
}
