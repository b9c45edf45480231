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

// Package config hosts the configuration of the engine: the budgets each method analysis runs
// under, the set of enabled checks, and the logging setup. A Config is always passed explicitly to
// the components that need it, so concurrent analyses never share mutable limits.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the user-configurable options of an analysis run.
type Config struct {
	// MaxSteps is the maximum number of worklist steps per method.
	MaxSteps int `yaml:"max-steps"`

	// MaxNodes is the maximum number of exploded graph nodes per method.
	MaxNodes int `yaml:"max-nodes"`

	// MaxExecProgramPoint is the maximum number of times one path may enter the same block.
	MaxExecProgramPoint int `yaml:"max-exec-program-point"`

	// MaxStartingStates is the maximum number of entry states of a method.
	MaxStartingStates int `yaml:"max-starting-states"`

	// MaxFlows is the maximum number of flows reported with one issue.
	MaxFlows int `yaml:"max-flows"`

	// MaxFlowSteps bounds the backward traversal performed per reported issue.
	MaxFlowSteps int `yaml:"max-flow-steps"`

	// MaxCallDepth bounds the nesting of on-demand callee explorations.
	MaxCallDepth int `yaml:"max-call-depth"`

	// MethodTimeout is the wall-clock budget of one method. Zero disables it.
	MethodTimeout time.Duration `yaml:"method-timeout"`

	// Parallelism is the number of methods analyzed concurrently. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`

	// DisableJoinMerge keeps states apart at join points instead of merging them.
	DisableJoinMerge bool `yaml:"disable-join-merge"`

	// DisableInterprocedural makes every call use the callee's declared contract only.
	DisableInterprocedural bool `yaml:"disable-interprocedural"`

	// Checks lists the names of the enabled checks. Empty enables all of them.
	Checks []string `yaml:"checks"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log-level"`
}

// NewDefault returns a configuration with every option set to its default.
func NewDefault() *Config {
	return &Config{
		MaxSteps:            DefaultMaxSteps,
		MaxNodes:            DefaultMaxNodes,
		MaxExecProgramPoint: DefaultMaxExecProgramPoint,
		MaxStartingStates:   DefaultMaxStartingStates,
		MaxFlows:            DefaultMaxFlows,
		MaxFlowSteps:        DefaultMaxFlowSteps,
		MaxCallDepth:        DefaultMaxCallDepth,
		Parallelism:         runtime.GOMAXPROCS(0),
		LogLevel:            DefaultLogLevel,
	}
}

// Load reads a YAML (or JSON) configuration file. Options that are absent or not positive are set
// to their defaults.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes a configuration from YAML (or JSON) bytes and fills the defaults in.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) fillDefaults() {
	d := NewDefault()
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.MaxExecProgramPoint <= 0 {
		c.MaxExecProgramPoint = d.MaxExecProgramPoint
	}
	if c.MaxStartingStates <= 0 {
		c.MaxStartingStates = d.MaxStartingStates
	}
	if c.MaxFlows <= 0 {
		c.MaxFlows = d.MaxFlows
	}
	if c.MaxFlowSteps <= 0 {
		c.MaxFlowSteps = d.MaxFlowSteps
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.Parallelism <= 0 {
		c.Parallelism = d.Parallelism
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports options that cannot be fixed by defaulting.
func (c *Config) Validate() error {
	if c.MethodTimeout < 0 {
		return fmt.Errorf("%w: negative method-timeout %s", ErrInvalidConfig, c.MethodTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// IsCheckEnabled returns true if the check with the given name should run.
func (c *Config) IsCheckEnabled(name string) bool {
	if len(c.Checks) == 0 {
		return true
	}
	for _, n := range c.Checks {
		if n == name {
			return true
		}
	}
	return false
}
