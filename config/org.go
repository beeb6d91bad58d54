// Package config loads the organization description (workers, environments
// and SOPs) from YAML and the runtime settings from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentorg/core"
	"github.com/hupe1980/agentorg/workflow"
)

// RoleConfig describes a worker's role.
type RoleConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// WorkerConfig describes one worker and, recursively, its subordinates.
type WorkerConfig struct {
	ID           string         `yaml:"id"`
	Name         string         `yaml:"name"`
	Role         RoleConfig     `yaml:"role"`
	Environment  string         `yaml:"environment"`
	Tools        []string       `yaml:"tools"`
	Subordinates []WorkerConfig `yaml:"subordinates"`
}

// EnvironmentConfig describes one environment and its initial state.
type EnvironmentConfig struct {
	ID           string         `yaml:"id"`
	Description  string         `yaml:"description"`
	InitialState map[string]any `yaml:"initial_state"`
}

// OrgConfig is the complete organization description.
type OrgConfig struct {
	Name         string              `yaml:"name"`
	Root         WorkerConfig        `yaml:"root"`
	Environments []EnvironmentConfig `yaml:"environments"`
	SOPs         []workflow.SOP      `yaml:"sops"`
}

// Load reads and parses an organization file.
func Load(path string) (OrgConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OrgConfig{}, fmt.Errorf("read org config: %w", err)
	}
	return Parse(data)
}

// Parse decodes an organization description. It only fails on malformed
// YAML; semantic problems are reported by Validate.
func Parse(data []byte) (OrgConfig, error) {
	var cfg OrgConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return OrgConfig{}, fmt.Errorf("parse org config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in example organization.
func Default() OrgConfig {
	cfg, err := Parse([]byte(DefaultOrgYAML))
	if err != nil {
		panic(err)
	}
	return cfg
}

// IssueKind classifies a configuration problem.
type IssueKind string

const (
	IssueNoRoot             IssueKind = "no_root"
	IssueEmptyName          IssueKind = "empty_name"
	IssueDuplicateWorker    IssueKind = "duplicate_worker"
	IssueCycle              IssueKind = "cycle"
	IssueUnknownEnvironment IssueKind = "unknown_environment"
	IssueDuplicateEnv       IssueKind = "duplicate_environment"
	IssueEmptySOP           IssueKind = "empty_sop"
)

// Issue is one configuration problem.
type Issue struct {
	Kind    IssueKind
	Subject string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Kind, i.Subject, i.Message)
}

// Issues is a list of configuration problems.
type Issues []Issue

func (is Issues) Error() string {
	parts := make([]string, len(is))
	for i, issue := range is {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// Err returns is as an error, or nil when empty.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return is
}

// FlatWorker is one entry of the flat worker table: hierarchy is expressed
// by names only.
type FlatWorker struct {
	ID           string
	Name         string
	Role         core.Role
	Environment  string
	Tools        []string
	Supervisor   string
	Subordinates []string
}

// Flatten walks the hierarchy depth first and returns the worker table plus
// every problem found. Duplicate names and unknown environments are reported
// but the worker is still returned; a worker repeating an ancestor's name
// forms a cycle and its branch is skipped.
func (c OrgConfig) Flatten() ([]FlatWorker, Issues) {
	var issues Issues

	envs := map[string]bool{}
	for _, e := range c.Environments {
		if envs[e.ID] {
			issues = append(issues, Issue{IssueDuplicateEnv, e.ID, "environment declared more than once"})
		}
		envs[e.ID] = true
	}
	for _, s := range c.SOPs {
		if len(s.Steps) == 0 {
			issues = append(issues, Issue{IssueEmptySOP, s.Name, "sop has no steps"})
		}
	}
	if c.Root.Name == "" {
		issues = append(issues, Issue{IssueNoRoot, c.Name, "organization has no root worker"})
		return nil, issues
	}

	var (
		out  []FlatWorker
		seen = map[string]bool{}
		walk func(w WorkerConfig, supervisor string, ancestors []string) bool
	)
	walk = func(w WorkerConfig, supervisor string, ancestors []string) bool {
		for _, a := range ancestors {
			if a == w.Name {
				issues = append(issues, Issue{IssueCycle, w.Name, "worker appears among its own supervisors; branch skipped"})
				return false
			}
		}
		if seen[w.Name] {
			issues = append(issues, Issue{IssueDuplicateWorker, w.Name, "worker name is not unique; last registration receives mail"})
		}
		seen[w.Name] = true
		if w.Environment != "" && !envs[w.Environment] {
			issues = append(issues, Issue{IssueUnknownEnvironment, w.Name, fmt.Sprintf("environment %q is not declared", w.Environment)})
		}

		fw := FlatWorker{
			ID:          w.ID,
			Name:        w.Name,
			Role:        core.Role{Name: w.Role.Name, Description: w.Role.Description},
			Environment: w.Environment,
			Tools:       append([]string(nil), w.Tools...),
			Supervisor:  supervisor,
		}
		if fw.ID == "" {
			fw.ID = w.Name
		}
		idx := len(out)
		out = append(out, fw)

		path := append(append([]string(nil), ancestors...), w.Name)
		for _, sub := range w.Subordinates {
			if sub.Name == "" {
				issues = append(issues, Issue{IssueEmptyName, w.Name, "subordinate without a name skipped"})
				continue
			}
			if walk(sub, w.Name, path) {
				out[idx].Subordinates = append(out[idx].Subordinates, sub.Name)
			}
		}
		return true
	}
	walk(c.Root, "", nil)
	return out, issues
}

// Validate reports every configuration problem.
func (c OrgConfig) Validate() Issues {
	_, issues := c.Flatten()
	return issues
}
