package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HookSpec is one lifecycle hook as read from a project config file.
// Event names match the CLI's "event:command" vocabulary
// (startup-before, startup-after, reload-before, reload-after,
// restart-before, restart-after, test).
type HookSpec struct {
	Event      string `yaml:"event"`
	Repl       string `yaml:"repl,omitempty"`
	Shell      string `yaml:"shell,omitempty"`
	Background bool   `yaml:"background,omitempty"`
}

// HookList supports two YAML forms per entry: a plain scalar string
// "event:command" (an in-REPL command by default), or a mapping giving
// full control over repl/shell/background.
type HookList []HookSpec

// UnmarshalYAML handles both scalar strings and mapping nodes in a YAML
// sequence.
func (hl *HookList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return &yaml.TypeError{Errors: []string{"hooks: expected sequence"}}
	}
	var result HookList
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			event, command, ok := strings.Cut(item.Value, ":")
			if !ok {
				return &yaml.TypeError{Errors: []string{fmt.Sprintf("hooks: %q must be \"event:command\"", item.Value)}}
			}
			result = append(result, HookSpec{Event: strings.TrimSpace(event), Repl: strings.TrimSpace(command)})
		case yaml.MappingNode:
			var spec HookSpec
			if err := item.Decode(&spec); err != nil {
				return err
			}
			result = append(result, spec)
		default:
			return &yaml.TypeError{Errors: []string{"hooks: entry must be a string or mapping"}}
		}
	}
	*hl = result
	return nil
}

// FileConfig is the optional project-level ".ghcisup.yaml" configuration.
// Every field mirrors a CLI flag; CLI flags that were explicitly set take
// precedence over the file when both are present.
type FileConfig struct {
	Command []string `yaml:"command,omitempty"`

	ErrorFile  string `yaml:"error-file,omitempty"`
	EnableEval bool   `yaml:"enable-eval,omitempty"`

	RestartGlob []string `yaml:"restart-glob,omitempty"`
	ReloadGlob  []string `yaml:"reload-glob,omitempty"`

	NoInterruptReloads bool `yaml:"no-interrupt-reloads,omitempty"`
	Clear              bool `yaml:"clear,omitempty"`
	TUI                bool `yaml:"tui,omitempty"`

	Watch []string `yaml:"watch,omitempty"`

	Hooks HookList `yaml:"hooks,omitempty"`
}

// LoadFile reads and parses a ".ghcisup.yaml" project config from path. A
// missing file is not an error: it returns a zero-value FileConfig, since
// every field is optional and CLI flags alone are sufficient.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &fc, nil
}
