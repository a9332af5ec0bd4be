// Package config provides layered configuration for looper.
//
// A run's configuration is produced by one explicit merge:
// defaults, then an optional looper.yaml file, then CLI overrides.
// The result is a single immutable value; there is no shared
// mutable configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "looper.yaml"

// Config is the validated configuration for one run.
type Config struct {
	DefaultTool   string                `yaml:"defaultTool"`
	Model         string                `yaml:"model"`
	MaxIterations int                   `yaml:"maxIterations"`
	SessionRoot   string                `yaml:"sessionRoot"`
	Tools         map[string]ToolConfig `yaml:"tools"`
	Stop          StopConfig            `yaml:"stop"`
	Hooks         HooksConfig           `yaml:"hooks"`
	ErrorHandling ErrorConfig           `yaml:"errorHandling"`
	Git           GitConfig             `yaml:"git"`
	Prompt        PromptConfig          `yaml:"prompt"`

	// Models maps short aliases to full model names per tool.
	Models map[string]string `yaml:"models"`
}

// ToolConfig configures one agent tool.
type ToolConfig struct {
	// Binary is the executable checked for availability. Empty means
	// the tool's default binary.
	Binary string `yaml:"binary"`

	// Command is a template for the shell command to run, rendered with
	// {{.PromptPath}} and {{.Model}}. Empty means the tool's default.
	Command string `yaml:"command"`
}

// StopConfig configures the stop conditions.
type StopConfig struct {
	// OnMaxIterations gates the max-iteration condition. Nil means true.
	OnMaxIterations *bool `yaml:"onMaxIterations"`

	// OutputPattern is a regular expression tested against each
	// iteration's combined output. Empty disables the condition.
	OutputPattern string `yaml:"outputPattern"`

	// Hook is a shell command executed after each iteration; exit code 0
	// signals stop.
	Hook string `yaml:"hook"`
}

// MaxIterationsEnabled reports whether the max-iteration stop condition
// is on (the default).
func (s StopConfig) MaxIterationsEnabled() bool {
	return s.OnMaxIterations == nil || *s.OnMaxIterations
}

// HooksConfig holds the lifecycle hook commands. Empty string means
// the hook point is unset.
type HooksConfig struct {
	PreIteration  string `yaml:"preIteration"`
	PostIteration string `yaml:"postIteration"`
	OnError       string `yaml:"onError"`
	OnComplete    string `yaml:"onComplete"`
}

// ErrorConfig configures failure handling for agent executions.
type ErrorConfig struct {
	// Strategy is one of "stop", "retry-once", "continue".
	Strategy string `yaml:"strategy"`

	// MaxRetries is accepted for file compatibility but currently inert:
	// the retry policy performs at most one retry per iteration.
	MaxRetries int `yaml:"maxRetries"`
}

// GitConfig configures auto-commit behavior.
type GitConfig struct {
	AutoCommit bool `yaml:"autoCommit"`

	// Strategy is "per-iteration" or "on-completion".
	Strategy string `yaml:"strategy"`

	// AddAll stages all changes before committing. Nil means true.
	AddAll *bool `yaml:"addAll"`

	// MessageTemplate is the fallback commit message, rendered with
	// {{.Session}} and {{.Iteration}}.
	MessageTemplate string `yaml:"messageTemplate"`
}

// AddAllEnabled reports whether commits stage all changes (the default).
func (g GitConfig) AddAllEnabled() bool {
	return g.AddAll == nil || *g.AddAll
}

// PromptConfig configures prompt handling.
type PromptConfig struct {
	// DiscoveryGlobs are tried in order when no prompt file is given.
	DiscoveryGlobs []string `yaml:"discoveryGlobs"`

	// SystemPreamble is prepended to the user prompt in the combined
	// prompt file handed to the agent.
	SystemPreamble string `yaml:"systemPreamble"`
}

// Overrides are the CLI-level settings layered on top of the file.
// Nil/empty fields leave the lower layer untouched.
type Overrides struct {
	Tool          string
	Model         string
	MaxIterations *int
	AutoCommit    *bool
	StopPattern   string
	Strategy      string
}

// Defaults returns the base configuration layer.
func Defaults() *Config {
	return &Config{
		DefaultTool:   "claude",
		MaxIterations: 10,
		SessionRoot:   ".looper",
		Tools:         map[string]ToolConfig{},
		ErrorHandling: ErrorConfig{Strategy: "retry-once", MaxRetries: 1},
		Git: GitConfig{
			Strategy:        "per-iteration",
			MessageTemplate: "looper: iteration {{.Iteration}} ({{.Session}})",
		},
		Prompt: PromptConfig{
			DiscoveryGlobs: []string{"PROMPT.md", "prompts/**/*.md"},
		},
		Models: map[string]string{},
	}
}

// Load produces one immutable config: defaults, then the YAML file at
// path (or the first of ./looper.yaml and ~/.looper/looper.yaml when
// path is empty), then overrides. The result is validated.
func Load(path string, ov Overrides) (*Config, error) {
	cfg := Defaults()

	resolved, explicit := path, path != ""
	if !explicit {
		resolved = findConfigFile()
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			if explicit {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", resolved, err)
		}
	}

	applyOverrides(cfg, ov)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.Tool != "" {
		cfg.DefaultTool = ov.Tool
	}
	if ov.Model != "" {
		cfg.Model = ov.Model
	}
	if ov.MaxIterations != nil {
		cfg.MaxIterations = *ov.MaxIterations
	}
	if ov.AutoCommit != nil {
		cfg.Git.AutoCommit = *ov.AutoCommit
	}
	if ov.StopPattern != "" {
		cfg.Stop.OutputPattern = ov.StopPattern
	}
	if ov.Strategy != "" {
		cfg.ErrorHandling.Strategy = ov.Strategy
	}
}

func findConfigFile() string {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	p := filepath.Join(Home(), ConfigFileName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("maxIterations must be >= 1, got %d", c.MaxIterations)
	}
	switch c.ErrorHandling.Strategy {
	case "stop", "retry-once", "continue":
	default:
		return fmt.Errorf("unknown error strategy %q", c.ErrorHandling.Strategy)
	}
	switch c.Git.Strategy {
	case "per-iteration", "on-completion":
	default:
		return fmt.Errorf("unknown git commit strategy %q", c.Git.Strategy)
	}
	return nil
}

// ResolveModel maps a model alias through the registry; unknown names
// pass through unchanged.
func (c *Config) ResolveModel(name string) string {
	if name == "" {
		name = c.Model
	}
	if full, ok := c.Models[name]; ok {
		return full
	}
	return name
}

// ToolConfigFor returns the per-tool settings, zero value when unset.
func (c *Config) ToolConfigFor(tool string) ToolConfig {
	return c.Tools[tool]
}

// Home returns the looper home directory (~/.looper).
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".looper")
}
