// Package adapter maps each supported agent tool to its command line
// and output parsing. The tool set is a closed enumeration; the single
// exhaustive mapping lives in ForTool.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/joss/looper/internal/config"
	"github.com/joss/looper/internal/exec"
	"github.com/joss/looper/internal/usage"
)

// Tool identifies a supported agent tool.
type Tool int

const (
	ToolClaude Tool = iota
	ToolCodex
	ToolOpenCode
	ToolCustom
)

var toolNames = map[Tool]string{
	ToolClaude:   "claude",
	ToolCodex:    "codex",
	ToolOpenCode: "opencode",
	ToolCustom:   "custom",
}

func (t Tool) String() string {
	if n, ok := toolNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tool(%d)", int(t))
}

// ParseTool resolves a tool name to its identifier.
func ParseTool(name string) (Tool, error) {
	for t, n := range toolNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tool %q (supported: claude, codex, opencode, custom)", name)
}

// Adapter is what the loop controller needs from an agent tool.
type Adapter interface {
	// Tool returns the tool identifier.
	Tool() Tool

	// IsAvailable reports whether the tool's binary is on PATH.
	IsAvailable() bool

	// BuildCommand renders the shell command for one agent execution.
	BuildCommand(promptPath string, tc config.ToolConfig, model string) (string, error)

	// Execute runs the command and captures combined output.
	Execute(ctx context.Context, workDir, command string) (exec.Result, error)

	// ParseUsage extracts a token-usage snapshot from agent output.
	// Best-effort: absent fields stay nil.
	ParseUsage(output string) usage.TokenUsage

	// ParseCommitMessage extracts a structured commit message from agent
	// output, if the agent emitted one.
	ParseCommitMessage(output string) (string, bool)
}

// ForTool returns the adapter for a tool identifier. This is the one
// exhaustive tool table; adding a Tool constant without a case here is
// a bug caught immediately in tests.
func ForTool(t Tool, runner exec.Runner) Adapter {
	switch t {
	case ToolClaude:
		return &shellAdapter{
			tool:           ToolClaude,
			binary:         "claude",
			defaultCommand: `claude -p --dangerously-skip-permissions "$(cat {{.PromptPath}})"{{if .Model}} --model {{.Model}}{{end}}`,
			usagePatterns:  claudeUsagePatterns,
			runner:         runner,
		}
	case ToolCodex:
		return &shellAdapter{
			tool:           ToolCodex,
			binary:         "codex",
			defaultCommand: `codex exec --full-auto "$(cat {{.PromptPath}})"{{if .Model}} --model {{.Model}}{{end}}`,
			usagePatterns:  codexUsagePatterns,
			runner:         runner,
		}
	case ToolOpenCode:
		return &shellAdapter{
			tool:           ToolOpenCode,
			binary:         "opencode",
			defaultCommand: `opencode run "$(cat {{.PromptPath}})"{{if .Model}} --model {{.Model}}{{end}}`,
			usagePatterns:  genericUsagePatterns,
			runner:         runner,
		}
	case ToolCustom:
		return &shellAdapter{
			tool:          ToolCustom,
			usagePatterns: genericUsagePatterns,
			runner:        runner,
		}
	default:
		panic(fmt.Sprintf("adapter: no mapping for %v", t))
	}
}

// shellAdapter runs an agent tool as a shell command.
type shellAdapter struct {
	tool           Tool
	binary         string
	defaultCommand string
	usagePatterns  []usagePattern
	runner         exec.Runner
}

type commandData struct {
	PromptPath string
	Model      string
}

func (a *shellAdapter) Tool() Tool { return a.tool }

func (a *shellAdapter) IsAvailable() bool {
	if a.binary == "" {
		// Custom tools declare their binary in config; availability is
		// checked at command-build time instead.
		return true
	}
	_, err := a.runner.LookPath(a.binary)
	return err == nil
}

func (a *shellAdapter) BuildCommand(promptPath string, tc config.ToolConfig, model string) (string, error) {
	tmplText := a.defaultCommand
	if tc.Command != "" {
		tmplText = tc.Command
	}
	if tmplText == "" {
		return "", fmt.Errorf("tool %s has no command template configured", a.tool)
	}
	if tc.Binary != "" {
		if _, err := a.runner.LookPath(tc.Binary); err != nil {
			return "", fmt.Errorf("tool binary %q not found: %w", tc.Binary, err)
		}
	}

	tmpl, err := template.New("command").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parse command template for %s: %w", a.tool, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, commandData{PromptPath: promptPath, Model: model}); err != nil {
		return "", fmt.Errorf("render command for %s: %w", a.tool, err)
	}
	return sb.String(), nil
}

func (a *shellAdapter) Execute(ctx context.Context, workDir, command string) (exec.Result, error) {
	return a.runner.RunShell(ctx, workDir, command, nil, nil)
}

func (a *shellAdapter) ParseUsage(output string) usage.TokenUsage {
	return parseUsage(output, a.usagePatterns)
}

func (a *shellAdapter) ParseCommitMessage(output string) (string, bool) {
	return parseCommitMessage(output)
}
