// Package exec provides a testable command execution abstraction.
// Inject Runner instead of calling os/exec directly so the loop,
// hooks and git helpers can all be exercised against a mock.
package exec

import (
	"context"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"time"
)

// Result holds the outcome of a single command execution.
type Result struct {
	// ExitCode is the process exit code. -1 means the process never ran.
	ExitCode int

	// Output is the combined stdout+stderr.
	Output string

	// Duration is the wall-clock time the process took.
	Duration time.Duration
}

// Runner defines the interface for executing external commands.
type Runner interface {
	// Run executes an argv-style command in dir and returns combined output.
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)

	// RunShell executes a shell command string via "sh -c" in dir.
	// env entries are appended to the inherited environment. When echo is
	// non-nil the combined output is mirrored to it as it is produced.
	RunShell(ctx context.Context, dir, command string, env []string, echo io.Writer) (Result, error)

	// LookPath resolves a binary name on PATH.
	LookPath(name string) (string, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct{}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes an argv-style command and returns combined output.
func (r *OSRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	start := time.Now()
	out, err := cmd.CombinedOutput()
	res := Result{
		ExitCode: exitCode(cmd, err),
		Output:   string(out),
		Duration: time.Since(start),
	}
	if _, ok := err.(*osexec.ExitError); ok {
		// Nonzero exit is reported through ExitCode, not as an error.
		err = nil
	}
	return res, err
}

// RunShell executes a shell command string via "sh -c".
func (r *OSRunner) RunShell(ctx context.Context, dir, command string, env []string, echo io.Writer) (Result, error) {
	cmd := osexec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var sb strings.Builder
	var w io.Writer = &sb
	if echo != nil {
		w = io.MultiWriter(&sb, echo)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	err := cmd.Run()
	res := Result{
		ExitCode: exitCode(cmd, err),
		Output:   sb.String(),
		Duration: time.Since(start),
	}
	if _, ok := err.(*osexec.ExitError); ok {
		err = nil
	}
	return res, err
}

// LookPath resolves a binary name on PATH.
func (r *OSRunner) LookPath(name string) (string, error) {
	return osexec.LookPath(name)
}

func exitCode(cmd *osexec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	// Calls records all command invocations in order.
	Calls []MockCall

	// Responses maps a command key to its response. Argv commands are
	// keyed by "name arg1 arg2 ...", shell commands by the command string.
	Responses map[string]MockResponse

	// Queue, when non-empty, is consumed front-to-back by RunShell before
	// Responses is consulted. Lets tests script fail-then-succeed sequences.
	Queue []MockResponse

	// Paths maps binary names for LookPath. A missing entry resolves to
	// the name itself; map to "" to simulate a binary that is not installed.
	Paths map[string]string
}

// MockCall records a single command invocation.
type MockCall struct {
	Dir     string
	Command string
	Env     []string
	Shell   bool
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	Output   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// AddResponse sets the response for a command key.
func (m *MockRunner) AddResponse(key string, resp MockResponse) {
	m.Responses[key] = resp
}

// Enqueue appends a scripted shell response.
func (m *MockRunner) Enqueue(resp MockResponse) {
	m.Queue = append(m.Queue, resp)
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	key := name
	if len(args) > 0 {
		key = name + " " + strings.Join(args, " ")
	}
	m.Calls = append(m.Calls, MockCall{Dir: dir, Command: key})
	resp := m.Responses[key]
	return Result{ExitCode: resp.ExitCode, Output: resp.Output, Duration: resp.Duration}, resp.Err
}

func (m *MockRunner) RunShell(ctx context.Context, dir, command string, env []string, echo io.Writer) (Result, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Command: command, Env: env, Shell: true})
	var resp MockResponse
	if len(m.Queue) > 0 {
		resp = m.Queue[0]
		m.Queue = m.Queue[1:]
	} else {
		resp = m.Responses[command]
	}
	if echo != nil {
		io.WriteString(echo, resp.Output)
	}
	return Result{ExitCode: resp.ExitCode, Output: resp.Output, Duration: resp.Duration}, resp.Err
}

func (m *MockRunner) LookPath(name string) (string, error) {
	if m.Paths != nil {
		if p, ok := m.Paths[name]; ok {
			if p == "" {
				return "", osexec.ErrNotFound
			}
			return p, nil
		}
	}
	return name, nil
}

// ShellCalls returns the shell commands invoked, in order.
func (m *MockRunner) ShellCalls() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Shell {
			out = append(out, c.Command)
		}
	}
	return out
}
