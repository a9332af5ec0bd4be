// Package hook invokes user-configured lifecycle shell commands.
//
// Hooks are observational only: their exit status and output are
// reported to the caller but never gate the loop. The one exception is
// the dedicated stop hook, a distinct mechanism whose zero exit code
// means "stop the loop".
package hook

import (
	"context"
	"strconv"

	"github.com/joss/looper/internal/config"
	"github.com/joss/looper/internal/exec"
	"github.com/joss/looper/internal/logging"
)

// Point identifies a lifecycle hook point.
type Point string

const (
	PreIteration  Point = "preIteration"
	PostIteration Point = "postIteration"
	OnError       Point = "onError"
	OnComplete    Point = "onComplete"
)

// Env is the environment contract passed to every hook. The base
// fields are always set; ExitCode is set for postIteration and
// onError, StopReason and TotalIterations for onComplete.
type Env struct {
	Iteration   int
	SessionName string
	PromptPath  string
	SessionDir  string
	Tool        string
	Model       string

	ExitCode        *int
	StopReason      string
	TotalIterations *int
}

// Vars renders the contract as environment variable assignments.
func (e Env) Vars() []string {
	vars := []string{
		"LOOPER_ITERATION=" + strconv.Itoa(e.Iteration),
		"LOOPER_SESSION=" + e.SessionName,
		"LOOPER_PROMPT_PATH=" + e.PromptPath,
		"LOOPER_SESSION_DIR=" + e.SessionDir,
		"LOOPER_TOOL=" + e.Tool,
		"LOOPER_MODEL=" + e.Model,
	}
	if e.ExitCode != nil {
		vars = append(vars, "LOOPER_EXIT_CODE="+strconv.Itoa(*e.ExitCode))
	}
	if e.StopReason != "" {
		vars = append(vars, "LOOPER_STOP_REASON="+e.StopReason)
	}
	if e.TotalIterations != nil {
		vars = append(vars, "LOOPER_TOTAL_ITERATIONS="+strconv.Itoa(*e.TotalIterations))
	}
	return vars
}

// Result reports a hook invocation. Ran is false when no command is
// configured for the point or the spawn failed.
type Result struct {
	Ran      bool
	ExitCode int
	Output   string
}

// Executor runs the configured lifecycle hooks.
type Executor struct {
	runner   exec.Runner
	commands map[Point]string
	workDir  string
	log      *logging.Logger
}

// NewExecutor creates a hook executor from the hook configuration.
func NewExecutor(runner exec.Runner, cfg config.HooksConfig, workDir string) *Executor {
	return &Executor{
		runner: runner,
		commands: map[Point]string{
			PreIteration:  cfg.PreIteration,
			PostIteration: cfg.PostIteration,
			OnError:       cfg.OnError,
			OnComplete:    cfg.OnComplete,
		},
		workDir: workDir,
		log:     logging.New("hook"),
	}
}

// Fire invokes the hook for a point, if one is configured. It never
// returns an error: an unset hook is a no-op and a spawn failure is
// logged and reported as not-ran.
func (x *Executor) Fire(ctx context.Context, point Point, env Env) Result {
	command := x.commands[point]
	if command == "" {
		return Result{}
	}

	res, err := x.runner.RunShell(ctx, x.workDir, command, env.Vars(), nil)
	if err != nil {
		x.log.Warn("hook_spawn_failed", map[string]interface{}{"point": string(point)}, err)
		return Result{}
	}
	if res.ExitCode != 0 {
		x.log.Warn("hook_nonzero_exit", map[string]interface{}{
			"point":     string(point),
			"exit_code": res.ExitCode,
		}, nil)
	}
	return Result{Ran: true, ExitCode: res.ExitCode, Output: res.Output}
}

// RunStopHook executes the stop-hook command; a zero exit code means
// "stop". A spawn failure is never mistaken for a stop signal.
func RunStopHook(ctx context.Context, runner exec.Runner, workDir, command string, env Env) bool {
	if command == "" {
		return false
	}
	res, err := runner.RunShell(ctx, workDir, command, env.Vars(), nil)
	if err != nil {
		logging.New("hook").Warn("stop_hook_spawn_failed", nil, err)
		return false
	}
	return res.ExitCode == 0
}
