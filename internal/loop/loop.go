// Package loop implements the iteration orchestration engine: the
// bounded controller that repeatedly invokes an agent tool against a
// prompt, applying the retry policy, firing lifecycle hooks, appending
// to the session ledger, and evaluating stop conditions in a fixed
// order each iteration.
package loop

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/joss/looper/internal/adapter"
	"github.com/joss/looper/internal/config"
	"github.com/joss/looper/internal/exec"
	"github.com/joss/looper/internal/git"
	"github.com/joss/looper/internal/hook"
	"github.com/joss/looper/internal/logging"
	"github.com/joss/looper/internal/prompt"
	"github.com/joss/looper/internal/session"
	"github.com/joss/looper/internal/usage"
)

// Observer receives progress notifications. All methods are called
// from the loop goroutine; implementations must not block on the loop.
type Observer interface {
	IterationStart(iteration, maxIterations int)
	IterationEnd(rec session.IterationRecord)
}

// Deps are the controller's collaborators. Git and Index may be nil;
// the corresponding steps are skipped. Observer may be nil.
type Deps struct {
	Config   *config.Config
	Adapter  adapter.Adapter
	Runner   exec.Runner
	Hooks    *hook.Executor
	Git      *git.Client
	Index    *session.Index
	WorkDir  string
	Observer Observer
}

// Options are the per-run inputs.
type Options struct {
	PromptFile  string
	SessionName string
	Model       string

	// AutoCommit overrides the configured git.autoCommit when set.
	AutoCommit *bool
}

// Outcome is the controller's terminal result.
type Outcome struct {
	TotalIterations int
	StopReason      string
	Session         *session.Session
	Success         bool
	Elapsed         time.Duration
	Usage           usage.TokenUsage
}

// Controller drives the iteration loop.
type Controller struct {
	deps Deps
	log  *logging.Logger
}

// New creates a loop controller.
func New(deps Deps) *Controller {
	return &Controller{deps: deps, log: logging.New("loop")}
}

// Run executes the loop until a stop condition fires, the error policy
// terminates it, or maxIterations is reached. The session summary is
// written on every terminal path, including execution exceptions.
func (c *Controller) Run(ctx context.Context, opts Options) (Outcome, error) {
	cfg := c.deps.Config
	a := c.deps.Adapter

	strategy, err := ParseStrategy(cfg.ErrorHandling.Strategy)
	if err != nil {
		return Outcome{}, err
	}

	// Tool availability fails fast, before any session state exists.
	if !a.IsAvailable() {
		return Outcome{}, fmt.Errorf("tool %s is not available on PATH", a.Tool())
	}

	model := cfg.ResolveModel(opts.Model)

	sess, err := session.Resolve(cfg.SessionRoot, opts.PromptFile, opts.SessionName)
	if err != nil {
		return Outcome{}, err
	}
	log := c.log.WithSession(sess.Name)

	ledger := session.NewLedger(sess)
	startedAt := time.Now()
	if err := ledger.WriteHeader(session.Header{
		SessionName:   sess.Name,
		Tool:          a.Tool().String(),
		Model:         model,
		MaxIterations: cfg.MaxIterations,
		StartedAt:     startedAt,
		Resumed:       sess.Resumed,
	}); err != nil {
		return Outcome{}, err
	}

	if c.deps.Index != nil {
		if err := c.deps.Index.RecordRunStart(ctx, sess, a.Tool().String(), model, startedAt); err != nil {
			log.Warn("index_run_start_failed", nil, err)
		}
	}

	combinedPrompt, cleanup, err := prompt.Combine(sess.PromptPath, cfg.Prompt.SystemPreamble)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	command, err := a.BuildCommand(combinedPrompt, cfg.ToolConfigFor(a.Tool().String()), model)
	if err != nil {
		return Outcome{}, err
	}

	autoCommit := cfg.Git.AutoCommit
	if opts.AutoCommit != nil {
		autoCommit = *opts.AutoCommit
	}

	conds := StopConditions{
		MaxIterations: cfg.Stop.MaxIterationsEnabled(),
		OutputPattern: cfg.Stop.OutputPattern,
		StopHook:      cfg.Stop.Hook,
	}

	log.Info("loop_start", map[string]interface{}{
		"tool":           a.Tool().String(),
		"model":          model,
		"max_iterations": cfg.MaxIterations,
		"resumed":        sess.Resumed,
		"run_id":         sess.RunID,
	})

	var (
		total      usage.TokenUsage
		executed   int
		stopReason string
		success    = true
	)

	for i := 1; i <= cfg.MaxIterations; i++ {
		iterLog := log.WithIteration(i)
		env := hook.Env{
			Iteration:   i,
			SessionName: sess.Name,
			PromptPath:  sess.PromptPath,
			SessionDir:  sess.Dir,
			Tool:        a.Tool().String(),
			Model:       model,
		}

		if c.deps.Observer != nil {
			c.deps.Observer.IterationStart(i, cfg.MaxIterations)
		}
		c.deps.Hooks.Fire(ctx, hook.PreIteration, env)

		iterStart := time.Now()
		res, execErr := a.Execute(ctx, c.deps.WorkDir, command)
		if execErr != nil {
			executed = i
			success = false
			stopReason = fmt.Sprintf("Execution error on iteration %d: %v", i, execErr)
			iterLog.Error("agent_exec_failed", nil, execErr)
			break
		}

		retried := false
		if res.ExitCode != 0 && Decide(strategy, res.ExitCode, false) == DecisionRetry {
			iterLog.Warn("agent_failed_retrying", map[string]interface{}{"exit_code": res.ExitCode}, nil)
			c.deps.Hooks.Fire(ctx, hook.OnError, withExitCode(env, res.ExitCode))

			res2, retryErr := a.Execute(ctx, c.deps.WorkDir, command)
			if retryErr != nil {
				executed = i
				success = false
				stopReason = fmt.Sprintf("Execution error on iteration %d: %v", i, retryErr)
				iterLog.Error("agent_exec_failed", nil, retryErr)
				break
			}
			res = res2
			retried = true
		}

		status := session.StatusCompleted
		if res.ExitCode != 0 {
			if Decide(strategy, res.ExitCode, retried) == DecisionStop {
				c.deps.Hooks.Fire(ctx, hook.OnError, withExitCode(env, res.ExitCode))
				executed = i
				success = false
				stopReason = fmt.Sprintf("Error on iteration %d (exit code %d)", i, res.ExitCode)
				iterLog.Error("iteration_failed_stopping", map[string]interface{}{"exit_code": res.ExitCode}, nil)
				break
			}
			status = session.StatusFailed
			iterLog.Warn("iteration_failed_continuing", map[string]interface{}{"exit_code": res.ExitCode}, nil)
		} else if retried {
			status = session.StatusRetried
		}

		iterUsage := a.ParseUsage(res.Output)
		total = usage.Accumulate(total, iterUsage)
		commitMsg, hasCommitMsg := a.ParseCommitMessage(res.Output)

		rec := session.IterationRecord{
			Iteration: i,
			Timestamp: time.Now(),
			Status:    status,
			Duration:  time.Since(iterStart),
			ExitCode:  res.ExitCode,
			Usage:     iterUsage,
		}

		if c.deps.Git != nil && c.deps.Git.IsRepository(ctx) {
			if autoCommit && cfg.Git.Strategy == "per-iteration" {
				msg := commitMsg
				if !hasCommitMsg {
					msg = c.fallbackCommitMessage(sess.Name, i)
				}
				cr := c.deps.Git.Commit(ctx, git.CommitOptions{Message: msg, AddAll: cfg.Git.AddAllEnabled()})
				if cr.Success {
					rec.CommitMessage = msg
					rec.CommitHash = cr.CommitHash
				} else {
					iterLog.Info("commit_skipped", map[string]interface{}{"reason": cr.Err})
				}
			}
			if n, err := c.deps.Git.FilesChangedCount(ctx); err == nil {
				rec.FilesChanged = &n
			}
			if stat, err := c.deps.Git.DiffStat(ctx); err == nil && stat != "" {
				rec.DiffSummary = stat
			}
		} else if autoCommit {
			iterLog.Info("commit_skipped", map[string]interface{}{"reason": "not a git repository"})
		}

		if err := ledger.AppendIteration(rec); err != nil {
			return Outcome{}, fmt.Errorf("append iteration %d: %w", i, err)
		}
		if c.deps.Index != nil {
			if err := c.deps.Index.RecordIteration(ctx, sess.RunID, rec); err != nil {
				iterLog.Warn("index_iteration_failed", nil, err)
			}
		}

		c.deps.Hooks.Fire(ctx, hook.PostIteration, withExitCode(env, res.ExitCode))
		if c.deps.Observer != nil {
			c.deps.Observer.IterationEnd(rec)
		}
		executed = i
		iterLog.TimedEvent("iteration_end", iterStart, map[string]interface{}{
			"status":    string(status),
			"exit_code": res.ExitCode,
		})

		sr, evalErr := EvaluateStop(conds, StopContext{
			Iteration:     i,
			MaxIterations: cfg.MaxIterations,
			Output:        res.Output,
		})
		if evalErr != nil {
			iterLog.Warn("stop_eval_failed", nil, evalErr)
		}
		if !sr.Stop && conds.StopHook != "" {
			if hook.RunStopHook(ctx, c.deps.Runner, c.deps.WorkDir, conds.StopHook, withExitCode(env, res.ExitCode)) {
				sr = StopResult{Stop: true, Reason: "Stop hook signaled completion"}
			}
		}
		if sr.Stop {
			stopReason = sr.Reason
			break
		}
	}

	if stopReason == "" {
		// Only reachable when the max-iteration condition is disabled;
		// the for bound still caps the loop.
		stopReason = fmt.Sprintf("Reached max iterations (%d)", cfg.MaxIterations)
	}

	if success && autoCommit && cfg.Git.Strategy == "on-completion" &&
		c.deps.Git != nil && c.deps.Git.IsRepository(ctx) {
		msg := c.fallbackCommitMessage(sess.Name, executed)
		cr := c.deps.Git.Commit(ctx, git.CommitOptions{Message: msg, AddAll: cfg.Git.AddAllEnabled()})
		if !cr.Success {
			log.Info("commit_skipped", map[string]interface{}{"reason": cr.Err})
		}
	}

	summary := session.Summary{
		TotalIterations: executed,
		StopReason:      stopReason,
		Elapsed:         time.Since(startedAt),
		Usage:           total,
	}
	if err := ledger.WriteSummary(summary); err != nil {
		log.Error("summary_write_failed", nil, err)
	}
	if c.deps.Index != nil {
		if err := c.deps.Index.RecordRunEnd(ctx, sess.RunID, summary); err != nil {
			log.Warn("index_run_end_failed", nil, err)
		}
	}

	completeEnv := hook.Env{
		Iteration:       executed,
		SessionName:     sess.Name,
		PromptPath:      sess.PromptPath,
		SessionDir:      sess.Dir,
		Tool:            a.Tool().String(),
		Model:           model,
		StopReason:      stopReason,
		TotalIterations: &executed,
	}
	c.deps.Hooks.Fire(ctx, hook.OnComplete, completeEnv)

	log.TimedEvent("loop_end", startedAt, map[string]interface{}{
		"iterations":  executed,
		"stop_reason": stopReason,
		"success":     success,
	})

	return Outcome{
		TotalIterations: executed,
		StopReason:      stopReason,
		Session:         sess,
		Success:         success,
		Elapsed:         time.Since(startedAt),
		Usage:           total,
	}, nil
}

func withExitCode(env hook.Env, code int) hook.Env {
	env.ExitCode = &code
	return env
}

func (c *Controller) fallbackCommitMessage(sessionName string, iteration int) string {
	tmplText := c.deps.Config.Git.MessageTemplate
	if tmplText == "" {
		tmplText = "looper: iteration {{.Iteration}} ({{.Session}})"
	}
	tmpl, err := template.New("commit").Parse(tmplText)
	if err != nil {
		return fmt.Sprintf("looper: iteration %d (%s)", iteration, sessionName)
	}
	var sb strings.Builder
	data := struct {
		Session   string
		Iteration int
	}{sessionName, iteration}
	if err := tmpl.Execute(&sb, data); err != nil {
		return fmt.Sprintf("looper: iteration %d (%s)", iteration, sessionName)
	}
	return sb.String()
}
