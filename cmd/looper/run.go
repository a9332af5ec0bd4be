// Package main loop execution command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joss/looper/internal/adapter"
	"github.com/joss/looper/internal/config"
	"github.com/joss/looper/internal/exec"
	"github.com/joss/looper/internal/git"
	"github.com/joss/looper/internal/hook"
	"github.com/joss/looper/internal/loop"
	"github.com/joss/looper/internal/prompt"
	"github.com/joss/looper/internal/render"
	"github.com/joss/looper/internal/session"
)

func runCmd() *cobra.Command {
	var (
		configPath    string
		toolName      string
		model         string
		maxIterations int
		sessionName   string
		stopPattern   string
		strategy      string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt-file]",
		Short: "Run the iteration loop against a prompt file",
		Long: `Run an agent tool in a bounded loop against a prompt file.

With no prompt file, discovery globs from the config locate one
(PROMPT.md, prompts/**/*.md by default). The session name derives from
the prompt filename; an existing session directory is resumed.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ov := config.Overrides{
				Tool:        toolName,
				Model:       model,
				StopPattern: stopPattern,
				Strategy:    strategy,
			}
			if cmd.Flags().Changed("max-iterations") {
				ov.MaxIterations = &maxIterations
			}
			if cmd.Flags().Changed("auto-commit") {
				v, _ := cmd.Flags().GetBool("auto-commit")
				ov.AutoCommit = &v
			}

			cfg, err := config.Load(configPath, ov)
			if err != nil {
				exitOnError(err)
			}

			workDir, err := os.Getwd()
			if err != nil {
				exitOnError(err)
			}

			promptFile := ""
			if len(args) > 0 {
				promptFile = args[0]
			} else {
				promptFile, err = prompt.Discover(workDir, cfg.Prompt.DiscoveryGlobs)
				if err != nil {
					exitOnError(fmt.Errorf("no prompt file given and none discovered: %w", err))
				}
			}

			tool, err := adapter.ParseTool(cfg.DefaultTool)
			if err != nil {
				exitOnError(err)
			}

			runner := exec.NewOSRunner()
			r := render.New(pretty)

			var idx *session.Index
			if idx, err = session.OpenIndex(config.Home()); err != nil {
				// The loop degrades gracefully without the index.
				fmt.Fprintf(os.Stderr, "Warning: run index unavailable: %v\n", err)
				idx = nil
			} else {
				defer idx.Close()
			}

			ctrl := loop.New(loop.Deps{
				Config:   cfg,
				Adapter:  adapter.ForTool(tool, runner),
				Runner:   runner,
				Hooks:    hook.NewExecutor(runner, cfg.Hooks, workDir),
				Git:      git.New(runner, workDir),
				Index:    idx,
				WorkDir:  workDir,
				Observer: &progressObserver{renderer: r},
			})

			name := sessionName
			if name == "" {
				if derived, err := session.DeriveName(promptFile); err == nil {
					name = derived
				}
			}
			resumed := false
			if name != "" {
				_, statErr := os.Stat(filepath.Join(cfg.SessionRoot, name))
				resumed = statErr == nil
			}
			fmt.Print(r.RunBanner(name, cfg.DefaultTool, cfg.ResolveModel(model),
				cfg.MaxIterations, resumed))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			outcome, err := ctrl.Run(ctx, loop.Options{
				PromptFile:  promptFile,
				SessionName: sessionName,
				Model:       model,
				AutoCommit:  ov.AutoCommit,
			})
			if err != nil {
				exitOnError(err)
			}

			fmt.Print(r.Summary(outcome.TotalIterations, outcome.StopReason,
				outcome.Elapsed, outcome.Usage))
			if !outcome.Success {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (default: looper.yaml, ~/.looper/looper.yaml)")
	cmd.Flags().StringVarP(&toolName, "tool", "t", "", "Agent tool: claude, codex, opencode, custom")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model name or alias")
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 0, "Iteration budget")
	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "Session name (default: derived from prompt filename)")
	cmd.Flags().Bool("auto-commit", false, "Commit working tree changes each iteration")
	cmd.Flags().StringVar(&stopPattern, "stop-pattern", "", "Regex over agent output that stops the loop")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Error strategy: stop, retry-once, continue")

	return cmd
}

// progressObserver prints per-iteration progress from loop callbacks.
type progressObserver struct {
	renderer *render.Renderer
}

func (o *progressObserver) IterationStart(iteration, maxIterations int) {
	fmt.Print(o.renderer.IterationStart(iteration, maxIterations))
}

func (o *progressObserver) IterationEnd(rec session.IterationRecord) {
	fmt.Print(o.renderer.IterationEnd(rec))
}
