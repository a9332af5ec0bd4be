// Package git wraps the git subcommands the loop needs: repository
// detection, status, commit, and change summaries. All failures here
// are reported, never fatal; the loop treats git as best-effort.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/joss/looper/internal/exec"
	"github.com/joss/looper/internal/logging"
)

// Client runs git commands in a fixed working directory.
type Client struct {
	runner exec.Runner
	dir    string
	log    *logging.Logger
}

// New creates a git client for dir.
func New(runner exec.Runner, dir string) *Client {
	return &Client{runner: runner, dir: dir, log: logging.New("git")}
}

// Status summarizes the working tree.
type Status struct {
	HasChanges bool
	Staged     int
	Unstaged   int
	Untracked  int
}

// CommitResult reports the outcome of a commit attempt.
type CommitResult struct {
	Success    bool
	CommitHash string
	Err        string
}

// CommitOptions configures a commit.
type CommitOptions struct {
	Message string
	AddAll  bool
}

// IsRepository reports whether dir is inside a git work tree.
func (c *Client) IsRepository(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, c.dir, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil && res.ExitCode == 0 && strings.TrimSpace(res.Output) == "true"
}

// GetStatus parses `git status --porcelain` into counts.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	res, err := c.runner.Run(ctx, c.dir, "git", "status", "--porcelain")
	if err != nil {
		return Status{}, fmt.Errorf("git status: %w", err)
	}
	if res.ExitCode != 0 {
		return Status{}, fmt.Errorf("git status exited %d: %s", res.ExitCode, strings.TrimSpace(res.Output))
	}

	var st Status
	for _, line := range strings.Split(res.Output, "\n") {
		if len(line) < 2 {
			continue
		}
		st.HasChanges = true
		x, y := line[0], line[1]
		switch {
		case x == '?' && y == '?':
			st.Untracked++
		default:
			if x != ' ' {
				st.Staged++
			}
			if y != ' ' {
				st.Unstaged++
			}
		}
	}
	return st, nil
}

// Commit stages (optionally) and commits, returning the new HEAD hash
// on success. Nothing-to-commit is reported as a failed CommitResult,
// not an error.
func (c *Client) Commit(ctx context.Context, opts CommitOptions) CommitResult {
	if opts.AddAll {
		res, err := c.runner.Run(ctx, c.dir, "git", "add", "-A")
		if err != nil || res.ExitCode != 0 {
			return CommitResult{Err: "git add failed: " + strings.TrimSpace(res.Output)}
		}
	}

	res, err := c.runner.Run(ctx, c.dir, "git", "commit", "-m", opts.Message)
	if err != nil {
		return CommitResult{Err: err.Error()}
	}
	if res.ExitCode != 0 {
		c.log.Info("commit_skipped", map[string]interface{}{"output": strings.TrimSpace(res.Output)})
		return CommitResult{Err: strings.TrimSpace(res.Output)}
	}

	hash, err := c.head(ctx)
	if err != nil {
		return CommitResult{Success: true}
	}
	return CommitResult{Success: true, CommitHash: hash}
}

func (c *Client) head(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.dir, "git", "rev-parse", "--short", "HEAD")
	if err != nil || res.ExitCode != 0 {
		return "", fmt.Errorf("git rev-parse HEAD failed")
	}
	return strings.TrimSpace(res.Output), nil
}

// DiffStat returns the summary line of `git diff HEAD --stat`,
// e.g. "3 files changed, 40 insertions(+), 2 deletions(-)".
func (c *Client) DiffStat(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.dir, "git", "diff", "HEAD", "--stat")
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("git diff exited %d", res.ExitCode)
	}
	lines := strings.Split(strings.TrimRight(res.Output, "\n"), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return "", nil
	}
	return last, nil
}

// FilesChangedCount counts paths touched in the working tree relative
// to HEAD, including untracked files.
func (c *Client) FilesChangedCount(ctx context.Context) (int, error) {
	res, err := c.runner.Run(ctx, c.dir, "git", "status", "--porcelain")
	if err != nil {
		return 0, fmt.Errorf("git status: %w", err)
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("git status exited %d", res.ExitCode)
	}
	count := 0
	for _, line := range strings.Split(res.Output, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count, nil
}
