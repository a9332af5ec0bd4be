// Package prompt handles prompt-file plumbing: combining the user
// prompt with the system preamble into a temporary file, discovering a
// prompt file when none is given, and bootstrapping the session
// checklist.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPreamble is prepended when no systemPreamble is configured.
const DefaultPreamble = `You are running inside an automated iteration loop.
Work on the task in small, self-contained steps. When the task is fully
complete, print a line containing "## COMPLETE". To name the commit for
this iteration, print a line "COMMIT_MSG: <message>".`

// Combine writes the preamble and the user prompt into one temporary
// file and returns its path plus a cleanup function. The cleanup is
// safe to call more than once and must run on every loop exit path.
func Combine(promptPath, preamble string) (string, func(), error) {
	userPrompt, err := os.ReadFile(promptPath)
	if err != nil {
		return "", nil, fmt.Errorf("read prompt: %w", err)
	}
	if preamble == "" {
		preamble = DefaultPreamble
	}

	f, err := os.CreateTemp("", "looper-prompt-*.md")
	if err != nil {
		return "", nil, fmt.Errorf("create combined prompt: %w", err)
	}

	content := strings.TrimRight(preamble, "\n") + "\n\n" + string(userPrompt)
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write combined prompt: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close combined prompt: %w", err)
	}

	path := f.Name()
	removed := false
	cleanup := func() {
		if !removed {
			os.Remove(path)
			removed = true
		}
	}
	return path, cleanup, nil
}

// errFound terminates a glob walk early once a file matched.
var errFound = fmt.Errorf("prompt found")

// Discover locates a prompt file under root by trying the glob
// patterns in order. Within a pattern, matches are returned in the
// glob walk order and the first wins.
func Discover(root string, globs []string) (string, error) {
	fsys := os.DirFS(root)
	for _, pattern := range globs {
		var found string
		err := doublestar.GlobWalk(fsys, pattern, func(path string, d os.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			found = path
			return errFound
		})
		if err != nil && err != errFound {
			continue
		}
		if found != "" {
			return filepath.Join(root, found), nil
		}
	}
	return "", fmt.Errorf("no prompt file found (tried: %s)", strings.Join(globs, ", "))
}

// ChecklistSkeleton returns the initial checklist.md content for a new
// session. The loop only reads and writes this file; its content is
// maintained by the agent.
func ChecklistSkeleton(sessionName string) string {
	return fmt.Sprintf(`# Checklist — %s

Created %s. Maintained by the agent; check items off as they complete.

- [ ] Read the prompt and plan the work
`, sessionName, time.Now().UTC().Format("2006-01-02"))
}
