// Package session owns the on-disk session folder and its artifacts:
// the verbatim prompt copy, the append-only progress ledger, and the
// checklist. A session directory that already exists is resumed, never
// recreated.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/joss/looper/internal/prompt"
)

// ErrNameRequired is returned when the prompt filename is too generic
// to derive a session name from and no explicit name was supplied.
var ErrNameRequired = errors.New("session name required: prompt filename is too generic, pass an explicit name")

// Session identifies one run: its directory and artifact paths.
type Session struct {
	Name          string
	Dir           string
	PromptPath    string
	ProgressPath  string
	ChecklistPath string
	Resumed       bool

	// RunID is a fresh ulid per process run, linking ledger entries to
	// the run index.
	RunID string
}

// genericStems are prompt filenames that carry no session identity.
var genericStems = map[string]bool{
	"prompt": true,
	"plan":   true,
	"task":   true,
	"tasks":  true,
	"todo":   true,
}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9-]+`)

// DeriveName derives a session name from the prompt filename.
// Returns ErrNameRequired for generic stems like "prompt.md".
func DeriveName(promptFile string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(promptFile), filepath.Ext(promptFile))
	name := nameSanitizer.ReplaceAllString(strings.ToLower(stem), "-")
	name = strings.Trim(name, "-")
	if name == "" || genericStems[name] {
		return "", ErrNameRequired
	}
	return name, nil
}

// Resolve creates or resumes the session for a prompt file under root.
// The prompt file must exist; a missing prompt fails fast before any
// directory is created. When the session directory already exists it
// is resumed and the original prompt copy is kept untouched.
func Resolve(root, promptFile, explicitName string) (*Session, error) {
	if _, err := os.Stat(promptFile); err != nil {
		return nil, fmt.Errorf("prompt file: %w", err)
	}

	name := explicitName
	if name == "" {
		var err error
		name, err = DeriveName(promptFile)
		if err != nil {
			return nil, err
		}
	}

	dir := filepath.Join(root, name)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve session dir: %w", err)
	}

	s := &Session{
		Name:          name,
		Dir:           absDir,
		PromptPath:    filepath.Join(absDir, "prompt.md"),
		ProgressPath:  filepath.Join(absDir, "progress.md"),
		ChecklistPath: filepath.Join(absDir, "checklist.md"),
		RunID:         ulid.Make().String(),
	}

	if _, err := os.Stat(absDir); err == nil {
		s.Resumed = true
		return s, nil
	}

	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := copyFile(promptFile, s.PromptPath); err != nil {
		return nil, fmt.Errorf("copy prompt: %w", err)
	}
	if err := os.WriteFile(s.ChecklistPath, []byte(prompt.ChecklistSkeleton(name)), 0o644); err != nil {
		return nil, fmt.Errorf("write checklist: %w", err)
	}
	return s, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
