package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joss/looper/internal/usage"
)

// Ledger is the append-only progress.md writer. Every write opens the
// file, appends, flushes to disk and closes: a crash mid-loop leaves
// every completed iteration durably recorded and never a partial file.
type Ledger struct {
	path string
}

// NewLedger creates a ledger for the session's progress file.
func NewLedger(s *Session) *Ledger {
	return &Ledger{path: s.ProgressPath}
}

// Header opens a session's ledger section.
type Header struct {
	SessionName   string
	Tool          string
	Model         string
	MaxIterations int
	StartedAt     time.Time
	Resumed       bool
}

// IterationStatus is the terminal status of one iteration attempt.
type IterationStatus string

const (
	StatusCompleted IterationStatus = "completed"
	StatusFailed    IterationStatus = "failed"
	StatusRetried   IterationStatus = "retried"
)

// IterationRecord is the immutable per-iteration ledger entry.
type IterationRecord struct {
	Iteration     int
	Timestamp     time.Time
	Status        IterationStatus
	Duration      time.Duration
	ExitCode      int
	FilesChanged  *int
	DiffSummary   string
	Usage         usage.TokenUsage
	CommitMessage string
	CommitHash    string
}

// Summary is the terminal ledger section.
type Summary struct {
	TotalIterations int
	StopReason      string
	Elapsed         time.Duration
	Usage           usage.TokenUsage
}

// WriteHeader starts the ledger. A new session truncates and writes
// the header; a resumed session appends a "Resumed" section with a
// fresh timestamp, preserving all prior content.
func (l *Ledger) WriteHeader(h Header) error {
	var sb strings.Builder
	if h.Resumed {
		sb.WriteString("\n## Resumed ")
		sb.WriteString(h.StartedAt.UTC().Format(time.RFC3339))
		sb.WriteString("\n\n")
	} else {
		fmt.Fprintf(&sb, "# Session: %s\n\n", h.SessionName)
		fmt.Fprintf(&sb, "Started: %s\n", h.StartedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "Tool: %s\n", h.Tool)
	if h.Model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", h.Model)
	}
	fmt.Fprintf(&sb, "Max iterations: %d\n", h.MaxIterations)

	if h.Resumed {
		return l.append(sb.String())
	}
	return l.write(sb.String(), true)
}

// AppendIteration renders and appends one iteration record. Optional
// fields that are absent omit their lines entirely.
func (l *Ledger) AppendIteration(rec IterationRecord) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n### Iteration %d — %s\n\n", rec.Iteration, rec.Status)
	fmt.Fprintf(&sb, "- Time: %s\n", rec.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- Duration: %s\n", formatDuration(rec.Duration))
	fmt.Fprintf(&sb, "- Exit code: %d\n", rec.ExitCode)
	if !rec.Usage.IsEmpty() {
		fmt.Fprintf(&sb, "- Tokens: %s\n", rec.Usage)
	}
	if rec.FilesChanged != nil {
		fmt.Fprintf(&sb, "- Files changed: %d\n", *rec.FilesChanged)
	}
	if rec.DiffSummary != "" {
		fmt.Fprintf(&sb, "- Diff: %s\n", rec.DiffSummary)
	}
	if rec.CommitHash != "" {
		fmt.Fprintf(&sb, "- Commit: %s %q\n", rec.CommitHash, rec.CommitMessage)
	}
	return l.append(sb.String())
}

// WriteSummary appends the closing section. Called exactly once, after
// loop termination.
func (l *Ledger) WriteSummary(s Summary) error {
	var sb strings.Builder
	sb.WriteString("\n## Summary\n\n")
	fmt.Fprintf(&sb, "- Iterations: %d\n", s.TotalIterations)
	fmt.Fprintf(&sb, "- Stop reason: %s\n", s.StopReason)
	fmt.Fprintf(&sb, "- Elapsed: %s\n", formatDuration(s.Elapsed))
	if s.Usage.IsEmpty() {
		sb.WriteString("- Tokens: no usage data\n")
	} else {
		fmt.Fprintf(&sb, "- Tokens: %s\n", s.Usage)
	}
	return l.append(sb.String())
}

func (l *Ledger) append(content string) error {
	return l.write(content, false)
}

func (l *Ledger) write(content string, truncate bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(l.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	return f.Close()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
