// Package render provides output formatting for terminal consumption.
// Pretty mode uses color and box drawing for interactive terminals;
// plain mode emits stable line-oriented text for pipes and CI logs.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/joss/looper/internal/session"
	"github.com/joss/looper/internal/usage"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// RunBanner formats the run header shown before the first iteration.
func (r *Renderer) RunBanner(sessionName, tool, model string, maxIterations int, resumed bool) string {
	var sb strings.Builder

	if r.pretty {
		title := "Session " + sessionName
		if resumed {
			title += " (resumed)"
		}
		sb.WriteString(color.CyanString(title + "\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		fmt.Fprintf(&sb, "  Tool:           %s\n", tool)
		if model != "" {
			fmt.Fprintf(&sb, "  Model:          %s\n", model)
		}
		fmt.Fprintf(&sb, "  Max iterations: %d\n", maxIterations)
	} else {
		fmt.Fprintf(&sb, "session=%s tool=%s model=%s max_iterations=%d resumed=%v\n",
			sessionName, tool, model, maxIterations, resumed)
	}

	return sb.String()
}

// IterationStart formats the line announcing an iteration.
func (r *Renderer) IterationStart(iteration, maxIterations int) string {
	if r.pretty {
		return color.CyanString("▸ Iteration %d/%d", iteration, maxIterations) + "\n"
	}
	return fmt.Sprintf("iteration %d/%d\n", iteration, maxIterations)
}

// IterationEnd formats the result line for one completed iteration.
func (r *Renderer) IterationEnd(rec session.IterationRecord) string {
	status := statusMark(rec.Status, r.pretty)
	durStr := FormatDuration(rec.Duration)

	var extras []string
	if !rec.Usage.IsEmpty() {
		extras = append(extras, rec.Usage.String())
	}
	if rec.FilesChanged != nil {
		extras = append(extras, fmt.Sprintf("%d files", *rec.FilesChanged))
	}
	if rec.CommitHash != "" {
		extras = append(extras, "commit "+shortHash(rec.CommitHash))
	}
	extra := ""
	if len(extras) > 0 {
		extra = "  " + strings.Join(extras, "  ")
	}

	if r.pretty {
		return fmt.Sprintf("%s iteration %d %s (%s)%s\n",
			status, rec.Iteration, rec.Status, durStr, extra)
	}
	return fmt.Sprintf("iteration=%d status=%s exit=%d duration=%s%s\n",
		rec.Iteration, rec.Status, rec.ExitCode, durStr, extra)
}

// Summary formats the terminal run summary.
func (r *Renderer) Summary(totalIterations int, stopReason string, elapsed time.Duration, total usage.TokenUsage) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString("\n")
		sb.WriteString(color.CyanString("Summary\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Iterations:  %d\n", totalIterations)
		fmt.Fprintf(&sb, "  Stop reason: %s\n", stopReason)
		fmt.Fprintf(&sb, "  Elapsed:     %s\n", FormatDuration(elapsed))
		if total.IsEmpty() {
			fmt.Fprintf(&sb, "  Tokens:      %s\n", color.HiBlackString("no usage data"))
		} else {
			fmt.Fprintf(&sb, "  Tokens:      %s\n", total)
		}
	} else {
		tokens := "no usage data"
		if !total.IsEmpty() {
			tokens = total.String()
		}
		fmt.Fprintf(&sb, "iterations=%d stop_reason=%q elapsed=%s tokens=%q\n",
			totalIterations, stopReason, FormatDuration(elapsed), tokens)
	}

	return sb.String()
}

// Runs formats the recent-runs listing for the sessions command.
func (r *Renderer) Runs(runs []session.RunRow) string {
	if len(runs) == 0 {
		return "No runs recorded\n"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Recent Runs\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, run := range runs {
		timeStr := run.StartedAt.Local().Format("2006-01-02 15:04")
		reason := run.StopReason
		if reason == "" {
			reason = "in progress"
		}

		if r.pretty {
			name := run.Session
			if run.Resumed {
				name += color.HiBlackString(" (resumed)")
			}
			fmt.Fprintf(&sb, "%s  %-24s %s  %2d iter  %s\n",
				color.HiBlackString(timeStr), name, run.Tool, run.TotalIterations, reason)
		} else {
			fmt.Fprintf(&sb, "[%s] session=%s tool=%s iterations=%d stop_reason=%q\n",
				timeStr, run.Session, run.Tool, run.TotalIterations, reason)
		}
	}

	return sb.String()
}

// Iterations formats the per-session iteration history.
func (r *Renderer) Iterations(sessionName string, iters []session.IterationRow) string {
	if len(iters) == 0 {
		return fmt.Sprintf("No iterations recorded for session %q\n", sessionName)
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Session %s\n", sessionName))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, it := range iters {
		status := statusMark(it.Status, r.pretty)
		extra := ""
		if !it.Usage.IsEmpty() {
			extra = "  " + it.Usage.String()
		}
		if it.CommitHash != "" {
			extra += "  commit " + shortHash(it.CommitHash)
		}

		if r.pretty {
			fmt.Fprintf(&sb, "%s %s iteration %-3d %-9s %s%s\n",
				color.HiBlackString(it.RecordedAt.Local().Format("15:04:05")),
				status, it.Iteration, it.Status, FormatDuration(it.Duration), extra)
		} else {
			fmt.Fprintf(&sb, "[%s] iteration=%d status=%s exit=%d duration=%s%s\n",
				it.RecordedAt.Local().Format("15:04:05"),
				it.Iteration, it.Status, it.ExitCode, FormatDuration(it.Duration), extra)
		}
	}

	return sb.String()
}

func statusMark(status session.IterationStatus, pretty bool) string {
	if !pretty {
		return string(status)
	}
	switch status {
	case session.StatusCompleted:
		return color.GreenString("✓")
	case session.StatusRetried:
		return color.YellowString("↻")
	case session.StatusFailed:
		return color.RedString("✗")
	default:
		return "•"
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
