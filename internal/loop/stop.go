package loop

import (
	"fmt"
	"regexp"
)

// StopConditions is the stop configuration evaluated after each
// iteration. Precedence is fixed and total: max-iterations first, then
// the output pattern, then the stop hook (which the controller runs as
// a side-effecting step, not here).
type StopConditions struct {
	// MaxIterations gates the iteration-count condition.
	MaxIterations bool

	// OutputPattern, when non-empty, is a regular expression tested
	// against the just-completed iteration's combined output.
	OutputPattern string

	// StopHook is the shell command whose zero exit means stop. Carried
	// here for configuration completeness; execution happens in the
	// controller.
	StopHook string
}

// StopContext is the per-iteration input to the evaluator.
type StopContext struct {
	Iteration     int
	MaxIterations int

	// Output is the combined stdout+stderr of the just-completed
	// iteration, not cumulative history.
	Output string
}

// StopResult is the evaluator's verdict.
type StopResult struct {
	Stop   bool
	Reason string
}

// EvaluateStop is the pure stop-condition evaluator. The first
// matching condition wins and short-circuits the rest. An invalid
// output pattern is reported as an error and never treated as a match.
func EvaluateStop(c StopConditions, sc StopContext) (StopResult, error) {
	if c.MaxIterations && sc.Iteration >= sc.MaxIterations {
		return StopResult{
			Stop:   true,
			Reason: fmt.Sprintf("Reached max iterations (%d)", sc.MaxIterations),
		}, nil
	}

	if c.OutputPattern != "" {
		re, err := regexp.Compile(c.OutputPattern)
		if err != nil {
			return StopResult{}, fmt.Errorf("invalid output pattern %q: %w", c.OutputPattern, err)
		}
		if re.MatchString(sc.Output) {
			return StopResult{
				Stop:   true,
				Reason: fmt.Sprintf("Output matched stop pattern %q", c.OutputPattern),
			}, nil
		}
	}

	return StopResult{}, nil
}
