package loop

import "fmt"

// Strategy is the configured error-handling strategy for failed agent
// executions.
type Strategy int

const (
	// StrategyStop terminates the loop on the first failure.
	StrategyStop Strategy = iota
	// StrategyRetryOnce retries a failed execution once, then stops if
	// it still fails.
	StrategyRetryOnce
	// StrategyContinue records the failure and moves on.
	StrategyContinue
)

func (s Strategy) String() string {
	switch s {
	case StrategyStop:
		return "stop"
	case StrategyRetryOnce:
		return "retry-once"
	case StrategyContinue:
		return "continue"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy resolves a strategy name from configuration.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "stop":
		return StrategyStop, nil
	case "retry-once":
		return StrategyRetryOnce, nil
	case "continue":
		return StrategyContinue, nil
	}
	return 0, fmt.Errorf("unknown error strategy %q", name)
}

// Decision is the retry policy's verdict for a failed execution.
type Decision int

const (
	// DecisionContinue proceeds with the iteration (successful exit, or
	// a failure under the continue strategy).
	DecisionContinue Decision = iota
	// DecisionRetry authorizes a single retry of the execution.
	DecisionRetry
	// DecisionStop terminates the loop.
	DecisionStop
)

// Decide is the pure retry decision table. At most one retry is ever
// authorized per iteration: the configured maxRetries value is
// deliberately not consulted (single-retry semantics).
func Decide(s Strategy, exitCode int, retried bool) Decision {
	if exitCode == 0 {
		return DecisionContinue
	}
	switch s {
	case StrategyStop:
		return DecisionStop
	case StrategyRetryOnce:
		if retried {
			return DecisionStop
		}
		return DecisionRetry
	case StrategyContinue:
		return DecisionContinue
	}
	return DecisionStop
}
