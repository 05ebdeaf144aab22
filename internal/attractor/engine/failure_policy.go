package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/llm"
)

// failureClass buckets a failed/retry Outcome so retry and loop-restart
// eligibility (§4.2.3, §4.2.10) can be decided without re-deriving it at
// every call site.
type failureClass string

const (
	failureClassTransientInfra  failureClass = "transient_infra"
	failureClassDeterministic   failureClass = "deterministic"
	failureClassCanceled        failureClass = "canceled"
	failureClassBudgetExhausted failureClass = "budget_exhausted"
	failureClassCompilationLoop failureClass = "compilation_loop"
	failureClassStructural      failureClass = "structural"
)

// retryableFailureClasses gates ordinary retry (§4.2.3): deterministic
// failures are not retried, since the same branches will fail again and
// spin forever. Loop restart (applyLoopRestart) does not consult it.
var retryableFailureClasses = map[failureClass]bool{
	failureClassTransientInfra:  true,
	failureClassBudgetExhausted: true,
	failureClassCompilationLoop: true,
}

var compilationFailureHints = []string{
	"compile error",
	"compilation failed",
	"syntax error",
	"build failed",
}

var budgetFailureHints = []string{
	"budget exhausted",
	"token budget",
	"rate limit",
	"quota exceeded",
}

// classifyFailure derives a failureClass from the outcome and, when present,
// the error that produced it. err classification takes precedence since it
// carries structured information (llm.Error.Retryable) the free-text
// failure_reason can only approximate.
func classifyFailure(outcome runtime.Outcome, err error) failureClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failureClassCanceled
	}
	var le llm.Error
	if errors.As(err, &le) {
		if le.Retryable() {
			return failureClassTransientInfra
		}
		return failureClassDeterministic
	}

	reason := strings.ToLower(outcome.FailureReason + " " + outcome.Notes)
	for _, hint := range budgetFailureHints {
		if strings.Contains(reason, hint) {
			return failureClassBudgetExhausted
		}
	}
	for _, hint := range compilationFailureHints {
		if strings.Contains(reason, hint) {
			return failureClassCompilationLoop
		}
	}
	if err != nil {
		return failureClassTransientInfra
	}
	return failureClassDeterministic
}

// shouldRetryOutcome reports whether status/class combination is eligible
// for another attempt on the same node (§4.2.3). Only retry and fail
// statuses are ever retried; fail is included because a node's last attempt
// can still legitimately resolve to fail without the handler ever returning
// a retry status first.
func shouldRetryOutcome(status runtime.StageStatus, class failureClass) bool {
	if status != runtime.StatusRetry && status != runtime.StatusFail {
		return false
	}
	return retryableFailureClasses[class]
}

// isEscalatableFailureClass reports whether a failure class may still route
// through retry_target/fallback_retry_target or loop_restart once ordinary
// per-node retries are exhausted, as opposed to failing the run outright.
func isEscalatableFailureClass(class failureClass) bool {
	switch class {
	case failureClassDeterministic, failureClassStructural:
		return false
	default:
		return true
	}
}
