package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/llm"
)

func TestClassifyFailure_CanceledContextTakesPrecedence(t *testing.T) {
	if got := classifyFailure(runtime.Outcome{}, context.Canceled); got != failureClassCanceled {
		t.Fatalf("got %q want %q", got, failureClassCanceled)
	}
	if got := classifyFailure(runtime.Outcome{}, context.DeadlineExceeded); got != failureClassCanceled {
		t.Fatalf("got %q want %q", got, failureClassCanceled)
	}
}

func TestClassifyFailure_LLMErrorRetryableIsTransientInfra(t *testing.T) {
	err := llm.ErrorFromHTTPStatus("openai", 503, "overloaded", nil, nil)
	if got := classifyFailure(runtime.Outcome{}, err); got != failureClassTransientInfra {
		t.Fatalf("got %q want %q", got, failureClassTransientInfra)
	}
}

func TestClassifyFailure_LLMErrorNonRetryableIsDeterministic(t *testing.T) {
	err := llm.ErrorFromHTTPStatus("openai", 400, "bad request", nil, nil)
	if got := classifyFailure(runtime.Outcome{}, err); got != failureClassDeterministic {
		t.Fatalf("got %q want %q", got, failureClassDeterministic)
	}
}

func TestClassifyFailure_OutcomeTextHintsOverrideGenericError(t *testing.T) {
	cases := []struct {
		name   string
		reason string
		want   failureClass
	}{
		{"budget", "token budget exceeded for this run", failureClassBudgetExhausted},
		{"rate limit", "provider returned rate limit", failureClassBudgetExhausted},
		{"compile", "compilation failed: unexpected token", failureClassCompilationLoop},
		{"syntax", "syntax error on line 4", failureClassCompilationLoop},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := runtime.Outcome{FailureReason: c.reason}
			if got := classifyFailure(out, errors.New("boom")); got != c.want {
				t.Fatalf("got %q want %q", got, c.want)
			}
		})
	}
}

func TestClassifyFailure_PlainErrorWithNoHintsIsTransientInfra(t *testing.T) {
	out := runtime.Outcome{FailureReason: "something went wrong"}
	if got := classifyFailure(out, errors.New("boom")); got != failureClassTransientInfra {
		t.Fatalf("got %q want %q", got, failureClassTransientInfra)
	}
}

func TestClassifyFailure_NoErrorAndNoHintsIsDeterministic(t *testing.T) {
	out := runtime.Outcome{FailureReason: "handler reported failure"}
	if got := classifyFailure(out, nil); got != failureClassDeterministic {
		t.Fatalf("got %q want %q", got, failureClassDeterministic)
	}
}

func TestShouldRetryOutcome_OnlyRetryAndFailStatusesAreEligible(t *testing.T) {
	if shouldRetryOutcome(runtime.StatusSuccess, failureClassTransientInfra) {
		t.Fatalf("success status must never be retried")
	}
	if shouldRetryOutcome(runtime.StatusSkipped, failureClassTransientInfra) {
		t.Fatalf("skipped status must never be retried")
	}
	if !shouldRetryOutcome(runtime.StatusRetry, failureClassTransientInfra) {
		t.Fatalf("retry status with a retryable class must be retried")
	}
	if !shouldRetryOutcome(runtime.StatusFail, failureClassBudgetExhausted) {
		t.Fatalf("fail status with a retryable class must be retried")
	}
}

func TestShouldRetryOutcome_NonRetryableClassesAreNeverRetried(t *testing.T) {
	for _, class := range []failureClass{failureClassDeterministic, failureClassCanceled, failureClassStructural} {
		if shouldRetryOutcome(runtime.StatusFail, class) {
			t.Fatalf("class %q must not be retried", class)
		}
	}
}

func TestIsEscalatableFailureClass(t *testing.T) {
	notEscalatable := map[failureClass]bool{
		failureClassDeterministic: true,
		failureClassStructural:    true,
	}
	all := []failureClass{
		failureClassTransientInfra, failureClassDeterministic, failureClassCanceled,
		failureClassBudgetExhausted, failureClassCompilationLoop, failureClassStructural,
	}
	for _, class := range all {
		want := !notEscalatable[class]
		if got := isEscalatableFailureClass(class); got != want {
			t.Fatalf("class %q: got %v want %v", class, got, want)
		}
	}
}
