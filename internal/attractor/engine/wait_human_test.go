package engine

import (
	"context"
	"testing"
	"time"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

func waitHumanGraph(t *testing.T) *model.Graph {
	return mustParse(t, `
digraph G {
  start [shape=Mdiamond]
  exit  [shape=Msquare]
  gate  [shape=parallelogram, label="proceed?"]
  approved [shape=box]
  rejected [shape=box]
  start -> gate
  gate -> approved [label="[A] Approve"]
  gate -> rejected [label="[R] Reject"]
  approved -> exit
  rejected -> exit
}
`)
}

type fixedAnswerInterviewer struct {
	label string
}

func (f fixedAnswerInterviewer) Ask(_ context.Context, q Question) (Answer, error) {
	for _, o := range q.Options {
		if o.Label == f.label {
			return Answer{Selected: o}, nil
		}
	}
	return Answer{Selected: q.Options[0]}, nil
}

func TestWaitHumanHandler_SelectsInterviewersChoice(t *testing.T) {
	g := waitHumanGraph(t)
	h := NewWaitHumanHandler(fixedAnswerInterviewer{label: "[R] Reject"})
	out, err := h.Execute(context.Background(), &Execution{Graph: g}, g.Nodes["gate"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != runtime.StatusSuccess {
		t.Fatalf("got status %q want success", out.Status)
	}
	if len(out.SuggestedNextIDs) != 1 || out.SuggestedNextIDs[0] != "rejected" {
		t.Fatalf("got suggested next ids %v want [rejected]", out.SuggestedNextIDs)
	}
	if out.ContextUpdates["human.gate.timed_out"] != false {
		t.Fatalf("timed_out: got %v want false", out.ContextUpdates["human.gate.timed_out"])
	}
}

func TestWaitHumanHandler_SkipsRetry(t *testing.T) {
	var h SingleExecutionHandler = NewWaitHumanHandler(AutoApproveInterviewer{})
	if !h.SkipRetry() {
		t.Fatalf("WaitHumanHandler.SkipRetry() should be true")
	}
}

func TestAutoApproveInterviewer_PicksFirstOption(t *testing.T) {
	q := Question{Options: []Option{{Label: "a", To: "na"}, {Label: "b", To: "nb"}}}
	ans, err := AutoApproveInterviewer{}.Ask(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Selected.Label != "a" {
		t.Fatalf("got %q want a", ans.Selected.Label)
	}
}

// blockingInterviewer never answers before its context is done, exercising
// the timeout/default_choice path.
type blockingInterviewer struct{}

func (blockingInterviewer) Ask(ctx context.Context, _ Question) (Answer, error) {
	<-ctx.Done()
	return Answer{}, ctx.Err()
}

func TestWaitHumanHandler_TimeoutFallsBackToDefaultChoice(t *testing.T) {
	g := waitHumanGraph(t)
	gate := g.Nodes["gate"]
	gate.Attrs["human.timeout_seconds"] = "20ms"
	gate.Attrs["human.default_choice"] = "rejected"

	h := NewWaitHumanHandler(blockingInterviewer{})
	start := time.Now()
	out, err := h.Execute(context.Background(), &Execution{Graph: g}, gate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("handler returned before the timeout elapsed")
	}
	if out.ContextUpdates["human.gate.timed_out"] != true {
		t.Fatalf("timed_out: got %v want true", out.ContextUpdates["human.gate.timed_out"])
	}
	if len(out.SuggestedNextIDs) != 1 || out.SuggestedNextIDs[0] != "rejected" {
		t.Fatalf("got suggested next ids %v want [rejected]", out.SuggestedNextIDs)
	}
}
