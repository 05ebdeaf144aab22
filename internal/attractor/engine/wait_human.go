package engine

import (
	"context"
	"strings"

	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/cxdb"
)

// Option is one selectable choice derived from a wait.human node's outgoing
// edges.
type Option struct {
	Label string
	To    string
}

// Question is what WaitHumanHandler asks an Interviewer.
type Question struct {
	NodeID  string
	Text    string
	Options []Option
}

// Answer is the Interviewer's response to a Question.
type Answer struct {
	Selected Option
	TimedOut bool
}

// Interviewer presents a Question to a human operator (or a stand-in) and
// returns their choice (§4.2.6).
type Interviewer interface {
	Ask(ctx context.Context, q Question) (Answer, error)
}

// AutoApproveInterviewer always selects the first option, the default used
// when no interactive operator is wired up (batch runs, tests).
type AutoApproveInterviewer struct{}

func (AutoApproveInterviewer) Ask(_ context.Context, q Question) (Answer, error) {
	if len(q.Options) == 0 {
		return Answer{Selected: Option{Label: "yes"}}, nil
	}
	return Answer{Selected: q.Options[0]}, nil
}

// WaitHumanHandler derives choices from a node's outgoing edges, asks an
// Interviewer, and applies the configured timeout/default on expiry
// (§4.2.6).
type WaitHumanHandler struct {
	Interviewer Interviewer
}

func NewWaitHumanHandler(iv Interviewer) WaitHumanHandler {
	if iv == nil {
		iv = AutoApproveInterviewer{}
	}
	return WaitHumanHandler{Interviewer: iv}
}

func (h WaitHumanHandler) SkipRetry() bool { return true }

func (h WaitHumanHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	edges := exec.Graph.Outgoing(node.ID)
	opts := make([]Option, 0, len(edges))
	for _, e := range edges {
		label := e.Label()
		if strings.TrimSpace(label) == "" {
			label = e.To
		}
		opts = append(opts, Option{Label: label, To: e.To})
	}

	q := Question{NodeID: node.ID, Text: node.Attr("question", node.Attr("label", "")), Options: opts}
	h.emitInterview(ctx, exec, node.ID, "started", q.Text, "")

	iv := h.Interviewer
	if iv == nil {
		iv = AutoApproveInterviewer{}
	}

	timeout := dot.DurationAttr(node.Attrs, "human.timeout_seconds", 0)
	askCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		askCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ans, err := iv.Ask(askCtx, q)
	if err != nil && timeout > 0 && askCtx.Err() != nil {
		defaultChoice := node.Attr("human.default_choice", "")
		selected := Option{Label: defaultChoice, To: defaultChoice}
		for _, o := range opts {
			if o.Label == defaultChoice || o.To == defaultChoice {
				selected = o
				break
			}
		}
		h.emitInterview(ctx, exec, node.ID, "timeout", q.Text, selected.Label)
		return runtime.Outcome{
			Status:           runtime.StatusSuccess,
			PreferredLabel:   selected.Label,
			SuggestedNextIDs: nonEmptyIDs(selected.To),
			ContextUpdates:   map[string]any{"human.gate.selected": selected.To, "human.gate.label": selected.Label, "human.gate.timed_out": true},
		}, nil
	}
	if err != nil {
		return runtime.Outcome{}, err
	}

	h.emitInterview(ctx, exec, node.ID, "completed", q.Text, ans.Selected.Label)
	return runtime.Outcome{
		Status:           runtime.StatusSuccess,
		PreferredLabel:   ans.Selected.Label,
		SuggestedNextIDs: nonEmptyIDs(ans.Selected.To),
		ContextUpdates:   map[string]any{"human.gate.selected": ans.Selected.To, "human.gate.label": ans.Selected.Label, "human.gate.timed_out": ans.TimedOut},
	}, nil
}

func nonEmptyIDs(id string) []string {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return []string{id}
}

func (h WaitHumanHandler) emitInterview(ctx context.Context, exec *Execution, nodeID, kind, question, choice string) {
	if exec == nil || exec.Store == nil {
		return
	}
	payload, err := cxdb.EncodePayload(cxdb.InterviewLifecyclePayload{Kind: kind, NodeID: nodeID, Question: question, Choice: choice})
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{
		ContextID:    exec.RunCtxID,
		TypeID:       cxdb.TypeInterviewLifecycle,
		TypeVersion:  2,
		PayloadBytes: payload,
	})
}
