package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// BranchResult is one completed parallel branch, written into
// parallel.results for FanInHandler to rank and project (§4.2.7).
type BranchResult struct {
	BranchID string  `json:"branch_id"`
	Status   string  `json:"status"`
	Score    float64 `json:"score"`
	Notes    string  `json:"notes,omitempty"`
}

// ParallelHandler fans out across a node's outgoing edges with bounded
// concurrency, running each branch as its own private sub-traversal until it
// reaches the node's join_node attribute or a terminal node, then routes to
// that join node so an ordinary FanInHandler dispatch can rank the results.
//
// The contract freezes branch-context fork semantics (runtime.Context.Clone)
// but leaves full branch-subflow execution a named future extension; this
// design realizes each branch as a bounded sub-traversal of the same graph
// rather than invoking an independently scheduled subflow graph.
type ParallelHandler struct{}

func (ParallelHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	joinNode := strings.TrimSpace(node.Attr("join_node", ""))
	if joinNode == "" {
		return runtime.Outcome{}, unknownTypeError("parallel", node.ID)
	}
	branches := exec.Graph.Outgoing(node.ID)
	if len(branches) == 0 {
		return runtime.Outcome{}, unknownTypeError("parallel", node.ID)
	}

	maxParallel := dot.IntAttr(node.Attrs, "max_parallel", len(branches))
	if maxParallel <= 0 {
		maxParallel = len(branches)
	}

	exec.Engine.emitParallel(ctx, exec, node.ID, "started", "")

	sem := make(chan struct{}, maxParallel)
	results := make([]BranchResult, len(branches))
	var wg sync.WaitGroup
	wg.Add(len(branches))
	for i, edge := range branches {
		i, edge := i, edge
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = exec.Engine.runBranch(ctx, exec, node.ID, edge, joinNode)
		}()
	}
	wg.Wait()

	exec.Engine.emitParallel(ctx, exec, node.ID, "completed", "")

	// The parallel node itself always proceeds to its join node: join_policy
	// decides the *fan-in's* outcome, not whether fan-in runs at all. That
	// keeps parallel.results available for FanInHandler even when every
	// branch failed.
	joinStatus := evaluateJoinPolicy(node.Attr("join_policy", "all_success"), results, dot.IntAttr(node.Attrs, "quorum", 0))

	return runtime.Outcome{
		Status:           runtime.StatusSuccess,
		SuggestedNextIDs: []string{joinNode},
		ContextUpdates: map[string]any{
			"parallel.results":     branchResultMaps(results),
			"parallel.join_status": string(joinStatus),
		},
	}, nil
}

// runBranch executes one parallel branch in its own cloned context,
// starting at edge.To and stopping as soon as traversal reaches stopID (the
// join node) or a terminal node.
func (e *Engine) runBranch(ctx context.Context, exec *Execution, parallelNodeID string, edge *model.Edge, stopID string) BranchResult {
	branchID := fmt.Sprintf("%s:%s", parallelNodeID, edge.To)
	e.emitParallel(ctx, exec, parallelNodeID, "branch_started", branchID)

	branchExec := &Execution{
		Graph:    exec.Graph,
		Context:  exec.Context.Clone(),
		Store:    exec.Store,
		RunCtxID: exec.RunCtxID,
		Engine:   e,
	}
	st := newRunState(string(exec.RunCtxID))
	outcome, _, err := e.loop(ctx, branchExec, edge.To, map[string]bool{stopID: true}, st)

	status := string(outcome.Status)
	if err != nil {
		status = string(runtime.StatusFail)
		if outcome.FailureReason == "" {
			outcome.FailureReason = err.Error()
		}
	}
	if status == "" {
		status = string(runtime.StatusSuccess)
	}

	score := 0.0
	if outcome.Meta != nil {
		if v, ok := outcome.Meta["score"].(float64); ok {
			score = v
		}
	}

	e.emitParallel(ctx, exec, parallelNodeID, "branch_completed", branchID)
	return BranchResult{BranchID: branchID, Status: status, Score: score, Notes: outcome.Notes}
}

func branchResultMaps(results []BranchResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"branch_id": r.BranchID,
			"status":    r.Status,
			"score":     r.Score,
			"notes":     r.Notes,
		})
	}
	return out
}

func statusRank(status string) int {
	switch status {
	case string(runtime.StatusSuccess):
		return 0
	case string(runtime.StatusPartialSuccess):
		return 1
	case string(runtime.StatusSkipped):
		return 2
	case string(runtime.StatusRetry):
		return 3
	default:
		return 4
	}
}

// evaluateJoinPolicy maps a set of branch results into the parallel node's
// own Outcome status per its join_policy (§4.2.7).
func evaluateJoinPolicy(policy string, results []BranchResult, quorum int) runtime.StageStatus {
	if policy == "ignore" {
		return runtime.StatusSuccess
	}
	succeeded := 0
	for _, r := range results {
		if r.Status == string(runtime.StatusSuccess) {
			succeeded++
		}
	}
	switch policy {
	case "any_success":
		if succeeded > 0 {
			return runtime.StatusSuccess
		}
		return runtime.StatusFail
	case "quorum":
		if quorum <= 0 {
			quorum = len(results)/2 + 1
		}
		if succeeded >= quorum {
			return runtime.StatusSuccess
		}
		return runtime.StatusFail
	default: // all_success
		if succeeded == len(results) {
			return runtime.StatusSuccess
		}
		return runtime.StatusFail
	}
}
