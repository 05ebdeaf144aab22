package engine

import (
	"context"
	"sort"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/cxdb"
)

// persistRunInit writes the run's dot_source/graph_snapshot and the initial
// run_lifecycle turn (§4.2.11), the one-time setup every other emission in
// this file assumes already happened.
func (e *Engine) persistRunInit(ctx context.Context, exec *Execution, g *model.Graph) {
	if exec.Store == nil {
		return
	}
	source := exec.Source
	dp := cxdb.DotSourcePayload{Inline: source}
	if len(source) > 4096 {
		if hash, err := exec.Store.PutBlob(ctx, []byte(source)); err == nil {
			dp = cxdb.DotSourcePayload{BlobHash: hash}
		}
	}
	if b, err := cxdb.EncodePayload(dp); err == nil {
		_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeDotSource, TypeVersion: 2, PayloadBytes: b})
	}

	snapshot := graphSnapshotText(g)
	gp := cxdb.GraphSnapshotPayload{Inline: snapshot}
	if len(snapshot) > 4096 {
		if hash, err := exec.Store.PutBlob(ctx, []byte(snapshot)); err == nil {
			gp = cxdb.GraphSnapshotPayload{BlobHash: hash}
		}
	}
	if b, err := cxdb.EncodePayload(gp); err == nil {
		_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeGraphSnapshot, TypeVersion: 2, PayloadBytes: b})
	}

	e.emitRunLifecycle(ctx, exec, "initialized", g, "")
}

func (e *Engine) emitRunLifecycle(ctx context.Context, exec *Execution, kind string, g *model.Graph, finalStatus string) {
	if exec.Store == nil {
		return
	}
	payload := cxdb.RunLifecyclePayload{
		Kind:        kind,
		RunID:       string(exec.RunCtxID),
		FinalStatus: finalStatus,
	}
	if g != nil {
		payload.GraphName = g.Name
		payload.Goal = g.Attrs["goal"]
	}
	b, err := cxdb.EncodePayload(payload)
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeRunLifecycle, TypeVersion: 2, PayloadBytes: b})
}

func (e *Engine) emitStage(ctx context.Context, exec *Execution, nodeID, kind string, attempt int, outcomeStatus string) {
	if exec.Store == nil {
		return
	}
	b, err := cxdb.EncodePayload(cxdb.StageLifecyclePayload{
		Kind:           kind,
		NodeID:         nodeID,
		StageAttemptID: exec.StageAttemptID,
		Attempt:        attempt,
		OutcomeStatus:  outcomeStatus,
	})
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeStageLifecycle, TypeVersion: 2, PayloadBytes: b})
}

func (e *Engine) emitRoute(ctx context.Context, exec *Execution, fromNode, selectedEdge string, reasonStep int) {
	if exec.Store == nil {
		return
	}
	b, err := cxdb.EncodePayload(cxdb.RouteDecisionPayload{FromNode: fromNode, SelectedEdge: selectedEdge, ReasonStep: reasonStep})
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeRouteDecision, TypeVersion: 2, PayloadBytes: b})
}

func (e *Engine) emitParallel(ctx context.Context, exec *Execution, nodeID, kind, branchID string) {
	if exec.Store == nil {
		return
	}
	b, err := cxdb.EncodePayload(cxdb.ParallelLifecyclePayload{Kind: kind, NodeID: nodeID, BranchID: branchID})
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeParallelLifecycle, TypeVersion: 2, PayloadBytes: b})
}

// graphSnapshotText renders a minimal, deterministic textual snapshot of g
// for the graph_snapshot turn — node ids (sorted) and edge endpoints (in
// graph order) only, without attrs; not a byte-for-byte round trip of the
// original DOT source.
func graphSnapshotText(g *model.Graph) string {
	if g == nil {
		return ""
	}
	out := "graph " + g.Name + "\n"
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out += "node " + id + "\n"
	}
	for _, e := range g.Edges {
		out += "edge " + e.From + " -> " + e.To + "\n"
	}
	return out
}
