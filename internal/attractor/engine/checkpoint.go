package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/cxdb"
	"github.com/zeebo/blake3"
)

// checkpointSnapshot is the full recoverable state persisted after every
// node (§4.2.8). It is marshaled to JSON and stored as a blob; the
// checkpoint_saved turn itself only carries a reference to that blob plus
// the sequence number, per CheckpointSavedPayload's shape.
type checkpointSnapshot struct {
	Seq               int            `json:"seq"`
	CurrentNode       string         `json:"current_node"`
	NextNode          string         `json:"next_node"`
	CompletedNodes    []string       `json:"completed_nodes"`
	RetryCounters     map[string]int `json:"retry_counters"`
	Context           map[string]any `json:"context"`
	StageLog          []string       `json:"stage_log"`
	FidelityMode      string         `json:"fidelity_mode"`
	DotSourceHash     string         `json:"dot_source_hash"`
	GraphSnapshotHash string         `json:"graph_snapshot_hash"`
	RootRunID         string         `json:"root_run_id"`
	Attempt           int            `json:"attempt"`
}

// checkpoint persists a checkpointSnapshot after dispatching currentNode.
// Traversal checkpoints with the just-completed node as both current and
// next, since the next hop isn't chosen until after this call returns.
func (e *Engine) checkpoint(ctx context.Context, exec *Execution, st *runState, currentNode, nextNode string, g *model.Graph) {
	if exec.Store == nil {
		return
	}
	mode, _ := exec.Context.Get("internal.fidelity.mode")
	modeStr, _ := mode.(string)

	snap := checkpointSnapshot{
		Seq:               st.seq,
		CurrentNode:       currentNode,
		NextNode:          nextNode,
		CompletedNodes:    append([]string{}, st.completed...),
		RetryCounters:     copyRetryCounters(st.retryCounters),
		Context:           exec.Context.SnapshotValues(),
		StageLog:          exec.Context.SnapshotLogs(),
		FidelityMode:      modeStr,
		DotSourceHash:     hashString(exec.Source),
		GraphSnapshotHash: hashString(graphSnapshotText(g)),
		RootRunID:         st.rootRunID,
		Attempt:           st.attempt,
	}

	blob, err := json.Marshal(snap)
	if err != nil {
		return
	}
	hash, err := exec.Store.PutBlob(ctx, blob)
	if err != nil {
		return
	}
	payload, err := cxdb.EncodePayload(cxdb.CheckpointSavedPayload{
		CheckpointID: newCheckpointID(),
		Seq:          st.seq,
		Refs:         []string{hash},
	})
	if err != nil {
		return
	}
	_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeCheckpointSaved, TypeVersion: 2, PayloadBytes: payload})
}

func copyRetryCounters(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func hashString(s string) string {
	if s == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
