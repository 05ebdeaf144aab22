package engine

import (
	"context"
	"sort"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// FanInHandler consumes parallel.results left by ParallelHandler, ranks the
// branches by (status_rank, score, branch_id), and projects the winner into
// parallel.fan_in.* (§4.2.7). It is a completely ordinary Handler reached
// through normal dispatch once traversal routes to the join node — it has no
// special knowledge of how the branches ran.
type FanInHandler struct{}

func (FanInHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	raw, ok := exec.Context.Get("parallel.results")
	if !ok {
		return runtime.Outcome{}, unknownTypeError("parallel.fan_in", node.ID)
	}
	results, err := decodeBranchResults(raw)
	if err != nil {
		return runtime.Outcome{}, err
	}
	if len(results) == 0 {
		return runtime.Outcome{Status: runtime.StatusFail, FailureReason: "parallel.fan_in: no branch results to rank"}, nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := statusRank(results[i].Status), statusRank(results[j].Status)
		if ri != rj {
			return ri < rj
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].BranchID < results[j].BranchID
	})

	winner := results[0]
	status := runtime.StatusFail
	if winner.Status == string(runtime.StatusSuccess) || winner.Status == string(runtime.StatusPartialSuccess) {
		status = runtime.StatusSuccess
	}

	return runtime.Outcome{
		Status: status,
		ContextUpdates: map[string]any{
			"parallel.fan_in.winner_branch_id": winner.BranchID,
			"parallel.fan_in.winner_status":    winner.Status,
			"parallel.fan_in.winner_score":     winner.Score,
			"parallel.fan_in.ranked":           branchResultMaps(results),
		},
	}, nil
}

func decodeBranchResults(raw any) ([]BranchResult, error) {
	list, ok := raw.([]map[string]any)
	if !ok {
		return nil, unknownTypeError("parallel.fan_in", "parallel.results")
	}
	out := make([]BranchResult, 0, len(list))
	for _, m := range list {
		out = append(out, BranchResult{
			BranchID: stringOf(m["branch_id"]),
			Status:   stringOf(m["status"]),
			Score:    floatOf(m["score"]),
			Notes:    stringOf(m["notes"]),
		})
	}
	return out, nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
