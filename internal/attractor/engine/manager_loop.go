package engine

import (
	"context"
	"time"

	"github.com/forge-labs/attractor/internal/attractor/cond"
	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// ManagerLoopHandler implements stack.manager_loop (§4.2.7): an
// observe/steer/wait cycle over the run's own context, re-evaluating a
// stop-condition expression every poll_interval until it is satisfied or
// max_cycle_timeout elapses. There is no child-pipeline subprocess to
// observe in this design — "observe" reads the current context snapshot the
// same way a condition expression does, and "steer" is whatever the
// previous hop already wrote into context; the loop's only job is deciding
// when that state satisfies stop_condition.
type ManagerLoopHandler struct{}

func (ManagerLoopHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	stopCondition := node.Attr("stop_condition", "")
	pollInterval := dot.DurationAttr(node.Attrs, "poll_interval", 5*time.Second)
	maxCycleTimeout := dot.DurationAttr(node.Attrs, "max_cycle_timeout", 10*time.Minute)

	deadline := time.Now().Add(maxCycleTimeout)
	cycles := 0
	probe := runtime.Outcome{Status: runtime.StatusSuccess}

	for {
		cycles++
		satisfied, err := cond.Evaluate(stopCondition, probe, exec.Context)
		if err != nil {
			return runtime.Outcome{Status: runtime.StatusFail, FailureReason: "stop_condition: " + err.Error()}, nil
		}
		if satisfied {
			return runtime.Outcome{
				Status:         runtime.StatusSuccess,
				ContextUpdates: map[string]any{"manager_loop.cycles": cycles},
			}, nil
		}
		if maxCycleTimeout > 0 && time.Now().After(deadline) {
			return runtime.Outcome{
				Status:        runtime.StatusFail,
				FailureReason: "stack.manager_loop exceeded max_cycle_timeout",
				ContextUpdates: map[string]any{
					"manager_loop.cycles": cycles,
				},
			}, nil
		}
		select {
		case <-ctx.Done():
			return runtime.Outcome{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
