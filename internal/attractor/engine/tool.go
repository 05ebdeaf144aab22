package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/forge-labs/attractor/internal/agent"
	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// ToolHandler executes a node's configured command deterministically and
// maps its exit code/stdout/stderr to an Outcome (§4.2.6). It reuses the
// agent package's ExecutionEnvironment rather than re-implementing process
// management, since the two need identical timeout/kill semantics.
type ToolHandler struct {
	Env agent.ExecutionEnvironment
}

func (h ToolHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	command := strings.TrimSpace(node.Attr("command", ""))
	if command == "" {
		return runtime.Outcome{}, unknownTypeError("tool", node.ID)
	}

	env := h.Env
	if env == nil && exec != nil && exec.Engine != nil {
		env = exec.Engine.Exec
	}
	if env == nil {
		return runtime.Outcome{}, fmt.Errorf("engine: tool node %q has no execution environment configured", node.ID)
	}

	timeoutMS := int(dot.DurationAttr(node.Attrs, "tool.timeout", 0).Milliseconds())
	res, err := env.ExecCommand(ctx, command, timeoutMS, node.Attr("tool.cwd", ""), nil)
	if err != nil && res.ExitCode == 0 {
		return runtime.Outcome{Status: runtime.StatusFail, FailureReason: err.Error()}, nil
	}

	if res.ExitCode != 0 || res.TimedOut {
		reason := fmt.Sprintf("tool exited with code %d", res.ExitCode)
		if res.TimedOut {
			reason = "tool timed out"
		}
		return runtime.Outcome{
			Status:        runtime.StatusFail,
			FailureReason: reason,
			Notes:         res.Stdout + res.Stderr,
			ContextUpdates: map[string]any{
				"tool.exit_code": res.ExitCode,
				"tool.stdout":    res.Stdout,
				"tool.stderr":    res.Stderr,
			},
		}, nil
	}

	return runtime.Outcome{
		Status: runtime.StatusSuccess,
		Notes:  res.Stdout,
		ContextUpdates: map[string]any{
			"tool.exit_code": res.ExitCode,
			"tool.stdout":    res.Stdout,
			"tool.stderr":    res.Stderr,
		},
	}, nil
}
