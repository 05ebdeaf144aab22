package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forge-labs/attractor/internal/idgen"
)

// subagent wraps a nested Session spawned via the spawn_agent tool. The
// parent drives it asynchronously: ProcessInput runs in its own goroutine so
// the parent's own tool-dispatch loop is never blocked on a child (§4.3.10).
type subagent struct {
	id      string
	session *Session

	mu     sync.Mutex
	status string // "running" | "completed" | "error" | "closed"
	output string
	err    error
	done   chan struct{}
}

func (sa *subagent) close() {
	sa.session.Close()
	sa.mu.Lock()
	if sa.status == "running" {
		sa.status = "closed"
	}
	sa.mu.Unlock()
}

// spawnAgent creates a child Session at depth+1 and starts it processing
// task asynchronously. Exceeding cfg.MaxSubagentDepth is a structured
// validation failure, not a panic (§4.3.10).
func (s *Session) spawnAgent(ctx context.Context, task string) (map[string]any, error) {
	s.mu.Lock()
	if s.depth+1 > s.cfg.MaxSubagentDepth {
		depth := s.depth
		s.mu.Unlock()
		return nil, fmt.Errorf("max_subagent_depth exceeded: depth %d, limit %d", depth+1, s.cfg.MaxSubagentDepth)
	}
	childCfg := s.cfg
	childCfg.MaxSubagentDepth = s.cfg.MaxSubagentDepth
	s.mu.Unlock()

	child, err := NewSession(s.client, s.profile, s.env, childCfg)
	if err != nil {
		return nil, fmt.Errorf("spawn_agent: %w", err)
	}
	child.mu.Lock()
	child.depth = s.depth + 1
	child.mu.Unlock()

	sa := &subagent{id: idgen.Prefixed("agent"), session: child, status: "running", done: make(chan struct{})}

	s.mu.Lock()
	s.subagents[sa.id] = sa
	s.mu.Unlock()

	go func() {
		out, err := child.ProcessInput(context.Background(), task)
		sa.mu.Lock()
		sa.output = out
		sa.err = err
		if err != nil {
			sa.status = "error"
		} else {
			sa.status = "completed"
		}
		sa.mu.Unlock()
		close(sa.done)
	}()

	return map[string]any{"agent_id": sa.id, "status": "started"}, nil
}

func (s *Session) lookupSubagent(id string) (*subagent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, ok := s.subagents[id]
	if !ok {
		return nil, fmt.Errorf("unknown agent_id: %s", id)
	}
	return sa, nil
}

// sendInput queues additional input to a still-running subagent via its own
// follow-up queue, or starts a fresh turn if it already finished.
func (s *Session) sendInput(ctx context.Context, id, input string) (map[string]any, error) {
	sa, err := s.lookupSubagent(id)
	if err != nil {
		return nil, err
	}

	sa.mu.Lock()
	status := sa.status
	sa.mu.Unlock()

	if status == "closed" {
		return nil, fmt.Errorf("agent %s is closed", id)
	}
	if status == "running" {
		sa.session.FollowUp(input)
		return map[string]any{"agent_id": id, "status": "queued"}, nil
	}

	sa.mu.Lock()
	sa.status = "running"
	sa.done = make(chan struct{})
	sa.mu.Unlock()

	go func() {
		out, err := sa.session.ProcessInput(context.Background(), input)
		sa.mu.Lock()
		sa.output = out
		sa.err = err
		if err != nil {
			sa.status = "error"
		} else {
			sa.status = "completed"
		}
		sa.mu.Unlock()
		close(sa.done)
	}()
	return map[string]any{"agent_id": id, "status": "started"}, nil
}

// waitAgent blocks until the subagent finishes its current turn or timeoutMS
// elapses, whichever comes first.
func (s *Session) waitAgent(ctx context.Context, id string, timeoutMS int) (map[string]any, error) {
	sa, err := s.lookupSubagent(id)
	if err != nil {
		return nil, err
	}
	if timeoutMS <= 0 {
		timeoutMS = 30_000
	}

	sa.mu.Lock()
	done := sa.done
	sa.mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Duration(timeoutMS) * time.Millisecond):
		sa.mu.Lock()
		status := sa.status
		sa.mu.Unlock()
		return map[string]any{"agent_id": id, "status": status, "timed_out": true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sa.mu.Lock()
	defer sa.mu.Unlock()
	result := map[string]any{"agent_id": id, "status": sa.status, "output": sa.output}
	if sa.err != nil {
		result["error"] = sa.err.Error()
	}
	return result, nil
}

// closeAgent terminates a subagent and its descendants, mirroring the
// parent-close cascade of Session.Close (§4.3.10).
func (s *Session) closeAgent(id string) (map[string]any, error) {
	sa, err := s.lookupSubagent(id)
	if err != nil {
		return nil, err
	}
	sa.close()
	return map[string]any{"agent_id": id, "status": "closed"}, nil
}
