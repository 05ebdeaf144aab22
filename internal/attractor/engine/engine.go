package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/forge-labs/attractor/internal/agent"
	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/cxdb"
	"github.com/forge-labs/attractor/internal/idgen"
	"github.com/forge-labs/attractor/internal/llm"
)

const defaultMaxLoopRestarts = 20

// signatureLimit caps how many times the same node/target pair may trigger a
// loop restart before the engine gives up, a circuit breaker against a
// pipeline author's condition expression that can never stop restarting.
const signatureLimit = 8

// RunResult is what Engine.Run/Resume returns once a traversal halts.
type RunResult struct {
	RunContextID  cxdb.ContextID
	FinalStatus   runtime.FinalStatus
	FailureReason string
}

// Engine drives the Attractor traversal loop (§4.2) against one graph at a
// time. It owns no graph-specific state between runs; all of that lives in
// the per-run Execution/runState pair.
type Engine struct {
	Store    cxdb.Store
	LLM      *llm.Client
	Exec     agent.ExecutionEnvironment
	Registry *HandlerRegistry

	// Sleep and Rand are injectable so tests can run a full retry/backoff
	// sequence without actually waiting or needing real randomness.
	Sleep func(time.Duration)
	Rand  func() float64

	MaxLoopRestarts int
}

// NewEngine wires the default handler registry around client/env. Either may
// be nil; codergen/tool nodes then fail with a descriptive error instead of
// panicking.
func NewEngine(store cxdb.Store, client *llm.Client, env agent.ExecutionEnvironment) *Engine {
	if store == nil {
		store = cxdb.NoopStore{}
	}
	e := &Engine{Store: store, LLM: client, Exec: env, MaxLoopRestarts: defaultMaxLoopRestarts}
	codergen := NewCodergenHandler(NewAgentAdapterCodergenBackend(client, env))
	e.Registry = NewDefaultRegistry(codergen)
	e.Registry.Register("tool", ToolHandler{Env: env})
	return e
}

func (e *Engine) maxLoopRestarts() int {
	if e.MaxLoopRestarts > 0 {
		return e.MaxLoopRestarts
	}
	return defaultMaxLoopRestarts
}

func (e *Engine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run starts a fresh traversal of g from its start node (§4.2.1). source is
// the original DOT text g was parsed from (used only for the dot_source turn
// and checkpoint hashing); pass nil if unavailable.
func (e *Engine) Run(ctx context.Context, g *model.Graph, source []byte) (*RunResult, error) {
	ref, err := e.Store.CreateContext(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("engine: create run context: %w", err)
	}
	exec := &Execution{Graph: g, Context: NewContextWithGraphAttrs(g), Store: e.Store, RunCtxID: ref.ContextID, Engine: e, Source: string(source)}
	exec.Context.SetInternal("lineage.root_run_id", string(ref.ContextID))
	exec.Context.SetInternal("lineage.attempt", 1)

	if err := e.preflight(g); err != nil {
		return nil, err
	}

	e.persistRunInit(ctx, exec, g)

	startID, err := findStartNodeID(g)
	if err != nil {
		return nil, err
	}

	st := newRunState(string(ref.ContextID))
	outcome, final, rerr := e.loop(ctx, exec, startID, nil, st)
	e.emitRunLifecycle(ctx, exec, "finalized", g, string(final))

	res := &RunResult{RunContextID: ref.ContextID, FinalStatus: final, FailureReason: outcome.FailureReason}
	return res, rerr
}

// Resume continues a run from its most recently saved checkpoint (§4.2.8),
// applying the fidelity-degrade rule before the first post-resume hop.
func (e *Engine) Resume(ctx context.Context, g *model.Graph, runCtxID cxdb.ContextID) (*RunResult, error) {
	turns, err := e.Store.GetLast(ctx, runCtxID, 32, true)
	if err != nil {
		return nil, fmt.Errorf("engine: loading checkpoints: %w", err)
	}
	var snap *checkpointSnapshot
	for _, t := range turns {
		if t.TypeID != cxdb.TypeCheckpointSaved {
			continue
		}
		var payload cxdb.CheckpointSavedPayload
		if derr := cxdb.DecodePayload(t.PayloadBytes, &payload); derr != nil || len(payload.Refs) == 0 {
			continue
		}
		blob, ok, gerr := e.Store.GetBlob(ctx, payload.Refs[0])
		if gerr != nil || !ok {
			continue
		}
		var s checkpointSnapshot
		if jerr := json.Unmarshal(blob, &s); jerr == nil {
			snap = &s
			break
		}
	}
	if snap == nil {
		return nil, fmt.Errorf("engine: no checkpoint found for run %q", runCtxID)
	}

	exec := &Execution{Graph: g, Context: runtime.NewContext(), Store: e.Store, RunCtxID: runCtxID, Engine: e}
	exec.Context.ReplaceSnapshot(snap.Context, snap.StageLog)
	if snap.FidelityMode == "full" {
		exec.Context.SetInternal("fidelity.degrade_once", true)
	}

	e.emitRunLifecycle(ctx, exec, "resumed", g, "")

	st := newRunState(snap.RootRunID)
	st.completed = append(st.completed, snap.CompletedNodes...)
	for k, v := range snap.RetryCounters {
		st.retryCounters[k] = v
	}
	st.seq = snap.Seq
	st.attempt = snap.Attempt

	outcome, final, rerr := e.loop(ctx, exec, snap.NextNode, nil, st)
	e.emitRunLifecycle(ctx, exec, "finalized", g, string(final))

	res := &RunResult{RunContextID: runCtxID, FinalStatus: final, FailureReason: outcome.FailureReason}
	return res, rerr
}

// preflight fails fast if any reachable node needs a provider the engine was
// never given one (§4.2.6 codergen's RequiresProvider), rather than failing
// partway through a long traversal.
func (e *Engine) preflight(g *model.Graph) error {
	if e.LLM != nil {
		return nil
	}
	for id, n := range g.Nodes {
		h := e.Registry.Resolve(g, n)
		pr, ok := h.(ProviderRequiringHandler)
		if !ok || !pr.RequiresProvider() {
			continue
		}
		ch, ok := h.(CodergenHandler)
		if !ok {
			continue
		}
		switch ch.Backend.(type) {
		case LLMCodergenBackend, AgentAdapterCodergenBackend:
			return fmt.Errorf("engine: node %q requires an LLM provider but none is configured", id)
		}
	}
	return nil
}

// runState accumulates the traversal bookkeeping a checkpoint needs to
// reproduce, per §4.2.8.
type runState struct {
	seq           int
	completed     []string
	retryCounters map[string]int
	goalGates     []string
	satisfied     map[string]bool
	restartSig    map[string]int
	restarts      int
	rootRunID     string
	attempt       int
}

func newRunState(rootRunID string) *runState {
	return &runState{
		retryCounters: map[string]int{},
		satisfied:     map[string]bool{},
		restartSig:    map[string]int{},
		rootRunID:     rootRunID,
		attempt:       1,
	}
}

// loop is the shared traversal core behind Run, Resume, and a parallel
// branch's private sub-traversal (§4.2.1). stopAt, when non-nil, halts
// before dispatching a node in that set instead of treating it as a normal
// hop — used by a parallel branch to stop at its join node.
func (e *Engine) loop(ctx context.Context, exec *Execution, startID string, stopAt map[string]bool, st *runState) (runtime.Outcome, runtime.FinalStatus, error) {
	g := exec.Graph
	if st.goalGates == nil {
		st.goalGates = collectGoalGateNodes(g)
	}

	current := startID
	var lastOutcome runtime.Outcome

	for {
		if stopAt != nil && stopAt[current] {
			return lastOutcome, "", nil
		}
		node, ok := g.Nodes[current]
		if !ok {
			return lastOutcome, runtime.FinalFailure, fmt.Errorf("engine: unknown node %q", current)
		}

		typ := model.ResolveType(g, node)

		if model.IsTerminalType(typ) {
			st.completed = append(st.completed, node.ID)
			if checkGoalGates(st.goalGates, st.satisfied) {
				return lastOutcome, runtime.FinalSuccess, nil
			}
			if rt := strings.TrimSpace(node.Attr("retry_target", "")); rt != "" {
				if _, ok := g.Nodes[rt]; ok {
					current = rt
					continue
				}
			}
			return lastOutcome, runtime.FinalFailure, nil
		}

		var incoming *model.Edge
		if ins := g.Incoming(node.ID); len(ins) > 0 {
			incoming = ins[0]
		}
		resolveFidelityAndThread(g, incoming, node, exec.Context)

		res := e.executeWithRetry(ctx, exec, node)
		st.seq++
		st.retryCounters[node.ID] = res.attempts
		st.completed = append(st.completed, node.ID)
		lastOutcome = res.outcome
		exec.Context.AppendLog(fmt.Sprintf("node=%s status=%s attempts=%d", node.ID, res.outcome.Status, res.attempts))

		if isGoalGateNode(node) {
			partialOK := dot.BoolAttr(node.Attrs, "goal_gate_partial_ok", dot.BoolAttr(g.Attrs, "goal_gate_partial_ok", false))
			st.satisfied[node.ID] = res.outcome.Status == runtime.StatusSuccess ||
				(partialOK && res.outcome.Status == runtime.StatusPartialSuccess)
		}

		e.checkpoint(ctx, exec, st, node.ID, current, g)

		if res.err != nil && !isEscalatableFailureClass(res.class) {
			return lastOutcome, runtime.FinalFailure, res.err
		}

		if res.outcome.Status == runtime.StatusFail || res.outcome.Status == runtime.StatusRetry {
			nextID, reasonStep, found := e.selectFailureEdge(g, node, res.outcome, exec.Context)
			if found {
				e.emitRoute(ctx, exec, node.ID, nextID, reasonStep)
				current = nextID
				continue
			}
			if rt := strings.TrimSpace(node.Attr("retry_target", "")); rt != "" {
				if _, ok := g.Nodes[rt]; ok {
					current = rt
					continue
				}
			}
			if rt := strings.TrimSpace(node.Attr("fallback_retry_target", "")); rt != "" {
				if _, ok := g.Nodes[rt]; ok {
					current = rt
					continue
				}
			}
			return lastOutcome, runtime.FinalFailure, nil
		}

		nextID, reasonStep, serr := selectNextEdge(g, node, res.outcome, exec.Context)
		if serr != nil {
			return lastOutcome, runtime.FinalFailure, serr
		}

		edge := edgeTo(g, node.ID, nextID)
		if edge != nil && dot.BoolAttr(edge.Attrs, "loop_restart", false) {
			restarted, rerr := e.applyLoopRestart(ctx, exec, node, edge, st)
			if rerr != nil {
				return lastOutcome, runtime.FinalFailure, rerr
			}
			if !restarted {
				return lastOutcome, runtime.FinalFailure, fmt.Errorf("engine: loop_restart exhausted at node %q", node.ID)
			}
			current = edge.To
			continue
		}

		e.emitRoute(ctx, exec, node.ID, nextID, reasonStep)
		current = nextID
	}
}

// selectFailureEdge looks for an explicit outcome=fail-matching edge (the
// first step of §4.2.3's exhaustion routing) before falling back to
// retry_target/fallback_retry_target.
func (e *Engine) selectFailureEdge(g *model.Graph, node *model.Node, outcome runtime.Outcome, ctx *runtime.Context) (string, int, bool) {
	nextID, reasonStep, err := selectNextEdge(g, node, outcome, ctx)
	if err != nil {
		return "", 0, false
	}
	return nextID, reasonStep, true
}

// applyLoopRestart finalizes the current attempt and starts a fresh one per
// §4.2.10, capped by max_loop_restarts and a signature-based circuit
// breaker against a condition that can never converge.
func (e *Engine) applyLoopRestart(ctx context.Context, exec *Execution, node *model.Node, edge *model.Edge, st *runState) (bool, error) {
	maxRestarts := dot.IntAttr(exec.Graph.Attrs, "max_loop_restarts", e.maxLoopRestarts())
	if st.restarts >= maxRestarts {
		return false, nil
	}
	sig := node.ID + "|" + edge.To
	st.restartSig[sig]++
	if st.restartSig[sig] > signatureLimit {
		return false, nil
	}

	st.restarts++
	st.attempt++
	exec.Context.SetInternal("lineage.root_run_id", st.rootRunID)
	exec.Context.SetInternal("lineage.attempt", st.attempt)
	exec.Context.SetInternal("lineage.parent_run_id", string(exec.RunCtxID))

	if e.Store != nil {
		if forked, ferr := e.Store.ForkContext(ctx, ""); ferr == nil {
			exec.RunCtxID = forked.ContextID
		}
	}
	return true, nil
}

// attemptResult is the per-node outcome of executeWithRetry.
type attemptResult struct {
	outcome  runtime.Outcome
	class    failureClass
	attempts int
	err      error
}

// executeWithRetry runs a node's handler up to max_retries+1 times (§4.2.3),
// sleeping with exponential backoff between attempts and stopping as soon as
// the handler returns a non-retryable result (or a handler that opts out of
// retrying at all).
func (e *Engine) executeWithRetry(ctx context.Context, exec *Execution, node *model.Node) attemptResult {
	handler := e.Registry.Resolve(exec.Graph, node)
	maxAttempts := dot.IntAttr(node.Attrs, "max_retries", 0) + 1
	if se, ok := handler.(SingleExecutionHandler); ok && se.SkipRetry() {
		maxAttempts = 1
	}
	backoff := backoffConfigFor(node)

	var last attemptResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		exec.Attempt = attempt
		exec.StageAttemptID = fmt.Sprintf("%s:%d", node.ID, attempt)
		e.emitStage(ctx, exec, node.ID, "started", attempt, "")

		outcome, err := handler.Execute(ctx, exec, node)
		class := classifyFailure(outcome, err)

		if err != nil {
			e.emitStage(ctx, exec, node.ID, "failed", attempt, "")
			last = attemptResult{outcome: runtime.Outcome{Status: runtime.StatusFail, FailureReason: err.Error()}, class: class, attempts: attempt, err: err}
			if attempt < maxAttempts && shouldRetryOutcome(runtime.StatusFail, class) {
				e.emitStage(ctx, exec, node.ID, "retrying", attempt, "")
				e.sleep(delayForAttempt(backoff, attempt, e.Rand))
				continue
			}
			return last
		}

		co, cerr := outcome.Canonicalize()
		if cerr != nil {
			last = attemptResult{outcome: runtime.Outcome{Status: runtime.StatusFail, FailureReason: cerr.Error()}, class: failureClassDeterministic, attempts: attempt, err: cerr}
			e.emitStage(ctx, exec, node.ID, "failed", attempt, "")
			return last
		}

		exec.Context.ApplyUpdates(co.ContextUpdates)
		last = attemptResult{outcome: co, class: classifyFailure(co, nil), attempts: attempt}

		if co.Status == runtime.StatusRetry || co.Status == runtime.StatusFail {
			if attempt < maxAttempts && shouldRetryOutcome(co.Status, last.class) {
				e.emitStage(ctx, exec, node.ID, "retrying", attempt, string(co.Status))
				e.sleep(delayForAttempt(backoff, attempt, e.Rand))
				continue
			}
			e.emitStage(ctx, exec, node.ID, "failed", attempt, string(co.Status))
			return last
		}

		e.emitStage(ctx, exec, node.ID, "completed", attempt, string(co.Status))
		return last
	}
	return last
}

// findStartNodeID returns the lowest-declared-order node resolving to type
// "start".
func findStartNodeID(g *model.Graph) (string, error) {
	startID := ""
	bestOrder := -1
	for id, n := range g.Nodes {
		if model.ResolveType(g, n) != "start" {
			continue
		}
		if bestOrder == -1 || n.Order < bestOrder {
			bestOrder = n.Order
			startID = id
		}
	}
	if startID == "" {
		return "", fmt.Errorf("engine: graph has no start node")
	}
	return startID, nil
}

func collectGoalGateNodes(g *model.Graph) []string {
	var out []string
	for id, n := range g.Nodes {
		if isGoalGateNode(n) {
			out = append(out, id)
		}
	}
	return out
}

func isGoalGateNode(n *model.Node) bool {
	return dot.BoolAttr(n.Attrs, "goal_gate", false)
}

func checkGoalGates(gates []string, satisfied map[string]bool) bool {
	for _, id := range gates {
		if !satisfied[id] {
			return false
		}
	}
	return true
}

// NewContextWithGraphAttrs seeds a fresh runtime.Context with the graph's
// own goal attribute, the one piece of graph-level state a codergen prompt
// commonly interpolates.
func NewContextWithGraphAttrs(g *model.Graph) *runtime.Context {
	c := runtime.NewContext()
	if g == nil {
		return c
	}
	if goal, ok := g.Attrs["goal"]; ok && goal != "" {
		_ = c.Set("goal", goal)
	}
	return c
}

func newCheckpointID() string {
	return idgen.Prefixed("ckpt")
}
