package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/cxdb"
)

// Execution is the per-run handle a Handler dispatches against: the graph
// being traversed, the mutable context, and the CXDB store/context the
// handler may append blobs or sub-turns to. Checkpoint state and the
// git-worktree/artifact-directory machinery a CLI-backed codergen needs have
// no equivalent here — stage output is a CXDB blob, not a file on disk.
type Execution struct {
	Graph    *model.Graph
	Context  *runtime.Context
	Store    cxdb.Store
	RunCtxID cxdb.ContextID
	Engine   *Engine

	// Source is the original DOT text the graph was parsed from, kept only
	// for the dot_source turn and checkpoint hashing — handlers never read
	// it.
	Source string

	// StageAttemptID and Attempt identify the current dispatch for handlers
	// that need to tag persisted artifacts (codergen) or interview events.
	StageAttemptID string
	Attempt        int
}

// Handler executes one node and returns the Outcome driving edge selection.
// Handlers never select the next edge themselves (§4.2.2 owns that).
type Handler interface {
	Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error)
}

// FidelityAwareHandler is implemented by handlers whose backend call should
// honor the resolved fidelity/thread state (codergen); handlers that ignore
// it (start, exit, tool) need not implement it.
type FidelityAwareHandler interface {
	UsesFidelity() bool
}

// SingleExecutionHandler is implemented by handlers for which retrying is
// never meaningful (conditional's outcome is a pure function of context, so
// re-running it cannot change the result).
type SingleExecutionHandler interface {
	SkipRetry() bool
}

// ProviderRequiringHandler is implemented by handlers that need an LLM
// provider configured before a run starts (codergen), so the engine can
// fail a run during preflight rather than partway through traversal.
type ProviderRequiringHandler interface {
	RequiresProvider() bool
}

// HandlerRegistry resolves a node to the Handler that executes it (§4.2.5).
// An explicit type-string registration always wins over shape resolution;
// registering the same type string twice keeps the latest registration.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string]Handler
	fallback Handler
}

// NewDefaultRegistry wires the built-in handler set. codergen is supplied by
// the caller since it carries the llm.Client the engine was constructed
// with; everything else has no external dependency.
func NewDefaultRegistry(codergen Handler) *HandlerRegistry {
	r := &HandlerRegistry{byType: map[string]Handler{}, fallback: codergen}
	r.Register("start", StartHandler{})
	r.Register("exit", ExitHandler{})
	r.Register("conditional", ConditionalHandler{})
	r.Register("codergen", codergen)
	r.Register("wait.human", NewWaitHumanHandler(AutoApproveInterviewer{}))
	r.Register("tool", ToolHandler{})
	r.Register("parallel", ParallelHandler{})
	r.Register("parallel.fan_in", FanInHandler{})
	r.Register("stack.manager_loop", ManagerLoopHandler{})
	return r
}

// Register installs h as the handler for typ, overriding any previous
// registration (latest-wins, per §4.2.5).
func (r *HandlerRegistry) Register(typ string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.byType = map[string]Handler{}
	}
	r.byType[typ] = h
}

// KnownTypes returns every registered type string, sorted, for diagnostics.
func (r *HandlerRegistry) KnownTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the handler for n, per §4.2.5's resolution order: explicit
// type attribute / shape mapping (both folded into model.ResolveType), then
// the default handler if the resolved type has no registration.
func (r *HandlerRegistry) Resolve(g *model.Graph, n *model.Node) Handler {
	typ := model.ResolveType(g, n)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.byType[typ]; ok {
		return h
	}
	return r.fallback
}

// StartHandler is a no-op that always succeeds (§4.2.6).
type StartHandler struct{}

func (StartHandler) Execute(context.Context, *Execution, *model.Node) (runtime.Outcome, error) {
	return runtime.Outcome{Status: runtime.StatusSuccess}, nil
}

// ExitHandler is a no-op that always succeeds (§4.2.6).
type ExitHandler struct{}

func (ExitHandler) Execute(context.Context, *Execution, *model.Node) (runtime.Outcome, error) {
	return runtime.Outcome{Status: runtime.StatusSuccess}, nil
}

// ConditionalHandler passes through with success; routing is entirely
// carried by the outgoing edges' own condition expressions (§4.2.6).
type ConditionalHandler struct{}

func (ConditionalHandler) Execute(context.Context, *Execution, *model.Node) (runtime.Outcome, error) {
	return runtime.Outcome{Status: runtime.StatusSuccess}, nil
}

// SkipRetry reports true: a conditional node's outcome never depends on
// anything retrying could change.
func (ConditionalHandler) SkipRetry() bool { return true }

// unknownTypeError is returned by handlers that refuse to run against a node
// missing attributes their contract requires (e.g. tool with no command).
func unknownTypeError(kind, nodeID string) error {
	return fmt.Errorf("engine: %s node %q is missing required configuration", kind, nodeID)
}
