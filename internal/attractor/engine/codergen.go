package engine

import (
	"context"
	"strings"

	"github.com/forge-labs/attractor/internal/agent"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
	"github.com/forge-labs/attractor/internal/cxdb"
	"github.com/forge-labs/attractor/internal/llm"
)

// CodergenBackend turns a resolved prompt into an Outcome. NewEngine wires
// AgentAdapterCodergenBackend, which uses LLMCodergenBackend when no
// execution environment is set; tests substitute SimulatedCodergenBackend
// for deterministic, provider-free runs.
type CodergenBackend interface {
	Run(ctx context.Context, exec *Execution, node *model.Node, prompt string) (responseText string, outcome *runtime.Outcome, err error)
}

// CodergenHandler resolves a node's prompt, invokes the configured backend,
// persists the prompt/response as CXDB blobs, and maps the backend's result
// to an Outcome (§4.2.6).
type CodergenHandler struct {
	Backend CodergenBackend
}

func NewCodergenHandler(backend CodergenBackend) CodergenHandler {
	return CodergenHandler{Backend: backend}
}

func (h CodergenHandler) UsesFidelity() bool     { return true }
func (h CodergenHandler) RequiresProvider() bool { return true }

func (h CodergenHandler) Execute(ctx context.Context, exec *Execution, node *model.Node) (runtime.Outcome, error) {
	prompt := resolvePrompt(exec, node)
	if strings.TrimSpace(prompt) == "" {
		return runtime.Outcome{}, unknownTypeError("codergen", node.ID)
	}

	backend := h.Backend
	if backend == nil {
		backend = SimulatedCodergenBackend{}
	}
	responseText, outcome, err := backend.Run(ctx, exec, node, prompt)
	if err != nil {
		return runtime.Outcome{}, err
	}

	artifacts := map[string]any{}
	if exec.Store != nil {
		if hash, perr := exec.Store.PutBlob(ctx, []byte(prompt)); perr == nil {
			artifacts["prompt_blob_hash"] = hash
		}
		if hash, perr := exec.Store.PutBlob(ctx, []byte(responseText)); perr == nil {
			artifacts["response_blob_hash"] = hash
		}
	}

	var result runtime.Outcome
	if outcome != nil {
		co, err := outcome.Canonicalize()
		if err != nil {
			return runtime.Outcome{}, err
		}
		result = co
	} else if decoded, derr := runtime.DecodeOutcomeJSON([]byte(responseText)); derr == nil {
		result = decoded
	} else {
		result = runtime.Outcome{Status: runtime.StatusSuccess, Notes: responseText}
	}

	if len(artifacts) > 0 {
		if result.Meta == nil {
			result.Meta = map[string]any{}
		}
		result.Meta["artifacts"] = artifacts
	}
	return result, nil
}

// resolvePrompt resolves a codergen node's prompt per §4.2.6: the `prompt`
// attribute if set, else the node's `label`, with `$goal` expanded
// against the graph's goal attribute.
func resolvePrompt(exec *Execution, node *model.Node) string {
	prompt := node.Attr("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		prompt = node.Attr("label", "")
	}
	goal := ""
	if exec != nil && exec.Graph != nil {
		goal = exec.Graph.Attrs["goal"]
	}
	return strings.ReplaceAll(prompt, "$goal", goal)
}

// LLMCodergenBackend is the direct-LLM CodergenBackend, calling out to the
// unified LLM client contract (§4.3) instead of a CLI subprocess. The
// returned outcome is always nil: CodergenHandler parses the response text
// as a status.json-shaped Outcome, falling back to success with the raw
// text as Notes, the same contract a CLI-backed backend's stdout would have
// satisfied.
type LLMCodergenBackend struct {
	Client       *llm.Client
	SystemPrompt string
}

func NewLLMCodergenBackend(client *llm.Client) LLMCodergenBackend {
	return LLMCodergenBackend{Client: client, SystemPrompt: defaultCodergenSystemPrompt}
}

const defaultCodergenSystemPrompt = "You are a pipeline stage executing one step of an automated build. " +
	"Respond with the requested work, then end with a single JSON object matching " +
	"{\"status\":\"success|partial_success|retry|fail|skipped\",\"preferred_label\":\"\"," +
	"\"suggested_next_ids\":[],\"context_updates\":{},\"notes\":\"\",\"failure_reason\":\"\"}."

func (b LLMCodergenBackend) Run(ctx context.Context, exec *Execution, node *model.Node, prompt string) (string, *runtime.Outcome, error) {
	if b.Client == nil {
		return "", nil, unknownTypeError("codergen", node.ID)
	}
	req := llm.Request{
		Provider: node.Attr("provider", ""),
		Model:    node.Attr("model", ""),
		Messages: []llm.Message{llm.System(b.SystemPrompt), llm.User(prompt)},
	}
	if effort := strings.TrimSpace(node.Attr("reasoning_effort", "")); effort != "" {
		req.ReasoningEffort = &effort
	}
	resp, err := b.Client.Complete(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return resp.Text(), nil, nil
}

// AgentAdapterCodergenBackend is the production CodergenBackend: it maps a
// codergen node's attributes to a full agent session (tool calls, file
// edits, shell access) rather than a single bare completion, and records the
// stage→agent join CXDB needs to let a reader walk from a pipeline run into
// the session it spawned (§4.4.5's stage_to_agent link). Falls back to
// LLMCodergenBackend's bare-completion behavior when no execution
// environment is wired, since a tool-using session has nothing to execute
// tools against.
type AgentAdapterCodergenBackend struct {
	Client *llm.Client
	Env    agent.ExecutionEnvironment
}

func NewAgentAdapterCodergenBackend(client *llm.Client, env agent.ExecutionEnvironment) AgentAdapterCodergenBackend {
	return AgentAdapterCodergenBackend{Client: client, Env: env}
}

func (b AgentAdapterCodergenBackend) Run(ctx context.Context, exec *Execution, node *model.Node, prompt string) (string, *runtime.Outcome, error) {
	if b.Client == nil {
		return "", nil, unknownTypeError("codergen", node.ID)
	}
	if b.Env == nil {
		return LLMCodergenBackend{Client: b.Client, SystemPrompt: defaultCodergenSystemPrompt}.Run(ctx, exec, node, prompt)
	}

	profile := resolveAgentProfile(node.Attr("provider", ""), node.Attr("model", ""))
	cfg := agent.SessionConfig{}
	if effort := strings.TrimSpace(node.Attr("reasoning_effort", "")); effort != "" {
		cfg.ReasoningEffort = effort
	}
	sess, err := agent.NewSession(b.Client, profile, b.Env, cfg)
	if err != nil {
		return "", nil, err
	}
	defer sess.Close()

	if exec.Store != nil && exec.RunCtxID != "" {
		if ref, cerr := exec.Store.CreateContext(ctx, ""); cerr == nil {
			payload, perr := cxdb.EncodePayload(cxdb.StageToAgentPayload{
				PipelineContextID: string(exec.RunCtxID),
				NodeID:            node.ID,
				StageAttemptID:    exec.StageAttemptID,
				AgentContextID:    string(ref.ContextID),
			})
			if perr == nil {
				_, _ = exec.Store.AppendTurn(ctx, cxdb.AppendTurnRequest{ContextID: exec.RunCtxID, TypeID: cxdb.TypeStageToAgent, TypeVersion: 2, PayloadBytes: payload})
			}
		}
	}

	out, err := sess.ProcessInput(ctx, prompt+"\n\n"+defaultCodergenSystemPrompt)
	if err != nil {
		return "", nil, err
	}
	return out, nil, nil
}

// resolveAgentProfile maps a codergen node's provider attribute to one of
// the registered provider profiles via agent.NewProfileForFamily, defaulting
// to OpenAI when unset or unrecognized — the same default
// LLMCodergenBackend's bare llm.Request leaves to the client's own provider
// routing. "gemini" is accepted as an alias for the "google" family.
func resolveAgentProfile(provider, model string) agent.ProviderProfile {
	family := strings.ToLower(strings.TrimSpace(provider))
	if family == "gemini" {
		family = "google"
	}
	if family == "" {
		family = "openai"
	}
	if p, err := agent.NewProfileForFamily(family, model); err == nil {
		return p
	}
	return agent.NewOpenAIProfile(model)
}

// SimulatedCodergenBackend always succeeds without calling any provider,
// grounded on the same need the teacher's own simulated backend serves:
// exercising the engine's traversal and persistence logic in tests without
// an LLM client.
type SimulatedCodergenBackend struct {
	Status runtime.StageStatus
}

func (b SimulatedCodergenBackend) Run(_ context.Context, _ *Execution, node *model.Node, prompt string) (string, *runtime.Outcome, error) {
	status := b.Status
	if status == "" {
		status = runtime.StatusSuccess
	}
	return "simulated response for " + node.ID, &runtime.Outcome{Status: status, Notes: "simulated: " + prompt}, nil
}
