package cxdb

import "github.com/vmihailenco/msgpack/v5"

// Payload types for the Forge-owned turn families (§4.4.3). Fields carry
// only domain/event-local data — CXDB-native lineage (turn_id,
// parent_turn_id, depth, append_ts, content_hash) already lives on
// StoredTurn and is never duplicated here. Struct tags are stable numeric
// strings rather than field names, the same convention the registry bundle
// field maps in registry.go use, so a schema evolution can rename a Go
// field without breaking already-written payloads.

// RunLifecyclePayload backs forge.attractor.run_lifecycle.
type RunLifecyclePayload struct {
	Kind        string `msgpack:"1"` // initialized | resumed | finalized
	RunID       string `msgpack:"2"`
	GraphName   string `msgpack:"3,omitempty"`
	Goal        string `msgpack:"4,omitempty"`
	FinalStatus string `msgpack:"5,omitempty"`
}

// StageLifecyclePayload backs forge.attractor.stage_lifecycle.
type StageLifecyclePayload struct {
	Kind           string `msgpack:"1"` // started | completed | failed | retrying
	NodeID         string `msgpack:"2"`
	StageAttemptID string `msgpack:"3"`
	Attempt        int    `msgpack:"4"`
	OutcomeStatus  string `msgpack:"5,omitempty"`
}

// ParallelLifecyclePayload backs forge.attractor.parallel_lifecycle.
type ParallelLifecyclePayload struct {
	Kind     string `msgpack:"1"` // started | branch_started | branch_completed | completed
	NodeID   string `msgpack:"2"`
	BranchID string `msgpack:"3,omitempty"`
}

// InterviewLifecyclePayload backs forge.attractor.interview_lifecycle.
type InterviewLifecyclePayload struct {
	Kind     string `msgpack:"1"` // started | completed | timeout
	NodeID   string `msgpack:"2"`
	Question string `msgpack:"3,omitempty"`
	Choice   string `msgpack:"4,omitempty"`
}

// CheckpointSavedPayload backs forge.attractor.checkpoint_saved.
type CheckpointSavedPayload struct {
	CheckpointID string   `msgpack:"1"`
	Seq          int      `msgpack:"2"`
	Refs         []string `msgpack:"3,omitempty"`
}

// RouteDecisionPayload backs forge.attractor.route_decision.
type RouteDecisionPayload struct {
	FromNode     string `msgpack:"1"`
	SelectedEdge string `msgpack:"2"`
	ReasonStep   int    `msgpack:"3"` // 1..5, see §4.2.2
}

// DotSourcePayload backs forge.attractor.dot_source. Small sources are
// inlined; larger ones are written via put_blob and referenced by hash.
type DotSourcePayload struct {
	Inline   string `msgpack:"1,omitempty"`
	BlobHash string `msgpack:"2,omitempty"`
}

// GraphSnapshotPayload backs forge.attractor.graph_snapshot.
type GraphSnapshotPayload struct {
	Inline   string `msgpack:"1,omitempty"`
	BlobHash string `msgpack:"2,omitempty"`
}

// UserTurnPayload backs forge.agent.user_turn.
type UserTurnPayload struct {
	Text string `msgpack:"1"`
}

// AssistantTurnPayload backs forge.agent.assistant_turn.
type AssistantTurnPayload struct {
	Text         string `msgpack:"1"`
	Model        string `msgpack:"2,omitempty"`
	InputTokens  int    `msgpack:"3,omitempty"`
	OutputTokens int    `msgpack:"4,omitempty"`
}

// ToolResultsTurnPayload backs forge.agent.tool_results_turn.
type ToolResultsTurnPayload struct {
	ToolName string `msgpack:"1"`
	CallID   string `msgpack:"2"`
	Output   string `msgpack:"3,omitempty"`
	IsError  bool   `msgpack:"4,omitempty"`
}

// SystemTurnPayload backs forge.agent.system_turn.
type SystemTurnPayload struct {
	Text string `msgpack:"1"`
}

// SteeringTurnPayload backs forge.agent.steering_turn.
type SteeringTurnPayload struct {
	Text string `msgpack:"1"`
}

// SessionLifecyclePayload backs forge.agent.session_lifecycle.
type SessionLifecyclePayload struct {
	Kind      string `msgpack:"1"` // start | end
	SessionID string `msgpack:"2"`
}

// ToolCallLifecyclePayload backs forge.agent.tool_call_lifecycle.
type ToolCallLifecyclePayload struct {
	Kind       string `msgpack:"1"` // start | end
	ToolName   string `msgpack:"2"`
	CallID     string `msgpack:"3"`
	DurationMS int    `msgpack:"4,omitempty"`
	IsError    bool   `msgpack:"5,omitempty"`
}

// StageToAgentPayload backs forge.link.stage_to_agent, the canonical join
// between a pipeline stage and the agent session it spawned or attached to
// (§4.4.5).
type StageToAgentPayload struct {
	PipelineContextID string `msgpack:"1"`
	NodeID             string `msgpack:"2"`
	StageAttemptID     string `msgpack:"3"`
	AgentContextID     string `msgpack:"4"`
	AgentHeadTurnID    string `msgpack:"5,omitempty"`
}

// EncodePayload msgpack-encodes a typed turn payload for
// AppendTurnRequest.PayloadBytes.
func EncodePayload(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodePayload msgpack-decodes a stored turn's payload into v.
func DecodePayload(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
