package agent

import (
	"encoding/json"
	"fmt"

	"github.com/forge-labs/attractor/internal/llm"
)

// CheckpointUnsupportedError reports that a Session cannot be checkpointed
// right now because it has subagents still in flight (§4.3.11).
type CheckpointUnsupportedError struct {
	RunningSubagents int
}

func (e *CheckpointUnsupportedError) Error() string {
	return fmt.Sprintf("checkpoint unsupported: %d subagent(s) still running", e.RunningSubagents)
}

// Checkpoint is the serializable snapshot of a Session's resumable state.
// It intentionally excludes the ExecutionEnvironment and llm.Client, which
// the caller must supply again on restore — only conversational and
// bookkeeping state round-trips.
type Checkpoint struct {
	SessionID string `json:"session_id"`
	State     SessionState
	Turns     int
	Depth     int
	History   []Turn
	Steering  []string `json:"steering_queue"`
	FollowUps []string `json:"follow_ups"`

	ReasoningEffort string
	ProfileID       string
	Model           string
}

// Checkpoint captures the Session's state for later resumption via
// FromCheckpoint. It fails if any subagent is still running, since an
// in-flight child's state has no stable representation to serialize.
func (s *Session) Checkpoint() (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	for _, sa := range s.subagents {
		sa.mu.Lock()
		if sa.status == "running" {
			running++
		}
		sa.mu.Unlock()
	}
	if running > 0 {
		return nil, &CheckpointUnsupportedError{RunningSubagents: running}
	}

	cp := &Checkpoint{
		SessionID:       s.id,
		State:           s.state,
		Turns:           s.turns,
		Depth:           s.depth,
		History:         append([]Turn{}, s.history...),
		Steering:        append([]string{}, s.steeringQueue...),
		FollowUps:       append([]string{}, s.followups...),
		ReasoningEffort: s.cfg.ReasoningEffort,
		ProfileID:       s.profile.ID(),
		Model:           s.profile.Model(),
	}
	return cp, nil
}

// MarshalJSON-friendly encode/decode helpers, used by callers that persist
// checkpoints to CXDB blobs or local disk.

func (cp *Checkpoint) Encode() ([]byte, error) {
	return json.Marshal(cp)
}

func DecodeCheckpoint(b []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// FromCheckpoint rebuilds a Session from a previously captured Checkpoint,
// restoring history/turn-count/queues but requiring a fresh client, profile,
// and environment from the caller (§4.3.11). AWAITING_INPUT checkpoints
// resume as AWAITING_INPUT; PROCESSING checkpoints degrade to IDLE, since a
// tool round that was interrupted mid-flight cannot be resumed mid-round.
func FromCheckpoint(cp *Checkpoint, client *llm.Client, profile ProviderProfile, env ExecutionEnvironment, cfg SessionConfig) (*Session, error) {
	if cp == nil {
		return nil, fmt.Errorf("nil checkpoint")
	}
	cfg.ReasoningEffort = cp.ReasoningEffort
	s, err := NewSession(client, profile, env, cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.id = cp.SessionID
	s.turns = cp.Turns
	s.depth = cp.Depth
	s.history = append([]Turn{}, cp.History...)
	s.steeringQueue = append([]string{}, cp.Steering...)
	s.followups = append([]string{}, cp.FollowUps...)
	switch cp.State {
	case StateAwaitingInput:
		s.state = StateAwaitingInput
	default:
		s.state = StateIdle
	}
	s.mu.Unlock()
	return s, nil
}
