package cxdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Turn-family type identifiers (§4.4.3). Each is msgpack-encoded with the
// matching Payload type in codec.go and described by one of the two
// registry bundles below.
const (
	TypeRunLifecycle       = "forge.attractor.run_lifecycle"
	TypeStageLifecycle     = "forge.attractor.stage_lifecycle"
	TypeParallelLifecycle  = "forge.attractor.parallel_lifecycle"
	TypeInterviewLifecycle = "forge.attractor.interview_lifecycle"
	TypeCheckpointSaved    = "forge.attractor.checkpoint_saved"
	TypeRouteDecision      = "forge.attractor.route_decision"
	TypeDotSource          = "forge.attractor.dot_source"
	TypeGraphSnapshot      = "forge.attractor.graph_snapshot"

	TypeUserTurn          = "forge.agent.user_turn"
	TypeAssistantTurn     = "forge.agent.assistant_turn"
	TypeToolResultsTurn   = "forge.agent.tool_results_turn"
	TypeSystemTurn        = "forge.agent.system_turn"
	TypeSteeringTurn      = "forge.agent.steering_turn"
	TypeSessionLifecycle  = "forge.agent.session_lifecycle"
	TypeToolCallLifecycle = "forge.agent.tool_call_lifecycle"

	TypeStageToAgent = "forge.link.stage_to_agent"
)

// schemaVersion is the registry generation published as .../runtime.v2
// (§4.4.3) — the bundle a host must publish_registry_bundle before the
// first write of a turn at this version.
const schemaVersion = 2

// RegistryBundle describes one schema generation's set of typed-turn
// definitions, in the same shape a CXDB host expects from
// publish_registry_bundle.
type RegistryBundle struct {
	RegistryVersion int            `json:"registry_version"`
	BundleID        string         `json:"bundle_id"`
	Types           map[string]any `json:"types"`
	Enums           map[string]any `json:"enums,omitempty"`
}

// AttractorRegistryBundle returns the registry bundle covering every
// forge.attractor.* and forge.link.* turn family, published as
// forge.attractor.runtime.v2.
func AttractorRegistryBundle() (bundleID string, bundle RegistryBundle, sha256hex string, err error) {
	bundle = RegistryBundle{
		RegistryVersion: schemaVersion,
		Types: map[string]any{
			TypeRunLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("run_id", "string"),
				"3": field("graph_name", "string", opt()),
				"4": field("goal", "string", opt()),
				"5": field("final_status", "string", opt()),
			}),
			TypeStageLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("node_id", "string"),
				"3": field("stage_attempt_id", "string"),
				"4": fieldSemantic("attempt", "u32", "count"),
				"5": field("outcome_status", "string", opt()),
			}),
			TypeParallelLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("node_id", "string"),
				"3": field("branch_id", "string", opt()),
			}),
			TypeInterviewLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("node_id", "string"),
				"3": field("question", "string", opt()),
				"4": field("choice", "string", opt()),
			}),
			TypeCheckpointSaved: typeDef(map[string]any{
				"1": field("checkpoint_id", "string"),
				"2": fieldSemantic("seq", "u64", "count"),
				"3": fieldArray("refs", "string", opt()),
			}),
			TypeRouteDecision: typeDef(map[string]any{
				"1": field("from_node", "string"),
				"2": field("selected_edge", "string"),
				"3": fieldSemantic("reason_step", "u32", "count"),
			}),
			TypeDotSource: typeDef(map[string]any{
				"1": field("inline", "string", opt()),
				"2": field("blob_hash", "string", opt()),
			}),
			TypeGraphSnapshot: typeDef(map[string]any{
				"1": field("inline", "string", opt()),
				"2": field("blob_hash", "string", opt()),
			}),
			TypeStageToAgent: typeDef(map[string]any{
				"1": field("pipeline_context_id", "string"),
				"2": field("node_id", "string"),
				"3": field("stage_attempt_id", "string"),
				"4": field("agent_context_id", "string"),
				"5": field("agent_head_turn_id", "string", opt()),
			}),
		},
		Enums: map[string]any{},
	}
	return finalizeBundle("forge.attractor.runtime", bundle)
}

// AgentRegistryBundle returns the registry bundle covering every
// forge.agent.* turn family, published as forge.agent.runtime.v2.
func AgentRegistryBundle() (bundleID string, bundle RegistryBundle, sha256hex string, err error) {
	bundle = RegistryBundle{
		RegistryVersion: schemaVersion,
		Types: map[string]any{
			TypeUserTurn: typeDef(map[string]any{
				"1": field("text", "string"),
			}),
			TypeAssistantTurn: typeDef(map[string]any{
				"1": field("text", "string"),
				"2": field("model", "string", opt()),
				"3": fieldSemantic("input_tokens", "u64", "count", opt()),
				"4": fieldSemantic("output_tokens", "u64", "count", opt()),
			}),
			TypeToolResultsTurn: typeDef(map[string]any{
				"1": field("tool_name", "string"),
				"2": field("call_id", "string"),
				"3": field("output", "string", opt()),
				"4": field("is_error", "bool", opt()),
			}),
			TypeSystemTurn: typeDef(map[string]any{
				"1": field("text", "string"),
			}),
			TypeSteeringTurn: typeDef(map[string]any{
				"1": field("text", "string"),
			}),
			TypeSessionLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("session_id", "string"),
			}),
			TypeToolCallLifecycle: typeDef(map[string]any{
				"1": field("kind", "string"),
				"2": field("tool_name", "string"),
				"3": field("call_id", "string"),
				"4": fieldSemantic("duration_ms", "u64", "duration_ms", opt()),
				"5": field("is_error", "bool", opt()),
			}),
		},
		Enums: map[string]any{},
	}
	return finalizeBundle("forge.agent.runtime", bundle)
}

func finalizeBundle(prefix string, bundle RegistryBundle) (string, RegistryBundle, string, error) {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return "", RegistryBundle{}, "", err
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	id := fmt.Sprintf("%s.v%d#%s", prefix, schemaVersion, digest[:12])
	bundle.BundleID = id
	return id, bundle, digest, nil
}

func typeDef(fields map[string]any) map[string]any {
	return map[string]any{
		"versions": map[string]any{
			"1": map[string]any{
				"fields": fields,
			},
		},
	}
}

func field(name, typ string, opts ...map[string]any) map[string]any {
	out := map[string]any{"name": name, "type": typ}
	for _, o := range opts {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

func fieldSemantic(name, typ, semantic string, opts ...map[string]any) map[string]any {
	out := field(name, typ, opts...)
	out["semantic"] = semantic
	return out
}

func fieldArray(name, itemsType string, opts ...map[string]any) map[string]any {
	out := map[string]any{
		"name":  name,
		"type":  "array",
		"items": itemsType,
	}
	for _, o := range opts {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

func opt() map[string]any { return map[string]any{"optional": true} }
