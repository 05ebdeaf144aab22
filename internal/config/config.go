// Package config holds the YAML-decode target types for a forge.yaml-style
// host configuration (fs_snapshot policy, tool output limits, retry
// backoff). Reading a path or assembling env-var overrides is a hosting
// concern and stays out of this module (§1); only the decode targets and a
// DecodeConfig helper live here (§A.2).
package config

import (
	"io"

	"gopkg.in/yaml.v3"
)

// FSSnapshotPolicy bounds the Merkle filesystem snapshot walk (§4.4.4).
type FSSnapshotPolicy struct {
	MaxFiles       int      `yaml:"max_files"`
	MaxTotalBytes  int64    `yaml:"max_total_bytes"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
	ExcludeGlobs   []string `yaml:"exclude_globs"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
}

// RetryPolicyConfig mirrors llm.RetryPolicy in YAML-friendly form so it can
// be decoded from a host config file and converted at the call site.
type RetryPolicyConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMS int     `yaml:"base_delay_ms"`
	MaxDelayMS  int     `yaml:"max_delay_ms"`
	JitterFrac  float64 `yaml:"jitter_frac"`
}

// ToolOutputLimitConfig mirrors agent.ToolOutputLimit in YAML-friendly form.
type ToolOutputLimitConfig struct {
	MaxChars int    `yaml:"max_chars"`
	MaxLines int    `yaml:"max_lines"`
	Strategy string `yaml:"strategy"`
}

// SessionConfig is the YAML-decodable projection of agent.SessionConfig.
type SessionConfig struct {
	MaxToolRoundsPerInput          int                              `yaml:"max_tool_rounds_per_input"`
	MaxTurns                       int                               `yaml:"max_turns"`
	DefaultCommandTimeoutMS        int                               `yaml:"default_command_timeout_ms"`
	MaxCommandTimeoutMS            int                               `yaml:"max_command_timeout_ms"`
	RepeatedMalformedToolCallLimit int                               `yaml:"repeated_malformed_tool_call_limit"`
	MaxSubagentDepth               int                               `yaml:"max_subagent_depth"`
	ToolOutputLimits               map[string]ToolOutputLimitConfig `yaml:"tool_output_limits"`
	ReasoningEffort                string                            `yaml:"reasoning_effort"`
	EnableLoopDetection            *bool                             `yaml:"enable_loop_detection"`
	LoopDetectionWindow            int                               `yaml:"loop_detection_window"`
	LLMRetryPolicy                 *RetryPolicyConfig                `yaml:"llm_retry_policy"`
}

// RunConfig is the YAML-decodable projection of an Attractor pipeline run's
// host-level settings (§4.2, §4.4.4).
type RunConfig struct {
	EntryGraph     string           `yaml:"entry_graph"`
	MaxRetries     int              `yaml:"max_retries"`
	GoalGateLimit  int              `yaml:"goal_gate_limit"`
	FSSnapshot     FSSnapshotPolicy `yaml:"fs_snapshot"`
	CheckpointPath string           `yaml:"checkpoint_path"`
}

// Config is the top-level decode target for a forge.yaml host config file.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Session SessionConfig `yaml:"session"`
}

// DecodeConfig decodes a forge.yaml document from r. Callers own finding and
// opening the file (or substituting env-var overrides); this only handles
// the YAML -> struct step.
func DecodeConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(false)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, err
	}
	return cfg, nil
}
