package config

import (
	"strings"
	"testing"
)

func TestDecodeConfig_FullDocument(t *testing.T) {
	doc := `
run:
  entry_graph: pipeline.dot
  max_retries: 3
  goal_gate_limit: 5
  checkpoint_path: /var/run/forge/checkpoint.json
  fs_snapshot:
    max_files: 5000
    max_total_bytes: 104857600
    max_file_bytes: 1048576
    exclude_globs:
      - ".git/**"
      - "node_modules/**"
    follow_symlinks: false
session:
  max_tool_rounds_per_input: 20
  max_turns: 200
  default_command_timeout_ms: 30000
  max_command_timeout_ms: 600000
  repeated_malformed_tool_call_limit: 3
  max_subagent_depth: 2
  reasoning_effort: medium
  enable_loop_detection: true
  loop_detection_window: 6
  tool_output_limits:
    write_file:
      max_chars: 10000
      max_lines: 500
      strategy: head_tail
  llm_retry_policy:
    max_attempts: 4
    base_delay_ms: 500
    max_delay_ms: 30000
    jitter_frac: 0.2
`
	cfg, err := DecodeConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}

	if cfg.Run.EntryGraph != "pipeline.dot" {
		t.Fatalf("Run.EntryGraph: got %q", cfg.Run.EntryGraph)
	}
	if cfg.Run.MaxRetries != 3 || cfg.Run.GoalGateLimit != 5 {
		t.Fatalf("Run cardinality fields: %+v", cfg.Run)
	}
	if len(cfg.Run.FSSnapshot.ExcludeGlobs) != 2 || cfg.Run.FSSnapshot.ExcludeGlobs[0] != ".git/**" {
		t.Fatalf("FSSnapshot.ExcludeGlobs: %+v", cfg.Run.FSSnapshot.ExcludeGlobs)
	}
	if cfg.Run.FSSnapshot.MaxTotalBytes != 104857600 {
		t.Fatalf("FSSnapshot.MaxTotalBytes: got %d", cfg.Run.FSSnapshot.MaxTotalBytes)
	}

	if cfg.Session.MaxToolRoundsPerInput != 20 || cfg.Session.MaxTurns != 200 {
		t.Fatalf("Session cardinality fields: %+v", cfg.Session)
	}
	if cfg.Session.EnableLoopDetection == nil || !*cfg.Session.EnableLoopDetection {
		t.Fatalf("Session.EnableLoopDetection: got %v", cfg.Session.EnableLoopDetection)
	}
	limit, ok := cfg.Session.ToolOutputLimits["write_file"]
	if !ok {
		t.Fatalf("expected a write_file tool output limit entry")
	}
	if limit.MaxChars != 10000 || limit.Strategy != "head_tail" {
		t.Fatalf("write_file limit: %+v", limit)
	}
	if cfg.Session.LLMRetryPolicy == nil || cfg.Session.LLMRetryPolicy.MaxAttempts != 4 {
		t.Fatalf("LLMRetryPolicy: %+v", cfg.Session.LLMRetryPolicy)
	}
}

func TestDecodeConfig_EmptyDocument_ReturnsZeroValue(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeConfig on empty input: %v", err)
	}
	if cfg.Run.EntryGraph != "" || cfg.Session.MaxTurns != 0 {
		t.Fatalf("expected a zero-value Config for empty input, got %+v", cfg)
	}
}

func TestDecodeConfig_UnknownFieldsAreIgnored(t *testing.T) {
	doc := `
run:
  entry_graph: pipeline.dot
  some_future_field: surprise
`
	cfg, err := DecodeConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeConfig with an unknown field: %v", err)
	}
	if cfg.Run.EntryGraph != "pipeline.dot" {
		t.Fatalf("Run.EntryGraph: got %q", cfg.Run.EntryGraph)
	}
}

func TestDecodeConfig_MalformedYAML_ReturnsError(t *testing.T) {
	doc := "run:\n  entry_graph: [unterminated\n"
	if _, err := DecodeConfig(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestDecodeConfig_EnableLoopDetectionDistinguishesUnsetFromFalse(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader("session:\n  enable_loop_detection: false\n"))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Session.EnableLoopDetection == nil || *cfg.Session.EnableLoopDetection {
		t.Fatalf("expected an explicit false, got %v", cfg.Session.EnableLoopDetection)
	}

	unset, err := DecodeConfig(strings.NewReader("session:\n  max_turns: 10\n"))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if unset.Session.EnableLoopDetection != nil {
		t.Fatalf("expected a nil pointer when the field is absent, got %v", *unset.Session.EnableLoopDetection)
	}
}
