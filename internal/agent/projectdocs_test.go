package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProjectDocs_AlwaysIncludesAgentsAndProfileSpecificFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	write("AGENTS.md", "shared instructions")
	write("CLAUDE.md", "claude-specific instructions")

	env := NewOSExecutionEnvironment(dir)
	docs, err := LoadProjectDocs(env, "CLAUDE.md", "GEMINI.md")
	if err != nil {
		t.Fatalf("LoadProjectDocs: %v", err)
	}

	byPath := map[string]string{}
	for _, d := range docs {
		byPath[d.Path] = d.Content
	}
	if byPath["AGENTS.md"] != "shared instructions" {
		t.Fatalf("AGENTS.md content: %q", byPath["AGENTS.md"])
	}
	if byPath["CLAUDE.md"] != "claude-specific instructions" {
		t.Fatalf("CLAUDE.md content: %q", byPath["CLAUDE.md"])
	}
	if _, ok := byPath["GEMINI.md"]; ok {
		t.Fatalf("GEMINI.md should be skipped when missing")
	}
}

func TestLoadProjectDocs_DeduplicatesRepeatedNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	env := NewOSExecutionEnvironment(dir)
	docs, err := LoadProjectDocs(env, "AGENTS.md", "AGENTS.md")
	if err != nil {
		t.Fatalf("LoadProjectDocs: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected AGENTS.md to be deduplicated, got %d docs", len(docs))
	}
}

func TestStripLineNumbers_RemovesReadFilePrefixOnly(t *testing.T) {
	numbered := "     1\tfirst line\n     2\tsecond line\n"
	got := stripLineNumbers(numbered)
	want := "first line\nsecond line"
	if got != want {
		t.Fatalf("stripLineNumbers: got %q want %q", got, want)
	}
}

func TestStripLineNumbers_LeavesNonNumberedLinesAlone(t *testing.T) {
	input := "no tabs here\nkey\tvalue\n"
	got := stripLineNumbers(input)
	if got != "no tabs here\nkey\tvalue" {
		t.Fatalf("stripLineNumbers: got %q", got)
	}
}
