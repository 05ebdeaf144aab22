package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOSExecutionEnvironment_ReadWriteFile_RoundTrip(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	if _, err := env.WriteFile("notes.txt", "line one\nline two\nline three"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := env.ReadFile("notes.txt", nil, nil)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(got, "1\tline one") || !strings.Contains(got, "3\tline three") {
		t.Fatalf("expected line-numbered output, got %q", got)
	}
}

func TestOSExecutionEnvironment_ReadFile_RespectsOffsetAndLimit(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("f.txt", "a\nb\nc\nd\ne")
	offset, limit := 1, 2
	got, err := env.ReadFile("f.txt", &offset, &limit)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(got, "\ta\n") || !strings.Contains(got, "\tb\n") || !strings.Contains(got, "\tc\n") || strings.Contains(got, "\td\n") {
		t.Fatalf("expected only lines b and c, got %q", got)
	}
}

func TestOSExecutionEnvironment_ReadFile_RejectsBinary(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	full := filepath.Join(env.WorkDir, "bin.dat")
	if err := os.WriteFile(full, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.ReadFile("bin.dat", nil, nil); err == nil {
		t.Fatalf("expected an error reading a binary file")
	}
}

func TestOSExecutionEnvironment_EditFile_RequiresUniqueMatchUnlessReplaceAll(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("f.txt", "foo bar foo")

	if _, err := env.EditFile("f.txt", "foo", "baz", false); err == nil {
		t.Fatalf("expected an error for a non-unique match without replace_all")
	}
	if _, err := env.EditFile("f.txt", "foo", "baz", true); err != nil {
		t.Fatalf("EditFile with replace_all: %v", err)
	}
	got, _ := env.ReadFile("f.txt", nil, nil)
	if strings.Contains(got, "foo") {
		t.Fatalf("expected every occurrence to be replaced, got %q", got)
	}
}

func TestOSExecutionEnvironment_EditFile_MissingOldString_IsAnError(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("f.txt", "hello")
	if _, err := env.EditFile("f.txt", "missing", "x", false); err == nil {
		t.Fatalf("expected an error when old_string is not found")
	}
}

func TestOSExecutionEnvironment_DeleteAndMoveFile(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("a.txt", "content")

	if err := env.MoveFile("a.txt", "nested/b.txt"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if env.FileExists("a.txt") {
		t.Fatalf("expected the source to be gone after a move")
	}
	if !env.FileExists("nested/b.txt") {
		t.Fatalf("expected the destination to exist after a move")
	}

	if err := env.DeleteFile("nested/b.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if env.FileExists("nested/b.txt") {
		t.Fatalf("expected the file to be gone after delete")
	}
}

func TestOSExecutionEnvironment_ListDirectory_RespectsDepth(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("top.txt", "x")
	env.WriteFile("sub/nested.txt", "y")

	shallow, err := env.ListDirectory(".", 1)
	if err != nil {
		t.Fatalf("ListDirectory depth 1: %v", err)
	}
	foundNested := false
	for _, e := range shallow {
		if e.Name == filepath.FromSlash("sub/nested.txt") {
			foundNested = true
		}
	}
	if foundNested {
		t.Fatalf("expected depth 1 not to recurse into subdirectories: %+v", shallow)
	}

	deep, err := env.ListDirectory(".", 2)
	if err != nil {
		t.Fatalf("ListDirectory depth 2: %v", err)
	}
	foundNested = false
	for _, e := range deep {
		if e.Name == filepath.FromSlash("sub/nested.txt") {
			foundNested = true
		}
	}
	if !foundNested {
		t.Fatalf("expected depth 2 to recurse into subdirectories: %+v", deep)
	}
}

func TestOSExecutionEnvironment_ExecCommand_CapturesOutputAndExitCode(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	res, err := env.ExecCommand(context.Background(), "echo hello && exit 0", 5000, "", nil)
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "hello") {
		t.Fatalf("result: %+v", res)
	}
}

func TestOSExecutionEnvironment_ExecCommand_NonZeroExit(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	res, err := env.ExecCommand(context.Background(), "exit 7", 5000, "", nil)
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if res.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", res.ExitCode)
	}
}

func TestOSExecutionEnvironment_ExecCommand_TimesOutAndKillsProcess(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	start := time.Now()
	res, err := env.ExecCommand(context.Background(), "sleep 30", 100, "", nil)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut=true, got %+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("expected the SIGTERM path to return well before the 2s SIGKILL escalation plus slack")
	}
}

func TestOSExecutionEnvironment_ExecCommand_FiltersSecretEnvKeys(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	res, err := env.ExecCommand(context.Background(), "echo \"$MY_API_KEY:$MY_VALUE\"", 5000, "", map[string]string{
		"MY_API_KEY": "sekret",
		"MY_VALUE":   "visible",
	})
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if strings.Contains(res.Stdout, "sekret") {
		t.Fatalf("expected the _API_KEY suffixed var to be filtered out of the subprocess env: %q", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "visible") {
		t.Fatalf("expected the non-secret var to reach the subprocess: %q", res.Stdout)
	}
}

func TestOSExecutionEnvironment_Glob_MatchesNestedFiles(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("a/b/c.go", "package x")
	env.WriteFile("a/b/d.txt", "not go")

	matches, err := env.Glob("**/*.go", ".")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 1 || !strings.HasSuffix(matches[0], "c.go") {
		t.Fatalf("Glob matches: %+v", matches)
	}
}

func TestOSExecutionEnvironment_Grep_FindsMatchingLine(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("target.txt", "first line\nneedle here\nlast line")

	out, err := env.Grep("needle", ".", "", false, 10)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if !strings.Contains(out, "needle here") || !strings.Contains(out, "2") {
		t.Fatalf("expected the match line and line number in output, got %q", out)
	}
}

func TestOSExecutionEnvironment_Grep_CaseInsensitive(t *testing.T) {
	env := NewOSExecutionEnvironment(t.TempDir())
	env.WriteFile("target.txt", "NEEDLE in a haystack")

	out, err := env.Grep("needle", ".", "", true, 10)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if !strings.Contains(out, "NEEDLE") {
		t.Fatalf("expected a case-insensitive match, got %q", out)
	}
}

func TestOSExecutionEnvironment_WorkingDirectoryPlatformOSVersion(t *testing.T) {
	dir := t.TempDir()
	env := NewOSExecutionEnvironment(dir)
	if env.WorkingDirectory() != dir {
		t.Fatalf("WorkingDirectory: got %q want %q", env.WorkingDirectory(), dir)
	}
	if env.Platform() == "" {
		t.Fatalf("expected a non-empty platform string")
	}
	if env.OSVersion() == "" {
		t.Fatalf("expected a non-empty OS version string")
	}
}
