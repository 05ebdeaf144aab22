package fstree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forge-labs/attractor/internal/config"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	mustWrite(t, filepath.Join(root, "a.txt"), "hello")
	mustWrite(t, filepath.Join(root, "sub", "b.txt"), "world")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeTree(t, rootA)
	writeTree(t, rootB)

	_, hashA, err := Snapshot(rootA, config.FSSnapshotPolicy{})
	if err != nil {
		t.Fatalf("Snapshot(rootA): %v", err)
	}
	_, hashB, err := Snapshot(rootB, config.FSSnapshotPolicy{})
	if err != nil {
		t.Fatalf("Snapshot(rootB): %v", err)
	}
	if hashA != hashB {
		t.Fatalf("identical trees hashed differently: %q vs %q", hashA, hashB)
	}

	if err := os.WriteFile(filepath.Join(rootB, "a.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, hashB2, err := Snapshot(rootB, config.FSSnapshotPolicy{})
	if err != nil {
		t.Fatalf("Snapshot(rootB) after edit: %v", err)
	}
	if hashB2 == hashA {
		t.Fatalf("changed tree hashed the same as the original")
	}
}

func TestSnapshotSymlinkRecordsTarget(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "real.txt"), "content")
	if err := os.Symlink("real.txt", filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported on this filesystem: %v", err)
	}

	tree, _, err := Snapshot(root, config.FSSnapshotPolicy{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var found *Entry
	for i := range tree.Entries {
		if tree.Entries[i].Name == "link.txt" {
			found = &tree.Entries[i]
		}
	}
	if found == nil {
		t.Fatalf("link.txt missing from snapshot entries")
	}
	if found.Kind != KindSymlink {
		t.Fatalf("link.txt kind=%v want %v", found.Kind, KindSymlink)
	}
	if found.Target != "real.txt" {
		t.Fatalf("link.txt target=%q want %q", found.Target, "real.txt")
	}
}

func TestSnapshotCyclicSymlinkFollowed(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.Symlink(root, filepath.Join(root, "dir", "loop")); err != nil {
		t.Skipf("symlinks unsupported on this filesystem: %v", err)
	}

	_, _, err := Snapshot(root, config.FSSnapshotPolicy{FollowSymlinks: true})
	if err == nil {
		t.Fatalf("expected a cyclic link error when following a self-referential symlink")
	}
	if _, ok := err.(*CyclicLinkError); !ok {
		t.Fatalf("err=%v (%T), want *CyclicLinkError", err, err)
	}
}

func TestSnapshotExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "keep.txt"), "keep")
	mustWrite(t, filepath.Join(root, "node_modules", "pkg.json"), "{}")

	tree, _, err := Snapshot(root, config.FSSnapshotPolicy{ExcludeGlobs: []string{"node_modules"}})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, e := range tree.Entries {
		if e.Name == "node_modules" {
			t.Fatalf("node_modules should have been excluded by the glob policy")
		}
	}
}

func TestSnapshotMaxFilesLimit(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "a.txt"), "a")
	mustWrite(t, filepath.Join(root, "b.txt"), "b")

	_, _, err := Snapshot(root, config.FSSnapshotPolicy{MaxFiles: 1})
	if err == nil {
		t.Fatalf("expected a limit error when file count exceeds max_files")
	}
	if _, ok := err.(*LimitExceededError); !ok {
		t.Fatalf("err=%v (%T), want *LimitExceededError", err, err)
	}
}
