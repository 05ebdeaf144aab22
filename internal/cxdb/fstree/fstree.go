// Package fstree builds the deterministic BLAKE3-256 Merkle snapshot of a
// workspace root used to populate a turn's fs_root_hash (§4.4.4). Every
// snapshot is a pure function of the tree's bytes and structure: same
// content and layout always hashes to the same root, regardless of host,
// mtimes, or traversal order.
package fstree

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"

	"github.com/forge-labs/attractor/internal/config"
)

// EntryKind distinguishes the three node kinds a snapshot records.
type EntryKind string

const (
	KindFile    EntryKind = "file"
	KindDir     EntryKind = "dir"
	KindSymlink EntryKind = "symlink"
)

// Entry is one sorted child of a directory node in the snapshot tree.
type Entry struct {
	Name string
	Kind EntryKind
	Hash string // content hash for file/dir; target-string hash for symlink
	// Target holds the literal symlink target (never resolved further), so
	// consumers can reconstruct the snapshot without re-walking the disk.
	Target string
}

// Tree is a directory node of the walked snapshot: its sorted entries and
// their hashes. File content is not stored; files appear only as Entries
// carrying their content hash.
type Tree struct {
	Path    string
	Kind    EntryKind
	Hash    string
	Entries []Entry // non-nil only for KindDir
	Size    int64
}

// CyclicLinkError reports a symlink chain that revisits a directory already
// on the current walk path.
type CyclicLinkError struct {
	Path string
}

func (e *CyclicLinkError) Error() string {
	return fmt.Sprintf("fstree: cyclic symlink at %q", e.Path)
}

// LimitExceededError reports a policy boundary (§4.4.4 max_files /
// max_file_size) tripped mid-walk.
type LimitExceededError struct {
	Policy string
	Path   string
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("fstree: %s limit exceeded at %q", e.Policy, e.Path)
}

type walker struct {
	policy    config.FSSnapshotPolicy
	root      string
	fileCount int
	totalSize int64
}

// Snapshot walks root and returns its Merkle tree plus the BLAKE3-256 hex
// root hash. The walk is deterministic: directory entries are sorted by
// name before hashing, and symlinks are recorded as their target string
// rather than followed, unless policy.FollowSymlinks is set.
func Snapshot(root string, policy config.FSSnapshotPolicy) (*Tree, string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}
	w := &walker{policy: policy, root: absRoot}
	tree, err := w.walk(absRoot, "", map[string]bool{})
	if err != nil {
		return nil, "", err
	}
	return tree, tree.Hash, nil
}

// walk visits dir (an absolute path), relPath is its path relative to the
// snapshot root (empty for the root itself), and onPath tracks the
// directories already open on this walk branch, keyed by absolute path, to
// detect cyclic symlinks.
func (w *walker) walk(dir, relPath string, onPath map[string]bool) (*Tree, error) {
	if onPath[dir] {
		return nil, &CyclicLinkError{Path: relPath}
	}
	onPath[dir] = true
	defer delete(onPath, dir)

	infos, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		childRel := name
		if relPath != "" {
			childRel = relPath + "/" + name
		}
		if w.excluded(childRel) {
			continue
		}
		childAbs := filepath.Join(dir, name)

		lst, err := os.Lstat(childAbs)
		if err != nil {
			return nil, err
		}

		switch {
		case lst.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(childAbs)
			if err != nil {
				return nil, err
			}
			if w.policy.FollowSymlinks {
				resolved := target
				if !filepath.IsAbs(resolved) {
					resolved = filepath.Join(dir, resolved)
				}
				fi, err := os.Stat(resolved)
				if err == nil && fi.IsDir() {
					sub, err := w.walk(resolved, childRel, onPath)
					if err != nil {
						return nil, err
					}
					entries = append(entries, Entry{Name: name, Kind: KindDir, Hash: sub.Hash})
					continue
				}
			}
			entries = append(entries, Entry{Name: name, Kind: KindSymlink, Hash: hashBytes([]byte(target)), Target: target})

		case lst.IsDir():
			if err := w.checkFileLimit(childRel); err != nil {
				return nil, err
			}
			sub, err := w.walk(childAbs, childRel, onPath)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Name: name, Kind: KindDir, Hash: sub.Hash})

		default:
			if err := w.checkFileLimit(childRel); err != nil {
				return nil, err
			}
			hash, err := w.hashFile(childAbs, childRel)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Name: name, Kind: KindFile, Hash: hash})
		}
	}

	return &Tree{Path: relPath, Kind: KindDir, Entries: entries, Hash: hashDir(entries)}, nil
}

func (w *walker) excluded(relPath string) bool {
	for _, pattern := range w.policy.ExcludeGlobs {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

func (w *walker) checkFileLimit(relPath string) error {
	if w.policy.MaxFiles > 0 && w.fileCount >= w.policy.MaxFiles {
		return &LimitExceededError{Policy: "max_files", Path: relPath}
	}
	w.fileCount++
	return nil
}

func (w *walker) hashFile(absPath, relPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	if w.policy.MaxFileBytes > 0 && fi.Size() > w.policy.MaxFileBytes {
		return "", &LimitExceededError{Policy: "max_file_size", Path: relPath}
	}
	w.totalSize += fi.Size()
	if w.policy.MaxTotalBytes > 0 && w.totalSize > w.policy.MaxTotalBytes {
		return "", &LimitExceededError{Policy: "max_total_bytes", Path: relPath}
	}

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashDir derives a directory's content hash from its already-sorted
// entries, so the hash depends only on names, kinds, and child hashes.
func hashDir(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\x00%s\x00%s\x00", e.Kind, e.Name, e.Hash)
	}
	return hashBytes([]byte(b.String()))
}

func hashBytes(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
