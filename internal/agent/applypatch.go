package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ApplyPatch implements the OpenAI "v4a" patch format used by the
// apply_patch tool: a sequence of Add/Delete/Update File sections bounded by
// "*** Begin Patch" / "*** End Patch", with unified-diff-style "@@" hunks
// inside Update sections (§4.3.9).
func ApplyPatch(workDir, patchText string) (string, error) {
	lines := strings.Split(patchText, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "*** Begin Patch" {
		return "", fmt.Errorf("apply_patch: missing '*** Begin Patch' header")
	}
	i := 1
	var applied []string

	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == "*** End Patch":
			return strings.Join(applied, "\n"), nil
		case strings.HasPrefix(line, "*** Add File: "):
			path := strings.TrimPrefix(line, "*** Add File: ")
			content, next := collectAddedLines(lines, i+1)
			if err := writePatchFile(workDir, path, content); err != nil {
				return "", err
			}
			applied = append(applied, "added "+path)
			i = next
		case strings.HasPrefix(line, "*** Delete File: "):
			path := strings.TrimPrefix(line, "*** Delete File: ")
			if err := os.Remove(filepath.Join(workDir, path)); err != nil {
				return "", fmt.Errorf("apply_patch: delete %s: %w", path, err)
			}
			applied = append(applied, "deleted "+path)
			i++
		case strings.HasPrefix(line, "*** Update File: "):
			path := strings.TrimPrefix(line, "*** Update File: ")
			moveTo := ""
			next := i + 1
			if next < len(lines) && strings.HasPrefix(lines[next], "*** Move to: ") {
				moveTo = strings.TrimPrefix(lines[next], "*** Move to: ")
				next++
			}
			updated, n, err := applyUpdateHunks(workDir, path, lines, next)
			if err != nil {
				return "", err
			}
			target := path
			if moveTo != "" {
				target = moveTo
			}
			if err := writePatchFile(workDir, target, updated); err != nil {
				return "", err
			}
			if moveTo != "" && moveTo != path {
				_ = os.Remove(filepath.Join(workDir, path))
			}
			applied = append(applied, "updated "+target)
			i = n
		default:
			i++
		}
	}
	return "", fmt.Errorf("apply_patch: missing '*** End Patch' terminator")
}

func collectAddedLines(lines []string, start int) (string, int) {
	var b strings.Builder
	i := start
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "*** ") {
			break
		}
		content := strings.TrimPrefix(line, "+")
		b.WriteString(content)
		b.WriteString("\n")
		i++
	}
	return b.String(), i
}

func writePatchFile(workDir, path, content string) error {
	full := filepath.Join(workDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// applyUpdateHunks applies a sequence of "@@" context hunks against the
// existing file at path, returning the patched content and the index of the
// first unconsumed line.
func applyUpdateHunks(workDir, path string, lines []string, start int) (string, int, error) {
	existing, err := os.ReadFile(filepath.Join(workDir, path))
	if err != nil {
		return "", 0, fmt.Errorf("apply_patch: update %s: %w", path, err)
	}
	srcLines := strings.Split(string(existing), "\n")

	var out []string
	cursor := 0
	i := start

	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "*** ") {
			break
		}
		if strings.HasPrefix(line, "@@") {
			anchor := strings.TrimSpace(strings.TrimPrefix(line, "@@"))
			if anchor != "" {
				idx := indexOfContextLine(srcLines, cursor, anchor)
				if idx < 0 {
					return "", 0, fmt.Errorf("apply_patch: context %q not found in %s", anchor, path)
				}
				out = append(out, srcLines[cursor:idx]...)
				cursor = idx
			}
			i++
			continue
		}
		switch {
		case strings.HasPrefix(line, "-"):
			want := strings.TrimPrefix(line, "-")
			if cursor >= len(srcLines) || srcLines[cursor] != want {
				return "", 0, fmt.Errorf("apply_patch: deletion mismatch at line %d in %s", cursor+1, path)
			}
			cursor++
		case strings.HasPrefix(line, "+"):
			out = append(out, strings.TrimPrefix(line, "+"))
		case strings.HasPrefix(line, " "):
			want := strings.TrimPrefix(line, " ")
			if cursor < len(srcLines) && srcLines[cursor] == want {
				out = append(out, srcLines[cursor])
				cursor++
			} else {
				out = append(out, want)
			}
		case strings.TrimSpace(line) == "":
			if cursor < len(srcLines) {
				out = append(out, srcLines[cursor])
				cursor++
			}
		}
		i++
	}
	out = append(out, srcLines[cursor:]...)
	return strings.Join(out, "\n"), i, nil
}

func indexOfContextLine(lines []string, from int, anchor string) int {
	for j := from; j < len(lines); j++ {
		if lines[j] == anchor {
			return j
		}
	}
	return -1
}
