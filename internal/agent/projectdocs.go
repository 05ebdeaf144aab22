package agent

import "strings"

// ProjectDoc is one project-instruction file discovered by LoadProjectDocs
// (AGENTS.md, CLAUDE.md, GEMINI.md, .codex/instructions.md) and folded into
// the system prompt (§4.3.7).
type ProjectDoc struct {
	Path    string
	Content string
}

// LoadProjectDocs reads the given project-doc filenames relative to the
// working directory. AGENTS.md is always included regardless of profile;
// the remaining names are profile-gated via ProviderProfile.ProjectDocFiles.
// Missing files are silently skipped.
func LoadProjectDocs(env ExecutionEnvironment, names ...string) ([]ProjectDoc, error) {
	seen := map[string]bool{}
	ordered := []string{"AGENTS.md"}
	for _, n := range names {
		ordered = append(ordered, n)
	}

	var docs []ProjectDoc
	for _, name := range ordered {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !env.FileExists(name) {
			continue
		}
		content, err := env.ReadFile(name, nil, nil)
		if err != nil {
			continue
		}
		docs = append(docs, ProjectDoc{Path: name, Content: stripLineNumbers(content)})
	}
	return docs, nil
}

// stripLineNumbers undoes ReadFile's "%6d\t" line-numbering so project docs
// are folded into the system prompt as plain text.
func stripLineNumbers(numbered string) string {
	lines := strings.Split(numbered, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if idx := strings.IndexByte(l, '\t'); idx >= 0 {
			prefix := strings.TrimSpace(l[:idx])
			isNum := prefix != ""
			for _, r := range prefix {
				if r < '0' || r > '9' {
					isNum = false
					break
				}
			}
			if isNum {
				out = append(out, l[idx+1:])
				continue
			}
		}
		out = append(out, l)
	}
	joined := strings.Join(out, "\n")
	return strings.TrimSuffix(joined, "\n")
}
