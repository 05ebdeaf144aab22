// Package validate implements the static lint pass run over a parsed
// pipeline graph before it is accepted for execution (§4.1).
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forge-labs/attractor/internal/attractor/cond"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// Severity distinguishes a hard failure from an advisory warning.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one lint result, anchored to the node or edge it concerns.
type Finding struct {
	Rule     string
	Severity Severity
	Subject  string // node ID, or "A->B" for an edge
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s (%s): %s", f.Severity, f.Rule, f.Subject, f.Message)
}

// Result is the outcome of validating a graph.
type Result struct {
	Findings []Finding
}

// HasErrors reports whether any finding has error severity.
func (r Result) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs every lint rule against g and returns the combined findings.
// Rules run independently of each other; a failure in one does not skip the
// rest, so a single Validate call surfaces every problem in the graph at
// once rather than forcing a fix-one-rerun cycle.
func Validate(g *model.Graph) Result {
	var findings []Finding
	findings = append(findings, ruleStartCardinality(g)...)
	findings = append(findings, ruleTerminalCardinality(g)...)
	findings = append(findings, ruleStartNoIncoming(g)...)
	findings = append(findings, ruleTerminalNoOutgoing(g)...)
	findings = append(findings, ruleReachability(g)...)
	findings = append(findings, ruleEdgeTargetsExist(g)...)
	findings = append(findings, ruleCodergenLacksPrompt(g)...)
	findings = append(findings, ruleConditionSyntax(g)...)
	return Result{Findings: findings}
}

// nodeType resolves a node's handler type via the same shape→type mapping
// the engine's handler registry uses, so a graph that validates cleanly
// resolves its start/exit/codergen nodes identically at run time.
func nodeType(g *model.Graph, n *model.Node) string {
	return model.ResolveType(g, n)
}

func sortedNodeIDs(g *model.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ruleStartCardinality requires exactly one start node.
func ruleStartCardinality(g *model.Graph) []Finding {
	var starts []string
	for _, id := range sortedNodeIDs(g) {
		if nodeType(g, g.Nodes[id]) == "start" {
			starts = append(starts, id)
		}
	}
	switch len(starts) {
	case 1:
		return nil
	case 0:
		return []Finding{{Rule: "start-cardinality", Severity: SeverityError, Subject: g.Name, Message: "graph has no start node"}}
	default:
		return []Finding{{Rule: "start-cardinality", Severity: SeverityError, Subject: g.Name, Message: fmt.Sprintf("graph has %d start nodes: %s", len(starts), strings.Join(starts, ", "))}}
	}
}

// ruleTerminalCardinality requires at least one exit node.
func ruleTerminalCardinality(g *model.Graph) []Finding {
	for _, id := range sortedNodeIDs(g) {
		if nodeType(g, g.Nodes[id]) == "exit" {
			return nil
		}
	}
	return []Finding{{Rule: "terminal-cardinality", Severity: SeverityError, Subject: g.Name, Message: "graph has no exit node"}}
}

// ruleStartNoIncoming flags edges pointing into a start node.
func ruleStartNoIncoming(g *model.Graph) []Finding {
	var findings []Finding
	for _, id := range sortedNodeIDs(g) {
		if nodeType(g, g.Nodes[id]) != "start" {
			continue
		}
		if incoming := g.Incoming(id); len(incoming) > 0 {
			findings = append(findings, Finding{Rule: "start-no-incoming", Severity: SeverityError, Subject: id, Message: fmt.Sprintf("start node has %d incoming edge(s)", len(incoming))})
		}
	}
	return findings
}

// ruleTerminalNoOutgoing flags edges leaving an exit node.
func ruleTerminalNoOutgoing(g *model.Graph) []Finding {
	var findings []Finding
	for _, id := range sortedNodeIDs(g) {
		if nodeType(g, g.Nodes[id]) != "exit" {
			continue
		}
		if outgoing := g.Outgoing(id); len(outgoing) > 0 {
			findings = append(findings, Finding{Rule: "terminal-no-outgoing", Severity: SeverityError, Subject: id, Message: fmt.Sprintf("exit node has %d outgoing edge(s)", len(outgoing))})
		}
	}
	return findings
}

// ruleReachability requires every node to be reachable from the start node.
func ruleReachability(g *model.Graph) []Finding {
	var start string
	for _, id := range sortedNodeIDs(g) {
		if nodeType(g, g.Nodes[id]) == "start" {
			start = id
			break
		}
	}
	if start == "" {
		return nil // already reported by ruleStartCardinality
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(cur) {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	var findings []Finding
	for _, id := range sortedNodeIDs(g) {
		if !seen[id] {
			findings = append(findings, Finding{Rule: "reachability", Severity: SeverityError, Subject: id, Message: "node is unreachable from the start node"})
		}
	}
	return findings
}

// ruleEdgeTargetsExist requires every edge endpoint to reference a
// declared node. model.AddEdge auto-vivifies missing endpoints as empty
// nodes, so this rule flags those synthesized, attribute-less nodes.
func ruleEdgeTargetsExist(g *model.Graph) []Finding {
	var findings []Finding
	for _, e := range g.Edges {
		for _, id := range []string{e.From, e.To} {
			n, ok := g.Nodes[id]
			if !ok || (len(n.Attrs) == 0 && len(n.Classes) == 0) {
				findings = append(findings, Finding{
					Rule:     "edge-target-exists",
					Severity: SeverityError,
					Subject:  fmt.Sprintf("%s->%s", e.From, e.To),
					Message:  fmt.Sprintf("endpoint %q is never declared as a node", id),
				})
			}
		}
	}
	return findings
}

// ruleCodergenLacksPrompt warns (does not fail) when a codergen node has no
// prompt attribute, since the handler then falls back to the node label
// and fails when that is empty too.
func ruleCodergenLacksPrompt(g *model.Graph) []Finding {
	var findings []Finding
	for _, id := range sortedNodeIDs(g) {
		n := g.Nodes[id]
		if nodeType(g, n) != "codergen" {
			continue
		}
		if strings.TrimSpace(n.Attr("prompt", "")) == "" {
			findings = append(findings, Finding{Rule: "codergen-lacks-prompt", Severity: SeverityWarning, Subject: id, Message: "codergen node has no prompt attribute"})
		}
	}
	return findings
}

// ruleConditionSyntax requires every edge condition attribute to parse as a
// well-formed condition expression, independent of any particular outcome.
func ruleConditionSyntax(g *model.Graph) []Finding {
	var findings []Finding
	probe := runtime.Outcome{Status: runtime.StatusSuccess}
	ctx := runtime.NewContext()
	for _, e := range g.Edges {
		c := e.Condition()
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, err := cond.Evaluate(c, probe, ctx); err != nil {
			findings = append(findings, Finding{
				Rule:     "condition-syntax",
				Severity: SeverityError,
				Subject:  fmt.Sprintf("%s->%s", e.From, e.To),
				Message:  err.Error(),
			})
		}
	}
	return findings
}
