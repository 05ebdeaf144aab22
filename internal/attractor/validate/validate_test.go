package validate

import (
	"testing"

	"github.com/forge-labs/attractor/internal/attractor/model"
)

func newNode(id, shape string) *model.Node {
	n := model.NewNode(id)
	n.Attrs["shape"] = shape
	return n
}

// validGraph builds a minimal start -> codergen -> exit pipeline that
// passes every rule cleanly, so individual tests can mutate it to exercise
// one rule at a time.
func validGraph(t *testing.T) *model.Graph {
	t.Helper()
	g := model.NewGraph("G")
	start := newNode("start", "Mdiamond")
	step := newNode("step", "box")
	step.Attrs["prompt"] = "do the thing"
	exit := newNode("exit", "Msquare")
	for _, n := range []*model.Node{start, step, exit} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode %s: %v", n.ID, err)
		}
	}
	if err := g.AddEdge(model.NewEdge("start", "step")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddEdge(model.NewEdge("step", "exit")); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	return g
}

func findingsFor(result Result, rule string) []Finding {
	var out []Finding
	for _, f := range result.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_CleanGraph_HasNoErrors(t *testing.T) {
	g := validGraph(t)
	result := Validate(g)
	if result.HasErrors() {
		t.Fatalf("expected a clean graph to have no errors: %+v", result.Findings)
	}
}

func TestValidate_StartCardinality_ZeroStarts(t *testing.T) {
	g := model.NewGraph("G")
	g.AddNode(newNode("exit", "Msquare"))
	result := Validate(g)
	got := findingsFor(result, "start-cardinality")
	if len(got) != 1 || got[0].Severity != SeverityError {
		t.Fatalf("expected one start-cardinality error, got %+v", got)
	}
}

func TestValidate_StartCardinality_MultipleStarts(t *testing.T) {
	g := model.NewGraph("G")
	g.AddNode(newNode("s1", "Mdiamond"))
	g.AddNode(newNode("s2", "Mdiamond"))
	g.AddNode(newNode("exit", "Msquare"))
	result := Validate(g)
	got := findingsFor(result, "start-cardinality")
	if len(got) != 1 {
		t.Fatalf("expected a single combined start-cardinality finding, got %+v", got)
	}
}

func TestValidate_TerminalCardinality_NoExit(t *testing.T) {
	g := model.NewGraph("G")
	g.AddNode(newNode("start", "Mdiamond"))
	result := Validate(g)
	got := findingsFor(result, "terminal-cardinality")
	if len(got) != 1 {
		t.Fatalf("expected a terminal-cardinality error, got %+v", got)
	}
}

func TestValidate_StartNoIncoming_FlagsEdgeIntoStart(t *testing.T) {
	g := validGraph(t)
	g.AddEdge(model.NewEdge("step", "start"))
	result := Validate(g)
	got := findingsFor(result, "start-no-incoming")
	if len(got) != 1 || got[0].Subject != "start" {
		t.Fatalf("expected start-no-incoming on 'start', got %+v", got)
	}
}

func TestValidate_TerminalNoOutgoing_FlagsEdgeOutOfExit(t *testing.T) {
	g := validGraph(t)
	g.AddEdge(model.NewEdge("exit", "step"))
	result := Validate(g)
	got := findingsFor(result, "terminal-no-outgoing")
	if len(got) != 1 || got[0].Subject != "exit" {
		t.Fatalf("expected terminal-no-outgoing on 'exit', got %+v", got)
	}
}

func TestValidate_Reachability_FlagsOrphanNode(t *testing.T) {
	g := validGraph(t)
	orphan := newNode("orphan", "box")
	orphan.Attrs["prompt"] = "unused"
	g.AddNode(orphan)
	result := Validate(g)
	got := findingsFor(result, "reachability")
	if len(got) != 1 || got[0].Subject != "orphan" {
		t.Fatalf("expected reachability finding for 'orphan', got %+v", got)
	}
}

func TestValidate_Reachability_SkippedWhenNoStartNode(t *testing.T) {
	g := model.NewGraph("G")
	g.AddNode(newNode("a", "box"))
	result := Validate(g)
	if len(findingsFor(result, "reachability")) != 0 {
		t.Fatalf("reachability should defer to start-cardinality when there's no start node")
	}
}

func TestValidate_EdgeTargetsExist_FlagsAutoVivifiedEndpoint(t *testing.T) {
	g := validGraph(t)
	// AddEdge auto-vivifies "ghost" as an attribute-less node.
	g.AddEdge(model.NewEdge("step", "ghost"))
	result := Validate(g)
	got := findingsFor(result, "edge-target-exists")
	if len(got) != 1 {
		t.Fatalf("expected one edge-target-exists finding, got %+v", got)
	}
}

func TestValidate_CodergenLacksPrompt_IsAWarningNotAnError(t *testing.T) {
	g := validGraph(t)
	g.Nodes["step"].Attrs["prompt"] = ""
	result := Validate(g)
	got := findingsFor(result, "codergen-lacks-prompt")
	if len(got) != 1 || got[0].Severity != SeverityWarning {
		t.Fatalf("expected a codergen-lacks-prompt warning, got %+v", got)
	}
	if result.HasErrors() {
		t.Fatalf("a warning-only finding should not count as an error")
	}
}

func TestValidate_ConditionSyntax_FlagsMalformedCondition(t *testing.T) {
	g := validGraph(t)
	edge := model.NewEdge("step", "exit")
	edge.Attrs["condition"] = "outcome==success"
	g.AddEdge(edge)
	result := Validate(g)
	got := findingsFor(result, "condition-syntax")
	if len(got) != 1 {
		t.Fatalf("expected a condition-syntax finding, got %+v", got)
	}
}

func TestValidate_ConditionSyntax_AcceptsWellFormedCondition(t *testing.T) {
	g := validGraph(t)
	edge := model.NewEdge("step", "exit")
	edge.Attrs["condition"] = "outcome=success"
	g.AddEdge(edge)
	result := Validate(g)
	if len(findingsFor(result, "condition-syntax")) != 0 {
		t.Fatalf("expected a well-formed condition not to be flagged")
	}
}

func TestValidate_RulesRunIndependently(t *testing.T) {
	// A graph with no start and no exit should report both cardinality
	// errors in a single Validate call rather than stopping at the first.
	g := model.NewGraph("G")
	g.AddNode(newNode("a", "box"))
	result := Validate(g)
	if len(findingsFor(result, "start-cardinality")) == 0 {
		t.Fatalf("expected start-cardinality to be reported")
	}
	if len(findingsFor(result, "terminal-cardinality")) == 0 {
		t.Fatalf("expected terminal-cardinality to be reported in the same pass")
	}
}

func TestFinding_String_IncludesSeverityRuleSubjectAndMessage(t *testing.T) {
	f := Finding{Rule: "start-cardinality", Severity: SeverityError, Subject: "G", Message: "graph has no start node"}
	got := f.String()
	want := "[error] start-cardinality (G): graph has no start node"
	if got != want {
		t.Fatalf("Finding.String(): got %q want %q", got, want)
	}
}
