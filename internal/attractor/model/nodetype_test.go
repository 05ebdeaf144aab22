package model

import "testing"

func TestResolveType_ExplicitOverrideWins(t *testing.T) {
	n := NewNode("a")
	n.Attrs["shape"] = "box"
	n.Attrs["type"] = "stack.manager_loop"
	if got := ResolveType(nil, n); got != "stack.manager_loop" {
		t.Fatalf("ResolveType: got %q want stack.manager_loop", got)
	}
}

func TestResolveType_ShapeMapping(t *testing.T) {
	cases := []struct {
		shape string
		want  string
	}{
		{"box", "codergen"},
		{"diamond", "conditional"},
		{"hexagon", "parallel"},
		{"invhouse", "parallel.fan_in"},
		{"doublecircle", "stack.manager_loop"},
		{"cylinder", "tool"},
		{"parallelogram", "wait.human"},
		{"Mdiamond", "start"},
		{"Msquare", "exit"},
		{"doubleoctagon", "exit"},
		{"triangle", "codergen"},
	}
	for _, tc := range cases {
		n := NewNode("a")
		n.Attrs["shape"] = tc.shape
		if got := ResolveType(nil, n); got != tc.want {
			t.Fatalf("ResolveType(shape=%q): got %q want %q", tc.shape, got, tc.want)
		}
	}
}

func TestResolveType_EllipseIsPositionSensitive(t *testing.T) {
	g := NewGraph("pipeline")
	g.AddEdge(NewEdge("entry", "exitnode"))
	g.Nodes["entry"].Attrs["shape"] = "ellipse"
	g.Nodes["exitnode"].Attrs["shape"] = "ellipse"

	if got := ResolveType(g, g.Nodes["entry"]); got != "start" {
		t.Fatalf("ellipse with no incoming edges: got %q want start", got)
	}
	if got := ResolveType(g, g.Nodes["exitnode"]); got != "exit" {
		t.Fatalf("ellipse with incoming edges: got %q want exit", got)
	}
}

func TestResolveType_NilNode_DefaultsToCodergen(t *testing.T) {
	if got := ResolveType(nil, nil); got != "codergen" {
		t.Fatalf("ResolveType(nil): got %q want codergen", got)
	}
}

func TestIsTerminalType(t *testing.T) {
	if !IsTerminalType("exit") {
		t.Fatalf("expected exit to be terminal")
	}
	if IsTerminalType("codergen") {
		t.Fatalf("expected codergen not to be terminal")
	}
}
