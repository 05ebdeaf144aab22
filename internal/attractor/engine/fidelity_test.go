package engine

import (
	"testing"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

func TestResolveFidelityMode_PrecedenceEdgeThenNodeThenGraphThenDefault(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	e := model.NewEdge("prev", "n")

	if got := resolveFidelityMode(g, nil, n); got != "compact" {
		t.Fatalf("no overrides: got %q want compact", got)
	}

	g.Attrs["default_fidelity"] = "summary:low"
	if got := resolveFidelityMode(g, nil, n); got != "summary:low" {
		t.Fatalf("graph default: got %q want summary:low", got)
	}

	n.Attrs["fidelity"] = "truncate"
	if got := resolveFidelityMode(g, nil, n); got != "truncate" {
		t.Fatalf("node attr: got %q want truncate", got)
	}

	e.Attrs["fidelity"] = "full"
	if got := resolveFidelityMode(g, e, n); got != "full" {
		t.Fatalf("incoming edge attr: got %q want full", got)
	}
}

func TestResolveFidelityMode_InvalidValueFallsThrough(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["fidelity"] = "not-a-real-mode"
	if got := resolveFidelityMode(g, nil, n); got != "compact" {
		t.Fatalf("got %q want compact (invalid value ignored)", got)
	}
}

func TestResolveThreadKey_PrecedenceNodeThenEdgeThenGraphThenClassThenFromThenID(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	e := model.NewEdge("prev", "n")

	if got := resolveThreadKey(g, nil, n); got != "n" {
		t.Fatalf("bare node id fallback: got %q want n", got)
	}

	e.From = "prev"
	if got := resolveThreadKey(g, e, n); got != "prev" {
		t.Fatalf("incoming.From fallback: got %q want prev", got)
	}

	n.Classes = []string{"review"}
	if got := resolveThreadKey(g, e, n); got != "review" {
		t.Fatalf("node class fallback: got %q want review", got)
	}

	g.Attrs["thread_id"] = "graph-thread"
	if got := resolveThreadKey(g, e, n); got != "graph-thread" {
		t.Fatalf("graph default: got %q want graph-thread", got)
	}

	e.Attrs["thread_id"] = "edge-thread"
	if got := resolveThreadKey(g, e, n); got != "edge-thread" {
		t.Fatalf("incoming edge attr: got %q want edge-thread", got)
	}

	n.Attrs["thread_id"] = "node-thread"
	if got := resolveThreadKey(g, e, n); got != "node-thread" {
		t.Fatalf("node attr: got %q want node-thread", got)
	}
}

func TestResolveFidelityAndThread_NonFullModeClearsThreadKey(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["fidelity"] = "compact"
	ctx := runtime.NewContext()
	ctx.SetInternal("fidelity.thread_key", "stale")

	mode, threadKey := resolveFidelityAndThread(g, nil, n, ctx)
	if mode != "compact" || threadKey != "" {
		t.Fatalf("got (%q, %q) want (compact, \"\")", mode, threadKey)
	}
	got, _ := ctx.Get("internal.fidelity.thread_key")
	if got != "" {
		t.Fatalf("thread key not cleared: %v", got)
	}
}

func TestResolveFidelityAndThread_FullModeSetsThreadKeyAndContextUpdate(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["fidelity"] = "full"
	ctx := runtime.NewContext()

	mode, threadKey := resolveFidelityAndThread(g, nil, n, ctx)
	if mode != "full" || threadKey != "n" {
		t.Fatalf("got (%q, %q) want (full, n)", mode, threadKey)
	}
	if got := ctx.GetString("thread_key", ""); got != "n" {
		t.Fatalf("thread_key context update: got %q want n", got)
	}
}

func TestResolveFidelityAndThread_DegradeOnceForcesSummaryHighAndIsConsumed(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["fidelity"] = "full"
	ctx := runtime.NewContext()
	ctx.SetInternal("fidelity.degrade_once", true)

	mode, threadKey := resolveFidelityAndThread(g, nil, n, ctx)
	if mode != "summary:high" || threadKey != "" {
		t.Fatalf("first hop after resume: got (%q, %q) want (summary:high, \"\")", mode, threadKey)
	}

	// The flag must be consumed: the next hop resolves normally again.
	mode, threadKey = resolveFidelityAndThread(g, nil, n, ctx)
	if mode != "full" || threadKey != "n" {
		t.Fatalf("second hop: got (%q, %q) want (full, n); degrade_once was not consumed", mode, threadKey)
	}
}
