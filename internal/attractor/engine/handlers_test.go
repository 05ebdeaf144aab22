package engine

import (
	"context"
	"testing"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

func TestStartExitConditionalHandlers_AlwaysSucceed(t *testing.T) {
	handlers := []Handler{StartHandler{}, ExitHandler{}, ConditionalHandler{}}
	for _, h := range handlers {
		out, err := h.Execute(context.Background(), &Execution{}, model.NewNode("n"))
		if err != nil {
			t.Fatalf("%T: unexpected error %v", h, err)
		}
		if out.Status != runtime.StatusSuccess {
			t.Fatalf("%T: got status %q want success", h, out.Status)
		}
	}
}

func TestConditionalHandler_SkipsRetry(t *testing.T) {
	var h SingleExecutionHandler = ConditionalHandler{}
	if !h.SkipRetry() {
		t.Fatalf("ConditionalHandler.SkipRetry() should be true")
	}
}

func TestHandlerRegistry_ResolveUsesShapeMapping(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["shape"] = "cylinder"
	g.AddNode(n)

	reg := NewDefaultRegistry(CodergenHandler{})
	h := reg.Resolve(g, n)
	if _, ok := h.(ToolHandler); !ok {
		t.Fatalf("cylinder shape: got %T want ToolHandler", h)
	}
}

func TestHandlerRegistry_ExplicitTypeOverridesShape(t *testing.T) {
	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["shape"] = "cylinder"
	n.Attrs["type"] = "exit"
	g.AddNode(n)

	reg := NewDefaultRegistry(CodergenHandler{})
	h := reg.Resolve(g, n)
	if _, ok := h.(ExitHandler); !ok {
		t.Fatalf("explicit type=exit: got %T want ExitHandler", h)
	}
}

func TestHandlerRegistry_RegisterOverridesLatestWins(t *testing.T) {
	reg := NewDefaultRegistry(CodergenHandler{})
	first := StartHandler{}
	second := ExitHandler{}
	reg.Register("custom", first)
	reg.Register("custom", second)

	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["type"] = "custom"
	g.AddNode(n)

	h := reg.Resolve(g, n)
	if _, ok := h.(ExitHandler); !ok {
		t.Fatalf("got %T want the second (latest) registration", h)
	}
}

func TestHandlerRegistry_UnregisteredTypeFallsBackToCodergen(t *testing.T) {
	fallback := CodergenHandler{Backend: SimulatedCodergenBackend{}}
	reg := NewDefaultRegistry(fallback)

	g := model.NewGraph("g")
	n := model.NewNode("n")
	n.Attrs["type"] = "totally_unknown_type"
	g.AddNode(n)

	h := reg.Resolve(g, n)
	ch, ok := h.(CodergenHandler)
	if !ok {
		t.Fatalf("got %T want CodergenHandler fallback", h)
	}
	if _, ok := ch.Backend.(SimulatedCodergenBackend); !ok {
		t.Fatalf("fallback handler's backend was not preserved")
	}
}

func TestHandlerRegistry_KnownTypesListsEveryBuiltin(t *testing.T) {
	reg := NewDefaultRegistry(CodergenHandler{})
	want := []string{
		"codergen", "conditional", "exit", "parallel", "parallel.fan_in",
		"stack.manager_loop", "start", "tool", "wait.human",
	}
	got := reg.KnownTypes()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
