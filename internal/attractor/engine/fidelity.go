package engine

import (
	"strings"

	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

var validFidelityModes = map[string]bool{
	"full":           true,
	"truncate":       true,
	"compact":        true,
	"summary:low":    true,
	"summary:medium": true,
	"summary:high":   true,
}

// resolveFidelityMode computes the effective fidelity for a hop per §4.2.9's
// precedence: incoming edge attr, target node attr, graph default, "compact".
func resolveFidelityMode(g *model.Graph, incoming *model.Edge, n *model.Node) string {
	if incoming != nil {
		if v := strings.TrimSpace(incoming.Attr("fidelity", "")); v != "" && validFidelityModes[v] {
			return v
		}
	}
	if n != nil {
		if v := strings.TrimSpace(n.Attr("fidelity", "")); v != "" && validFidelityModes[v] {
			return v
		}
	}
	if g != nil {
		for _, key := range []string{"default_fidelity", "context_fidelity_default"} {
			if v := strings.TrimSpace(g.Attrs[key]); v != "" && validFidelityModes[v] {
				return v
			}
		}
	}
	return "compact"
}

// resolveThreadKey computes the full-fidelity thread key per §4.2.9's
// precedence, falling back to the node's own id if nothing else applies.
func resolveThreadKey(g *model.Graph, incoming *model.Edge, n *model.Node) string {
	if n != nil {
		if v := strings.TrimSpace(n.Attr("thread_id", "")); v != "" {
			return v
		}
	}
	if incoming != nil {
		if v := strings.TrimSpace(incoming.Attr("thread_id", "")); v != "" {
			return v
		}
	}
	if g != nil {
		for _, key := range []string{"thread_id", "context_thread_default", "default_thread_id"} {
			if v := strings.TrimSpace(g.Attrs[key]); v != "" {
				return v
			}
		}
	}
	if n != nil {
		if classes := n.ClassList(); len(classes) > 0 {
			return classes[0]
		}
	}
	if incoming != nil && incoming.From != "" {
		return incoming.From
	}
	if n != nil {
		return n.ID
	}
	return ""
}

// resolveFidelityAndThread applies §4.2.9 in full, writing the resulting
// mode (and, for full fidelity, the thread key) into ctx. Non-full modes
// clear any previously set thread key so a fresh session starts next hop.
//
// §4.2.8's resume rule degrades exactly one hop: if the checkpoint being
// resumed from was itself full fidelity, the first hop after resume runs at
// summary:high instead of reopening the prior thread blind. The flag is
// consumed here, not just read, so only that one hop is affected.
func resolveFidelityAndThread(g *model.Graph, incoming *model.Edge, n *model.Node, ctx *runtime.Context) (mode, threadKey string) {
	if degrade, _ := ctx.Get("internal.fidelity.degrade_once"); degrade == true {
		ctx.SetInternal("fidelity.degrade_once", false)
		mode = "summary:high"
		ctx.SetInternal("fidelity.mode", mode)
		ctx.SetInternal("fidelity.thread_key", "")
		return mode, ""
	}
	mode = resolveFidelityMode(g, incoming, n)
	ctx.SetInternal("fidelity.mode", mode)
	if mode != "full" {
		ctx.SetInternal("fidelity.thread_key", "")
		return mode, ""
	}
	threadKey = resolveThreadKey(g, incoming, n)
	ctx.SetInternal("fidelity.thread_key", threadKey)
	ctx.ApplyUpdates(map[string]any{"thread_key": threadKey})
	return mode, threadKey
}
