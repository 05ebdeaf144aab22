package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forge-labs/attractor/internal/attractor/cond"
	"github.com/forge-labs/attractor/internal/attractor/dot"
	"github.com/forge-labs/attractor/internal/attractor/model"
	"github.com/forge-labs/attractor/internal/attractor/runtime"
)

// acceleratorPrefix strips a leading accelerator-key marker ("[K] ", "K) ",
// "K - ") from an edge/outcome label before comparison.
var acceleratorPrefix = regexp.MustCompile(`^\[[A-Za-z0-9]\]\s*|^[A-Za-z0-9]\)\s+|^[A-Za-z0-9]\s*-\s+`)

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = acceleratorPrefix.ReplaceAllString(s, "")
	return strings.ToLower(strings.TrimSpace(s))
}

// selectNextEdge implements the 5-step priority order (§4.2.2) over node's
// outgoing edges, returning the chosen target id and which step decided it
// (used for the persisted route_decision record).
func selectNextEdge(g *model.Graph, node *model.Node, outcome runtime.Outcome, ctx *runtime.Context) (nextID string, reasonStep int, err error) {
	edges := g.Outgoing(node.ID)
	if len(edges) == 0 {
		return "", 0, fmt.Errorf("engine: node %q has no outgoing edges", node.ID)
	}

	var conditioned, unconditioned, matched []*model.Edge
	for _, e := range edges {
		if strings.TrimSpace(e.Condition()) == "" {
			unconditioned = append(unconditioned, e)
			continue
		}
		conditioned = append(conditioned, e)
		ok, cerr := cond.Evaluate(e.Condition(), outcome, ctx)
		if cerr != nil {
			return "", 0, fmt.Errorf("engine: evaluating condition on edge %s->%s: %w", e.From, e.To, cerr)
		}
		if ok {
			matched = append(matched, e)
		}
	}

	pool := matched
	reasonStep = 1
	if len(pool) == 0 {
		if len(unconditioned) == 0 {
			return "", 0, fmt.Errorf("engine: no edge condition matched for node %q and no unconditional edge exists", node.ID)
		}
		pool = unconditioned
		reasonStep = 4
	} else if len(pool) == 1 {
		return pool[0].To, 1, nil
	}

	// Step 2: preferred label, only meaningful when step 1 left more than
	// one condition-matched edge in the pool.
	if reasonStep == 1 && outcome.PreferredLabel != "" {
		var byLabel []*model.Edge
		want := normalizeLabel(outcome.PreferredLabel)
		for _, e := range pool {
			if normalizeLabel(e.Label()) == want {
				byLabel = append(byLabel, e)
			}
		}
		if len(byLabel) == 1 {
			return byLabel[0].To, 2, nil
		}
		if len(byLabel) > 1 {
			pool = byLabel
			reasonStep = 2
		}
	}

	// Step 3: suggested_next_ids, honoring the order the handler gave them.
	if len(outcome.SuggestedNextIDs) > 0 {
		for _, id := range outcome.SuggestedNextIDs {
			for _, e := range pool {
				if e.To == id {
					return e.To, 3, nil
				}
			}
		}
	}

	// Step 4+5: maximum weight, ties broken by lexically smallest target id,
	// further ties broken by declaration order.
	best := pool[0]
	bestWeight := dot.FloatAttr(best.Attrs, "weight", 0)
	for _, e := range pool[1:] {
		w := dot.FloatAttr(e.Attrs, "weight", 0)
		switch {
		case w > bestWeight:
			best, bestWeight = e, w
		case w == bestWeight && e.To < best.To:
			best = e
		case w == bestWeight && e.To == best.To && e.Order < best.Order:
			best = e
		}
	}
	if reasonStep == 1 || reasonStep == 2 {
		reasonStep = 4
	}
	return best.To, reasonStep, nil
}

func edgeTo(g *model.Graph, from, to string) *model.Edge {
	for _, e := range g.Outgoing(from) {
		if e.To == to {
			return e
		}
	}
	return nil
}
