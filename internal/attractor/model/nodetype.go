package model

// ResolveType determines the handler type a node dispatches to (§4.2.5):
// an explicit `type` attribute wins outright; otherwise the node's shape
// maps to a type; ellipse is position-sensitive (no incoming edges means
// start, otherwise exit) since graphviz has no distinct start/exit shapes
// of its own. Anything unmapped defaults to codergen, the most common stage
// kind in a pipeline.
func ResolveType(g *Graph, n *Node) string {
	if n == nil {
		return "codergen"
	}
	if t := n.TypeOverride(); t != "" {
		return t
	}
	switch n.Shape() {
	case "box":
		return "codergen"
	case "diamond":
		return "conditional"
	case "hexagon":
		return "parallel"
	case "invhouse":
		return "parallel.fan_in"
	case "doublecircle":
		return "stack.manager_loop"
	case "cylinder":
		return "tool"
	case "parallelogram":
		return "wait.human"
	case "Mdiamond":
		return "start"
	case "Msquare", "doubleoctagon":
		return "exit"
	case "ellipse":
		if g != nil && len(g.Incoming(n.ID)) == 0 {
			return "start"
		}
		return "exit"
	default:
		return "codergen"
	}
}

// IsTerminalType reports whether t is a type the engine treats as ending a
// run's traversal outright.
func IsTerminalType(t string) bool {
	return t == "exit"
}
