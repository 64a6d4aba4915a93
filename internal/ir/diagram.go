package ir

// Diagram is a directed acyclic graph scoped to one compartment.
//
// The invariant: a diagram is acyclic at all times outside an in-flight
// rewrite transaction. Rewrites operate on deep copies and re-verify
// acyclicity before the copy is handed back, so callers never observe a
// cyclic diagram.
type Diagram struct {
	ID            string `json:"id"`
	CompartmentID string `json:"compartment_id"`
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
}

// FindNode returns the node with the given id, or nil.
func (d *Diagram) FindNode(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// FindEdge returns the edge with the given id, or nil.
func (d *Diagram) FindEdge(id string) *Edge {
	for i := range d.Edges {
		if d.Edges[i].ID == id {
			return &d.Edges[i]
		}
	}
	return nil
}

// NodeIDSet returns the set of node ids.
func (d *Diagram) NodeIDSet() map[string]bool {
	ids := make(map[string]bool, len(d.Nodes))
	for i := range d.Nodes {
		ids[d.Nodes[i].ID] = true
	}
	return ids
}

// EdgeIDSet returns the set of edge ids.
func (d *Diagram) EdgeIDSet() map[string]bool {
	ids := make(map[string]bool, len(d.Edges))
	for i := range d.Edges {
		ids[d.Edges[i].ID] = true
	}
	return ids
}

// Clone returns a deep copy of the diagram. Rewrites always clone
// before mutating so the caller's diagram is never touched.
func (d *Diagram) Clone() Diagram {
	cp := Diagram{ID: d.ID, CompartmentID: d.CompartmentID}
	cp.Nodes = make([]Node, len(d.Nodes))
	for i := range d.Nodes {
		cp.Nodes[i] = d.Nodes[i].Clone()
	}
	cp.Edges = make([]Edge, len(d.Edges))
	copy(cp.Edges, d.Edges)
	return cp
}

// adjacency builds the forward adjacency list from edges.
func (d *Diagram) adjacency() map[string][]string {
	adj := make(map[string][]string, len(d.Nodes))
	for i := range d.Edges {
		e := &d.Edges[i]
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// Three-color DFS marks. White nodes are unvisited, gray nodes are on
// the current search path, black nodes are fully explored.
type dfsColor uint8

const (
	colorWhite dfsColor = iota
	colorGray
	colorBlack
)

// HasCycle reports whether the diagram contains a directed cycle.
//
// The search is an iterative three-color DFS with an explicit stack:
// recursion depth is zero regardless of graph depth, so diagrams with
// hundreds of thousands of chained nodes are handled without
// stack-depth-dependent failure.
func (d *Diagram) HasCycle() bool {
	adj := d.adjacency()
	color := make(map[string]dfsColor, len(d.Nodes))

	type frame struct {
		id   string
		exit bool // true when popped on the way back out
	}

	for i := range d.Nodes {
		start := d.Nodes[i].ID
		if color[start] != colorWhite {
			continue
		}

		stack := []frame{{id: start}}
		for len(stack) > 0 {
			fr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if fr.exit {
				color[fr.id] = colorBlack
				continue
			}

			switch color[fr.id] {
			case colorBlack:
				continue
			case colorGray:
				// Reached a node already on the search path.
				return true
			}

			color[fr.id] = colorGray
			stack = append(stack, frame{id: fr.id, exit: true})
			for _, next := range adj[fr.id] {
				switch color[next] {
				case colorGray:
					return true
				case colorWhite:
					stack = append(stack, frame{id: next})
				}
			}
		}
	}
	return false
}

// InputsOf returns the ordered upstream node ids feeding the given
// node. Composite nodes carry the ordering directly in Inputs; the
// edge list is the fallback for diagrams built from raw documents.
func (d *Diagram) InputsOf(nodeID string) []string {
	if n := d.FindNode(nodeID); n != nil && len(n.Inputs) > 0 {
		return append([]string(nil), n.Inputs...)
	}
	var in []string
	for i := range d.Edges {
		if d.Edges[i].To == nodeID {
			in = append(in, d.Edges[i].From)
		}
	}
	return in
}

// OutputsOf returns the downstream node ids reachable by one edge.
func (d *Diagram) OutputsOf(nodeID string) []string {
	var out []string
	for i := range d.Edges {
		if d.Edges[i].From == nodeID {
			out = append(out, d.Edges[i].To)
		}
	}
	return out
}
