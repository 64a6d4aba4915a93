package rewrite

import (
	"fmt"
	"strconv"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// IDAllocator hands out fresh node and edge ids from two independent
// monotonic counters. The counters are explicitly threaded through
// rewrite calls, never global, and never shared between kinds: an edge
// id is never drawn from the node counter.
type IDAllocator struct {
	nodeSeq int
	edgeSeq int
	taken   map[string]bool
}

// NewIDAllocator seeds both counters past every id already present in
// the diagram, so fresh ids can never collide with existing ones.
func NewIDAllocator(d *ir.Diagram) *IDAllocator {
	a := &IDAllocator{taken: make(map[string]bool, len(d.Nodes)+len(d.Edges))}
	for i := range d.Nodes {
		id := d.Nodes[i].ID
		a.taken[id] = true
		if seq, ok := trailingSeq(id, 'n'); ok && seq > a.nodeSeq {
			a.nodeSeq = seq
		}
	}
	for i := range d.Edges {
		id := d.Edges[i].ID
		a.taken[id] = true
		if seq, ok := trailingSeq(id, 'e'); ok && seq > a.edgeSeq {
			a.edgeSeq = seq
		}
	}
	return a
}

func trailingSeq(id string, prefix byte) (int, bool) {
	if len(id) < 2 || id[0] != prefix {
		return 0, false
	}
	seq, err := strconv.Atoi(id[1:])
	if err != nil {
		return 0, false
	}
	return seq, true
}

// NodeID allocates the next unused node id.
func (a *IDAllocator) NodeID() string {
	for {
		a.nodeSeq++
		id := fmt.Sprintf("n%d", a.nodeSeq)
		if !a.taken[id] {
			a.taken[id] = true
			return id
		}
	}
}

// EdgeID allocates the next unused edge id.
func (a *IDAllocator) EdgeID() string {
	for {
		a.edgeSeq++
		id := fmt.Sprintf("e%d", a.edgeSeq)
		if !a.taken[id] {
			a.taken[id] = true
			return id
		}
	}
}
