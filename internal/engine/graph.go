package engine

import (
	"github.com/PratikKhaire/100x-n8n/internal/workflows"
)

// StartNodeType is the type tag of the node traversal begins at.
const StartNodeType = "start"

const noSuccessor = -1

// Graph is an index-based view of a workflow definition. Nodes live in a
// slice and are addressed by slot; edges are resolved to slots once, so
// traversal never touches node identifiers again.
type Graph struct {
	workflowID string
	nodes      []workflows.Node
	index      map[string]int
	next       []int
	outDegree  []int
}

// BuildGraph resolves wf into a Graph. Duplicate node identifiers and edges
// that reference unknown nodes are rejected. When a node has several
// outgoing edges the first one in definition order becomes its successor.
func BuildGraph(wf *workflows.Workflow) (*Graph, error) {
	g := &Graph{
		workflowID: wf.ID,
		nodes:      wf.Nodes,
		index:      make(map[string]int, len(wf.Nodes)),
		next:       make([]int, len(wf.Nodes)),
		outDegree:  make([]int, len(wf.Nodes)),
	}

	for slot, node := range wf.Nodes {
		if _, dup := g.index[node.ID]; dup {
			return nil, errInvalidWorkflow("duplicate node id %q", node.ID)
		}
		g.index[node.ID] = slot
		g.next[slot] = noSuccessor
	}

	for i, edge := range wf.Edges {
		src, ok := g.index[edge.Source]
		if !ok {
			return nil, errInvalidWorkflow("edge %d references unknown source node %q", i, edge.Source)
		}
		tgt, ok := g.index[edge.Target]
		if !ok {
			return nil, errInvalidWorkflow("edge %d references unknown target node %q", i, edge.Target)
		}
		if g.next[src] == noSuccessor {
			g.next[src] = tgt
		}
		g.outDegree[src]++
	}

	return g, nil
}

// Start returns the slot of the first node typed "start".
func (g *Graph) Start() (int, error) {
	for slot := range g.nodes {
		if g.nodes[slot].Type == StartNodeType {
			return slot, nil
		}
	}
	return noSuccessor, errStartNodeNotFound(g.workflowID)
}

// Successor returns the slot that follows slot, or -1 at the end of a path.
func (g *Graph) Successor(slot int) int {
	return g.next[slot]
}

// Node returns the node stored at slot.
func (g *Graph) Node(slot int) *workflows.Node {
	return &g.nodes[slot]
}

// OutDegree counts the outgoing edges of slot.
func (g *Graph) OutDegree(slot int) int {
	return g.outDegree[slot]
}

// Len is the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}
