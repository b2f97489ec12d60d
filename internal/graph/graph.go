// Package graph holds the dependency-graph model produced by BEP
// processing and the force-directed layout engine that positions it.
package graph

import (
	"fmt"
	"strings"
)

// Node types as emitted by the parser service.
const (
	TypeTarget = "target"
	TypeTest   = "test"
	TypeAction = "action"
	TypeOther  = "other"
)

type Node struct {
	ID         string  `json:"id"`
	OriginalID string  `json:"originalId,omitempty"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	Status     string  `json:"status,omitempty"`
	Group      string  `json:"group,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	// ExecutionTime is seconds; nil when the build produced no timing.
	ExecutionTime *float64 `json:"executionTime,omitempty"`
}

type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

type Metadata struct {
	TotalTargets int      `json:"totalTargets,omitempty"`
	TotalTests   int      `json:"totalTests,omitempty"`
	ActionSeen   int      `json:"actionSeen,omitempty"`
	Groups       []string `json:"groups,omitempty"`
}

type Graph struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// DataError reports a graph payload that must not reach the simulation:
// a duplicate node id or an edge whose endpoint does not exist.
type DataError struct {
	Reason string
	EdgeID string
	NodeID string
}

func (e *DataError) Error() string {
	switch {
	case e.EdgeID != "" && e.NodeID != "":
		return fmt.Sprintf("graph data error: %s (edge %q references node %q)", e.Reason, e.EdgeID, e.NodeID)
	case e.NodeID != "":
		return fmt.Sprintf("graph data error: %s (node %q)", e.Reason, e.NodeID)
	default:
		return "graph data error: " + e.Reason
	}
}

// resolvedEdge is an edge with endpoints resolved to node indices.
type resolvedEdge struct {
	source, target int
}

// Validate checks node-id uniqueness and resolves every edge endpoint.
// A dangling reference rejects the whole graph; it is not dropped.
func Validate(g *Graph) ([]resolvedEdge, error) {
	if g == nil {
		return nil, &DataError{Reason: "graph is nil"}
	}
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			return nil, &DataError{Reason: "node id is empty", NodeID: n.Label}
		}
		if _, dup := index[id]; dup {
			return nil, &DataError{Reason: "duplicate node id", NodeID: id}
		}
		index[id] = i
	}
	resolved := make([]resolvedEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		si, ok := index[e.Source]
		if !ok {
			return nil, &DataError{Reason: "edge source does not exist", EdgeID: e.ID, NodeID: e.Source}
		}
		ti, ok := index[e.Target]
		if !ok {
			return nil, &DataError{Reason: "edge target does not exist", EdgeID: e.ID, NodeID: e.Target}
		}
		resolved = append(resolved, resolvedEdge{source: si, target: ti})
	}
	return resolved, nil
}
