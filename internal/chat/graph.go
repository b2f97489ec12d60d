package chat

import (
	"context"

	"bepview/internal/graph"
)

// FetchGraph retrieves the dependency graph for a processed file via the
// read-only graph query endpoint and publishes it to the store.
func (c *Client) FetchGraph(ctx context.Context, fileID string) (*graph.Graph, error) {
	var g graph.Graph
	if err := c.tc.GetJSON(ctx, c.baseURL+"/api/graph/"+fileID, &g); err != nil {
		return nil, err
	}
	if _, err := graph.Validate(&g); err != nil {
		return nil, err
	}
	c.store.ReplaceGraph(&g)
	return &g, nil
}
