// Package chat is the client side of the natural-language query
// endpoint. Interpretation happens server-side; this package only
// carries questions over and applies graph updates that come back.
package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bepview/internal/artifact"
	"bepview/internal/graph"
	"bepview/internal/transport"
)

type Client struct {
	tc      *transport.Client
	baseURL string
	store   *artifact.Store
	logger  *zap.Logger

	// Each viewer socket dispatches queries on its own goroutine, so the
	// shared session id needs the lock.
	mu        sync.Mutex
	sessionID string
}

func New(tc *transport.Client, baseURL string, store *artifact.Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		tc:      tc,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		store:   store,
		logger:  logger,
		// The server echoes back whatever session id it decides on; this
		// seed just keeps the first request addressable.
		sessionID: uuid.NewString(),
	}
}

type queryRequest struct {
	Query     string `json:"query"`
	FileID    string `json:"file_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// queryResponse accepts both naming generations of the chat service:
// `response` and `answer`.
type queryResponse struct {
	Response   string         `json:"response,omitempty"`
	Answer     string         `json:"answer,omitempty"`
	Sources    []string       `json:"sources,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	GraphNodes []graph.Node   `json:"graph_nodes,omitempty"`
	GraphEdges []graph.Edge   `json:"graph_edges,omitempty"`
	Metadata   graph.Metadata `json:"metadata,omitempty"`
}

// Answer is the rendered reply to one query.
type Answer struct {
	Text         string
	Sources      []string
	SessionID    string
	GraphUpdated bool
}

// Query sends one natural-language question about the current build.
// When the response carries graph_nodes/graph_edges, the returned graph
// replaces the store's graph artifact exactly as a completed upload
// would; a graph that fails validation rejects the swap but not the
// answer.
func (c *Client) Query(ctx context.Context, query, fileID string) (*Answer, error) {
	var resp queryResponse
	err := c.tc.PostJSON(ctx, c.baseURL+"/api/query", queryRequest{
		Query:     query,
		FileID:    fileID,
		SessionID: c.session(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Text:      resp.Response,
		Sources:   resp.Sources,
		SessionID: c.adoptSession(resp.SessionID),
	}
	if answer.Text == "" {
		answer.Text = resp.Answer
	}

	if len(resp.GraphNodes) > 0 {
		g := &graph.Graph{
			Nodes:    resp.GraphNodes,
			Edges:    resp.GraphEdges,
			Metadata: resp.Metadata,
		}
		if _, err := graph.Validate(g); err != nil {
			c.logger.Warn("chat response carried an invalid graph, keeping current one",
				zap.Error(err))
			return answer, err
		}
		c.store.ReplaceGraph(g)
		answer.GraphUpdated = true
	}
	return answer, nil
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// adoptSession takes over a server-assigned session id and returns the
// id now in effect.
func (c *Client) adoptSession(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(id) != "" {
		c.sessionID = id
	}
	return c.sessionID
}

// ClearSession asks the server to drop the conversation history.
func (c *Client) ClearSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/session/"+c.session(), nil)
	if err != nil {
		return err
	}
	resp, err := c.tc.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
