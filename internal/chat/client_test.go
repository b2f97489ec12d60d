package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bepview/internal/artifact"
	"bepview/internal/graph"
	"bepview/internal/transport"
)

func newClientAgainst(t *testing.T, handler http.Handler) (*Client, *artifact.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := artifact.NewStore()
	return New(transport.New(5*time.Second, nil), srv.URL, store, nil), store
}

func TestQueryReturnsAnswer(t *testing.T) {
	var gotReq map[string]any
	c, _ := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":   "3 targets failed",
			"sources":    []string{"summary"},
			"session_id": "srv-session",
		})
	}))

	answer, err := c.Query(context.Background(), "what failed?", "f1")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.Text != "3 targets failed" {
		t.Fatalf("text = %q", answer.Text)
	}
	if answer.SessionID != "srv-session" {
		t.Fatalf("session = %q, want server-assigned id", answer.SessionID)
	}
	if answer.GraphUpdated {
		t.Fatal("no graph payload, but GraphUpdated set")
	}
	if gotReq["query"] != "what failed?" || gotReq["file_id"] != "f1" {
		t.Fatalf("request = %v", gotReq)
	}
	if gotReq["session_id"] == "" {
		t.Fatal("client did not seed a session id")
	}
}

func TestQueryAcceptsAnswerField(t *testing.T) {
	c, _ := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"answer": "all green"})
	}))
	answer, err := c.Query(context.Background(), "status?", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.Text != "all green" {
		t.Fatalf("text = %q", answer.Text)
	}
}

func TestQueryGraphPayloadReplacesStoreGraph(t *testing.T) {
	c, store := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "here is the failing subgraph",
			"graph_nodes": []map[string]any{
				{"id": "x", "label": "x", "type": "target", "status": "failed"},
				{"id": "y", "label": "y", "type": "target", "status": "success"},
			},
			"graph_edges": []map[string]any{
				{"source": "y", "target": "x"},
			},
		})
	}))

	summary := &artifact.Summary{Targets: 5}
	store.Replace(&artifact.Set{FileID: "f1", Summary: summary})

	answer, err := c.Query(context.Background(), "show failing subgraph", "f1")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !answer.GraphUpdated {
		t.Fatal("GraphUpdated not set")
	}

	set, ok := store.Current()
	if !ok || set.Graph == nil {
		t.Fatal("store graph not replaced")
	}
	if len(set.Graph.Nodes) != 2 || len(set.Graph.Edges) != 1 {
		t.Fatalf("replacement graph = %+v", set.Graph)
	}
	if set.Summary != summary || set.FileID != "f1" {
		t.Fatal("chat graph swap lost the other artifacts")
	}
}

func TestQueryInvalidGraphKeepsCurrentGraph(t *testing.T) {
	c, store := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":    "subgraph",
			"graph_nodes": []map[string]any{{"id": "x", "label": "x", "type": "target"}},
			"graph_edges": []map[string]any{{"source": "x", "target": "ghost"}},
		})
	}))

	existing := &graph.Graph{Nodes: []graph.Node{{ID: "keep", Label: "keep", Type: graph.TypeTarget}}}
	store.Replace(&artifact.Set{Graph: existing})

	answer, err := c.Query(context.Background(), "show", "")
	if err == nil {
		t.Fatal("dangling edge in chat graph must surface an error")
	}
	if answer == nil || answer.Text != "subgraph" {
		t.Fatal("answer text should survive a rejected graph")
	}

	set, _ := store.Current()
	if set.Graph != existing {
		t.Fatal("invalid chat graph replaced the current one")
	}
}

func TestQueryConcurrentCallsShareOneSession(t *testing.T) {
	c, _ := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response":   "ok",
			"session_id": "srv-session",
		})
	}))

	// Mirrors two viewer sockets chatting at once; run with -race.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Query(context.Background(), "status?", ""); err != nil {
				t.Errorf("Query: %v", err)
			}
		}()
	}
	wg.Wait()

	answer, err := c.Query(context.Background(), "again?", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.SessionID != "srv-session" {
		t.Fatalf("session = %q, want the server-assigned id", answer.SessionID)
	}
}

func TestClearSession(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newClientAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "cleared"})
	}))
	if err := c.ClearSession(context.Background()); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Fatalf("method = %s", gotMethod)
	}
	if gotPath == "/api/session/" {
		t.Fatal("session id missing from path")
	}
}
