package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bepview/internal/transport"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(transport.New(5*time.Second, nil), nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func artifactServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/summary.json", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"targets":4,"tests":2,"actions":17,"has_resource_usage":true}`))
	})
	mux.HandleFunc("/graph.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"nodes":[{"id":"a","label":"a","type":"target","status":"success"},
			         {"id":"b","label":"b","type":"test","status":"passed"}],
			"edges":[{"id":"b-a","source":"b","target":"a","type":"test"}],
			"metadata":{"totalTargets":1,"totalTests":1}
		}`))
	})
	mux.HandleFunc("/resource-usage.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"time":[0,1,2],"cpu":[10,50,30],"memory":[100,200,150],"count":3}`))
	})
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestFetchSetAssemblesAllArtifacts(t *testing.T) {
	var hits atomic.Int64
	srv := artifactServer(t, &hits)
	defer srv.Close()

	f := newTestFetcher(t)
	set, errs := f.FetchSet(context.Background(), Manifest{
		FileID: "f1",
		Locations: map[string]string{
			NameSummary:       srv.URL + "/summary.json",
			NameGraph:         srv.URL + "/graph.json",
			NameResourceUsage: srv.URL + "/resource-usage.json",
		},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if set.FileID != "f1" {
		t.Fatalf("FileID = %q", set.FileID)
	}
	if set.Summary == nil || set.Summary.Targets != 4 {
		t.Fatalf("summary = %+v", set.Summary)
	}
	if set.Graph == nil || len(set.Graph.Nodes) != 2 || len(set.Graph.Edges) != 1 {
		t.Fatalf("graph = %+v", set.Graph)
	}
	if set.ResourceUsage.Len() != 3 {
		t.Fatalf("resource usage len = %d", set.ResourceUsage.Len())
	}
}

func TestFetchSetPartialFailure(t *testing.T) {
	var hits atomic.Int64
	srv := artifactServer(t, &hits)
	defer srv.Close()

	f := newTestFetcher(t)
	set, errs := f.FetchSet(context.Background(), Manifest{
		FileID: "f1",
		Locations: map[string]string{
			NameSummary: srv.URL + "/summary.json",
			NameGraph:   srv.URL + "/broken.json",
		},
	})
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	fetchErr, ok := errs[0].(*FetchError)
	if !ok || fetchErr.Name != NameGraph {
		t.Fatalf("error = %v", errs[0])
	}
	if set.Summary == nil {
		t.Fatal("successful artifact was dropped alongside the failed one")
	}
	if set.Graph != nil {
		t.Fatal("failed artifact produced a value")
	}
	if set.Empty() {
		t.Fatal("partial set reported empty")
	}
}

func TestFetchSetRejectsDanglingGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":[{"id":"a","label":"a","type":"target"}],"edges":[{"source":"a","target":"ghost"}]}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	set, errs := f.FetchSet(context.Background(), Manifest{
		FileID:    "f1",
		Locations: map[string]string{NameGraph: srv.URL},
	})
	if len(errs) != 1 {
		t.Fatalf("errors = %v", errs)
	}
	if set.Graph != nil {
		t.Fatal("invalid graph was accepted")
	}
}

func TestFetchBodyUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := artifactServer(t, &hits)
	defer srv.Close()

	f := newTestFetcher(t)
	manifest := Manifest{
		FileID:    "f1",
		Locations: map[string]string{NameSummary: srv.URL + "/summary.json"},
	}
	if _, errs := f.FetchSet(context.Background(), manifest); len(errs) != 0 {
		t.Fatalf("first fetch: %v", errs)
	}
	if _, errs := f.FetchSet(context.Background(), manifest); len(errs) != 0 {
		t.Fatalf("second fetch: %v", errs)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("origin hit %d times, want 1 (cache miss only)", got)
	}
}
