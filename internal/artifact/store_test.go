package artifact

import (
	"sync"
	"testing"

	"bepview/internal/graph"
)

func TestStoreCurrentEmpty(t *testing.T) {
	s := NewStore()
	if set, ok := s.Current(); ok || set != nil {
		t.Fatalf("empty store returned (%v, %v)", set, ok)
	}
}

func TestStoreReplaceRoundTrip(t *testing.T) {
	s := NewStore()
	set := &Set{
		FileID:        "f1",
		Summary:       &Summary{Targets: 3, Tests: 1, Actions: 9},
		Graph:         &graph.Graph{Nodes: []graph.Node{{ID: "a", Label: "a", Type: graph.TypeTarget}}},
		ResourceUsage: &ResourceUsage{Time: []float64{0, 1}, CPU: []float64{10, 20}, Memory: []float64{100, 110}},
	}
	s.Replace(set)

	got, ok := s.Current()
	if !ok {
		t.Fatal("Current() reported empty after Replace")
	}
	// Reference identity: the store hands back the published set itself.
	if got != set {
		t.Fatal("Current() returned a different set than was published")
	}
	if got.Summary != set.Summary || got.Graph != set.Graph || got.ResourceUsage != set.ResourceUsage {
		t.Fatal("sub-payloads diverged from the published set")
	}
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var seen []*Set
	s.Subscribe(func(set *Set) {
		mu.Lock()
		seen = append(seen, set)
		mu.Unlock()
	})

	first := &Set{FileID: "f1"}
	second := &Set{FileID: "f2"}
	s.Replace(first)
	s.Replace(second)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != first || seen[1] != second {
		t.Fatalf("subscriber saw %v", seen)
	}
}

func TestStoreReplaceGraphKeepsOtherArtifacts(t *testing.T) {
	s := NewStore()
	summary := &Summary{Targets: 2}
	usage := &ResourceUsage{Time: []float64{0}, CPU: []float64{5}, Memory: []float64{50}}
	s.Replace(&Set{FileID: "f1", Summary: summary, ResourceUsage: usage})

	var notified *Set
	s.Subscribe(func(set *Set) { notified = set })

	chatGraph := &graph.Graph{Nodes: []graph.Node{{ID: "q", Label: "q", Type: graph.TypeOther}}}
	s.ReplaceGraph(chatGraph)

	got, _ := s.Current()
	if got.Graph != chatGraph {
		t.Fatal("graph was not replaced")
	}
	if got.Summary != summary || got.ResourceUsage != usage || got.FileID != "f1" {
		t.Fatal("non-graph artifacts did not carry over")
	}
	if notified != got {
		t.Fatal("subscriber did not see the replacement set")
	}
}

func TestStoreReplaceGraphOnEmptyStore(t *testing.T) {
	s := NewStore()
	s.ReplaceGraph(&graph.Graph{})
	got, ok := s.Current()
	if !ok || got.Graph == nil {
		t.Fatal("graph replacement on empty store was dropped")
	}
}

func TestResourceUsageValidate(t *testing.T) {
	cases := []struct {
		name    string
		usage   ResourceUsage
		wantErr bool
	}{
		{"empty", ResourceUsage{}, false},
		{"aligned", ResourceUsage{Time: []float64{0, 1, 1}, CPU: []float64{1, 2, 3}, Memory: []float64{4, 5, 6}}, false},
		{"length mismatch", ResourceUsage{Time: []float64{0, 1}, CPU: []float64{1}, Memory: []float64{4, 5}}, true},
		{"time regression", ResourceUsage{Time: []float64{2, 1}, CPU: []float64{1, 2}, Memory: []float64{4, 5}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.usage.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
