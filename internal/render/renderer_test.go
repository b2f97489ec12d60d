package render

import (
	"strings"
	"testing"

	"bepview/internal/artifact"
	"bepview/internal/graph"
)

func testGraph() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "a", Label: "lib", Type: graph.TypeTarget, Status: "success"},
			{ID: "b", Label: "bin", Type: graph.TypeTarget, Status: "failed"},
			{ID: "t", Label: "lib_test", Type: graph.TypeTest, Status: "passed"},
		},
		Edges: []graph.Edge{
			{Source: "a", Target: "b"},
			{Source: "t", Target: "a", Type: "test"},
		},
	}
}

func snapshotAt(positions map[string]graph.Point) graph.Snapshot {
	return graph.Snapshot{Tick: 1, Positions: positions, Done: true}
}

func TestRenderBuildsPrimitivesPerNodeAndEdge(t *testing.T) {
	r := New(DefaultConfig())
	g := testGraph()
	frame := r.Render(g, snapshotAt(map[string]graph.Point{
		"a": {X: 100, Y: 100},
		"b": {X: 200, Y: 100},
		"t": {X: 100, Y: 200},
	}))

	if frame.Placeholder {
		t.Fatal("placeholder frame for a populated graph")
	}
	if len(frame.Circles) != 3 || len(frame.Labels) != 3 {
		t.Fatalf("circles=%d labels=%d, want 3 each", len(frame.Circles), len(frame.Labels))
	}
	if len(frame.Lines) != 2 {
		t.Fatalf("lines=%d, want 2", len(frame.Lines))
	}
}

func TestRenderEmptyGraphIsPlaceholder(t *testing.T) {
	r := New(DefaultConfig())
	for _, g := range []*graph.Graph{nil, {}} {
		frame := r.Render(g, snapshotAt(nil))
		if !frame.Placeholder {
			t.Fatal("expected placeholder frame")
		}
		if len(frame.Labels) == 0 {
			t.Fatal("placeholder should carry an explanatory label")
		}
	}
}

func TestHitTestResolvesNode(t *testing.T) {
	r := New(DefaultConfig())
	r.Render(testGraph(), snapshotAt(map[string]graph.Point{
		"a": {X: 100, Y: 100},
		"b": {X: 300, Y: 100},
		"t": {X: 100, Y: 300},
	}))

	node, ok := r.HitTest(102, 98)
	if !ok || node.ID != "a" {
		t.Fatalf("hit = (%v, %v), want node a", node, ok)
	}
	if _, ok := r.HitTest(500, 500); ok {
		t.Fatal("hit reported on empty canvas region")
	}
}

func TestHitTestOverlapPicksTopmost(t *testing.T) {
	r := New(DefaultConfig())
	// b draws after a at the same spot, so b is topmost.
	g := &graph.Graph{Nodes: []graph.Node{
		{ID: "a", Label: "under", Type: graph.TypeTarget},
		{ID: "b", Label: "over", Type: graph.TypeTarget},
	}}
	r.Render(g, snapshotAt(map[string]graph.Point{
		"a": {X: 50, Y: 50},
		"b": {X: 52, Y: 50},
	}))

	node, ok := r.HitTest(51, 50)
	if !ok {
		t.Fatal("no hit on overlapping nodes")
	}
	if node.ID != "b" {
		t.Fatalf("picked %q, want topmost b", node.ID)
	}
}

func TestSelectInvokesCallbackOnce(t *testing.T) {
	r := New(DefaultConfig())
	var selected []string
	r.OnSelect(func(n graph.Node) { selected = append(selected, n.ID) })
	r.Render(testGraph(), snapshotAt(map[string]graph.Point{
		"a": {X: 100, Y: 100},
		"b": {X: 300, Y: 100},
		"t": {X: 100, Y: 300},
	}))

	if !r.Select(100, 100) {
		t.Fatal("select missed node a")
	}
	if r.Select(700, 700) {
		t.Fatal("select hit empty space")
	}
	if len(selected) != 1 || selected[0] != "a" {
		t.Fatalf("callback saw %v, want exactly [a]", selected)
	}
}

func TestConsumeRedrawsPerTick(t *testing.T) {
	ticks := make(chan graph.Snapshot, 3)
	positions := map[string]graph.Point{"a": {X: 1, Y: 1}, "b": {X: 2, Y: 2}, "t": {X: 3, Y: 3}}
	for i := 1; i <= 3; i++ {
		ticks <- graph.Snapshot{Tick: i, Positions: positions, Done: i == 3}
	}
	close(ticks)

	r := New(DefaultConfig())
	var frames []Frame
	r.Consume(testGraph(), ticks, func(f Frame) { frames = append(frames, f) })

	if len(frames) != 3 {
		t.Fatalf("rendered %d frames, want 3", len(frames))
	}
	if !frames[2].Done {
		t.Fatal("final frame not marked done")
	}
	if got := r.Frame(); got.Tick != 3 {
		t.Fatalf("latest frame tick = %d", got.Tick)
	}
}

func TestPlotResourceUsagePointCounts(t *testing.T) {
	u := &artifact.ResourceUsage{
		Time:   []float64{0, 1, 2, 3},
		CPU:    []float64{10, 80, 40, 20},
		Memory: []float64{100, 300, 250, 220},
	}
	frame, err := PlotResourceUsage(u, 400, 200)
	if err != nil {
		t.Fatalf("PlotResourceUsage: %v", err)
	}
	if len(frame.CPU) != 4 || len(frame.Memory) != 4 {
		t.Fatalf("cpu=%d memory=%d points, want 4 each", len(frame.CPU), len(frame.Memory))
	}
	if frame.Placeholder {
		t.Fatal("placeholder for a populated series")
	}
}

func TestPlotResourceUsageEmptySeries(t *testing.T) {
	for _, u := range []*artifact.ResourceUsage{nil, {}} {
		frame, err := PlotResourceUsage(u, 400, 200)
		if err != nil {
			t.Fatalf("empty series must not fail: %v", err)
		}
		if !frame.Placeholder {
			t.Fatal("expected placeholder for empty series")
		}
	}
}

func TestPlotResourceUsageRejectsMisalignedSeries(t *testing.T) {
	cases := []struct {
		name  string
		usage *artifact.ResourceUsage
	}{
		{"short cpu", &artifact.ResourceUsage{Time: []float64{0, 1}, CPU: []float64{1}, Memory: []float64{2, 3}}},
		{"empty time axis", &artifact.ResourceUsage{CPU: []float64{1, 2}, Memory: []float64{3, 4}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := PlotResourceUsage(tc.usage, 400, 200)
			if err == nil {
				t.Fatalf("misaligned series accepted: %+v", frame)
			}
		})
	}
}

func TestSVGOutputsPrimitives(t *testing.T) {
	r := New(DefaultConfig())
	frame := r.Render(testGraph(), snapshotAt(map[string]graph.Point{
		"a": {X: 100, Y: 100},
		"b": {X: 200, Y: 100},
		"t": {X: 100, Y: 200},
	}))
	out := string(SVG(frame))
	if strings.Count(out, "<circle") != 3 {
		t.Fatalf("svg circles:\n%s", out)
	}
	if strings.Count(out, "<line") != 2 {
		t.Fatalf("svg lines:\n%s", out)
	}
	if !strings.Contains(out, "lib_test") {
		t.Fatal("svg missing node label")
	}
}
