package render

import (
	"sync"

	"bepview/internal/graph"
)

type Config struct {
	Width      float64
	Height     float64
	NodeRadius float64
}

func DefaultConfig() Config {
	return Config{Width: 960, Height: 640, NodeRadius: 8}
}

// Renderer consumes layout snapshots and redraws node/edge/label
// primitives. It only ever reads positions out of snapshots; the layout
// engine keeps exclusive ownership of the mutable simulation state.
type Renderer struct {
	cfg Config

	mu       sync.Mutex
	g        *graph.Graph
	frame    Frame
	onSelect func(graph.Node)
}

func New(cfg Config) *Renderer {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.NodeRadius <= 0 {
		cfg.NodeRadius = DefaultConfig().NodeRadius
	}
	r := &Renderer{cfg: cfg}
	r.frame = r.placeholderFrame()
	return r
}

// OnSelect registers the caller's node-selection callback.
func (r *Renderer) OnSelect(fn func(graph.Node)) {
	r.mu.Lock()
	r.onSelect = fn
	r.mu.Unlock()
}

// Render rebuilds the frame for the given graph at the snapshot's
// positions and returns it. An empty or nil graph yields the placeholder
// frame.
func (r *Renderer) Render(g *graph.Graph, snap graph.Snapshot) Frame {
	frame := r.buildFrame(g, snap)
	r.mu.Lock()
	r.g = g
	r.frame = frame
	r.mu.Unlock()
	return frame
}

// Frame returns the most recently rendered frame.
func (r *Renderer) Frame() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// HitTest resolves a pointer position to at most one node. Overlapping
// nodes resolve to the topmost, i.e. the last one drawn.
func (r *Renderer) HitTest(x, y float64) (graph.Node, bool) {
	r.mu.Lock()
	frame := r.frame
	g := r.g
	r.mu.Unlock()

	if g == nil {
		return graph.Node{}, false
	}
	for i := len(frame.Circles) - 1; i >= 0; i-- {
		c := frame.Circles[i]
		dx, dy := x-c.X, y-c.Y
		if dx*dx+dy*dy <= c.R*c.R {
			for _, n := range g.Nodes {
				if n.ID == c.NodeID {
					return n, true
				}
			}
			return graph.Node{}, false
		}
	}
	return graph.Node{}, false
}

// Select runs HitTest and, on a hit, invokes the selection callback.
func (r *Renderer) Select(x, y float64) bool {
	node, ok := r.HitTest(x, y)
	if !ok {
		return false
	}
	r.mu.Lock()
	fn := r.onSelect
	r.mu.Unlock()
	if fn != nil {
		fn(node)
	}
	return true
}

// Consume drives the renderer from a layout tick stream, invoking each
// after every redraw. It returns when the stream closes.
func (r *Renderer) Consume(g *graph.Graph, ticks <-chan graph.Snapshot, each func(Frame)) {
	for snap := range ticks {
		frame := r.Render(g, snap)
		if each != nil {
			each(frame)
		}
	}
}

func (r *Renderer) buildFrame(g *graph.Graph, snap graph.Snapshot) Frame {
	if g == nil || len(g.Nodes) == 0 {
		return r.placeholderFrame()
	}
	frame := Frame{
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
		Tick:   snap.Tick,
		Done:   snap.Done,
	}
	for _, e := range g.Edges {
		s, okS := snap.Positions[e.Source]
		t, okT := snap.Positions[e.Target]
		if !okS || !okT {
			continue
		}
		frame.Lines = append(frame.Lines, Line{
			X1: s.X, Y1: s.Y, X2: t.X, Y2: t.Y, Kind: e.Type,
		})
	}
	for _, n := range g.Nodes {
		p, ok := snap.Positions[n.ID]
		if !ok {
			continue
		}
		frame.Circles = append(frame.Circles, Circle{
			X: p.X, Y: p.Y, R: r.cfg.NodeRadius,
			NodeID: n.ID, Type: n.Type, Status: n.Status,
		})
		frame.Labels = append(frame.Labels, Label{
			X: p.X, Y: p.Y + r.cfg.NodeRadius*2, Text: n.Label,
		})
	}
	return frame
}

func (r *Renderer) placeholderFrame() Frame {
	return Frame{
		Width:       r.cfg.Width,
		Height:      r.cfg.Height,
		Placeholder: true,
		Labels: []Label{{
			X: r.cfg.Width / 2, Y: r.cfg.Height / 2,
			Text: "No graph data. Upload a build event file to explore it.",
		}},
	}
}
