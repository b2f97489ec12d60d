package graph

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"
)

// Point is a read-only node position as of one tick.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Snapshot is the per-tick output of the layout engine. Positions is a
// fresh copy each tick; consumers never see the engine's mutable state.
type Snapshot struct {
	Tick      int
	Alpha     float64
	Energy    float64
	Positions map[string]Point
	Done      bool
}

// LayoutConfig tunes the force simulation.
type LayoutConfig struct {
	Width  float64
	Height float64

	LinkDistance   float64
	LinkStrength   float64
	RepelStrength  float64
	CenterStrength float64
	// VelocityDecay is the fraction of velocity retained per tick.
	VelocityDecay float64

	Alpha      float64
	AlphaMin   float64
	AlphaDecay float64

	// EnergyThreshold is total kinetic energy per node below which the
	// simulation is considered converged.
	EnergyThreshold float64
	// MaxTicks bounds worst-case runtime for pathological graphs.
	MaxTicks int
}

func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Width:           960,
		Height:          640,
		LinkDistance:    60,
		LinkStrength:    0.3,
		RepelStrength:   1200,
		CenterStrength:  0.05,
		VelocityDecay:   0.6,
		Alpha:           1,
		AlphaMin:        0.001,
		AlphaDecay:      0.0228,
		EnergyThreshold: 1e-4,
		MaxTicks:        300,
	}
}

// Layout runs a force-directed simulation over one graph at a time.
// Node positions and velocities live inside the tick goroutine; the only
// shared state is the last published position map, guarded by mu.
type Layout struct {
	cfg    LayoutConfig
	logger *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	positions map[string]Point
}

func NewLayout(cfg LayoutConfig, logger *zap.Logger) *Layout {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultLayoutConfig().MaxTicks
	}
	return &Layout{cfg: cfg, logger: logger}
}

type simNode struct {
	id     string
	x, y   float64
	vx, vy float64
}

// Start validates the graph, cancels any in-flight simulation, and
// spawns a new tick loop. The returned channel closes once the layout
// converges, hits MaxTicks, or is stopped. Graph changes always restart
// the simulation from scratch; there is no partial re-layout.
func (l *Layout) Start(g *Graph) (<-chan Snapshot, error) {
	edges, err := Validate(g)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		prev := l.done
		l.mu.Unlock()
		<-prev
		l.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	nodes := l.seed(g.Nodes)
	out := make(chan Snapshot, 32)

	go func() {
		defer close(done)
		defer close(out)
		l.run(ctx, nodes, edges, out)
	}()
	return out, nil
}

// Stop cancels the in-flight simulation, if any, and waits for its tick
// loop to exit. Last published positions remain queryable.
func (l *Layout) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Positions returns a copy of the most recently published layout.
func (l *Layout) Positions() map[string]Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Point, len(l.positions))
	for id, p := range l.positions {
		out[id] = p
	}
	return out
}

// seed places nodes on a phyllotaxis spiral around the canvas center so
// runs are deterministic and no two nodes start coincident.
func (l *Layout) seed(src []Node) []simNode {
	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	const initialRadius = 12.0
	cx, cy := l.cfg.Width/2, l.cfg.Height/2
	nodes := make([]simNode, len(src))
	for i, n := range src {
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * goldenAngle
		nodes[i] = simNode{
			id: n.ID,
			x:  cx + r*math.Cos(a),
			y:  cy + r*math.Sin(a),
		}
	}
	return nodes
}

func (l *Layout) run(ctx context.Context, nodes []simNode, edges []resolvedEdge, out chan<- Snapshot) {
	cfg := l.cfg
	alpha := cfg.Alpha

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.applyLinkForce(nodes, edges, alpha)
		l.applyRepelForce(nodes, alpha)
		l.applyCenterForce(nodes, alpha)

		energy := 0.0
		for i := range nodes {
			n := &nodes[i]
			n.vx *= cfg.VelocityDecay
			n.vy *= cfg.VelocityDecay
			n.x += n.vx
			n.y += n.vy
			energy += n.vx*n.vx + n.vy*n.vy
		}
		alpha *= 1 - cfg.AlphaDecay

		converged := energy < cfg.EnergyThreshold*float64(max(len(nodes), 1)) || alpha < cfg.AlphaMin
		done := converged || tick >= cfg.MaxTicks

		snap := l.publish(nodes, tick, alpha, energy, done)
		if done {
			// Final snapshot must reach the consumer; intermediate ones
			// may be dropped under backpressure.
			select {
			case out <- snap:
			case <-ctx.Done():
			}
			l.logger.Debug("layout settled",
				zap.Int("ticks", tick),
				zap.Float64("energy", energy),
				zap.Bool("converged", converged))
			return
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (l *Layout) publish(nodes []simNode, tick int, alpha, energy float64, done bool) Snapshot {
	positions := make(map[string]Point, len(nodes))
	for i := range nodes {
		positions[nodes[i].id] = Point{X: nodes[i].x, Y: nodes[i].y}
	}
	l.mu.Lock()
	l.positions = positions
	l.mu.Unlock()

	// Hand the consumer its own copy; l.positions stays internal.
	external := make(map[string]Point, len(positions))
	for id, p := range positions {
		external[id] = p
	}
	return Snapshot{Tick: tick, Alpha: alpha, Energy: energy, Positions: external, Done: done}
}

// applyLinkForce is a spring pulling connected nodes toward
// LinkDistance, split evenly between both endpoints.
func (l *Layout) applyLinkForce(nodes []simNode, edges []resolvedEdge, alpha float64) {
	cfg := l.cfg
	for _, e := range edges {
		s, t := &nodes[e.source], &nodes[e.target]
		dx := (t.x + t.vx) - (s.x + s.vx)
		dy := (t.y + t.vy) - (s.y + s.vy)
		dist := math.Hypot(dx, dy)
		if dist < 1e-6 {
			dist = 1e-6
		}
		f := (dist - cfg.LinkDistance) / dist * cfg.LinkStrength * alpha
		fx, fy := dx*f, dy*f
		t.vx -= fx / 2
		t.vy -= fy / 2
		s.vx += fx / 2
		s.vy += fy / 2
	}
}

// applyRepelForce is the O(n^2) many-body repulsion. Graphs here top out
// around a few thousand nodes, where the quadratic pass is still cheap
// enough per tick.
func (l *Layout) applyRepelForce(nodes []simNode, alpha float64) {
	cfg := l.cfg
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			a, b := &nodes[i], &nodes[j]
			dx := b.x - a.x
			dy := b.y - a.y
			dist2 := dx*dx + dy*dy
			if dist2 < 1 {
				dist2 = 1
			}
			f := cfg.RepelStrength * alpha / dist2
			dist := math.Sqrt(dist2)
			fx, fy := dx/dist*f, dy/dist*f
			a.vx -= fx
			a.vy -= fy
			b.vx += fx
			b.vy += fy
		}
	}
}

func (l *Layout) applyCenterForce(nodes []simNode, alpha float64) {
	cfg := l.cfg
	cx, cy := cfg.Width/2, cfg.Height/2
	for i := range nodes {
		n := &nodes[i]
		n.vx += (cx - n.x) * cfg.CenterStrength * alpha
		n.vy += (cy - n.y) * cfg.CenterStrength * alpha
	}
}
