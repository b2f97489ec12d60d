// Package render turns layout snapshots into drawable frames and routes
// pointer events back to node selections.
package render

// Line is one edge segment in canvas coordinates.
type Line struct {
	X1, Y1, X2, Y2 float64
	Kind           string
}

// Circle is one node glyph. Draw order is slice order; the last circle
// drawn is the topmost for hit-testing.
type Circle struct {
	X, Y, R float64
	NodeID  string
	Type    string
	Status  string
}

// Label is a node caption.
type Label struct {
	X, Y float64
	Text string
}

// Frame is one complete redraw: edges first, then nodes, then labels.
// Placeholder frames stand in for an empty graph instead of a blank
// canvas.
type Frame struct {
	Width, Height float64
	Lines         []Line
	Circles       []Circle
	Labels        []Label
	Placeholder   bool
	Tick          int
	Done          bool
}
