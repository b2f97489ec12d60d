package render

import (
	"fmt"
	"strings"

	"bepview/internal/graph"
)

// statusColor maps a node's type-dependent status domain to a fill.
func statusColor(nodeType, status string) string {
	switch nodeType {
	case graph.TypeTest:
		switch status {
		case "passed":
			return "#2e7d32"
		case "failed":
			return "#c62828"
		}
	case graph.TypeTarget:
		switch status {
		case "success", "built":
			return "#1565c0"
		case "failed":
			return "#c62828"
		case "cached":
			return "#6a1b9a"
		}
	case graph.TypeAction:
		return "#ef6c00"
	}
	return "#616161"
}

// SVG serializes a frame for the viewer page and for file export.
func SVG(f Frame) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`,
		f.Width, f.Height, f.Width, f.Height)
	b.WriteString("\n")

	for _, l := range f.Lines {
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#9e9e9e" stroke-width="1"/>`,
			l.X1, l.Y1, l.X2, l.Y2)
		b.WriteString("\n")
	}
	for _, c := range f.Circles {
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" data-node-id="%s"/>`,
			c.X, c.Y, c.R, statusColor(c.Type, c.Status), escape(c.NodeID))
		b.WriteString("\n")
	}
	for _, l := range f.Labels {
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" font-size="10" text-anchor="middle">%s</text>`,
			l.X, l.Y, escape(l.Text))
		b.WriteString("\n")
	}
	b.WriteString("</svg>\n")
	return []byte(b.String())
}

// SeriesSVG serializes the resource-usage plot.
func SeriesSVG(f SeriesFrame) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f">`, f.Width, f.Height)
	b.WriteString("\n")
	if f.Placeholder {
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle">No resource usage recorded</text>`,
			f.Width/2, f.Height/2)
		b.WriteString("\n</svg>\n")
		return []byte(b.String())
	}
	writePolyline(&b, f.CPU, "#1565c0")
	writePolyline(&b, f.Memory, "#2e7d32")
	b.WriteString("</svg>\n")
	return []byte(b.String())
}

func writePolyline(b *strings.Builder, points []PointXY, stroke string) {
	b.WriteString(`<polyline fill="none" stroke="` + stroke + `" points="`)
	for i, p := range points {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(b, "%.1f,%.1f", p.X, p.Y)
	}
	b.WriteString(`"/>` + "\n")
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
