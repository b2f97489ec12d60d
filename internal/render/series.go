package render

import (
	"bepview/internal/artifact"
)

// PointXY is one plotted sample in canvas coordinates.
type PointXY struct {
	X, Y float64
}

// SeriesFrame is the resource-usage plot: one polyline per metric, each
// with exactly as many points as the series has samples.
type SeriesFrame struct {
	Width, Height float64
	CPU           []PointXY
	Memory        []PointXY
	Placeholder   bool
}

// PlotResourceUsage maps the time series onto a canvas. A nil or empty
// series renders the placeholder state rather than failing; series that
// violate the alignment invariants are rejected.
func PlotResourceUsage(u *artifact.ResourceUsage, width, height float64) (SeriesFrame, error) {
	frame := SeriesFrame{Width: width, Height: height}
	// Alignment violations must surface even when the time axis alone is
	// empty, so validation runs before the placeholder check.
	if err := u.Validate(); err != nil {
		return SeriesFrame{}, err
	}
	if u.Len() == 0 {
		frame.Placeholder = true
		return frame, nil
	}

	minT, maxT := u.Time[0], u.Time[len(u.Time)-1]
	spanT := maxT - minT
	if spanT == 0 {
		spanT = 1
	}
	scaleX := func(t float64) float64 {
		return (t - minT) / spanT * width
	}
	scaleY := func(v, maxV float64) float64 {
		if maxV == 0 {
			maxV = 1
		}
		return height - v/maxV*height
	}

	maxCPU, maxMem := 0.0, 0.0
	for i := range u.Time {
		if u.CPU[i] > maxCPU {
			maxCPU = u.CPU[i]
		}
		if u.Memory[i] > maxMem {
			maxMem = u.Memory[i]
		}
	}

	frame.CPU = make([]PointXY, u.Len())
	frame.Memory = make([]PointXY, u.Len())
	for i := range u.Time {
		x := scaleX(u.Time[i])
		frame.CPU[i] = PointXY{X: x, Y: scaleY(u.CPU[i], maxCPU)}
		frame.Memory[i] = PointXY{X: x, Y: scaleY(u.Memory[i], maxMem)}
	}
	return frame, nil
}
