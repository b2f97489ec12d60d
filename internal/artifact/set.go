// Package artifact models the processed outputs of one BEP upload and
// the process-wide store that renderers read them from.
package artifact

import (
	"fmt"
	"time"

	"bepview/internal/graph"
)

// Summary is the aggregate build statistics artifact.
type Summary struct {
	Targets          int  `json:"targets"`
	Tests            int  `json:"tests"`
	Actions          int  `json:"actions"`
	TargetsPassed    int  `json:"targets_passed,omitempty"`
	TargetsFailed    int  `json:"targets_failed,omitempty"`
	TestsPassed      int  `json:"tests_passed,omitempty"`
	TestsFailed      int  `json:"tests_failed,omitempty"`
	HasResourceUsage bool `json:"has_resource_usage"`
}

// ResourceUsage is the parallel time-series artifact. Index i of every
// slice refers to the same sample.
type ResourceUsage struct {
	Time   []float64 `json:"time"`
	CPU    []float64 `json:"cpu"`
	Memory []float64 `json:"memory"`
	Count  int       `json:"count,omitempty"`
}

// Len returns the number of samples.
func (r *ResourceUsage) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Time)
}

// Validate enforces the series invariants: equal lengths and a
// monotonically non-decreasing time axis.
func (r *ResourceUsage) Validate() error {
	if r == nil {
		return nil
	}
	if len(r.CPU) != len(r.Time) || len(r.Memory) != len(r.Time) {
		return fmt.Errorf("resource usage series lengths differ: time=%d cpu=%d memory=%d",
			len(r.Time), len(r.CPU), len(r.Memory))
	}
	for i := 1; i < len(r.Time); i++ {
		if r.Time[i] < r.Time[i-1] {
			return fmt.Errorf("resource usage time axis not monotonic at index %d", i)
		}
	}
	return nil
}

// Set is one upload's retrieved artifacts. Individual fields may be nil
// when their fetch failed; the set is still published and rendered as
// available. A Set is replaced wholesale, never partially mutated.
type Set struct {
	FileID        string
	Summary       *Summary
	Graph         *graph.Graph
	ResourceUsage *ResourceUsage
	FetchedAt     time.Time
}

// Empty reports whether no artifact at all was retrieved.
func (s *Set) Empty() bool {
	return s == nil || (s.Summary == nil && s.Graph == nil && s.ResourceUsage == nil)
}
