// Package funnel narrows a cohort through ordered conversion stages.
package funnel

import (
	"math"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// Stage is one step of a conversion chain. Rate is the base conversion from
// the previous stage; Modifier scales it (dimension and campaign effects). A
// zero Modifier closes the stage.
type Stage struct {
	Name     string
	Rate     float64
	Modifier float64
	Noise    float64
}

// NewStage returns an unmodified stage.
func NewStage(name string, rate, noise float64) Stage {
	return Stage{Name: name, Rate: rate, Modifier: 1, Noise: noise}
}

// WithModifier returns a copy of s scaled by mod.
func (s Stage) WithModifier(mod float64) Stage {
	s.Modifier = mod
	return s
}

func (s Stage) effectiveRate() float64 {
	return s.Rate * s.Modifier
}

// Result holds the starting cohort followed by one count per stage.
type Result struct {
	Names  []string
	Counts []int
}

// Count returns the count for the named stage, or -1 if absent.
func (r Result) Count(name string) int {
	for i, n := range r.Names {
		if n == name {
			return r.Counts[i]
		}
	}
	return -1
}

// Monotone reports whether counts never increase along the chain.
func (r Result) Monotone() bool {
	for i := 1; i < len(r.Counts); i++ {
		if r.Counts[i] > r.Counts[i-1] || r.Counts[i] < 0 {
			return false
		}
	}
	return true
}

// Evaluate computes floor(prev * rate * (1 + N(0, noise))) for each stage,
// flooring negatives to zero, then clamps each stage to its predecessor.
// startName labels the starting cohort.
func Evaluate(rng *randstream.Stream, startName string, start int, stages []Stage) Result {
	if start < 0 {
		start = 0
	}
	res := Result{
		Names:  make([]string, 0, len(stages)+1),
		Counts: make([]int, 0, len(stages)+1),
	}
	res.Names = append(res.Names, startName)
	res.Counts = append(res.Counts, start)

	prev := start
	for _, st := range stages {
		raw := float64(prev) * st.effectiveRate()
		if st.Noise > 0 {
			raw *= 1 + rng.Normal(0, st.Noise)
		}
		n := int(math.Floor(raw))
		if n < 0 {
			n = 0
		}
		res.Names = append(res.Names, st.Name)
		res.Counts = append(res.Counts, n)
		prev = n
	}

	for i := 1; i < len(res.Counts); i++ {
		if res.Counts[i] > res.Counts[i-1] {
			res.Counts[i] = res.Counts[i-1]
		}
	}
	return res
}
