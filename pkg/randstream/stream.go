// Package randstream is the single source of entropy for every generator.
// Two streams created with the same seed produce the same sequence of draws.
package randstream

import (
	crand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// pcgIncrement is the fixed second word of the PCG state; only the seed varies.
const pcgIncrement = 0x9e3779b97f4a7c15

// Stream wraps a PCG generator with the distribution helpers the domain
// factories need. A Stream is not safe for concurrent use; each pipeline owns
// its own stream.
type Stream struct {
	seed int64
	rng  *rand.Rand
}

// New returns a reproducible stream for seed.
func New(seed int64) *Stream {
	return &Stream{
		seed: seed,
		rng:  rand.New(rand.NewPCG(uint64(seed), pcgIncrement)),
	}
}

// NewUnseeded draws a seed from the operating system. The chosen seed is
// available through Seed so a run can be replayed.
func NewUnseeded() *Stream {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return New(time.Now().UnixNano())
	}
	return New(int64(binary.LittleEndian.Uint64(buf[:]) >> 1))
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 { return s.seed }

// Derive returns an independent child stream keyed by label. Children derived
// with the same label from equal seeds are identical, and deriving does not
// consume draws from the parent.
func (s *Stream) Derive(label string) *Stream {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return New(int64((uint64(s.seed) ^ h.Sum64()) >> 1))
}

// Float64 returns a draw in [0, 1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// Uniform returns a draw in [min, max).
func (s *Stream) Uniform(min, max float64) float64 {
	return min + (max-min)*s.rng.Float64()
}

// Int returns an integer in [min, max], both ends inclusive.
func (s *Stream) Int(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.IntN(max-min+1)
}

// Normal returns a Gaussian draw.
func (s *Stream) Normal(mean, sigma float64) float64 {
	return mean + sigma*s.rng.NormFloat64()
}

// LogNormal returns exp(N(mu, sigma)).
func (s *Stream) LogNormal(mu, sigma float64) float64 {
	return math.Exp(s.Normal(mu, sigma))
}

// Triangular draws from the triangular distribution on [low, high] with the
// given mode, using the inverse CDF.
func (s *Stream) Triangular(low, mode, high float64) float64 {
	if high <= low {
		return low
	}
	u := s.rng.Float64()
	c := (mode - low) / (high - low)
	if u < c {
		return low + math.Sqrt(u*(high-low)*(mode-low))
	}
	return high - math.Sqrt((1-u)*(high-low)*(high-mode))
}

// Bool returns true with probability p.
func (s *Stream) Bool(p float64) bool {
	return s.rng.Float64() < p
}

// WeightedIndex picks an index in proportion to weights. Negative weights
// count as zero; if nothing is left the pick is uniform.
// It panics when weights is empty.
func (s *Stream) WeightedIndex(weights []float64) int {
	if len(weights) == 0 {
		panic("randstream: weighted choice over no options")
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return s.rng.IntN(len(weights))
	}

	target := s.rng.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

// Index returns a uniform index in [0, n).
func (s *Stream) Index(n int) int {
	if n <= 0 {
		panic("randstream: choice over no options")
	}
	return s.rng.IntN(n)
}

// Day returns a calendar day in [start, end], both inclusive, at midnight UTC.
func (s *Stream) Day(start, end time.Time) time.Time {
	start, end = truncateDay(start), truncateDay(end)
	span := int(end.Sub(start).Hours() / 24)
	if span <= 0 {
		return start
	}
	return start.AddDate(0, 0, s.Int(0, span))
}

// Instant returns a timestamp with second resolution in [start, end].
func (s *Stream) Instant(start, end time.Time) time.Time {
	span := int64(end.Sub(start) / time.Second)
	if span <= 0 {
		return start
	}
	return start.Add(time.Duration(s.rng.Int64N(span+1)) * time.Second)
}

// Read fills p with stream bytes so the stream can back io.Reader consumers
// such as uuid.NewRandomFromReader. It never fails.
func (s *Stream) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], s.rng.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}

// Choice returns a uniform pick from options.
func Choice[T any](s *Stream, options []T) T {
	return options[s.Index(len(options))]
}

// WeightedChoice returns a pick from options in proportion to weights.
func WeightedChoice[T any](s *Stream, options []T, weights []float64) T {
	if len(options) != len(weights) {
		panic("randstream: options and weights differ in length")
	}
	return options[s.WeightedIndex(weights)]
}

// Weighted pairs an option with its weight for table-style declarations.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// Pick draws from a weighted table.
func Pick[T any](s *Stream, table []Weighted[T]) T {
	weights := make([]float64, len(table))
	for i, w := range table {
		weights[i] = w.Weight
	}
	return table[s.WeightedIndex(weights)].Value
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
