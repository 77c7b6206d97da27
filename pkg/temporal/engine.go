// Package temporal computes date-dependent multipliers: long-term trend,
// yearly seasonality, weekday effects, named event windows and categorical
// modifiers, applied in that order.
package temporal

import (
	"math"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// Metric selects which quantity a multiplier applies to.
type Metric string

const (
	Volume     Metric = "volume"
	Rate       Metric = "rate"
	Conversion Metric = "conversion"
	Spend      Metric = "spend"
)

// ============================================================================
// Step 1: long-term trend
// ============================================================================

type TrendKind int

const (
	NoTrend TrendKind = iota
	CompoundTrend
	LinearTrend
)

// Trend is either compound daily growth from Origin, or a linear move from
// From to To across SpanDays.
type Trend struct {
	Kind        TrendKind
	Origin      time.Time
	DailyGrowth float64
	SpanDays    int
	From        float64
	To          float64
}

func (t Trend) Factor(date time.Time) float64 {
	days := DaysBetween(t.Origin, date)
	switch t.Kind {
	case CompoundTrend:
		return math.Pow(1+t.DailyGrowth, float64(days))
	case LinearTrend:
		if t.SpanDays <= 0 {
			return t.To
		}
		frac := math.Min(1, math.Max(0, float64(days)/float64(t.SpanDays)))
		return t.From + (t.To-t.From)*frac
	default:
		return 1
	}
}

// ============================================================================
// Step 2: yearly seasonality
// ============================================================================

type Seasonality struct {
	Amplitude float64
	PhaseDays float64
}

func (s Seasonality) Factor(date time.Time) float64 {
	if s.Amplitude == 0 {
		return 1
	}
	return 1 + s.Amplitude*math.Sin(2*math.Pi*(float64(date.YearDay())+s.PhaseDays)/365.25)
}

// ============================================================================
// Step 3: weekday/weekend
// ============================================================================

// Weekly holds day-of-week multipliers. Zero fields mean no effect. Spread
// is the relative half-width of the per-day jitter drawn by Jitter.
type Weekly struct {
	Weekday  float64
	Saturday float64
	Sunday   float64
	Spread   float64
}

func (w Weekly) Factor(date time.Time) float64 {
	var f float64
	switch date.Weekday() {
	case time.Saturday:
		f = w.Saturday
	case time.Sunday:
		f = w.Sunday
	default:
		f = w.Weekday
	}
	if f == 0 {
		return 1
	}
	return f
}

// Jitter draws a multiplier in U(1-Spread, 1+Spread). It draws nothing and
// returns 1 when Spread is zero.
func (w Weekly) Jitter(rng *randstream.Stream) float64 {
	if w.Spread <= 0 {
		return 1
	}
	return rng.Uniform(1-w.Spread, 1+w.Spread)
}

// ============================================================================
// Step 4: named event windows
// ============================================================================

// Shape maps a position inside an event window to a multiplier.
type Shape interface {
	At(elapsedDays, spanDays float64) float64
}

// Constant applies the same multiplier for the whole window.
type Constant float64

func (c Constant) At(_, _ float64) float64 { return float64(c) }

// Ramp interpolates linearly from From at the window start to To at its end.
type Ramp struct {
	From float64
	To   float64
}

func (r Ramp) At(elapsed, span float64) float64 {
	if span <= 0 {
		return r.To
	}
	frac := math.Min(1, math.Max(0, elapsed/span))
	return r.From + (r.To-r.From)*frac
}

// Logistic is Base + Lift*g where g is the logistic adoption curve
// 1/(1+exp(-K(elapsed-Midpoint))).
type Logistic struct {
	K        float64
	Midpoint float64
	Base     float64
	Lift     float64
}

func (l Logistic) At(elapsed, _ float64) float64 {
	return l.Base + l.Lift*LogisticGrowth(elapsed, l.K, l.Midpoint)
}

// LogisticGrowth is the adoption fraction after elapsed days.
func LogisticGrowth(elapsed, k, midpoint float64) float64 {
	return 1 / (1 + math.Exp(-k*(elapsed-midpoint)))
}

// Decline falls by Rate per elapsed day and never below Floor.
type Decline struct {
	Rate  float64
	Floor float64
}

func (d Decline) At(elapsed, _ float64) float64 {
	return math.Max(d.Floor, 1-d.Rate*elapsed)
}

// EventWindow scales metrics for keys it applies to while the date is inside
// the window. Outside the window it is the identity.
type EventWindow struct {
	Window
	// Keys restricts the window to the listed keys; empty applies to all.
	Keys    []string
	Effects map[Metric]Shape
}

func (e EventWindow) Applies(key string) bool {
	if len(e.Keys) == 0 {
		return true
	}
	for _, k := range e.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (e EventWindow) Factor(date time.Time, key string, metric Metric) float64 {
	if !e.Contains(date) || !e.Applies(key) {
		return 1
	}
	shape, ok := e.Effects[metric]
	if !ok {
		return 1
	}
	return shape.At(e.Elapsed(date), e.Span())
}

// ============================================================================
// Step 5: categorical modifiers
// ============================================================================

// Modifier is the per-metric multiplier carried by one dimension value.
type Modifier struct {
	Imp   float64
	CTR   float64
	Conv  float64
	Spend float64
}

// Identity leaves every metric unchanged.
var Identity = Modifier{Imp: 1, CTR: 1, Conv: 1, Spend: 1}

// Mod builds a modifier that leaves spend unchanged.
func Mod(imp, ctr, conv float64) Modifier {
	return Modifier{Imp: imp, CTR: ctr, Conv: conv, Spend: 1}
}

// Combine multiplies modifiers field by field.
func Combine(mods ...Modifier) Modifier {
	out := Identity
	for _, m := range mods {
		out.Imp *= m.Imp
		out.CTR *= m.CTR
		out.Conv *= m.Conv
		out.Spend *= m.Spend
	}
	return out
}

func (m Modifier) For(metric Metric) float64 {
	switch metric {
	case Volume:
		return m.Imp
	case Rate:
		return m.CTR
	case Conversion:
		return m.Conv
	case Spend:
		return m.Spend
	default:
		return 1
	}
}

// ============================================================================
// Engine
// ============================================================================

// Engine composes the steps for one domain. Calendar effects (trend,
// seasonality, weekday) scale Volume only; every metric sees event windows.
type Engine struct {
	Trend       Trend
	Seasonality Seasonality
	Weekly      Weekly
	Events      []EventWindow
}

// Calendar returns the product of steps 1 through 3.
func (e Engine) Calendar(date time.Time) float64 {
	return e.Trend.Factor(date) * e.Seasonality.Factor(date) * e.Weekly.Factor(date)
}

// EventFactor returns the step 4 multiplier for key, applying overlapping windows
// in list order.
func (e Engine) EventFactor(date time.Time, key string, metric Metric) float64 {
	f := 1.0
	for _, ev := range e.Events {
		f *= ev.Factor(date, key, metric)
	}
	return f
}

// Factor returns steps 1 through 4 for metric on key.
func (e Engine) Factor(date time.Time, key string, metric Metric) float64 {
	f := e.EventFactor(date, key, metric)
	if metric == Volume {
		f *= e.Calendar(date)
	}
	return f
}

// Evaluate applies steps 1 through 5 to base.
func (e Engine) Evaluate(base float64, date time.Time, key string, metric Metric, mod Modifier) float64 {
	return base * e.Factor(date, key, metric) * mod.For(metric)
}

// ApplyNoise multiplies value by 1+N(0, sigma) and then clamps to floor.
// The clamp comes after the noise so noise can push a value onto the floor.
func ApplyNoise(rng *randstream.Stream, value, sigma, floor float64) float64 {
	v := value * (1 + rng.Normal(0, sigma))
	if v < floor {
		return floor
	}
	return v
}
