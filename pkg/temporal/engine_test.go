package temporal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

func TestTrend_Factor(t *testing.T) {
	origin := Date(2023, time.January, 1)

	tests := []struct {
		name  string
		trend Trend
		date  time.Time
		want  float64
	}{
		{"none", Trend{}, Date(2024, 1, 1), 1},
		{"compound day zero", Trend{Kind: CompoundTrend, Origin: origin, DailyGrowth: 0.0005}, origin, 1},
		{"compound one year", Trend{Kind: CompoundTrend, Origin: origin, DailyGrowth: 0.0005}, Date(2024, 1, 1), math.Pow(1.0005, 365)},
		{"linear midpoint", Trend{Kind: LinearTrend, Origin: origin, SpanDays: 10, From: 1, To: 2}, Date(2023, 1, 6), 1.5},
		{"linear clamps past end", Trend{Kind: LinearTrend, Origin: origin, SpanDays: 10, From: 1, To: 2}, Date(2023, 3, 1), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.trend.Factor(tt.date), 1e-9)
		})
	}
}

func TestSeasonality_Factor(t *testing.T) {
	s := Seasonality{Amplitude: 0.15, PhaseDays: 75}
	date := Date(2023, time.March, 1)
	want := 1 + 0.15*math.Sin(2*math.Pi*(60+75)/365.25)

	assert.InDelta(t, want, s.Factor(date), 1e-12)
	assert.Equal(t, 1.0, Seasonality{}.Factor(date))
}

func TestWeekly_Factor(t *testing.T) {
	w := Weekly{Saturday: 0.85, Sunday: 0.80}

	assert.Equal(t, 0.85, w.Factor(Date(2024, 6, 1))) // Saturday
	assert.Equal(t, 0.80, w.Factor(Date(2024, 6, 2))) // Sunday
	assert.Equal(t, 1.0, w.Factor(Date(2024, 6, 3)))  // Monday
}

func TestWeekly_Jitter(t *testing.T) {
	rng := randstream.New(11)
	assert.Equal(t, 1.0, Weekly{Saturday: 0.7}.Jitter(rng))

	w := Weekly{Weekday: 1, Saturday: 0.7, Sunday: 0.7, Spread: 0.1}
	for i := 0; i < 500; i++ {
		j := w.Jitter(rng)
		require.GreaterOrEqual(t, j, 0.9)
		require.Less(t, j, 1.1)
	}
}

func TestEventWindow_IdentityOutside(t *testing.T) {
	hit := EventWindow{
		Window:  Window{Name: "algorithm hit", Start: Date(2024, 3, 1), End: Date(2024, 6, 30)},
		Keys:    []string{"Organic Search"},
		Effects: map[Metric]Shape{Volume: Constant(0.65), Rate: Constant(0.85)},
	}

	assert.Equal(t, 1.0, hit.Factor(Date(2024, 2, 29), "Organic Search", Volume))
	assert.Equal(t, 0.65, hit.Factor(Date(2024, 3, 1), "Organic Search", Volume))
	assert.Equal(t, 0.65, hit.Factor(Date(2024, 6, 30), "Organic Search", Volume))
	assert.Equal(t, 1.0, hit.Factor(Date(2024, 7, 1), "Organic Search", Volume))
	assert.Equal(t, 1.0, hit.Factor(Date(2024, 4, 1), "Paid Search", Volume))
	assert.Equal(t, 1.0, hit.Factor(Date(2024, 4, 1), "Organic Search", Spend))
}

func TestEventWindow_RampInterpolates(t *testing.T) {
	recovery := EventWindow{
		Window:  Window{Start: Date(2024, 7, 1), End: Date(2024, 10, 31)},
		Effects: map[Metric]Shape{Volume: Ramp{From: 0.65, To: 0.95}},
	}
	span := float64(DaysBetween(recovery.Start, recovery.End))

	assert.InDelta(t, 0.65, recovery.Factor(Date(2024, 7, 1), "x", Volume), 1e-12)
	assert.InDelta(t, 0.95, recovery.Factor(Date(2024, 10, 31), "x", Volume), 1e-12)
	mid := Date(2024, 7, 1).AddDate(0, 0, 61)
	assert.InDelta(t, 0.65+0.30*61/span, recovery.Factor(mid, "x", Volume), 1e-12)
}

func TestEventWindow_OpenEndedShapes(t *testing.T) {
	launch := EventWindow{
		Window: Window{Start: Date(2023, 10, 1)},
		Effects: map[Metric]Shape{
			Volume: Logistic{K: 0.01, Midpoint: 180, Lift: 1},
			Rate:   Logistic{K: 0.01, Midpoint: 180, Base: 1, Lift: 0.1},
		},
	}
	at := Date(2023, 10, 1).AddDate(0, 0, 180)
	assert.InDelta(t, 0.5, launch.Factor(at, "c", Volume), 1e-12)
	assert.InDelta(t, 1.05, launch.Factor(at, "c", Rate), 1e-12)

	decline := Decline{Rate: 0.0005, Floor: 0.5}
	assert.InDelta(t, 0.95, decline.At(100, 0), 1e-12)
	assert.Equal(t, 0.5, decline.At(5000, 0))
}

func TestEngine_OverlappingEventsMultiplyInOrder(t *testing.T) {
	e := Engine{
		Events: []EventWindow{
			{Window: Window{Start: Date(2024, 1, 1), End: Date(2024, 1, 31)}, Effects: map[Metric]Shape{Rate: Constant(0.5)}},
			{Window: Window{Start: Date(2024, 1, 15), End: Date(2024, 2, 15)}, Effects: map[Metric]Shape{Rate: Constant(0.8)}},
		},
	}

	assert.InDelta(t, 0.5, e.Factor(Date(2024, 1, 10), "k", Rate), 1e-12)
	assert.InDelta(t, 0.4, e.Factor(Date(2024, 1, 20), "k", Rate), 1e-12)
	assert.InDelta(t, 0.8, e.Factor(Date(2024, 2, 10), "k", Rate), 1e-12)
}

func TestEngine_CalendarScalesVolumeOnly(t *testing.T) {
	e := Engine{
		Trend:       Trend{Kind: CompoundTrend, Origin: Date(2023, 1, 1), DailyGrowth: 0.01},
		Seasonality: Seasonality{Amplitude: 0.1},
		Weekly:      Weekly{Saturday: 0.5},
	}
	date := Date(2023, 1, 7) // Saturday

	want := math.Pow(1.01, 6) * (1 + 0.1*math.Sin(2*math.Pi*7/365.25)) * 0.5
	assert.InDelta(t, want, e.Factor(date, "k", Volume), 1e-12)
	assert.Equal(t, 1.0, e.Factor(date, "k", Rate))

	mod := Combine(Mod(1.1, 0.9, 0.95), Mod(0.8, 2.5, 1.5))
	assert.InDelta(t, 100*want*0.88, e.Evaluate(100, date, "k", Volume, mod), 1e-9)
	assert.InDelta(t, 0.05*2.25, e.Evaluate(0.05, date, "k", Rate, mod), 1e-12)
}

func TestApplyNoise_ClampsAfterNoise(t *testing.T) {
	rng := randstream.New(4)
	hitFloor := false
	for i := 0; i < 2000; i++ {
		v := ApplyNoise(rng, 1, 2, 0)
		require.GreaterOrEqual(t, v, 0.0)
		if v == 0 {
			hitFloor = true
		}
	}
	assert.True(t, hitFloor, "large noise must be able to reach the floor")
	assert.Equal(t, 5.0, ApplyNoise(rng, 5, 0, 0))
}

func TestQuarterRates_At(t *testing.T) {
	rates := QuarterRates{
		Base: 0.07,
		Overrides: map[YearQuarter]float64{
			{2024, 1}: 0.065,
			{2025, 1}: 0.059,
		},
	}

	assert.Equal(t, 0.065, rates.At(Date(2024, 2, 10)))
	assert.Equal(t, 0.07, rates.At(Date(2024, 4, 1)))
	assert.Equal(t, 0.059, rates.At(Date(2025, 3, 31)))
	assert.Equal(t, 0.07, rates.At(Date(2030, 1, 1)), "years outside the table use the base rate")
	assert.Equal(t, "2024Q3", QuarterOf(Date(2024, 9, 30)).String())
}

func TestEachDay(t *testing.T) {
	var days []time.Time
	EachDay(Date(2024, 2, 27), Date(2024, 3, 1), func(d time.Time, i int) bool {
		days = append(days, d)
		return true
	})
	require.Len(t, days, 4)
	assert.Equal(t, Date(2024, 2, 29), days[2])

	count := 0
	EachDay(Date(2024, 1, 1), Date(2024, 12, 31), func(time.Time, int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}
