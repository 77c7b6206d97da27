package temporal

import (
	"fmt"
	"time"
)

// YearQuarter identifies a calendar quarter.
type YearQuarter struct {
	Year    int
	Quarter int
}

func QuarterOf(date time.Time) YearQuarter {
	return YearQuarter{Year: date.Year(), Quarter: (int(date.Month())-1)/3 + 1}
}

func (q YearQuarter) String() string {
	return fmt.Sprintf("%dQ%d", q.Year, q.Quarter)
}

// QuarterRates looks rates up by calendar quarter. Quarters without an
// override use Base.
type QuarterRates struct {
	Base      float64
	Overrides map[YearQuarter]float64
}

func (r QuarterRates) At(date time.Time) float64 {
	if v, ok := r.Overrides[QuarterOf(date)]; ok {
		return v
	}
	return r.Base
}
