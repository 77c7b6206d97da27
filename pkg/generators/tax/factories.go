package tax

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/finalize"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

const (
	CustomerNew       = "New"
	CustomerReturning = "Returning"

	ComplexitySimple   = "Simple"
	ComplexityModerate = "Moderate"
	ComplexityComplex  = "Complex"

	StatusHeadOfHousehold = "Head of Household"

	LeadPriorCustomer = "Prior_Customer"

	minServiceFee  = 40.00
	minAGI         = 1000
	peakShare      = 0.7
	localCustomers = 0.8
)

var locationTypes = []randstream.Weighted[string]{
	{Value: "Franchise", Weight: 0.6},
	{Value: "Corporate", Weight: 0.3},
	{Value: "Retail Kiosk", Weight: 0.1},
}

var filingStatuses = []randstream.Weighted[string]{
	{Value: "Single", Weight: 0.35},
	{Value: "Married Filing Jointly", Weight: 0.35},
	{Value: StatusHeadOfHousehold, Weight: 0.25},
	{Value: "Married Filing Separately", Weight: 0.05},
}

// newLeadSources excludes Prior_Customer, which only returning customers get.
var newLeadSources = []randstream.Weighted[string]{
	{Value: "Walk-In", Weight: 0.30},
	{Value: "Website", Weight: 0.30},
	{Value: "Referral", Weight: 0.15},
	{Value: "Mailer", Weight: 0.15},
	{Value: "Social_Media_Ad", Weight: 0.10},
}

// ============================================================================
// Locations
// ============================================================================

type location struct {
	ID     string
	Name   string
	City   string
	State  string
	Zip    string
	Region string
	Type   string
	Target int
}

// locationIDs numbers offices per state and city abbreviation, so every ID
// it returns is distinct.
type locationIDs struct {
	counters map[string]int
}

func newLocationIDs() *locationIDs {
	return &locationIDs{counters: make(map[string]int)}
}

// next returns "LOC-{ST}-{CITY5}-{NN}" and the office number within the city.
func (l *locationIDs) next(state, city string) (string, int) {
	abbr := cityAbbr(city)
	key := state + "-" + abbr
	l.counters[key]++
	n := l.counters[key]
	return fmt.Sprintf("LOC-%s-%s-%02d", state, abbr, n), n
}

func cityAbbr(city string) string {
	s := strings.ToUpper(strings.ReplaceAll(city, " ", ""))
	if len(s) > 5 {
		s = s[:5]
	}
	return s
}

func zipCode(rng *randstream.Stream) string {
	return strconv.Itoa(rng.Int(10000, 99999))
}

func newLocation(rng *randstream.Stream, ids *locationIDs, states []string) location {
	state := randstream.Choice(rng, states)
	city := randstream.Choice(rng, statesCities[state])
	id, n := ids.next(state, city)
	return location{
		ID:     id,
		Name:   fmt.Sprintf("%s #%d", city, n),
		City:   city,
		State:  state,
		Zip:    zipCode(rng),
		Region: RegionOf(state),
		Type:   randstream.Pick(rng, locationTypes),
		Target: rng.Int(500, 5000),
	}
}

// ============================================================================
// Customers
// ============================================================================

// customerRegistry remembers the first tax year each customer filed. A
// customer is proxied by zip code and birth year.
type customerRegistry struct {
	firstYear      map[string]int
	returningRatio float64
}

func newCustomerRegistry(returningRatio float64) *customerRegistry {
	return &customerRegistry{firstYear: make(map[string]int), returningRatio: returningRatio}
}

// classify returns New or Returning for a filing of key in year. A customer
// seen for the first time is carried over from the prior year with
// probability returningRatio.
func (c *customerRegistry) classify(rng *randstream.Stream, key string, year int) string {
	first, seen := c.firstYear[key]
	switch {
	case !seen:
		if rng.Bool(c.returningRatio) {
			c.firstYear[key] = year - 1
			return CustomerReturning
		}
		c.firstYear[key] = year
		return CustomerNew
	case year == first:
		return CustomerNew
	default:
		return CustomerReturning
	}
}

func (c *customerRegistry) size() int { return len(c.firstYear) }

// ============================================================================
// Filings
// ============================================================================

type filing struct {
	ID            string
	LocationID    string
	Date          time.Time
	TaxYear       int
	ServiceFee    float64
	Status        string
	AGI           int
	RefundOwed    float64
	ScheduleC     bool
	Complexity    string
	CustomerZip   string
	CustomerState string
	CustomerType  string
	LeadSource    string
}

// filingID is "F{yy}-{NNNNNN}" where yy is the filing season year.
func filingID(taxYear, seq int) string {
	return fmt.Sprintf("F%02d-%06d", (taxYear+1)%100, seq)
}

// filingDate draws a day from January 1 to April 15 of the year after
// taxYear, never after current. Most filings land after February 1.
func filingDate(rng *randstream.Stream, taxYear int, current time.Time) time.Time {
	season := taxYear + 1
	start := temporal.Date(season, time.January, 1)
	end := temporal.ClampTime(temporal.Date(season, time.April, 15), temporal.TruncateDay(current))
	if start.After(end) {
		return end
	}

	date := rng.Day(start, end)
	if rng.Bool(peakShare) {
		peak := temporal.Date(season, time.February, 1)
		if peak.After(start) && peak.Before(end) {
			date = rng.Day(peak, end)
		}
	}
	return date
}

// drawAGI is lognormal income rounded to the nearest hundred, at least 1,000.
func drawAGI(rng *randstream.Stream, c Complexity) int {
	agi := math.Round(rng.LogNormal(c.AGIMu, c.AGISigma)/100) * 100
	return int(math.Max(minAGI, agi))
}

func complexityOf(agi int, scheduleC bool) string {
	switch {
	case scheduleC || agi > 150000:
		return ComplexityComplex
	case agi < 40000:
		return ComplexitySimple
	default:
		return ComplexityModerate
	}
}

func serviceFee(rng *randstream.Stream, complexity string, agi int) float64 {
	var base float64
	switch complexity {
	case ComplexitySimple:
		base = rng.Uniform(50, 150)
	case ComplexityModerate:
		base = rng.Uniform(150, 350)
	default:
		base = rng.Uniform(350, 700)
	}
	fee := finalize.Round(base+float64(agi)*0.001+rng.Uniform(-20, 20), 2)
	return math.Max(minServiceFee, fee)
}

// refundOrOwed is positive for a refund and negative for an amount owed.
// Heads of household and low incomes lean toward refunds; high incomes and
// the self-employed toward owing.
func refundOrOwed(rng *randstream.Stream, status string, agi int, scheduleC bool) float64 {
	income := float64(agi)
	chance := 0.6
	if status == StatusHeadOfHousehold {
		chance += 0.15
	}
	if agi < 30000 {
		chance += 0.1
	}
	if agi > 100000 {
		chance -= 0.2
	}
	if scheduleC {
		chance -= 0.1
	}

	if rng.Bool(chance) {
		maxRefund := 1000 + (50000/math.Max(10000, income))*2000
		if status == StatusHeadOfHousehold {
			maxRefund *= 1.5
		}
		return finalize.Round(rng.Uniform(100, math.Max(500, maxRefund)), 2)
	}
	maxOwed := 500 + (income/150000)*5000
	return finalize.Round(rng.Uniform(-math.Max(200, maxOwed), -50), 2)
}

// newFiling draws one filing against the location roster, which the caller
// guarantees is non-empty.
func newFiling(rng *randstream.Stream, seq int, roster []location, customers *customerRegistry, cfg Config) filing {
	year := randstream.Choice(rng, cfg.TaxYears)
	f := filing{
		ID:      filingID(year, seq),
		TaxYear: year,
		Date:    filingDate(rng, year, cfg.CurrentDate),
	}

	loc := randstream.Choice(rng, roster)
	f.LocationID = loc.ID

	f.CustomerState = loc.State
	if !rng.Bool(localCustomers) {
		f.CustomerState = randstream.Choice(rng, cfg.States)
	}
	f.CustomerZip = zipCode(rng)
	birthYear := rng.Int(1940, 2005)
	f.CustomerType = customers.classify(rng, fmt.Sprintf("%s-%d", f.CustomerZip, birthYear), year)

	f.AGI = drawAGI(rng, cfg.Complexity)
	f.Status = randstream.Pick(rng, filingStatuses)

	scheduleCProb := cfg.Complexity.ScheduleCBase
	if f.AGI > 20000 && f.AGI < 100000 {
		scheduleCProb += cfg.Complexity.ScheduleCMid
	}
	f.ScheduleC = rng.Bool(scheduleCProb)
	f.Complexity = complexityOf(f.AGI, f.ScheduleC)
	f.ServiceFee = serviceFee(rng, f.Complexity, f.AGI)
	f.RefundOwed = refundOrOwed(rng, f.Status, f.AGI, f.ScheduleC)

	if f.CustomerType == CustomerReturning && rng.Bool(0.8) {
		f.LeadSource = LeadPriorCustomer
	} else {
		f.LeadSource = randstream.Pick(rng, newLeadSources)
	}
	return f
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
