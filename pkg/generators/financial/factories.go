package financial

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

const (
	ClassConsumables = "Consumables"
	ClassAccessories = "Accessories"
	ClassSoftware    = "Software"
	ClassHardware    = "Hardware"
	ClassServices    = "Services"

	StrategyCore       = "Core Business"
	StrategyGrowth     = "Growth Area"
	StrategyStrategic  = "Strategic Initiative"
	StrategyLegacy     = "Legacy"
	StrategyInnovation = "Innovation"

	// negativeMarginShare of loss-making sales keep their loss; the rest are
	// repriced just above cost.
	negativeMarginShare = 0.05
)

var productClasses = []string{ClassConsumables, "Capital Goods", ClassAccessories, ClassSoftware, ClassHardware, ClassServices}

var strategies = []string{StrategyCore, StrategyGrowth, StrategyStrategic, StrategyLegacy, StrategyInnovation}

var departments = map[string][]string{
	"North":     {"Sales-North-A", "Sales-North-B", "Support-North", "Marketing-North"},
	"South":     {"Sales-South-A", "Sales-South-B", "Support-South", "Marketing-South"},
	"East":      {"Sales-East-A", "Sales-East-B", "Support-East", "Marketing-East"},
	"West":      {"Sales-West-A", "Sales-West-B", "Support-West", "Marketing-West"},
	"Corporate": {"Executive", "Finance", "HR", "Legal", "IT"},
}

// Division weights by product category, in division order.
var (
	techDivisions     = []float64{0.15, 0.15, 0.15, 0.25, 0.3}
	suppliesDivisions = []float64{0.2, 0.2, 0.2, 0.2, 0.2}
	otherDivisions    = []float64{0.25, 0.25, 0.2, 0.2, 0.1}
)

var quantities = []randstream.Weighted[int]{
	{Value: 1, Weight: 0.8},
	{Value: 2, Weight: 0.15},
	{Value: 3, Weight: 0.03},
	{Value: 4, Weight: 0.01},
	{Value: 5, Weight: 0.01},
}

// ============================================================================
// Products
// ============================================================================

type product struct {
	ID        string
	Category  string
	Class     string
	BaseCost  float64
	BasePrice float64
}

func newProduct(rng *randstream.Stream, id string, cfg Config) product {
	p := product{
		ID:       id,
		Category: randstream.WeightedChoice(rng, categories, cfg.CategoryWeights),
		Class:    randstream.Choice(rng, productClasses),
	}

	var cost Band
	var markup Band
	switch {
	case p.Category == CategoryTechnology && (p.Class == ClassSoftware || p.Class == ClassHardware):
		cost, markup = Band{200, 1500}, cfg.Markups.Tech
	case p.Category == CategoryFurniture:
		cost, markup = Band{100, 800}, cfg.Markups.Furniture
	case p.Category == CategorySupplies && p.Class == ClassConsumables:
		cost, markup = Band{10, 100}, cfg.Markups.Consumables
	default:
		cost, markup = Band{50, 300}, cfg.Markups.Other
	}
	p.BaseCost = cost.draw(rng)
	p.BasePrice = p.BaseCost * markup.draw(rng)
	return p
}

// ============================================================================
// Transactions
// ============================================================================

type transaction struct {
	ID         string
	Date       time.Time
	ProductID  string
	CustomerID string
	Sales      decimal.Decimal
	COGS       decimal.Decimal
	Category   string
	Division   string
	Department string
	Class      string
	Strategy   string
}

func (t transaction) profit() decimal.Decimal { return t.Sales.Sub(t.COGS) }

// marginRate is profit over sales; sales are always positive.
func (t transaction) marginRate() float64 {
	return t.profit().Div(t.Sales).InexactFloat64()
}

// transactionDate returns the sale day and its offset into the window.
func transactionDate(rng *randstream.Stream, start, end time.Time, s Seasonality) (time.Time, int) {
	span := temporal.DaysBetween(start, end)
	if s.Uniform {
		days := rng.Int(0, span)
		return start.AddDate(0, 0, days), days
	}
	for {
		days := min(int(rng.Triangular(0, float64(span)*0.6, float64(span))), span)
		date := start.AddDate(0, 0, days)
		if rng.Bool(acceptance(s, date.Month())) {
			return date, days
		}
	}
}

func acceptance(s Seasonality, m time.Month) float64 {
	switch {
	case slices.Contains(s.Peak, m):
		return 0.7
	case slices.Contains(s.Trough, m):
		return 0.3
	default:
		return 0.5
	}
}

func divisionWeights(category string, focus []float64) []float64 {
	switch {
	case focus != nil:
		return focus
	case category == CategoryTechnology:
		return techDivisions
	case category == CategorySupplies:
		return suppliesDivisions
	default:
		return otherDivisions
	}
}

func strategyFor(rng *randstream.Stream, class string) string {
	switch {
	case (class == ClassSoftware || class == ClassServices) && rng.Bool(0.7):
		if rng.Bool(0.6) {
			return StrategyGrowth
		}
		return StrategyStrategic
	case class == ClassConsumables:
		if rng.Bool(0.8) {
			return StrategyCore
		}
		return StrategyLegacy
	case class == ClassHardware && rng.Bool(0.6):
		if rng.Bool(0.4) {
			return StrategyInnovation
		}
		return StrategyStrategic
	default:
		return randstream.Choice(rng, strategies)
	}
}

// trends returns the cost and price multipliers reached after elapsed, the
// fraction of the window gone by. Technology gets cheaper; everything else
// inflates.
func trends(category string, elapsed float64) (cost, price float64) {
	switch category {
	case CategoryTechnology:
		return 1 - elapsed*0.15, 1 - elapsed*0.2
	case CategorySupplies:
		return 1 + elapsed*0.1, 1 + elapsed*0.12
	default:
		return 1 + elapsed*0.08, 1 + elapsed*0.09
	}
}

// bulkDiscount is 2% per unit on multi-unit orders, at most 15%.
func bulkDiscount(quantity int) float64 {
	if quantity <= 1 {
		return 1
	}
	return max(1-float64(quantity)*0.02, 0.85)
}

func money(f float64) decimal.Decimal { return decimal.NewFromFloat(f).Round(2) }

// newTransaction draws one sale. The caller guarantees non-empty product and
// customer rosters.
func newTransaction(rng *randstream.Stream, seq int, catalog []product, customers []string, cfg Config) transaction {
	date, days := transactionDate(rng, cfg.StartDate, cfg.EndDate, cfg.Seasonality)
	p := randstream.Choice(rng, catalog)

	t := transaction{
		ID:        fmt.Sprintf("ORD-%06d", seq),
		Date:      date,
		ProductID: p.ID,
		Category:  p.Category,
		Class:     p.Class,
	}
	t.Division = randstream.WeightedChoice(rng, divisions, divisionWeights(p.Category, cfg.DivisionWeights))
	t.Department = randstream.Choice(rng, departments[t.Division])
	t.Strategy = strategyFor(rng, p.Class)

	var elapsed float64
	if span := temporal.DaysBetween(cfg.StartDate, cfg.EndDate); span > 0 {
		elapsed = float64(days) / float64(span)
	}
	costTrend, priceTrend := trends(p.Category, elapsed)
	cost := p.BaseCost * rng.Uniform(0.95, 1.05) * costTrend
	price := p.BasePrice * rng.Uniform(0.97, 1.08) * priceTrend

	quantity := randstream.Pick(rng, quantities)
	price *= bulkDiscount(quantity)

	t.Sales = money(price * float64(quantity))
	t.COGS = money(cost * float64(quantity))
	if t.COGS.GreaterThan(t.Sales) && !rng.Bool(negativeMarginShare) {
		t.Sales = t.COGS.Mul(decimal.NewFromFloat(rng.Uniform(1.01, 1.1))).Round(2)
	}

	t.CustomerID = randstream.Choice(rng, customers)
	return t
}
