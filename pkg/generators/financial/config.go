package financial

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Key identifies the generator in the registry.
const Key = "financial_statements"

const (
	CategorySupplies   = "Supplies"
	CategoryFurniture  = "Furniture"
	CategoryTechnology = "Technology"
	CategoryServices   = "Services"
	CategoryEquipment  = "Equipment"
)

var categories = []string{CategorySupplies, CategoryFurniture, CategoryTechnology, CategoryServices, CategoryEquipment}

var divisions = []string{"North", "South", "East", "West", "Corporate"}

// Band is a uniform range.
type Band struct {
	Min float64
	Max float64
}

func (b Band) draw(rng *randstream.Stream) float64 { return rng.Uniform(b.Min, b.Max) }

// Markups are the price-over-cost bands of the four product families.
type Markups struct {
	Tech        Band
	Furniture   Band
	Consumables Band
	Other       Band
}

// MarginProfile presets.
var MarginProfile = map[string]Markups{
	"Standard": {
		Tech: Band{1.3, 2.0}, Furniture: Band{1.2, 1.6}, Consumables: Band{1.5, 2.2}, Other: Band{1.2, 1.8},
	},
	"High Margin": {
		Tech: Band{1.5, 2.3}, Furniture: Band{1.4, 1.9}, Consumables: Band{1.7, 2.5}, Other: Band{1.4, 2.1},
	},
	"Low Margin": {
		Tech: Band{1.1, 1.5}, Furniture: Band{1.05, 1.3}, Consumables: Band{1.2, 1.7}, Other: Band{1.05, 1.4},
	},
	"Variable": {
		Tech: Band{1.0, 2.5}, Furniture: Band{1.0, 2.0}, Consumables: Band{1.1, 2.8}, Other: Band{1.0, 2.3},
	},
}

var marginProfileOptions = []string{"Standard", "High Margin", "Low Margin", "Variable"}

// Seasonality shapes transaction dates. Candidate days come from a
// triangular draw skewed late in the window and are accepted with a
// probability that depends on the month. Uniform skips all of that.
type Seasonality struct {
	Uniform bool
	Peak    []time.Month
	Trough  []time.Month
}

var (
	q4     = []time.Month{time.October, time.November, time.December}
	q1     = []time.Month{time.January, time.February, time.March}
	summer = []time.Month{time.June, time.July, time.August}
	winter = []time.Month{time.November, time.December, time.January, time.February}
)

// SeasonalityPattern presets.
var SeasonalityPattern = map[string]Seasonality{
	"Standard (Q4 Heavy)": {Peak: q4, Trough: q1},
	"Even Distribution":   {Uniform: true},
	"Summer Peak":         {Peak: summer, Trough: winter},
	"Winter Peak":         {Peak: winter, Trough: summer},
}

var seasonalityOptions = []string{"Standard (Q4 Heavy)", "Even Distribution", "Summer Peak", "Winter Peak"}

// CategoryFocus presets weight the category a new product falls in.
var CategoryFocus = map[string][]float64{
	"All Categories":   {1, 1, 1, 1, 1},
	"Technology Heavy": {0.1, 0.1, 0.6, 0.1, 0.1},
	"Supplies Heavy":   {0.6, 0.1, 0.1, 0.1, 0.1},
	"Furniture Heavy":  {0.1, 0.6, 0.1, 0.1, 0.1},
	"Services Heavy":   {0.1, 0.1, 0.1, 0.6, 0.1},
}

var categoryFocusOptions = []string{"All Categories", "Technology Heavy", "Supplies Heavy", "Furniture Heavy", "Services Heavy"}

const evenDivisions = "Even Distribution"

// DivisionFocus presets replace the category-driven division weights. Even
// Distribution has no entry and keeps them.
var DivisionFocus = map[string][]float64{
	"North Heavy":     {0.4, 0.15, 0.15, 0.15, 0.15},
	"South Heavy":     {0.15, 0.4, 0.15, 0.15, 0.15},
	"East Heavy":      {0.15, 0.15, 0.4, 0.15, 0.15},
	"West Heavy":      {0.15, 0.15, 0.15, 0.4, 0.15},
	"Corporate Heavy": {0.15, 0.15, 0.15, 0.15, 0.4},
}

var divisionFocusOptions = []string{evenDivisions, "North Heavy", "South Heavy", "East Heavy", "West Heavy", "Corporate Heavy"}

// Config is the immutable configuration of one financial statements run.
type Config struct {
	NumTransactions int       `param:"num_transactions" validate:"gte=0,lte=1000000"`
	NumProducts     int       `param:"num_products" validate:"gte=0,lte=10000"`
	NumCustomers    int       `param:"num_customers" validate:"gte=0,lte=100000"`
	StartDate       time.Time `param:"start_date" validate:"required"`
	EndDate         time.Time `param:"end_date" validate:"required,gtefield=StartDate"`

	// CategoryWeights follow the order of the category list.
	CategoryWeights []float64 `param:"category_focus" validate:"len=5,dive,gte=0"`

	// DivisionWeights, when set, apply to every transaction regardless of
	// product category.
	DivisionWeights []float64   `param:"division_focus" validate:"omitempty,len=5,dive,gte=0"`
	Markups         Markups     `param:"margin_profile"`
	Seasonality     Seasonality `param:"seasonality" validate:"-"`
}

func DefaultConfig() Config {
	return Config{
		NumTransactions: 20000,
		NumProducts:     150,
		NumCustomers:    500,
		StartDate:       temporal.Date(2023, time.January, 1),
		EndDate:         temporal.Date(2025, time.December, 31),
		CategoryWeights: CategoryFocus["All Categories"],
		Markups:         MarginProfile["Standard"],
		Seasonality:     SeasonalityPattern["Standard (Q4 Heavy)"],
	}
}

func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Integer("num_transactions", "Number of Transactions", 1000, 100000, def.NumTransactions).
			WithHelp("Total number of sales transactions to generate"),
		params.Integer("num_products", "Number of Products", 50, 1000, def.NumProducts).
			WithHelp("Number of unique products in catalog"),
		params.Integer("num_customers", "Number of Customers", 100, 5000, def.NumCustomers),
		params.Date("start_date", "Start Date", def.StartDate),
		params.Date("end_date", "End Date", def.EndDate),
		params.Choice("category_focus", "Category Focus", categoryFocusOptions, "All Categories").
			WithHelp("Weight products toward specific categories"),
		params.Choice("division_focus", "Division Focus", divisionFocusOptions, evenDivisions),
		params.Choice("margin_profile", "Margin Profile", marginProfileOptions, "Standard").
			WithHelp("Control profit margin patterns in the data"),
		params.Choice("seasonality", "Seasonality Pattern", seasonalityOptions, "Standard (Q4 Heavy)"),
	}
}

func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.NumTransactions = v.Int("num_transactions")
	cfg.NumProducts = v.Int("num_products")
	cfg.NumCustomers = v.Int("num_customers")
	cfg.StartDate = v.Date("start_date")
	cfg.EndDate = v.Date("end_date")
	cfg.CategoryWeights = CategoryFocus[v.String("category_focus")]
	cfg.DivisionWeights = DivisionFocus[v.String("division_focus")]
	cfg.Markups = MarginProfile[v.String("margin_profile")]
	cfg.Seasonality = SeasonalityPattern[v.String("seasonality")]
	return cfg
}

func (c Config) Validate() error {
	if err := params.ValidateStruct(c); err != nil {
		return err
	}
	bands := []struct {
		name string
		band Band
	}{
		{"tech", c.Markups.Tech},
		{"furniture", c.Markups.Furniture},
		{"consumables", c.Markups.Consumables},
		{"other", c.Markups.Other},
	}
	for _, b := range bands {
		if b.band.Min <= 0 || b.band.Max < b.band.Min {
			return apperrors.NewConfigurationError("margin_profile", "%s markup band [%v, %v] is invalid",
				b.name, b.band.Min, b.band.Max)
		}
	}
	return nil
}
