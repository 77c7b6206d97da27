package tax

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Key identifies the generator in the registry.
const Key = "tax_data"

// Complexity shapes the income distribution and self-employment rate that
// return complexity is derived from.
type Complexity struct {
	AGIMu    float64 `validate:"gt=0"`
	AGISigma float64 `validate:"gt=0"`

	// ScheduleCBase is the Schedule C probability; ScheduleCMid is added for
	// incomes strictly between 20,000 and 100,000.
	ScheduleCBase float64 `validate:"gte=0,lte=1"`
	ScheduleCMid  float64 `validate:"gte=0,lte=1"`
}

// ComplexityBias presets.
var ComplexityBias = map[string]Complexity{
	"Balanced":     {AGIMu: 10.5, AGISigma: 0.6, ScheduleCBase: 0.10, ScheduleCMid: 0.20},
	"More Simple":  {AGIMu: 9.8, AGISigma: 0.5, ScheduleCBase: 0.05, ScheduleCMid: 0.10},
	"More Complex": {AGIMu: 11.2, AGISigma: 0.7, ScheduleCBase: 0.20, ScheduleCMid: 0.30},
}

var complexityBiasOptions = []string{"Balanced", "More Simple", "More Complex"}

// TaxYears presets.
var TaxYears = map[string][]int{
	"2022-2024": {2022, 2023, 2024},
	"2021-2023": {2021, 2022, 2023},
	"2023-2025": {2023, 2024, 2025},
	"2022-2025": {2022, 2023, 2024, 2025},
}

var taxYearOptions = []string{"2022-2024", "2021-2023", "2023-2025", "2022-2025"}

// Config is the immutable configuration of one tax data run.
type Config struct {
	NumLocations int `param:"num_locations" validate:"gte=0,lte=500"`
	NumFilings   int `param:"num_filings" validate:"gte=0,lte=200000"`

	// CurrentDate caps filing dates; no filing is dated after it.
	CurrentDate time.Time  `param:"current_date" validate:"required"`
	TaxYears    []int      `param:"tax_years" validate:"min=1,dive,gte=1990,lte=2100"`
	States      []string   `param:"region_focus" validate:"min=1,dive,len=2"`
	Complexity  Complexity `param:"complexity_bias"`

	// ReturningRatio is the chance a customer seen for the first time is
	// treated as carried over from the prior tax year.
	ReturningRatio float64 `param:"customer_type_ratio" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	return Config{
		NumLocations:   150,
		NumFilings:     50000,
		CurrentDate:    temporal.Date(2025, time.April, 1),
		TaxYears:       TaxYears["2022-2024"],
		States:         RegionFocus["All Regions"],
		Complexity:     ComplexityBias["Balanced"],
		ReturningRatio: 0.5,
	}
}

func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Integer("num_locations", "Number of Locations", 50, 500, def.NumLocations).
			WithHelp("Number of tax service locations to generate"),
		params.Integer("num_filings", "Number of Filings", 1000, 200000, def.NumFilings).
			WithHelp("Total number of tax filings to generate"),
		params.Date("current_date", "Current Date", def.CurrentDate).
			WithHelp("No filing is dated after this day"),
		params.Choice("tax_years", "Tax Years Range", taxYearOptions, "2022-2024"),
		params.Choice("region_focus", "Region Focus", regionFocusOptions, "All Regions"),
		params.Choice("complexity_bias", "Complexity Bias", complexityBiasOptions, "Balanced"),
		params.Number("customer_type_ratio", "Returning Customer Ratio (%)", 20, 80, def.ReturningRatio*100).
			WithHelp("Approximate percentage of returning customers"),
	}
}

func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.NumLocations = v.Int("num_locations")
	cfg.NumFilings = v.Int("num_filings")
	cfg.CurrentDate = v.Date("current_date")
	cfg.TaxYears = TaxYears[v.String("tax_years")]
	cfg.States = RegionFocus[v.String("region_focus")]
	cfg.Complexity = ComplexityBias[v.String("complexity_bias")]
	cfg.ReturningRatio = v.Float("customer_type_ratio") / 100
	return cfg
}

// Validate also requires every tax year's filing season to have opened by
// CurrentDate, so filing dates can be drawn without passing it.
func (c Config) Validate() error {
	if err := params.ValidateStruct(c); err != nil {
		return err
	}
	for _, state := range c.States {
		if _, ok := statesCities[state]; !ok {
			return apperrors.NewConfigurationError("region_focus", "state %q is not served", state)
		}
	}
	for _, year := range c.TaxYears {
		if opens := temporal.Date(year+1, time.January, 1); opens.After(c.CurrentDate) {
			return apperrors.NewConfigurationError("tax_years",
				"filing season for tax year %d opens %s, after current date %s",
				year, opens.Format(params.DateLayout), c.CurrentDate.Format(params.DateLayout))
		}
	}
	return nil
}
