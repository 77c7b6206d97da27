package creditcard

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Key identifies the generator in the registry.
const Key = "credit_card"

const (
	minBalanceForDelinquency = 10.00
	minPaymentFlat           = 25.00
	minPaymentPercent        = 0.02
	snapshotMaturationDays   = 30
	transactionAmountCap     = 7500
)

// Config is the immutable configuration of one credit card run. Rates are
// fractions in [0, 1].
type Config struct {
	StartDate              time.Time             `param:"start_date" validate:"required"`
	EndDate                time.Time             `param:"end_date" validate:"required,gtfield=StartDate"`
	NumCardholders         int                   `param:"num_cardholders" validate:"gte=0,lte=100000"`
	AppsPerDay             int                   `param:"apps_per_day" validate:"gte=0,lte=5000"`
	ApprovalRate           float64               `param:"approval_rate" validate:"gte=0,lte=1"`
	ActivationRate         float64               `param:"activation_rate" validate:"gte=0,lte=1"`
	TransactionsPerAccount int                   `param:"transactions_per_account" validate:"gte=0,lte=500"`
	Delinquency            temporal.QuarterRates `param:"delinquency_trend" validate:"-"`
	States                 []string              `param:"state_focus" validate:"min=1,dive,len=2"`
	CreditLimits           []int                 `param:"credit_limits" validate:"min=1,dive,gt=0"`
}

var allStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

// StateFocus presets restrict the applicant state pool.
var StateFocus = map[string][]string{
	"All States": allStates,
	"West Coast": {"CA", "OR", "WA", "NV", "AZ"},
	"East Coast": {"ME", "NH", "MA", "RI", "CT", "NY", "NJ", "DE", "MD", "VA", "NC", "SC", "GA", "FL"},
	"Midwest":    {"OH", "MI", "IN", "IL", "WI", "MN", "IA", "MO", "ND", "SD", "NE", "KS"},
	"South":      {"TX", "OK", "AR", "LA", "MS", "AL", "TN", "KY", "WV"},
}

var stateFocusOptions = []string{"All States", "West Coast", "East Coast", "Midwest", "South"}

// DelinquencyTrend presets. Default carries the first-quarter improvements
// observed in 2024 through 2026; quarters without an entry use Base.
var DelinquencyTrend = map[string]temporal.QuarterRates{
	"Default": {
		Base: 0.07,
		Overrides: map[temporal.YearQuarter]float64{
			{Year: 2024, Quarter: 1}: 0.065,
			{Year: 2025, Quarter: 1}: 0.059,
			{Year: 2026, Quarter: 1}: 0.055,
		},
	},
	"Stable": {Base: 0.07},
	"Increasing": {
		Base: 0.07,
		Overrides: map[temporal.YearQuarter]float64{
			{Year: 2024, Quarter: 1}: 0.075,
			{Year: 2025, Quarter: 1}: 0.085,
			{Year: 2026, Quarter: 1}: 0.095,
		},
	},
	"Decreasing": {
		Base: 0.07,
		Overrides: map[temporal.YearQuarter]float64{
			{Year: 2024, Quarter: 1}: 0.06,
			{Year: 2025, Quarter: 1}: 0.05,
			{Year: 2026, Quarter: 1}: 0.04,
		},
	},
}

var delinquencyTrendOptions = []string{"Default", "Stable", "Increasing", "Decreasing"}

func DefaultConfig() Config {
	return Config{
		StartDate:              temporal.Date(2023, time.May, 1),
		EndDate:                temporal.Date(2026, time.May, 1),
		NumCardholders:         750,
		AppsPerDay:             30,
		ApprovalRate:           0.55,
		ActivationRate:         0.85,
		TransactionsPerAccount: 5,
		Delinquency:            DelinquencyTrend["Default"],
		States:                 allStates,
		CreditLimits:           []int{500, 1000, 2500, 5000, 7500, 10000, 15000, 20000},
	}
}

// Parameters declares the user-facing knobs. Rates are percentages.
func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Date("start_date", "Start Date", def.StartDate),
		params.Date("end_date", "End Date", def.EndDate),
		params.Integer("num_cardholders", "Number of Cardholders", 100, 5000, def.NumCardholders),
		params.Integer("apps_per_day", "Average Applications per Day", 1, 200, def.AppsPerDay),
		params.Number("approval_rate", "Approval Rate (%)", 0, 100, def.ApprovalRate*100).
			WithHelp("Share of applications approved"),
		params.Number("activation_rate", "Activation Rate (%)", 0, 100, def.ActivationRate*100).
			WithHelp("Share of approved accounts that are activated"),
		params.Integer("transactions_per_account", "Transactions per Activated Account", 1, 50, def.TransactionsPerAccount),
		params.Choice("delinquency_trend", "Delinquency Trend", delinquencyTrendOptions, "Default").
			WithHelp("First-quarter delinquency rates relative to the 7% base"),
		params.Choice("state_focus", "State Focus", stateFocusOptions, "All States"),
	}
}

// FromValues maps resolved parameters onto a Config.
func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.StartDate = v.Date("start_date")
	cfg.EndDate = v.Date("end_date")
	cfg.NumCardholders = v.Int("num_cardholders")
	cfg.AppsPerDay = v.Int("apps_per_day")
	cfg.ApprovalRate = v.Float("approval_rate") / 100
	cfg.ActivationRate = v.Float("activation_rate") / 100
	cfg.TransactionsPerAccount = v.Int("transactions_per_account")
	cfg.Delinquency = DelinquencyTrend[v.String("delinquency_trend")]
	cfg.States = StateFocus[v.String("state_focus")]
	return cfg
}

// Validate checks struct tags and the delinquency table.
func (c Config) Validate() error {
	if err := params.ValidateStruct(c); err != nil {
		return err
	}
	if c.Delinquency.Base < 0 || c.Delinquency.Base > 1 {
		return apperrors.NewConfigurationError("delinquency_trend", "base rate %v outside [0, 1]", c.Delinquency.Base)
	}
	for q, r := range c.Delinquency.Overrides {
		if r < 0 || r > 1 {
			return apperrors.NewConfigurationError("delinquency_trend", "%s rate %v outside [0, 1]", q, r)
		}
	}
	return nil
}
