package loanrisk

import (
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// Key identifies the generator in the registry.
const Key = "loan_risk"

var (
	companyPrefixes = []string{"Global", "Inter", "Trans", "Meta", "Apex", "Neo", "Cyber", "Tech"}
	companySuffixes = []string{"Corp", "Systems", "Solutions", "Dynamics", "Industries", "Group", "Holdings"}
	industries      = []string{"Technology", "Finance", "Healthcare", "Manufacturing", "Energy", "Retail", "Logistics"}
	countries       = []string{"USA", "UK", "Germany", "France", "Japan", "Singapore", "Australia", "Canada"}
)

// Drift is the monthly pull on a company's risk score: Early applies to the
// first seven months, Late to the rest.
type Drift struct {
	Early int
	Late  int
}

// RiskTrend presets.
var RiskTrend = map[string]Drift{
	"Default":    {Early: 2, Late: -3},
	"Stable":     {Early: 0, Late: 0},
	"Increasing": {Early: 3, Late: 1},
	"Decreasing": {Early: -1, Late: -4},
}

var riskTrendOptions = []string{"Default", "Stable", "Increasing", "Decreasing"}

// Config is the immutable configuration of one loan and risk run.
type Config struct {
	NumCompanies      int                           `param:"num_companies" validate:"gte=0,lte=10000"`
	Industries        []randstream.Weighted[string] `param:"industry_focus" validate:"min=1"`
	Drift             Drift                         `param:"risk_trend" validate:"-"`
	IncludeHistorical bool                          `param:"include_historical"`
	IncludeNetwork    bool                          `param:"include_network"`
	MinConnections    int                           `param:"min_connections" validate:"gte=0,ltefield=MaxConnections"`
	MaxConnections    int                           `param:"max_connections" validate:"gte=0,lte=50"`
}

func DefaultConfig() Config {
	return Config{
		NumCompanies:      50,
		Industries:        industryWeights(""),
		Drift:             RiskTrend["Default"],
		IncludeHistorical: true,
		IncludeNetwork:    true,
		MinConnections:    2,
		MaxConnections:    5,
	}
}

// industryWeights spreads draws evenly, or gives focus sixty percent of
// the mass when it names an industry.
func industryWeights(focus string) []randstream.Weighted[string] {
	out := make([]randstream.Weighted[string], len(industries))
	for i, ind := range industries {
		w := 1.0
		if focus != "" {
			w = 0.4 / float64(len(industries)-1)
			if ind == focus {
				w = 0.6
			}
		}
		out[i] = randstream.Weighted[string]{Value: ind, Weight: w}
	}
	return out
}

const allIndustries = "All Industries"

func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Integer("num_companies", "Number of Companies", 10, 500, def.NumCompanies),
		params.Choice("industry_focus", "Industry Focus", append([]string{allIndustries}, industries...), allIndustries),
		params.Choice("risk_trend", "Risk Trend", riskTrendOptions, "Default").
			WithHelp("Monthly drift of risk scores across the year"),
		params.Bool("include_historical", "Include Historical Risk", def.IncludeHistorical),
		params.Bool("include_network", "Include Network Connections", def.IncludeNetwork),
	}
}

func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.NumCompanies = v.Int("num_companies")
	if focus := v.String("industry_focus"); focus != allIndustries {
		cfg.Industries = industryWeights(focus)
	}
	cfg.Drift = RiskTrend[v.String("risk_trend")]
	cfg.IncludeHistorical = v.Bool("include_historical")
	cfg.IncludeNetwork = v.Bool("include_network")
	return cfg
}

func (c Config) Validate() error {
	return params.ValidateStruct(c)
}
