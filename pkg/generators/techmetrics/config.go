package techmetrics

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Key identifies the generator in the registry.
const Key = "tech_metrics"

// Reference is the "today" of the dataset. The window spans three years
// before it and one year after.
var Reference = temporal.Date(2025, time.May, 12)

const (
	// launchLeadDays keeps every launch at least this far before Reference.
	launchLeadDays = 60
	// eventMarginDays keeps product events away from the window edges.
	eventMarginDays = 30
)

// Config is the immutable configuration of one tech metrics run.
type Config struct {
	StartDate    time.Time `param:"start_date" validate:"required"`
	EndDate      time.Time `param:"end_date" validate:"required,gtfield=StartDate"`
	NumProducts  int       `param:"num_products" validate:"gte=0,lte=100"`
	NumTeams     int       `param:"num_teams" validate:"gte=0,lte=50"`
	NumCampaigns int       `param:"num_campaigns" validate:"gte=0,lte=100"`
	NumCustomers int       `param:"num_customers" validate:"gte=0,lte=50000"`
}

func DefaultConfig() Config {
	return Config{
		StartDate:    Reference.AddDate(0, 0, -3*365),
		EndDate:      Reference.AddDate(0, 0, 365),
		NumProducts:  15,
		NumTeams:     10,
		NumCampaigns: 10,
		NumCustomers: 5000,
	}
}

func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Integer("num_products", "Number of Products", 1, 100, def.NumProducts).
			WithHelp("Number of unique products to generate"),
		params.Integer("num_teams", "Number of Teams", 1, 50, def.NumTeams).
			WithHelp("Number of development teams"),
		params.Integer("num_campaigns", "Number of Campaigns", 1, 100, def.NumCampaigns).
			WithHelp("Number of marketing campaigns"),
		params.Integer("num_customers", "Number of Customers", 100, 50000, def.NumCustomers).
			WithHelp("Number of unique customers"),
	}
}

func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.NumProducts = v.Int("num_products")
	cfg.NumTeams = v.Int("num_teams")
	cfg.NumCampaigns = v.Int("num_campaigns")
	cfg.NumCustomers = v.Int("num_customers")
	return cfg
}

func (c Config) Validate() error {
	return params.ValidateStruct(c)
}

// days counts the days from StartDate to EndDate.
func (c Config) days() int {
	return temporal.DaysBetween(c.StartDate, c.EndDate)
}
