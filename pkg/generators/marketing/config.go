package marketing

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Key identifies the generator in the registry.
const Key = "marketing"

// Reference is the "today" the storyline is written against: campaigns
// starting after it are future campaigns.
var Reference = temporal.Date(2025, time.May, 12)

const (
	ChannelOrganicSearch = "Organic Search"
	ChannelPaidSearch    = "Paid Search"
	ChannelConnectSphere = "Paid Social - ConnectSphere"
	ChannelPixelVerse    = "Paid Social - PixelVerse"
	ChannelEmail         = "Email Marketing"
	ChannelReferral      = "Referral"
	ChannelDirect        = "Direct"
	ChannelAIContent     = "AI ContentSynergy"
)

// AllChannels in output order.
var AllChannels = []string{
	ChannelOrganicSearch, ChannelPaidSearch, ChannelConnectSphere, ChannelPixelVerse,
	ChannelEmail, ChannelReferral, ChannelDirect, ChannelAIContent,
}

// ChannelFocus presets restrict which channels produce rows.
var ChannelFocus = map[string][]string{
	"All":     AllChannels,
	"Organic": {ChannelOrganicSearch, ChannelReferral, ChannelDirect},
	"Paid":    {ChannelPaidSearch, ChannelConnectSphere, ChannelPixelVerse, ChannelAIContent},
	"Email":   {ChannelEmail},
	"Social":  {ChannelConnectSphere, ChannelPixelVerse},
}

var channelFocusOptions = []string{"All", "Organic", "Paid", "Email", "Social"}

// Noise is the relative standard deviation applied per row.
type Noise struct {
	Impressions float64 `validate:"gte=0"`
	CTR         float64 `validate:"gte=0"`
	Spend       float64 `validate:"gte=0"`
}

// ConversionRates are the base stage rates of the funnel after clicks.
type ConversionRates struct {
	LeadFromClick float64 `validate:"gte=0,lte=1"`
	MQLFromLead   float64 `validate:"gte=0,lte=1"`
	SQLFromMQL    float64 `validate:"gte=0,lte=1"`
	OppFromSQL    float64 `validate:"gte=0,lte=1"`
	WinFromOpp    float64 `validate:"gte=0,lte=1"`
}

// Config is the immutable configuration of one marketing run. The date
// window is inclusive.
type Config struct {
	StartDate              time.Time       `param:"start_date" validate:"required"`
	EndDate                time.Time       `param:"end_date" validate:"required,gtefield=StartDate"`
	Channels               []string        `param:"channel_focus" validate:"min=1,dive,required"`
	IncludeFutureCampaigns bool            `param:"include_future_campaigns"`
	Rates                  ConversionRates `param:"conversion_rates"`
	Noise                  Noise           `param:"noise"`
	CTRFloor               float64         `param:"ctr_floor" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		StartDate:              Reference.AddDate(0, 0, -3*365),
		EndDate:                Reference.AddDate(0, 0, 365-1),
		Channels:               AllChannels,
		IncludeFutureCampaigns: true,
		Rates: ConversionRates{
			LeadFromClick: 0.06,
			MQLFromLead:   0.35,
			SQLFromMQL:    0.45,
			OppFromSQL:    0.55,
			WinFromOpp:    0.30,
		},
		Noise:    Noise{Impressions: 0.08, CTR: 0.05, Spend: 0.10},
		CTRFloor: 0.0001,
	}
}

func Parameters() []params.Spec {
	def := DefaultConfig()
	return []params.Spec{
		params.Date("start_date", "Start Date", def.StartDate),
		params.Date("end_date", "End Date", def.EndDate),
		params.Choice("channel_focus", "Channel Focus", channelFocusOptions, "All"),
		params.Bool("include_future_campaigns", "Include Future Campaigns", def.IncludeFutureCampaigns).
			WithHelp("Include campaigns scheduled after " + Reference.Format(params.DateLayout)),
		params.Number("lead_conversion_rate", "Lead Conversion from Clicks (%)", 0, 100, def.Rates.LeadFromClick*100),
	}
}

func FromValues(v params.Values) Config {
	cfg := DefaultConfig()
	cfg.StartDate = v.Date("start_date")
	cfg.EndDate = v.Date("end_date")
	cfg.Channels = ChannelFocus[v.String("channel_focus")]
	cfg.IncludeFutureCampaigns = v.Bool("include_future_campaigns")
	cfg.Rates.LeadFromClick = v.Float("lead_conversion_rate") / 100
	return cfg
}

func (c Config) Validate() error {
	if err := params.ValidateStruct(c); err != nil {
		return err
	}
	for _, name := range c.Channels {
		if _, ok := channels[name]; !ok {
			return apperrors.NewConfigurationError("channel_focus", "unknown channel %q", name)
		}
	}
	return nil
}
