package marketing

import (
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/finalize"
	"github.com/ekaya-inc/ekaya-datagen/pkg/funnel"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

const baselineCampaign = "Organic/Baseline"

// Funnel stage names, also used as column names.
const (
	StageClicks        = "Clicks"
	StageLeads         = "Leads"
	StageMQLs          = "MQLs"
	StageSQLs          = "SQLs"
	StageOpportunities = "Opportunities"
	StageWins          = "Wins"
)

// row is one day of one channel in one region.
type row struct {
	Date          time.Time
	Channel       string
	Region        string
	ProductFocus  string
	Dimensions    []string
	CampaignNames string
	Impressions   int
	Spend         float64
	CTR           float64
	Funnel        funnel.Result
}

func newEngine(cfg Config) temporal.Engine {
	return temporal.Engine{
		Trend:       temporal.Trend{Kind: temporal.CompoundTrend, Origin: cfg.StartDate, DailyGrowth: 0.0005},
		Seasonality: temporal.Seasonality{Amplitude: 0.15, PhaseDays: 75},
		Weekly:      temporal.Weekly{Saturday: 0.85, Sunday: 0.80},
		Events:      storyEvents,
	}
}

// productFocus rotates the product a row promotes by day, stable per
// channel and region.
func productFocus(dayIndex int, channel, region string) string {
	h := fnv.New32a()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(region))
	return products[(uint64(dayIndex)+uint64(h.Sum32()))%uint64(len(products))]
}

// newRow computes one row. ok is false when the row has no activity.
func newRow(rng *randstream.Stream, engine temporal.Engine, campaigns []Campaign, cfg Config,
	day time.Time, dayIndex int, ch channel, reg region) (row, bool) {
	r := row{
		Date:         day,
		Channel:      ch.Name,
		Region:       reg.Name,
		ProductFocus: productFocus(dayIndex, ch.Name, reg.Name),
		Dimensions:   make([]string, len(dimensions)),
	}

	mods := make([]temporal.Modifier, len(dimensions))
	for i, d := range dimensions {
		r.Dimensions[i], mods[i] = d.draw(rng, ch.Name)
	}
	mod := temporal.Combine(mods...)

	impressions := engine.Evaluate(ch.Impressions, day, ch.Name, temporal.Volume, mod) * reg.Factor
	ctr := engine.Evaluate(ch.CTR, day, ch.Name, temporal.Rate, mod)
	spendFactor := ch.SpendFactor * mod.Spend

	camp := activeCampaigns(campaigns, day, ch.Name, r.ProductFocus)
	r.CampaignNames = baselineCampaign
	if len(camp.Names) > 0 {
		r.CampaignNames = strings.Join(camp.Names, "; ")
	}
	impressions *= camp.ImpMult
	ctr += camp.CTRAbs

	spend := impressions*spendFactor + camp.SpendAbs
	if ch.SpendFactor == 0 && camp.SpendAbs == 0 {
		spend = 0
	}

	r.Impressions = int(math.Max(0, impressions*(1+rng.Normal(0, cfg.Noise.Impressions))))
	r.CTR = temporal.ApplyNoise(rng, ctr, cfg.Noise.CTR, cfg.CTRFloor)
	r.Spend = math.Max(0, finalize.Round(spend*(1+rng.Normal(0, cfg.Noise.Spend)), finalize.MoneyScale))

	clicks := int(math.Min(float64(r.Impressions), math.Max(0, math.Floor(float64(r.Impressions)*r.CTR))))
	r.Funnel = funnel.Evaluate(rng, StageClicks, clicks, funnelStages(cfg.Rates, mod.Conv, camp.LeadMult))

	return r, r.Impressions > 0 || r.Spend > 0
}

// funnelStages builds the post-click chain. conv is the combined dimension
// conversion modifier; leadMult applies to the lead stage only.
func funnelStages(rates ConversionRates, conv, leadMult float64) []funnel.Stage {
	return []funnel.Stage{
		funnel.NewStage(StageLeads, rates.LeadFromClick, 0.06).WithModifier(conv * leadMult),
		funnel.NewStage(StageMQLs, rates.MQLFromLead, 0.07).WithModifier(conv),
		funnel.NewStage(StageSQLs, rates.SQLFromMQL, 0.08).WithModifier(conv),
		funnel.NewStage(StageOpportunities, rates.OppFromSQL, 0.09).WithModifier(conv),
		funnel.NewStage(StageWins, rates.WinFromOpp, 0.10).WithModifier(conv),
	}
}
