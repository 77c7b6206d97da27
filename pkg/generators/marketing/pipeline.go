// Package marketing simulates a daily B2B marketing funnel per channel and
// region: impressions and spend shaped by trend, seasonality, story events
// and campaigns, narrowed through clicks to wins.
package marketing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

const TableFunnel = "marketing_funnel_data"

var info = generators.Info{
	Key:         Key,
	DisplayName: "Marketing Funnel",
	Description: "Daily marketing funnel by channel and region with campaigns, channel launches and dimension breakdowns",
}

// Generator produces the marketing funnel dataset.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

var _ generators.Generator = (*Generator)(nil)

func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger.Named(Key)}, nil
}

func (g *Generator) Info() generators.Info { return info }

func (g *Generator) Generate(ctx context.Context, rng *randstream.Stream) (*models.Dataset, error) {
	ds := models.NewDataset(Key, rng.Seed())
	r := &run{cfg: g.cfg, rng: rng, logger: g.logger}

	err := assembler.New(ds, g.logger).
		Stage("funnel_rows", r.buildRows).
		Run(ctx)
	return generators.Finish(ds, err)
}

type run struct {
	cfg    Config
	rng    *randstream.Stream
	logger *zap.Logger
}

// campaigns returns the campaign list honouring the future toggle.
func (r *run) campaigns() []Campaign {
	if r.cfg.IncludeFutureCampaigns {
		return Campaigns
	}
	out := make([]Campaign, 0, len(Campaigns))
	for _, c := range Campaigns {
		if !c.Future() {
			out = append(out, c)
		}
	}
	return out
}

func (r *run) buildRows(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("funnel_rows")
	engine := newEngine(r.cfg)
	campaigns := r.campaigns()

	cols := []models.Column{
		models.Col("Date", models.ColumnTypeDate),
		models.Col("Channel", models.ColumnTypeString),
		models.Col("Region", models.ColumnTypeString),
		models.Col("ProductFocus", models.ColumnTypeString),
	}
	for _, d := range dimensions {
		cols = append(cols, models.Col(d.Column, models.ColumnTypeString))
	}
	cols = append(cols,
		models.Col("CampaignNames", models.ColumnTypeString),
		models.Col("Impressions", models.ColumnTypeInt),
		models.Col(StageClicks, models.ColumnTypeInt),
		models.Col("Spend", models.ColumnTypeMoney),
		models.Col(StageLeads, models.ColumnTypeInt),
		models.Col(StageMQLs, models.ColumnTypeInt),
		models.Col(StageSQLs, models.ColumnTypeInt),
		models.Col(StageOpportunities, models.ColumnTypeInt),
		models.Col(StageWins, models.ColumnTypeInt),
		models.FloatCol("CTR", 5),
	)
	t := models.NewTable(TableFunnel, cols...).SortBy("Date")

	var cancelled error
	temporal.EachDay(r.cfg.StartDate, r.cfg.EndDate, func(day time.Time, index int) bool {
		if index%30 == 0 {
			if cancelled = ctx.Err(); cancelled != nil {
				return false
			}
		}
		for _, name := range r.cfg.Channels {
			ch := channels[name]
			if !ch.live(day) {
				continue
			}
			for _, reg := range regions {
				row, ok := newRow(rng, engine, campaigns, r.cfg, day, index, ch, reg)
				if !ok {
					continue
				}
				t.Append(row.values()...)
			}
		}
		return true
	})
	if cancelled != nil {
		return cancelled
	}
	ds.Add(t)

	r.logger.Debug("Generated funnel rows",
		zap.Int("rows", t.Len()),
		zap.Int("campaigns", len(campaigns)))
	return nil
}

func (r row) values() []any {
	out := []any{r.Date, r.Channel, r.Region, r.ProductFocus}
	for _, d := range r.Dimensions {
		out = append(out, d)
	}
	return append(out,
		r.CampaignNames,
		r.Impressions,
		r.Funnel.Count(StageClicks),
		r.Spend,
		r.Funnel.Count(StageLeads),
		r.Funnel.Count(StageMQLs),
		r.Funnel.Count(StageSQLs),
		r.Funnel.Count(StageOpportunities),
		r.Funnel.Count(StageWins),
		r.CTR,
	)
}
