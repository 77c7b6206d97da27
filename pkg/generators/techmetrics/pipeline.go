// Package techmetrics simulates a software portfolio: product, team and
// campaign dimensions, daily product health metrics, and the customer
// feedback and support tickets those metrics drive.
package techmetrics

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

const (
	TableProducts     = "dim_product"
	TableTeams        = "dim_team"
	TableCampaigns    = "dim_campaign"
	TableDailyMetrics = "fact_daily_metrics"
	TableFeedback     = "log_customer_feedback"
	TableTickets      = "log_support_ticket"
)

var info = generators.Info{
	Key:         Key,
	DisplayName: "Tech Product & Project Management",
	Description: "Product metrics, team data, campaigns, customer feedback and support tickets",
}

// Generator produces the tech metrics dataset.
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
		Stage("products", r.buildProducts).
		Stage("teams", r.buildTeams).
		Stage("campaigns", r.buildCampaigns).
		Stage("daily_metrics", r.buildDailyMetrics).
		Stage("customer_feedback", r.buildFeedback).
		Stage("support_tickets", r.buildTickets).
		Run(ctx)
	return generators.Finish(ds, err)
}

type run struct {
	cfg    Config
	rng    *randstream.Stream
	logger *zap.Logger

	products   []product
	teams      []team
	customers  []string
	days       []day
	productIDs *assembler.KeySet
	teamIDs    *assembler.KeySet
}

func (r *run) buildProducts(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("products")
	r.productIDs = assembler.NewKeySet(TableProducts)

	t := models.NewTable(TableProducts,
		models.Col("ProductID", models.ColumnTypeString),
		models.Col("ProductName", models.ColumnTypeString),
		models.Col("ProductCategory", models.ColumnTypeString),
		models.Col("ProductManager", models.ColumnTypeString),
		models.Col("LaunchDate", models.ColumnTypeDate),
		models.Col("TargetMarketSegment", models.ColumnTypeString),
		models.Col("StrategicPriority", models.ColumnTypeString),
	).SortBy("ProductID")

	for i := 0; i < r.cfg.NumProducts; i++ {
		p := newProduct(rng, i, r.cfg)
		r.products = append(r.products, p)
		r.productIDs.Add(p.ID)
		t.Append(p.ID, p.Name, p.Category, p.Manager, p.Launch, p.Segment, p.Priority)
	}
	ds.Add(t)

	r.customers = make([]string, r.cfg.NumCustomers)
	for i := range r.customers {
		r.customers[i] = customerHash(i)
	}
	return nil
}

func (r *run) buildTeams(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("teams")
	r.teamIDs = assembler.NewKeySet(TableTeams)

	t := models.NewTable(TableTeams,
		models.Col("TeamID", models.ColumnTypeString),
		models.Col("TeamName", models.ColumnTypeString),
		models.Col("TeamLeadName", models.ColumnTypeString),
		models.NullCol("DevelopmentMethodology", models.ColumnTypeString),
		models.Col("TeamRegion", models.ColumnTypeString),
	).SortBy("TeamID")

	for i := 0; i < r.cfg.NumTeams; i++ {
		tm := newTeam(rng, i)
		r.teams = append(r.teams, tm)
		r.teamIDs.Add(tm.ID)

		var methodology any
		if tm.Methodology != nil {
			methodology = *tm.Methodology
		}
		t.Append(tm.ID, tm.Name, tm.Lead, methodology, tm.Region)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildCampaigns(ctx context.Context, ds *models.Dataset) error {
	if r.cfg.NumCampaigns > 0 {
		if err := assembler.RequireNonEmpty(ds, "campaigns", TableProducts, len(r.products)); err != nil {
			return err
		}
	}

	rng := r.rng.Derive("campaigns")
	byID := make(map[string]int, len(r.products))
	for i, p := range r.products {
		byID[p.ID] = i
	}

	t := models.NewTable(TableCampaigns,
		models.Col("CampaignID", models.ColumnTypeString),
		models.Col("CampaignName", models.ColumnTypeString),
		models.Col("CampaignStartDate", models.ColumnTypeDate),
		models.Col("CampaignEndDate", models.ColumnTypeDate),
		models.Col("CampaignType", models.ColumnTypeString),
		models.Col("TargetProductID", models.ColumnTypeString),
		models.Col("CampaignSpend_USD", models.ColumnTypeMoney),
	).SortBy("CampaignID")

	for i := 0; i < r.cfg.NumCampaigns; i++ {
		c := newCampaign(rng, i, r.products, r.cfg)
		r.productIDs.MustResolve(TableCampaigns, c.ProductID)
		p := &r.products[byID[c.ProductID]]
		p.Campaigns = append(p.Campaigns, c)
		t.Append(c.ID, c.Name, c.Window.Start, c.Window.End, c.Type, c.ProductID, c.Spend)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildDailyMetrics(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("daily_metrics")
	for i := range r.products {
		r.products[i].buildEngine(r.cfg.EndDate)
	}

	t := models.NewTable(TableDailyMetrics,
		models.Col("MetricDate", models.ColumnTypeDate),
		models.Col("ProductID", models.ColumnTypeString),
		models.NullCol("CampaignID_Active", models.ColumnTypeString),
		models.Col("ActiveUsers_Daily", models.ColumnTypeInt),
		models.Col("NewUserSignups_Daily", models.ColumnTypeInt),
		models.FloatCol("AvgSessionDuration_Minutes_Daily", 2),
		models.FloatCol("FeatureAdoptionRate_KeyFeatureA_Daily", 4),
		models.FloatCol("FeatureAdoptionRate_KeyFeatureB_Daily", 4),
		models.FloatCol("ConversionRate_WebsiteToTrial_Daily", 4),
		models.FloatCol("SystemUptime_Percentage_Daily", 3),
		models.Col("CriticalBugs_Opened_Daily", models.ColumnTypeInt),
		models.Col("CriticalBugs_Resolved_Daily", models.ColumnTypeInt),
		models.FloatCol("API_ErrorRate_Percentage_Daily", 2),
		models.Col("AvgPageLoadTime_ms_Daily", models.ColumnTypeInt),
	).SortBy("MetricDate", "ProductID")

	var cancelled error
	temporal.EachDay(r.cfg.StartDate, r.cfg.EndDate, func(date time.Time, index int) bool {
		if index%30 == 0 {
			if cancelled = ctx.Err(); cancelled != nil {
				return false
			}
		}
		for _, p := range r.products {
			if date.Before(p.Launch) {
				continue
			}
			d := newDay(rng, p, date)
			r.days = append(r.days, d)

			var campaignID any
			if d.Campaign != nil {
				campaignID = *d.Campaign
			}
			t.Append(d.Date, d.ProductID, campaignID, d.ActiveUsers, d.NewSignups, d.AvgSession,
				d.FeatureA, d.FeatureB, d.ConversionRate, d.Uptime, d.BugsOpened, d.BugsResolved,
				d.APIErrorRate, d.PageLoadMillis)
		}
		return true
	})
	if cancelled != nil {
		return cancelled
	}
	ds.Add(t)

	r.logger.Debug("Generated daily metrics", zap.Int("rows", t.Len()))
	return nil
}

func (r *run) buildFeedback(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("customer_feedback")
	ids := generators.NewHexIDAllocator(rng, "FDBK", 10)

	t := models.NewTable(TableFeedback,
		models.Col("FeedbackID", models.ColumnTypeString),
		models.Col("FeedbackTimestamp", models.ColumnTypeTimestamp),
		models.Col("ProductID", models.ColumnTypeString),
		models.Col("CustomerID_Hashed", models.ColumnTypeString),
		models.Col("FeedbackSource", models.ColumnTypeString),
		models.Col("NPS_Score", models.ColumnTypeInt),
		models.Col("CSAT_Score", models.ColumnTypeInt),
		models.Col("CES_Score", models.ColumnTypeInt),
		models.Col("FeedbackText_Raw", models.ColumnTypeString),
		models.Col("Sentiment_Automated", models.ColumnTypeString),
		models.NullCol("KeyTopics_Automated", models.ColumnTypeString),
	).SortBy("FeedbackTimestamp")

	for _, d := range r.days {
		n := feedbackCount(rng, d)
		if n == 0 {
			continue
		}
		if err := assembler.RequireNonEmpty(ds, "customer_feedback", "customers", len(r.customers)); err != nil {
			return err
		}
		r.productIDs.MustResolve(TableFeedback, d.ProductID)
		for i := 0; i < n; i++ {
			f := newFeedback(rng, ids.Next(), d, r.customers)
			var topics any
			if f.Topics != nil {
				topics = *f.Topics
			}
			t.Append(f.ID, f.Timestamp, f.ProductID, f.Customer, f.Source, f.NPS, f.CSAT, f.CES,
				f.Text, f.Sentiment, topics)
		}
	}
	ds.Add(t)
	return nil
}

func (r *run) buildTickets(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("support_tickets")
	ids := generators.NewHexIDAllocator(rng, "SUP", 10)

	t := models.NewTable(TableTickets,
		models.Col("TicketID", models.ColumnTypeString),
		models.Col("CreationTimestamp", models.ColumnTypeTimestamp),
		models.Col("ProductID", models.ColumnTypeString),
		models.Col("CustomerID_Hashed", models.ColumnTypeString),
		models.NullCol("TeamID_Assigned", models.ColumnTypeString),
		models.Col("IssueCategory", models.ColumnTypeString),
		models.Col("TicketSeverity", models.ColumnTypeString),
		models.Col("TicketStatus", models.ColumnTypeString),
		models.NullCol("ResolutionTimestamp", models.ColumnTypeTimestamp),
		models.NullFloatCol("TimeToResolution_Hours", 2),
		models.NullFloatCol("FirstResponseTime_Minutes", 1),
	).SortBy("CreationTimestamp")

	for _, d := range r.days {
		n := ticketCount(rng, d)
		if n == 0 {
			continue
		}
		if err := assembler.RequireNonEmpty(ds, "support_tickets", "customers", len(r.customers)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			tk := newTicket(rng, ids.Next(), d, r.customers, r.teams, r.cfg.EndDate)
			var teamID, resolved, hours, first any
			if tk.TeamID != nil {
				r.teamIDs.MustResolve(TableTickets, *tk.TeamID)
				teamID = *tk.TeamID
			}
			if tk.Resolved != nil {
				resolved, hours = *tk.Resolved, *tk.HoursToResolve
			}
			if tk.FirstResponseMin != nil {
				first = *tk.FirstResponseMin
			}
			t.Append(tk.ID, tk.Created, tk.ProductID, tk.Customer, teamID, tk.Category, tk.Severity,
				tk.Status, resolved, hours, first)
		}
	}
	ds.Add(t)
	return nil
}
