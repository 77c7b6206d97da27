package techmetrics

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// smallConfig keeps the full window, since feedback and tickets only appear
// once products have grown a user base.
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumProducts = 6
	cfg.NumTeams = 3
	cfg.NumCampaigns = 3
	cfg.NumCustomers = 200
	return cfg
}

func generate(t *testing.T, cfg Config, seed int64) (*models.Dataset, error) {
	t.Helper()
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return g.Generate(context.Background(), randstream.New(seed))
}

func mustTable(t *testing.T, ds *models.Dataset, name string) *models.Table {
	t.Helper()
	tbl, ok := ds.Table(name)
	require.True(t, ok, "missing table %s", name)
	return tbl
}

func TestGenerate_Tables(t *testing.T) {
	ds, err := generate(t, smallConfig(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		TableProducts, TableTeams, TableCampaigns, TableDailyMetrics, TableFeedback, TableTickets,
	}, ds.Names())
	assert.Equal(t, 6, mustTable(t, ds, TableProducts).Len())
	assert.Equal(t, 3, mustTable(t, ds, TableTeams).Len())
	assert.Equal(t, 3, mustTable(t, ds, TableCampaigns).Len())
	assert.Positive(t, mustTable(t, ds, TableDailyMetrics).Len())
}

func TestGenerate_Reproducible(t *testing.T) {
	a, err := generate(t, smallConfig(), 11)
	require.NoError(t, err)
	b, err := generate(t, smallConfig(), 11)
	require.NoError(t, err)

	for _, name := range a.Names() {
		assert.Equal(t, mustTable(t, a, name).Rows, mustTable(t, b, name).Rows, "table %s differs", name)
	}
}

func TestGenerate_ReferentialIntegrity(t *testing.T) {
	ds, err := generate(t, smallConfig(), 5)
	require.NoError(t, err)
	products := mustTable(t, ds, TableProducts)

	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableCampaigns), "TargetProductID", products, "ProductID"))
	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableDailyMetrics), "ProductID", products, "ProductID"))
	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableDailyMetrics), "CampaignID_Active", mustTable(t, ds, TableCampaigns), "CampaignID"))
	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableFeedback), "ProductID", products, "ProductID"))
	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableTickets), "ProductID", products, "ProductID"))
	require.NoError(t, assembler.CheckReferences(mustTable(t, ds, TableTickets), "TeamID_Assigned", mustTable(t, ds, TableTeams), "TeamID"))
}

func TestGenerate_MetricsStartAtLaunch(t *testing.T) {
	ds, err := generate(t, smallConfig(), 8)
	require.NoError(t, err)

	products := mustTable(t, ds, TableProducts)
	launch := map[any]time.Time{}
	for i := 0; i < products.Len(); i++ {
		launch[products.Value(i, "ProductID")] = products.Value(i, "LaunchDate").(time.Time)
	}

	metrics := mustTable(t, ds, TableDailyMetrics)
	for i := 0; i < metrics.Len(); i++ {
		date := metrics.Value(i, "MetricDate").(time.Time)
		assert.False(t, date.Before(launch[metrics.Value(i, "ProductID")]))

		uptime := metrics.Value(i, "SystemUptime_Percentage_Daily").(float64)
		assert.GreaterOrEqual(t, uptime, 98.0)
		assert.LessOrEqual(t, uptime, 100.0)
		conv := metrics.Value(i, "ConversionRate_WebsiteToTrial_Daily").(float64)
		assert.GreaterOrEqual(t, conv, 0.005)
		assert.LessOrEqual(t, conv, 0.1)
		assert.GreaterOrEqual(t, metrics.Value(i, "AvgPageLoadTime_ms_Daily").(int64), int64(200))
	}
}

func TestGenerate_TicketTimings(t *testing.T) {
	cfg := smallConfig()
	cfg.NumProducts = 10
	ds, err := generate(t, cfg, 21)
	require.NoError(t, err)

	tickets := mustTable(t, ds, TableTickets)
	require.Positive(t, tickets.Len())
	windowEnd := endOfDay(cfg.EndDate)

	for i := 0; i < tickets.Len(); i++ {
		status := tickets.Value(i, "TicketStatus")
		created := tickets.Value(i, "CreationTimestamp").(time.Time)
		resolved := tickets.Value(i, "ResolutionTimestamp")

		if status == "Resolved" || status == "Closed" {
			require.NotNil(t, resolved)
			at := resolved.(time.Time)
			assert.False(t, at.Before(created))
			assert.False(t, at.After(windowEnd))

			hours := tickets.Value(i, "TimeToResolution_Hours").(float64)
			assert.GreaterOrEqual(t, hours, 0.1)
			first := tickets.Value(i, "FirstResponseTime_Minutes").(float64)
			assert.LessOrEqual(t, first, hours*60+1e-9)
		} else {
			assert.Nil(t, resolved)
			assert.Nil(t, tickets.Value(i, "TimeToResolution_Hours"))
		}
	}
}

func TestGenerate_IdentifierFormats(t *testing.T) {
	ds, err := generate(t, smallConfig(), 3)
	require.NoError(t, err)

	feedbackID := regexp.MustCompile(`^FDBK_[0-9a-f]{10}$`)
	for _, v := range mustTable(t, ds, TableFeedback).Values("FeedbackID") {
		assert.Regexp(t, feedbackID, v)
	}
	ticketID := regexp.MustCompile(`^SUP_[0-9a-f]{10}$`)
	for _, v := range mustTable(t, ds, TableTickets).Values("TicketID") {
		assert.Regexp(t, ticketID, v)
	}
	assert.Equal(t, []any{"PROD001", "PROD002", "PROD003", "PROD004", "PROD005", "PROD006"},
		mustTable(t, ds, TableProducts).Values("ProductID"))
}

func TestGenerate_EmptyPopulations(t *testing.T) {
	cfg := smallConfig()
	cfg.NumProducts = 0
	ds, err := generate(t, cfg, 1)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPopulation)
	assert.Equal(t, []string{TableProducts, TableTeams}, ds.Names())

	cfg = smallConfig()
	cfg.NumCustomers = 0
	cfg.NumProducts = 10
	_, err = generate(t, cfg, 1)
	var empty *apperrors.EmptyPopulationError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "customers", empty.Collection)
}

func TestCustomerHash(t *testing.T) {
	// sha1("0") = b6589fc6ab0dc82cf12099d1c2d40ab994e8410c
	assert.Equal(t, "CUST_HASH_b6589fc6ab", customerHash(0))
	assert.NotEqual(t, customerHash(1), customerHash(2))
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		nps  int
		want string
	}{
		{0, SentimentNegative},
		{6, SentimentNegative},
		{7, SentimentNeutral},
		{8, SentimentNeutral},
		{9, SentimentPositive},
		{10, SentimentPositive},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sentiment(tt.nps), "nps %d", tt.nps)
	}
}

func TestShiftWeights(t *testing.T) {
	worse := shiftWeights(baseCSATWeights, 3, true, false)
	assert.InDelta(t, 0.05*1.8, worse[0], 1e-9)
	assert.InDelta(t, 0.4*0.6, worse[4], 1e-9)

	better := shiftWeights(baseCSATWeights, 3, false, true)
	assert.InDelta(t, 0.05*0.6, better[0], 1e-9)
	assert.InDelta(t, 0.4*1.8, better[4], 1e-9)

	assert.Equal(t, baseCSATWeights, shiftWeights(baseCSATWeights, 3, false, false))
}

func TestNewDay_EventsMoveMetrics(t *testing.T) {
	date := temporal.Date(2025, time.February, 3)
	p := product{
		ID:     "PROD001",
		Launch: temporal.Date(2025, time.January, 1),
		Growth: 1,
		Events: map[string]incident{dayKey(date): {Date: date, Type: EventPerformanceIssue, Impact: 0.8}},
	}
	p.buildEngine(temporal.Date(2025, time.December, 31))

	rng := randstream.New(4)
	var spikes int
	for i := 0; i < 200; i++ {
		d := newDay(rng, p, date)
		assert.Equal(t, EventPerformanceIssue, d.Event)
		assert.True(t, d.troubled())
		if d.APIErrorRate >= 2 {
			spikes++
		}
	}
	assert.Equal(t, 200, spikes)
}

func TestNewDay_EngineDrivesActiveUsers(t *testing.T) {
	plain := temporal.Date(2024, time.March, 4)  // Monday
	outage := temporal.Date(2024, time.March, 11) // Monday
	promo := temporal.Date(2024, time.March, 18)  // Monday
	p := product{
		ID:     "PROD001",
		Launch: temporal.Date(2024, time.January, 1),
		Growth: 2,
		Events: map[string]incident{dayKey(outage): {Date: outage, Type: EventMajorBug, Impact: 0.8}},
		Campaigns: []campaign{{
			ID:        "CAMP001",
			ProductID: "PROD001",
			Lift:      1.25,
			Window:    temporal.Window{Start: promo, End: promo.AddDate(0, 0, 6)},
		}},
	}
	p.buildEngine(temporal.Date(2024, time.December, 31))
	e := p.engine

	evaluate := func(date time.Time) float64 {
		return e.Evaluate(launchBaseUsers, date, p.ID, temporal.Volume, temporal.Identity)
	}
	assert.InDelta(t, launchBaseUsers*e.Calendar(plain), evaluate(plain), 1e-9)
	assert.InDelta(t, launchBaseUsers*e.Calendar(outage)*0.8, evaluate(outage), 1e-9)
	assert.InDelta(t, launchBaseUsers*e.Calendar(promo)*1.25, evaluate(promo), 1e-9)
	assert.InDelta(t, 1+63*2.0/launchBaseUsers, e.Trend.Factor(plain), 1e-12)
	assert.InDelta(t, 1.25, e.Factor(promo, p.ID, temporal.Conversion), 1e-12)
	assert.InDelta(t, 0.8, e.Factor(outage, p.ID, engagement), 1e-12)
	assert.Equal(t, 1.0, e.Factor(promo, p.ID, engagement))
	assert.Equal(t, 1.0, e.Factor(promo, "PROD002", temporal.Conversion))

	// Each day replays the same draws, so only the engine separates them.
	users := func(date time.Time) int {
		return newDay(randstream.New(9), p, date).ActiveUsers
	}
	for _, date := range []time.Time{plain, outage, promo} {
		rng := randstream.New(9)
		want := int(temporal.ApplyNoise(rng, evaluate(date)*e.Weekly.Jitter(rng), 0.05, 0))
		assert.Equal(t, want, users(date), date.Format(time.DateOnly))
	}
	assert.Less(t, users(outage), users(plain))
	assert.Greater(t, users(promo), users(plain))

	d := newDay(randstream.New(9), p, promo)
	require.NotNil(t, d.Campaign)
	assert.Equal(t, "CAMP001", *d.Campaign)
	assert.True(t, d.buoyant())
	assert.Equal(t, EventMajorBug, newDay(randstream.New(9), p, outage).Event)
}

func TestNewProduct_EventsMatchDaysInAnyZone(t *testing.T) {
	cfg := smallConfig()
	cfg.StartDate = time.Date(2022, time.May, 13, 15, 30, 0, 0, time.FixedZone("UTC-7", -7*3600))
	p := newProduct(randstream.New(3), 0, cfg)
	require.NotEmpty(t, p.Events)
	p.buildEngine(cfg.EndDate)

	hits := 0
	temporal.EachDay(cfg.StartDate, cfg.EndDate, func(date time.Time, _ int) bool {
		if newDay(randstream.New(1), p, date).Event != "" {
			hits++
		}
		return true
	})
	assert.Equal(t, len(p.Events), hits)
}

func TestRegistry(t *testing.T) {
	reg, ok := generators.Lookup(Key)
	require.True(t, ok)
	assert.Len(t, reg.Parameters, 4)

	_, err := generators.New(Key, map[string]any{"num_customers": 10}, nil)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}
