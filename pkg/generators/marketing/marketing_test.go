package marketing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/funnel"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

func windowConfig(start, end time.Time) Config {
	cfg := DefaultConfig()
	cfg.StartDate = start
	cfg.EndDate = end
	return cfg
}

func funnelTable(t *testing.T, cfg Config, seed int64) *models.Table {
	t.Helper()
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	ds, err := g.Generate(context.Background(), randstream.New(seed))
	require.NoError(t, err)
	tbl, ok := ds.Table(TableFunnel)
	require.True(t, ok)
	return tbl
}

func TestGenerate_FunnelIsMonotone(t *testing.T) {
	tbl := funnelTable(t, windowConfig(temporal.Date(2024, time.March, 1), temporal.Date(2024, time.March, 31)), 1)
	require.Positive(t, tbl.Len())

	chain := []string{"Impressions", StageClicks, StageLeads, StageMQLs, StageSQLs, StageOpportunities, StageWins}
	for i := 0; i < tbl.Len(); i++ {
		for j := 1; j < len(chain); j++ {
			prev := tbl.Value(i, chain[j-1]).(int64)
			cur := tbl.Value(i, chain[j]).(int64)
			require.LessOrEqual(t, cur, prev, "row %d: %s > %s", i, chain[j], chain[j-1])
			require.GreaterOrEqual(t, cur, int64(0))
		}
		assert.GreaterOrEqual(t, tbl.Value(i, "CTR").(float64), 0.0001)
		assert.False(t, tbl.Value(i, "Spend").(decimal.Decimal).IsNegative())
	}
}

func TestGenerate_InclusiveWindowAndSort(t *testing.T) {
	start, end := temporal.Date(2024, time.January, 1), temporal.Date(2024, time.January, 7)
	tbl := funnelTable(t, windowConfig(start, end), 3)

	days := map[time.Time]bool{}
	var last time.Time
	for _, v := range tbl.Values("Date") {
		d := v.(time.Time)
		assert.False(t, d.Before(last), "rows not sorted by date")
		last = d
		days[d] = true
	}
	assert.Len(t, days, 7)
	assert.True(t, days[end])
}

func TestGenerate_Reproducible(t *testing.T) {
	cfg := windowConfig(temporal.Date(2024, time.June, 1), temporal.Date(2024, time.June, 14))
	a := funnelTable(t, cfg, 99)
	b := funnelTable(t, cfg, 99)
	assert.Equal(t, a.Rows, b.Rows)

	c := funnelTable(t, cfg, 100)
	assert.NotEqual(t, a.Rows, c.Rows)
}

func TestGenerate_LaunchChannelsAreGated(t *testing.T) {
	tbl := funnelTable(t, windowConfig(temporal.Date(2023, time.September, 1), temporal.Date(2023, time.October, 31)), 5)

	var connectSphereRows int
	for i := 0; i < tbl.Len(); i++ {
		day := tbl.Value(i, "Date").(time.Time)
		switch tbl.Value(i, "Channel") {
		case ChannelConnectSphere:
			connectSphereRows++
			assert.False(t, day.Before(connectSphereLaunch), "ConnectSphere row on %s", day)
		case ChannelAIContent:
			t.Fatalf("AI ContentSynergy row before launch on %s", day)
		}
	}
	assert.Positive(t, connectSphereRows)
}

func TestGenerate_ChannelFocus(t *testing.T) {
	cfg := windowConfig(temporal.Date(2024, time.February, 1), temporal.Date(2024, time.February, 10))
	cfg.Channels = ChannelFocus["Email"]
	tbl := funnelTable(t, cfg, 8)

	require.Positive(t, tbl.Len())
	for _, ch := range tbl.Values("Channel") {
		assert.Equal(t, ChannelEmail, ch)
	}
}

func TestGenerate_NoSpendWithoutSpendFactorOrCampaign(t *testing.T) {
	cfg := windowConfig(temporal.Date(2024, time.February, 1), temporal.Date(2024, time.February, 28))
	cfg.Channels = ChannelFocus["Organic"]
	tbl := funnelTable(t, cfg, 13)

	require.Positive(t, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		assert.Equal(t, baselineCampaign, tbl.Value(i, "CampaignNames"))
		assert.True(t, tbl.Value(i, "Spend").(decimal.Decimal).IsZero())
	}
}

func TestGenerate_FutureCampaignToggle(t *testing.T) {
	cfg := windowConfig(temporal.Date(2025, time.October, 1), temporal.Date(2025, time.October, 5))
	cfg.Channels = []string{ChannelEmail}

	mentions := func(tbl *models.Table, name string) int {
		n := 0
		for _, v := range tbl.Values("CampaignNames") {
			if strings.Contains(v.(string), name) {
				n++
			}
		}
		return n
	}

	with := funnelTable(t, cfg, 21)
	assert.Equal(t, with.Len(), mentions(with, "Global Summit Attendee Drive Oct 2025"))

	cfg.IncludeFutureCampaigns = false
	without := funnelTable(t, cfg, 21)
	assert.Zero(t, mentions(without, "Global Summit"))
	assert.Zero(t, mentions(without, "AI Synergy"))
}

func TestFunnel_EmailScenario(t *testing.T) {
	// 10000 impressions at 5% CTR with neutral modifiers.
	clicks := int(10000 * 0.05)
	require.Equal(t, 500, clicks)

	rates := DefaultConfig().Rates
	rng := randstream.New(2024)
	const trials = 4000
	var leads float64
	for i := 0; i < trials; i++ {
		res := funnel.Evaluate(rng, StageClicks, clicks, funnelStages(rates, 1, 1))
		require.True(t, res.Monotone())
		require.GreaterOrEqual(t, res.Count(StageLeads), 0)
		leads += float64(res.Count(StageLeads))
	}
	assert.InDelta(t, 30, leads/trials, 1.0)
}

func TestEngine_StoryEvents(t *testing.T) {
	e := newEngine(DefaultConfig())

	tests := []struct {
		name    string
		day     time.Time
		channel string
		metric  temporal.Metric
		want    float64
	}{
		{"algorithm hit volume", temporal.Date(2024, time.April, 15), ChannelOrganicSearch, temporal.Volume, 0.65},
		{"algorithm hit ctr", temporal.Date(2024, time.April, 15), ChannelOrganicSearch, temporal.Rate, 0.85},
		{"recovery start", temporal.Date(2024, time.July, 1), ChannelOrganicSearch, temporal.Volume, 0.65},
		{"recovery end", temporal.Date(2024, time.October, 31), ChannelOrganicSearch, temporal.Volume, 0.95},
		{"other channel untouched", temporal.Date(2024, time.April, 15), ChannelPaidSearch, temporal.Volume, 1},
		{"connectsphere midpoint", connectSphereLaunch.AddDate(0, 0, 180), ChannelConnectSphere, temporal.Volume, 0.5},
		{"connectsphere ctr midpoint", connectSphereLaunch.AddDate(0, 0, 180), ChannelConnectSphere, temporal.Rate, 1.05},
		{"pixelverse floor", temporal.Date(2030, time.January, 1), ChannelPixelVerse, temporal.Volume, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.EventFactor(tt.day, tt.channel, tt.metric), 1e-9)
		})
	}
}

func TestActiveCampaigns_Aggregates(t *testing.T) {
	e := activeCampaigns(Campaigns, temporal.Date(2025, time.October, 15), ChannelEmail, "BetaPlatform")
	assert.Equal(t, []string{"AI Synergy Beta Program Q3 2025", "Global Summit Attendee Drive Oct 2025"}, e.Names)
	assert.InDelta(t, 4.5, e.ImpMult, 1e-9)
	assert.InDelta(t, 5.0, e.LeadMult, 1e-9)
	assert.InDelta(t, 500, e.SpendAbs, 1e-9)
	assert.InDelta(t, 0.020, e.CTRAbs, 1e-9)

	none := activeCampaigns(Campaigns, temporal.Date(2025, time.October, 15), ChannelReferral, "AlphaSuite")
	assert.Empty(t, none.Names)
	assert.Equal(t, 1.0, none.ImpMult)
	assert.Equal(t, 1.0, none.LeadMult)
}

func TestCampaigns_FutureFlag(t *testing.T) {
	for _, c := range Campaigns {
		want := c.ID >= "C008"
		assert.Equal(t, want, c.Future(), c.ID)
	}
}

func TestProductFocus_CyclesDaily(t *testing.T) {
	seen := map[string]bool{}
	for day := 0; day < 3; day++ {
		p := productFocus(day, ChannelEmail, "Europe")
		seen[p] = true
		assert.Equal(t, p, productFocus(day+3, ChannelEmail, "Europe"))
	}
	assert.Len(t, seen, len(products))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = []string{"Carrier Pigeon"}
	err := cfg.Validate()
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.EndDate = cfg.StartDate.AddDate(0, 0, -1)
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.EndDate = cfg.StartDate
	assert.NoError(t, cfg.Validate())
}

func TestRegistry(t *testing.T) {
	g, err := generators.New(Key, map[string]any{
		"start_date":    "2024-01-01",
		"end_date":      "2024-01-03",
		"channel_focus": "Social",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Marketing Funnel", g.Info().DisplayName)

	ds, err := g.Generate(context.Background(), randstream.New(1))
	require.NoError(t, err)
	tbl, ok := ds.Table(TableFunnel)
	require.True(t, ok)
	for _, ch := range tbl.Values("Channel") {
		assert.Contains(t, ChannelFocus["Social"], ch)
	}
}
