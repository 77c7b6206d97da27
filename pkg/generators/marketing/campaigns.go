package marketing

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

var (
	connectSphereLaunch = temporal.Date(2023, time.October, 1)
	pixelVerseDecline   = temporal.Date(2024, time.July, 1)
	aiContentLaunch     = temporal.Date(2025, time.August, 1)
)

// storyEvents are the channel-level events of the dataset's storyline:
// an organic search algorithm hit and its recovery, two logistic channel
// launches and the slow decline of PixelVerse.
var storyEvents = []temporal.EventWindow{
	{
		Window: temporal.Window{Name: "organic algorithm hit",
			Start: temporal.Date(2024, time.March, 1), End: temporal.Date(2024, time.June, 30)},
		Keys: []string{ChannelOrganicSearch},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume: temporal.Constant(0.65),
			temporal.Rate:   temporal.Constant(0.85),
		},
	},
	{
		Window: temporal.Window{Name: "organic algorithm recovery",
			Start: temporal.Date(2024, time.July, 1), End: temporal.Date(2024, time.October, 31)},
		Keys: []string{ChannelOrganicSearch},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume: temporal.Ramp{From: 0.65, To: 0.95},
			temporal.Rate:   temporal.Ramp{From: 0.85, To: 0.98},
		},
	},
	{
		Window: temporal.Window{Name: "ConnectSphere adoption", Start: connectSphereLaunch},
		Keys:   []string{ChannelConnectSphere},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume: temporal.Logistic{K: 0.01, Midpoint: 180, Lift: 1},
			temporal.Rate:   temporal.Logistic{K: 0.01, Midpoint: 180, Base: 1, Lift: 0.1},
		},
	},
	{
		Window: temporal.Window{Name: "PixelVerse decline", Start: pixelVerseDecline},
		Keys:   []string{ChannelPixelVerse},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume: temporal.Decline{Rate: 0.0005, Floor: 0.5},
			temporal.Rate:   temporal.Decline{Rate: 0.0003, Floor: 0.7},
		},
	},
	{
		Window: temporal.Window{Name: "AI ContentSynergy adoption", Start: aiContentLaunch},
		Keys:   []string{ChannelAIContent},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume: temporal.Logistic{K: 0.015, Midpoint: 120, Lift: 1},
			temporal.Rate:   temporal.Logistic{K: 0.015, Midpoint: 120, Base: 1, Lift: 0.05},
		},
	},
}

// Campaign is a marketing push over a date window. Empty Products or
// Channels target every product or channel.
type Campaign struct {
	ID       string
	Name     string
	Window   temporal.Window
	Products []string
	Channels []string
	ImpMult  float64
	LeadMult float64
	SpendAbs float64
	CTRAbs   float64
}

// Future reports whether the campaign starts after the reference date.
func (c Campaign) Future() bool {
	return c.Window.Start.After(Reference)
}

func (c Campaign) targets(day time.Time, channel, product string) bool {
	return c.Window.Contains(day) && (len(c.Channels) == 0 || contains(c.Channels, channel)) &&
		(len(c.Products) == 0 || contains(c.Products, product))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func campaign(id, name string, start, end time.Time, products, channels []string, imp, lead, spend, ctr float64) Campaign {
	return Campaign{
		ID: id, Name: name,
		Window:   temporal.Window{Name: name, Start: start, End: end},
		Products: products, Channels: channels,
		ImpMult: imp, LeadMult: lead, SpendAbs: spend, CTRAbs: ctr,
	}
}

// Campaigns C001 to C007 ran before the reference date; C008 onwards are
// planned.
var Campaigns = []Campaign{
	campaign("C001", "AlphaSuite Q3 2022 Launch", temporal.Date(2022, 7, 1), temporal.Date(2022, 9, 30),
		[]string{"AlphaSuite"}, []string{ChannelPaidSearch, ChannelEmail}, 1.6, 1.3, 250, 0.006),
	campaign("C002", "End of Year Sale 2022", temporal.Date(2022, 11, 15), temporal.Date(2022, 12, 31),
		nil, []string{ChannelPaidSearch, ChannelEmail, ChannelPixelVerse}, 2.0, 1.5, 400, 0.008),
	campaign("C003", "BetaPlatform Awareness Q2 2023", temporal.Date(2023, 4, 1), temporal.Date(2023, 6, 30),
		[]string{"BetaPlatform"}, []string{ChannelPixelVerse, ChannelPaidSearch}, 1.8, 1.4, 350, 0.007),
	campaign("C004", "Summer Slowdown Promo 2023", temporal.Date(2023, 7, 15), temporal.Date(2023, 8, 31),
		[]string{"GammaTools"}, []string{ChannelEmail, ChannelPixelVerse}, 1.3, 1.6, 150, 0.004),
	campaign("C005", "ConnectSphere Entry Q4 2023", temporal.Date(2023, 10, 1), temporal.Date(2023, 12, 31),
		[]string{"BetaPlatform", "GammaTools"}, []string{ChannelConnectSphere}, 2.5, 1.7, 300, 0.010),
	campaign("C006", "End of Year Sale 2024", temporal.Date(2024, 11, 15), temporal.Date(2024, 12, 31),
		nil, []string{ChannelPaidSearch, ChannelEmail, ChannelConnectSphere}, 2.2, 1.6, 500, 0.009),
	campaign("C007", "GammaTools Feature Push Q1 2025", temporal.Date(2025, 2, 1), temporal.Date(2025, 4, 30),
		[]string{"GammaTools"}, []string{ChannelPaidSearch, ChannelConnectSphere, ChannelDirect}, 1.7, 1.8, 400, 0.007),
	campaign("C008", "AI Synergy Beta Program Q3 2025", temporal.Date(2025, 8, 1), temporal.Date(2025, 10, 31),
		[]string{"BetaPlatform"}, []string{ChannelAIContent, ChannelEmail}, 3.0, 2.0, 200, 0.015),
	campaign("C009", "Global Summit Attendee Drive Oct 2025", temporal.Date(2025, 10, 1), temporal.Date(2025, 10, 31),
		nil, []string{ChannelEmail, ChannelConnectSphere, ChannelDirect}, 1.5, 2.5, 300, 0.005),
	campaign("C010", "End of Year Sale 2025", temporal.Date(2025, 11, 15), temporal.Date(2025, 12, 31),
		nil, []string{ChannelPaidSearch, ChannelEmail, ChannelConnectSphere, ChannelAIContent}, 2.5, 1.8, 600, 0.010),
	campaign("C011", "AlphaSuite Refresh Q1 2026", temporal.Date(2026, 2, 1), temporal.Date(2026, 4, 30),
		[]string{"AlphaSuite"}, []string{ChannelPaidSearch, ChannelAIContent, ChannelOrganicSearch}, 1.8, 1.5, 450, 0.008),
}

// effect is the aggregate of every campaign active on a row.
type effect struct {
	Names    []string
	ImpMult  float64
	LeadMult float64
	SpendAbs float64
	CTRAbs   float64
}

func activeCampaigns(campaigns []Campaign, day time.Time, channel, product string) effect {
	e := effect{ImpMult: 1, LeadMult: 1}
	for _, c := range campaigns {
		if !c.targets(day, channel, product) {
			continue
		}
		e.Names = append(e.Names, c.Name)
		e.ImpMult *= c.ImpMult
		e.LeadMult *= c.LeadMult
		e.SpendAbs += c.SpendAbs
		e.CTRAbs += c.CTRAbs
	}
	return e
}
