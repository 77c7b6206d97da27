package marketing

import (
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// option is one weighted value of a dimension.
type option struct {
	value  string
	weight float64
}

// channel holds the base metrics of one acquisition channel. Launch, when
// set, is the first day the channel has any reach.
type channel struct {
	Name        string
	Impressions float64
	CTR         float64
	SpendFactor float64
	Launch      temporal.Window
}

// The two launch channels carry the reach they grow into; their logistic
// adoption curve scales it from zero.
var channels = map[string]channel{
	ChannelOrganicSearch: {Name: ChannelOrganicSearch, Impressions: 24000, CTR: 0.032},
	ChannelPaidSearch:    {Name: ChannelPaidSearch, Impressions: 17000, CTR: 0.042, SpendFactor: 0.025},
	ChannelConnectSphere: {Name: ChannelConnectSphere, Impressions: 15000, CTR: 0.020, SpendFactor: 0.015,
		Launch: temporal.Window{Name: "ConnectSphere launch", Start: connectSphereLaunch}},
	ChannelPixelVerse: {Name: ChannelPixelVerse, Impressions: 14000, CTR: 0.016, SpendFactor: 0.020},
	ChannelEmail:      {Name: ChannelEmail, Impressions: 10000, CTR: 0.050, SpendFactor: 0.002},
	ChannelReferral:   {Name: ChannelReferral, Impressions: 5800, CTR: 0.037},
	ChannelDirect:     {Name: ChannelDirect, Impressions: 8800, CTR: 0.062},
	ChannelAIContent: {Name: ChannelAIContent, Impressions: 9000, CTR: 0.027, SpendFactor: 0.030,
		Launch: temporal.Window{Name: "AI ContentSynergy launch", Start: aiContentLaunch}},
}

// live reports whether the channel has launched by day.
func (c channel) live(day time.Time) bool {
	return c.Launch.Start.IsZero() || c.Launch.Contains(day)
}

type region struct {
	Name   string
	Factor float64
}

var regions = []region{
	{Name: "North America", Factor: 1.1},
	{Name: "Europe", Factor: 1.0},
	{Name: "APAC", Factor: 0.8},
	{Name: "LATAM", Factor: 0.6},
}

var products = []string{"AlphaSuite", "BetaPlatform", "GammaTools"}

// dimension is one categorical attribute of a funnel row. Values are drawn
// per channel (falling back to Default) and each value carries a modifier.
type dimension struct {
	Column    string
	ByChannel map[string][]option
	Default   []option
	Modifiers map[string]temporal.Modifier
}

func (d dimension) draw(rng *randstream.Stream, channel string) (string, temporal.Modifier) {
	table, ok := d.ByChannel[channel]
	if !ok {
		table = d.Default
	}
	weights := make([]float64, len(table))
	for i, o := range table {
		weights[i] = o.weight
	}
	v := table[rng.WeightedIndex(weights)].value
	return v, d.Modifiers[v]
}

var deviceType = dimension{
	Column: "DeviceType",
	ByChannel: map[string][]option{
		ChannelOrganicSearch: {{"Desktop", 0.5}, {"Mobile", 0.4}, {"Tablet", 0.1}},
		ChannelPaidSearch:    {{"Desktop", 0.55}, {"Mobile", 0.35}, {"Tablet", 0.1}},
		ChannelConnectSphere: {{"Desktop", 0.2}, {"Mobile", 0.7}, {"Tablet", 0.1}},
		ChannelPixelVerse:    {{"Desktop", 0.25}, {"Mobile", 0.65}, {"Tablet", 0.1}},
		ChannelEmail:         {{"Desktop", 0.6}, {"Mobile", 0.35}, {"Tablet", 0.05}},
		ChannelReferral:      {{"Desktop", 0.6}, {"Mobile", 0.3}, {"Tablet", 0.1}},
		ChannelDirect:        {{"Desktop", 0.5}, {"Mobile", 0.4}, {"Tablet", 0.1}},
		ChannelAIContent:     {{"Desktop", 0.4}, {"Mobile", 0.5}, {"Tablet", 0.1}},
	},
	Default: []option{{"Desktop", 0.5}, {"Mobile", 0.4}, {"Tablet", 0.1}},
	Modifiers: map[string]temporal.Modifier{
		"Desktop": temporal.Mod(1.0, 1.05, 1.0),
		"Mobile":  temporal.Mod(1.1, 0.90, 0.95),
		"Tablet":  temporal.Mod(0.9, 0.95, 1.0),
	},
}

var audienceSegment = dimension{
	Column:  "AudienceSegment",
	Default: []option{{"New Visitor", 0.75}, {"Returning Visitor", 0.25}},
	Modifiers: map[string]temporal.Modifier{
		"New Visitor":       temporal.Mod(1.0, 0.9, 0.85),
		"Returning Visitor": temporal.Mod(1.0, 1.2, 1.3),
	},
}

// Keyword theme is the only dimension that moves the spend factor.
var keywordTheme = dimension{
	Column: "KeywordTheme",
	ByChannel: map[string][]option{
		ChannelOrganicSearch: {{"Brand", 0.25}, {"Non-Brand Generic", 0.50}, {"Non-Brand Feature", 0.25}, {"N/A", 0}},
		ChannelPaidSearch:    {{"Brand", 0.30}, {"Non-Brand Generic", 0.40}, {"Non-Brand Feature", 0.30}, {"N/A", 0}},
	},
	Default: []option{{"Brand", 0}, {"Non-Brand Generic", 0}, {"Non-Brand Feature", 0}, {"N/A", 1}},
	Modifiers: map[string]temporal.Modifier{
		"Brand":             {Imp: 0.8, CTR: 2.5, Conv: 1.5, Spend: 1.1},
		"Non-Brand Generic": {Imp: 1.1, CTR: 0.8, Conv: 0.9, Spend: 0.9},
		"Non-Brand Feature": {Imp: 1.0, CTR: 1.0, Conv: 1.1, Spend: 1.0},
		"N/A":               temporal.Identity,
	},
}

var contentType = dimension{
	Column: "ContentType",
	ByChannel: map[string][]option{
		ChannelOrganicSearch: {{"Blog Post", 0.4}, {"Landing Page", 0.3}, {"Product Page", 0.3}},
		ChannelPaidSearch:    {{"Blog Post", 0.1}, {"Landing Page", 0.6}, {"Product Page", 0.3}},
		ChannelConnectSphere: {{"Blog Post", 0.1}, {"Landing Page", 0.3}, {"Product Page", 0.1}, {"Video Ad", 0.2}, {"Social Post", 0.3}},
		ChannelPixelVerse:    {{"Blog Post", 0.1}, {"Landing Page", 0.4}, {"Product Page", 0.1}, {"Video Ad", 0.2}, {"Social Post", 0.2}},
		ChannelEmail:         {{"Landing Page", 0.4}, {"Product Page", 0.2}, {"Email Body", 0.4}},
		ChannelReferral:      {{"Blog Post", 0.2}, {"Landing Page", 0.4}, {"Product Page", 0.4}},
		ChannelDirect:        {{"Blog Post", 0.1}, {"Landing Page", 0.3}, {"Product Page", 0.6}},
		ChannelAIContent:     {{"Blog Post", 0.3}, {"Landing Page", 0.4}, {"Product Page", 0.2}, {"Video Ad", 0.1}},
	},
	Default: []option{{"N/A", 1}},
	Modifiers: map[string]temporal.Modifier{
		"Blog Post":    temporal.Mod(1.0, 0.7, 0.6),
		"Landing Page": temporal.Mod(1.0, 1.1, 1.1),
		"Video Ad":     temporal.Mod(1.2, 0.6, 0.7),
		"Product Page": temporal.Mod(0.9, 1.2, 1.4),
		"Email Body":   temporal.Identity,
		"Social Post":  temporal.Mod(1.1, 0.8, 0.8),
		"N/A":          temporal.Identity,
	},
}

var intentStage = dimension{
	Column:  "IntentStage",
	Default: []option{{"Awareness", 0.4}, {"Consideration", 0.4}, {"Conversion", 0.2}},
	Modifiers: map[string]temporal.Modifier{
		"Awareness":     temporal.Mod(1.1, 0.8, 0.5),
		"Consideration": temporal.Identity,
		"Conversion":    temporal.Mod(0.9, 1.3, 1.8),
	},
}

var timeOfDay = dimension{
	Column: "TimeOfDayBucket",
	Default: []option{
		{"Morning (6-12)", 0.25}, {"Afternoon (12-18)", 0.35},
		{"Evening (18-24)", 0.30}, {"Late Night (0-6)", 0.10},
	},
	Modifiers: map[string]temporal.Modifier{
		"Morning (6-12)":    temporal.Mod(0.9, 1.0, 1.0),
		"Afternoon (12-18)": temporal.Mod(1.1, 1.05, 1.0),
		"Evening (18-24)":   temporal.Mod(1.05, 0.95, 1.0),
		"Late Night (0-6)":  temporal.Mod(0.7, 0.9, 0.9),
	},
}

// dimensions in column order.
var dimensions = []dimension{deviceType, audienceSegment, keywordTheme, contentType, intentStage, timeOfDay}
