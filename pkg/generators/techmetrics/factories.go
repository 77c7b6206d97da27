package techmetrics

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/finalize"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// ============================================================================
// Enumerations
// ============================================================================

// EventType is a product incident or remediation that moves a day's metrics.
type EventType string

const (
	EventMajorBug         EventType = "MAJOR_BUG"
	EventPerformanceIssue EventType = "PERFORMANCE_ISSUE"
	EventMajorFix         EventType = "MAJOR_FIX"
	EventPerformanceFix   EventType = "PERFORMANCE_FIX"
)

var eventTypes = []EventType{EventMajorBug, EventMajorFix, EventPerformanceIssue, EventPerformanceFix}

func (e EventType) bad() bool  { return e == EventMajorBug || e == EventPerformanceIssue }
func (e EventType) good() bool { return e == EventMajorFix || e == EventPerformanceFix }

// impact draws the multiplier the event applies to users, signups,
// conversion and session length.
func (e EventType) impact(rng *randstream.Stream) float64 {
	switch {
	case e.bad():
		return rng.Uniform(0.7, 0.9)
	case e.good():
		return rng.Uniform(1.05, 1.15)
	default:
		return 1
	}
}

var (
	productNames = []string{
		"QuantumLeap Platform", "MobileConnect App", "AI Insights Engine", "Core Infra Suite",
		"DataStream API", "SecureAuth Service", "Project Phoenix",
	}
	productCategories = []string{
		"B2B SaaS", "Mobile App", "AI Service", "Core Infrastructure", "API Service", "Security", "Internal Platform",
	}
	productManagers = []string{"Alice Wonderland", "Bob The Builder", "Charlie Chaplin", "Diana Prince"}
	marketSegments  = []string{"Enterprise", "SMB", "FinTech", "Healthcare", "Developer", "Internal"}
	priorities      = []string{"High", "Medium", "Low"}

	teamNames     = []string{"Platform Core", "Mobile Innovators", "AI Research Guild", "Ops Guardians", "Customer Success NA", "Frontend Wizards"}
	teamLeads     = []string{"Charles Xavier", "Diana Prince", "Clark Kent", "Bruce Wayne"}
	methodologies = []string{"Agile Scrum", "Kanban", "Scrumban"}
	teamRegions   = []string{"NA", "EMEA", "APAC", "Global"}

	campaignTypes = []string{
		"Digital Advertising", "Content Marketing", "Email Campaign", "Launch Event", "Webinar Series", "Partner Promotion",
	}

	feedbackSources  = []string{"In-App Survey", "Email Survey", "Support Interaction", "App Store Review", "Website Form"}
	negativeTopics   = []string{"Performance", "Bug", "Usability", "Missing Feature", "Support", "Price"}
	positiveTopics   = []string{"Ease of Use", "FeatureA", "Value", "Support", "Speed"}
	issueCategories  = []string{"Bug Report", "Feature Request", "Billing Inquiry", "Usability Problem", "Account Access", "How-To Question"}
	ticketSeverities = []randstream.Weighted[string]{
		{Value: "Critical", Weight: 0.05},
		{Value: "High", Weight: 0.15},
		{Value: "Medium", Weight: 0.50},
		{Value: "Low", Weight: 0.30},
	}
	ticketStatuses = []randstream.Weighted[string]{
		{Value: "Open", Weight: 0.1},
		{Value: "In Progress", Weight: 0.2},
		{Value: "Resolved", Weight: 0.5},
		{Value: "Closed", Weight: 0.2},
	}

	baseNPSWeights  = []float64{0.05, 0.05, 0.05, 0.05, 0.1, 0.1, 0.15, 0.2, 0.2, 0.25, 0.3}
	baseCSATWeights = []float64{0.05, 0.1, 0.15, 0.3, 0.4}
)

const (
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
	SentimentPositive = "Positive"
)

// ============================================================================
// Dimension records
// ============================================================================

type product struct {
	ID       string
	Name     string
	Category string
	Manager  string
	Launch   time.Time
	Segment  string
	Priority string
	// Growth is the daily active users gained per day since launch.
	Growth    float64
	Events    map[string]incident
	Campaigns []campaign

	engine temporal.Engine
}

// incident is one product event, keyed in product.Events by dayKey.
type incident struct {
	Date   time.Time
	Type   EventType
	Impact float64
}

func (i incident) event(productID string) temporal.EventWindow {
	impact := temporal.Constant(i.Impact)
	return temporal.EventWindow{
		Window: temporal.Window{Name: string(i.Type), Start: i.Date, End: i.Date},
		Keys:   []string{productID},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume:     impact,
			temporal.Conversion: impact,
			engagement:          impact,
		},
	}
}

func dayKey(date time.Time) string {
	return date.Format("2006-01-02")
}

// baseName is the product name without its version suffix.
func (p product) baseName() string {
	name, _, _ := strings.Cut(p.Name, " v")
	return name
}

type team struct {
	ID          string
	Name        string
	Lead        string
	Methodology *string
	Region      string
}

type campaign struct {
	ID        string
	Name      string
	Window    temporal.Window
	Type      string
	ProductID string
	Spend     float64
	// Lift scales users, signups and conversion while the campaign runs.
	Lift float64
}

func (c campaign) event() temporal.EventWindow {
	lift := temporal.Constant(c.Lift)
	return temporal.EventWindow{
		Window: c.Window,
		Keys:   []string{c.ProductID},
		Effects: map[temporal.Metric]temporal.Shape{
			temporal.Volume:     lift,
			temporal.Conversion: lift,
		},
	}
}

func newProduct(rng *randstream.Stream, i int, cfg Config) product {
	p := product{
		ID:       fmt.Sprintf("PROD%03d", i+1),
		Name:     productNames[i%len(productNames)],
		Category: randstream.Choice(rng, productCategories),
		Manager:  randstream.Choice(rng, productManagers),
		Segment:  randstream.Choice(rng, marketSegments),
		Priority: randstream.Choice(rng, priorities),
		Events:   make(map[string]incident),
	}
	if i%2 == 0 {
		p.Name += " v" + strconv.Itoa(rng.Int(1, 3))
	}

	latest := Reference.AddDate(0, 0, -launchLeadDays)
	offset := rng.Int(launchLeadDays, max(launchLeadDays, temporal.DaysBetween(cfg.StartDate, latest)))
	launch := temporal.ClampTime(cfg.StartDate.AddDate(0, 0, offset), latest)
	p.Launch = temporal.ClampTime(launch, cfg.EndDate)
	p.Growth = rng.Uniform(0.5, 5)

	// Events on the same day overwrite each other.
	lo, hi := eventMarginDays, max(eventMarginDays, cfg.days()-eventMarginDays)
	for n := rng.Int(1, 4); n > 0; n-- {
		date := temporal.TruncateDay(cfg.StartDate.AddDate(0, 0, rng.Int(lo, hi)))
		kind := randstream.Choice(rng, eventTypes)
		p.Events[dayKey(date)] = incident{Date: date, Type: kind, Impact: kind.impact(rng)}
	}
	return p
}

// buildEngine composes the launch trend, the weekend dip, the campaigns and
// the incidents of p. Campaigns must already be attached.
func (p *product) buildEngine(end time.Time) {
	span := max(0, temporal.DaysBetween(p.Launch, end))
	e := temporal.Engine{
		Trend: temporal.Trend{
			Kind:     temporal.LinearTrend,
			Origin:   p.Launch,
			SpanDays: span,
			From:     1,
			To:       1 + float64(span)*p.Growth/launchBaseUsers,
		},
		Weekly: usageWeek,
	}
	for _, c := range p.Campaigns {
		e.Events = append(e.Events, c.event())
	}
	for _, key := range slices.Sorted(maps.Keys(p.Events)) {
		e.Events = append(e.Events, p.Events[key].event(p.ID))
	}
	p.engine = e
}

func newTeam(rng *randstream.Stream, i int) team {
	name := teamNames[i%len(teamNames)]
	t := team{
		ID:   fmt.Sprintf("TEAM%03d", i+1),
		Name: name,
		Lead: randstream.Choice(rng, teamLeads),
	}
	// Only engineering teams record a methodology.
	if strings.Contains(name, "Dev") || strings.Contains(name, "Guild") || strings.Contains(name, "Core") {
		m := randstream.Choice(rng, methodologies)
		t.Methodology = &m
	}
	t.Region = randstream.Choice(rng, teamRegions)
	return t
}

var campaignNameTemplates = []func(product string, quarter int) string{
	func(p string, _ int) string { return p + " Growth Push" },
	func(p string, q int) string { return fmt.Sprintf("%s Awareness Q%d", p, q) },
	func(p string, _ int) string { return p + " User Acquisition" },
	func(p string, _ int) string { return p + " Feature Launch" },
}

// newCampaign targets a product from the roster, which the caller guarantees
// is non-empty. The campaign lasts 30 to 90 days and ends inside the window.
func newCampaign(rng *randstream.Stream, i int, roster []product, cfg Config) campaign {
	target := randstream.Choice(rng, roster)
	duration := rng.Int(30, 90)
	start := cfg.StartDate.AddDate(0, 0, rng.Int(0, max(0, cfg.days()-duration-1)))
	end := temporal.ClampTime(start.AddDate(0, 0, duration), cfg.EndDate)

	quarter := temporal.QuarterOf(start).Quarter
	name := randstream.Choice(rng, campaignNameTemplates)(target.baseName(), quarter)
	return campaign{
		ID:        fmt.Sprintf("CAMP%03d", i+1),
		Name:      name,
		Window:    temporal.Window{Name: name, Start: start, End: end},
		Type:      randstream.Choice(rng, campaignTypes),
		ProductID: target.ID,
		Spend:     finalize.Round(rng.Uniform(5000, 100000), 2),
		Lift:      rng.Uniform(1.1, 1.5),
	}
}

// customerHash pseudonymizes a customer ordinal.
func customerHash(i int) string {
	sum := sha1.Sum([]byte(strconv.Itoa(i)))
	return "CUST_HASH_" + hex.EncodeToString(sum[:])[:10]
}

// ============================================================================
// Daily product metrics
// ============================================================================

// day is one product's metrics on one date plus the context the feedback and
// ticket logs condition on.
type day struct {
	Date      time.Time
	ProductID string
	Campaign  *string
	Event     EventType

	ActiveUsers     int
	NewSignups      int
	AvgSession      float64
	FeatureA        float64
	FeatureB        float64
	ConversionRate  float64
	Uptime          float64
	BugsOpened      int
	BugsResolved    int
	APIErrorRate    float64
	PageLoadMillis  int
}

// noisy draws base + N(0, sigma) floored at zero.
func noisy(rng *randstream.Stream, base, sigma float64) float64 {
	return math.Max(0, base+rng.Normal(0, sigma))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// launchBaseUsers is the daily active user count on launch day.
const launchBaseUsers = 50

// engagement scales session length. Only incidents move it.
const engagement temporal.Metric = "engagement"

// usageWeek dips weekends to about 70% and jitters every day by 10%.
var usageWeek = temporal.Weekly{Weekday: 1, Saturday: 0.7, Sunday: 0.7, Spread: 0.1}

// activeCampaign returns the first campaign for the product running on date.
func activeCampaign(campaigns []campaign, date time.Time) *campaign {
	for i := range campaigns {
		if campaigns[i].Window.Contains(date) {
			return &campaigns[i]
		}
	}
	return nil
}

// newDay computes the metrics of p on date, which is on or after launch. The
// product engine carries the launch trend, weekend dip, campaign lift and
// incident impact.
func newDay(rng *randstream.Stream, p product, date time.Time) day {
	e := p.engine
	d := day{Date: date, ProductID: p.ID}
	if inc, ok := p.Events[dayKey(date)]; ok {
		d.Event = inc.Type
	}
	if c := activeCampaign(p.Campaigns, date); c != nil {
		id := c.ID
		d.Campaign = &id
	}
	sinceLaunch := float64(temporal.DaysBetween(p.Launch, date))

	users := e.Evaluate(launchBaseUsers, date, p.ID, temporal.Volume, temporal.Identity) * e.Weekly.Jitter(rng)
	d.ActiveUsers = int(temporal.ApplyNoise(rng, users, 0.05, 0))
	conversion := e.Factor(date, p.ID, temporal.Conversion)

	bugSpike, apiSpike, uptimeDip := 0, 0.0, 0.0
	switch d.Event {
	case EventMajorBug:
		bugSpike = rng.Int(5, 15)
	case EventPerformanceIssue:
		apiSpike = rng.Uniform(2, 5)
		uptimeDip = rng.Uniform(0.1, 1)
	}

	active := float64(d.ActiveUsers)
	d.NewSignups = int(noisy(rng, active*0.01, active*0.005) * conversion)
	d.AvgSession = finalize.Round(math.Max(5, noisy(rng, 10, 2)*e.Factor(date, p.ID, engagement)), 2)
	d.FeatureA = finalize.Round(math.Min(1, noisy(rng, 0.1+sinceLaunch*0.0005, 0.05)), 4)
	d.FeatureB = finalize.Round(math.Min(1, noisy(rng, 0.05+sinceLaunch*0.0002, 0.03)), 4)
	d.ConversionRate = finalize.Round(clamp(noisy(rng, 0.02, 0.005)*conversion, 0.005, 0.1), 4)
	d.Uptime = finalize.Round(clamp(noisy(rng, 99.95, 0.05)-uptimeDip, 98, 100), 3)
	d.BugsOpened = int(noisy(rng, 1, 0.5)) + bugSpike
	d.BugsResolved = int(noisy(rng, 0.8, 0.4))
	d.APIErrorRate = finalize.Round(clamp(noisy(rng, 0.2, 0.1)+apiSpike, 0, 10), 2)
	d.PageLoadMillis = max(200, int(noisy(rng, 1500, 100)))
	return d
}

// troubled reports whether customers had a bad day.
func (d day) troubled() bool {
	return d.Event.bad() || d.Uptime < 99.5 || d.APIErrorRate > 2
}

// buoyant reports whether a fix or campaign lifted the day.
func (d day) buoyant() bool {
	return d.Event.good() || d.Campaign != nil
}

// ============================================================================
// Feedback and support tickets
// ============================================================================

type feedback struct {
	ID        string
	Timestamp time.Time
	ProductID string
	Customer  string
	Source    string
	NPS       int
	CSAT      int
	CES       int
	Text      string
	Sentiment string
	Topics    *string
}

// shiftWeights moves mass toward the low scores (worse) or the high scores
// (better). Indexes below pivot are the low scores.
func shiftWeights(base []float64, pivot int, worse, better bool) []float64 {
	w := make([]float64, len(base))
	for i, b := range base {
		low := i < pivot
		switch {
		case worse && low, better && !low:
			b *= 1.8
		case worse, better:
			b *= 0.6
		}
		w[i] = math.Max(0.01, b)
	}
	return w
}

// Sentiment buckets an NPS score.
func Sentiment(nps int) string {
	switch {
	case nps <= 6:
		return SentimentNegative
	case nps <= 8:
		return SentimentNeutral
	default:
		return SentimentPositive
	}
}

func newFeedback(rng *randstream.Stream, id string, d day, customers []string) feedback {
	f := feedback{
		ID:        id,
		Timestamp: rng.Instant(d.Date, endOfDay(d.Date)),
		ProductID: d.ProductID,
		Customer:  randstream.Choice(rng, customers),
		Source:    randstream.Choice(rng, feedbackSources),
	}

	worse := d.troubled()
	better := !worse && d.buoyant()
	f.NPS = rng.WeightedIndex(shiftWeights(baseNPSWeights, 7, worse, better))
	f.CSAT = 1 + rng.WeightedIndex(shiftWeights(baseCSATWeights, 3, worse, better))
	f.CES = rng.Int(1, 7)
	f.Sentiment = Sentiment(f.NPS)

	var topics []string
	switch f.Sentiment {
	case SentimentNegative:
		topics = append(topics, randstream.Choice(rng, negativeTopics))
		if d.BugsOpened > 2 && rng.Bool(0.3) {
			topics = append(topics, "Bug")
		}
		if d.AvgSession < 8 && rng.Bool(0.3) {
			topics = append(topics, "Usability")
		}
		if d.PageLoadMillis > 2000 && rng.Bool(0.3) {
			topics = append(topics, "Performance")
		}
	case SentimentPositive:
		topics = append(topics, randstream.Choice(rng, positiveTopics))
		if d.FeatureA > 0.5 && rng.Bool(0.3) {
			topics = append(topics, "FeatureA")
		}
	}

	about := "general use"
	if topics = dedupe(topics); len(topics) > 0 {
		joined := strings.Join(topics, ",")
		f.Topics = &joined
		about = joined
	}
	f.Text = fmt.Sprintf("%s feedback about %s. Product: %s", f.Sentiment, about, d.ProductID)
	return f
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

type ticket struct {
	ID               string
	Created          time.Time
	ProductID        string
	Customer         string
	TeamID           *string
	Category         string
	Severity         string
	Status           string
	Resolved         *time.Time
	HoursToResolve   *float64
	FirstResponseMin *float64
}

func newTicket(rng *randstream.Stream, id string, d day, customers []string, teams []team, windowEnd time.Time) ticket {
	t := ticket{
		ID:        id,
		Created:   rng.Instant(d.Date, endOfDay(d.Date)),
		ProductID: d.ProductID,
		Customer:  randstream.Choice(rng, customers),
		Severity:  randstream.Pick(rng, ticketSeverities),
		Category:  randstream.Choice(rng, issueCategories),
	}
	if d.BugsOpened > 2 && rng.Bool(0.5) {
		t.Category = "Bug Report"
	} else if d.Event == EventMajorBug && rng.Bool(0.6) {
		t.Category = "Bug Report"
	}

	t.Status = randstream.Pick(rng, ticketStatuses)
	switch t.Status {
	case "Resolved", "Closed":
		delay := rng.Uniform(0.5, 48)
		if t.Severity == "Critical" {
			delay = rng.Uniform(0.2, 6)
		}
		resolved := temporal.ClampTime(t.Created.Add(time.Duration(delay*float64(time.Hour))).Truncate(time.Second), endOfDay(windowEnd))
		hours := finalize.Round(math.Max(0.1, resolved.Sub(t.Created).Hours()), 2)
		first := math.Min(finalize.Round(rng.Uniform(5, math.Min(120, hours*60)), 1), hours*60)
		t.Resolved, t.HoursToResolve, t.FirstResponseMin = &resolved, &hours, &first
	case "In Progress":
		if rng.Bool(0.9) {
			first := finalize.Round(rng.Uniform(5, 120), 1)
			t.FirstResponseMin = &first
		}
	}

	if len(teams) > 0 && rng.Bool(0.8) {
		id := randstream.Choice(rng, teams).ID
		t.TeamID = &id
	}
	return t
}

// feedbackCount and ticketCount scale with the day's active users.
func feedbackCount(rng *randstream.Stream, d day) int {
	return int(float64(d.ActiveUsers) * rng.Uniform(0.0001, 0.0005))
}

func ticketCount(rng *randstream.Stream, d day) int {
	return int(float64(d.ActiveUsers)*rng.Uniform(0.0002, 0.0008) + float64(d.BugsOpened)*rng.Uniform(0.1, 0.3))
}

func endOfDay(date time.Time) time.Time {
	return temporal.TruncateDay(date).Add(24*time.Hour - time.Second)
}
