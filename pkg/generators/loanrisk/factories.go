package loanrisk

import (
	"math"

	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type company struct {
	ID               int
	Name             string
	Industry         string
	Country          string
	FinancialRisk    int
	ComplianceRisk   int
	ReputationalRisk int
	OperationalRisk  int
	CompositeRisk    int
}

type riskMonth struct {
	CompanyID  int
	Month      string
	MonthIndex int
	RiskScore  int
}

type connection struct {
	SourceID    int
	TargetID    int
	Strength    float64
	Propagation int
}

func newCompany(rng *randstream.Stream, id int, cfg Config) company {
	c := company{
		ID:       id,
		Name:     randstream.Choice(rng, companyPrefixes) + randstream.Choice(rng, companySuffixes),
		Industry: randstream.Pick(rng, cfg.Industries),
		Country:  randstream.Choice(rng, countries),

		FinancialRisk:    rng.Int(20, 90),
		ComplianceRisk:   rng.Int(15, 85),
		ReputationalRisk: rng.Int(10, 95),
		OperationalRisk:  rng.Int(25, 88),
	}
	weighted := float64(c.FinancialRisk)*0.3 + float64(c.ComplianceRisk)*0.25 +
		float64(c.ReputationalRisk)*0.2 + float64(c.OperationalRisk)*0.25
	c.CompositeRisk = min(100, int(math.Round(weighted*rng.Uniform(0.9, 1.1))))
	return c
}

// riskHistory walks the composite score through twelve months, clamped to
// [1, 100].
func riskHistory(rng *randstream.Stream, c company, drift Drift) []riskMonth {
	out := make([]riskMonth, 0, len(months))
	score := c.CompositeRisk
	for i, m := range months {
		d := drift.Late
		if i <= 6 {
			d = drift.Early
		}
		score = min(100, max(1, score+rng.Int(-8, 8)+d))
		out = append(out, riskMonth{CompanyID: c.ID, Month: m, MonthIndex: i + 1, RiskScore: score})
	}
	return out
}

// newConnection links source to a different company from the roster. The
// roster must hold at least two companies.
func newConnection(rng *randstream.Stream, source company, roster []company) connection {
	j := rng.Index(len(roster) - 1)
	if j >= source.ID {
		j++
	}
	strength := math.Round(rng.Float64()*100) / 100
	return connection{
		SourceID:    source.ID,
		TargetID:    roster[j].ID,
		Strength:    strength,
		Propagation: int(math.Round(strength * float64(source.CompositeRisk))),
	}
}
