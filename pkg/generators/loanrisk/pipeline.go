// Package loanrisk generates company risk profiles with a year of monthly
// risk history and a network of counterparty connections.
package loanrisk

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

var (
	TableCompanyProfiles    = models.TableName("CompanyProfile")
	TableHistoricalRisk     = "historical_risk"
	TableNetworkConnections = models.TableName("NetworkConnection")
)

var info = generators.Info{
	Key:         Key,
	DisplayName: "Loan & Risk Performance",
	Description: "Company risk profiles, monthly risk history and risk propagation across counterparty connections",
}

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
	r := &run{cfg: g.cfg, rng: rng}

	asm := assembler.New(ds, g.logger).Stage("company_profiles", r.buildCompanies)
	if g.cfg.IncludeHistorical {
		asm.Stage("historical_risk", r.buildHistory)
	}
	if g.cfg.IncludeNetwork {
		asm.Stage("network_connections", r.buildNetwork)
	}
	return generators.Finish(ds, asm.Run(ctx))
}

type run struct {
	cfg       Config
	rng       *randstream.Stream
	companies []company
	keys      *assembler.KeySet
}

func (r *run) buildCompanies(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("company_profiles")
	r.keys = assembler.NewKeySet(TableCompanyProfiles)

	t := models.NewTable(TableCompanyProfiles,
		models.Col("id", models.ColumnTypeInt),
		models.Col("name", models.ColumnTypeString),
		models.Col("industry", models.ColumnTypeString),
		models.Col("country", models.ColumnTypeString),
		models.Col("financialRisk", models.ColumnTypeInt),
		models.Col("complianceRisk", models.ColumnTypeInt),
		models.Col("reputationalRisk", models.ColumnTypeInt),
		models.Col("operationalRisk", models.ColumnTypeInt),
		models.Col("compositeRisk", models.ColumnTypeInt),
	)
	for i := 0; i < r.cfg.NumCompanies; i++ {
		c := newCompany(rng, i, r.cfg)
		r.companies = append(r.companies, c)
		r.keys.Add(companyKey(c.ID))
		t.Append(c.ID, c.Name, c.Industry, c.Country, c.FinancialRisk, c.ComplianceRisk,
			c.ReputationalRisk, c.OperationalRisk, c.CompositeRisk)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildHistory(ctx context.Context, ds *models.Dataset) error {
	if err := assembler.RequireNonEmpty(ds, "historical_risk", TableCompanyProfiles, len(r.companies)); err != nil {
		return err
	}
	rng := r.rng.Derive("historical_risk")

	t := models.NewTable(TableHistoricalRisk,
		models.Col("companyId", models.ColumnTypeInt),
		models.Col("companyName", models.ColumnTypeString),
		models.Col("industry", models.ColumnTypeString),
		models.Col("country", models.ColumnTypeString),
		models.Col("month", models.ColumnTypeString),
		models.Col("monthIndex", models.ColumnTypeInt),
		models.Col("riskScore", models.ColumnTypeInt),
	)
	for _, c := range r.companies {
		for _, m := range riskHistory(rng, c, r.cfg.Drift) {
			t.Append(c.ID, c.Name, c.Industry, c.Country, m.Month, m.MonthIndex, m.RiskScore)
		}
	}
	ds.Add(t)
	return nil
}

func (r *run) buildNetwork(ctx context.Context, ds *models.Dataset) error {
	if len(r.companies) < 2 {
		return apperrors.NewEmptyPopulationError("network_connections", "connection targets", ds.Counts())
	}
	rng := r.rng.Derive("network_connections")

	t := models.NewTable(TableNetworkConnections,
		models.Col("sourceId", models.ColumnTypeInt),
		models.Col("sourceName", models.ColumnTypeString),
		models.Col("targetId", models.ColumnTypeInt),
		models.Col("targetName", models.ColumnTypeString),
		models.FloatCol("connectionStrength", 2),
		models.Col("riskPropagation", models.ColumnTypeInt),
	)
	for _, c := range r.companies {
		n := rng.Int(r.cfg.MinConnections, r.cfg.MaxConnections)
		for i := 0; i < n; i++ {
			conn := newConnection(rng, c, r.companies)
			r.keys.MustResolve(TableNetworkConnections, companyKey(conn.TargetID))
			t.Append(conn.SourceID, c.Name, conn.TargetID, r.companies[conn.TargetID].Name,
				conn.Strength, conn.Propagation)
		}
	}
	ds.Add(t)
	return nil
}

func companyKey(id int) string {
	return strconv.Itoa(id)
}
