// Package tax simulates a tax preparation franchise: a roster of office
// locations and the returns filed through them over several filing seasons.
package tax

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// Table names.
var (
	TableLocations = models.TableName("Location")
	TableFilings   = models.TableName("Filing")
)

var info = generators.Info{
	Key:         Key,
	DisplayName: "Tax Data",
	Description: "Tax filing data with locations, returns and customer information",
}

// Generator produces the tax dataset.
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
		Stage("locations", r.buildLocations).
		Stage("filings", r.buildFilings).
		Run(ctx)
	return generators.Finish(ds, err)
}

type run struct {
	cfg    Config
	rng    *randstream.Stream
	logger *zap.Logger

	locations    []location
	locationKeys *assembler.KeySet
}

func (r *run) buildLocations(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("locations")
	ids := newLocationIDs()
	r.locationKeys = assembler.NewKeySet(TableLocations)

	t := models.NewTable(TableLocations,
		models.Col("Location_ID", models.ColumnTypeString),
		models.Col("Location_Name", models.ColumnTypeString),
		models.Col("City", models.ColumnTypeString),
		models.Col("State", models.ColumnTypeString),
		models.Col("Zip_Code", models.ColumnTypeString),
		models.Col("Region", models.ColumnTypeString),
		models.Col("Location_Type", models.ColumnTypeString),
		models.Col("Target_Returns_Season", models.ColumnTypeInt),
	)

	for i := 0; i < r.cfg.NumLocations; i++ {
		loc := newLocation(rng, ids, r.cfg.States)
		r.locations = append(r.locations, loc)
		r.locationKeys.Add(loc.ID)
		t.Append(loc.ID, loc.Name, loc.City, loc.State, loc.Zip, loc.Region, loc.Type, loc.Target)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildFilings(ctx context.Context, ds *models.Dataset) error {
	if r.cfg.NumFilings > 0 {
		if err := assembler.RequireNonEmpty(ds, "filings", TableLocations, len(r.locations)); err != nil {
			return err
		}
	}

	rng := r.rng.Derive("filings")
	customers := newCustomerRegistry(r.cfg.ReturningRatio)

	t := models.NewTable(TableFilings,
		models.Col("Filing_ID", models.ColumnTypeString),
		models.Col("Location_ID", models.ColumnTypeString),
		models.Col("Filing_Date", models.ColumnTypeDate),
		models.Col("Tax_Year", models.ColumnTypeInt),
		models.Col("Service_Fee_USD", models.ColumnTypeMoney),
		models.Col("Filing_Status", models.ColumnTypeString),
		models.Col("Adjusted_Gross_Income", models.ColumnTypeInt),
		models.Col("Refund_Owed_Amount_USD", models.ColumnTypeMoney),
		models.Col("Schedule_C_Used", models.ColumnTypeString),
		models.Col("Return_Complexity", models.ColumnTypeString),
		models.Col("Customer_Zip_Code", models.ColumnTypeString),
		models.Col("Customer_State", models.ColumnTypeString),
		models.Col("Customer_Type", models.ColumnTypeString),
		models.Col("Lead_Source", models.ColumnTypeString),
	).SortBy("Filing_Date")

	for i := 0; i < r.cfg.NumFilings; i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		f := newFiling(rng, i+1, r.locations, customers, r.cfg)
		r.locationKeys.MustResolve(TableFilings, f.LocationID)
		t.Append(f.ID, f.LocationID, f.Date, f.TaxYear, f.ServiceFee, f.Status, f.AGI, f.RefundOwed,
			yesNo(f.ScheduleC), f.Complexity, f.CustomerZip, f.CustomerState, f.CustomerType, f.LeadSource)
	}
	ds.Add(t)

	r.logger.Debug("Generated filings",
		zap.Int("count", t.Len()),
		zap.Int("customers", customers.size()))
	return nil
}
