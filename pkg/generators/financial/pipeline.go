// Package financial simulates a product catalog and the sales transactions
// booked against it, with cost and price trends over the window.
package financial

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

const (
	TableProducts     = "product_master"
	TableTransactions = "sales_transactions"
)

var info = generators.Info{
	Key:         Key,
	DisplayName: "Financial Statements",
	Description: "Sales transactions and product master data",
}

// Generator produces the financial statements dataset.
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
		Stage("transactions", r.buildTransactions).
		Run(ctx)
	return generators.Finish(ds, err)
}

type run struct {
	cfg    Config
	rng    *randstream.Stream
	logger *zap.Logger

	catalog     []product
	productKeys *assembler.KeySet
}

func (r *run) buildProducts(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("products")
	ids := &generators.Sequence{Prefix: "PROD-", Width: 5}
	r.productKeys = assembler.NewKeySet(TableProducts)

	t := models.NewTable(TableProducts,
		models.Col("ProductID", models.ColumnTypeString),
		models.Col("CorporateMarketingCategory", models.ColumnTypeString),
		models.Col("ProductClass", models.ColumnTypeString),
		models.Col("BaseCost", models.ColumnTypeMoney),
		models.Col("BasePrice", models.ColumnTypeMoney),
	)
	for i := 0; i < r.cfg.NumProducts; i++ {
		p := newProduct(rng, ids.Next(), r.cfg)
		r.catalog = append(r.catalog, p)
		r.productKeys.Add(p.ID)
		t.Append(p.ID, p.Category, p.Class, p.BaseCost, p.BasePrice)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildTransactions(ctx context.Context, ds *models.Dataset) error {
	if r.cfg.NumTransactions > 0 {
		if err := assembler.RequireNonEmpty(ds, "transactions", TableProducts, len(r.catalog)); err != nil {
			return err
		}
		if err := assembler.RequireNonEmpty(ds, "transactions", "customers", r.cfg.NumCustomers); err != nil {
			return err
		}
	}

	rng := r.rng.Derive("transactions")
	customers := make([]string, r.cfg.NumCustomers)
	for i := range customers {
		customers[i] = fmt.Sprintf("CUST-%05d", i+1)
	}

	t := models.NewTable(TableTransactions,
		models.Col("TransactionID", models.ColumnTypeString),
		models.Col("TransactionDate", models.ColumnTypeDate),
		models.Col("ProductID", models.ColumnTypeString),
		models.Col("CustomerID", models.ColumnTypeString),
		models.Col("SalesAmount", models.ColumnTypeMoney),
		models.Col("CostOfGoodsSold", models.ColumnTypeMoney),
		models.Col("CorporateMarketingCategory", models.ColumnTypeString),
		models.Col("Division", models.ColumnTypeString),
		models.Col("Department", models.ColumnTypeString),
		models.Col("ProductClass", models.ColumnTypeString),
		models.Col("StrategyCategory", models.ColumnTypeString),
		models.Col("Profit", models.ColumnTypeMoney),
		models.FloatCol("MarginRate", 4),
		models.Col("Year", models.ColumnTypeInt),
	).SortBy("TransactionDate")

	var losses int
	for i := 0; i < r.cfg.NumTransactions; i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		trx := newTransaction(rng, i+1, r.catalog, customers, r.cfg)
		r.productKeys.MustResolve(TableTransactions, trx.ProductID)
		if trx.profit().IsNegative() {
			losses++
		}
		t.Append(trx.ID, trx.Date, trx.ProductID, trx.CustomerID, trx.Sales, trx.COGS, trx.Category,
			trx.Division, trx.Department, trx.Class, trx.Strategy, trx.profit(), trx.marginRate(), trx.Date.Year())
	}
	ds.Add(t)

	r.logger.Debug("Generated transactions",
		zap.Int("count", t.Len()),
		zap.Int("loss_making", losses))
	return nil
}
