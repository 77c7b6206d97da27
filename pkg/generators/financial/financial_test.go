package financial

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumTransactions = 4000
	cfg.NumProducts = 300
	cfg.NumCustomers = 200
	return cfg
}

func generate(t *testing.T, cfg Config, seed int64) (*models.Dataset, error) {
	t.Helper()
	g, err := New(cfg, nil)
	require.NoError(t, err)
	return g.Generate(context.Background(), randstream.New(seed))
}

func mustTable(t *testing.T, ds *models.Dataset, name string) *models.Table {
	t.Helper()
	tbl, ok := ds.Table(name)
	require.True(t, ok, "missing table %s", name)
	return tbl
}

func share(values []any, want string) float64 {
	var n int
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

func TestGenerate_TablesAndReferences(t *testing.T) {
	ds, err := generate(t, smallConfig(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"product_master", "sales_transactions"}, ds.Names())
	products := mustTable(t, ds, TableProducts)
	sales := mustTable(t, ds, TableTransactions)
	assert.Equal(t, 300, products.Len())
	assert.Equal(t, 4000, sales.Len())
	require.NoError(t, assembler.CheckReferences(sales, "ProductID", products, "ProductID"))

	assert.Equal(t, "PROD-00001", products.Value(0, "ProductID"))
	for i := 0; i < sales.Len(); i++ {
		assert.Regexp(t, regexp.MustCompile(`^ORD-\d{6}$`), sales.Value(i, "TransactionID"))
		assert.Regexp(t, regexp.MustCompile(`^CUST-\d{5}$`), sales.Value(i, "CustomerID"))
	}
}

func TestGenerate_Reproducible(t *testing.T) {
	a, err := generate(t, smallConfig(), 5)
	require.NoError(t, err)
	b, err := generate(t, smallConfig(), 5)
	require.NoError(t, err)

	for _, name := range a.Names() {
		assert.Equal(t, mustTable(t, a, name).Rows, mustTable(t, b, name).Rows)
	}
}

func TestGenerate_DerivedColumns(t *testing.T) {
	cfg := smallConfig()
	cfg.Markups = MarginProfile["Variable"]
	ds, err := generate(t, cfg, 2)
	require.NoError(t, err)

	sales := mustTable(t, ds, TableTransactions)
	var losses int
	var prev time.Time
	for i := 0; i < sales.Len(); i++ {
		date := sales.Value(i, "TransactionDate").(time.Time)
		assert.False(t, date.Before(cfg.StartDate))
		assert.False(t, date.After(cfg.EndDate))
		assert.False(t, date.Before(prev), "not sorted by date")
		prev = date
		assert.Equal(t, int64(date.Year()), sales.Value(i, "Year"))

		amount := sales.Value(i, "SalesAmount").(decimal.Decimal)
		cogs := sales.Value(i, "CostOfGoodsSold").(decimal.Decimal)
		profit := sales.Value(i, "Profit").(decimal.Decimal)
		assert.True(t, amount.IsPositive())
		assert.True(t, amount.Sub(cogs).Equal(profit), "row %d", i)

		rate := sales.Value(i, "MarginRate").(float64)
		if profit.IsNegative() {
			assert.LessOrEqual(t, rate, 0.0)
			losses++
		} else {
			assert.GreaterOrEqual(t, rate, 0.0)
		}
	}
	assert.Less(t, float64(losses)/float64(sales.Len()), 0.1)
}

func TestGenerate_Seasonality(t *testing.T) {
	monthly := func(pattern string) map[time.Month]int {
		cfg := smallConfig()
		cfg.Seasonality = SeasonalityPattern[pattern]
		ds, err := generate(t, cfg, 3)
		require.NoError(t, err)
		counts := map[time.Month]int{}
		for _, v := range mustTable(t, ds, TableTransactions).Values("TransactionDate") {
			counts[v.(time.Time).Month()]++
		}
		return counts
	}
	avg := func(counts map[time.Month]int, months []time.Month) float64 {
		var n int
		for _, m := range months {
			n += counts[m]
		}
		return float64(n) / float64(len(months))
	}

	standard := monthly("Standard (Q4 Heavy)")
	assert.Greater(t, avg(standard, q4), 1.5*avg(standard, q1))

	summerPeak := monthly("Summer Peak")
	assert.Greater(t, avg(summerPeak, summer), avg(summerPeak, winter))

	winterPeak := monthly("Winter Peak")
	assert.Greater(t, avg(winterPeak, winter), avg(winterPeak, summer))
}

func TestGenerate_Focus(t *testing.T) {
	cfg := smallConfig()
	cfg.CategoryWeights = CategoryFocus["Technology Heavy"]
	cfg.DivisionWeights = DivisionFocus["Corporate Heavy"]
	ds, err := generate(t, cfg, 4)
	require.NoError(t, err)

	categoryShare := share(mustTable(t, ds, TableProducts).Values("CorporateMarketingCategory"), CategoryTechnology)
	assert.InDelta(t, 0.6, categoryShare, 0.08)

	sales := mustTable(t, ds, TableTransactions)
	assert.InDelta(t, 0.4, share(sales.Values("Division"), "Corporate"), 0.05)
	for i := 0; i < sales.Len(); i++ {
		assert.Contains(t, departments[sales.Value(i, "Division").(string)], sales.Value(i, "Department"))
	}
}

func TestGenerate_EmptyPopulations(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		collection string
	}{
		{"no products", func(c *Config) { c.NumProducts = 0 }, TableProducts},
		{"no customers", func(c *Config) { c.NumCustomers = 0 }, "customers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(&cfg)
			_, err := generate(t, cfg, 1)

			var empty *apperrors.EmptyPopulationError
			require.ErrorAs(t, err, &empty)
			assert.Equal(t, "transactions", empty.Stage)
			assert.Equal(t, tt.collection, empty.Collection)
		})
	}
}

func TestTransactionDate_Uniform(t *testing.T) {
	rng := randstream.New(1)
	start, end := temporal.Date(2024, time.March, 1), temporal.Date(2024, time.March, 1)
	date, days := transactionDate(rng, start, end, SeasonalityPattern["Even Distribution"])
	assert.Equal(t, start, date)
	assert.Zero(t, days)

	end = temporal.Date(2024, time.March, 31)
	for i := 0; i < 200; i++ {
		date, days = transactionDate(rng, start, end, SeasonalityPattern["Standard (Q4 Heavy)"])
		assert.Equal(t, start.AddDate(0, 0, days), date)
		assert.False(t, date.After(end))
	}
}

func TestBulkDiscount(t *testing.T) {
	tests := []struct {
		quantity int
		want     float64
	}{
		{1, 1},
		{2, 0.96},
		{5, 0.9},
		{10, 0.85},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, bulkDiscount(tt.quantity), 1e-9, "quantity %d", tt.quantity)
	}
}

func TestTrends(t *testing.T) {
	cost, price := trends(CategoryTechnology, 1)
	assert.InDelta(t, 0.85, cost, 1e-9)
	assert.InDelta(t, 0.8, price, 1e-9)

	cost, price = trends(CategorySupplies, 0.5)
	assert.InDelta(t, 1.05, cost, 1e-9)
	assert.InDelta(t, 1.06, price, 1e-9)

	cost, price = trends(CategoryFurniture, 0)
	assert.Equal(t, 1.0, cost)
	assert.Equal(t, 1.0, price)
}

func TestStrategyFor_Consumables(t *testing.T) {
	rng := randstream.New(7)
	for i := 0; i < 200; i++ {
		assert.Contains(t, []string{StrategyCore, StrategyLegacy}, strategyFor(rng, ClassConsumables))
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EndDate = cfg.StartDate.AddDate(0, 0, -1)
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.Markups.Furniture = Band{Min: 1.5, Max: 1.2}
	var cerr *apperrors.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "margin_profile", cerr.Param)

	assert.NoError(t, DefaultConfig().Validate())
}

func TestRegistry(t *testing.T) {
	g, err := generators.New(Key, map[string]any{
		"num_transactions": 1000,
		"num_products":     50,
		"num_customers":    100,
		"division_focus":   "West Heavy",
		"seasonality":      "Even Distribution",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Financial Statements", g.Info().DisplayName)

	ds, err := g.Generate(context.Background(), randstream.New(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, share(mustTable(t, ds, TableTransactions).Values("Division"), "West"), 0.06)
}
