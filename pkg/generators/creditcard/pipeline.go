// Package creditcard simulates card applications from a cardholder roster
// through approval, account activation, transactions and a delinquency
// snapshot per active account.
package creditcard

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// Table names.
var (
	TableCardholders  = models.TableName("Cardholder")
	TableApplications = models.TableName("Application")
	TableAccounts     = models.TableName("Account")
	TableTransactions = models.TableName("Transaction")
)

var info = generators.Info{
	Key:         Key,
	DisplayName: "Credit Card Applications",
	Description: "Credit card applications, approvals, account activation, transactions and delinquency snapshots",
}

// Generator produces the credit card dataset.
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
		Stage("cardholders", r.buildCardholders).
		Stage("applications", r.buildApplications).
		Stage("accounts", r.buildAccounts).
		Stage("transactions", r.buildTransactions).
		Stage("delinquency_snapshot", r.buildSnapshots).
		Run(ctx)
	return generators.Finish(ds, err)
}

// run carries the records of one invocation between stages.
type run struct {
	cfg    Config
	rng    *randstream.Stream
	logger *zap.Logger

	cardholders  []cardholder
	applications []application
	accounts     []account
	appKeys      *assembler.KeySet
	accountKeys  *assembler.KeySet
}

func (r *run) buildCardholders(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("cardholders")
	ids := generators.NewIDAllocator(rng, "CUST")

	t := models.NewTable(TableCardholders,
		models.Col("CardholderID", models.ColumnTypeString),
		models.Col("HomeState", models.ColumnTypeString),
	)
	for i := 0; i < r.cfg.NumCardholders; i++ {
		c := newCardholder(rng, ids.Next(), r.cfg.States)
		r.cardholders = append(r.cardholders, c)
		t.Append(c.ID, c.HomeState)
	}
	ds.Add(t)
	return nil
}

func (r *run) buildApplications(ctx context.Context, ds *models.Dataset) error {
	n := temporal.DaysBetween(r.cfg.StartDate, r.cfg.EndDate) * r.cfg.AppsPerDay
	if n > 0 {
		if err := assembler.RequireNonEmpty(ds, "applications", TableCardholders, len(r.cardholders)); err != nil {
			return err
		}
	}

	rng := r.rng.Derive("applications")
	ids := generators.NewIDAllocator(rng, "APP")
	r.appKeys = assembler.NewKeySet(TableApplications)

	t := models.NewTable(TableApplications,
		models.Col("ApplicationID", models.ColumnTypeString),
		models.Col("CardholderID", models.ColumnTypeString),
		models.Col("ApplicationDate", models.ColumnTypeTimestamp),
		models.Col("ApplicantState", models.ColumnTypeString),
		models.Col("ApplicationStatus", models.ColumnTypeString),
		models.Col("ApplicationStyle", models.ColumnTypeString),
	).SortBy("ApplicationDate")

	r.applications = make([]application, 0, n)
	for i := 0; i < n; i++ {
		app := newApplication(rng, ids.Next(), r.cardholders, r.cfg)
		r.applications = append(r.applications, app)
		r.appKeys.Add(app.ID)
		t.Append(app.ID, app.CardholderID, app.Date, app.State, app.Status, app.Style)
	}
	ds.Add(t)

	r.logger.Debug("Generated applications", zap.Int("count", n))
	return nil
}

func (r *run) buildAccounts(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("accounts")
	ids := generators.NewIDAllocator(rng, "ACC")
	r.accountKeys = assembler.NewKeySet(TableAccounts)

	for _, app := range r.applications {
		if app.Status != StatusApproved {
			continue
		}
		r.appKeys.MustResolve(TableAccounts, app.ID)
		acc := newAccount(rng, ids.Next(), app, r.cfg)
		r.accounts = append(r.accounts, acc)
		r.accountKeys.Add(acc.ID)
	}
	ds.Add(r.accountsTable())
	return nil
}

func (r *run) buildTransactions(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("transactions")
	ids := generators.NewIDAllocator(rng, "TRX")

	t := models.NewTable(TableTransactions,
		models.Col("TransactionID", models.ColumnTypeString),
		models.Col("AccountID", models.ColumnTypeString),
		models.Col("CardholderID", models.ColumnTypeString),
		models.Col("TransactionDate", models.ColumnTypeTimestamp),
		models.Col("TransactionAmount", models.ColumnTypeMoney),
		models.Col("TransactionType", models.ColumnTypeString),
	).SortBy("TransactionDate")

	for _, acc := range r.accounts {
		if acc.ActivationStatus != Activated || acc.ActivationDate == nil {
			continue
		}
		r.accountKeys.MustResolve(TableTransactions, acc.ID)
		for i := 0; i < r.cfg.TransactionsPerAccount; i++ {
			trx := newTransaction(rng, ids.Next(), acc, r.cfg.EndDate)
			t.Append(trx.ID, trx.AccountID, trx.CardholderID, trx.Date, trx.Amount, trx.Type)
		}
	}
	ds.Add(t)
	return nil
}

// buildSnapshots is the one post-pass that writes back into accounts. It runs
// once, after transactions, and rebuilds the accounts table in place.
func (r *run) buildSnapshots(ctx context.Context, ds *models.Dataset) error {
	rng := r.rng.Derive("delinquency_snapshot")
	for i := range r.accounts {
		acc := &r.accounts[i]
		if acc.Status != AccountActive || acc.ActivationDate == nil {
			continue
		}
		s := newSnapshot(rng, *acc, r.cfg)
		acc.Snapshot = &s
	}
	ds.Add(r.accountsTable())
	return nil
}

func (r *run) accountsTable() *models.Table {
	t := models.NewTable(TableAccounts,
		models.Col("AccountID", models.ColumnTypeString),
		models.Col("ApplicationID", models.ColumnTypeString),
		models.Col("CardholderID", models.ColumnTypeString),
		models.Col("AccountOpenDate", models.ColumnTypeDate),
		models.Col("ActivationStatus", models.ColumnTypeString),
		models.NullCol("ActivationDate", models.ColumnTypeDate),
		models.Col("AccountStatus", models.ColumnTypeString),
		models.Col("CreditLimit", models.ColumnTypeMoney),
		models.NullCol("SnapshotDate", models.ColumnTypeDate),
		models.NullCol("OutstandingBalanceAtSnapshot", models.ColumnTypeMoney),
		models.NullCol("MinimumPaymentDueAtSnapshot", models.ColumnTypeMoney),
		models.NullCol("PaymentDueDateAtSnapshot", models.ColumnTypeDate),
		models.NullCol("DelinquencyStatusAtSnapshot", models.ColumnTypeString),
		models.NullCol("DaysPastDueAtSnapshot", models.ColumnTypeInt),
	).SortBy("AccountOpenDate")

	for _, acc := range r.accounts {
		var activation any
		if acc.ActivationDate != nil {
			activation = *acc.ActivationDate
		}
		var snapDate, balance, minPay, due, status, dpd any
		if s := acc.Snapshot; s != nil {
			snapDate, balance, minPay, status, dpd = s.Date, s.Balance, s.MinPayment, s.Status, s.DaysPastDue
			if s.DueDate != nil {
				due = *s.DueDate
			}
		}
		t.Append(acc.ID, acc.ApplicationID, acc.CardholderID, acc.OpenDate, acc.ActivationStatus,
			activation, acc.Status, acc.CreditLimit, snapDate, balance, minPay, due, status, dpd)
	}
	return t
}
