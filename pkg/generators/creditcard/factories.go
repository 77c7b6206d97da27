package creditcard

import (
	"math"
	"time"

	"github.com/ekaya-inc/ekaya-datagen/pkg/finalize"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/temporal"
)

// ============================================================================
// Enumerations
// ============================================================================

const (
	StatusApproved = "Approved"
	StatusRejected = "Rejected"

	Activated    = "Activated"
	NotActivated = "Not Activated"

	AccountActive   = "Active"
	AccountInactive = "Inactive"

	DelinquencyCurrent    = "Current"
	DelinquencyNoBalance  = "Current (No Balance)"
	DelinquencyLowBalance = "Current (Low Balance)"
	DelinquencyTooNew     = "Current (Too New)"
	Delinquency30         = "30-59 DPD"
	Delinquency60         = "60-89 DPD"
	Delinquency90         = "90+ DPD"
)

var applicationStyles = []randstream.Weighted[string]{
	{Value: "Standard Application", Weight: 0.45},
	{Value: "Net Applications", Weight: 0.25},
	{Value: "New Applications", Weight: 0.20},
	{Value: "Activated New Accounts", Weight: 0.10},
}

var transactionTypes = []randstream.Weighted[string]{
	{Value: "Purchase", Weight: 0.75},
	{Value: "Payment", Weight: 0.15},
	{Value: "Fee", Weight: 0.05},
	{Value: "Return", Weight: 0.05},
}

// ============================================================================
// Records
// ============================================================================

type cardholder struct {
	ID        string
	HomeState string
}

type application struct {
	ID           string
	CardholderID string
	Date         time.Time
	State        string
	Status       string
	Style        string
}

type snapshot struct {
	Date        time.Time
	Balance     float64
	MinPayment  float64
	DueDate     *time.Time
	Status      string
	DaysPastDue int
}

type account struct {
	ID               string
	ApplicationID    string
	CardholderID     string
	OpenDate         time.Time
	ActivationStatus string
	ActivationDate   *time.Time
	Status           string
	CreditLimit      int
	Snapshot         *snapshot
}

type transaction struct {
	ID           string
	AccountID    string
	CardholderID string
	Date         time.Time
	Amount       float64
	Type         string
}

// ============================================================================
// Factories
// ============================================================================

func newCardholder(rng *randstream.Stream, id string, states []string) cardholder {
	return cardholder{ID: id, HomeState: randstream.Choice(rng, states)}
}

// newApplication draws one application against the cardholder roster. The
// caller guarantees the roster is non-empty.
func newApplication(rng *randstream.Stream, id string, roster []cardholder, cfg Config) application {
	holder := randstream.Choice(rng, roster)
	app := application{
		ID:           id,
		CardholderID: holder.ID,
		Date:         rng.Instant(cfg.StartDate, cfg.EndDate),
		State:        randstream.Choice(rng, cfg.States),
		Status:       StatusRejected,
	}
	if rng.Bool(cfg.ApprovalRate) {
		app.Status = StatusApproved
	}
	app.Style = randstream.Pick(rng, applicationStyles)
	return app
}

// newAccount opens an account for an approved application. Open and
// activation dates are delayed from the application and clamped to the
// window end.
func newAccount(rng *randstream.Stream, id string, app application, cfg Config) account {
	open := temporal.ClampTime(app.Date.AddDate(0, 0, rng.Int(1, 5)), cfg.EndDate)
	acc := account{
		ID:               id,
		ApplicationID:    app.ID,
		CardholderID:     app.CardholderID,
		OpenDate:         temporal.TruncateDay(open),
		ActivationStatus: NotActivated,
		Status:           AccountInactive,
	}
	if rng.Bool(cfg.ActivationRate) {
		activated := temporal.TruncateDay(temporal.ClampTime(open.AddDate(0, 0, rng.Int(1, 14)), cfg.EndDate))
		acc.ActivationStatus = Activated
		acc.ActivationDate = &activated
		acc.Status = AccountActive
	}
	acc.CreditLimit = randstream.Choice(rng, cfg.CreditLimits)
	return acc
}

func newTransaction(rng *randstream.Stream, id string, acc account, end time.Time) transaction {
	amount := math.Min(finalize.Round(rng.LogNormal(6.8, 0.8), 2), transactionAmountCap)
	typ := randstream.Pick(rng, transactionTypes)
	if typ == "Payment" {
		amount = -amount
	}
	return transaction{
		ID:           id,
		AccountID:    acc.ID,
		CardholderID: acc.CardholderID,
		Date:         rng.Instant(*acc.ActivationDate, end),
		Amount:       amount,
		Type:         typ,
	}
}

// ============================================================================
// Delinquency snapshot
// ============================================================================

// newSnapshot takes the point-in-time delinquency measurement for an active
// account. The snapshot falls at least snapshotMaturationDays after
// activation; accounts too young for that are reported as of the window end.
func newSnapshot(rng *randstream.Stream, acc account, cfg Config) snapshot {
	from := acc.ActivationDate.AddDate(0, 0, snapshotMaturationDays)
	if from.After(cfg.EndDate) {
		return snapshot{Date: temporal.TruncateDay(cfg.EndDate), Status: DelinquencyTooNew}
	}

	date := rng.Instant(from, cfg.EndDate)
	balance := finalize.Round(rng.Uniform(0, float64(acc.CreditLimit)*1.05), 2)
	return measure(rng, temporal.TruncateDay(date), balance, cfg.Delinquency)
}

// measure classifies a balance at date. The delinquency draw uses the rate of
// the snapshot's calendar quarter.
func measure(rng *randstream.Stream, date time.Time, balance float64, rates temporal.QuarterRates) snapshot {
	s := snapshot{Date: date, Balance: math.Max(0, balance), Status: DelinquencyNoBalance}

	switch {
	case s.Balance >= minBalanceForDelinquency:
		s.MinPayment = finalize.Round(math.Max(minPaymentFlat, s.Balance*minPaymentPercent), 2)
		s.DueDate = dueDate(rng, date)
		if rng.Bool(rates.At(date)) {
			roll := rng.Float64()
			switch {
			case roll < 0.7:
				s.DaysPastDue, s.Status = rng.Int(30, 59), Delinquency30
			case roll < 0.9:
				s.DaysPastDue, s.Status = rng.Int(60, 89), Delinquency60
			default:
				s.DaysPastDue, s.Status = rng.Int(90, 120), Delinquency90
			}
		} else {
			s.Status = DelinquencyCurrent
		}
	case s.Balance > 0:
		s.Status = DelinquencyLowBalance
		s.MinPayment = s.Balance
		s.DueDate = dueDate(rng, date)
	}
	return s
}

func dueDate(rng *randstream.Stream, date time.Time) *time.Time {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	due := first.AddDate(0, 0, rng.Int(20, 25))
	return &due
}

// IsDelinquent reports whether a snapshot status is 30 or more days past due.
func IsDelinquent(status string) bool {
	return status == Delinquency30 || status == Delinquency60 || status == Delinquency90
}
