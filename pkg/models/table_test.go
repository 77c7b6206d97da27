package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{"Cardholder", "cardholders"},
		{"Application", "applications"},
		{"Account", "accounts"},
		{"Transaction", "transactions"},
		{"CompanyProfile", "company_profiles"},
		{"NetworkConnection", "network_connections"},
		{"Location", "locations"},
		{"Filing", "filings"},
		{"SalesTransaction", "sales_transactions"},
		{"support ticket", "support_tickets"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.entity))
		})
	}
}

func TestTable_AppendAndLookup(t *testing.T) {
	tbl := NewTable("accounts",
		Col("AccountID", ColumnTypeString),
		NullCol("ActivationDate", ColumnTypeDate),
		FloatCol("Rate", 4),
	).SortBy("AccountID")

	tbl.Append("ACC_1", nil, 0.5)
	tbl.Append("ACC_2", "x", 0.25)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"AccountID", "ActivationDate", "Rate"}, tbl.ColumnNames())
	assert.Nil(t, tbl.Value(0, "ActivationDate"))
	assert.Equal(t, []any{0.5, 0.25}, tbl.Values("Rate"))
	assert.Equal(t, -1, tbl.ColumnIndex("Missing"))
	assert.Nil(t, tbl.Values("Missing"))
	assert.Equal(t, []string{"AccountID"}, tbl.SortKey)

	assert.Panics(t, func() { tbl.Append("only one") })
}

func TestDataset_PreservesInsertionOrder(t *testing.T) {
	ds := NewDataset("credit_card", 42)
	ds.Add(NewTable("cardholders"))
	ds.Add(NewTable("applications"))
	ds.Add(NewTable("accounts"))

	replaced := NewTable("applications", Col("ApplicationID", ColumnTypeString))
	replaced.Append("APP_1")
	ds.Add(replaced)

	assert.Equal(t, []string{"cardholders", "applications", "accounts"}, ds.Names())
	assert.Equal(t, []string{"accounts", "applications", "cardholders"}, ds.SortedNames())

	got, ok := ds.Table("applications")
	require.True(t, ok)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, 1, ds.RowCount())
	assert.Equal(t, map[string]int{"cardholders": 0, "applications": 1, "accounts": 0}, ds.Counts())
	assert.Equal(t, "credit_card (seed 42): cardholders=0, applications=1, accounts=0", ds.Summary())
}

func TestIsValidColumnType(t *testing.T) {
	assert.True(t, IsValidColumnType(ColumnTypeMoney))
	assert.False(t, IsValidColumnType("decimal"))
}

func TestGenerationRunStatus_IsTerminal(t *testing.T) {
	assert.False(t, GenerationRunRunning.IsTerminal())
	assert.True(t, GenerationRunPartial.IsTerminal())
}
