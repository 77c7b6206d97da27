package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("approval_rate", "must be within [%v, %v]", 0, 1)

	assert.Equal(t, `invalid parameter "approval_rate": must be within [0, 1]`, err.Error())
	assert.ErrorIs(t, err, ErrConfiguration)

	wrapped := fmt.Errorf("credit_card: %w", err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, "approval_rate", cfgErr.Param)
}

func TestEmptyPopulationError(t *testing.T) {
	err := NewEmptyPopulationError("applications", "cardholders", map[string]int{
		"cardholders": 0,
		"accounts":    0,
	})

	assert.Equal(t, "stage applications: required collection cardholders is empty (accounts=0, cardholders=0)", err.Error())
	assert.ErrorIs(t, err, ErrEmptyPopulation)
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func TestGenerationTimeout_UnwrapsCause(t *testing.T) {
	err := &GenerationTimeout{Generator: "marketing", Stage: "funnel_rows", Cause: context.DeadlineExceeded}

	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "funnel_rows")
}

func TestReferentialError(t *testing.T) {
	err := &ReferentialError{Child: "accounts.ApplicationID", Parent: "applications", Key: "APP_00000001"}
	assert.ErrorIs(t, err, ErrReferential)
	assert.Equal(t, `accounts.ApplicationID references missing applications key "APP_00000001"`, err.Error())
}
