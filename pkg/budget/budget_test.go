package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

func TestPrivacyBudgetSpend(t *testing.T) {
	b := NewPrivacyBudget(1.0).WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	receipt, err := b.Spend(0.3)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.InDelta(t, 0.7, receipt.RemainingEpsilon, 1e-9)
	assert.InDelta(t, 0.7, b.Remaining(), 1e-9)
}

func TestPrivacyBudgetExhaustion(t *testing.T) {
	b := NewPrivacyBudget(0.5)

	_, err := b.Spend(0.4)
	require.NoError(t, err)

	_, err = b.Spend(0.2)
	require.Error(t, err)
	assert.True(t, contracts.IsBudgetExceeded(err))

	// Failed spend must not consume budget.
	assert.InDelta(t, 0.1, b.Remaining(), 1e-9)

	_, err = b.Spend(0.1)
	assert.NoError(t, err)
}

func TestPrivacyBudgetRejectsNonPositiveCost(t *testing.T) {
	b := NewPrivacyBudget(1.0)
	_, err := b.Spend(0)
	assert.True(t, contracts.IsBudgetExceeded(err))
	_, err = b.Spend(-0.5)
	assert.True(t, contracts.IsBudgetExceeded(err))
}

func TestPrivacyBudgetMonotonic(t *testing.T) {
	b := NewPrivacyBudget(1.0)
	prev := b.Remaining()
	for i := 0; i < 5; i++ {
		_, err := b.Spend(0.1)
		require.NoError(t, err)
		cur := b.Remaining()
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestRateBudgetBurst(t *testing.T) {
	b := NewRateBudget(1, 2)

	require.NoError(t, b.Allow())
	require.NoError(t, b.Allow())

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, contracts.IsBudgetExceeded(err))
}

func TestEnforcerCombined(t *testing.T) {
	e := NewEnforcer(NewPrivacyBudget(0.25), NewRateBudget(100, 100), 0.1)

	receipt, err := e.Check()
	require.NoError(t, err)
	require.NotNil(t, receipt)

	_, err = e.Check()
	require.NoError(t, err)

	// Third check exceeds epsilon 0.25.
	_, err = e.Check()
	require.Error(t, err)
	assert.True(t, contracts.IsBudgetExceeded(err))
	assert.InDelta(t, 0.05, e.PrivacyRemaining(), 1e-9)
}

func TestEnforcerNilComponents(t *testing.T) {
	var e *Enforcer
	_, err := e.Check()
	assert.NoError(t, err)

	e = NewEnforcer(nil, nil, 0.1)
	_, err = e.Check()
	assert.NoError(t, err)
	assert.Equal(t, -1.0, e.PrivacyRemaining())
}
