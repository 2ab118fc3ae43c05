// Package budget implements fail-closed pre-dispatch budget
// enforcement: a differential-privacy style epsilon budget and a
// token-bucket rate budget.
//
// Both budgets are process-scoped, initialized at startup, and mutate
// monotonically (spent epsilon only grows). An action is rejected with
// BudgetExceededError before any agent dispatch when either budget is
// insufficient.
package budget

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// Receipt records a budget spend for audit.
type Receipt struct {
	ID               string    `json:"id"`
	CostEpsilon      float64   `json:"cost_epsilon"`
	RemainingEpsilon float64   `json:"remaining_epsilon"`
	Timestamp        time.Time `json:"timestamp"`
}

// PrivacyBudget is a monotonically decreasing epsilon budget guarded
// by a single mutual-exclusion domain.
type PrivacyBudget struct {
	mu      sync.Mutex
	epsilon float64
	spent   float64
	clock   func() time.Time
}

// NewPrivacyBudget creates a budget with total epsilon capacity.
func NewPrivacyBudget(epsilon float64) *PrivacyBudget {
	return &PrivacyBudget{epsilon: epsilon, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (b *PrivacyBudget) WithClock(clock func() time.Time) *PrivacyBudget {
	b.clock = clock
	return b
}

// Spend reserves cost epsilon. Fail-closed: a non-positive cost or an
// insufficient remainder rejects without spending anything.
func (b *PrivacyBudget) Spend(cost float64) (*Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := b.epsilon - b.spent
	if cost <= 0 || cost > remaining {
		return nil, &contracts.BudgetExceededError{Kind: "privacy", Requested: cost, Remaining: remaining}
	}

	b.spent += cost
	return &Receipt{
		ID:               uuid.New().String(),
		CostEpsilon:      cost,
		RemainingEpsilon: b.epsilon - b.spent,
		Timestamp:        b.clock().UTC(),
	}, nil
}

// Remaining returns the unspent epsilon.
func (b *PrivacyBudget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epsilon - b.spent
}

// RateBudget bounds evaluation admission with a token bucket.
type RateBudget struct {
	limiter *rate.Limiter
}

// NewRateBudget allows perSecond sustained evaluations with the given
// burst.
func NewRateBudget(perSecond float64, burst int) *RateBudget {
	return &RateBudget{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow consumes one token or rejects.
func (b *RateBudget) Allow() error {
	if !b.limiter.Allow() {
		return &contracts.BudgetExceededError{Kind: "rate", Requested: 1, Remaining: b.limiter.Tokens()}
	}
	return nil
}

// Enforcer bundles the pre-dispatch budget checks. Nil components are
// skipped, so deployments can run with only one budget or neither.
type Enforcer struct {
	privacy     *PrivacyBudget
	rateBudget  *RateBudget
	epsilonCost float64
}

// NewEnforcer creates an enforcer; either budget may be nil.
func NewEnforcer(privacy *PrivacyBudget, rateBudget *RateBudget, epsilonCostPerEvaluation float64) *Enforcer {
	return &Enforcer{privacy: privacy, rateBudget: rateBudget, epsilonCost: epsilonCostPerEvaluation}
}

// Check runs the rate check first (cheap), then reserves epsilon.
func (e *Enforcer) Check() (*Receipt, error) {
	if e == nil {
		return nil, nil
	}
	if e.rateBudget != nil {
		if err := e.rateBudget.Allow(); err != nil {
			return nil, err
		}
	}
	if e.privacy != nil {
		return e.privacy.Spend(e.epsilonCost)
	}
	return nil, nil
}

// PrivacyRemaining reports the unspent epsilon, or -1 when no privacy
// budget is configured.
func (e *Enforcer) PrivacyRemaining() float64 {
	if e == nil || e.privacy == nil {
		return -1
	}
	return e.privacy.Remaining()
}
