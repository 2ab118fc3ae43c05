package contracts

import (
	"errors"
	"fmt"
)

// ExclusionReason explains why an agent produced no vote in a round.
type ExclusionReason string

const (
	ExclusionTimeout ExclusionReason = "timeout"
	ExclusionError   ExclusionReason = "error"
)

// ValidationError rejects a malformed action before any agent work
// begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid action: %s", e.Reason)
	}
	return fmt.Sprintf("invalid action: field %q: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BudgetExceededError rejects an action before dispatch when the
// privacy or rate budget is insufficient.
type BudgetExceededError struct {
	Kind      string // "privacy" | "rate"
	Requested float64
	Remaining float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded: requested %.4f, remaining %.4f", e.Kind, e.Requested, e.Remaining)
}

// IsBudgetExceeded reports whether err is a BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}

// ProofIntegrityError signals that a recomputed proof chain hash does
// not match a stored hash. It is fatal for the evaluation round that
// produced the chain: a result with a broken chain is never returned.
type ProofIntegrityError struct {
	Sequence uint64
	Reason   string
}

func (e *ProofIntegrityError) Error() string {
	return fmt.Sprintf("proof chain integrity violation at entry %d: %s", e.Sequence, e.Reason)
}

// IsProofIntegrityError reports whether err is a ProofIntegrityError.
func IsProofIntegrityError(err error) bool {
	var pe *ProofIntegrityError
	return errors.As(err, &pe)
}
