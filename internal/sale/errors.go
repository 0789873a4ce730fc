package sale

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("sale: not found")
	ErrDuplicateDocument    = errors.New("sale: a sale with this document number already exists")
	ErrPriceAlreadyAssigned = errors.New("sale: price already assigned")
	ErrPriceNotAssigned     = errors.New("sale: price must be assigned before registering payments")
	ErrSaleClosed           = errors.New("sale: sale is finalized or cancelled")
)

// ValidationError rejects an input field. Nothing is written when it is
// returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Guard names a precondition on entering a state.
type Guard string

const (
	GuardRomaneoDocument Guard = "romaneo_document_attached"
	GuardBalanceSettled  Guard = "balance_settled"
)

// TransitionError is returned when a state change is not in the transition
// table (Guard is empty) or when one of its guards does not hold.
type TransitionError struct {
	From  State
	To    State
	Guard Guard
}

func (e *TransitionError) Error() string {
	if e.Guard == "" {
		return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
	}

	return fmt.Sprintf("transition %s -> %s blocked by guard %s", e.From, e.To, e.Guard)
}
