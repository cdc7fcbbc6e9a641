package fault

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Sentinel failures shared across the service. Business conflicts are
// distinct from transient version conflicts: the former are decided by the
// caller, the latter are retried internally and only surface once the retry
// budget is spent.
var (
	ErrTableUnavailable  = errors.New("table unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrBillAlreadyExists = errors.New("bill already exists for order")
	ErrBillNotIssued     = errors.New("no bill issued for order")
	ErrInvalidDiscount   = errors.New("invalid discount")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrVersionConflict   = errors.New("version conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvariant         = errors.New("invariant violation")
)

// ValidationError reports rejected input. It never follows a state change.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Problems)
}

// Validation wraps a list of problems into a ValidationError, or returns nil
// when the list is empty.
func Validation(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// StockError carries the ingredient that could not be covered.
type StockError struct {
	IngredientID uuid.UUID
	Requested    string
	Available    string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %s: requested %s, available %s",
		e.IngredientID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// InsufficientStock builds a StockError for the given ingredient.
func InsufficientStock(ingredientID uuid.UUID, requested, available string) error {
	return &StockError{IngredientID: ingredientID, Requested: requested, Available: available}
}

// TransitionError reports an attempt to move an entity from a status that
// does not permit the requested operation.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// IllegalTransition builds a TransitionError.
func IllegalTransition(entity, from, to string) error {
	return &TransitionError{Entity: entity, From: from, To: to}
}

// Invariant reports a broken internal contract. These are programming errors,
// not business failures, and are surfaced as internal errors.
func Invariant(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// HTTPStatus maps a failure to the response code handlers should use.
func HTTPStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidDiscount):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTableUnavailable),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrBillAlreadyExists),
		errors.Is(err, ErrBillNotIssued),
		errors.Is(err, ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, ErrVersionConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
