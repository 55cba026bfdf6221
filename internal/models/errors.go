package models

import "errors"

// BusinessError marks a caller-fault rejection. The coordinator guarantees no
// net mutation survives one: either nothing was applied, or the applied leg
// was compensated before the error surfaced. Everything else (balance store or
// switch unreachable) is a technical error and travels as a wrapped plain
// error.
type BusinessError struct {
	Reason string
}

func (e *BusinessError) Error() string { return e.Reason }

// NewBusinessError builds a caller-fault error with a human-readable reason.
func NewBusinessError(reason string) error {
	return &BusinessError{Reason: reason}
}

// IsBusiness reports whether err is (or wraps) a business-rule rejection.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

var (
	ErrInsufficientFunds     = NewBusinessError("insufficient funds")
	ErrAccountNotFound       = NewBusinessError("account not found")
	ErrTransactionNotFound   = NewBusinessError("transaction not found")
	ErrSameAccountTransfer   = NewBusinessError("cannot transfer to the same account")
	ErrUnsupportedOperation  = NewBusinessError("unsupported operation type")
	ErrReversalWindowExpired = NewBusinessError("reversal window has expired")
	ErrAlreadyReversed       = NewBusinessError("transaction was already reversed or returned")
	ErrInvalidAmount         = NewBusinessError("amount must be positive")

	// ErrDuplicateReference is returned by the repository when an insert hits
	// the uniqueness constraint on reference. Callers treat it as "already
	// applied", never as a second mutation.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)
