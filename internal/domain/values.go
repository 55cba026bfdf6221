package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts are decimal values with a fixed USD currency. Direction is always
// encoded by the operation type; amounts themselves are strictly positive.

// ValidAmount reports whether d is usable as a transaction amount.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive()
}

// FormatAmount renders an amount the way it travels on the wire (2 dp).
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ValidReference reports whether a caller-supplied correlation token is usable
// as-is. The switch requires 36-char UUID-style instruction ids.
func ValidReference(ref string) bool {
	if len(ref) != 36 {
		return false
	}
	_, err := uuid.Parse(ref)
	return err == nil
}

// NewReference generates a fresh correlation token.
func NewReference() string {
	return uuid.NewString()
}

// NewMessageID builds a switch message id with the given prefix, e.g.
// "MSG-1a2b3c4d" or "MSG-REV-1a2b3c4d".
func NewMessageID(prefix string) string {
	return fmt.Sprintf("%s-%.8s", prefix, uuid.NewString())
}
