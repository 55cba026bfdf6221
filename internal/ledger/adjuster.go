// Package ledger applies signed balance deltas through the external account
// service while enforcing non-negativity.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// BalanceStore is the account-service surface the adjuster needs.
type BalanceStore interface {
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
}

// Adjuster is the sole balance mutator in this service. Each Adjust call is a
// read-compute-write against one account; cross-account atomicity is handled
// by AdjustPair's compensation, not by the store.
type Adjuster struct {
	store BalanceStore
}

func NewAdjuster(store BalanceStore) *Adjuster {
	return &Adjuster{store: store}
}

// Adjust applies a signed delta to one account and returns the new balance.
// A missing account or unreadable balance is a business rejection; a resulting
// balance below zero fails with insufficient funds and leaves the stored
// balance untouched.
func (a *Adjuster) Adjust(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := a.store.Balance(ctx, accountID)
	if err != nil {
		if models.IsBusiness(err) {
			return decimal.Zero, err
		}
		zap.L().Error("balance read failed", zap.Int64("account_id", accountID), zap.Error(err))
		return decimal.Zero, models.NewBusinessError(fmt.Sprintf("could not validate account %d", accountID))
	}

	newBalance := current.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, models.ErrInsufficientFunds
	}

	if err := a.store.SetBalance(ctx, accountID, newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance of account %d: %w", accountID, err)
	}
	return newBalance, nil
}

// PairResult carries the balance snapshot of each leg of a two-account move.
type PairResult struct {
	SourceBalance decimal.Decimal
	DestBalance   decimal.Decimal
}

// AdjustPair debits source then credits dest as one logical unit. When the
// credit leg fails after the debit succeeded, the debit is compensated by
// crediting the source back; only a failed compensation surfaces as a fatal
// inconsistency for the reconciliation sweep to catch.
func (a *Adjuster) AdjustPair(ctx context.Context, sourceID, destID int64, amount decimal.Decimal) (*PairResult, error) {
	sourceBalance, err := a.Adjust(ctx, sourceID, amount.Neg())
	if err != nil {
		return nil, err
	}

	destBalance, err := a.Adjust(ctx, destID, amount)
	if err != nil {
		if _, compErr := a.Adjust(ctx, sourceID, amount); compErr != nil {
			zap.L().Error("FATAL: debit applied, credit failed, compensation failed",
				zap.Int64("source_account_id", sourceID),
				zap.Int64("dest_account_id", destID),
				zap.String("amount", amount.String()),
				zap.NamedError("credit_error", err),
				zap.NamedError("compensation_error", compErr),
			)
			return nil, fmt.Errorf("ledger inconsistency: debit of account %d not compensated after credit failure: %w", sourceID, err)
		}
		return nil, err
	}

	return &PairResult{SourceBalance: sourceBalance, DestBalance: destBalance}, nil
}
