// Package service holds the transaction coordinator: the saga that orders
// balance legs and switch calls so that every failure path either applied
// nothing or compensated what it applied.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/ledger"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// fallbackHolderName labels a counterparty whose enrichment lookup failed.
// Enrichment is decorative; its failure never blocks a movement.
const fallbackHolderName = "Cliente Arcbank"

// reversalAuditSuffix is appended to the original description when the record
// is flipped to a terminal state.
const reversalAuditSuffix = " [R]"

// unknownBankID is the target bank recorded when the caller names only the
// beneficiary account.
const unknownBankID = "UNKNOWN"

// Store is the persistence surface the coordinator drives.
type Store interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, id uuid.UUID, state domain.TransactionState, resultingBalance, resultingBalanceDest *decimal.Decimal) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	CreateReversalAndMarkOriginal(ctx context.Context, reversal *models.Transaction, originalID uuid.UUID, originalState domain.TransactionState, originalDescription string) error
	ListTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error)
}

// Directory resolves account identity against the core accounts service.
type Directory interface {
	Account(ctx context.Context, accountID int64) (*models.Account, error)
	FindByNumber(ctx context.Context, number string) (*models.Account, error)
}

// Ledger applies signed balance deltas with non-negativity enforcement.
type Ledger interface {
	Adjust(ctx context.Context, accountID int64, delta decimal.Decimal) (decimal.Decimal, error)
	AdjustPair(ctx context.Context, sourceID, destID int64, amount decimal.Decimal) (*ledger.PairResult, error)
}

// ReferenceGuard answers whether a reference was already applied.
type ReferenceGuard interface {
	Seen(ctx context.Context, reference string) (*models.Transaction, bool, error)
	Mark(ctx context.Context, reference string)
}

// Coordinator runs every money movement as a small saga: claim the reference,
// apply the legs in the order that keeps failures compensable, finalize the
// record.
type Coordinator struct {
	store    Store
	accounts Directory
	ledger   Ledger
	gateway  gateway.Gateway
	guard    ReferenceGuard

	bankCode       string
	reversalWindow time.Duration

	locks *keyedMutex
}

// NewCoordinator wires the saga dependencies. reversalWindow bounds how long
// after creation a transaction stays reversible.
func NewCoordinator(store Store, accounts Directory, lg Ledger, gw gateway.Gateway, guard ReferenceGuard, bankCode string, reversalWindow time.Duration) *Coordinator {
	if reversalWindow <= 0 {
		reversalWindow = 24 * time.Hour
	}
	return &Coordinator{
		store:          store,
		accounts:       accounts,
		ledger:         lg,
		gateway:        gw,
		guard:          guard,
		bankCode:       bankCode,
		reversalWindow: reversalWindow,
		locks:          newKeyedMutex(),
	}
}

// holderName looks up the display name for a local account, falling back to a
// generic label when the directory is unavailable.
func (c *Coordinator) holderName(ctx context.Context, accountID int64) string {
	acct, err := c.accounts.Account(ctx, accountID)
	if err != nil || acct.HolderName == "" {
		zap.L().Debug("holder name enrichment failed", zap.Int64("account_id", accountID), zap.Error(err))
		return fallbackHolderName
	}
	return acct.HolderName
}

// accountNumber resolves the account number for a local account, falling back
// to the raw numeric id.
func (c *Coordinator) accountNumber(ctx context.Context, accountID int64) string {
	acct, err := c.accounts.Account(ctx, accountID)
	if err != nil || acct.Number == "" {
		return strconv.FormatInt(accountID, 10)
	}
	return acct.Number
}

// releaseClaim drops a PENDING claim after a cleanly unwound saga. A failed
// delete is logged and left to the stuck-pending sweep.
func (c *Coordinator) releaseClaim(ctx context.Context, id uuid.UUID, reference string) {
	if err := c.store.DeleteTransaction(ctx, id); err != nil {
		zap.L().Error("failed to release transaction claim",
			zap.String("transaction_id", id.String()),
			zap.String("reference", reference),
			zap.Error(err),
		)
	}
}

func ptr[T any](v T) *T { return &v }
