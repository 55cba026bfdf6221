package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// Get loads a single transaction by id.
func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return c.store.GetTransaction(ctx, id)
}

// StatementEntry is one movement as seen from a particular account: the
// balance snapshot is the viewer's, and the external status vocabulary
// applies.
type StatementEntry struct {
	Transaction models.Transaction `json:"transaction"`
	Status      string             `json:"status"`
	Balance     decimal.Decimal    `json:"balance"`
}

// ListByAccount returns every movement touching the account, newest first,
// with viewer-relative balance snapshots.
func (c *Coordinator) ListByAccount(ctx context.Context, accountID int64) ([]StatementEntry, error) {
	txns, err := c.store.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries := make([]StatementEntry, 0, len(txns))
	for _, txn := range txns {
		entries = append(entries, StatementEntry{
			Transaction: txn,
			Status:      domain.ExternalStatus(txn.State),
			Balance:     txn.BalanceFor(accountID),
		})
	}
	return entries, nil
}

// StatusByReference reports the externally visible status of a reference.
// Unknown references report NOT_FOUND rather than an error, since callers use
// this to probe whether a transfer landed.
func (c *Coordinator) StatusByReference(ctx context.Context, reference string) (string, error) {
	txn, err := c.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			return domain.StatusNotFound, nil
		}
		return "", err
	}
	return domain.ExternalStatus(txn.State), nil
}

// ReturnReasons exposes the switch's reason-code catalog.
func (c *Coordinator) ReturnReasons(ctx context.Context) []gateway.ReturnReason {
	return c.gateway.ReturnReasons(ctx)
}
