package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
)

// Transaction is one unit of ledger movement. Records are append-only: a
// reversal produces a new REVERSAL-typed row linked through ReversalOfID;
// only the state flag (plus an audit suffix on the description) of the
// original row is ever mutated.
type Transaction struct {
	ID        uuid.UUID               `json:"id"`
	Reference string                  `json:"reference"`
	Type      domain.OperationType    `json:"type"`
	State     domain.TransactionState `json:"state"`
	Amount    decimal.Decimal         `json:"amount"`
	Currency  string                  `json:"currency"`

	SourceAccountID *int64 `json:"source_account_id,omitempty"`
	DestAccountID   *int64 `json:"dest_account_id,omitempty"`

	// Counterparty identification when the movement crosses the switch.
	ExternalAccount string `json:"external_account,omitempty"`
	ExternalBankID  string `json:"external_bank_id,omitempty"`

	// Balance snapshots taken at the moment each leg was applied. An internal
	// transfer carries both: the source view and the destination view.
	ResultingBalance     *decimal.Decimal `json:"resulting_balance,omitempty"`
	ResultingBalanceDest *decimal.Decimal `json:"resulting_balance_dest,omitempty"`

	ReversalOfID *uuid.UUID `json:"reversal_of_id,omitempty"`

	Description string    `json:"description,omitempty"`
	Channel     string    `json:"channel"`
	CreatedAt   time.Time `json:"created_at"`
}

// BalanceFor returns the snapshot relevant to the viewing account. The
// destination of an internal transfer sees its own resulting balance, not the
// source's.
func (t *Transaction) BalanceFor(viewerAccountID int64) decimal.Decimal {
	if t.DestAccountID != nil && *t.DestAccountID == viewerAccountID && t.ResultingBalanceDest != nil {
		return *t.ResultingBalanceDest
	}
	if t.ResultingBalance != nil {
		return *t.ResultingBalance
	}
	return decimal.Zero
}

// Account is the projection of a core-accounts record this service needs.
type Account struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	HolderName  string          `json:"holder_name"`
	Balance     decimal.Decimal `json:"balance"`
	AccountType string          `json:"account_type"`
}
