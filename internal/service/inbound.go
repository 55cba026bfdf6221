package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
)

// InboundTransferRequest is a transfer delivered by the switch on behalf of
// another bank. Delivery is at-least-once; Reference is the dedup token.
type InboundTransferRequest struct {
	Reference string
	Amount    decimal.Decimal

	// Local beneficiary, as an account number from the wire or an
	// already-resolved id.
	CreditorAccount   string
	CreditorAccountID *int64

	DebtorName    string
	DebtorAccount string
	DebtorBankID  string
	Description   string
}

// ProcessInboundTransfer credits the local beneficiary of a transfer another
// bank sent us. A replayed reference acknowledges without touching balances.
func (c *Coordinator) ProcessInboundTransfer(ctx context.Context, req InboundTransferRequest) (*models.Transaction, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, models.ErrInvalidAmount
	}
	if !domain.ValidReference(req.Reference) {
		return nil, models.NewBusinessError("a well-formed reference is required for an inbound transfer")
	}

	unlock := c.locks.Lock(req.Reference)
	defer unlock()

	if stored, seen, err := c.guard.Seen(ctx, req.Reference); err != nil {
		return nil, err
	} else if seen {
		observability.IncrementDuplicateDelivery(string(domain.OpInboundInterbank))
		zap.L().Info("inbound transfer redelivered, acknowledging stored record",
			zap.String("reference", req.Reference),
		)
		return stored, nil
	}

	creditorID, err := c.resolveCreditor(ctx, req)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Reference:       req.Reference,
		Type:            domain.OpInboundInterbank,
		State:           domain.StatePending,
		Amount:          req.Amount,
		Currency:        domain.Currency,
		DestAccountID:   ptr(creditorID),
		ExternalAccount: req.DebtorAccount,
		ExternalBankID:  req.DebtorBankID,
		Description:     inboundDescription(req),
		Channel:         domain.ChannelSwitch,
	}

	stored, err := c.claim(ctx, txn)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}

	balance, err := c.ledger.Adjust(ctx, creditorID, req.Amount)
	if err != nil {
		c.releaseClaim(ctx, txn.ID, txn.Reference)
		observability.IncrementTransaction(string(domain.OpInboundInterbank), "failed")
		return nil, err
	}

	txn.ResultingBalance = ptr(balance)
	txn.State = domain.StateCompleted
	if err := c.store.CompleteTransaction(ctx, txn.ID, domain.StateCompleted, txn.ResultingBalance, nil); err != nil {
		return nil, err
	}

	observability.IncrementTransaction(string(domain.OpInboundInterbank), "completed")
	c.guard.Mark(ctx, req.Reference)
	return txn, nil
}

func (c *Coordinator) resolveCreditor(ctx context.Context, req InboundTransferRequest) (int64, error) {
	if req.CreditorAccountID != nil {
		return *req.CreditorAccountID, nil
	}
	if req.CreditorAccount == "" {
		return 0, models.NewBusinessError("creditor account is required for an inbound transfer")
	}
	acct, err := c.accounts.FindByNumber(ctx, req.CreditorAccount)
	if err != nil {
		if models.IsBusiness(err) {
			return 0, err
		}
		return 0, fmt.Errorf("resolve creditor account %s: %w", req.CreditorAccount, err)
	}
	return acct.ID, nil
}

func inboundDescription(req InboundTransferRequest) string {
	if req.Description != "" {
		return req.Description
	}
	debtor := req.DebtorName
	if debtor == "" {
		debtor = req.DebtorAccount
	}
	return fmt.Sprintf("Transfer received from %s", debtor)
}

// InboundReversalRequest is a return instruction delivered by the switch:
// either the counterparty sending back money we transferred out, or the
// counterparty pulling back money it transferred in. Amount is the returned
// amount from the wire, which may be less than the original.
type InboundReversalRequest struct {
	OriginalReference string
	ReturnReference   string
	Amount            decimal.Decimal
	Reason            string
	OriginatingBank   string
}

// ProcessInboundReversal settles a return delivered by the switch. Replayed
// return references and already-terminal originals acknowledge as success
// without a second mutation.
func (c *Coordinator) ProcessInboundReversal(ctx context.Context, req InboundReversalRequest) (*models.Transaction, error) {
	if !domain.ValidReference(req.ReturnReference) {
		return nil, models.NewBusinessError("a well-formed return reference is required")
	}
	if !domain.ValidAmount(req.Amount) {
		return nil, models.ErrInvalidAmount
	}

	unlock := c.locks.Lock(req.OriginalReference)
	defer unlock()

	if stored, seen, err := c.guard.Seen(ctx, req.ReturnReference); err != nil {
		return nil, err
	} else if seen {
		observability.IncrementDuplicateDelivery(string(domain.OpReversal))
		return stored, nil
	}

	original, err := c.store.GetTransactionByReference(ctx, req.OriginalReference)
	if err != nil {
		return nil, err
	}
	if original.State.Terminal() {
		// Already unwound through another delivery or a local request.
		observability.IncrementDuplicateDelivery(string(domain.OpReversal))
		zap.L().Info("inbound reversal for already-terminal original, acknowledging",
			zap.String("original_reference", req.OriginalReference),
			zap.String("state", string(original.State)),
		)
		return original, nil
	}
	if original.State != domain.StateCompleted {
		return nil, models.NewBusinessError("original transaction is not in a reversible state")
	}

	accountID, delta, err := inboundReversalDelta(original, req.Amount)
	if err != nil {
		return nil, err
	}

	balance, err := c.ledger.Adjust(ctx, accountID, delta)
	if err != nil {
		observability.IncrementTransaction(string(domain.OpReversal), "failed")
		return nil, err
	}

	reversal := &models.Transaction{
		Reference:        req.ReturnReference,
		Type:             domain.OpReversal,
		State:            domain.StateCompleted,
		Amount:           req.Amount,
		Currency:         original.Currency,
		SourceAccountID:  original.SourceAccountID,
		DestAccountID:    original.DestAccountID,
		ExternalAccount:  original.ExternalAccount,
		ExternalBankID:   originatingBank(req.OriginatingBank, original.ExternalBankID),
		ResultingBalance: ptr(balance),
		ReversalOfID:     ptr(original.ID),
		Description:      fmt.Sprintf("Return of %s (%s)", original.Reference, gatewayReason(req.Reason)),
		Channel:          domain.ChannelSwitch,
	}

	err = c.store.CreateReversalAndMarkOriginal(ctx, reversal,
		original.ID, domain.StateReversed, original.Description+reversalAuditSuffix)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateReference) {
			// The insert race lost to a concurrent delivery; undo our leg.
			if _, compErr := c.ledger.Adjust(ctx, accountID, delta.Neg()); compErr != nil {
				zap.L().Error("failed to undo reversal leg after duplicate insert",
					zap.String("return_reference", req.ReturnReference),
					zap.Error(compErr),
				)
				return nil, compErr
			}
			observability.IncrementDuplicateDelivery(string(domain.OpReversal))
			return c.store.GetTransactionByReference(ctx, req.ReturnReference)
		}
		return nil, err
	}

	observability.IncrementTransaction(string(domain.OpReversal), "completed")
	c.guard.Mark(ctx, req.ReturnReference)
	return reversal, nil
}

// inboundReversalDelta picks which local account moves and in which direction
// when a return arrives. The returned amount comes back as a credit to the
// source of an outbound original, or leaves as a debit from the destination
// of an inbound original.
func inboundReversalDelta(original *models.Transaction, amount decimal.Decimal) (int64, decimal.Decimal, error) {
	switch original.Type {
	case domain.OpOutboundInterbank:
		if original.SourceAccountID == nil {
			return 0, decimal.Zero, fmt.Errorf("outbound transaction %s has no source account", original.Reference)
		}
		return *original.SourceAccountID, amount, nil
	case domain.OpInboundInterbank:
		if original.DestAccountID == nil {
			return 0, decimal.Zero, fmt.Errorf("inbound transaction %s has no destination account", original.Reference)
		}
		return *original.DestAccountID, amount.Neg(), nil
	default:
		return 0, decimal.Zero, models.NewBusinessError("only interbank transactions can be returned through the switch")
	}
}

func originatingBank(fromWire, fromOriginal string) string {
	if fromWire != "" {
		return fromWire
	}
	return fromOriginal
}

func gatewayReason(reason string) string {
	if reason == "" {
		return "no reason given"
	}
	return reason
}
