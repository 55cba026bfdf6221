package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
)

// ReversalRequest asks to unwind a completed movement. The original may be
// addressed by id or by reference.
type ReversalRequest struct {
	TransactionID     uuid.UUID
	OriginalReference string
	Reason            string
}

// RequestReversal unwinds a completed interbank transaction within the
// reversal window. An outbound original becomes a pull-back: the counterparty
// must accept the return before our side is credited. An inbound original
// becomes an initiated return: our side is debited first, and the debit is
// paid back if the counterparty rejects. Movements that never crossed the
// switch cannot be reversed through this path.
func (c *Coordinator) RequestReversal(ctx context.Context, req ReversalRequest) (*models.Transaction, error) {
	original, err := c.loadOriginal(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(original.Reference)
	defer unlock()

	// Re-read under the lock so a concurrent reversal of the same original is
	// observed.
	original, err = c.store.GetTransaction(ctx, original.ID)
	if err != nil {
		return nil, err
	}

	if original.State.Terminal() {
		return nil, models.ErrAlreadyReversed
	}
	if original.State != domain.StateCompleted {
		return nil, models.NewBusinessError("original transaction is not in a reversible state")
	}
	if original.Type == domain.OpReversal {
		return nil, models.NewBusinessError("a reversal cannot itself be reversed")
	}
	if time.Since(original.CreatedAt) > c.reversalWindow {
		return nil, models.ErrReversalWindowExpired
	}

	reversal := &models.Transaction{
		Reference:       domain.NewReference(),
		Type:            domain.OpReversal,
		State:           domain.StateCompleted,
		Amount:          original.Amount,
		Currency:        original.Currency,
		SourceAccountID: original.SourceAccountID,
		DestAccountID:   original.DestAccountID,
		ExternalAccount: original.ExternalAccount,
		ExternalBankID:  original.ExternalBankID,
		ReversalOfID:    ptr(original.ID),
		Description:     reversalDescription(original.Reference, req.Reason),
		Channel:         domain.ChannelWeb,
	}

	var terminalState domain.TransactionState
	switch original.Type {
	case domain.OpOutboundInterbank:
		terminalState, err = c.reversePullBack(ctx, original, reversal, req.Reason)
	case domain.OpInboundInterbank:
		terminalState, err = c.reverseInitiatedReturn(ctx, original, reversal, req.Reason)
	default:
		err = fmt.Errorf("%s transactions cannot be reversed: %w", original.Type, models.ErrUnsupportedOperation)
	}
	if err != nil {
		observability.IncrementTransaction(string(domain.OpReversal), "failed")
		return nil, err
	}

	err = c.store.CreateReversalAndMarkOriginal(ctx, reversal,
		original.ID, terminalState, original.Description+reversalAuditSuffix)
	if err != nil {
		zap.L().Error("reversal legs applied but record not persisted",
			zap.String("original_reference", original.Reference),
			zap.String("return_reference", reversal.Reference),
			zap.Error(err),
		)
		return nil, err
	}

	observability.IncrementTransaction(string(domain.OpReversal), "completed")
	c.guard.Mark(ctx, reversal.Reference)
	return reversal, nil
}

func (c *Coordinator) loadOriginal(ctx context.Context, req ReversalRequest) (*models.Transaction, error) {
	if req.TransactionID != uuid.Nil {
		return c.store.GetTransaction(ctx, req.TransactionID)
	}
	if req.OriginalReference != "" {
		return c.store.GetTransactionByReference(ctx, req.OriginalReference)
	}
	return nil, models.NewBusinessError("a transaction id or reference is required for a reversal")
}

// reversePullBack asks the counterparty to give back money we sent out. The
// local credit only runs after the switch accepted the return, so there is
// nothing to compensate on rejection.
func (c *Coordinator) reversePullBack(ctx context.Context, original, reversal *models.Transaction, reason string) (domain.TransactionState, error) {
	sourceID := *original.SourceAccountID

	_, err := c.gateway.SendReversal(ctx, gateway.ReversalInstruction{
		OriginalReference: original.Reference,
		ReturnReference:   reversal.Reference,
		Reason:            reason,
		Amount:            original.Amount,
		DebtorName:        c.holderName(ctx, sourceID),
		DebtorAccount:     c.accountNumber(ctx, sourceID),
		CreditorName:      original.ExternalAccount,
		CreditorAccount:   original.ExternalAccount,
		TargetBankID:      original.ExternalBankID,
	})
	if err != nil {
		return "", fmt.Errorf("counterparty rejected pull-back of %s: %w", original.Reference, err)
	}

	balance, err := c.ledger.Adjust(ctx, sourceID, original.Amount)
	if err != nil {
		// The counterparty accepted but our credit failed. Do not flip the
		// original; the funds position needs operator reconciliation.
		zap.L().Error("pull-back accepted by switch but local credit failed",
			zap.String("original_reference", original.Reference),
			zap.Int64("account_id", sourceID),
			zap.Error(err),
		)
		return "", fmt.Errorf("pull-back of %s accepted but credit failed: %w", original.Reference, err)
	}

	reversal.ResultingBalance = ptr(balance)
	return domain.StateReversed, nil
}

// reverseInitiatedReturn sends back money another bank transferred in. The
// local debit runs first so the switch never carries funds we no longer hold;
// a rejected return pays the debit back.
func (c *Coordinator) reverseInitiatedReturn(ctx context.Context, original, reversal *models.Transaction, reason string) (domain.TransactionState, error) {
	destID := *original.DestAccountID

	balance, err := c.ledger.Adjust(ctx, destID, original.Amount.Neg())
	if err != nil {
		return "", err
	}

	_, err = c.gateway.SendReversal(ctx, gateway.ReversalInstruction{
		OriginalReference: original.Reference,
		ReturnReference:   reversal.Reference,
		Reason:            reason,
		Amount:            original.Amount,
		DebtorName:        c.holderName(ctx, destID),
		DebtorAccount:     c.accountNumber(ctx, destID),
		CreditorName:      original.ExternalAccount,
		CreditorAccount:   original.ExternalAccount,
		TargetBankID:      original.ExternalBankID,
	})
	if err != nil {
		if _, compErr := c.ledger.Adjust(ctx, destID, original.Amount); compErr != nil {
			observability.IncrementCompensation(string(domain.OpReversal), "failed")
			zap.L().Error("compensating credit failed after rejected return",
				zap.String("original_reference", original.Reference),
				zap.Int64("account_id", destID),
				zap.NamedError("send_error", err),
				zap.Error(compErr),
			)
			return "", fmt.Errorf("return of %s rejected and compensation failed: %w", original.Reference, compErr)
		}
		observability.IncrementCompensation(string(domain.OpReversal), "applied")
		return "", fmt.Errorf("counterparty rejected return of %s: %w", original.Reference, err)
	}

	reversal.ResultingBalance = ptr(balance)
	return domain.StateReturned, nil
}

func reversalDescription(originalReference, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Reversal of %s", originalReference)
	}
	return fmt.Sprintf("Reversal of %s: %s", originalReference, reason)
}
