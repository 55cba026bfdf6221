package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest is the client-facing input for a new movement.
// Reference is the caller's idempotency token; a missing or malformed one is
// replaced server-side.
type CreateTransactionRequest struct {
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`

	SourceAccountID *int64 `json:"source_account_id,omitempty"`
	DestAccountID   *int64 `json:"dest_account_id,omitempty"`

	ExternalAccount string `json:"external_account,omitempty"`
	ExternalBankID  string `json:"external_bank_id,omitempty"`
	ExternalName    string `json:"external_name,omitempty"`

	Description string `json:"description,omitempty"`
	Channel     string `json:"channel,omitempty"`

	// Reversal dispatch: the movement to unwind and why.
	OriginalReference string `json:"original_reference,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// Create dispatches on the operation type and runs the matching saga. A
// replayed reference returns the stored record unchanged.
func (c *Coordinator) Create(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	opType, ok := domain.ParseOperationType(req.Type)
	if !ok {
		return nil, fmt.Errorf("%q: %w", req.Type, models.ErrUnsupportedOperation)
	}

	switch opType {
	case domain.OpReversal:
		return c.RequestReversal(ctx, ReversalRequest{
			OriginalReference: req.OriginalReference,
			Reason:            req.Reason,
		})
	case domain.OpInboundInterbank:
		return c.ProcessInboundTransfer(ctx, InboundTransferRequest{
			Reference:         req.Reference,
			Amount:            req.Amount,
			CreditorAccountID: req.DestAccountID,
			DebtorName:        req.ExternalName,
			DebtorAccount:     req.ExternalAccount,
			DebtorBankID:      req.ExternalBankID,
			Description:       req.Description,
		})
	}

	if !domain.ValidAmount(req.Amount) {
		return nil, models.ErrInvalidAmount
	}

	reference := req.Reference
	if !domain.ValidReference(reference) {
		reference = domain.NewReference()
	}
	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}

	unlock := c.locks.Lock(reference)
	defer unlock()

	if stored, seen, err := c.guard.Seen(ctx, reference); err != nil {
		return nil, err
	} else if seen {
		observability.IncrementDuplicateDelivery(string(opType))
		zap.L().Info("duplicate delivery answered from store",
			zap.String("reference", reference),
			zap.String("type", string(opType)),
		)
		return stored, nil
	}

	txn := &models.Transaction{
		Reference:       reference,
		Type:            opType,
		State:           domain.StatePending,
		Amount:          req.Amount,
		Currency:        domain.Currency,
		SourceAccountID: req.SourceAccountID,
		DestAccountID:   req.DestAccountID,
		ExternalAccount: req.ExternalAccount,
		ExternalBankID:  req.ExternalBankID,
		Description:     req.Description,
		Channel:         channel,
	}

	var err error
	switch opType {
	case domain.OpDeposit:
		err = c.runDeposit(ctx, txn)
	case domain.OpWithdrawal:
		err = c.runWithdrawal(ctx, txn)
	case domain.OpInternalTransfer:
		err = c.runInternalTransfer(ctx, txn)
	case domain.OpOutboundInterbank:
		err = c.runOutboundInterbank(ctx, txn, req.ExternalName)
	default:
		return nil, fmt.Errorf("%q: %w", req.Type, models.ErrUnsupportedOperation)
	}
	if err != nil {
		observability.IncrementTransaction(string(opType), "failed")
		return nil, err
	}

	observability.IncrementTransaction(string(opType), "completed")
	c.guard.Mark(ctx, reference)
	return txn, nil
}

// claim inserts the PENDING record that reserves the reference before any
// balance leg runs. A concurrent duplicate loses the insert race and gets the
// stored record back.
func (c *Coordinator) claim(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	err := c.store.CreateTransaction(ctx, txn)
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, models.ErrDuplicateReference) {
		stored, lookupErr := c.store.GetTransactionByReference(ctx, txn.Reference)
		if lookupErr != nil {
			return nil, fmt.Errorf("reference %s already claimed but unreadable: %w", txn.Reference, lookupErr)
		}
		observability.IncrementDuplicateDelivery(string(txn.Type))
		return stored, nil
	}
	return nil, err
}

func (c *Coordinator) runDeposit(ctx context.Context, txn *models.Transaction) error {
	if txn.DestAccountID == nil {
		return models.NewBusinessError("destination account is required for a deposit")
	}

	stored, err := c.claim(ctx, txn)
	if err != nil {
		return err
	}
	if stored != nil {
		*txn = *stored
		return nil
	}

	balance, err := c.ledger.Adjust(ctx, *txn.DestAccountID, txn.Amount)
	if err != nil {
		c.releaseClaim(ctx, txn.ID, txn.Reference)
		return err
	}

	txn.ResultingBalance = ptr(balance)
	txn.State = domain.StateCompleted
	return c.store.CompleteTransaction(ctx, txn.ID, domain.StateCompleted, txn.ResultingBalance, nil)
}

func (c *Coordinator) runWithdrawal(ctx context.Context, txn *models.Transaction) error {
	if txn.SourceAccountID == nil {
		return models.NewBusinessError("source account is required for a withdrawal")
	}

	stored, err := c.claim(ctx, txn)
	if err != nil {
		return err
	}
	if stored != nil {
		*txn = *stored
		return nil
	}

	balance, err := c.ledger.Adjust(ctx, *txn.SourceAccountID, txn.Amount.Neg())
	if err != nil {
		c.releaseClaim(ctx, txn.ID, txn.Reference)
		return err
	}

	txn.ResultingBalance = ptr(balance)
	txn.State = domain.StateCompleted
	return c.store.CompleteTransaction(ctx, txn.ID, domain.StateCompleted, txn.ResultingBalance, nil)
}

func (c *Coordinator) runInternalTransfer(ctx context.Context, txn *models.Transaction) error {
	if txn.SourceAccountID == nil || txn.DestAccountID == nil {
		return models.NewBusinessError("source and destination accounts are required for a transfer")
	}
	if *txn.SourceAccountID == *txn.DestAccountID {
		return models.ErrSameAccountTransfer
	}

	stored, err := c.claim(ctx, txn)
	if err != nil {
		return err
	}
	if stored != nil {
		*txn = *stored
		return nil
	}

	result, err := c.ledger.AdjustPair(ctx, *txn.SourceAccountID, *txn.DestAccountID, txn.Amount)
	if err != nil {
		c.releaseClaim(ctx, txn.ID, txn.Reference)
		return err
	}

	txn.ResultingBalance = ptr(result.SourceBalance)
	txn.ResultingBalanceDest = ptr(result.DestBalance)
	txn.State = domain.StateCompleted
	return c.store.CompleteTransaction(ctx, txn.ID, domain.StateCompleted, txn.ResultingBalance, txn.ResultingBalanceDest)
}

// runOutboundInterbank debits first, then sends. The switch never sees an
// instruction our side could not fund, and a rejected instruction is paid
// back before the error surfaces.
func (c *Coordinator) runOutboundInterbank(ctx context.Context, txn *models.Transaction, externalName string) error {
	if txn.SourceAccountID == nil {
		return models.NewBusinessError("source account is required for an interbank transfer")
	}
	if txn.ExternalAccount == "" {
		return models.NewBusinessError("an external account is required for an interbank transfer")
	}
	if txn.ExternalBankID == "" {
		// The switch routes by account when no bank is named.
		txn.ExternalBankID = unknownBankID
	}

	stored, err := c.claim(ctx, txn)
	if err != nil {
		return err
	}
	if stored != nil {
		*txn = *stored
		return nil
	}

	sourceID := *txn.SourceAccountID
	balance, err := c.ledger.Adjust(ctx, sourceID, txn.Amount.Neg())
	if err != nil {
		c.releaseClaim(ctx, txn.ID, txn.Reference)
		return err
	}

	creditorName := externalName
	if creditorName == "" {
		creditorName = txn.ExternalAccount
	}

	_, err = c.gateway.SendTransfer(ctx, gateway.TransferInstruction{
		Reference:       txn.Reference,
		Amount:          txn.Amount,
		DebtorName:      c.holderName(ctx, sourceID),
		DebtorAccount:   c.accountNumber(ctx, sourceID),
		CreditorName:    creditorName,
		CreditorAccount: txn.ExternalAccount,
		TargetBankID:    txn.ExternalBankID,
		Remittance:      txn.Description,
	})
	if err != nil {
		return c.compensateOutbound(ctx, txn, err)
	}

	txn.ResultingBalance = ptr(balance)
	txn.State = domain.StateCompleted
	return c.store.CompleteTransaction(ctx, txn.ID, domain.StateCompleted, txn.ResultingBalance, nil)
}

// compensateOutbound pays the debit back after a switch failure and releases
// the claim. If the pay-back itself fails the claim stays PENDING so the
// stuck-pending sweep surfaces it.
func (c *Coordinator) compensateOutbound(ctx context.Context, txn *models.Transaction, sendErr error) error {
	if _, compErr := c.ledger.Adjust(ctx, *txn.SourceAccountID, txn.Amount); compErr != nil {
		observability.IncrementCompensation(string(txn.Type), "failed")
		zap.L().Error("compensating credit failed after switch rejection",
			zap.String("reference", txn.Reference),
			zap.Int64("account_id", *txn.SourceAccountID),
			zap.NamedError("send_error", sendErr),
			zap.Error(compErr),
		)
		return fmt.Errorf("switch send failed and compensation failed for reference %s: %w", txn.Reference, compErr)
	}

	observability.IncrementCompensation(string(txn.Type), "applied")
	zap.L().Warn("outbound transfer compensated after switch rejection",
		zap.String("reference", txn.Reference),
		zap.Error(sendErr),
	)
	c.releaseClaim(ctx, txn.ID, txn.Reference)
	return fmt.Errorf("interbank transfer %s rejected: %w", txn.Reference, sendErr)
}
