package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/service"
)

// InboundService is the coordinator surface the switch-facing endpoints use.
type InboundService interface {
	ProcessInboundTransfer(ctx context.Context, req service.InboundTransferRequest) (*models.Transaction, error)
	ProcessInboundReversal(ctx context.Context, req service.InboundReversalRequest) (*models.Transaction, error)
}

// WebhookHandler receives at-least-once deliveries from the interbank switch.
// Payload authenticity rides on an HMAC-SHA256 signature over the raw body.
type WebhookHandler struct {
	svc     InboundService
	hmacKey []byte
	skipSig bool
}

func NewWebhookHandler(svc InboundService, hmacKey string, skipSignature bool) *WebhookHandler {
	return &WebhookHandler{
		svc:     svc,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// The switch delivers the same header/body envelope it accepts on the
// outbound side: originator in the header, instruction details in the body.
type wireHeader struct {
	MessageID         string `json:"messageId"`
	CreationDateTime  string `json:"creationDateTime"`
	OriginatingBankID string `json:"originatingBankId"`
}

type wireAmount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type wireParty struct {
	Name        string `json:"name"`
	AccountID   string `json:"accountId"`
	AccountType string `json:"accountType"`
	BankID      string `json:"bankId"`
}

type inboundTransferPayload struct {
	Header wireHeader `json:"header"`
	Body   struct {
		InstructionID         string     `json:"instructionId"`
		EndToEndID            string     `json:"endToEndId"`
		Amount                wireAmount `json:"amount"`
		Debtor                wireParty  `json:"debtor"`
		Creditor              wireParty  `json:"creditor"`
		RemittanceInformation string     `json:"remittanceInformation"`
	} `json:"body"`
}

type inboundReversalPayload struct {
	Header wireHeader `json:"header"`
	Body   struct {
		OriginalInstructionID string     `json:"originalInstructionId"`
		ReturnInstructionID   string     `json:"returnInstructionId"`
		ReturnReason          string     `json:"returnReason"`
		ReturnAmount          wireAmount `json:"returnAmount"`
	} `json:"body"`
}

// HandleInboundTransfer handles POST /v1/webhooks/switch/transfers.
func (h *WebhookHandler) HandleInboundTransfer(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSignedBody(w, r)
	if !ok {
		return
	}

	var payload inboundTransferPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-payload", "Invalid payload")
		return
	}

	txn, err := h.svc.ProcessInboundTransfer(r.Context(), service.InboundTransferRequest{
		Reference:       payload.Body.InstructionID,
		Amount:          payload.Body.Amount.Value,
		CreditorAccount: payload.Body.Creditor.AccountID,
		DebtorName:      payload.Body.Debtor.Name,
		DebtorAccount:   payload.Body.Debtor.AccountID,
		DebtorBankID:    payload.Header.OriginatingBankID,
		Description:     payload.Body.RemittanceInformation,
	})
	if err != nil {
		zap.L().Warn("inbound transfer rejected",
			zap.String("reference", payload.Body.InstructionID),
			zap.Error(err),
		)
		RespondServiceError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"reference": txn.Reference,
		"status":    domain.ExternalStatus(txn.State),
	})
}

// HandleInboundReversal handles POST /v1/webhooks/switch/returns.
func (h *WebhookHandler) HandleInboundReversal(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSignedBody(w, r)
	if !ok {
		return
	}

	var payload inboundReversalPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-payload", "Invalid payload")
		return
	}

	txn, err := h.svc.ProcessInboundReversal(r.Context(), service.InboundReversalRequest{
		OriginalReference: payload.Body.OriginalInstructionID,
		ReturnReference:   payload.Body.ReturnInstructionID,
		Amount:            payload.Body.ReturnAmount.Value,
		Reason:            payload.Body.ReturnReason,
		OriginatingBank:   payload.Header.OriginatingBankID,
	})
	if err != nil {
		zap.L().Warn("inbound reversal rejected",
			zap.String("original_reference", payload.Body.OriginalInstructionID),
			zap.Error(err),
		)
		RespondServiceError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"reference": txn.Reference,
		"status":    domain.ExternalStatus(txn.State),
	})
}

func (h *WebhookHandler) readSignedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "webhook/unreadable-body", "Failed to read request body")
		return nil, false
	}

	if !h.verifyHMAC(body, r.Header.Get("X-Webhook-Signature")) {
		RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) verifyHMAC(payload []byte, signature string) bool {
	if h.skipSig {
		return true
	}
	if len(h.hmacKey) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, h.hmacKey)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
