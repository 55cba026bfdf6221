package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
	"github.com/AlisonTamayo/BancoArcbank/internal/service"
)

// TransactionService is the coordinator surface the HTTP layer depends on.
type TransactionService interface {
	Create(ctx context.Context, req service.CreateTransactionRequest) (*models.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64) ([]service.StatementEntry, error)
	RequestReversal(ctx context.Context, req service.ReversalRequest) (*models.Transaction, error)
	StatusByReference(ctx context.Context, reference string) (string, error)
	ReturnReasons(ctx context.Context) []gateway.ReturnReason
}

type TransactionHandler struct {
	svc TransactionService
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type transactionResponse struct {
	*models.Transaction
	Status string `json:"status"`
}

func toResponse(txn *models.Transaction) transactionResponse {
	return transactionResponse{Transaction: txn, Status: domain.ExternalStatus(txn.State)}
}

// Create handles POST /v1/transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	txn, err := h.svc.Create(r.Context(), req)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toResponse(txn))
}

// Get handles GET /v1/transactions/{id}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid transaction id")
		return
	}

	txn, err := h.svc.Get(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, toResponse(txn))
}

// Reverse handles POST /v1/transactions/{id}/reversal.
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid transaction id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
			return
		}
	}

	reversal, err := h.svc.RequestReversal(r.Context(), service.ReversalRequest{
		TransactionID: id,
		Reason:        body.Reason,
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, toResponse(reversal))
}

// ListByAccount handles GET /v1/accounts/{accountID}/transactions.
func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseInt64Param(r, "accountID")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid account id")
		return
	}

	entries, err := h.svc.ListByAccount(r.Context(), accountID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// StatusByReference handles GET /v1/transactions/reference/{reference}/status.
// Unknown references answer 200 with NOT_FOUND so counterparties can probe
// without tripping error alerting.
func (h *TransactionHandler) StatusByReference(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	status, err := h.svc.StatusByReference(r.Context(), reference)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{
		"reference": reference,
		"status":    status,
	})
}

// ReturnReasons handles GET /v1/reference/return-reasons.
func (h *TransactionHandler) ReturnReasons(w http.ResponseWriter, r *http.Request) {
	reasons := h.svc.ReturnReasons(r.Context())
	if reasons == nil {
		reasons = []gateway.ReturnReason{}
	}
	RespondJSON(w, http.StatusOK, map[string]any{"reasons": reasons})
}
