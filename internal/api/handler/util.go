package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlisonTamayo/BancoArcbank/internal/api/problem"
	"github.com/AlisonTamayo/BancoArcbank/internal/gateway"
	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func parseInt64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// RespondServiceError maps coordinator failures onto HTTP semantics: business
// rejections are the caller's fault, switch rejections identify the
// counterparty fault by reason code, everything else is a 500.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *gateway.SwitchError
	if errors.As(err, &se) {
		RespondError(w, r, http.StatusBadGateway, "switch/rejected-"+strings.ToLower(se.ReasonCode),
			"interbank switch rejected the request: "+se.Message)
		return
	}

	switch {
	case errors.Is(err, models.ErrTransactionNotFound), errors.Is(err, models.ErrAccountNotFound):
		RespondError(w, r, http.StatusNotFound, "resource-not-found", err.Error())
	case errors.Is(err, models.ErrAlreadyReversed), errors.Is(err, models.ErrReversalWindowExpired):
		RespondError(w, r, http.StatusConflict, "transaction/not-reversible", err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		RespondError(w, r, http.StatusUnprocessableEntity, "transaction/insufficient-funds", err.Error())
	case models.IsBusiness(err):
		RespondError(w, r, http.StatusBadRequest, "transaction/invalid-request", err.Error())
	default:
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}
