package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstruction() TransferInstruction {
	return TransferInstruction{
		Reference:       "4f5a0d6e-8df1-4a9a-9a37-0c2f5f3f9b11",
		Amount:          decimal.NewFromInt(40),
		DebtorName:      "Ana Diaz",
		DebtorAccount:   "100200300",
		CreditorName:    "Luis Vega",
		CreditorAccount: "900800700",
		TargetBankID:    "OTHERBANK",
		Remittance:      "rent",
	}
}

func TestSendTransferAcceptedEmptyBody(t *testing.T) {
	var got transferMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, transferPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ARCBANK", time.Second)
	ack, err := c.SendTransfer(context.Background(), testInstruction())
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", ack.Status)

	assert.Equal(t, "ARCBANK", got.Header.OriginatingBankID)
	assert.Regexp(t, `^MSG-[0-9a-f-]{8}$`, got.Header.MessageID)
	assert.Regexp(t, `^E2E-[0-9a-f-]{8}$`, got.Body.EndToEndID)
	assert.Equal(t, "4f5a0d6e-8df1-4a9a-9a37-0c2f5f3f9b11", got.Body.InstructionID)
	assert.Equal(t, "USD", got.Body.Amount.Currency)
	assert.True(t, got.Body.Amount.Value.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, "SAVINGS", got.Body.Debtor.AccountType)
	assert.Equal(t, "ARCBANK", got.Body.Debtor.BankID)
	assert.Equal(t, "OTHERBANK", got.Body.Creditor.TargetBankID)
}

func TestSendTransferRejectionCarriesReasonToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"reasonCode":"AC03","message":"creditor account closed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ARCBANK", time.Second)
	_, err := c.SendTransfer(context.Background(), testInstruction())
	require.Error(t, err)

	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "AC03", se.ReasonCode)
	assert.Equal(t, "creditor account closed", se.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, se.HTTPStatus)
}

func TestSendTransferRejectionMapsFreeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"SALDO_INSUFICIENTE"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ARCBANK", time.Second)
	_, err := c.SendTransfer(context.Background(), testInstruction())

	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "AM04", se.ReasonCode)
}

func TestSendTransferUnreachableIsRejection(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "ARCBANK", 200*time.Millisecond)
	_, err := c.SendTransfer(context.Background(), testInstruction())

	var se *SwitchError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, FallbackReason, se.ReasonCode)
}

func TestSendReversalGeneratesReturnReference(t *testing.T) {
	var got reversalMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, returnPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ACCEPTED","message":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ARCBANK", time.Second)
	ack, err := c.SendReversal(context.Background(), ReversalInstruction{
		OriginalReference: "4f5a0d6e-8df1-4a9a-9a37-0c2f5f3f9b11",
		Reason:            "duplicado",
		Amount:            decimal.NewFromInt(25),
		TargetBankID:      "OTHERBANK",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", ack.Status)

	assert.Regexp(t, `^MSG-REV-[0-9a-f-]{8}$`, got.Header.MessageID)
	assert.Equal(t, "MD01", got.Body.ReturnReason)
	assert.Len(t, got.Body.ReturnInstructionID, 36)
	assert.NotEqual(t, got.Body.OriginalInstructionID, got.Body.ReturnInstructionID)
}

func TestReturnReasonsBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, reasonsPath, r.URL.Path)
		_, _ = w.Write([]byte(`[{"code":"AC03","description":"account invalid"},{"code":"AM04","description":"insufficient funds"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ARCBANK", time.Second)
	reasons := c.ReturnReasons(context.Background())
	require.Len(t, reasons, 2)
	assert.Equal(t, "AC03", reasons[0].Code)

	// Unavailable catalog degrades to an empty list.
	down := NewClient("http://127.0.0.1:1", "ARCBANK", 200*time.Millisecond)
	assert.Empty(t, down.ReturnReasons(context.Background()))
}

func TestParseAcknowledgementMalformedBody(t *testing.T) {
	ack := parseAcknowledgement([]byte("OK"), "transfer accepted")
	assert.Equal(t, "SUCCESS", ack.Status)
	assert.Equal(t, "OK", ack.Message)
}
