// Package gateway talks to the interbank payment switch: outbound transfers,
// return/reversal requests, and the published reason-code catalog.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlisonTamayo/BancoArcbank/internal/domain"
	"github.com/AlisonTamayo/BancoArcbank/internal/observability"
)

const (
	transferPath = "/api/v2/switch/transfers"
	returnPath   = "/api/v2/switch/transfers/return"
	reasonsPath  = "/api/v1/reference/iso20022/errors"

	defaultAccountType = "SAVINGS"
)

// Gateway is the switch surface the coordinator depends on.
type Gateway interface {
	// SendTransfer pushes an outbound transfer. A nil error means the switch
	// accepted the instruction; any failure is classified into a SwitchError
	// carrying a 4-char reason code.
	SendTransfer(ctx context.Context, instr TransferInstruction) (*Acknowledgement, error)
	// SendReversal pushes a return/reversal request for a prior instruction.
	SendReversal(ctx context.Context, instr ReversalInstruction) (*Acknowledgement, error)
	// ReturnReasons reads the switch's reason-code catalog. Best effort: an
	// empty slice comes back on any failure.
	ReturnReasons(ctx context.Context) []ReturnReason
}

// TransferInstruction is the coordinator-facing input for an outbound send.
type TransferInstruction struct {
	Reference       string
	Amount          decimal.Decimal
	DebtorName      string
	DebtorAccount   string
	CreditorName    string
	CreditorAccount string
	TargetBankID    string
	Remittance      string
}

// ReversalInstruction asks the counterparty to unwind a prior transfer.
// Debtor is the side requesting the money back; creditor is the side holding
// it. ReturnReference identifies the reversal leg itself and is generated when
// absent.
type ReversalInstruction struct {
	OriginalReference string
	ReturnReference   string
	Reason            string
	Amount            decimal.Decimal
	DebtorName        string
	DebtorAccount     string
	CreditorName      string
	CreditorAccount   string
	TargetBankID      string
}

// Acknowledgement is the classified success outcome of a switch call.
type Acknowledgement struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReturnReason is one entry of the switch's published reason catalog.
type ReturnReason struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// SwitchError is a classified switch rejection. ReasonCode is always a
// 4-character ISO-style token: passed through when the fault exposed one,
// mapped otherwise.
type SwitchError struct {
	ReasonCode string
	Message    string
	HTTPStatus int
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("switch rejected request (%s): %s", e.ReasonCode, e.Message)
}

// Client is the HTTP implementation of Gateway. Transport security (mTLS) is
// terminated outside this process.
type Client struct {
	baseURL  string
	bankCode string
	http     *http.Client
}

// NewClient builds a switch client stamped with our originating bank code.
func NewClient(baseURL, bankCode string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		bankCode: bankCode,
		http:     &http.Client{Timeout: timeout},
	}
}

type messageHeader struct {
	MessageID         string `json:"messageId"`
	CreationDateTime  string `json:"creationDateTime"`
	OriginatingBankID string `json:"originatingBankId"`
}

type messageAmount struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type messageParty struct {
	Name         string `json:"name"`
	AccountID    string `json:"accountId"`
	AccountType  string `json:"accountType,omitempty"`
	BankID       string `json:"bankId,omitempty"`
	TargetBankID string `json:"targetBankId,omitempty"`
}

type transferMessage struct {
	Header messageHeader `json:"header"`
	Body   struct {
		InstructionID         string        `json:"instructionId"`
		EndToEndID            string        `json:"endToEndId"`
		Amount                messageAmount `json:"amount"`
		Debtor                messageParty  `json:"debtor"`
		Creditor              messageParty  `json:"creditor"`
		RemittanceInformation string        `json:"remittanceInformation,omitempty"`
	} `json:"body"`
}

type reversalMessage struct {
	Header messageHeader `json:"header"`
	Body   struct {
		OriginalInstructionID string        `json:"originalInstructionId"`
		ReturnInstructionID   string        `json:"returnInstructionId"`
		ReturnReason          string        `json:"returnReason"`
		ReturnAmount          messageAmount `json:"returnAmount"`
		Debtor                messageParty  `json:"debtor"`
		Creditor              messageParty  `json:"creditor"`
	} `json:"body"`
}

func (c *Client) header(prefix string) messageHeader {
	return messageHeader{
		MessageID:         domain.NewMessageID(prefix),
		CreationDateTime:  time.Now().Format(time.RFC3339),
		OriginatingBankID: c.bankCode,
	}
}

// SendTransfer implements Gateway.
func (c *Client) SendTransfer(ctx context.Context, instr TransferInstruction) (*Acknowledgement, error) {
	msg := transferMessage{Header: c.header("MSG")}
	msg.Body.InstructionID = instr.Reference
	msg.Body.EndToEndID = domain.NewMessageID("E2E")
	msg.Body.Amount = messageAmount{Currency: domain.Currency, Value: instr.Amount}
	msg.Body.Debtor = messageParty{
		Name:        instr.DebtorName,
		AccountID:   instr.DebtorAccount,
		AccountType: defaultAccountType,
		BankID:      c.bankCode,
	}
	msg.Body.Creditor = messageParty{
		Name:         instr.CreditorName,
		AccountID:    instr.CreditorAccount,
		AccountType:  defaultAccountType,
		TargetBankID: instr.TargetBankID,
	}
	msg.Body.RemittanceInformation = instr.Remittance

	return c.post(ctx, "transfer", transferPath, msg, "transfer accepted")
}

// SendReversal implements Gateway.
func (c *Client) SendReversal(ctx context.Context, instr ReversalInstruction) (*Acknowledgement, error) {
	returnRef := instr.ReturnReference
	if returnRef == "" {
		returnRef = domain.NewReference()
	}

	msg := reversalMessage{Header: c.header("MSG-REV")}
	msg.Body.OriginalInstructionID = instr.OriginalReference
	msg.Body.ReturnInstructionID = returnRef
	msg.Body.ReturnReason = MapReason(instr.Reason)
	msg.Body.ReturnAmount = messageAmount{Currency: domain.Currency, Value: instr.Amount}
	msg.Body.Debtor = messageParty{Name: instr.DebtorName, AccountID: instr.DebtorAccount}
	msg.Body.Creditor = messageParty{
		Name:         instr.CreditorName,
		AccountID:    instr.CreditorAccount,
		TargetBankID: instr.TargetBankID,
	}

	return c.post(ctx, "return", returnPath, msg, "return accepted")
}

// ReturnReasons implements Gateway.
func (c *Client) ReturnReasons(ctx context.Context) []ReturnReason {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+reasonsPath, nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Warn("switch reason catalog unavailable", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Warn("switch reason catalog returned error", zap.Int("status", resp.StatusCode))
		return nil
	}

	var reasons []ReturnReason
	if err := json.NewDecoder(resp.Body).Decode(&reasons); err != nil {
		zap.L().Warn("switch reason catalog unreadable", zap.Error(err))
		return nil
	}
	return reasons
}

func (c *Client) post(ctx context.Context, call, path string, payload any, syntheticMessage string) (*Acknowledgement, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal switch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build switch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveSwitchCall(call, "unreachable", time.Since(start))
		// Timeouts and transport failures count as rejections, never success.
		return nil, &SwitchError{
			ReasonCode: FallbackReason,
			Message:    fmt.Sprintf("switch unreachable: %v", err),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	zap.L().Debug("switch call finished",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		observability.ObserveSwitchCall(call, "accepted", time.Since(start))
		return parseAcknowledgement(body, syntheticMessage), nil
	}
	observability.ObserveSwitchCall(call, "rejected", time.Since(start))
	return nil, classifyFault(resp.StatusCode, body)
}

// parseAcknowledgement treats an empty 2xx body as success with a synthesized
// acknowledgement.
func parseAcknowledgement(body []byte, syntheticMessage string) *Acknowledgement {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Acknowledgement{Status: "SUCCESS", Message: syntheticMessage}
	}
	ack := &Acknowledgement{}
	if err := json.Unmarshal(body, ack); err != nil || ack.Status == "" {
		return &Acknowledgement{Status: "SUCCESS", Message: string(body)}
	}
	return ack
}

type switchFault struct {
	ReasonCode string `json:"reasonCode"`
	Code       string `json:"code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// classifyFault extracts a recognizable ISO-style reason token from the fault
// body when present, and maps free-form text through the reason table
// otherwise.
func classifyFault(status int, body []byte) *SwitchError {
	var fault switchFault
	_ = json.Unmarshal(body, &fault)

	message := fault.Message
	if message == "" {
		message = fault.Error
	}
	if message == "" {
		message = string(body)
	}

	for _, candidate := range []string{fault.ReasonCode, fault.Code} {
		if wellFormedReason(candidate) {
			return &SwitchError{ReasonCode: candidate, Message: message, HTTPStatus: status}
		}
	}

	return &SwitchError{ReasonCode: MapReason(message), Message: message, HTTPStatus: status}
}
