// Package accounts provides a client for the core account service, which owns
// account records and balances. This service never touches balances directly;
// every read and write goes through this client.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// Client is an HTTP client for the account service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates an account service client with the given timeout applied
// to every call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type balancePayload struct {
	Balance decimal.Decimal `json:"balance"`
}

type accountPayload struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	HolderName  string          `json:"holder_name"`
	Balance     decimal.Decimal `json:"balance"`
	AccountType string          `json:"account_type"`
}

// Balance fetches the current balance of an account.
func (c *Client) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var payload balancePayload
	path := fmt.Sprintf("/v1/accounts/%d/balance", accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return decimal.Zero, err
	}
	return payload.Balance, nil
}

// SetBalance writes a new balance for an account.
func (c *Client) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	path := fmt.Sprintf("/v1/accounts/%d/balance", accountID)
	return c.do(ctx, http.MethodPut, path, balancePayload{Balance: balance}, nil)
}

// Account fetches account details (number, holder name). Callers that only
// need enrichment treat failures as best-effort and fall back.
func (c *Client) Account(ctx context.Context, accountID int64) (*models.Account, error) {
	var payload accountPayload
	path := fmt.Sprintf("/v1/accounts/%d", accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toModel(), nil
}

// FindByNumber resolves an account by its external account number.
func (c *Client) FindByNumber(ctx context.Context, number string) (*models.Account, error) {
	var payload accountPayload
	path := "/v1/accounts/by-number/" + number
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.toModel(), nil
}

func (p accountPayload) toModel() *models.Account {
	return &models.Account{
		ID:          p.ID,
		Number:      p.Number,
		HolderName:  p.HolderName,
		Balance:     p.Balance,
		AccountType: p.AccountType,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal account request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build account request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("account service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrAccountNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("account service returned %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode account response: %w", err)
		}
	}
	return nil
}
