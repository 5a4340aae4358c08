package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumapay/lumapay-backend/pkg/config"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

// USDC uses 6-decimal fixed point on every supported chain.
const usdcDecimals = 1000000

var (
	errAPIKeyRequired  = errors.New("circle api key is required")
	errBaseURLRequired = errors.New("circle base url is required")
)

// TransferStatus is the provider-side state of a transfer.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusComplete TransferStatus = "complete"
	TransferStatusFailed   TransferStatus = "failed"
)

// Transfer is the provider's view of a stablecoin movement.
type Transfer struct {
	ID              string         `json:"id"`
	Status          TransferStatus `json:"status"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	CreateDate      time.Time      `json:"createDate"`
	TransactionHash string         `json:"transactionHash,omitempty"`
}

// TransferRequest describes an outbound blockchain transfer.
type TransferRequest struct {
	DestinationAddress string
	Chain              string
	AmountUSDC         int64
	Currency           string
}

// Client is a thin REST client for the wallet provider's transfer API.
// Every call carries the configured bounded timeout; a timed-out call is a
// failure and must not be followed by any payment mutation.
type Client struct {
	baseURL        string
	apiKey         string
	masterWalletID string
	httpClient     *http.Client
}

// NewClient validates the configuration and builds a provider client.
func NewClient(ctx context.Context, cfg config.CircleConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if logg != nil {
		logg.Info(ctx, "circle client initialized")
	}

	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		masterWalletID: cfg.MasterWalletID,
		httpClient:     &http.Client{Timeout: timeout},
	}, nil
}

type transferPayload struct {
	IdempotencyKey string           `json:"idempotencyKey"`
	Source         transferEndpoint `json:"source"`
	Destination    transferEndpoint `json:"destination"`
	Amount         transferAmount   `json:"amount"`
}

type transferEndpoint struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Address string `json:"address,omitempty"`
	Chain   string `json:"chain,omitempty"`
}

type transferAmount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transferEnvelope struct {
	Data Transfer `json:"data"`
}

type errorEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CreateTransfer requests a wallet→blockchain transfer and returns the
// provider transaction. The idempotency key is generated per call; retries
// of a failed payout intentionally produce a fresh transfer.
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.DestinationAddress == "" {
		return nil, errors.New("destination address is required")
	}
	if req.AmountUSDC <= 0 {
		return nil, errors.New("amount must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	payload := transferPayload{
		IdempotencyKey: uuid.NewString(),
		Source: transferEndpoint{
			Type: "wallet",
			ID:   c.masterWalletID,
		},
		Destination: transferEndpoint{
			Type:    "blockchain",
			Address: req.DestinationAddress,
			Chain:   req.Chain,
		},
		Amount: transferAmount{
			Amount:   FormatUSDCAmount(req.AmountUSDC),
			Currency: currency,
		},
	}

	var envelope transferEnvelope
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// GetTransfer fetches the current provider-side state of a transfer.
func (c *Client) GetTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	if transferID == "" {
		return nil, errors.New("transfer id is required")
	}
	var envelope transferEnvelope
	if err := c.do(ctx, http.MethodGet, "/v1/transfers/"+transferID, nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorEnvelope
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// FormatUSDCAmount renders USDC minor units as the provider's decimal string
// (29990000 → "29.99").
func FormatUSDCAmount(minorUnits int64) string {
	whole := minorUnits / usdcDecimals
	frac := minorUnits % usdcDecimals
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%06d", whole, frac)
	return strings.TrimRight(s, "0")
}
