// Package stripe implements creator payout transfers over the Stripe
// Connect transfers API.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowmarket/flowmarket/internal/transfer/domain"
)

const defaultBaseURL = "https://api.stripe.com"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	apiKey, ok := readString(cfg.Config, "api_key")
	if !ok {
		return nil, domain.ErrInvalidConfig
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.ErrInvalidConfig
	}

	baseURL, _ := readString(cfg.Config, "base_url")
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Adapter{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type Adapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if req.AmountMinorUnits <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	destination := strings.TrimSpace(req.DestinationHandle)
	if destination == "" {
		return nil, domain.ErrInvalidConfig
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinorUnits, 10))
	form.Set("currency", currency)
	form.Set("destination", destination)
	if description := strings.TrimSpace(req.Description); description != "" {
		form.Set("description", description)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/transfers", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferFailed, extractErrorMessage(body, resp.StatusCode))
	}

	var transfer stripeTransfer
	if err := json.Unmarshal(body, &transfer); err != nil {
		return nil, fmt.Errorf("%w: malformed response", domain.ErrTransferFailed)
	}
	if strings.TrimSpace(transfer.ID) == "" {
		return nil, fmt.Errorf("%w: missing transfer id", domain.ErrTransferFailed)
	}

	return &domain.TransferResult{Reference: transfer.ID}, nil
}

type stripeTransfer struct {
	ID string `json:"id"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func extractErrorMessage(body []byte, status int) string {
	var payload stripeError
	if err := json.Unmarshal(body, &payload); err == nil {
		if message := strings.TrimSpace(payload.Error.Message); message != "" {
			return message
		}
		if code := strings.TrimSpace(payload.Error.Code); code != "" {
			return code
		}
	}
	return fmt.Sprintf("http %d", status)
}

func readString(cfg map[string]any, key string) (string, bool) {
	if cfg == nil {
		return "", false
	}
	value, ok := cfg[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}
