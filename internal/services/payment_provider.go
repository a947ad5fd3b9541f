package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PaymentProvider is the external payment collaborator. Status updates
// flow back asynchronously through the coordinator's ConfirmPayment.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, sessionID string) (string, error)
	CreatePaymentIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (*PaymentIntent, error)
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type HTTPPaymentProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPPaymentProvider(baseURL, apiKey string) *HTTPPaymentProvider {
	return &HTTPPaymentProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

func (p *HTTPPaymentProvider) CreatePaymentLink(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := p.post(ctx, "/v1/payment_links", map[string]any{"session_id": sessionID}, &out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func (p *HTTPPaymentProvider) CreatePaymentIntent(
	ctx context.Context,
	amount float64,
	currency string,
	metadata map[string]string,
) (*PaymentIntent, error) {
	var out PaymentIntent
	err := p.post(ctx, "/v1/payment_intents", map[string]any{
		"amount":   amount,
		"currency": currency,
		"metadata": metadata,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPPaymentProvider) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("payment provider: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payment response: %w", err)
	}
	return nil
}
