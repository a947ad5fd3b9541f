package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

// ChannelProvisioner creates the external video channel for a session.
// Invoked once at session creation; the handle is a best-effort
// enrichment of the created session.
type ChannelProvisioner interface {
	CreateChannel(ctx context.Context, sessionID string) (*models.ChannelConfig, error)
}

type HTTPChannelProvisioner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPChannelProvisioner(baseURL, apiKey string) *HTTPChannelProvisioner {
	return &HTTPChannelProvisioner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

func (p *HTTPChannelProvisioner) CreateChannel(ctx context.Context, sessionID string) (*models.ChannelConfig, error) {
	encoded, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("encode channel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/channels", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build channel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel provisioner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("channel provisioner: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var config models.ChannelConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode channel response: %w", err)
	}
	return &config, nil
}
