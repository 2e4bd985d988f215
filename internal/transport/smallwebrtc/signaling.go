package smallwebrtc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SessionDescription is the SDP body exchanged with the offer endpoint.
type SessionDescription struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
	// PCID is assigned by the server on the answer.
	PCID string `json:"pc_id,omitempty"`
}

// ProviderOption is one selectable provider reported by the server.
type ProviderOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AvailableProviders lists the providers the server has credentials for.
type AvailableProviders struct {
	STT []ProviderOption `json:"stt"`
	LLM []ProviderOption `json:"llm"`
}

// SignalingClient talks to the dictation server's HTTP API.
type SignalingClient struct {
	baseURL    string
	httpClient *resty.Client
}

func NewSignalingClient(baseURL string, timeout time.Duration) *SignalingClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", "tambourine/1.0").
		SetTimeout(timeout)

	return &SignalingClient{baseURL: baseURL, httpClient: httpClient}
}

// Offer posts the local SDP offer and returns the server's answer.
func (c *SignalingClient) Offer(ctx context.Context, offer SessionDescription) (*SessionDescription, error) {
	if c.baseURL == "" {
		return nil, errors.New("server url is not configured")
	}

	var answer SessionDescription
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(offer).
		SetResult(&answer).
		Post("/api/offer")
	if err != nil {
		return nil, fmt.Errorf("offer request failed: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("offer rejected (%d): %s", httpResp.StatusCode(), httpResp.String())
	}
	if answer.SDP == "" {
		return nil, errors.New("offer answer has no sdp")
	}
	return &answer, nil
}

// Providers returns the providers the server can switch between.
func (c *SignalingClient) Providers(ctx context.Context) (*AvailableProviders, error) {
	if c.baseURL == "" {
		return nil, errors.New("server url is not configured")
	}

	var providers AvailableProviders
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&providers).
		Get("/api/providers/available")
	if err != nil {
		return nil, fmt.Errorf("providers request failed: %w", err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("providers error (%d): %s", httpResp.StatusCode(), httpResp.String())
	}
	return &providers, nil
}
