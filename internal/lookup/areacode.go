// Package lookup talks to the collaborators that turn places into region codes.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"apthere/internal/core"
)

const defaultTimeout = 10 * time.Second

// AreaCodeClient resolves legal-district codes from the area-code API.
type AreaCodeClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewAreaCodeClient(baseURL, apiKey string, httpClient *http.Client) *AreaCodeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &AreaCodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

type areaCodeEnvelope struct {
	Payload *struct {
		Content []struct {
			Code    string `json:"code"`
			Address string `json:"address"`
		} `json:"content"`
	} `json:"payload"`
}

// Resolve returns the 10-digit code of a village within a city.
func (c *AreaCodeClient) Resolve(ctx context.Context, city, village string) (string, error) {
	q := url.Values{}
	q.Set("city", city)
	q.Set("village", village)
	code, err := c.first(ctx, q)
	if err != nil {
		return "", fmt.Errorf("resolve %s %s: %w", city, village, err)
	}
	return code, nil
}

// ResolveAddress returns the 10-digit code for a free-form address.
func (c *AreaCodeClient) ResolveAddress(ctx context.Context, address string) (string, error) {
	q := url.Values{}
	q.Set("address", address)
	code, err := c.first(ctx, q)
	if err != nil {
		return "", fmt.Errorf("resolve address %q: %w", address, err)
	}
	return code, nil
}

func (c *AreaCodeClient) first(ctx context.Context, q url.Values) (string, error) {
	q.Set("page", "0")
	q.Set("size", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/area-codes?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call area code api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("area code api returned status %d", resp.StatusCode)
	}

	var env areaCodeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode area code response: %w", err)
	}
	if env.Payload == nil || len(env.Payload.Content) == 0 || strings.TrimSpace(env.Payload.Content[0].Code) == "" {
		return "", core.ErrRegionNotFound
	}
	return strings.TrimSpace(env.Payload.Content[0].Code), nil
}
