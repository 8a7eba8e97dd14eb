package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"apthere/internal/core"
)

const (
	tradePath = "/1613000/RTMSDataSvcAptTrade/getRTMSDataSvcAptTrade"
	rentPath  = "/1613000/RTMSDataSvcAptRent/getRTMSDataSvcAptRent"

	DefaultBaseURL = "http://apis.data.go.kr"
	DefaultRows    = 999
)

// Config holds the public-data portal settings.
type Config struct {
	BaseURL    string
	ServiceKey string // decoded key; it is URL-encoded when the request is built
	Rows       int
	HTTPClient *http.Client
}

// Client fetches apartment trade and rent reports from the public-data portal.
type Client struct {
	baseURL    string
	serviceKey string
	rows       int
	http       *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Rows <= 0 {
		cfg.Rows = DefaultRows
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClientWithPooling()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		rows:       cfg.Rows,
		http:       cfg.HTTPClient,
	}
}

// newHTTPClientWithPooling builds a client with connection reuse for the
// burst of per-month calls a single lookup triggers.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   24,
		MaxConnsPerHost:       48,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}

type envelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// Fetch calls the feed once for one region-month bucket and returns its rows.
func (c *Client) Fetch(ctx context.Context, regionCode5, yearMonth string, source core.SourceKind) ([]RawFields, error) {
	key := core.BucketKey{RegionCode5: regionCode5, YearMonth: yearMonth, Source: source}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	reqURL, err := c.buildURL(key)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call public data api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public data api returned status %d", resp.StatusCode)
	}

	items, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	rows := items.List()
	slog.DebugContext(ctx, "Fetched public data bucket",
		"region_code", regionCode5,
		"year_month", yearMonth,
		"source_kind", source,
		"shape", items.Shape.String(),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return rows, nil
}

func (c *Client) buildURL(key core.BucketKey) (string, error) {
	path := tradePath
	if key.Source == core.SourceRent {
		path = rentPath
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("serviceKey", c.serviceKey)
	q.Set("LAWD_CD", key.RegionCode5)
	q.Set("DEAL_YMD", key.YearMonth)
	q.Set("_type", "json")
	q.Set("numOfRows", strconv.Itoa(c.rows))
	q.Set("pageNo", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeResponse unwraps the envelope and rejects error result codes.
func decodeResponse(body []byte) (Items, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Items{}, fmt.Errorf("decode public data response: %w", err)
	}

	code := strings.TrimSpace(env.Response.Header.ResultCode)
	if code != "" && strings.Trim(code, "0") != "" {
		return Items{}, &APIError{Code: code, Message: env.Response.Header.ResultMsg}
	}

	return decodeItems(env.Response.Body.Items)
}

// APIError is a non-success result code reported inside a 200 response.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("public data api error %s: %s", e.Code, e.Message)
}

// IsAPIError reports whether err carries an upstream result code.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
