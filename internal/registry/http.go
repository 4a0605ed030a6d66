package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devans0/fileshare-client/internal/metrics"
)

// HTTPConfig holds HTTP registry client configuration.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient talks JSON over HTTP to a share registry.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a registry client for the given endpoint.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Register lists a file for the owner.
func (c *HTTPClient) Register(ctx context.Context, ownerID, fileName, ownerAddr string, ownerPort int) (int64, error) {
	body := map[string]any{
		"owner_id":  ownerID,
		"file_name": fileName,
		"address":   ownerAddr,
		"port":      ownerPort,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/listings", body, &out)
	if err != nil {
		if isStatus(err, http.StatusConflict) {
			metrics.RecordRegistryCall("register", "conflict")
			return 0, fmt.Errorf("%w: %s", ErrNameConflict, fileName)
		}
		metrics.RecordRegistryCall("register", "error")
		return 0, err
	}
	metrics.RecordRegistryCall("register", "ok")
	return out.ID, nil
}

// Unregister removes a listing. A 404 from the registry is treated as
// success so the call stays idempotent.
func (c *HTTPClient) Unregister(ctx context.Context, listingID int64, ownerID string) error {
	path := fmt.Sprintf("/listings/%d?owner_id=%s", listingID, url.QueryEscape(ownerID))
	err := c.doJSON(ctx, http.MethodDelete, path, nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		metrics.RecordRegistryCall("unregister", "error")
		return err
	}
	metrics.RecordRegistryCall("unregister", "ok")
	return nil
}

// Search returns listings matching the query.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]Listing, error) {
	var out []Listing
	path := "/listings?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		metrics.RecordRegistryCall("search", "error")
		return nil, err
	}
	metrics.RecordRegistryCall("search", "ok")
	return out, nil
}

// Owner resolves the peer endpoint for a listing.
func (c *HTTPClient) Owner(ctx context.Context, listingID int64) (Owner, error) {
	var out Owner
	path := fmt.Sprintf("/listings/%d/owner", listingID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		metrics.RecordRegistryCall("owner", "error")
		return Owner{}, err
	}
	metrics.RecordRegistryCall("owner", "ok")
	return out, nil
}

// LeaseSeconds returns the registry's advisory listing TTL.
func (c *HTTPClient) LeaseSeconds(ctx context.Context) (int, error) {
	var out struct {
		Seconds int `json:"seconds"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/lease", nil, &out); err != nil {
		metrics.RecordRegistryCall("lease", "error")
		return 0, err
	}
	metrics.RecordRegistryCall("lease", "ok")
	return out.Seconds, nil
}

// Heartbeat refreshes the owner's listings.
func (c *HTTPClient) Heartbeat(ctx context.Context, ownerID string) (bool, error) {
	body := map[string]any{"owner_id": ownerID}
	var out struct {
		Alive bool `json:"alive"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/heartbeat", body, &out); err != nil {
		metrics.RecordRegistryCall("heartbeat", "error")
		return false, err
	}
	metrics.RecordRegistryCall("heartbeat", "ok")
	return out.Alive, nil
}

// Disconnect removes every listing of the owner.
func (c *HTTPClient) Disconnect(ctx context.Context, ownerID string) error {
	body := map[string]any{"owner_id": ownerID}
	if err := c.doJSON(ctx, http.MethodPost, "/disconnect", body, nil); err != nil {
		metrics.RecordRegistryCall("disconnect", "error")
		return err
	}
	metrics.RecordRegistryCall("disconnect", "ok")
	return nil
}

// statusError carries a non-2xx registry response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("registry returned %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("registry returned %d", e.Code)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.Code == code
}

// doJSON issues one request and decodes the JSON response into out when out
// is non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding registry response: %w", err)
	}
	return nil
}
