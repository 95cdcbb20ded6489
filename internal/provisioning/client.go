package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"vpn-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// ErrNotFound is returned when the panel has no account for a username.
var ErrNotFound = errors.New("panel account not found")

// tokenRefreshMargin refreshes the bearer token proactively, before expiry,
// so requests never race an expired credential.
const tokenRefreshMargin = time.Minute

// tokenCache holds the panel's bearer token, owned by one Client instance.
// The clock is injected so tests can drive expiry.
type tokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func (c *tokenCache) get(refresh func() (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires.Add(-tokenRefreshMargin)) {
		return c.token, nil
	}

	token, ttl, err := refresh()
	if err != nil {
		return "", err
	}
	c.token = token
	c.expires = c.now().Add(ttl)
	return token, nil
}

// Client talks to the VPN provisioning panel. The panel is its own source of
// truth for quota, usage and status; this client only reads and nudges it.
type Client struct {
	baseUrl    string
	username   string
	password   string
	httpClient *http.Client
	tokens     *tokenCache
}

func NewClient(cfg models.PanelConfig) (*Client, error) {
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("panel base URL cannot be empty")
	}

	httpClient, err := createHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create panel http client: %w", err)
	}

	return &Client{
		baseUrl:    cfg.BaseUrl,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		tokens:     &tokenCache{now: time.Now},
	}, nil
}

func createHttpClient(timeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: timeout,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

func (c *Client) fetchToken() (string, time.Duration, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	resp, err := c.httpClient.Post(c.baseUrl+"/api/admin/token",
		"application/x-www-form-urlencoded", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("panel token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("panel token request returned %d: %s", resp.StatusCode, string(body))
	}

	var token models.PanelToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", 0, fmt.Errorf("failed to decode panel token: %w", err)
	}
	if token.AccessToken == "" {
		return "", 0, fmt.Errorf("panel returned empty access token")
	}

	ttl := time.Duration(token.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	zap.L().Debug("Panel token refreshed", zap.Duration("ttl", ttl))
	return token.AccessToken, ttl, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) (int, error) {
	token, err := c.tokens.get(c.fetchToken)
	if err != nil {
		return 0, err
	}

	var reqBody []byte
	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("panel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("panel returned %d for %s %s: %s",
			resp.StatusCode, method, path, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode panel response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetAccount returns the panel's view of a username, or ErrNotFound.
func (c *Client) GetAccount(ctx context.Context, username string) (*models.PanelAccount, error) {
	var account models.PanelAccount
	if _, err := c.doRequest(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccount provisions a new panel account with the given quota.
func (c *Client) CreateAccount(ctx context.Context, username string, quotaBytes int64) (*models.PanelAccount, error) {
	payload := map[string]any{
		"username":   username,
		"data_limit": quotaBytes,
		"status":     "active",
	}

	var account models.PanelAccount
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/user", payload, &account); err != nil {
		return nil, err
	}

	zap.L().Info("Panel account created",
		zap.String("username", username),
		zap.Int64("data_limit", quotaBytes))
	return &account, nil
}

// UpdateAccount patches quota fields. When the target does not exist remotely
// it is created first and the update retried once; the bound is an explicit
// loop, not recursion, so the failure ceiling stays obvious.
func (c *Client) UpdateAccount(ctx context.Context, username string, fields map[string]any) (*models.PanelAccount, error) {
	var account models.PanelAccount
	for attempt := 0; attempt < 2; attempt++ {
		_, err := c.doRequest(ctx, http.MethodPut, "/api/user/"+url.PathEscape(username), fields, &account)
		if err == nil {
			return &account, nil
		}
		if !errors.Is(err, ErrNotFound) || attempt > 0 {
			return nil, err
		}

		zap.L().Info("Panel account missing on update, creating first",
			zap.String("username", username))
		var quota int64
		if v, ok := fields["data_limit"].(int64); ok {
			quota = v
		}
		if _, err := c.CreateAccount(ctx, username, quota); err != nil {
			return nil, err
		}
	}
	return &account, nil
}
