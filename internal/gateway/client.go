package gateway

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
	"time"

	"vpn-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// ErrInvoiceNotFound is returned when the gateway has no invoice for the
// given order or invoice id.
var ErrInvoiceNotFound = errors.New("gateway invoice not found")

// Client talks to the crypto payment gateway. Creating an invoice happens
// before the pending transaction is persisted locally, so no store transaction
// is ever held open across this network call.
type Client struct {
	baseUrl     string
	apiKey      string
	callbackUrl string
	httpClient  *http.Client
}

func NewClient(cfg models.GatewayConfig) (*Client, error) {
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("gateway base URL cannot be empty")
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: cfg.Timeout,
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
		return nil, fmt.Errorf("unable to configure gateway transport: %w", err)
	}

	return &Client{
		baseUrl:     cfg.BaseUrl,
		apiKey:      cfg.ApiKey,
		callbackUrl: cfg.CallbackUrl,
		httpClient:  &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}, nil
}

// CreateInvoiceParams carries an idempotent order id so a retried create
// cannot open two invoices for one intent.
type CreateInvoiceParams struct {
	OrderId  string
	Amount   decimal.Decimal
	Currency string
}

// CreateInvoice opens a payment invoice with the gateway.
func (c *Client) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*models.Invoice, error) {
	payload := map[string]any{
		"order_id": params.OrderId,
		"amount":   params.Amount.String(),
		"currency": params.Currency,
	}
	if c.callbackUrl != "" {
		payload["url_callback"] = c.callbackUrl
	}

	var invoice models.Invoice
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/invoice", payload, &invoice); err != nil {
		return nil, err
	}

	zap.L().Info("Gateway invoice created",
		zap.String("order_id", params.OrderId),
		zap.String("invoice_id", invoice.InvoiceId),
		zap.String("amount", params.Amount.String()),
		zap.String("currency", params.Currency))

	return &invoice, nil
}

// GetInvoice pulls the current invoice status on demand, keyed by order id
// and/or gateway invoice id. This is the active verification path.
func (c *Client) GetInvoice(ctx context.Context, orderId, invoiceId string) (*models.Invoice, error) {
	query := url.Values{}
	if orderId != "" {
		query.Set("order_id", orderId)
	}
	if invoiceId != "" {
		query.Set("uuid", invoiceId)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("order id or invoice id required")
	}

	var invoice models.Invoice
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/invoice/info?"+query.Encode(), nil, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody []byte
	var err error
	if body != nil {
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrInvoiceNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d for %s %s: %s", resp.StatusCode, method, path, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
