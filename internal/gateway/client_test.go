package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vpn-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Invalid decimal %q: %v", s, err)
	}
	return d
}

type fakeGateway struct {
	mu       sync.Mutex
	invoices map[string]*models.Invoice
	lastKey  string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{invoices: make(map[string]*models.Invoice)}
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/invoice", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.lastKey = r.Header.Get("X-Api-Key")

		var payload struct {
			OrderId  string `json:"order_id"`
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		invoice := &models.Invoice{
			InvoiceId: "uuid-" + payload.OrderId,
			OrderId:   payload.OrderId,
			Status:    "pending",
			PayUrl:    "https://pay.example/" + payload.OrderId,
		}
		g.invoices[payload.OrderId] = invoice
		json.NewEncoder(w).Encode(invoice)
	})

	mux.HandleFunc("GET /api/v1/invoice/info", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		invoice, ok := g.invoices[r.URL.Query().Get("order_id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(invoice)
	})

	return mux
}

func newTestClient(t *testing.T, gw *fakeGateway) *Client {
	t.Helper()

	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	client, err := NewClient(models.GatewayConfig{
		BaseUrl:     srv.URL,
		ApiKey:      "test-key",
		CallbackUrl: "https://app.example/api/payments/webhook",
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create gateway client: %v", err)
	}
	return client
}

func TestCreateInvoice(t *testing.T) {
	gw := newFakeGateway()
	client := newTestClient(t, gw)

	invoice, err := client.CreateInvoice(context.Background(), CreateInvoiceParams{
		OrderId:  "order-1",
		Amount:   mustDecimal(t, "25.50"),
		Currency: "USDT",
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if invoice.InvoiceId != "uuid-order-1" {
		t.Errorf("Unexpected invoice id %q", invoice.InvoiceId)
	}
	if invoice.PayUrl == "" {
		t.Error("Expected a pay URL")
	}
	if gw.lastKey != "test-key" {
		t.Errorf("Expected X-Api-Key header, got %q", gw.lastKey)
	}
}

func TestGetInvoice(t *testing.T) {
	gw := newFakeGateway()
	client := newTestClient(t, gw)
	ctx := context.Background()

	if _, err := client.CreateInvoice(ctx, CreateInvoiceParams{
		OrderId: "order-1", Amount: mustDecimal(t, "10"), Currency: "USDT",
	}); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	invoice, err := client.GetInvoice(ctx, "order-1", "")
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if invoice.OrderId != "order-1" || invoice.Status != "pending" {
		t.Errorf("Unexpected invoice: %+v", invoice)
	}
}

func TestGetInvoice_NotFound(t *testing.T) {
	client := newTestClient(t, newFakeGateway())

	_, err := client.GetInvoice(context.Background(), "missing", "")
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("Expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestGetInvoice_RequiresIdentifier(t *testing.T) {
	client := newTestClient(t, newFakeGateway())

	if _, err := client.GetInvoice(context.Background(), "", ""); err == nil {
		t.Fatal("Expected error when no identifier is given")
	}
}
