package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writePlansFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write plans file: %v", err)
	}
	return path
}

func TestLoadPlans(t *testing.T) {
	path := writePlansFile(t, `
plans:
  - id: basic-30
    name: Basic 30 days
    price: "4.99"
    currency: USDT
    duration_days: 30
    data_limit_gb: 100
  - id: pro-30
    name: Pro 30 days
    price: "9.99"
    currency: USDT
    duration_days: 30
    data_limit_gb: 300
`)

	plans, err := LoadPlans(path)
	if err != nil {
		t.Fatalf("LoadPlans failed: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("Expected 2 plans, got %d", len(plans))
	}
	if !plans[0].Price.Equal(decimal.RequireFromString("4.99")) {
		t.Errorf("Expected exact price 4.99, got %s", plans[0].Price.String())
	}
	if plans[1].DataLimitGb != 300 {
		t.Errorf("Expected 300 GB, got %d", plans[1].DataLimitGb)
	}
}

func TestLoadPlans_RejectsBadPrice(t *testing.T) {
	path := writePlansFile(t, `
plans:
  - id: basic-30
    price: "four dollars"
    currency: USDT
`)
	if _, err := LoadPlans(path); err == nil {
		t.Fatal("Expected error for malformed price")
	}
}

func TestLoadPlans_RejectsNonPositivePrice(t *testing.T) {
	path := writePlansFile(t, `
plans:
  - id: basic-30
    price: "0"
    currency: USDT
`)
	if _, err := LoadPlans(path); err == nil {
		t.Fatal("Expected error for zero price")
	}
}

func TestLoadPlans_RejectsMissingFields(t *testing.T) {
	path := writePlansFile(t, `
plans:
  - name: nameless
    price: "1"
    currency: USDT
`)
	if _, err := LoadPlans(path); err == nil {
		t.Fatal("Expected error for missing id")
	}

	path = writePlansFile(t, `
plans:
  - id: basic-30
    price: "1"
`)
	if _, err := LoadPlans(path); err == nil {
		t.Fatal("Expected error for missing currency")
	}
}

func TestLoadPlans_MissingFile(t *testing.T) {
	if _, err := LoadPlans(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
