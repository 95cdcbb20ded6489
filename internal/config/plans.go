package config

import (
	"fmt"
	"os"
	"path/filepath"

	"vpn-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type planEntry struct {
	Id           string `yaml:"id"`
	Name         string `yaml:"name"`
	Price        string `yaml:"price"`
	Currency     string `yaml:"currency"`
	DurationDays int    `yaml:"duration_days"`
	DataLimitGb  int64  `yaml:"data_limit_gb"`
}

type plansFile struct {
	Plans []planEntry `yaml:"plans"`
}

// LoadPlans reads the subscription catalog. Prices are parsed as exact
// decimals; a malformed price fails loading rather than rounding silently.
func LoadPlans(file string) ([]models.Plan, error) {
	var plansPath string
	if filepath.IsAbs(file) {
		plansPath = file
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		plansPath = filepath.Join(wd, file)
	}

	data, err := os.ReadFile(plansPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", file, err)
	}

	var parsed plansFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", file, err)
	}

	plans := make([]models.Plan, 0, len(parsed.Plans))
	for i, entry := range parsed.Plans {
		if entry.Id == "" {
			return nil, fmt.Errorf("plan at index %d missing id", i)
		}
		if entry.Currency == "" {
			return nil, fmt.Errorf("plan %s missing currency", entry.Id)
		}
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("plan %s has invalid price %q: %w", entry.Id, entry.Price, err)
		}
		if price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("plan %s price must be positive, got %s", entry.Id, price.String())
		}
		plans = append(plans, models.Plan{
			Id:           entry.Id,
			Name:         entry.Name,
			Price:        price,
			Currency:     entry.Currency,
			DurationDays: entry.DurationDays,
			DataLimitGb:  entry.DataLimitGb,
		})
	}

	return plans, nil
}
