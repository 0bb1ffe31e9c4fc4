// Package catalog holds the fixed list of bookable services. The list is
// defined at deploy time and never mutated while the process runs.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"serenity-booking/internal/domain"
)

//go:embed services.yaml
var defaultDefinition []byte

type definition struct {
	Currency string         `yaml:"currency"`
	Services []serviceEntry `yaml:"services"`
}

type serviceEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Duration    string `yaml:"duration"`
}

// Catalog is an immutable, ordered set of services.
type Catalog struct {
	currency string
	order    []string
	byID     map[string]domain.Service
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultDefinition)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and parses a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and validates every entry.
func Parse(data []byte) (*Catalog, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(def.Services) == 0 {
		return nil, errors.New("catalog has no services")
	}

	c := &Catalog{
		currency: strings.ToLower(strings.TrimSpace(def.Currency)),
		byID:     make(map[string]domain.Service, len(def.Services)),
	}
	if c.currency == "" {
		c.currency = "usd"
	}

	for i, entry := range def.Services {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("service %d: id required", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("service %q: duplicate id", id)
		}
		if strings.TrimSpace(entry.Title) == "" {
			return nil, fmt.Errorf("service %q: title required", id)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(entry.Price))
		if err != nil {
			return nil, fmt.Errorf("service %q: price %q: %w", id, entry.Price, err)
		}
		cents, err := priceToCents(price)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", id, err)
		}
		c.byID[id] = domain.Service{
			ID:             id,
			Title:          strings.TrimSpace(entry.Title),
			Description:    strings.TrimSpace(entry.Description),
			UnitPriceCents: cents,
			DurationLabel:  strings.TrimSpace(entry.Duration),
		}
		c.order = append(c.order, id)
	}
	return c, nil
}

func priceToCents(price decimal.Decimal) (int64, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("price must be positive, got %s", price)
	}
	cents := price.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("price %s has sub-cent precision", price)
	}
	return cents.IntPart(), nil
}

// Get returns the service with the given id.
func (c *Catalog) Get(id string) (domain.Service, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// List returns all services in definition order.
func (c *Catalog) List() []domain.Service {
	out := make([]domain.Service, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Currency is the lower-case ISO code the prices are expressed in.
func (c *Catalog) Currency() string {
	return c.currency
}
