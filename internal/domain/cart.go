package domain

import (
	"fmt"
	"math"
)

// MaxQuantity bounds a single cart line.
const MaxQuantity = 99

// LineItem is one service in a cart or an order. Title and price are
// snapshotted when the item is first added.
type LineItem struct {
	ServiceID      string `json:"serviceId"`
	Title          string `json:"title"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	DurationLabel  string `json:"duration,omitempty"`
	Quantity       int    `json:"quantity"`
}

// TotalCents is the line price.
func (l LineItem) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// LineItems is the single abstraction for single-service and multi-item checkouts.
type LineItems []LineItem

// TotalCents sums unit price times quantity over all items.
func (items LineItems) TotalCents() int64 {
	var total int64
	for _, it := range items {
		total += it.TotalCents()
	}
	return total
}

// CheckedTotalCents is TotalCents for amounts about to be charged. It rejects
// lines outside 1..MaxQuantity, non-positive prices and totals that overflow.
func (items LineItems) CheckedTotalCents() (int64, error) {
	var total int64
	for _, it := range items {
		if it.Quantity < 1 || it.Quantity > MaxQuantity {
			return 0, Validation(fmt.Sprintf("quantity for %s must be between 1 and %d", it.ServiceID, MaxQuantity))
		}
		if it.UnitPriceCents <= 0 {
			return 0, Validation("invalid price for " + it.ServiceID)
		}
		if it.UnitPriceCents > math.MaxInt64/int64(it.Quantity) {
			return 0, Validation("cart total too large")
		}
		line := it.UnitPriceCents * int64(it.Quantity)
		if total > math.MaxInt64-line {
			return 0, Validation("cart total too large")
		}
		total += line
	}
	return total, nil
}

// Count sums quantities.
func (items LineItems) Count() int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Index returns the position of serviceID or -1.
func (items LineItems) Index(serviceID string) int {
	for i, it := range items {
		if it.ServiceID == serviceID {
			return i
		}
	}
	return -1
}
