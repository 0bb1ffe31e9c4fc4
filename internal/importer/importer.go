package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/payment"
)

type OrderWriter interface {
	UpsertByPaymentIntent(ctx context.Context, o domain.Order) (*domain.Order, bool, error)
}

// Result counts what a run did.
type Result struct {
	Created int
	Updated int
	// Skipped rows carry no payment intent id and cannot be imported
	// idempotently.
	Skipped int
}

// CSVImporter reads an orders table export (one row per order, snake_case
// headers) and upserts each order by payment intent id.
type CSVImporter struct {
	reader *csv.Reader
	orders OrderWriter
	logger *zap.Logger
}

func NewCSVImporter(r io.Reader, orders OrderWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		orders: orders,
		logger: logging.OrNop(logger).Named("importer"),
	}
}

// Run parses CSV rows and upserts orders. It stops at the first invalid row;
// rows before it stay imported.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	var res Result
	headers, err := i.reader.Read()
	if err != nil {
		return res, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["payment_intent_id"]; !ok {
		return res, errors.New("not an orders export: missing payment_intent_id column")
	}

	line := 1
	for {
		record, err := i.reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row: %w", err)
		}

		o, err := parseRow(record, index)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if o == nil {
			continue
		}
		if o.PaymentIntentID == "" {
			i.logger.Warn("skipping order without payment intent", zap.Int("line", line), zap.String("email", o.CustomerEmail))
			res.Skipped++
			continue
		}

		_, created, err := i.orders.UpsertByPaymentIntent(ctx, *o)
		if err != nil {
			return res, fmt.Errorf("line %d: upsert order %q: %w", line, o.PaymentIntentID, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return idx
}

// parseRow returns nil for a blank row.
func parseRow(record []string, index map[string]int) (*domain.Order, error) {
	o := domain.Order{
		CustomerName:    pick(record, index, "customer_name"),
		CustomerEmail:   strings.ToLower(pick(record, index, "customer_email")),
		CustomerPhone:   pick(record, index, "customer_phone"),
		CustomerAddress: pick(record, index, "customer_address"),
		ServiceType:     pick(record, index, "service_type"),
		Currency:        strings.ToLower(pick(record, index, "currency")),
		PaymentIntentID: pick(record, index, "payment_intent_id"),
		ScheduledDate:   pick(record, index, "scheduled_date"),
		ScheduledTime:   trimSeconds(pick(record, index, "scheduled_time")),
		Notes:           pick(record, index, "notes"),
		Status:          domain.OrderStatus(strings.ToLower(pick(record, index, "status"))),
		PaymentStatus:   domain.PaymentStatus(strings.ToLower(pick(record, index, "payment_status"))),
	}
	amount := pick(record, index, "amount")
	if o.CustomerName == "" && o.CustomerEmail == "" && o.PaymentIntentID == "" && amount == "" {
		return nil, nil
	}

	if o.CustomerName == "" || o.CustomerEmail == "" {
		return nil, errors.New("customer_name and customer_email are required")
	}
	dollars, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	cents, err := payment.CentsFromDollars(dollars)
	if err != nil {
		return nil, err
	}
	if cents <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	o.AmountCents = cents

	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.PaymentStatus == "" {
		// Older exports predate the column; a confirmed order was always paid.
		o.PaymentStatus = domain.PaymentPending
		if o.Status == domain.OrderConfirmed || o.Status == domain.OrderCompleted {
			o.PaymentStatus = domain.PaymentPaid
		}
	}
	switch o.Status {
	case domain.OrderPending, domain.OrderConfirmed, domain.OrderCompleted, domain.OrderCancelled:
	default:
		return nil, fmt.Errorf("unknown status %q", o.Status)
	}
	switch o.PaymentStatus {
	case domain.PaymentPending, domain.PaymentPaid, domain.PaymentFailed:
	default:
		return nil, fmt.Errorf("unknown payment_status %q", o.PaymentStatus)
	}
	if !domain.ConsistentStatus(o.Status, o.PaymentStatus) {
		return nil, fmt.Errorf("status %s conflicts with payment_status %s", o.Status, o.PaymentStatus)
	}
	return &o, nil
}

// trimSeconds turns a database time "14:30:00" into "14:30".
func trimSeconds(s string) string {
	if len(s) == len("15:04:05") && s[2] == ':' && s[5] == ':' {
		return s[:5]
	}
	return s
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
