package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
)

const defaultListLimit = 500

const orderColumns = `id::text, customer_name, customer_email, customer_phone, customer_address, service_type,
       items, amount_cents, currency, COALESCE(payment_intent_id, ''), scheduled_date, scheduled_time, notes,
       status, payment_status, visitor_id, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("order_repo")}
}

func (r *postgresRepo) Insert(ctx context.Context, o domain.Order) (*domain.Order, error) {
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO orders (
    customer_name, customer_email, customer_phone, customer_address, service_type, items, amount_cents,
    currency, payment_intent_id, scheduled_date, scheduled_time, notes, status, payment_status, visitor_id
) VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + orderColumns
	return r.scanOrder(r.pool.QueryRow(ctx, q, insertArgs(o, itemsJSON)...))
}

func (r *postgresRepo) UpsertByPaymentIntent(ctx context.Context, o domain.Order) (*domain.Order, bool, error) {
	if o.PaymentIntentID == "" {
		return nil, false, errors.New("payment intent id required for upsert")
	}
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return nil, false, err
	}
	// xmax is zero only for a freshly inserted tuple.
	q := `
INSERT INTO orders (
    customer_name, customer_email, customer_phone, customer_address, service_type, items, amount_cents,
    currency, payment_intent_id, scheduled_date, scheduled_time, notes, status, payment_status, visitor_id
) VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (payment_intent_id) DO UPDATE SET
    customer_name    = COALESCE(NULLIF(EXCLUDED.customer_name, ''), orders.customer_name),
    customer_email   = COALESCE(NULLIF(EXCLUDED.customer_email, ''), orders.customer_email),
    customer_phone   = COALESCE(NULLIF(EXCLUDED.customer_phone, ''), orders.customer_phone),
    customer_address = COALESCE(NULLIF(EXCLUDED.customer_address, ''), orders.customer_address),
    service_type     = COALESCE(NULLIF(EXCLUDED.service_type, ''), orders.service_type),
    items            = CASE WHEN EXCLUDED.items = '[]'::jsonb THEN orders.items ELSE EXCLUDED.items END,
    amount_cents     = EXCLUDED.amount_cents,
    scheduled_date   = COALESCE(NULLIF(EXCLUDED.scheduled_date, ''), orders.scheduled_date),
    scheduled_time   = COALESCE(NULLIF(EXCLUDED.scheduled_time, ''), orders.scheduled_time),
    notes            = COALESCE(NULLIF(EXCLUDED.notes, ''), orders.notes),
    visitor_id       = COALESCE(NULLIF(EXCLUDED.visitor_id, ''), orders.visitor_id),
    status           = CASE
                           WHEN orders.payment_status = 'paid'
                                AND (orders.status <> 'pending' OR EXCLUDED.payment_status <> 'paid')
                           THEN orders.status
                           ELSE EXCLUDED.status
                       END,
    payment_status   = CASE WHEN orders.payment_status = 'paid' THEN orders.payment_status ELSE EXCLUDED.payment_status END,
    updated_at       = now()
RETURNING ` + orderColumns + `, (xmax = 0) AS inserted`

	row := r.pool.QueryRow(ctx, q, insertArgs(o, itemsJSON)...)
	var inserted bool
	out, err := r.scanOrderWith(row, &inserted)
	if err != nil {
		return nil, false, err
	}
	r.logger.Debug("upsert",
		zap.String("order_id", out.ID),
		zap.String("payment_intent_id", out.PaymentIntentID),
		zap.Bool("created", inserted))
	return out, inserted, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE payment_intent_id = $1`
	return r.scanOrder(r.pool.QueryRow(ctx, q, intentID))
}

func (r *postgresRepo) ListByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + `
FROM orders
WHERE lower(customer_email) = lower($1)
ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, strings.TrimSpace(email))
	if err != nil {
		r.logger.Error("list by email", zap.Error(err))
		return nil, err
	}
	return r.collect(rows)
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(customer_name ILIKE $%d OR customer_email ILIKE $%d OR id::text ILIKE $%d)", n, n, n))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ServiceType != "" {
		args = append(args, f.ServiceType)
		where = append(where, fmt.Sprintf("service_type = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	args = append(args, limit)

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list", zap.Error(err))
		return nil, err
	}
	return r.collect(rows)
}

func (r *postgresRepo) Patch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `
UPDATE orders
SET scheduled_date = COALESCE($2::text, scheduled_date),
    scheduled_time = COALESCE($3::text, scheduled_time),
    notes          = COALESCE($4::text, notes),
    updated_at     = now()
WHERE id = $1
RETURNING ` + orderColumns
	return r.scanOrder(r.pool.QueryRow(ctx, q, id, p.ScheduledDate, p.ScheduledTime, p.Notes))
}

func (r *postgresRepo) SetPaymentState(ctx context.Context, intentID string, status domain.OrderStatus, payment domain.PaymentStatus) (*domain.Order, error) {
	q := `
UPDATE orders
SET status = CASE WHEN orders.status = 'completed' AND $3::text = 'paid' THEN orders.status ELSE $2::text END,
    payment_status = $3::text,
    updated_at = now()
WHERE payment_intent_id = $1
  AND NOT (payment_status = 'paid' AND $3::text <> 'paid')
RETURNING ` + orderColumns
	out, err := r.scanOrder(r.pool.QueryRow(ctx, q, intentID, string(status), string(payment)))
	if errors.Is(err, domain.ErrNotFound) {
		// Either no order or a paid order that must not be downgraded.
		existing, getErr := r.GetByPaymentIntentID(ctx, intentID)
		if getErr != nil {
			return nil, getErr
		}
		r.logger.Warn("refused to downgrade paid order",
			zap.String("order_id", existing.ID),
			zap.String("payment_intent_id", intentID),
			zap.String("requested_payment_status", string(payment)))
		return existing, nil
	}
	return out, err
}

func (r *postgresRepo) collect(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("rows", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	return r.scanOrderWith(row)
}

func (r *postgresRepo) scanOrderWith(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o         domain.Order
		itemsJSON []byte
		status    string
		payStatus string
	)
	dest := []any{
		&o.ID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.CustomerAddress,
		&o.ServiceType,
		&itemsJSON,
		&o.AmountCents,
		&o.Currency,
		&o.PaymentIntentID,
		&o.ScheduledDate,
		&o.ScheduledTime,
		&o.Notes,
		&status,
		&payStatus,
		&o.VisitorID,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("scan", zap.Error(err))
		return nil, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			r.logger.Error("decode items", zap.String("order_id", o.ID), zap.Error(err))
			return nil, err
		}
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.Amount = domain.CentsToAmount(o.AmountCents)
	return &o, nil
}

func insertArgs(o domain.Order, itemsJSON []byte) []any {
	status := o.Status
	if status == "" {
		status = domain.OrderPending
	}
	payment := o.PaymentStatus
	if payment == "" {
		payment = domain.PaymentPending
	}
	currency := o.Currency
	if currency == "" {
		currency = "usd"
	}
	return []any{
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.CustomerAddress,
		o.ServiceType,
		itemsJSON,
		o.AmountCents,
		currency,
		nullIfEmpty(o.PaymentIntentID),
		o.ScheduledDate,
		o.ScheduledTime,
		o.Notes,
		string(status),
		string(payment),
		o.VisitorID,
	}
}

func marshalItems(items domain.LineItems) ([]byte, error) {
	if items == nil {
		items = domain.LineItems{}
	}
	return json.Marshal(items)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
