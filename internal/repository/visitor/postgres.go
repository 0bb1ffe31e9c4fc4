package visitor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by the visitor_profiles table.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("visitor_repo")}
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.VisitorProfile, error) {
	const q = `SELECT profile FROM visitor_profiles WHERE id = $1`
	var raw []byte
	if err := r.pool.QueryRow(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get", zap.String("visitor_id", id), zap.Error(err))
		return nil, err
	}
	var p domain.VisitorProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Error("decode profile", zap.String("visitor_id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Put(ctx context.Context, p domain.VisitorProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO visitor_profiles (id, profile, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()
`
	if _, err := r.pool.Exec(ctx, q, p.ID, raw); err != nil {
		r.logger.Error("put", zap.String("visitor_id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM visitor_profiles WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, id); err != nil {
		r.logger.Error("delete", zap.String("visitor_id", id), zap.Error(err))
		return err
	}
	return nil
}
