package visitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
)

type sqliteRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite returns a Repository backed by a sqlite database opened with
// db.ConnectSQLite.
func NewSQLite(db *sql.DB, logger *zap.Logger) Repository {
	return &sqliteRepo{db: db, logger: logging.OrNop(logger).Named("visitor_sqlite")}
}

func (r *sqliteRepo) Get(ctx context.Context, id string) (*domain.VisitorProfile, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT profile FROM visitor_profiles WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get", zap.String("visitor_id", id), zap.Error(err))
		return nil, err
	}
	var p domain.VisitorProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqliteRepo) Put(ctx context.Context, p domain.VisitorProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO visitor_profiles (id, profile, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at
`
	if _, err := r.db.ExecContext(ctx, q, p.ID, string(raw), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		r.logger.Error("put", zap.String("visitor_id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *sqliteRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM visitor_profiles WHERE id = ?`, id); err != nil {
		r.logger.Error("delete", zap.String("visitor_id", id), zap.Error(err))
		return err
	}
	return nil
}
