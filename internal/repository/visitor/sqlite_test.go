package visitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serenity-booking/internal/db"
	"serenity-booking/internal/domain"
)

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.ConnectSQLite(ctx, filepath.Join(t.TempDir(), "visitors.db"))
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewSQLite(sqlDB, nil)

	_, err = repo.Get(ctx, "v-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := domain.VisitorProfile{
		ID:         "v-1",
		Name:       "Ada",
		Email:      "ada@example.com",
		CartItems:  domain.LineItems{{ServiceID: "cleaning", Title: "House Cleaning", UnitPriceCents: 6000, Quantity: 2}},
		LastVisit:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		VisitCount: 3,
	}
	require.NoError(t, repo.Put(ctx, p))

	p.VisitCount = 4
	require.NoError(t, repo.Put(ctx, p))

	got, err := repo.Get(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, p, *got)

	require.NoError(t, repo.Delete(ctx, "v-1"))
	_, err = repo.Get(ctx, "v-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
