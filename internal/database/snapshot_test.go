package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleProducts() []*models.NormalizedProduct {
	return []*models.NormalizedProduct{
		{
			ID:           "p1",
			Title:        strPtr("Bundel"),
			PriceNow:     strPtr("3.49"),
			ChildPageURL: strPtr("https://www.hoogvliet.com/promo/p1"),
			ChildProducts: []*models.NormalizedProduct{
				{ID: "c1", Title: strPtr("Kind 1"), ChildProducts: []*models.NormalizedProduct{}},
				{ID: "c2", ChildProducts: []*models.NormalizedProduct{}},
			},
		},
		{ID: "p2", ChildProducts: []*models.NormalizedProduct{}},
	}
}

func TestFlatten(t *testing.T) {
	rows := flatten(sampleProducts())
	require.Len(t, rows, 4)

	assert.Equal(t, "p1", rows[0].ProductID)
	assert.Nil(t, rows[0].ParentID)
	assert.Equal(t, "c1", rows[1].ProductID)
	require.NotNil(t, rows[1].ParentID)
	assert.Equal(t, "p1", *rows[1].ParentID)
	assert.Equal(t, "c2", rows[2].ProductID)
	assert.Equal(t, "p2", rows[3].ProductID)
	assert.Nil(t, rows[3].ParentID)

	for i, row := range rows {
		assert.Equal(t, i, row.Position)
	}
}

func TestUnflattenRestoresHierarchy(t *testing.T) {
	start := models.NewDate(2024, time.January, 8)
	window := models.TimeframeWindow{Key: models.TimeframeCurrent, StartDate: &start}

	products := unflatten(flatten(sampleProducts()), window)
	require.Len(t, products, 2)

	assert.Equal(t, "p1", products[0].ID)
	require.Len(t, products[0].ChildProducts, 2)
	assert.Equal(t, "c2", products[0].ChildProducts[1].ID)
	assert.Equal(t, "3.49", *products[0].PriceNow)
	assert.Equal(t, "2024-01-08", products[0].ChildProducts[0].StartDate.String())
	assert.Empty(t, products[1].ChildProducts)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "crawler", Password: "p@ss", Database: "promo"}
	assert.Equal(t, "postgres://crawler:p%40ss@db:5433/promo?sslmode=disable", cfg.DSN())
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx))
	repo := NewSnapshotRepository(db, nil)

	start := models.NewDate(2024, time.January, 8)
	end := models.NewDate(2024, time.January, 14)
	snapshot := &models.Snapshot{
		RunID: uuid.NewString(),
		Window: models.TimeframeWindow{
			Key:       models.TimeframeKey("test-" + uuid.NewString()[:8]),
			URL:       "https://www.hoogvliet.com/browse?current",
			StartDate: &start,
			EndDate:   &end,
		},
		Products:   sampleProducts(),
		CapturedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.WriteSnapshot(ctx, snapshot))
	// writing the same run twice replaces the products
	require.NoError(t, repo.WriteSnapshot(ctx, snapshot))

	latest, err := repo.Latest(ctx, snapshot.Window.Key)
	require.NoError(t, err)
	assert.Equal(t, snapshot.RunID, latest.RunID)
	require.Len(t, latest.Products, 2)
	assert.Len(t, latest.Products[0].ChildProducts, 2)
	assert.Equal(t, "2024-01-14", latest.Window.EndDate.String())

	_, err = repo.Latest(ctx, "missing-"+models.TimeframeKey(uuid.NewString()))
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Test database not configured")
	}
	db, err := Connect(context.Background(), dsn, Config{})
	require.NoError(t, err)
	return db
}
