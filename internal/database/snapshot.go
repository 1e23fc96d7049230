package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/promo-crawler/internal/models"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists timeframe snapshots. Each snapshot is stored
// in a single transaction so a partial write is never visible.
type SnapshotRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSnapshotRepository(db *DB, logger *slog.Logger) *SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotRepository{
		db:     db,
		logger: logger.With("component", "snapshot_repository"),
	}
}

// productRow is one stored product; children reference their parent id.
type productRow struct {
	Position     int
	ProductID    string
	ParentID     *string
	Brand        *string
	Title        *string
	Description  *string
	Promotion    *string
	PriceNow     *string
	PriceWas     *string
	ImageURL     *string
	SourceURL    *string
	ChildPageURL *string
}

// flatten lists parents in order, each directly followed by its children.
func flatten(products []*models.NormalizedProduct) []productRow {
	var rows []productRow
	for _, p := range products {
		rows = append(rows, toRow(len(rows), p, nil))
		parentID := p.ID
		for _, c := range p.ChildProducts {
			rows = append(rows, toRow(len(rows), c, &parentID))
		}
	}
	return rows
}

func toRow(position int, p *models.NormalizedProduct, parentID *string) productRow {
	return productRow{
		Position:     position,
		ProductID:    p.ID,
		ParentID:     parentID,
		Brand:        p.Brand,
		Title:        p.Title,
		Description:  p.Description,
		Promotion:    p.Promotion,
		PriceNow:     p.PriceNow,
		PriceWas:     p.PriceWas,
		ImageURL:     p.ImageURL,
		SourceURL:    p.SourceURL,
		ChildPageURL: p.ChildPageURL,
	}
}

// unflatten rebuilds the hierarchy from rows ordered by position.
func unflatten(rows []productRow, window models.TimeframeWindow) []*models.NormalizedProduct {
	products := []*models.NormalizedProduct{}
	var current *models.NormalizedProduct
	for _, row := range rows {
		p := &models.NormalizedProduct{
			ID:            row.ProductID,
			Brand:         row.Brand,
			Title:         row.Title,
			Description:   row.Description,
			Promotion:     row.Promotion,
			PriceNow:      row.PriceNow,
			PriceWas:      row.PriceWas,
			ImageURL:      row.ImageURL,
			SourceURL:     row.SourceURL,
			ChildPageURL:  row.ChildPageURL,
			StartDate:     window.StartDate,
			EndDate:       window.EndDate,
			ChildProducts: []*models.NormalizedProduct{},
		}
		if row.ParentID != nil && current != nil && current.ID == *row.ParentID {
			current.ChildProducts = append(current.ChildProducts, p)
			continue
		}
		products = append(products, p)
		current = p
	}
	return products
}

func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func (r *SnapshotRepository) WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	rows := flatten(snapshot.Products)

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var snapshotID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO crawl_snapshots (run_id, timeframe, url, start_date, end_date, captured_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (run_id, timeframe) DO UPDATE SET captured_at = EXCLUDED.captured_at
			RETURNING id`,
			snapshot.RunID, string(snapshot.Window.Key), snapshot.Window.URL,
			dateArg(snapshot.Window.StartDate), dateArg(snapshot.Window.EndDate), snapshot.CapturedAt,
		).Scan(&snapshotID)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM snapshot_products WHERE snapshot_id = $1`, snapshotID); err != nil {
			return fmt.Errorf("failed to clear snapshot products: %w", err)
		}

		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(`
				INSERT INTO snapshot_products (
					snapshot_id, position, product_id, parent_id, brand, title, description,
					promotion, price_now, price_was, image_url, source_url, child_page_url
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				snapshotID, row.Position, row.ProductID, row.ParentID, row.Brand, row.Title, row.Description,
				row.Promotion, row.PriceNow, row.PriceWas, row.ImageURL, row.SourceURL, row.ChildPageURL)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert snapshot products: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("stored snapshot", "run_id", snapshot.RunID, "timeframe", snapshot.Window.Key, "rows", len(rows))
	return nil
}

// Latest returns the most recent snapshot stored for a timeframe.
func (r *SnapshotRepository) Latest(ctx context.Context, key models.TimeframeKey) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{Window: models.TimeframeWindow{Key: key}}

	var (
		snapshotID int64
		start, end *time.Time
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, run_id, url, start_date, end_date, captured_at
		FROM crawl_snapshots
		WHERE timeframe = $1
		ORDER BY captured_at DESC
		LIMIT 1`, string(key),
	).Scan(&snapshotID, &snapshot.RunID, &snapshot.Window.URL, &start, &end, &snapshot.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snapshot.Window.StartDate = toDate(start)
	snapshot.Window.EndDate = toDate(end)

	dbRows, err := r.db.Query(ctx, `
		SELECT position, product_id, parent_id, brand, title, description, promotion,
			price_now, price_was, image_url, source_url, child_page_url
		FROM snapshot_products
		WHERE snapshot_id = $1
		ORDER BY position`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot products: %w", err)
	}

	rows, err := pgx.CollectRows(dbRows, func(row pgx.CollectableRow) (productRow, error) {
		var p productRow
		err := row.Scan(&p.Position, &p.ProductID, &p.ParentID, &p.Brand, &p.Title, &p.Description,
			&p.Promotion, &p.PriceNow, &p.PriceWas, &p.ImageURL, &p.SourceURL, &p.ChildPageURL)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot products: %w", err)
	}

	snapshot.Products = unflatten(rows, snapshot.Window)
	return snapshot, nil
}

func toDate(t *time.Time) *models.Date {
	if t == nil {
		return nil
	}
	d := models.NewDate(t.Year(), t.Month(), t.Day())
	return &d
}
