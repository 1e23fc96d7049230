// Package output writes timeframe snapshots to disk.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maltedev/promo-crawler/internal/models"
)

// FileWriter writes one <timeframe>_offers.json document per timeframe.
type FileWriter struct {
	dir    string
	logger *slog.Logger
}

func NewFileWriter(dir string, logger *slog.Logger) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWriter{
		dir:    dir,
		logger: logger.With("component", "file_writer"),
	}, nil
}

func (w *FileWriter) Path(key models.TimeframeKey) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_offers.json", key))
}

func (w *FileWriter) WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	products := snapshot.Products
	if products == nil {
		products = []*models.NormalizedProduct{}
	}

	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := w.Path(snapshot.Window.Key)

	// Write to temp file first for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	parents, children := models.CountProducts(products)
	w.logger.Info("saved snapshot", "path", path, "parents", parents, "children", children)
	return nil
}
