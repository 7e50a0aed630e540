package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// WidgetRepo implements ports.WidgetRepository with pgx.
type WidgetRepo struct {
	db *DB
}

// NewWidgetRepo creates a new WidgetRepo.
func NewWidgetRepo(db *DB) *WidgetRepo {
	return &WidgetRepo{db: db}
}

// Get returns a widget definition by ID.
func (r *WidgetRepo) Get(ctx context.Context, id string) (*domain.Widget, error) {
	var w domain.Widget
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, height, search, query, COALESCE(attribute, '')
		FROM widgets WHERE id = $1
	`, id).Scan(&w.ID, &w.Height, &w.Search, &w.Query, &w.Attribute)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: widget %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Save inserts or updates a widget definition.
func (r *WidgetRepo) Save(ctx context.Context, w *domain.Widget) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO widgets (id, height, search, query, attribute, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW())
		ON CONFLICT (id) DO UPDATE
		SET height = EXCLUDED.height, search = EXCLUDED.search,
		    query = EXCLUDED.query, attribute = EXCLUDED.attribute,
		    updated_at = NOW()
	`, w.ID, w.Height, w.Search, w.Query, w.Attribute)
	return err
}
