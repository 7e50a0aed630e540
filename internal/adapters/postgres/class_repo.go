package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// Attribute kinds stored in the attributes table.
const (
	kindGeolocation = "geolocation"
	kindText        = "text"
)

// classMeta is one row of the classes table plus its attributes.
type classMeta struct {
	Name         string
	Label        string
	Icon         string
	Table        string
	NameColumn   string
	Creatable    bool
	SummaryCards bool
	Attributes   []domain.AttributeSchema
}

func (m classMeta) attribute(code string) (domain.AttributeSchema, bool) {
	for _, a := range m.Attributes {
		if a.Code == code {
			return a, true
		}
	}
	return domain.AttributeSchema{}, false
}

// HostRepo is the entity store of the host application. It implements
// ports.QueryExecutor, ports.SchemaSource, ports.EntityRepository,
// ports.DisplayFormatter, ports.Authorizer and ports.SummaryResolver.
//
// Class metadata is read once per class and kept for the life of the repo.
type HostRepo struct {
	db           *DB
	appRoot      string
	summaryCards bool

	mu      sync.RWMutex
	classes map[string]classMeta
}

// NewHostRepo creates a new HostRepo. appRoot prefixes hyperlinks and
// summary URLs; summaryCards is the module-wide summary panel gate.
func NewHostRepo(db *DB, appRoot string, summaryCards bool) *HostRepo {
	return &HostRepo{db: db, appRoot: appRoot, summaryCards: summaryCards, classes: map[string]classMeta{}}
}

func (r *HostRepo) class(ctx context.Context, name string) (classMeta, error) {
	r.mu.RLock()
	m, ok := r.classes[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT name, label, COALESCE(icon, ''), table_name, name_column, creatable, summary_cards
		FROM classes WHERE name = $1
	`, name).Scan(&m.Name, &m.Label, &m.Icon, &m.Table, &m.NameColumn, &m.Creatable, &m.SummaryCards)
	if errors.Is(err, pgx.ErrNoRows) {
		return classMeta{}, fmt.Errorf("%w: class %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return classMeta{}, fmt.Errorf("load class %s: %w", name, err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT code, label, kind, in_list, COALESCE(width, 0), COALESCE(height, 0), display, editable
		FROM attributes WHERE class = $1
		ORDER BY rank, code
	`, name)
	if err != nil {
		return classMeta{}, fmt.Errorf("load attributes of %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a      domain.AttributeSchema
			kind   string
			inList bool
		)
		if err := rows.Scan(&a.Code, &a.Label, &kind, &inList, &a.Width, &a.Height, &a.DisplayRawText, &a.Editable); err != nil {
			return classMeta{}, err
		}
		a.Class = name
		if kind == kindGeolocation {
			a.Capabilities |= domain.CapGeolocation
		}
		if inList {
			a.Capabilities |= domain.CapList
		}
		m.Attributes = append(m.Attributes, a)
	}
	if err := rows.Err(); err != nil {
		return classMeta{}, err
	}

	r.mu.Lock()
	r.classes[name] = m
	r.mu.Unlock()
	return m, nil
}

// ListAttributes returns the attribute schemas of class in display order.
func (r *HostRepo) ListAttributes(ctx context.Context, class string) ([]domain.AttributeSchema, error) {
	m, err := r.class(ctx, class)
	if err != nil {
		return nil, err
	}
	return m.Attributes, nil
}

func (r *HostRepo) ClassLabel(ctx context.Context, class string) (string, error) {
	m, err := r.class(ctx, class)
	if err != nil {
		return "", err
	}
	return m.Label, nil
}

func (r *HostRepo) ClassIcon(ctx context.Context, class string) (string, error) {
	m, err := r.class(ctx, class)
	if err != nil {
		return "", err
	}
	return m.Icon, nil
}

// CanCreate reports whether new entities of class may be created from a map.
func (r *HostRepo) CanCreate(ctx context.Context, class string) (bool, error) {
	m, err := r.class(ctx, class)
	if err != nil {
		return false, err
	}
	return m.Creatable, nil
}
