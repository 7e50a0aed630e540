package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geomap/internal/core/domain"
)

const keyColumn = "id"

func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// selectQuery builds the statement for q over the class table: key, name,
// the two columns of attr, then every list attribute as text. Condition
// fields must be the key, the name column or an attribute of the class.
func selectQuery(m classMeta, q domain.EntityQuery, attr domain.AttributeSchema) (string, []any, []domain.AttributeSchema, error) {
	var (
		cols   = []string{ident(keyColumn) + "::text", ident(m.NameColumn) + "::text"}
		fields []domain.AttributeSchema
	)
	cols = append(cols, ident(attr.LatColumn(""))+"::float8", ident(attr.LngColumn(""))+"::float8")
	for _, a := range m.Attributes {
		if a.Is(domain.CapList) && !a.IsGeolocation() {
			cols = append(cols, ident(a.Code)+"::text")
			fields = append(fields, a)
		}
	}

	var (
		where []string
		args  []any
	)
	for _, cond := range q.Where {
		col := cond.Field
		if col != keyColumn && col != m.NameColumn {
			a, ok := m.attribute(col)
			if !ok || a.IsGeolocation() {
				return "", nil, nil, fmt.Errorf("%w: unknown field %s of %s", domain.ErrFormat, col, m.Name)
			}
		}
		args = append(args, cond.Value)
		where = append(where, fmt.Sprintf("%s::text = $%d", ident(col), len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(ident(m.Table))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(ident(keyColumn))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, fields, nil
}

// Execute runs q and loads the name, the list attributes and the
// geolocation attribute of every row.
func (r *HostRepo) Execute(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error) {
	m, err := r.class(ctx, q.Class)
	if err != nil {
		return nil, err
	}
	attr, ok := m.attribute(attribute)
	if !ok || !attr.IsGeolocation() {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrNotGeolocation, q.Class, attribute)
	}

	sql, args, fields, err := selectQuery(m, q, attr)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Class, err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var (
			e        = domain.Entity{Ref: domain.EntityRef{Class: q.Class}, Icon: m.Icon}
			lat, lng *float64
			values   = make([]*string, len(fields))
		)
		dest := []any{&e.Ref.Key, &e.Name, &lat, &lng}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		if pos := storedCoordinate(e.Ref, attr, lat, lng); pos != nil {
			e.Coordinates = map[string]domain.Coordinate{attribute: *pos}
		}

		e.Fields = make(map[string]string, len(fields))
		for i, f := range fields {
			if values[i] != nil {
				e.Fields[f.Code] = *values[i]
			}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (r *HostRepo) geolocation(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema) (classMeta, error) {
	m, err := r.class(ctx, ref.Class)
	if err != nil {
		return classMeta{}, err
	}
	if a, ok := m.attribute(attr.Code); !ok || !a.IsGeolocation() {
		return classMeta{}, fmt.Errorf("%w: %s.%s", domain.ErrNotGeolocation, ref.Class, attr.Code)
	}
	return m, nil
}

// GetCoordinate reads the value of attr for one entity. A NULL pair is no
// value.
func (r *HostRepo) GetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema) (*domain.Coordinate, error) {
	m, err := r.geolocation(ctx, ref, attr)
	if err != nil {
		return nil, err
	}

	var lat, lng *float64
	err = r.db.Pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s::float8, %s::float8 FROM %s WHERE %s::text = $1`,
		ident(attr.LatColumn("")), ident(attr.LngColumn("")), ident(m.Table), ident(keyColumn),
	), ref.Key).Scan(&lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	return storedCoordinate(ref, attr, lat, lng), nil
}

// storedCoordinate turns a stored column pair into a value. A NULL pair or
// an out-of-range pair is no value; the latter is logged.
func storedCoordinate(ref domain.EntityRef, attr domain.AttributeSchema, lat, lng *float64) *domain.Coordinate {
	pos, ok, err := attr.FromColumns(map[string]*float64{
		attr.LatColumn(""): lat,
		attr.LngColumn(""): lng,
	}, "")
	if err != nil {
		slog.Warn("ignoring stored coordinate", "entity", ref.String(), "attribute", attr.Code, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &pos
}

// SetCoordinate stores value, or NULLs when value is nil.
func (r *HostRepo) SetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema, value *domain.Coordinate) error {
	m, err := r.geolocation(ctx, ref, attr)
	if err != nil {
		return err
	}

	values := attr.SQLValues(value)
	latCol, lngCol := attr.LatColumn(""), attr.LngColumn("")
	tag, err := r.db.Pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = $1, %s = $2 WHERE %s::text = $3`,
		ident(m.Table), ident(latCol), ident(lngCol), ident(keyColumn),
	), values[latCol], values[lngCol], ref.Key)
	if err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	}
	return nil
}
