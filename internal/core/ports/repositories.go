package ports

import (
	"context"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// QueryExecutor runs declarative entity queries. Results keep the order
// chosen by the host; only the requested geolocation attribute is loaded.
type QueryExecutor interface {
	Execute(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.Entity, error)
}

// SchemaSource lists the attribute schemas of an entity class.
type SchemaSource interface {
	ListAttributes(ctx context.Context, class string) ([]domain.AttributeSchema, error)
}

// EntityRepository reads and writes geolocation attributes of one entity.
type EntityRepository interface {
	GetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema) (*domain.Coordinate, error)
	SetCoordinate(ctx context.Context, ref domain.EntityRef, attr domain.AttributeSchema, value *domain.Coordinate) error
}

// WidgetRepository persists dashboard map definitions.
type WidgetRepository interface {
	Get(ctx context.Context, id string) (*domain.Widget, error)
	Save(ctx context.Context, w *domain.Widget) error
}
