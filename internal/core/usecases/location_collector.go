package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/ports"
	"github.com/samirrijal/geomap/internal/pkg/metrics"
	"github.com/samirrijal/geomap/internal/pkg/telemetry"
)

// Outcome labels of metrics.CollectorRecords.
const (
	outcomeEmitted      = "emitted"
	outcomeNoCoordinate = "skipped_no_coordinate"
	outcomeDropped      = "dropped_delegate_failure"
)

const collectorConcurrency = 8

// LocationCollector turns a query result into display-ready map locations.
type LocationCollector struct {
	exec      ports.QueryExecutor
	formatter ports.DisplayFormatter
	summaries ports.SummaryResolver
	log       *slog.Logger
}

// NewLocationCollector creates a new LocationCollector. summaries may be nil
// when the host offers no summary panels.
func NewLocationCollector(exec ports.QueryExecutor, formatter ports.DisplayFormatter, summaries ports.SummaryResolver, log *slog.Logger) *LocationCollector {
	if log == nil {
		log = slog.Default()
	}
	return &LocationCollector{exec: exec, formatter: formatter, summaries: summaries, log: log}
}

// Collect runs q and returns one record per entity whose attribute holds a
// coordinate, in query order. Entities without a coordinate are skipped;
// entities whose lookups fail are logged and dropped. Only a failure of
// the query itself is returned.
func (c *LocationCollector) Collect(ctx context.Context, q domain.EntityQuery, attribute string) ([]domain.LocationRecord, error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanCollect,
		attributeKV("class", q.Class), attributeKV("attribute", attribute))
	defer span.End()

	entities, err := c.exec.Execute(ctx, q, attribute)
	if err != nil {
		return nil, fmt.Errorf("execute query on %s: %w", q.Class, err)
	}

	slots := make([]*domain.LocationRecord, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectorConcurrency)

	for i, e := range entities {
		pos, ok := e.Coordinate(attribute)
		if !ok {
			metrics.CollectorRecords.WithLabelValues(outcomeNoCoordinate).Inc()
			continue
		}
		g.Go(func() error {
			rec, err := c.record(gctx, e, pos)
			if err != nil {
				// One failing entity must not fail the whole map.
				c.log.Warn("dropping map location",
					"entity", e.Ref.String(), "attribute", attribute, "error", err)
				metrics.CollectorRecords.WithLabelValues(outcomeDropped).Inc()
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]domain.LocationRecord, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	metrics.CollectorRecords.WithLabelValues(outcomeEmitted).Add(float64(len(records)))
	return records, nil
}

func (c *LocationCollector) record(ctx context.Context, e domain.Entity, pos domain.Coordinate) (*domain.LocationRecord, error) {
	title, err := c.formatter.Name(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", domain.ErrDelegate, err)
	}
	icon, err := c.formatter.Icon(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%w: icon: %v", domain.ErrDelegate, err)
	}
	rec := &domain.LocationRecord{Key: e.Ref.Key, Title: title, Icon: icon, Position: pos}

	if c.summaries != nil {
		url, err := c.summaries.SummaryURL(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("%w: summary: %v", domain.ErrDelegate, err)
		}
		rec.Summary = url
	}
	if rec.Summary == "" {
		tooltip, err := c.formatter.Tooltip(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("%w: tooltip: %v", domain.ErrDelegate, err)
		}
		rec.Tooltip = tooltip
	}
	return rec, nil
}

func attributeKV(key, value string) attribute.KeyValue {
	return attribute.String("geomap."+key, value)
}
