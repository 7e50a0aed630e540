package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geomap/internal/core/domain"
	"github.com/samirrijal/geomap/internal/core/usecases"
)

// Error type reported for submissions that can never be stored.
const ErrTypeRejected = "SubmissionRejected"

// LocationActivities holds the activity implementations for the
// propagation workflow.
type LocationActivities struct {
	Locations *usecases.LocationService
}

// PrepareLocation validates the submitted text and returns the change it
// describes.
func (a *LocationActivities) PrepareLocation(ctx context.Context, sub domain.LocationSubmission) (*domain.LocationChanged, error) {
	ev, err := a.Locations.Prepare(ctx, sub.Entity, sub.Attribute, sub.Text)
	if err != nil {
		return nil, rejectClientError(err)
	}
	return ev, nil
}

// SnapshotLocation returns the stored value so a failed propagation can
// restore it.
func (a *LocationActivities) SnapshotLocation(ctx context.Context, sub domain.LocationSubmission) (*domain.LocationChanged, error) {
	ev, err := a.Locations.Snapshot(ctx, sub.Entity, sub.Attribute)
	if err != nil {
		return nil, rejectClientError(err)
	}
	return ev, nil
}

// PersistLocation stores the value carried by ev.
func (a *LocationActivities) PersistLocation(ctx context.Context, ev *domain.LocationChanged) error {
	return a.Locations.Persist(ctx, ev)
}

// InvalidateLocation drops the cached value of ev's attribute.
func (a *LocationActivities) InvalidateLocation(ctx context.Context, ev *domain.LocationChanged) error {
	return a.Locations.Invalidate(ctx, ev)
}

// PublishLocation announces ev to the field sessions.
func (a *LocationActivities) PublishLocation(ctx context.Context, ev *domain.LocationChanged) error {
	return a.Locations.Publish(ctx, ev)
}

// RestoreLocation writes back a snapshot (saga compensation).
func (a *LocationActivities) RestoreLocation(ctx context.Context, previous *domain.LocationChanged) error {
	if err := a.Locations.Persist(ctx, previous); err != nil {
		return err
	}
	if err := a.Locations.Invalidate(ctx, previous); err != nil {
		activity.GetLogger(ctx).Warn("cache invalidation failed", "entity", previous.Entity.String(), "error", err)
	}
	return nil
}

func rejectClientError(err error) error {
	if usecases.IsClientError(err) || errors.Is(err, domain.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
	}
	return err
}
