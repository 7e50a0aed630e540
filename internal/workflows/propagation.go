package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// TaskQueue is the default queue of the propagation worker.
const TaskQueue = "geomap-propagation"

// WorkflowID is the id of the workflow propagating sub. Redelivery of the
// same submission maps to the same id.
func WorkflowID(sub domain.LocationSubmission) string {
	return fmt.Sprintf("propagate-%s-%d", sub.ID(), sub.SubmittedAt.UnixNano())
}

// PropagateLocationWorkflow stores a submitted location and announces it.
// If the announcement fails, the previous value is restored (saga
// compensation) so stored state never diverges from what sessions saw.
func PropagateLocationWorkflow(ctx workflow.Context, sub domain.LocationSubmission) (*domain.LocationChanged, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting location propagation", "entity", sub.Entity.String(), "attribute", sub.Attribute)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeRejected},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: validate and project
	var ev domain.LocationChanged
	if err := workflow.ExecuteActivity(ctx, "PrepareLocation", sub).Get(ctx, &ev); err != nil {
		return nil, err
	}

	// Step 2: remember the stored value
	var previous domain.LocationChanged
	if err := workflow.ExecuteActivity(ctx, "SnapshotLocation", sub).Get(ctx, &previous); err != nil {
		return nil, err
	}

	// Step 3: store
	if err := workflow.ExecuteActivity(ctx, "PersistLocation", &ev).Get(ctx, nil); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(ctx, "InvalidateLocation", &ev).Get(ctx, nil); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
	}

	// Step 4: announce
	if err := workflow.ExecuteActivity(ctx, "PublishLocation", &ev).Get(ctx, nil); err != nil {
		logger.Warn("publish failed, restoring previous value", "error", err)
		if rerr := workflow.ExecuteActivity(ctx, "RestoreLocation", &previous).Get(ctx, nil); rerr != nil {
			logger.Error("restore failed", "error", rerr)
		}
		return nil, err
	}

	logger.Info("Location propagated", "entity", sub.Entity.String(), "value", ev.Text())
	return &ev, nil
}
