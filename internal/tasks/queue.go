package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/models"
)

const defaultNotificationAttempts = 3

// Queue enqueues work for the worker. It satisfies services.NotificationScheduler.
type Queue struct {
	store  TaskStore
	logger *zap.Logger
	clock  func() time.Time
}

func NewQueue(store TaskStore, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, logger: logger, clock: time.Now}
}

func (q *Queue) SetClock(clock func() time.Time) {
	q.clock = clock
}

// ScheduleInvoiceNotification queues delivery of a freshly generated invoice
func (q *Queue) ScheduleInvoiceNotification(ctx context.Context, orderID string) error {
	task, err := InvoiceNotificationTask.CreateTask(InvoiceNotificationArgs{OrderID: orderID, AttemptCount: 1}, q.clock())
	if err != nil {
		return err
	}
	if err := q.store.CreateTask(ctx, task); err != nil {
		return err
	}
	q.logger.Debug("Invoice notification queued", zap.String("order_id", orderID), zap.Uint("task_id", task.ID))
	return nil
}

// EnsureRecurringTask keeps exactly one active recurring task per name.
// An existing task gets its rule updated when it changed.
func (q *Queue) EnsureRecurringTask(ctx context.Context, name, rule string, args interface{}, maxAttempt int) (*models.ScheduledTask, error) {
	existing, err := q.store.FindActiveTask(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.RecurringInterval == nil || *existing.RecurringInterval != rule {
			if err := q.store.UpdateTask(ctx, existing, map[string]interface{}{"recurring_interval": rule}); err != nil {
				return nil, err
			}
			existing.RecurringInterval = &rule
			q.logger.Info("Recurring task rule updated", zap.String("task", name), zap.String("rule", rule))
		}
		return existing, nil
	}

	task, err := BuildScheduledTask(name, args, q.clock(), &rule, models.ScheduledTaskTypeRecurring, maxAttempt)
	if err != nil {
		return nil, err
	}
	if err := q.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	q.logger.Info("Recurring task created", zap.String("task", name), zap.String("rule", rule), zap.Uint("task_id", task.ID))
	return task, nil
}
