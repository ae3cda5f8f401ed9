package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/models"
)

const (
	runStatusSuccess         = "success"
	runStatusFailure         = "failure"
	runStatusHandlerNotFound = "handler_not_found"
)

// Runner executes due tasks from the queue
type Runner struct {
	store    TaskStore
	registry *Registry
	logger   *zap.Logger
	clock    func() time.Time
}

func NewRunner(store TaskStore, registry *Registry, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: store, registry: registry, logger: logger, clock: time.Now}
}

func (r *Runner) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Start processes due tasks immediately and then on every tick until ctx is done
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.RunDue(ctx)
	for {
		select {
		case <-ticker.C:
			r.RunDue(ctx)
		case <-ctx.Done():
			r.logger.Info("Task runner stopped")
			return
		}
	}
}

// RunDue executes every active task whose due time has passed and returns how many ran
func (r *Runner) RunDue(ctx context.Context) int {
	due, err := r.store.DueTasks(ctx, r.clock())
	if err != nil {
		r.logger.Error("Error fetching pending tasks", zap.Error(err))
		return 0
	}
	if len(due) == 0 {
		r.logger.Debug("No pending tasks found")
		return 0
	}

	r.logger.Info("Found pending tasks", zap.Int("count", len(due)))

	ran := 0
	for _, task := range due {
		if ctx.Err() != nil {
			break
		}
		r.execute(ctx, task)
		ran++
	}
	return ran
}

func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	log := r.logger.With(zap.String("task", task.TaskName), zap.Uint("task_id", task.ID))

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		now := r.clock()
		log.Warn("Task handler not found, marking as failure")
		r.recordRun(ctx, &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          runStatusHandlerNotFound,
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		r.updateTask(ctx, &task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.clock()
		began := time.Now()

		var result map[string]interface{}
		result, err = handler(ctx, task)

		history := &models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         int(time.Since(began).Milliseconds()),
			Status:          runStatusSuccess,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          result,
		}
		if err != nil {
			history.Status = runStatusFailure
			history.Result = map[string]interface{}{"error": err.Error()}
			log.Warn("Task attempt failed", zap.Int("attempt", attempt), zap.Int("max_attempt", maxAttempt), zap.Error(err))
		}
		r.recordRun(ctx, history)

		if err == nil || IsPermanent(err) || ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &startTime}
	switch task.TaskType {
	case models.ScheduledTaskTypeRecurring:
		// a failed run keeps the schedule alive
		nextDue := task.NextDue(r.clock())
		if nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		} else if err != nil {
			updates["status"] = models.ScheduledTaskStatusFailure
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		if err != nil {
			updates["status"] = models.ScheduledTaskStatusFailure
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	}

	if err != nil {
		log.Error("Task failed", zap.Error(err))
	} else {
		log.Info("Task completed successfully")
	}
	r.updateTask(ctx, &task, updates)
}

func (r *Runner) recordRun(ctx context.Context, history *models.ScheduledTaskHistory) {
	if err := r.store.RecordRun(ctx, history); err != nil {
		r.logger.Warn("Failed to record task history", zap.Uint("task_id", history.ScheduledTaskID), zap.Error(err))
	}
}

func (r *Runner) updateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) {
	if err := r.store.UpdateTask(ctx, task, updates); err != nil {
		r.logger.Error("Failed to update task", zap.Uint("task_id", task.ID), zap.Error(err))
	}
}
