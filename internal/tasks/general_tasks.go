package tasks

import (
	"context"

	"go.uber.org/zap"

	"restopay_app/internal/models"
)

// LogInfoTaskDef writes its message argument to the worker log. Useful for checking the queue end to end.
type LogInfoTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

func (t *LogInfoTaskDef) Handler(logger *zap.Logger) TaskHandler {
	return func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		message, ok := task.Arguments["message"].(string)
		if !ok {
			message = "No message provided"
		}
		logger.Info("log_info task", zap.String("message", message), zap.Uint("task_id", task.ID))

		return map[string]interface{}{
			"status":            "success",
			"message":           message,
			"max_attempts_info": task.MaxAttempt,
		}, nil
	}
}

// LogInfoTask is the singleton instance of LogInfoTaskDef
var LogInfoTask = &LogInfoTaskDef{}
