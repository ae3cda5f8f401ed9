package tasks

import (
	"context"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

// InvoiceBackfillTaskDef runs the batch invoice job from the worker on an RRULE
type InvoiceBackfillTaskDef struct{}

func (t *InvoiceBackfillTaskDef) TaskID() string {
	return "invoice_backfill"
}

// Handler runs job with defaults. Task arguments batch_size, chunk_size and max_retries override them.
func (t *InvoiceBackfillTaskDef) Handler(job *services.InvoiceJob, defaults services.JobOptions) TaskHandler {
	return func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		opts := defaults
		if v, ok := intArg(task.Arguments, "batch_size"); ok {
			opts.BatchSize = v
		}
		if v, ok := intArg(task.Arguments, "chunk_size"); ok {
			opts.ChunkSize = v
		}
		if v, ok := intArg(task.Arguments, "max_retries"); ok {
			opts.MaxRetries = v
		}

		report, err := job.Run(ctx, opts)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"processed": report.Processed,
			"succeeded": report.Succeeded,
			"failed":    report.Failed,
			"skipped":   report.Skipped,
		}, nil
	}
}

// intArg accepts JSON numbers (float64) as well as ints set in code
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case uint:
		return int(v), true
	}
	return 0, false
}

// InvoiceBackfillTask is the singleton instance of InvoiceBackfillTaskDef
var InvoiceBackfillTask = &InvoiceBackfillTaskDef{}
