package tasks_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
	"restopay_app/internal/tasks"
	"restopay_app/internal/testutil"
)

var ctx = context.Background()

func newRunner(store *testutil.MemoryTaskStore, registry *tasks.Registry) *tasks.Runner {
	r := tasks.NewRunner(store, registry, zap.NewNop())
	r.SetClock(testutil.FixedClock)
	return r
}

func addTask(t *testing.T, store *testutil.MemoryTaskStore, name string, due time.Time, taskType models.ScheduledTaskType, rule *string, maxAttempt int) uint {
	t.Helper()
	task, err := tasks.BuildScheduledTask(name, map[string]interface{}{"message": "hi"}, due, rule, taskType, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, store.CreateTask(ctx, task))
	return task.ID
}

func invoicedOrder(id string) *models.Order {
	o := testutil.CompletedOrder(id, testutil.Now)
	o.InvoiceGenerated = true
	o.InvoiceBase64 = base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))
	o.Restaurant.Email = "billing@chaipoint.test"
	return o
}

func TestBuildScheduledTask(t *testing.T) {
	task, err := tasks.BuildScheduledTask("send_invoice_notification",
		tasks.InvoiceNotificationArgs{OrderID: "o1", AttemptCount: 2},
		testutil.Now, nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)

	assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
	assert.Equal(t, "o1", task.Arguments["order_id"])
	assert.EqualValues(t, 2, task.Arguments["attempt_count"])

	var args tasks.InvoiceNotificationArgs
	require.NoError(t, tasks.DecodeArgs(task.Arguments, &args))
	assert.Equal(t, "o1", args.OrderID)
	assert.Equal(t, 2, args.AttemptCount)
}

func TestQueue(t *testing.T) {
	t.Run("schedules invoice notification", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		q := tasks.NewQueue(store, nil)
		q.SetClock(testutil.FixedClock)

		require.NoError(t, q.ScheduleInvoiceNotification(ctx, "o1"))

		queued := store.ByName(tasks.InvoiceNotificationTask.TaskID())
		require.Len(t, queued, 1)
		assert.Equal(t, models.ScheduledTaskTypeOneTime, queued[0].TaskType)
		assert.Equal(t, 3, queued[0].MaxAttempt)
		assert.True(t, queued[0].Due.Equal(testutil.Now))
		assert.Equal(t, "o1", queued[0].Arguments["order_id"])
	})

	t.Run("ensure recurring task is idempotent", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		q := tasks.NewQueue(store, nil)
		q.SetClock(testutil.FixedClock)

		first, err := q.EnsureRecurringTask(ctx, "invoice_backfill", "FREQ=HOURLY", map[string]interface{}{}, 1)
		require.NoError(t, err)
		second, err := q.EnsureRecurringTask(ctx, "invoice_backfill", "FREQ=HOURLY", map[string]interface{}{}, 1)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		_, err = q.EnsureRecurringTask(ctx, "invoice_backfill", "FREQ=DAILY", map[string]interface{}{}, 1)
		require.NoError(t, err)

		all := store.ByName("invoice_backfill")
		require.Len(t, all, 1)
		assert.Equal(t, "FREQ=DAILY", *all[0].RecurringInterval)
		assert.Equal(t, models.ScheduledTaskTypeRecurring, all[0].TaskType)
	})
}

func TestRunner(t *testing.T) {
	t.Run("one-time success is done", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		registry.Register(tasks.LogInfoTask.TaskID(), tasks.LogInfoTask.Handler(zap.NewNop()))
		id := addTask(t, store, "log_info", testutil.Now.Add(-time.Minute), models.ScheduledTaskTypeOneTime, nil, 3)

		assert.Equal(t, 1, newRunner(store, registry).RunDue(ctx))

		task := store.Task(id)
		assert.Equal(t, models.ScheduledTaskStatusDone, task.Status)
		require.NotNil(t, task.LastRun)
		require.Len(t, store.History, 1)
		assert.Equal(t, "success", store.History[0].Status)
		assert.Equal(t, "hi", store.History[0].Result["message"])
	})

	t.Run("future tasks wait", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		registry.Register("log_info", tasks.LogInfoTask.Handler(zap.NewNop()))
		addTask(t, store, "log_info", testutil.Now.Add(time.Minute), models.ScheduledTaskTypeOneTime, nil, 1)

		assert.Equal(t, 0, newRunner(store, registry).RunDue(ctx))
		assert.Empty(t, store.History)
	})

	t.Run("failure retried up to max attempt", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		calls := 0
		registry.Register("flaky", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
			calls++
			return nil, errors.New("smtp timeout")
		})
		id := addTask(t, store, "flaky", testutil.Now, models.ScheduledTaskTypeOneTime, nil, 3)

		newRunner(store, registry).RunDue(ctx)

		assert.Equal(t, 3, calls)
		assert.Equal(t, models.ScheduledTaskStatusFailure, store.Task(id).Status)
		require.Len(t, store.History, 3)
		assert.Equal(t, 3, store.History[2].AttemptNumber)
		assert.Equal(t, "smtp timeout", store.History[2].Result["error"])
	})

	t.Run("succeeds on a later attempt", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		calls := 0
		registry.Register("flaky", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("temporary")
			}
			return map[string]interface{}{"ok": true}, nil
		})
		id := addTask(t, store, "flaky", testutil.Now, models.ScheduledTaskTypeOneTime, nil, 3)

		newRunner(store, registry).RunDue(ctx)

		assert.Equal(t, 2, calls)
		assert.Equal(t, models.ScheduledTaskStatusDone, store.Task(id).Status)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		calls := 0
		registry.Register("broken", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
			calls++
			return nil, tasks.Permanent(errors.New("bad arguments"))
		})
		id := addTask(t, store, "broken", testutil.Now, models.ScheduledTaskTypeOneTime, nil, 5)

		newRunner(store, registry).RunDue(ctx)

		assert.Equal(t, 1, calls)
		assert.Equal(t, models.ScheduledTaskStatusFailure, store.Task(id).Status)
	})

	t.Run("unknown handler", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		id := addTask(t, store, "nope", testutil.Now, models.ScheduledTaskTypeOneTime, nil, 3)

		newRunner(store, tasks.NewRegistry()).RunDue(ctx)

		assert.Equal(t, models.ScheduledTaskStatusFailure, store.Task(id).Status)
		require.Len(t, store.History, 1)
		assert.Equal(t, "handler_not_found", store.History[0].Status)
	})

	t.Run("recurring task advances", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		registry.Register("log_info", tasks.LogInfoTask.Handler(zap.NewNop()))
		rule := "FREQ=HOURLY"
		id := addTask(t, store, "log_info", testutil.Now.Add(-30*time.Minute), models.ScheduledTaskTypeRecurring, &rule, 1)

		newRunner(store, registry).RunDue(ctx)

		task := store.Task(id)
		assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
		assert.True(t, task.Due.Equal(testutil.Now.Add(30*time.Minute)), task.Due.String())
	})

	t.Run("recurring failure keeps schedule", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		registry.Register("backfill", func(context.Context, models.ScheduledTask) (map[string]interface{}, error) {
			return nil, errors.New("db down")
		})
		rule := "FREQ=HOURLY"
		id := addTask(t, store, "backfill", testutil.Now.Add(-30*time.Minute), models.ScheduledTaskTypeRecurring, &rule, 1)

		newRunner(store, registry).RunDue(ctx)

		task := store.Task(id)
		assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
		assert.True(t, task.Due.After(testutil.Now))
	})

	t.Run("cancelled context stops the batch", func(t *testing.T) {
		store := testutil.NewMemoryTaskStore()
		registry := tasks.NewRegistry()
		registry.Register("log_info", tasks.LogInfoTask.Handler(zap.NewNop()))
		addTask(t, store, "log_info", testutil.Now, models.ScheduledTaskTypeOneTime, nil, 1)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.Equal(t, 0, newRunner(store, registry).RunDue(cancelled))
	})
}

func notificationHandler(orders services.OrderStore, store tasks.TaskStore, whatsapp, mail *testutil.RecordingSender) tasks.TaskHandler {
	return tasks.InvoiceNotificationTask.Handler(tasks.InvoiceNotificationDeps{
		Orders:   orders,
		WhatsApp: whatsapp,
		Mailer:   mail,
		Store:    store,
		Clock:    testutil.FixedClock,
	})
}

func notificationTask(t *testing.T, args tasks.InvoiceNotificationArgs) models.ScheduledTask {
	t.Helper()
	task, err := tasks.InvoiceNotificationTask.CreateTask(args, testutil.Now)
	require.NoError(t, err)
	return *task
}

func TestInvoiceNotificationTask(t *testing.T) {
	t.Run("sends to customer and restaurant", func(t *testing.T) {
		orders := testutil.NewMemoryStore(invoicedOrder("o1"))
		whatsapp, mail := &testutil.RecordingSender{}, &testutil.RecordingSender{}
		handler := notificationHandler(orders, testutil.NewMemoryTaskStore(), whatsapp, mail)

		result, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1", AttemptCount: 1}))

		require.NoError(t, err)
		assert.Equal(t, []string{"9876543210 invoice-CODE-o1.pdf"}, whatsapp.Sent)
		assert.Equal(t, []string{"billing@chaipoint.test CODE-o1"}, mail.Sent)
		assert.Equal(t, []string{"whatsapp", "email"}, result["sent"])
	})

	t.Run("unconfigured channels are skipped", func(t *testing.T) {
		orders := testutil.NewMemoryStore(invoicedOrder("o1"))
		handler := tasks.InvoiceNotificationTask.Handler(tasks.InvoiceNotificationDeps{Orders: orders, Store: testutil.NewMemoryTaskStore()})

		result, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1"}))

		require.NoError(t, err)
		assert.Equal(t, []string{"whatsapp", "email"}, result["skipped"])
	})

	t.Run("failed channel is rescheduled alone", func(t *testing.T) {
		orders := testutil.NewMemoryStore(invoicedOrder("o1"))
		store := testutil.NewMemoryTaskStore()
		whatsapp, mail := &testutil.RecordingSender{}, &testutil.RecordingSender{Err: errors.New("smtp: 421")}
		handler := notificationHandler(orders, store, whatsapp, mail)

		result, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1", AttemptCount: 1}))

		require.NoError(t, err)
		assert.Equal(t, true, result["rescheduled"])

		queued := store.ByName(tasks.InvoiceNotificationTask.TaskID())
		require.Len(t, queued, 1)
		assert.True(t, queued[0].Due.Equal(testutil.Now.Add(5*time.Minute)))

		var args tasks.InvoiceNotificationArgs
		require.NoError(t, tasks.DecodeArgs(queued[0].Arguments, &args))
		assert.Equal(t, []string{"email"}, args.Channels)
		assert.Equal(t, 2, args.AttemptCount)

		// the retry only touches the failed channel
		mail.Err = nil
		_, err = handler(ctx, queued[0])
		require.NoError(t, err)
		assert.Equal(t, 1, whatsapp.Calls)
		assert.Equal(t, 2, mail.Calls)
	})

	t.Run("gives up at max attempt", func(t *testing.T) {
		orders := testutil.NewMemoryStore(invoicedOrder("o1"))
		store := testutil.NewMemoryTaskStore()
		whatsapp := &testutil.RecordingSender{Err: errors.New("waha down")}
		handler := notificationHandler(orders, store, whatsapp, &testutil.RecordingSender{})

		_, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1", AttemptCount: 3}))

		require.Error(t, err)
		assert.True(t, tasks.IsPermanent(err))
		assert.Empty(t, store.ByName(tasks.InvoiceNotificationTask.TaskID()))
	})

	t.Run("failed reschedule is not retried", func(t *testing.T) {
		orders := testutil.NewMemoryStore(invoicedOrder("o1"))
		store := testutil.NewMemoryTaskStore()
		store.FailCreate = errors.New("db down")
		whatsapp, mail := &testutil.RecordingSender{}, &testutil.RecordingSender{Err: errors.New("smtp: 421")}
		handler := notificationHandler(orders, store, whatsapp, mail)

		_, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1", AttemptCount: 1}))

		require.Error(t, err)
		assert.True(t, tasks.IsPermanent(err))
		assert.Equal(t, 1, whatsapp.Calls)
	})

	t.Run("order without invoice", func(t *testing.T) {
		orders := testutil.NewMemoryStore(testutil.NewOrder("o1"))
		handler := notificationHandler(orders, testutil.NewMemoryTaskStore(), &testutil.RecordingSender{}, &testutil.RecordingSender{})

		_, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "o1"}))

		assert.True(t, tasks.IsPermanent(err))
	})

	t.Run("unknown order", func(t *testing.T) {
		handler := notificationHandler(testutil.NewMemoryStore(), testutil.NewMemoryTaskStore(), &testutil.RecordingSender{}, &testutil.RecordingSender{})

		_, err := handler(ctx, notificationTask(t, tasks.InvoiceNotificationArgs{OrderID: "gone"}))

		assert.ErrorIs(t, err, services.ErrOrderNotFound)
		assert.True(t, tasks.IsPermanent(err))
	})
}

func TestInvoiceBackfillTask(t *testing.T) {
	p := testutil.NewPipeline(
		testutil.CompletedOrder("a", testutil.Now.Add(-3*time.Hour)),
		testutil.CompletedOrder("b", testutil.Now.Add(-2*time.Hour)),
		testutil.CompletedOrder("c", testutil.Now.Add(-time.Hour)),
	)
	handler := tasks.InvoiceBackfillTask.Handler(p.Job, services.JobOptions{BatchSize: 50, ChunkSize: 10})

	task, err := tasks.BuildScheduledTask(tasks.InvoiceBackfillTask.TaskID(), map[string]interface{}{"batch_size": 2}, testutil.Now, nil, models.ScheduledTaskTypeRecurring, 1)
	require.NoError(t, err)

	result, err := handler(ctx, *task)

	require.NoError(t, err)
	assert.Equal(t, 2, result["processed"])
	assert.Equal(t, 2, result["succeeded"])
	assert.True(t, p.Store.Order("c").HasInvoice())
	assert.False(t, p.Store.Order("a").HasInvoice())
}

func TestCompletionToDelivery(t *testing.T) {
	orders := testutil.NewMemoryStore(func() *models.Order {
		o := testutil.NewOrder("o1")
		o.Restaurant.Email = "billing@chaipoint.test"
		return o
	}())
	taskStore := testutil.NewMemoryTaskStore()
	queue := tasks.NewQueue(taskStore, nil)
	queue.SetClock(testutil.FixedClock)

	generator := services.NewInvoiceGenerator(services.GeneratorDeps{
		Store:    orders,
		Renderer: &testutil.StubRenderer{},
		Notifier: queue,
		Clock:    testutil.FixedClock,
		Currency: "₹",
	})
	payments := services.NewPaymentStatusService(orders, generator, nil, nil)

	_, err := payments.UpdatePaymentStatus(ctx, "o1", "completed", services.UpdateOptions{})
	require.NoError(t, err)

	whatsapp, mail := &testutil.RecordingSender{}, &testutil.RecordingSender{}
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, tasks.Deps{Orders: orders, WhatsApp: whatsapp, Mailer: mail, Store: taskStore})
	assert.Equal(t, []string{"invoice_backfill", "log_info", "send_invoice_notification"}, registry.Names())

	assert.Equal(t, 1, newRunner(taskStore, registry).RunDue(ctx))
	assert.Len(t, whatsapp.Sent, 1)
	assert.Len(t, mail.Sent, 1)
}
