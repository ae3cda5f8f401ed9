package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
	"restopay_app/internal/testutil"
)

func completedOrders(n int) []*models.Order {
	var out []*models.Order
	for i := 0; i < n; i++ {
		out = append(out, testutil.CompletedOrder(fmt.Sprintf("c%03d", i), testutil.Now.Add(time.Duration(i)*time.Minute)))
	}
	return out
}

func TestClampInvoiceLimit(t *testing.T) {
	assert.Equal(t, 50, services.ClampInvoiceLimit(0))
	assert.Equal(t, 50, services.ClampInvoiceLimit(-3))
	assert.Equal(t, 50, services.ClampInvoiceLimit(100))
	assert.Equal(t, 1, services.ClampInvoiceLimit(1))
	assert.Equal(t, 20, services.ClampInvoiceLimit(20))
}

func TestGetOrdersNeedingInvoicesCapsAndFilters(t *testing.T) {
	orders := completedOrders(60)
	withInvoice := testutil.CompletedOrder("done", testutil.Now.Add(24*time.Hour))
	withInvoice.InvoiceGenerated = true
	withInvoice.InvoiceBase64 = "JVBERi0="
	pending := testutil.NewOrder("unpaid")
	pending.CreatedAt = testutil.Now.Add(48 * time.Hour)

	p := testutil.NewPipeline(append(orders, withInvoice, pending)...)

	got, err := p.Job.GetOrdersNeedingInvoices(ctx, 100)
	require.NoError(t, err)

	assert.Len(t, got, 50)
	for _, o := range got {
		assert.False(t, o.InvoiceGenerated)
		assert.Equal(t, models.PaymentStatusCompleted, o.PaymentStatus)
	}
	assert.Equal(t, "c059", got[0].ID, "newest first")
}

func TestRunGeneratesInvoices(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(3)...)

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 10, ChunkSize: 5})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Succeeded)
	assert.Zero(t, report.Failed)
	for _, r := range report.Results {
		assert.True(t, r.Success)
		assert.Greater(t, r.InvoiceSize, 0)
		assert.Equal(t, 1, r.Attempts)
		assert.True(t, p.Store.Order(r.OrderID).InvoiceGenerated)
	}

	again, err := p.Job.GetOrdersNeedingInvoices(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRunRetriesRenderUpToMaxRetries(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(1)...)
	p.Renderer.FailTimes = 2

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 5, MaxRetries: 2})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, 3, report.Results[0].Attempts)
}

func TestRunGivesUpAfterRetriesAndStaysEligible(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(1)...)
	p.Renderer.FailAlways = true

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 5, MaxRetries: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Results[0].Attempts)
	assert.Equal(t, 2, p.Renderer.CallCount())

	left, err := p.Job.GetOrdersNeedingInvoices(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestRunDoesNotRetryInvalidOrders(t *testing.T) {
	broken := testutil.CompletedOrder("broken", testutil.Now.Add(time.Hour))
	broken.TotalAmount = broken.TotalAmount.Sub(broken.TotalAmount)
	fine := testutil.CompletedOrder("fine", testutil.Now)
	p := testutil.NewPipeline(broken, fine)

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 5, MaxRetries: 3})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "broken", report.Results[0].OrderID)
	assert.False(t, report.Results[0].Success)
	assert.Zero(t, report.Results[0].Attempts)
	assert.Contains(t, report.Results[0].Error, "total amount must be positive")
	assert.True(t, report.Results[1].Success)
	assert.Equal(t, 1, p.Renderer.CallCount())
}

func TestRunIsolatesFailures(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(3)...)
	p.Renderer.FailTimes = 1

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 5})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Succeeded)
	assert.False(t, report.Results[0].Success)
}

func TestRunSleepsBetweenChunks(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(5)...)
	var pauses []time.Duration
	p.Job.SetSleeper(func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	})

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 5, ChunkSize: 2, DelayBetweenBatches: 3 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, pauses)
}

func TestRunStopsWhenCancelledDuringPause(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(4)...)
	p.Job.SetSleeper(func(context.Context, time.Duration) error { return context.Canceled })

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 4, ChunkSize: 2, DelayBetweenBatches: time.Second})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
}

func TestRunRespectsBatchSize(t *testing.T) {
	p := testutil.NewPipeline(completedOrders(8)...)

	report, err := p.Job.Run(ctx, services.JobOptions{BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
}
