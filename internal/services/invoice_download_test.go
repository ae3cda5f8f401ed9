package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay_app/internal/invoice"
	"restopay_app/internal/services"
	"restopay_app/internal/testutil"
)

func TestGetInvoiceRendersOnDemandOnce(t *testing.T) {
	p := testutil.NewPipeline(testutil.CompletedOrder("o1", testutil.Now))

	got, err := p.Downloads.GetInvoice(ctx, "o1", "+91 98765 43210")
	require.NoError(t, err)

	assert.Equal(t, invoice.ContentTypePDF, got.Document.ContentType)
	assert.Equal(t, "invoice-CODE-o1.pdf", got.Filename)
	assert.True(t, p.Store.Order("o1").InvoiceGenerated)
	assert.Equal(t, 1, p.Store.InvoiceCount())

	again, err := p.Downloads.GetInvoice(ctx, "o1", "9876543210")
	require.NoError(t, err)
	assert.Equal(t, got.Document.Content, again.Document.Content)
	assert.Equal(t, 1, p.Renderer.CallCount())
}

func TestGetInvoiceUsesStoredOrderInvoice(t *testing.T) {
	order := testutil.CompletedOrder("o1", testutil.Now)
	doc := &invoice.Document{Content: []byte("<html>चाय ₹</html>")}
	order.InvoiceGenerated = true
	order.InvoiceBase64 = doc.Base64()
	p := testutil.NewPipeline(order)

	got, err := p.Downloads.GetInvoice(ctx, "o1", "9876543210")
	require.NoError(t, err)

	assert.Equal(t, invoice.ContentTypeHTML, got.Document.ContentType)
	assert.Equal(t, "<html>चाय ₹</html>", string(got.Document.Content))
	assert.Equal(t, "invoice-CODE-o1.html", got.Filename)
	assert.Zero(t, p.Renderer.CallCount())
}

func TestGetInvoiceRejections(t *testing.T) {
	p := testutil.NewPipeline(testutil.NewOrder("pending"), testutil.CompletedOrder("paid", testutil.Now))

	_, err := p.Downloads.GetInvoice(ctx, "nope", "9876543210")
	assert.ErrorIs(t, err, services.ErrOrderNotFound)

	_, err = p.Downloads.GetInvoice(ctx, "paid", "1111111111")
	assert.ErrorIs(t, err, services.ErrPhoneMismatch)

	_, err = p.Downloads.GetInvoice(ctx, "pending", "9876543210")
	assert.ErrorIs(t, err, services.ErrPaymentNotCompleted)

	var verr *services.ValidationError
	_, err = p.Downloads.GetInvoice(ctx, "paid", "")
	assert.ErrorAs(t, err, &verr)

	assert.Zero(t, p.Renderer.CallCount())
}

func TestSamePhone(t *testing.T) {
	assert.True(t, services.SamePhone("9876543210", "+91 98765-43210"))
	assert.True(t, services.SamePhone("09876543210", "919876543210"))
	assert.False(t, services.SamePhone("9876543210", "9876543211"))
	assert.False(t, services.SamePhone("", "9876543210"))
	assert.False(t, services.SamePhone("1234", "991234"))
}

func TestGetInvoiceFollowsRerender(t *testing.T) {
	t.Run("forced", func(t *testing.T) {
		p := testutil.NewPipeline(testutil.NewOrder("o1"))
		_, err := p.Payments.UpdatePaymentStatus(ctx, "o1", "completed", services.UpdateOptions{})
		require.NoError(t, err)

		first, err := p.Downloads.GetInvoice(ctx, "o1", "9876543210")
		require.NoError(t, err)

		_, err = p.Payments.UpdatePaymentStatus(ctx, "o1", "completed", services.UpdateOptions{Force: true})
		require.NoError(t, err)

		second, err := p.Downloads.GetInvoice(ctx, "o1", "9876543210")
		require.NoError(t, err)

		stored := p.Store.Order("o1")
		assert.NotEqual(t, first.Document.Content, second.Document.Content)
		assert.Equal(t, stored.InvoiceBase64, second.Document.Base64())

		copied, err := p.Store.FindInvoice(ctx, "o1", stored.CustomerPhone)
		require.NoError(t, err)
		require.NotNil(t, copied)
		assert.Equal(t, stored.InvoiceBase64, copied.InvoiceBase64)
		assert.Equal(t, 1, p.Store.InvoiceCount())
	})

	t.Run("completed again after pending", func(t *testing.T) {
		p := testutil.NewPipeline(testutil.NewOrder("o1"))
		_, err := p.Payments.UpdatePaymentStatus(ctx, "o1", "completed", services.UpdateOptions{})
		require.NoError(t, err)
		_, err = p.Downloads.GetInvoice(ctx, "o1", "9876543210")
		require.NoError(t, err)

		_, err = p.Payments.UpdatePaymentStatus(ctx, "o1", "pending", services.UpdateOptions{})
		require.NoError(t, err)
		res, err := p.Payments.UpdatePaymentStatus(ctx, "o1", "completed", services.UpdateOptions{})
		require.NoError(t, err)
		require.True(t, res.InvoiceGenerated)

		got, err := p.Downloads.GetInvoice(ctx, "o1", "9876543210")
		require.NoError(t, err)
		assert.Equal(t, p.Store.Order("o1").InvoiceBase64, got.Document.Base64())
		assert.Equal(t, 2, p.Renderer.CallCount())
	})
}
