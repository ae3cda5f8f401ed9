package invoice

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay_app/internal/models"
)

var issued = time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC)

func sampleOrder(itemName string) *models.Order {
	table := "12"
	return &models.Order{
		ID:            "order-1",
		UniqueOrderID: "A1B2C3",
		CustomerName:  "Asha",
		CustomerPhone: "9876543210",
		TableNumber:   &table,
		Items: []models.OrderItem{
			{Name: itemName, Quantity: 2, Price: decimal.RequireFromString("40")},
			{Name: "Samosa", Quantity: 1, Price: decimal.RequireFromString("25.50")},
		},
		TotalAmount:   decimal.RequireFromString("105.50"),
		PaymentStatus: models.PaymentStatusCompleted,
		Restaurant: models.Restaurant{
			Name:    "Spice Route",
			Address: "14 MG Road",
			Phone:   "080-5550101",
			TaxID:   "29ABCDE1234F1Z5",
		},
	}
}

type failingRenderer struct{ err error }

func (f failingRenderer) Name() string { return "broken" }

func (f failingRenderer) Render(context.Context, Data, Options) (*Document, error) {
	return nil, f.err
}

func TestNewData(t *testing.T) {
	d := NewData(sampleOrder("Masala Chai"), "₹", issued)

	assert.Equal(t, "INV-20240309-A1B2C3", d.InvoiceNumber)
	assert.Equal(t, "12", d.TableNumber)
	assert.Empty(t, d.DeliveryAddress)
	require.Len(t, d.Lines, 2)
	assert.True(t, d.Lines[0].Total.Equal(decimal.RequireFromString("80")))
	assert.Equal(t, "₹105.50", d.Money(d.Total))
	assert.True(t, d.Subtotal().Equal(decimal.RequireFromString("105.50")))
}

func TestPDFRendererLatin(t *testing.T) {
	doc, err := NewPDFRenderer("").Render(context.Background(), NewData(sampleOrder("Masala Chai"), "₹", issued), Options{})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
	assert.Equal(t, models.InvoiceFormatPDF, doc.Format)
	assert.Equal(t, ContentTypePDF, doc.ContentType)
	assert.Equal(t, "invoice-A1B2C3.pdf", doc.Filename("A1B2C3"))
	assert.Greater(t, doc.Size(), 0)
}

func TestPDFRendererRejectsTextOutsideCoreFonts(t *testing.T) {
	_, err := NewPDFRenderer("").Render(context.Background(), NewData(sampleOrder("चाय 🍵"), "₹", issued), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVOICE_FONT_PATH")
}

func TestPDFRendererMissingFont(t *testing.T) {
	_, err := NewPDFRenderer("/nonexistent/NotoSans.ttf").Render(context.Background(), NewData(sampleOrder("Chai"), "₹", issued), Options{})
	assert.Error(t, err)
}

func TestPDFRendererHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFRenderer("").Render(ctx, NewData(sampleOrder("Chai"), "₹", issued), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTMLRendererKeepsUTF8(t *testing.T) {
	doc, err := NewHTMLRenderer().Render(context.Background(), NewData(sampleOrder("चाय ₹ 🍵"), "₹", issued), Options{})
	require.NoError(t, err)

	body := string(doc.Content)
	assert.Contains(t, body, `<meta charset="utf-8">`)
	assert.Contains(t, body, "चाय ₹ 🍵")
	assert.Contains(t, body, "₹105.50")
	assert.Contains(t, body, "INV-20240309-A1B2C3")
	assert.Equal(t, ContentTypeHTML, doc.ContentType)
	assert.Equal(t, "invoice-A1B2C3.html", doc.Filename("A1B2C3"))

	restored, err := DecodeDocument(doc.Base64())
	require.NoError(t, err)
	assert.Equal(t, doc.Content, restored.Content)
	assert.Equal(t, models.InvoiceFormatHTML, restored.Format)
}

func TestHTMLRendererEscapesMarkup(t *testing.T) {
	doc, err := NewHTMLRenderer().Render(context.Background(), NewData(sampleOrder(`<script>alert("x")</script>`), "₹", issued), Options{})
	require.NoError(t, err)

	assert.False(t, strings.Contains(string(doc.Content), "<script>"))
	assert.Contains(t, string(doc.Content), "&lt;script&gt;")
}

func TestFallbackRenderer(t *testing.T) {
	data := NewData(sampleOrder("चाय"), "₹", issued)

	t.Run("primary succeeds", func(t *testing.T) {
		r := NewFallbackRenderer(NewPDFRenderer(""), NewHTMLRenderer(), nil)
		doc, err := r.Render(context.Background(), NewData(sampleOrder("Chai"), "₹", issued), Options{})
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceFormatPDF, doc.Format)
	})

	t.Run("non latin text falls back to html", func(t *testing.T) {
		r := NewFallbackRenderer(NewPDFRenderer(""), NewHTMLRenderer(), nil)
		doc, err := r.Render(context.Background(), data, Options{})
		require.NoError(t, err)
		assert.Equal(t, models.InvoiceFormatHTML, doc.Format)
		assert.Contains(t, string(doc.Content), "चाय")
	})

	t.Run("both fail", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewFallbackRenderer(failingRenderer{err: boom}, failingRenderer{err: errors.New("still broken")}, nil)
		_, err := r.Render(context.Background(), data, Options{})

		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no renderers", func(t *testing.T) {
		r := NewFallbackRenderer(nil, nil, nil)
		_, err := r.Render(context.Background(), data, Options{})

		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, "none", renderErr.Renderer)
		assert.ErrorIs(t, err, ErrNoRenderer)
	})

	t.Run("primary only", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewFallbackRenderer(failingRenderer{err: boom}, nil, nil)
		_, err := r.Render(context.Background(), data, Options{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestDecodeDocument(t *testing.T) {
	doc, err := NewPDFRenderer("").Render(context.Background(), NewData(sampleOrder("Chai"), "₹", issued), Options{})
	require.NoError(t, err)

	restored, err := DecodeDocument(doc.Base64())
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, restored.ContentType)

	_, err = DecodeDocument("not base64!!")
	assert.Error(t, err)
}
