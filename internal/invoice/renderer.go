package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"restopay_app/internal/logging"
	"restopay_app/internal/models"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// Options tune a single render
type Options struct {
	PageSize string
}

// Renderer turns invoice data into a downloadable document
type Renderer interface {
	Name() string
	Render(ctx context.Context, data Data, opts Options) (*Document, error)
}

// Document is a rendered invoice
type Document struct {
	Content     []byte
	ContentType string
	Format      models.InvoiceFormat
}

func (d *Document) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Content)
}

func (d *Document) Size() int {
	return len(d.Content)
}

// Preview is a log-safe prefix of the encoded payload
func (d *Document) Preview(n int) string {
	return logging.Preview(d.Base64(), n)
}

// Filename is the attachment name offered to the customer
func (d *Document) Filename(orderCode string) string {
	return fmt.Sprintf("invoice-%s.%s", orderCode, d.Format)
}

// DecodeDocument restores a stored base64 invoice and sniffs its format
func DecodeDocument(encoded string) (*Document, error) {
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode stored invoice: %w", err)
	}
	if bytes.HasPrefix(content, []byte("%PDF-")) {
		return &Document{Content: content, ContentType: ContentTypePDF, Format: models.InvoiceFormatPDF}, nil
	}
	return &Document{Content: content, ContentType: ContentTypeHTML, Format: models.InvoiceFormatHTML}, nil
}

var ErrNoRenderer = errors.New("no invoice renderer configured")

// RenderError means no renderer in the chain produced a document
type RenderError struct {
	Renderer string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render invoice (%s): %v", e.Renderer, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// FallbackRenderer tries Primary and switches to Fallback on any error
type FallbackRenderer struct {
	Primary  Renderer
	Fallback Renderer
	Logger   *zap.Logger
}

func NewFallbackRenderer(primary, fallback Renderer, logger *zap.Logger) *FallbackRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackRenderer{Primary: primary, Fallback: fallback, Logger: logger}
}

func (r *FallbackRenderer) Name() string {
	return "fallback-chain"
}

func (r *FallbackRenderer) Render(ctx context.Context, data Data, opts Options) (*Document, error) {
	var primaryErr error
	if r.Primary != nil {
		doc, err := r.Primary.Render(ctx, data, opts)
		if err == nil {
			return doc, nil
		}
		primaryErr = err
		r.Logger.Warn("Primary invoice renderer failed, using fallback",
			zap.String("renderer", r.Primary.Name()),
			zap.String("invoice_number", data.InvoiceNumber),
			zap.Error(err))
	}

	if r.Fallback == nil {
		if r.Primary == nil {
			return nil, &RenderError{Renderer: "none", Err: ErrNoRenderer}
		}
		return nil, &RenderError{Renderer: r.Primary.Name(), Err: primaryErr}
	}

	doc, err := r.Fallback.Render(ctx, data, opts)
	if err != nil {
		return nil, &RenderError{Renderer: r.Fallback.Name(), Err: errors.Join(primaryErr, err)}
	}
	return doc, nil
}
