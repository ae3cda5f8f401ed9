package invoice

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"

	"restopay_app/internal/models"
)

const unicodeFamily = "InvoiceUnicode"

// core fonts only carry cp1252, so symbols outside it get a text stand-in
var coreCurrencyFallback = map[string]string{
	"₹": "Rs. ",
	"₫": "VND ",
	"₱": "PHP ",
	"₩": "KRW ",
}

// PDFRenderer draws invoices with gofpdf. With FontPath set it embeds that
// TrueType font and prints any script the font covers; without it only
// Windows-1252 text can be drawn.
type PDFRenderer struct {
	FontPath string
}

func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{FontPath: fontPath}
}

func (r *PDFRenderer) Name() string {
	return "pdf"
}

func (r *PDFRenderer) Render(ctx context.Context, data Data, opts Options) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageSize := opts.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}

	pdf := gofpdf.New("P", "mm", pageSize, "")
	family := "Arial"
	tr := func(s string) string { return s }

	if r.FontPath != "" {
		pdf.AddUTF8Font(unicodeFamily, "", r.FontPath)
		pdf.AddUTF8Font(unicodeFamily, "B", r.FontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("load invoice font %s: %w", r.FontPath, err)
		}
		family = unicodeFamily
	} else {
		if fallback, ok := coreCurrencyFallback[data.Currency]; ok {
			data.Currency = fallback
		}
		if bad := firstUnencodable(data.texts()); bad != "" {
			return nil, fmt.Errorf("text %q cannot be drawn with core fonts, set INVOICE_FONT_PATH", bad)
		}
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	drawInvoice(pdf, family, tr, data)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return &Document{
		Content:     buf.Bytes(),
		ContentType: ContentTypePDF,
		Format:      models.InvoiceFormatPDF,
	}, nil
}

func drawInvoice(pdf *gofpdf.Fpdf, family string, tr func(string) string, d Data) {
	pdf.SetTitle(tr(d.InvoiceNumber), true)
	pdf.AddPage()

	// Header
	pdf.SetFont(family, "B", 18)
	pdf.Cell(0, 10, tr(d.RestaurantName))
	pdf.Ln(9)
	pdf.SetFont(family, "", 10)
	for _, line := range []string{d.RestaurantAddress, d.RestaurantPhone} {
		if line != "" {
			pdf.Cell(0, 5, tr(line))
			pdf.Ln(5)
		}
	}
	if d.RestaurantTaxID != "" {
		pdf.Cell(0, 5, tr("Tax ID: "+d.RestaurantTaxID))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont(family, "B", 14)
	pdf.Cell(0, 8, "INVOICE")
	pdf.Ln(8)
	pdf.SetFont(family, "", 10)
	meta := [][2]string{
		{"Invoice No", d.InvoiceNumber},
		{"Order", d.OrderCode},
		{"Date", d.IssuedAt.Format("2006-01-02 15:04")},
		{"Customer", d.CustomerName},
		{"Phone", d.CustomerPhone},
	}
	if d.TableNumber != "" {
		meta = append(meta, [2]string{"Table", d.TableNumber})
	}
	if d.DeliveryAddress != "" {
		meta = append(meta, [2]string{"Deliver to", d.DeliveryAddress})
	}
	for _, m := range meta {
		pdf.CellFormat(30, 6, tr(m[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(m[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Items
	widths := []float64{90, 20, 35, 35}
	pdf.SetFont(family, "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range []string{"Item", "Qty", "Price", "Total"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 10)
	for _, l := range d.Lines {
		pdf.CellFormat(widths[0], 7, tr(l.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", l.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, tr(d.Money(l.UnitPrice)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, tr(d.Money(l.Total)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont(family, "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Grand Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, tr(d.Money(d.Total)), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont(family, "", 9)
	pdf.Cell(0, 5, tr("Payment status: "+strings.ToUpper(d.PaymentStatus)))
	pdf.Ln(5)
	pdf.Cell(0, 5, "Thank you for dining with us!")
}

func firstUnencodable(texts []string) string {
	for _, s := range texts {
		for _, r := range s {
			if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
				return s
			}
		}
	}
	return ""
}
