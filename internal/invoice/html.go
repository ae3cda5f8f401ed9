package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"restopay_app/internal/models"
)

// HTMLRenderer produces a self-contained UTF-8 page. It never depends on
// local fonts, so it is the last resort in the renderer chain.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

func (r *HTMLRenderer) Name() string {
	return "html"
}

func (r *HTMLRenderer) Render(ctx context.Context, data Data, opts Options) (*Document, error) {
	var buf bytes.Buffer
	if err := InvoicePage(data).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("render html invoice: %w", err)
	}
	return &Document{
		Content:     buf.Bytes(),
		ContentType: ContentTypeHTML,
		Format:      models.InvoiceFormatHTML,
	}, nil
}

const invoiceStyle = `body{font-family:"Noto Sans","Noto Sans Devanagari","Noto Color Emoji",Arial,sans-serif;margin:32px;color:#222}
h1{margin:0 0 4px}table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{border:1px solid #ccc;padding:6px 8px}th{background:#eee}td.num{text-align:right}
.meta td{border:none;padding:2px 8px 2px 0}.total td{font-weight:bold}.footer{margin-top:24px;font-size:12px}`

// InvoicePage is the HTML invoice component
func InvoicePage(d Data) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &pageWriter{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(d.InvoiceNumber)
		p.raw(`</title><style>` + invoiceStyle + `</style></head><body>`)

		p.raw(`<h1>`)
		p.text(d.RestaurantName)
		p.raw(`</h1>`)
		for _, line := range []string{d.RestaurantAddress, d.RestaurantPhone} {
			if line != "" {
				p.raw(`<div>`)
				p.text(line)
				p.raw(`</div>`)
			}
		}
		if d.RestaurantTaxID != "" {
			p.raw(`<div>Tax ID: `)
			p.text(d.RestaurantTaxID)
			p.raw(`</div>`)
		}

		p.raw(`<h2>Invoice</h2><table class="meta">`)
		p.metaRow("Invoice No", d.InvoiceNumber)
		p.metaRow("Order", d.OrderCode)
		p.metaRow("Date", d.IssuedAt.Format("2006-01-02 15:04"))
		p.metaRow("Customer", d.CustomerName)
		p.metaRow("Phone", d.CustomerPhone)
		if d.TableNumber != "" {
			p.metaRow("Table", d.TableNumber)
		}
		if d.DeliveryAddress != "" {
			p.metaRow("Deliver to", d.DeliveryAddress)
		}
		p.raw(`</table>`)

		p.raw(`<table><thead><tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead><tbody>`)
		for _, l := range d.Lines {
			p.raw(`<tr><td>`)
			p.text(l.Name)
			p.raw(fmt.Sprintf(`</td><td class="num">%d</td><td class="num">`, l.Quantity))
			p.text(d.Money(l.UnitPrice))
			p.raw(`</td><td class="num">`)
			p.text(d.Money(l.Total))
			p.raw(`</td></tr>`)
		}
		p.raw(`<tr class="total"><td colspan="3" class="num">Grand Total</td><td class="num">`)
		p.text(d.Money(d.Total))
		p.raw(`</td></tr></tbody></table>`)

		p.raw(`<div class="footer">Payment status: `)
		p.text(strings.ToUpper(d.PaymentStatus))
		p.raw(`<br>Thank you for dining with us!</div></body></html>`)

		return p.err
	})
}

// pageWriter keeps the first write error so the component body stays linear
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *pageWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *pageWriter) metaRow(label, value string) {
	p.raw(`<tr><td>`)
	p.text(label)
	p.raw(`:</td><td>`)
	p.text(value)
	p.raw(`</td></tr>`)
}
