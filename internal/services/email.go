package services

import (
	"fmt"
	"html"
	"io"

	"gopkg.in/gomail.v2"

	"restopay_app/internal/config"
	"restopay_app/internal/invoice"
)

type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService returns nil when SMTP is not configured
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &EmailService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
	}
}

// InvoiceMessage builds the mail that carries an invoice to a restaurant
func InvoiceMessage(from, to, restaurantName, orderCode string, doc *invoice.Document) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Invoice for order %s", orderCode))

	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>Payment for order <strong>%s</strong> has been received.</p>
		<p>The invoice is attached to this email.</p>
	`, html.EscapeString(restaurantName), html.EscapeString(orderCode))
	m.SetBody("text/html", body)

	m.Attach(doc.Filename(orderCode),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(doc.Content)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {doc.ContentType}}),
	)
	return m
}

func (s *EmailService) SendInvoice(to, restaurantName, orderCode string, doc *invoice.Document) error {
	if to == "" {
		return fmt.Errorf("no recipient address")
	}
	if err := s.dialer.DialAndSend(InvoiceMessage(s.from, to, restaurantName, orderCode, doc)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
