package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/app"
	"restopay_app/internal/config"
	"restopay_app/internal/invoice"
	"restopay_app/internal/logging"
	"restopay_app/internal/services"
)

// render_invoice renders an order's invoice to a local file without touching the order.
// With -phone it also sends the file through WAHA, which is handy for checking the gateway.
func main() {
	orderID := flag.String("order", "", "Order id (mandatory)")
	out := flag.String("out", "", "Output file (default: invoice-<unique_order_id>.<ext>)")
	phone := flag.String("phone", "", "Send the rendered invoice to this WhatsApp number")
	flag.Parse()

	if *orderID == "" {
		log.Fatal("Please provide an order id using -order flag")
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect DB", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	order, err := services.NewGormStore(db).GetOrder(ctx, *orderID)
	if err != nil {
		logger.Fatal("Failed to load order", zap.String("order_id", *orderID), zap.Error(err))
	}
	if err := services.ValidateOrder(order); err != nil {
		logger.Fatal("Order cannot be invoiced", zap.Error(err))
	}

	renderer := app.NewRenderer(cfg.Invoice, logger)
	doc, err := renderer.Render(ctx, invoice.NewData(order, cfg.Invoice.CurrencySymbol, time.Now()), invoice.Options{PageSize: cfg.Invoice.PageSize})
	if err != nil {
		logger.Fatal("Failed to render invoice", zap.Error(err))
	}

	path := *out
	if path == "" {
		path = doc.Filename(order.UniqueOrderID)
	}
	if err := os.WriteFile(path, doc.Content, 0o644); err != nil {
		logger.Fatal("Failed to write invoice", zap.Error(err))
	}
	logger.Info("Invoice written", zap.String("path", path), zap.String("format", string(doc.Format)), zap.Int("bytes", doc.Size()))

	if *phone == "" {
		return
	}
	if cfg.Waha.BaseURL == "" {
		logger.Fatal("WAHA_BASE_URL is not set")
	}
	caption := "Invoice " + invoice.InvoiceNumber(order.UniqueOrderID, time.Now())
	if err := services.NewWahaService(cfg.Waha).SendDocument(ctx, *phone, caption, doc.Filename(order.UniqueOrderID), doc); err != nil {
		logger.Fatal("Failed to send invoice", zap.Error(err))
	}
	logger.Info("Invoice sent over WhatsApp", zap.String("phone", *phone))
}
