package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/invoice"
	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

const (
	ChannelWhatsapp = "whatsapp"
	ChannelEmail    = "email"

	notificationRetryDelay = 5 * time.Minute
)

// DocumentSender delivers a file to a customer phone. WahaService implements it.
type DocumentSender interface {
	SendDocument(ctx context.Context, phone, caption, filename string, doc *invoice.Document) error
}

// InvoiceMailer emails an invoice. EmailService implements it.
type InvoiceMailer interface {
	SendInvoice(to, restaurantName, orderCode string, doc *invoice.Document) error
}

// InvoiceNotificationArgs defines the arguments for an invoice notification task.
// Empty Channels means every channel that is configured.
type InvoiceNotificationArgs struct {
	OrderID      string   `json:"order_id"`
	Channels     []string `json:"channels,omitempty"`
	AttemptCount int      `json:"attempt_count"`
}

// InvoiceNotificationTaskDef sends a generated invoice to the customer and the restaurant
type InvoiceNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *InvoiceNotificationTaskDef) TaskID() string {
	return "send_invoice_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *InvoiceNotificationTaskDef) CreateTask(args InvoiceNotificationArgs, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, defaultNotificationAttempts)
}

// InvoiceNotificationDeps are the collaborators of the notification handler. Nil senders are skipped.
type InvoiceNotificationDeps struct {
	Orders   services.OrderStore
	WhatsApp DocumentSender
	Mailer   InvoiceMailer
	Store    TaskStore
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Handler returns the TaskHandler bound to deps. Channels that fail are rescheduled
// as a new task until the attempt count reaches the task's MaxAttempt.
func (t *InvoiceNotificationTaskDef) Handler(deps InvoiceNotificationDeps) TaskHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		var args InvoiceNotificationArgs
		if err := DecodeArgs(task.Arguments, &args); err != nil {
			return nil, Permanent(err)
		}
		if args.OrderID == "" {
			return nil, Permanent(fmt.Errorf("order_id is missing"))
		}
		if args.AttemptCount < 1 {
			args.AttemptCount = 1
		}

		order, err := deps.Orders.GetOrder(ctx, args.OrderID)
		if errors.Is(err, services.ErrOrderNotFound) {
			return nil, Permanent(err)
		}
		if err != nil {
			return nil, err
		}
		if !order.HasInvoice() {
			return nil, Permanent(fmt.Errorf("order %s has no invoice", order.ID))
		}
		doc, err := invoice.DecodeDocument(order.InvoiceBase64)
		if err != nil {
			return nil, Permanent(fmt.Errorf("decode invoice: %w", err))
		}
		filename := doc.Filename(order.UniqueOrderID)

		channels := args.Channels
		if len(channels) == 0 {
			channels = []string{ChannelWhatsapp, ChannelEmail}
		}

		var sent, skipped, failed []string
		var failures []string
		for _, channel := range channels {
			var sendErr error
			switch channel {
			case ChannelWhatsapp:
				if deps.WhatsApp == nil || order.CustomerPhone == "" {
					skipped = append(skipped, channel)
					continue
				}
				sendErr = deps.WhatsApp.SendDocument(ctx, order.CustomerPhone, invoiceCaption(order), filename, doc)
			case ChannelEmail:
				if deps.Mailer == nil || order.Restaurant.Email == "" {
					skipped = append(skipped, channel)
					continue
				}
				sendErr = deps.Mailer.SendInvoice(order.Restaurant.Email, order.Restaurant.Name, order.UniqueOrderID, doc)
			default:
				deps.Logger.Warn("Unsupported notification channel", zap.String("channel", channel))
				skipped = append(skipped, channel)
				continue
			}

			if sendErr != nil {
				deps.Logger.Warn("Failed to send invoice notification",
					zap.String("order_id", order.ID),
					zap.String("channel", channel),
					zap.Error(sendErr))
				failed = append(failed, channel)
				failures = append(failures, fmt.Sprintf("%s: %v", channel, sendErr))
				continue
			}
			sent = append(sent, channel)
		}

		result := map[string]interface{}{
			"order_id": order.ID,
			"sent":     sent,
			"skipped":  skipped,
			"failed":   failed,
			"attempt":  args.AttemptCount,
		}
		if len(failed) == 0 {
			return result, nil
		}
		result["errors"] = failures

		if args.AttemptCount >= task.MaxAttempt {
			return result, Permanent(fmt.Errorf("max attempts reached, failed channels: %v", failed))
		}

		// delivered channels are final, so no failure below may trigger a runner retry
		retry := InvoiceNotificationArgs{OrderID: order.ID, Channels: failed, AttemptCount: args.AttemptCount + 1}
		next, err := BuildScheduledTask(t.TaskID(), retry, deps.Clock().Add(notificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
		if err != nil {
			return result, Permanent(err)
		}
		if err := deps.Store.CreateTask(ctx, next); err != nil {
			return result, Permanent(err)
		}
		deps.Logger.Info("Rescheduled failed invoice notification channels",
			zap.String("order_id", order.ID),
			zap.Strings("channels", failed),
			zap.Int("attempt", retry.AttemptCount))
		result["rescheduled"] = true
		return result, nil
	}
}

func invoiceCaption(order *models.Order) string {
	name := order.CustomerName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s, thank you for your order at %s. Your invoice for order %s is attached.",
		name, order.Restaurant.Name, order.UniqueOrderID)
}

// InvoiceNotificationTask is the singleton instance of InvoiceNotificationTaskDef
var InvoiceNotificationTask = &InvoiceNotificationTaskDef{}
