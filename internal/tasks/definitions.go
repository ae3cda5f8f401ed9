package tasks

import (
	"go.uber.org/zap"

	"restopay_app/internal/services"
)

// Deps carries everything the registered tasks need
type Deps struct {
	Job         *services.InvoiceJob
	JobDefaults services.JobOptions
	Orders      services.OrderStore
	WhatsApp    DocumentSender
	Mailer      InvoiceMailer
	Store       TaskStore
	Logger      *zap.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r.Register(LogInfoTask.TaskID(), LogInfoTask.Handler(deps.Logger))

	r.Register(InvoiceBackfillTask.TaskID(), InvoiceBackfillTask.Handler(deps.Job, deps.JobDefaults))

	r.Register(InvoiceNotificationTask.TaskID(), InvoiceNotificationTask.Handler(InvoiceNotificationDeps{
		Orders:   deps.Orders,
		WhatsApp: deps.WhatsApp,
		Mailer:   deps.Mailer,
		Store:    deps.Store,
		Logger:   deps.Logger,
	}))
}
