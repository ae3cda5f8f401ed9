package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"restopay_app/internal/invoice"
	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

// Now is the fixed instant used by FixedClock
var Now = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

func FixedClock() time.Time { return Now }

// NewOrder returns a pending, renderable order. Items: one Tea at 20.
func NewOrder(id string) *models.Order {
	table := "4"
	return &models.Order{
		ID:            id,
		CreatedAt:     Now,
		UniqueOrderID: "CODE-" + id,
		CustomerName:  "Meera",
		CustomerPhone: "9876543210",
		TableNumber:   &table,
		Items: []models.OrderItem{
			{Name: "Tea", Quantity: 1, Price: decimal.NewFromInt(20)},
		},
		TotalAmount:   decimal.NewFromInt(20),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		RestaurantID:  "r1",
		Restaurant:    models.Restaurant{ID: "r1", Name: "Chai Point", Address: "1 Brigade Rd"},
	}
}

// CompletedOrder is NewOrder with the payment already completed and no invoice
func CompletedOrder(id string, createdAt time.Time) *models.Order {
	o := NewOrder(id)
	o.CreatedAt = createdAt
	o.PaymentStatus = models.PaymentStatusCompleted
	return o
}

func WithGatewayID(o *models.Order, gatewayOrderID string) *models.Order {
	o.PaymentGatewayOrderID = &gatewayOrderID
	return o
}

// StubRenderer fails its first FailTimes calls (or every call with FailAlways),
// then returns a small PDF-looking document that differs on every call
type StubRenderer struct {
	mu         sync.Mutex
	FailTimes  int
	FailAlways bool
	Calls      int
	LastData   invoice.Data
}

func (r *StubRenderer) Name() string { return "stub" }

func (r *StubRenderer) Render(_ context.Context, data invoice.Data, _ invoice.Options) (*invoice.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	r.LastData = data
	if r.FailAlways || r.Calls <= r.FailTimes {
		return nil, errors.New("renderer unavailable")
	}
	return &invoice.Document{
		Content:     []byte(fmt.Sprintf("%%PDF-1.4 %s #%d", data.InvoiceNumber, r.Calls)),
		ContentType: invoice.ContentTypePDF,
		Format:      models.InvoiceFormatPDF,
	}, nil
}

func (r *StubRenderer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls
}

// RecordingPublisher keeps every published event
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []services.Event
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, e services.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, e)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.Events {
		out = append(out, e.Type)
	}
	return out
}

// RecordingNotifier records scheduled invoice notifications
type RecordingNotifier struct {
	mu       sync.Mutex
	OrderIDs []string
}

func (n *RecordingNotifier) ScheduleInvoiceNotification(_ context.Context, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.OrderIDs = append(n.OrderIDs, orderID)
	return nil
}

// StubGateway answers CheckStatus from a map, or with Err
type StubGateway struct {
	Statuses map[string]*services.GatewayStatus
	Err      error
	Calls    int
}

func (g *StubGateway) CheckStatus(_ context.Context, gatewayOrderID string) (*services.GatewayStatus, error) {
	g.Calls++
	if g.Err != nil {
		return nil, g.Err
	}
	st, ok := g.Statuses[gatewayOrderID]
	if !ok {
		return nil, &services.GatewayError{StatusCode: 404, Message: "Transaction doesn't exist."}
	}
	return st, nil
}

// Pipeline bundles a fully faked invoice pipeline
type Pipeline struct {
	Store     *MemoryStore
	Renderer  *StubRenderer
	Events    *RecordingPublisher
	Notifier  *RecordingNotifier
	Gateway   *StubGateway
	Generator *services.InvoiceGenerator
	Payments  *services.PaymentStatusService
	Job       *services.InvoiceJob
	Downloads *services.InvoiceDownloadService
}

func NewPipeline(orders ...*models.Order) *Pipeline {
	p := &Pipeline{
		Store:    NewMemoryStore(orders...),
		Renderer: &StubRenderer{},
		Events:   &RecordingPublisher{},
		Notifier: &RecordingNotifier{},
		Gateway:  &StubGateway{Statuses: map[string]*services.GatewayStatus{}},
	}
	p.Generator = services.NewInvoiceGenerator(services.GeneratorDeps{
		Store:    p.Store,
		Renderer: p.Renderer,
		Events:   p.Events,
		Notifier: p.Notifier,
		Clock:    FixedClock,
		Currency: "₹",
		PageSize: "A4",
	})
	p.Payments = services.NewPaymentStatusService(p.Store, p.Generator, p.Gateway, nil)
	p.Job = services.NewInvoiceJob(p.Store, p.Generator, nil)
	p.Downloads = services.NewInvoiceDownloadService(p.Store, p.Store, p.Generator, nil, time.Hour, nil)
	return p
}
