package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

// MemoryStore is an in-memory OrderStore, InvoiceStore and CallbackArchive
type MemoryStore struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	invoices  map[string]*models.Invoice
	Logs      []models.PaymentStatusLog
	Callbacks []models.PaymentCallbackHistory
	Writes    int

	FailStatusLog error
	FailUpdate    error
	PanicOnLog    bool
}

func NewMemoryStore(orders ...*models.Order) *MemoryStore {
	s := &MemoryStore{
		orders:   make(map[string]*models.Order),
		invoices: make(map[string]*models.Invoice),
	}
	for _, o := range orders {
		s.Put(o)
	}
	return s
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return &c
}

func (s *MemoryStore) Put(o *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

// Order returns the stored row for assertions
func (s *MemoryStore) Order(id string) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, services.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentGatewayOrderID != nil && *o.PaymentGatewayOrderID == gatewayOrderID {
			return cloneOrder(o), nil
		}
	}
	return nil, services.ErrOrderNotFound
}

func (s *MemoryStore) UpdatePaymentStatus(_ context.Context, id string, status models.PaymentStatus, orderStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	o, ok := s.orders[id]
	if !ok {
		return services.ErrOrderNotFound
	}
	o.PaymentStatus = status
	if orderStatus != "" {
		o.Status = orderStatus
	}
	if status != models.PaymentStatusCompleted {
		o.InvoiceGenerated = false
	}
	s.Writes++
	return nil
}

func (s *MemoryStore) ClaimInvoice(_ context.Context, id, encoded string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.InvoiceGenerated || o.PaymentStatus != models.PaymentStatusCompleted {
		return false, nil
	}
	o.InvoiceGenerated = true
	o.InvoiceBase64 = encoded
	o.InvoiceGeneratedAt = &at
	s.Writes++
	return true, nil
}

func (s *MemoryStore) OverwriteInvoice(_ context.Context, id, encoded string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.PaymentStatus != models.PaymentStatusCompleted {
		return services.ErrOrderNotFound
	}
	o.InvoiceGenerated = true
	o.InvoiceBase64 = encoded
	o.InvoiceGeneratedAt = &at
	s.Writes++
	return nil
}

func (s *MemoryStore) ListNeedingInvoices(_ context.Context, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentStatus == models.PaymentStatusCompleted && !o.InvoiceGenerated {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendStatusLog(_ context.Context, entry *models.PaymentStatusLog) error {
	if s.PanicOnLog {
		panic("status log exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStatusLog != nil {
		return s.FailStatusLog
	}
	s.Logs = append(s.Logs, *entry)
	return nil
}

func (s *MemoryStore) FindInvoice(_ context.Context, orderID, phone string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invoices[orderID+"|"+phone]; ok {
		c := *inv
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) SaveInvoice(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *inv
	s.invoices[inv.OrderID+"|"+inv.CustomerPhone] = &c
	return nil
}

// InvoiceCount is the number of standalone invoice rows
func (s *MemoryStore) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *MemoryStore) ArchiveCallback(_ context.Context, entry *models.PaymentCallbackHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Callbacks = append(s.Callbacks, *entry)
	return nil
}
