package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"restopay_app/internal/invoice"
	"restopay_app/internal/models"
)

// MemoryTaskStore is an in-memory tasks.TaskStore
type MemoryTaskStore struct {
	mu      sync.Mutex
	nextID  uint
	Tasks   map[uint]*models.ScheduledTask
	History []models.ScheduledTaskHistory

	FailCreate error
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{Tasks: make(map[uint]*models.ScheduledTask)}
}

func (s *MemoryTaskStore) DueTasks(_ context.Context, now time.Time) ([]models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTask
	for _, t := range s.Tasks {
		if t.Status == models.ScheduledTaskStatusActive && !t.Due.After(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *MemoryTaskStore) CreateTask(_ context.Context, task *models.ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.nextID++
	task.ID = s.nextID
	stored := *task
	s.Tasks[task.ID] = &stored
	return nil
}

func (s *MemoryTaskStore) UpdateTask(_ context.Context, task *models.ScheduledTask, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tasks[task.ID]
	if !ok {
		return nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			t.Status = v.(models.ScheduledTaskStatus)
		case "due":
			t.Due = v.(time.Time)
		case "last_run":
			at := *v.(*time.Time)
			t.LastRun = &at
		case "recurring_interval":
			rule := v.(string)
			t.RecurringInterval = &rule
		}
	}
	return nil
}

func (s *MemoryTaskStore) RecordRun(_ context.Context, history *models.ScheduledTaskHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, *history)
	return nil
}

func (s *MemoryTaskStore) FindActiveTask(_ context.Context, name string) (*models.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.ScheduledTask
	for _, t := range s.Tasks {
		if t.TaskName == name && t.Status == models.ScheduledTaskStatusActive && (found == nil || t.ID < found.ID) {
			found = t
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

// Task returns a copy of the stored task
func (s *MemoryTaskStore) Task(id uint) models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.Tasks[id]
}

// ByName returns stored tasks with that name ordered by id
func (s *MemoryTaskStore) ByName(name string) []models.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTask
	for _, t := range s.Tasks {
		if t.TaskName == name {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordingSender captures WhatsApp documents and email invoices. Err fails every send.
type RecordingSender struct {
	mu    sync.Mutex
	Err   error
	Sent  []string
	Calls int
}

func (r *RecordingSender) SendDocument(_ context.Context, phone, _, filename string, _ *invoice.Document) error {
	return r.record(phone + " " + filename)
}

func (r *RecordingSender) SendInvoice(to, _, orderCode string, _ *invoice.Document) error {
	return r.record(to + " " + orderCode)
}

func (r *RecordingSender) record(entry string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, entry)
	return nil
}
