package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"restopay_app/internal/models"
)

// TaskStore persists the worker queue
type TaskStore interface {
	DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error)
	CreateTask(ctx context.Context, task *models.ScheduledTask) error
	UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error
	RecordRun(ctx context.Context, history *models.ScheduledTaskHistory) error
	// FindActiveTask returns nil, nil when no active task has that name
	FindActiveTask(ctx context.Context, name string) (*models.ScheduledTask, error)
}

type GormTaskStore struct {
	db *gorm.DB
}

func NewGormTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

// DueTasks returns active tasks with due <= now, oldest first
func (s *GormTaskStore) DueTasks(ctx context.Context, now time.Time) ([]models.ScheduledTask, error) {
	var due []models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due ASC").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due tasks: %w", err)
	}
	return due, nil
}

func (s *GormTaskStore) CreateTask(ctx context.Context, task *models.ScheduledTask) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task %s: %w", task.TaskName, err)
	}
	return nil
}

func (s *GormTaskStore) UpdateTask(ctx context.Context, task *models.ScheduledTask, updates map[string]interface{}) error {
	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return nil
}

func (s *GormTaskStore) RecordRun(ctx context.Context, history *models.ScheduledTaskHistory) error {
	if err := s.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("record run of task %d: %w", history.ScheduledTaskID, err)
	}
	return nil
}

func (s *GormTaskStore) FindActiveTask(ctx context.Context, name string) (*models.ScheduledTask, error) {
	var task models.ScheduledTask
	err := s.db.WithContext(ctx).
		Where("task_name = ? AND status = ?", name, models.ScheduledTaskStatusActive).
		Order("id ASC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active task %s: %w", name, err)
	}
	return &task, nil
}
