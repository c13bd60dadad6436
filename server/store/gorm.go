package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sammcj/go-a2a-core/a2a"
)

// TaskRecord is the database row for a task. The full task is kept as a
// JSON document; id, session and state are columns for querying. Version
// backs optimistic concurrency.
type TaskRecord struct {
	ID        string `gorm:"primaryKey;size:128"`
	SessionID string `gorm:"size:128;index"`
	State     string `gorm:"size:32;index"`
	Version   int64  `gorm:"not null;default:0"`
	Data      []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for TaskRecord.
func (TaskRecord) TableName() string { return "a2a_tasks" }

// GormStore is a Store backed by any GORM dialector.
type GormStore struct {
	db         *gorm.DB
	maxRetries int
}

var _ Store = (*GormStore)(nil)

// GormOption configures a GormStore.
type GormOption func(*GormStore)

// WithMaxRetries bounds how often Update retries after losing an
// optimistic concurrency race.
func WithMaxRetries(n int) GormOption {
	return func(s *GormStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewGormStore creates a GormStore and migrates its table.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	s := &GormStore{db: db, maxRetries: 8}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate task table: %w", err)
	}
	return s, nil
}

func newRecord(t *a2a.Task) (*TaskRecord, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}
	return &TaskRecord{
		ID:        t.ID,
		SessionID: t.SessionID,
		State:     string(t.Status.State),
		Data:      data,
	}, nil
}

func (s *GormStore) load(db *gorm.DB, id string) (*TaskRecord, error) {
	var rec TaskRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return &rec, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	rec, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return decode(rec.Data)
}

func (s *GormStore) Create(ctx context.Context, task *a2a.Task) error {
	rec, err := newRecord(task)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TaskRecord{}).Where("id = ?", task.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check task %s: %w", task.ID, err)
		}
		if count > 0 {
			return ErrExists
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to create task %s: %w", task.ID, err)
		}
		return nil
	})
}

// Update reads the row, applies fn and writes back only if the version is
// unchanged. A lost race is retried against the fresh row.
func (s *GormStore) Update(ctx context.Context, id string, fn func(*a2a.Task) error) (*a2a.Task, error) {
	db := s.db.WithContext(ctx)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		rec, err := s.load(db, id)
		if err != nil {
			return nil, err
		}
		task, err := decode(rec.Data)
		if err != nil {
			return nil, err
		}
		if err := fn(task); err != nil {
			return nil, err
		}
		next, err := newRecord(task)
		if err != nil {
			return nil, err
		}

		res := db.Model(&TaskRecord{}).
			Where("id = ? AND version = ?", id, rec.Version).
			Updates(map[string]any{
				"session_id": next.SessionID,
				"state":      next.State,
				"data":       next.Data,
				"version":    rec.Version + 1,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update task %s: %w", id, res.Error)
		}
		if res.RowsAffected == 1 {
			return task, nil
		}
	}
	return nil, ErrConflict
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TaskRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
