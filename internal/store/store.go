package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fieldops-backend/internal/model"
)

// ErrNotFound is returned when an operation id is absent from the active set,
// including ids that were already archived by a concurrent completion.
var ErrNotFound = errors.New("operation not found")

// Store defines the interface for all database operations on the active
// operations table and the history table.
type Store interface {
	DB() *gorm.DB

	CreateOperation(ctx context.Context, op *model.Operation) error
	GetOperation(ctx context.Context, id string) (*model.Operation, error)
	ListOperations(ctx context.Context) ([]model.Operation, error)
	UpdateOperation(ctx context.Context, id string, patch map[string]any) (*model.Operation, error)
	CompleteOperation(ctx context.Context, id string, finalStatus string, completedAt time.Time) (*model.OperationHistory, error)
	ListHistory(ctx context.Context) ([]model.OperationHistory, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db   *gorm.DB
	sink Sink
}

// NewGormStore creates a new GORM-backed store. sink may be nil when no one
// listens for change events (tests mostly).
func NewGormStore(db *gorm.DB, sink Sink) Store {
	return &gormStore{db: db, sink: sink}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) publish(ev ChangeEvent) {
	if s.sink != nil {
		s.sink.Publish(ev)
	}
}

// CreateOperation inserts a new row into the active set.
func (s *gormStore) CreateOperation(ctx context.Context, op *model.Operation) error {
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	s.publish(ChangeEvent{Kind: ChangeInsert, Table: TableOperations, Operation: op})
	return nil
}

// GetOperation fetches a single active operation by id.
func (s *gormStore) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	var op model.Operation
	err := s.db.WithContext(ctx).First(&op, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operation %s: %w", id, err)
	}
	return &op, nil
}

// ListOperations returns the whole active set, newest first.
func (s *gormStore) ListOperations(ctx context.Context) ([]model.Operation, error) {
	var ops []model.Operation
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// UpdateOperation applies a field patch to an active operation and returns
// the updated row. A patch against an id no longer in the active set fails
// with ErrNotFound.
func (s *gormStore) UpdateOperation(ctx context.Context, id string, patch map[string]any) (*model.Operation, error) {
	res := s.db.WithContext(ctx).Model(&model.Operation{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update operation %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	updated, err := s.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ChangeEvent{Kind: ChangeUpdate, Table: TableOperations, Operation: updated})
	return updated, nil
}

// CompleteOperation archives an operation into the history table and removes
// it from the active set in a single transaction, so the two tables cannot
// diverge on a partial failure.
func (s *gormStore) CompleteOperation(ctx context.Context, id string, finalStatus string, completedAt time.Time) (*model.OperationHistory, error) {
	var archived model.OperationHistory

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var op model.Operation
		if err := tx.First(&op, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to fetch operation %s: %w", id, err)
		}

		archived = model.OperationHistory{
			OperationID:        op.ID,
			Type:               op.Type,
			Data:               op.Data,
			Status:             finalStatus,
			Technician:         op.Technician,
			TechnicianID:       op.TechnicianID,
			Operator:           op.Operator,
			OperatorID:         op.OperatorID,
			Feedback:           op.Feedback,
			TechnicianResponse: op.TechnicianResponse,
			CreatedAt:          op.CreatedAt,
			CompletedAt:        completedAt,
		}
		if err := tx.Create(&archived).Error; err != nil {
			return fmt.Errorf("failed to archive operation %s: %w", id, err)
		}

		if err := tx.Delete(&model.Operation{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to remove operation %s from active set: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ChangeEvent{Kind: ChangeInsert, Table: TableHistory, History: &archived})
	s.publish(ChangeEvent{Kind: ChangeDelete, Table: TableOperations, Operation: &model.Operation{ID: id}})
	return &archived, nil
}

// ListHistory returns archived records, most recently completed first.
func (s *gormStore) ListHistory(ctx context.Context) ([]model.OperationHistory, error) {
	var records []model.OperationHistory
	if err := s.db.WithContext(ctx).Order("completed_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}
