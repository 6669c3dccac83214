package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"fieldops-backend/internal/model"
	"fieldops-backend/internal/notification"
	"fieldops-backend/internal/store"
	"fieldops-backend/internal/validate"
)

// ErrEmptyText is returned when a feedback or response message is empty or
// whitespace-only. No backend call is made in that case.
var ErrEmptyText = errors.New("message text must not be empty")

// Dispatcher delivers user-facing alerts. Satisfied by notification.WorkerPool.
type Dispatcher interface {
	Dispatch(job notification.Job)
}

// Manager owns the operation lifecycle: it performs all writes against the
// store, keeps a client-side mirror of the active set, the pending queue and
// the history log, and reduces change-feed events into that mirror.
//
// The backend remains the system of record; the mirror is rebuilt wholesale
// by Reload and patched incrementally per event. All mirror mutations use
// copy-and-replace so slices handed out to readers are never written again.
type Manager struct {
	store        store.Store
	dispatcher   Dispatcher
	perOpMinutes int
	events       chan store.ChangeEvent

	mu      sync.RWMutex
	active  []model.Operation
	queue   []model.Operation
	history []model.OperationHistory
}

// NewManager creates a lifecycle manager. dispatcher may be nil when alerts
// are not wired (tests mostly). perOpMinutes is the per-operation constant
// for the wait estimator.
func NewManager(s store.Store, dispatcher Dispatcher, perOpMinutes int) *Manager {
	if perOpMinutes <= 0 {
		perOpMinutes = 15
	}
	return &Manager{
		store:        s,
		dispatcher:   dispatcher,
		perOpMinutes: perOpMinutes,
		events:       make(chan store.ChangeEvent, 256),
	}
}

func (m *Manager) notify(job notification.Job) {
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(job)
	}
}

// Reload rebuilds the mirror wholesale from the store. Called once at
// startup and available for manual reconciliation.
func (m *Manager) Reload(ctx context.Context) error {
	ops, err := m.store.ListOperations(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload operations: %w", err)
	}
	records, err := m.store.ListHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload history: %w", err)
	}

	queue := make([]model.Operation, 0, len(ops))
	for _, op := range ops {
		if Status(op.Status).Normalize() == StatusPending {
			queue = append(queue, op)
		}
	}

	m.mu.Lock()
	m.active = ops
	m.queue = queue
	m.history = records
	m.mu.Unlock()
	return nil
}

// Create registers a new operation submitted by a technician. The operation
// starts out pending and unassigned; operators are alerted on success.
func (m *Manager) Create(ctx context.Context, typ model.OperationType, data map[string]any, technician, technicianID string) (*model.Operation, error) {
	if err := validate.Form(typ, data); err != nil {
		return nil, err
	}

	op := &model.Operation{
		ID:           uuid.NewString(),
		Type:         typ,
		Data:         datatypes.JSONMap(data),
		Status:       string(StatusPending),
		Technician:   technician,
		TechnicianID: technicianID,
	}
	if err := m.store.CreateOperation(ctx, op); err != nil {
		return nil, err
	}

	// The store publishes the insert event before returning, so the echo
	// may have been reduced already. Whichever apply sees the row first
	// raises the operator alert; the other is a refresh.
	if m.applyOperationInsert(*op) {
		m.notify(notification.Job{
			Audience:    notification.AudienceOperators,
			OperationID: op.ID,
			Message:     fmt.Sprintf("Nova operação %s de %s aguardando atendimento", typ, technician),
		})
	}
	return op, nil
}

// Assign claims an operation for an operator and moves it to in_progress.
// Claiming an already-assigned operation silently reassigns it.
func (m *Manager) Assign(ctx context.Context, id, operatorID, operatorName string) (*model.Operation, error) {
	now := time.Now().UTC()
	updated, err := m.store.UpdateOperation(ctx, id, map[string]any{
		"operator":          operatorName,
		"operator_id":       operatorID,
		"assigned_operator": operatorName,
		"assigned_at":       now,
		"status":            string(StatusInProgress),
		"updated_at":        now,
	})
	if err != nil {
		return nil, err
	}
	m.applyOperationUpdate(*updated)
	return updated, nil
}

// UpdateStatus applies an intermediate status change, including the legacy
// type-specific aliases. Transitions outside the allowed table are rejected;
// terminal states are only reachable through Complete and Cancel.
func (m *Manager) UpdateStatus(ctx context.Context, id, rawStatus string) (*model.Operation, error) {
	next, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if next.Terminal() {
		return nil, fmt.Errorf("%w: %s is terminal, use complete or cancel", ErrIllegalTransition, next)
	}

	current, err := m.store.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, err := ParseStatus(current.Status)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, next)
	}

	updated, err := m.store.UpdateOperation(ctx, id, map[string]any{
		"status":     string(next),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	m.applyOperationUpdate(*updated)
	return updated, nil
}

// SendFeedback overwrites the operator's feedback message and alerts the
// submitting technician.
func (m *Manager) SendFeedback(ctx context.Context, id, text string) (*model.Operation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	updated, err := m.store.UpdateOperation(ctx, id, map[string]any{
		"feedback":   text,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	m.applyOperationUpdate(*updated)
	m.notify(notification.Job{
		Audience:    notification.AudienceTechnician,
		UserID:      updated.TechnicianID,
		OperationID: updated.ID,
		Message:     "Novo feedback do operador na sua operação",
	})
	return updated, nil
}

// SendTechnicianResponse overwrites the technician's reply and alerts
// operators.
func (m *Manager) SendTechnicianResponse(ctx context.Context, id, text string) (*model.Operation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	updated, err := m.store.UpdateOperation(ctx, id, map[string]any{
		"technician_response": text,
		"updated_at":          time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	m.applyOperationUpdate(*updated)
	m.notify(notification.Job{
		Audience:    notification.AudienceOperators,
		OperationID: updated.ID,
		Message:     fmt.Sprintf("Resposta do técnico %s na operação", updated.Technician),
	})
	return updated, nil
}

// Complete archives an in-progress operation into history and removes it
// from the active set. operatorName is the operator closing out the work.
func (m *Manager) Complete(ctx context.Context, id, operatorName string) (*model.OperationHistory, error) {
	return m.finish(ctx, id, StatusCompleted, operatorName)
}

// Cancel archives a non-terminal operation as cancelled.
func (m *Manager) Cancel(ctx context.Context, id string) (*model.OperationHistory, error) {
	return m.finish(ctx, id, StatusCancelled, "")
}

func (m *Manager) finish(ctx context.Context, id string, final Status, operatorName string) (*model.OperationHistory, error) {
	current, err := m.store.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, err := ParseStatus(current.Status)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur, final) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, cur, final)
	}

	archived, err := m.store.CompleteOperation(ctx, id, string(final), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	m.applyOperationDelete(id)
	m.applyHistoryInsert(*archived)

	if final == StatusCompleted {
		msg := "Sua operação foi concluída"
		if operatorName != "" {
			msg = fmt.Sprintf("Sua operação foi concluída por %s", operatorName)
		}
		m.notify(notification.Job{
			Audience:    notification.AudienceTechnician,
			UserID:      archived.TechnicianID,
			OperationID: archived.OperationID,
			Message:     msg,
		})
	}
	return archived, nil
}

// Active returns the mirrored active set, newest first.
func (m *Manager) Active() []model.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Queue returns the mirrored pending-only queue view.
func (m *Manager) Queue() []model.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue
}

// History returns the mirrored archive, most recently completed first.
func (m *Manager) History() []model.OperationHistory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history
}

// UserOperations filters the active set down to one technician's operations.
// Derived on read; no separate per-technician store exists.
func (m *Manager) UserOperations(technicianID string) []model.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Operation
	for _, op := range m.active {
		if op.TechnicianID == technicianID {
			out = append(out, op)
		}
	}
	return out
}

// QueuePosition returns the 1-based position of id in the pending queue, or
// 0 when the id is not queued.
func (m *Manager) QueuePosition(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, op := range m.queue {
		if op.ID == id {
			return i + 1
		}
	}
	return 0
}

// EstimatedWaitMinutes returns a flat per-position wait estimate. This is a
// placeholder heuristic, not a model of operator throughput.
func (m *Manager) EstimatedWaitMinutes(id string) int {
	return m.QueuePosition(id) * m.perOpMinutes
}
