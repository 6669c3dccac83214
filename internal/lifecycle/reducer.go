package lifecycle

import (
	"context"
	"fmt"
	"log"

	"fieldops-backend/internal/model"
	"fieldops-backend/internal/notification"
	"fieldops-backend/internal/store"
)

// Enqueue hands a change event to the reducer. Events are applied in receipt
// order; the sender blocks when the buffer is full rather than reorder.
func (m *Manager) Enqueue(ev store.ChangeEvent) {
	m.events <- ev
}

// Publish implements store.Sink so the manager can be wired directly as the
// store's change sink.
func (m *Manager) Publish(ev store.ChangeEvent) {
	m.Enqueue(ev)
}

// Run consumes the inbound event feed until ctx is cancelled. Events echoing
// the manager's own writes reapply idempotently.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		case <-ctx.Done():
			log.Println("Lifecycle reducer shutting down")
			return
		}
	}
}

func (m *Manager) apply(ev store.ChangeEvent) {
	switch ev.Table {
	case store.TableOperations:
		if ev.Operation == nil {
			log.Printf("Dropping %s event for operations with no row", ev.Kind)
			return
		}
		switch ev.Kind {
		case store.ChangeInsert:
			if wasNew := m.applyOperationInsert(*ev.Operation); wasNew {
				m.notify(notification.Job{
					Audience:    notification.AudienceOperators,
					OperationID: ev.Operation.ID,
					Message:     fmt.Sprintf("Nova operação %s de %s aguardando atendimento", ev.Operation.Type, ev.Operation.Technician),
				})
			}
		case store.ChangeUpdate:
			m.applyOperationUpdate(*ev.Operation)
		case store.ChangeDelete:
			m.applyOperationDelete(ev.Operation.ID)
		}
	case store.TableHistory:
		if ev.History == nil {
			log.Printf("Dropping %s event for history with no row", ev.Kind)
			return
		}
		switch ev.Kind {
		case store.ChangeInsert:
			m.applyHistoryInsert(*ev.History)
		case store.ChangeUpdate:
			m.applyHistoryUpdate(*ev.History)
		case store.ChangeDelete:
			m.applyHistoryDelete(ev.History.ID)
		}
	default:
		log.Printf("Dropping event for unknown table %q", ev.Table)
	}
}

// applyOperationInsert prepends a new row to the active mirror and, when
// pending, to the queue. Reapplying an already-mirrored row refreshes it in
// place and reports false.
func (m *Manager) applyOperationInsert(op model.Operation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indexOf(m.active, op.ID) >= 0 {
		m.active = replaceByID(m.active, op)
		m.refreshQueueLocked(op)
		return false
	}

	m.active = prepend(m.active, op)
	if Status(op.Status).Normalize() == StatusPending && indexOf(m.queue, op.ID) < 0 {
		m.queue = prepend(m.queue, op)
	}
	return true
}

// applyOperationUpdate replaces the row in the active mirror and recomputes
// queue membership.
func (m *Manager) applyOperationUpdate(op model.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indexOf(m.active, op.ID) >= 0 {
		m.active = replaceByID(m.active, op)
	} else {
		// An update for a row we never saw; converge by adopting it.
		m.active = prepend(m.active, op)
	}
	m.refreshQueueLocked(op)
}

func (m *Manager) applyOperationDelete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = removeByID(m.active, id)
	m.queue = removeByID(m.queue, id)
}

func (m *Manager) applyHistoryInsert(rec model.OperationHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.history {
		if r.ID == rec.ID || (rec.ID == 0 && r.OperationID == rec.OperationID) {
			return
		}
	}
	next := make([]model.OperationHistory, 0, len(m.history)+1)
	next = append(next, rec)
	m.history = append(next, m.history...)
}

func (m *Manager) applyHistoryUpdate(rec model.OperationHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]model.OperationHistory, len(m.history))
	copy(next, m.history)
	for i := range next {
		if next[i].ID == rec.ID {
			next[i] = rec
			break
		}
	}
	m.history = next
}

func (m *Manager) applyHistoryDelete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]model.OperationHistory, 0, len(m.history))
	for _, r := range m.history {
		if r.ID != id {
			next = append(next, r)
		}
	}
	m.history = next
}

// refreshQueueLocked recomputes one row's queue membership: terminal rows
// leave, pending rows enter, rows already queued are refreshed in place
// without changing position. Caller holds m.mu.
func (m *Manager) refreshQueueLocked(op model.Operation) {
	pending := Status(op.Status).Normalize() == StatusPending
	pos := indexOf(m.queue, op.ID)
	switch {
	case pending && pos < 0:
		m.queue = prepend(m.queue, op)
	case pending && pos >= 0:
		m.queue = replaceByID(m.queue, op)
	case !pending && pos >= 0:
		m.queue = removeByID(m.queue, op.ID)
	}
}

func indexOf(ops []model.Operation, id string) int {
	for i, op := range ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}

func prepend(ops []model.Operation, op model.Operation) []model.Operation {
	next := make([]model.Operation, 0, len(ops)+1)
	next = append(next, op)
	return append(next, ops...)
}

func replaceByID(ops []model.Operation, op model.Operation) []model.Operation {
	next := make([]model.Operation, len(ops))
	copy(next, ops)
	for i := range next {
		if next[i].ID == op.ID {
			next[i] = op
			break
		}
	}
	return next
}

func removeByID(ops []model.Operation, id string) []model.Operation {
	next := make([]model.Operation, 0, len(ops))
	for _, op := range ops {
		if op.ID != id {
			next = append(next, op)
		}
	}
	return next
}
