package store

import "fieldops-backend/internal/model"

// ChangeKind tags the mutation a change event describes.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeTable identifies which table a change event belongs to.
type ChangeTable string

const (
	TableOperations ChangeTable = "operations"
	TableHistory    ChangeTable = "history"
)

// ChangeEvent describes a single committed row mutation. Exactly one of
// Operation/History is set, matching Table. For deletes only the row id
// survives, carried in a minimal row value.
type ChangeEvent struct {
	Kind      ChangeKind              `json:"kind"`
	Table     ChangeTable             `json:"table"`
	Operation *model.Operation        `json:"operation,omitempty"`
	History   *model.OperationHistory `json:"history,omitempty"`
}

// Sink receives change events after the store commits a mutation. Events are
// published in commit order from the caller's goroutine.
type Sink interface {
	Publish(ev ChangeEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev ChangeEvent)

// Publish calls f.
func (f SinkFunc) Publish(ev ChangeEvent) { f(ev) }
