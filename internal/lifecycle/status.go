package lifecycle

import (
	"errors"
	"fmt"
)

// Status is the closed set of operation states. The two legacy values are
// type-specific aliases of in_progress kept for backward compatibility with
// rows written by older clients; they are stored verbatim but normalized
// before any transition check.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"

	// Legacy aliases of in_progress.
	StatusVerifying    Status = "verificando"
	StatusProvisioning Status = "iniciando_provisionamento"
)

var (
	// ErrUnknownStatus is returned for a status string outside the domain.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrIllegalTransition is returned when a requested status change is not
	// in the allowed-transitions table.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// ParseStatus validates a raw status string against the status domain.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled,
		StatusVerifying, StatusProvisioning:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Normalize maps legacy aliases onto their canonical state.
func (s Status) Normalize() Status {
	switch s {
	case StatusVerifying, StatusProvisioning:
		return StatusInProgress
	}
	return s
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	n := s.Normalize()
	return n == StatusCompleted || n == StatusCancelled
}

// transitions is the allowed-transitions table over normalized states.
// Self-transitions are permitted so that echoed updates reapply cleanly.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	nf, nt := from.Normalize(), to.Normalize()
	if nf == nt {
		return true
	}
	for _, next := range transitions[nf] {
		if next == nt {
			return true
		}
	}
	return false
}
