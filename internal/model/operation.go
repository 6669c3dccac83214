package model

import (
	"time"

	"gorm.io/datatypes"
)

// OperationType identifies the kind of field work an operation covers.
type OperationType string

const (
	TypeInstallation OperationType = "installation"
	TypeCTO          OperationType = "cto"
	TypeRMA          OperationType = "rma"
)

// KnownType reports whether t is one of the recognized operation types.
func KnownType(t OperationType) bool {
	switch t {
	case TypeInstallation, TypeCTO, TypeRMA:
		return true
	}
	return false
}

// Operation represents a unit of field work in the active set (hot table).
// Terminal operations never live here; completing or cancelling one moves it
// to operation_histories.
type Operation struct {
	ID   string            `gorm:"primaryKey;size:36" json:"id"`
	Type OperationType     `gorm:"size:32;not null;index" json:"type"`
	Data datatypes.JSONMap `gorm:"type:json" json:"data"`

	Status string `gorm:"size:48;not null;index" json:"status"`

	Technician   string `gorm:"size:128;not null" json:"technician"`
	TechnicianID string `gorm:"size:64;not null;index" json:"technician_id"`

	Operator         *string `gorm:"size:128" json:"operator"`
	OperatorID       *string `gorm:"size:64;index" json:"operator_id"`
	AssignedOperator *string `gorm:"size:128" json:"assigned_operator"`

	Feedback           *string `gorm:"type:text" json:"feedback"`
	TechnicianResponse *string `gorm:"type:text" json:"technician_response"`

	AssignedAt  *time.Time `json:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}
