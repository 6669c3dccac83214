package model

import (
	"time"

	"gorm.io/datatypes"
)

// OperationHistory is the archival snapshot of a completed or cancelled
// operation (cold table). Rows are written once at archival time and never
// mutated afterwards.
type OperationHistory struct {
	ID          int64             `gorm:"autoIncrement;primaryKey" json:"id"`
	OperationID string            `gorm:"size:36;not null;index" json:"operation_id"`
	Type        OperationType     `gorm:"size:32;not null" json:"type"`
	Data        datatypes.JSONMap `gorm:"type:json" json:"data"`

	Status string `gorm:"size:48;not null" json:"status"`

	Technician   string  `gorm:"size:128;not null" json:"technician"`
	TechnicianID string  `gorm:"size:64;not null;index" json:"technician_id"`
	Operator     *string `gorm:"size:128" json:"operator"`
	OperatorID   *string `gorm:"size:64;index" json:"operator_id"`

	Feedback           *string `gorm:"type:text" json:"feedback"`
	TechnicianResponse *string `gorm:"type:text" json:"technician_response"`

	// CreatedAt is copied from the archived operation; CompletedAt is the
	// archival time.
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	CompletedAt time.Time `gorm:"not null;index" json:"completed_at"`
}
