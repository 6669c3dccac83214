package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Role and UserID scope delivery: new-operation alerts go to every operator
// subscription, feedback alerts go to the submitting technician's.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Role      string    `gorm:"size:32;not null;index"`
	UserID    string    `gorm:"size:64;not null;index"`
	Sound     bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}
