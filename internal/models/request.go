package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"     // pendiente
	StatusInProgress RequestStatus = "in_progress" // en curso
	StatusAccepted   RequestStatus = "accepted"    // aceptado
	StatusCompleted  RequestStatus = "completed"   // completado
	StatusCancelled  RequestStatus = "cancelled"   // cancelado
)

// IsTerminal reports whether no further quote or cancel writes are allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusCompleted || s == StatusCancelled
}

// IsActive is the complement of IsTerminal for known statuses.
func (s RequestStatus) IsActive() bool {
	return s == StatusPending || s == StatusInProgress
}

// Request is a job posted by a requester (pedido).
type Request struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	RequesterID  string        `gorm:"size:36;not null;index" json:"requester_id"`
	Trade        string        `gorm:"not null;index:idx_request_trade_zone,priority:1" json:"trade"`
	Specialty    string        `gorm:"not null" json:"specialty"`
	Zone         string        `gorm:"not null;index:idx_request_trade_zone,priority:2" json:"zone"`
	Description  string        `gorm:"type:text;not null" json:"description"`
	ContactPhone string        `gorm:"not null" json:"contact_phone"`
	ContactEmail string        `gorm:"not null" json:"contact_email"`
	Status       RequestStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt    time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (r *Request) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return
}
