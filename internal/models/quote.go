package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Quote is a priced offer from a provider against one request (presupuesto).
// Rejecting a quote soft-deletes it, so a rejected quote is still
// distinguishable from one that never existed.
type Quote struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"`
	RequestID         string         `gorm:"size:36;not null;index:idx_quote_request_provider,priority:1" json:"request_id"`
	ProviderID        string         `gorm:"size:36;not null;index:idx_quote_request_provider,priority:2" json:"provider_id"`
	Amount            float64        `gorm:"not null" json:"amount"`
	Message           string         `gorm:"type:text" json:"message"`
	Availability      string         `json:"availability"`
	EstimatedTime     string         `json:"estimated_time"`
	MaterialsIncluded bool           `json:"materials_included"`
	Selected          bool           `gorm:"not null;default:false" json:"selected"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (q *Quote) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return
}

// Rejected reports whether the requester has rejected (deleted) this quote.
func (q *Quote) Rejected() bool {
	return q.DeletedAt.Valid
}
