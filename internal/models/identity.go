package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the marketplace side an identity acts on.
type Role string

const (
	RoleNone      Role = "none"
	RoleRequester Role = "requester" // solicitante
	RoleProvider  Role = "provider"  // proveedor
)

// Requester is a party posting service requests (solicitante).
type Requester struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	Phone       string    `gorm:"not null" json:"phone"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Zone        string    `gorm:"index" json:"zone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID and normalizes the email before insert.
func (r *Requester) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Email = NormalizeEmail(r.Email)
	return
}

// Provider is a party submitting quotes (proveedor). Trade and Zone drive
// which requests it is shown.
type Provider struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	Phone       string    `gorm:"not null" json:"phone"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Zone        string    `gorm:"index:idx_provider_trade_zone,priority:2" json:"zone"`
	Trade       string    `gorm:"index:idx_provider_trade_zone,priority:1" json:"trade"`
	Specialty   string    `json:"specialty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Provider) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Email = NormalizeEmail(p.Email)
	return
}

// Identity is the resolved caller: exactly one of Requester or Provider is
// set, or neither when Role is RoleNone.
type Identity struct {
	Email     string
	Role      Role
	Requester *Requester
	Provider  *Provider
}

// ID returns the record id of whichever side the identity resolved to.
func (i Identity) ID() string {
	switch i.Role {
	case RoleRequester:
		return i.Requester.ID
	case RoleProvider:
		return i.Provider.ID
	default:
		return ""
	}
}

// DisplayName returns the name of the resolved record, or the email.
func (i Identity) DisplayName() string {
	switch i.Role {
	case RoleRequester:
		return i.Requester.DisplayName
	case RoleProvider:
		return i.Provider.DisplayName
	default:
		return i.Email
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
