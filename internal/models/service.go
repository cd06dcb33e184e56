package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
)

// Service is a bookable offering of one owner. Services are never deleted while
// bookings reference them; they are deactivated through Status instead.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string          `bun:"id,pk" json:"id"`
	OwnerID         string          `bun:"owner_id,notnull" json:"owner_id"`
	Name            string          `bun:"name,notnull" json:"name"`
	Description     string          `bun:"description,nullzero" json:"description,omitempty"`
	BasePrice       decimal.Decimal `bun:"base_price,type:numeric(12,2),notnull" json:"base_price"`
	DurationMinutes int             `bun:"duration_minutes,notnull" json:"duration_minutes"`
	Status          ServiceStatus   `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

func (s *Service) IsActive() bool {
	return s.Status == ServiceActive
}

type ServiceRequest struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"omitempty,max=2000"`
	BasePrice       decimal.Decimal `json:"base_price" validate:"gte=0,lt=10000000000"`
	DurationMinutes int             `json:"duration_minutes" validate:"gt=0"`
}
