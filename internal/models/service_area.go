package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ServiceArea marks a ZIP code as served by an owner. (owner_id, zip_code) is unique;
// Active is toggled without deleting the row.
type ServiceArea struct {
	bun.BaseModel `bun:"table:service_areas"`

	ID        string    `bun:"id,pk" json:"id"`
	OwnerID   string    `bun:"owner_id,notnull,unique:owner_zip" json:"owner_id"`
	ZipCode   string    `bun:"zip_code,notnull,unique:owner_zip" json:"zip_code"`
	Active    bool      `bun:"active,notnull" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
