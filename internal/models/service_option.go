package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OptionKind decides how an option's PriceImpact turns into a price delta.
type OptionKind string

const (
	OptionBoolean     OptionKind = "boolean"
	OptionFixedAmount OptionKind = "fixed_amount"
	OptionPercentage  OptionKind = "percentage"
	OptionMultiplier  OptionKind = "multiplier"
	OptionQuantity    OptionKind = "quantity"
)

type ServiceOption struct {
	bun.BaseModel `bun:"table:service_options"`

	ID          string          `bun:"id,pk" json:"id"`
	ServiceID   string          `bun:"service_id,notnull" json:"service_id"`
	OwnerID     string          `bun:"owner_id,notnull" json:"owner_id"`
	Name        string          `bun:"name,notnull" json:"name"`
	Description string          `bun:"description,nullzero" json:"description,omitempty"`
	Kind        OptionKind      `bun:"kind,notnull" json:"kind"`
	PriceImpact decimal.Decimal `bun:"price_impact,type:numeric(12,4),notnull" json:"price_impact"`
	MinValue    *int            `bun:"min_value" json:"min_value,omitempty"`
	MaxValue    *int            `bun:"max_value" json:"max_value,omitempty"`
	SortOrder   int             `bun:"sort_order,notnull,default:0" json:"sort_order"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type ServiceOptionRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	Kind        OptionKind      `json:"kind" validate:"required,oneof=boolean fixed_amount percentage multiplier quantity"`
	PriceImpact decimal.Decimal `json:"price_impact" validate:"gt=-100000000,lt=100000000"`
	MinValue    *int            `json:"min_value,omitempty" validate:"omitempty,gte=0"`
	MaxValue    *int            `json:"max_value,omitempty" validate:"omitempty,gte=0"`
	SortOrder   int             `json:"sort_order"`
}
