package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

// Discount is an owner's promo code. TimesUsed never exceeds UsageLimit when a limit is set.
type Discount struct {
	bun.BaseModel `bun:"table:discounts"`

	ID         string          `bun:"id,pk" json:"id"`
	OwnerID    string          `bun:"owner_id,notnull,unique:owner_code" json:"owner_id"`
	Code       string          `bun:"code,notnull,unique:owner_code" json:"code"`
	Kind       DiscountKind    `bun:"kind,notnull" json:"kind"`
	Value      decimal.Decimal `bun:"value,type:numeric(12,2),notnull" json:"value"`
	ExpiresAt  *time.Time      `bun:"expires_at" json:"expires_at,omitempty"`
	UsageLimit *int            `bun:"usage_limit" json:"usage_limit,omitempty"`
	TimesUsed  int             `bun:"times_used,notnull,default:0" json:"times_used"`
	Active     bool            `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type DiscountRequest struct {
	Code       string          `json:"code" validate:"required"`
	Kind       DiscountKind    `json:"kind" validate:"required,oneof=fixed percentage"`
	Value      decimal.Decimal `json:"value" validate:"gt=0,lt=100000000"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	UsageLimit *int            `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
}
