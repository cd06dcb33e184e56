package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is created once per customer submission. Prices are frozen at creation;
// only Status and UpdatedAt change afterwards.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID              string            `bun:"id,pk" json:"id"`
	Reference       string            `bun:"reference,notnull,unique" json:"reference"`
	OwnerID         string            `bun:"owner_id,notnull" json:"owner_id"`
	ServiceID       string            `bun:"service_id,notnull" json:"service_id"`
	CustomerName    string            `bun:"customer_name,notnull" json:"customer_name"`
	CustomerEmail   string            `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone   string            `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	ServiceAddress  string            `bun:"service_address,nullzero" json:"service_address,omitempty"`
	ZipCode         string            `bun:"zip_code,notnull" json:"zip_code"`
	ScheduledAt     time.Time         `bun:"scheduled_at,nullzero" json:"scheduled_at,omitempty"`
	Notes           string            `bun:"notes,nullzero" json:"notes,omitempty"`
	SelectedOptions map[string]string `bun:"selected_options,type:jsonb" json:"selected_options"`
	DiscountCode    *string           `bun:"discount_code" json:"discount_code,omitempty"`
	Subtotal        decimal.Decimal   `bun:"subtotal,type:numeric(12,2),notnull" json:"subtotal"`
	DiscountAmount  decimal.Decimal   `bun:"discount_amount,type:numeric(12,2),notnull" json:"discount_amount"`
	TotalPrice      decimal.Decimal   `bun:"total_price,type:numeric(12,2),notnull" json:"total_price"`
	Status          BookingStatus     `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time         `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// BookingRequest is the raw customer submission gathered by the booking form.
type BookingRequest struct {
	ServiceID       string            `json:"service_id" validate:"required,max=64"`
	CustomerName    string            `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string            `json:"customer_email" validate:"required,email,max=254"`
	CustomerPhone   string            `json:"customer_phone" validate:"omitempty,max=32"`
	ServiceAddress  string            `json:"service_address" validate:"omitempty,max=500"`
	ZipCode         string            `json:"zip_code"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	Notes           string            `json:"notes" validate:"omitempty,max=2000"`
	SelectedOptions map[string]string `json:"selected_options" validate:"max=50,dive,max=32"`
	DiscountCode    string            `json:"discount_code" validate:"omitempty,max=32"`
	IdempotencyKey  string            `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// Trimmed returns a copy with surrounding whitespace removed from the customer fields.
func (r BookingRequest) Trimmed() BookingRequest {
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.ServiceAddress = strings.TrimSpace(r.ServiceAddress)
	r.DiscountCode = strings.TrimSpace(r.DiscountCode)
	return r
}

// QuoteRequest prices a booking form without submitting it.
type QuoteRequest struct {
	ServiceID       string            `json:"service_id" validate:"required,max=64"`
	ZipCode         string            `json:"zip_code"`
	SelectedOptions map[string]string `json:"selected_options" validate:"max=50,dive,max=32"`
	DiscountCode    string            `json:"discount_code" validate:"omitempty,max=32"`
}

type BookingFilter struct {
	Status BookingStatus
	Limit  int
	Offset int
}

type BookingStats struct {
	Counts  map[BookingStatus]int `json:"counts"`
	Total   int                   `json:"total"`
	Revenue decimal.Decimal       `json:"revenue"`
}

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
)

// BookingEvent is the payload published for booking lifecycle changes.
type BookingEvent struct {
	Type           string        `json:"type"`
	BookingID      string        `json:"booking_id"`
	Reference      string        `json:"reference"`
	OwnerID        string        `json:"owner_id"`
	Status         BookingStatus `json:"status"`
	PreviousStatus BookingStatus `json:"previous_status,omitempty"`
	TotalPrice     string        `json:"total_price"`
	Timestamp      time.Time     `json:"timestamp"`
}
