package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mobooking/internal/discount"
	"mobooking/internal/logger"
	"mobooking/internal/models"
	"mobooking/internal/pricing"
	"mobooking/internal/utils"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, b *models.Booking, discountID string) error
	GetBooking(ctx context.Context, ownerID, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, b *models.Booking, from models.BookingStatus) error
	ListBookings(ctx context.Context, ownerID string, filter models.BookingFilter) ([]models.Booking, error)
	Stats(ctx context.Context, ownerID string) (*models.BookingStats, error)
}

// CatalogReader is the read side of the owner's catalog needed to price a booking.
type CatalogReader interface {
	GetService(ctx context.Context, ownerID, id string) (*models.Service, error)
	ListOptions(ctx context.Context, ownerID, serviceID string) ([]models.ServiceOption, error)
	GetDiscountByCode(ctx context.Context, ownerID, code string) (*models.Discount, error)
}

type CoverageChecker interface {
	IsCovered(ctx context.Context, ownerID, zip string) (bool, error)
	Require(ctx context.Context, ownerID, zip string) (string, error)
}

type SubmissionGuard interface {
	Acquire(ctx context.Context, key, holder string) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, event models.BookingEvent) error
	PublishBookingStatusChanged(ctx context.Context, event models.BookingEvent) error
}

type BookingService struct {
	DB         DBLayer
	Catalog    CatalogReader
	Coverage   CoverageChecker
	Guard      SubmissionGuard
	Events     EventPublisher
	Calculator *pricing.Calculator
	Validator  *discount.Validator
	Logger     *logger.Logger
	Now        func() time.Time
}

// NewBookingService wires the booking flow. guard may be nil when Redis is disabled.
func NewBookingService(db DBLayer, catalog CatalogReader, coverage CoverageChecker, guard SubmissionGuard, events EventPublisher, l *logger.Logger) *BookingService {
	return &BookingService{
		DB:         db,
		Catalog:    catalog,
		Coverage:   coverage,
		Guard:      guard,
		Events:     events,
		Calculator: pricing.NewCalculator(),
		Validator:  discount.NewValidator(l),
		Logger:     l,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// ---------------- QUOTES ----------------

// CheckCoverage answers the booking form's first step.
func (s *BookingService) CheckCoverage(ctx context.Context, ownerID, zip string) (bool, error) {
	return s.Coverage.IsCovered(ctx, ownerID, zip)
}

// Quote prices a form without persisting anything or claiming a discount use.
func (s *BookingService) Quote(ctx context.Context, ownerID string, req models.QuoteRequest) (*pricing.Quote, error) {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.Coverage.Require(ctx, ownerID, req.ZipCode); err != nil {
		return nil, err
	}
	quote, _, err := s.price(ctx, ownerID, req.ServiceID, req.SelectedOptions, req.DiscountCode)
	return quote, err
}

// price resolves the service, its selected options and the discount, then computes the quote.
func (s *BookingService) price(ctx context.Context, ownerID, serviceID string, selected map[string]string, code string) (*pricing.Quote, *models.Discount, error) {
	svc, err := s.Catalog.GetService(ctx, ownerID, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if !svc.IsActive() {
		return nil, nil, models.NewValidationError("service_id", "service %s is not available for booking", serviceID)
	}

	options, err := s.Catalog.ListOptions(ctx, ownerID, serviceID)
	if err != nil {
		return nil, nil, err
	}
	known := make(map[string]bool, len(options))
	chosen := make([]pricing.SelectedOption, 0, len(selected))
	for _, opt := range options {
		known[opt.ID] = true
		if value, ok := selected[opt.ID]; ok {
			chosen = append(chosen, pricing.SelectedOption{Option: opt, Value: value})
		}
	}
	for id := range selected {
		if !known[id] {
			return nil, nil, models.NewValidationError("options."+id, "unknown option for service %s", serviceID)
		}
	}

	var applied *models.Discount
	if strings.TrimSpace(code) != "" {
		applied, err = s.resolveDiscount(ctx, ownerID, code)
		if err != nil {
			return nil, nil, err
		}
	}

	quote, err := s.Calculator.Compute(*svc, chosen, applied)
	if err != nil {
		return nil, nil, err
	}
	return quote, applied, nil
}

func (s *BookingService) resolveDiscount(ctx context.Context, ownerID, code string) (*models.Discount, error) {
	normalized, err := discount.NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	d, err := s.Catalog.GetDiscountByCode(ctx, ownerID, normalized)
	if err != nil {
		return nil, err
	}
	return s.Validator.Validate(d, normalized, ownerID, s.Now())
}

// ---------------- SUBMISSION ----------------

// Submit runs the coverage gate, prices the form and persists the booking. A discount
// use is claimed in the same transaction as the insert.
func (s *BookingService) Submit(ctx context.Context, ownerID string, req models.BookingRequest) (booking *models.Booking, err error) {
	req = req.Trimmed()
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	zip, err := s.Coverage.Require(ctx, ownerID, req.ZipCode)
	if err != nil {
		s.Logger.LogCoverage(ownerID, req.ZipCode, fmt.Sprintf("submission rejected: %v", err))
		return nil, err
	}

	quote, applied, err := s.price(ctx, ownerID, req.ServiceID, req.SelectedOptions, req.DiscountCode)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	b := &models.Booking{
		ID:              utils.GenerateID(),
		Reference:       utils.GenerateBookingReference(),
		OwnerID:         ownerID,
		ServiceID:       req.ServiceID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ServiceAddress:  req.ServiceAddress,
		ZipCode:         zip,
		ScheduledAt:     req.ScheduledAt,
		Notes:           req.Notes,
		SelectedOptions: req.SelectedOptions,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.DiscountAmount,
		TotalPrice:      quote.Total,
		Status:          models.BookingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if b.SelectedOptions == nil {
		b.SelectedOptions = map[string]string{}
	}

	discountID := ""
	if applied != nil {
		code := applied.Code
		b.DiscountCode = &code
		discountID = applied.ID
	}

	if req.IdempotencyKey != "" && s.Guard != nil {
		ok, gerr := s.Guard.Acquire(ctx, ownerID+":"+req.IdempotencyKey, b.ID)
		if gerr != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("submission guard unavailable: %v", gerr))
		} else if !ok {
			return nil, &models.DuplicateSubmissionError{Key: req.IdempotencyKey}
		} else {
			defer func() {
				if err != nil {
					if rerr := s.Guard.Release(ctx, ownerID+":"+req.IdempotencyKey, b.ID); rerr != nil {
						s.Logger.Warn("BOOKING", fmt.Sprintf("failed to release submission guard: %v", rerr))
					}
				}
			}()
		}
	}

	if err := s.DB.CreateBooking(ctx, b, discountID); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("failed to create booking for owner %s: %v", ownerID, err))
		return nil, err
	}
	s.Logger.LogBooking("CREATE", b.ID, fmt.Sprintf("%s total %s", b.Reference, b.TotalPrice.StringFixed(2)))

	s.publish(ctx, s.event(models.EventBookingCreated, b, ""))
	return b, nil
}

// ---------------- DASHBOARD ----------------

// Transition moves a booking along its state machine. Completed and cancelled are terminal.
func (s *BookingService) Transition(ctx context.Context, ownerID, id string, to models.BookingStatus) (*models.Booking, error) {
	if !to.Valid() {
		return nil, models.NewValidationError("status", "unknown booking status %q", to)
	}
	b, err := s.DB.GetBooking(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	from := b.Status
	if !from.CanTransitionTo(to) {
		return nil, &models.InvalidTransitionError{From: from, To: to}
	}

	b.Status = to
	b.UpdatedAt = s.Now()
	if err := s.DB.UpdateBookingStatus(ctx, b, from); err != nil {
		return nil, err
	}
	s.Logger.LogBooking("STATUS", b.ID, fmt.Sprintf("%s -> %s", from, to))

	s.publish(ctx, s.event(models.EventBookingStatusChanged, b, from))
	return b, nil
}

func (s *BookingService) Get(ctx context.Context, ownerID, id string) (*models.Booking, error) {
	return s.DB.GetBooking(ctx, ownerID, id)
}

func (s *BookingService) List(ctx context.Context, ownerID string, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown booking status %q", filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, models.NewValidationError("limit", "limit and offset must not be negative")
	}
	return s.DB.ListBookings(ctx, ownerID, filter)
}

func (s *BookingService) Stats(ctx context.Context, ownerID string) (*models.BookingStats, error) {
	return s.DB.Stats(ctx, ownerID)
}

// ---------------- EVENTS ----------------

func (s *BookingService) event(kind string, b *models.Booking, previous models.BookingStatus) models.BookingEvent {
	return models.BookingEvent{
		Type:           kind,
		BookingID:      b.ID,
		Reference:      b.Reference,
		OwnerID:        b.OwnerID,
		Status:         b.Status,
		PreviousStatus: previous,
		TotalPrice:     b.TotalPrice.StringFixed(2),
		Timestamp:      s.Now(),
	}
}

// publish never fails the caller; the booking is already stored.
func (s *BookingService) publish(ctx context.Context, event models.BookingEvent) {
	if s.Events == nil {
		return
	}
	var err error
	switch event.Type {
	case models.EventBookingCreated:
		err = s.Events.PublishBookingCreated(ctx, event)
	case models.EventBookingStatusChanged:
		err = s.Events.PublishBookingStatusChanged(ctx, event)
	}
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish %s for booking %s: %v", event.Type, event.BookingID, err))
	}
}
