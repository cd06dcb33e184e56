package booking_api

import (
	"context"
	"fmt"
	"net/http"

	"mobooking/internal/booking"
	"mobooking/internal/catalog"
	"mobooking/internal/models"
	"mobooking/internal/pricing"
)

// Action is the closed set of requests the booking API serves. Only types in this
// package implement it, and Dispatch handles every one of them.
type Action interface {
	action()
}

// Public booking form.
type (
	CheckCoverage struct {
		OwnerID string
		ZipCode string
	}
	ListPublicServices struct {
		OwnerID string
	}
	ListPublicOptions struct {
		OwnerID   string
		ServiceID string
	}
	QuotePrice struct {
		OwnerID string
		Request models.QuoteRequest
	}
	SubmitBooking struct {
		OwnerID string
		Request models.BookingRequest
	}
)

// Owner dashboard: bookings.
type (
	GetBooking struct {
		OwnerID   string
		BookingID string
	}
	ListBookings struct {
		OwnerID string
		Filter  models.BookingFilter
	}
	GetBookingStats struct {
		OwnerID string
	}
	TransitionBooking struct {
		OwnerID   string
		BookingID string
		Status    models.BookingStatus
	}
)

// Owner dashboard: catalog.
type (
	CreateService struct {
		OwnerID string
		Request models.ServiceRequest
	}
	UpdateService struct {
		OwnerID   string
		ServiceID string
		Request   models.ServiceRequest
	}
	SetServiceActive struct {
		OwnerID   string
		ServiceID string
		Active    bool
	}
	ListServices struct {
		OwnerID string
	}
	AddOption struct {
		OwnerID   string
		ServiceID string
		Request   models.ServiceOptionRequest
	}
	UpdateOption struct {
		OwnerID   string
		ServiceID string
		OptionID  string
		Request   models.ServiceOptionRequest
	}
	DeleteOption struct {
		OwnerID   string
		ServiceID string
		OptionID  string
	}
	ListOptions struct {
		OwnerID   string
		ServiceID string
	}
	AddServiceAreas struct {
		OwnerID  string
		ZipCodes []string
	}
	SetServiceAreaActive struct {
		OwnerID string
		ZipCode string
		Active  bool
	}
	RemoveServiceArea struct {
		OwnerID string
		ZipCode string
	}
	ListServiceAreas struct {
		OwnerID string
	}
	CreateDiscount struct {
		OwnerID string
		Request models.DiscountRequest
	}
	SetDiscountActive struct {
		OwnerID    string
		DiscountID string
		Active     bool
	}
	DeleteDiscount struct {
		OwnerID    string
		DiscountID string
	}
	ListDiscounts struct {
		OwnerID string
	}
)

func (CheckCoverage) action()        {}
func (ListPublicServices) action()   {}
func (ListPublicOptions) action()    {}
func (QuotePrice) action()           {}
func (SubmitBooking) action()        {}
func (GetBooking) action()           {}
func (ListBookings) action()         {}
func (GetBookingStats) action()      {}
func (TransitionBooking) action()    {}
func (CreateService) action()        {}
func (UpdateService) action()        {}
func (SetServiceActive) action()     {}
func (ListServices) action()         {}
func (AddOption) action()            {}
func (UpdateOption) action()         {}
func (DeleteOption) action()         {}
func (ListOptions) action()          {}
func (AddServiceAreas) action()      {}
func (SetServiceAreaActive) action() {}
func (RemoveServiceArea) action()    {}
func (ListServiceAreas) action()     {}
func (CreateDiscount) action()       {}
func (SetDiscountActive) action()    {}
func (DeleteDiscount) action()       {}
func (ListDiscounts) action()        {}

// Result is what a successful action returns to the transport.
type Result struct {
	Status  int
	Message string
	Data    interface{}
}

func ok(message string, data interface{}) Result {
	return Result{Status: http.StatusOK, Message: message, Data: data}
}

func created(message string, data interface{}) Result {
	return Result{Status: http.StatusCreated, Message: message, Data: data}
}

// CoverageResult answers the booking form's ZIP step.
type CoverageResult struct {
	ZipCode string `json:"zip_code"`
	Covered bool   `json:"covered"`
	Message string `json:"message"`
}

// QuoteResult carries the quote plus display strings for the form.
type QuoteResult struct {
	*pricing.Quote
	SubtotalDisplay string `json:"subtotal_display"`
	DiscountDisplay string `json:"discount_display"`
	TotalDisplay    string `json:"total_display"`
}

type BookingResult struct {
	*models.Booking
	TotalDisplay string `json:"total_display"`
}

// Dispatcher executes actions against the booking and catalog services.
type Dispatcher struct {
	Bookings       *booking.BookingService
	Catalog        *catalog.CatalogService
	CurrencySymbol string
}

func NewDispatcher(bookings *booking.BookingService, catalog *catalog.CatalogService, currencySymbol string) *Dispatcher {
	return &Dispatcher{Bookings: bookings, Catalog: catalog, CurrencySymbol: currencySymbol}
}

func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (Result, error) {
	switch a := a.(type) {
	case CheckCoverage:
		covered, err := d.Bookings.CheckCoverage(ctx, a.OwnerID, a.ZipCode)
		if err != nil {
			return Result{}, err
		}
		res := CoverageResult{ZipCode: a.ZipCode, Covered: covered, Message: "Great! We serve your area."}
		if !covered {
			res.Message = (&models.NotCoveredError{ZIP: a.ZipCode}).Error()
		}
		return ok("Coverage checked", res), nil

	case ListPublicServices:
		services, err := d.Catalog.ListServices(ctx, a.OwnerID, true)
		return ok("Services retrieved", services), err

	case ListPublicOptions:
		svc, err := d.Catalog.GetService(ctx, a.OwnerID, a.ServiceID)
		if err != nil {
			return Result{}, err
		}
		if !svc.IsActive() {
			return Result{}, &models.NotFoundError{Entity: "service", ID: a.ServiceID}
		}
		options, err := d.Catalog.ListOptions(ctx, a.OwnerID, a.ServiceID)
		return ok("Options retrieved", options), err

	case QuotePrice:
		quote, err := d.Bookings.Quote(ctx, a.OwnerID, a.Request)
		if err != nil {
			return Result{}, err
		}
		return ok("Price calculated", QuoteResult{
			Quote:           quote,
			SubtotalDisplay: pricing.FormatPrice(quote.Subtotal, d.CurrencySymbol),
			DiscountDisplay: pricing.FormatPrice(quote.DiscountAmount, d.CurrencySymbol),
			TotalDisplay:    pricing.FormatPrice(quote.Total, d.CurrencySymbol),
		}), nil

	case SubmitBooking:
		b, err := d.Bookings.Submit(ctx, a.OwnerID, a.Request)
		if err != nil {
			return Result{}, err
		}
		return created(fmt.Sprintf("Booking %s received", b.Reference), d.bookingResult(b)), nil

	case GetBooking:
		b, err := d.Bookings.Get(ctx, a.OwnerID, a.BookingID)
		if err != nil {
			return Result{}, err
		}
		return ok("Booking retrieved", d.bookingResult(b)), nil

	case ListBookings:
		bookings, err := d.Bookings.List(ctx, a.OwnerID, a.Filter)
		return ok("Bookings retrieved", bookings), err

	case GetBookingStats:
		stats, err := d.Bookings.Stats(ctx, a.OwnerID)
		return ok("Booking stats retrieved", stats), err

	case TransitionBooking:
		b, err := d.Bookings.Transition(ctx, a.OwnerID, a.BookingID, a.Status)
		if err != nil {
			return Result{}, err
		}
		return ok(fmt.Sprintf("Booking %s is now %s", b.Reference, b.Status), d.bookingResult(b)), nil

	case CreateService:
		svc, err := d.Catalog.CreateService(ctx, a.OwnerID, a.Request)
		return created("Service created", svc), err

	case UpdateService:
		svc, err := d.Catalog.UpdateService(ctx, a.OwnerID, a.ServiceID, a.Request)
		return ok("Service updated", svc), err

	case SetServiceActive:
		return ok("Service status updated", nil), d.Catalog.SetServiceActive(ctx, a.OwnerID, a.ServiceID, a.Active)

	case ListServices:
		services, err := d.Catalog.ListServices(ctx, a.OwnerID, false)
		return ok("Services retrieved", services), err

	case AddOption:
		opt, err := d.Catalog.AddOption(ctx, a.OwnerID, a.ServiceID, a.Request)
		return created("Option added", opt), err

	case UpdateOption:
		opt, err := d.Catalog.UpdateOption(ctx, a.OwnerID, a.ServiceID, a.OptionID, a.Request)
		return ok("Option updated", opt), err

	case DeleteOption:
		return ok("Option deleted", nil), d.Catalog.DeleteOption(ctx, a.OwnerID, a.ServiceID, a.OptionID)

	case ListOptions:
		options, err := d.Catalog.ListOptions(ctx, a.OwnerID, a.ServiceID)
		return ok("Options retrieved", options), err

	case AddServiceAreas:
		areas, err := d.Catalog.AddServiceAreas(ctx, a.OwnerID, a.ZipCodes)
		return created(fmt.Sprintf("%d service areas saved", len(areas)), areas), err

	case SetServiceAreaActive:
		return ok("Service area updated", nil), d.Catalog.SetServiceAreaActive(ctx, a.OwnerID, a.ZipCode, a.Active)

	case RemoveServiceArea:
		return ok("Service area removed", nil), d.Catalog.RemoveServiceArea(ctx, a.OwnerID, a.ZipCode)

	case ListServiceAreas:
		areas, err := d.Catalog.ListServiceAreas(ctx, a.OwnerID)
		return ok("Service areas retrieved", areas), err

	case CreateDiscount:
		disc, err := d.Catalog.CreateDiscount(ctx, a.OwnerID, a.Request)
		return created("Discount created", disc), err

	case SetDiscountActive:
		return ok("Discount updated", nil), d.Catalog.SetDiscountActive(ctx, a.OwnerID, a.DiscountID, a.Active)

	case DeleteDiscount:
		return ok("Discount deleted", nil), d.Catalog.DeleteDiscount(ctx, a.OwnerID, a.DiscountID)

	case ListDiscounts:
		discounts, err := d.Catalog.ListDiscounts(ctx, a.OwnerID)
		return ok("Discounts retrieved", discounts), err
	}

	return Result{}, fmt.Errorf("unhandled action %T", a)
}

func (d *Dispatcher) bookingResult(b *models.Booking) BookingResult {
	return BookingResult{Booking: b, TotalDisplay: pricing.FormatPrice(b.TotalPrice, d.CurrencySymbol)}
}
