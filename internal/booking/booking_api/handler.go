package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mobooking/internal/auth"
	"mobooking/internal/logger"
	"mobooking/internal/models"
	"mobooking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Dispatcher *Dispatcher
	Logger     *logger.Logger
}

func NewHandler(dispatcher *Dispatcher, l *logger.Logger) *Handler {
	return &Handler{Dispatcher: dispatcher, Logger: l}
}

// Routes mounts the public booking form API and the owner dashboard API. ownerAuth
// guards every /api/owner route.
func (h *Handler) Routes(r chi.Router, ownerAuth func(http.Handler) http.Handler) {
	r.Route("/api/public/{ownerId}", func(r chi.Router) {
		r.Get("/coverage", h.CheckCoverage)
		r.Get("/services", h.ListPublicServices)
		r.Get("/services/{serviceId}/options", h.ListPublicOptions)
		r.Post("/quote", h.Quote)
		r.Post("/bookings", h.SubmitBooking)
	})

	r.Route("/api/owner", func(r chi.Router) {
		r.Use(ownerAuth)

		r.Get("/bookings", h.ListBookings)
		r.Get("/bookings/{bookingId}", h.GetBooking)
		r.Patch("/bookings/{bookingId}/status", h.TransitionBooking)
		r.Get("/stats", h.Stats)

		r.Get("/services", h.ListServices)
		r.Post("/services", h.CreateService)
		r.Put("/services/{serviceId}", h.UpdateService)
		r.Patch("/services/{serviceId}/status", h.SetServiceActive)
		r.Get("/services/{serviceId}/options", h.ListOptions)
		r.Post("/services/{serviceId}/options", h.AddOption)
		r.Put("/services/{serviceId}/options/{optionId}", h.UpdateOption)
		r.Delete("/services/{serviceId}/options/{optionId}", h.DeleteOption)

		r.Get("/areas", h.ListServiceAreas)
		r.Post("/areas", h.AddServiceAreas)
		r.Patch("/areas/{zip}", h.SetServiceAreaActive)
		r.Delete("/areas/{zip}", h.RemoveServiceArea)

		r.Get("/discounts", h.ListDiscounts)
		r.Post("/discounts", h.CreateDiscount)
		r.Patch("/discounts/{discountId}", h.SetDiscountActive)
		r.Delete("/discounts/{discountId}", h.DeleteDiscount)
	})
}

// ---------------- PUBLIC ----------------

func (h *Handler) CheckCoverage(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, CheckCoverage{OwnerID: chi.URLParam(r, "ownerId"), ZipCode: r.URL.Query().Get("zip")})
}

func (h *Handler) ListPublicServices(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListPublicServices{OwnerID: chi.URLParam(r, "ownerId")})
}

func (h *Handler) ListPublicOptions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListPublicOptions{OwnerID: chi.URLParam(r, "ownerId"), ServiceID: chi.URLParam(r, "serviceId")})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, QuotePrice{OwnerID: chi.URLParam(r, "ownerId"), Request: req})
}

func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	h.serve(w, r, SubmitBooking{OwnerID: chi.URLParam(r, "ownerId"), Request: req})
}

// ---------------- OWNER: BOOKINGS ----------------

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookingFilter{Status: models.BookingStatus(q.Get("status"))}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		h.writeError(w, r, models.NewValidationError("limit", "must be a whole number"))
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		h.writeError(w, r, models.NewValidationError("offset", "must be a whole number"))
		return
	}
	h.serve(w, r, ListBookings{OwnerID: auth.OwnerID(r.Context()), Filter: filter})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, GetBooking{OwnerID: auth.OwnerID(r.Context()), BookingID: chi.URLParam(r, "bookingId")})
}

func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.BookingStatus `json:"status"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	h.serve(w, r, TransitionBooking{OwnerID: auth.OwnerID(r.Context()), BookingID: chi.URLParam(r, "bookingId"), Status: body.Status})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, GetBookingStats{OwnerID: auth.OwnerID(r.Context())})
}

// ---------------- OWNER: CATALOG ----------------

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListServices{OwnerID: auth.OwnerID(r.Context())})
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req models.ServiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, CreateService{OwnerID: auth.OwnerID(r.Context()), Request: req})
}

func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req models.ServiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, UpdateService{OwnerID: auth.OwnerID(r.Context()), ServiceID: chi.URLParam(r, "serviceId"), Request: req})
}

func (h *Handler) SetServiceActive(w http.ResponseWriter, r *http.Request) {
	var body activeBody
	if !h.decode(w, r, &body) {
		return
	}
	h.serve(w, r, SetServiceActive{OwnerID: auth.OwnerID(r.Context()), ServiceID: chi.URLParam(r, "serviceId"), Active: body.Active})
}

func (h *Handler) ListOptions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListOptions{OwnerID: auth.OwnerID(r.Context()), ServiceID: chi.URLParam(r, "serviceId")})
}

func (h *Handler) AddOption(w http.ResponseWriter, r *http.Request) {
	var req models.ServiceOptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, AddOption{OwnerID: auth.OwnerID(r.Context()), ServiceID: chi.URLParam(r, "serviceId"), Request: req})
}

func (h *Handler) UpdateOption(w http.ResponseWriter, r *http.Request) {
	var req models.ServiceOptionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, UpdateOption{
		OwnerID:   auth.OwnerID(r.Context()),
		ServiceID: chi.URLParam(r, "serviceId"),
		OptionID:  chi.URLParam(r, "optionId"),
		Request:   req,
	})
}

func (h *Handler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, DeleteOption{
		OwnerID:   auth.OwnerID(r.Context()),
		ServiceID: chi.URLParam(r, "serviceId"),
		OptionID:  chi.URLParam(r, "optionId"),
	})
}

func (h *Handler) ListServiceAreas(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListServiceAreas{OwnerID: auth.OwnerID(r.Context())})
}

func (h *Handler) AddServiceAreas(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZipCodes []string `json:"zip_codes"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if len(body.ZipCodes) == 0 {
		h.writeError(w, r, models.NewValidationError("zip_codes", "at least one ZIP code is required"))
		return
	}
	h.serve(w, r, AddServiceAreas{OwnerID: auth.OwnerID(r.Context()), ZipCodes: body.ZipCodes})
}

func (h *Handler) SetServiceAreaActive(w http.ResponseWriter, r *http.Request) {
	var body activeBody
	if !h.decode(w, r, &body) {
		return
	}
	h.serve(w, r, SetServiceAreaActive{OwnerID: auth.OwnerID(r.Context()), ZipCode: chi.URLParam(r, "zip"), Active: body.Active})
}

func (h *Handler) RemoveServiceArea(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, RemoveServiceArea{OwnerID: auth.OwnerID(r.Context()), ZipCode: chi.URLParam(r, "zip")})
}

func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, ListDiscounts{OwnerID: auth.OwnerID(r.Context())})
}

func (h *Handler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req models.DiscountRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.serve(w, r, CreateDiscount{OwnerID: auth.OwnerID(r.Context()), Request: req})
}

func (h *Handler) SetDiscountActive(w http.ResponseWriter, r *http.Request) {
	var body activeBody
	if !h.decode(w, r, &body) {
		return
	}
	h.serve(w, r, SetDiscountActive{OwnerID: auth.OwnerID(r.Context()), DiscountID: chi.URLParam(r, "discountId"), Active: body.Active})
}

func (h *Handler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, DeleteDiscount{OwnerID: auth.OwnerID(r.Context()), DiscountID: chi.URLParam(r, "discountId")})
}

// ---------------- PLUMBING ----------------

type activeBody struct {
	Active bool `json:"active"`
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, a Action) {
	res, err := h.Dispatcher.Dispatch(r.Context(), a)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, res.Status, utils.SuccessResponse(res.Message, res.Data))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("%s %s: invalid request body: %v", r.Method, r.URL.Path, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return false
	}
	return true
}

// writeError maps domain errors to status codes. Storage and unknown errors are
// logged in full and reported generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *models.ValidationError
		nerr  *models.NotCoveredError
		derr  *models.DiscountError
		terr  *models.InvalidTransitionError
		dup   *models.DuplicateSubmissionError
		nferr *models.NotFoundError
	)

	switch {
	case errors.As(err, &verr):
		resp := utils.ErrorResponse("Validation failed", verr.Error())
		resp.Field = verr.Field
		utils.WriteJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &nerr):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Area not covered", nerr.Error()))
	case errors.As(err, &derr):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Discount not applicable", derr.Error()))
	case errors.As(err, &terr):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Invalid status change", terr.Error()))
	case errors.As(err, &dup):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Duplicate submission", dup.Error()))
	case errors.As(err, &nferr):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", nferr.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal server error", "something went wrong, please try again"))
	}
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// RequestLogger logs every request through the API category.
func RequestLogger(l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			l.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}
