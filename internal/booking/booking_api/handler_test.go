package booking_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mobooking/internal/auth"
	"mobooking/internal/booking"
	"mobooking/internal/booking/booking_api"
	bookingdb "mobooking/internal/booking/db"
	bookingredis "mobooking/internal/booking/redis"
	"mobooking/internal/catalog"
	catalogdb "mobooking/internal/catalog/db"
	"mobooking/internal/coverage"
	"mobooking/internal/kafka"
	"mobooking/internal/logger"
	"mobooking/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var jwtSecret = []byte("handler-test-secret")

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Field   string          `json:"field"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
	token  string
}

func setupServer(t *testing.T) *testServer {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	for _, model := range []interface{}{
		(*models.Service)(nil),
		(*models.ServiceOption)(nil),
		(*models.ServiceArea)(nil),
		(*models.Discount)(nil),
		(*models.Booking)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	log := logger.NewWriterLogger(io.Discard)
	catalogStore := &catalogdb.DB{Bun: bunDB}
	index, err := coverage.NewIndex(catalogStore, coverage.NewRedisCache(client, time.Minute), "", log)
	require.NoError(t, err)

	catalogService := catalog.NewCatalogService(catalogStore, index, log)
	bookingService := booking.NewBookingService(
		&bookingdb.DB{Bun: bunDB},
		catalogStore,
		index,
		bookingredis.NewGuard(client, time.Minute, log),
		kafka.NoopPublisher{Logger: log},
		log,
	)

	h := booking_api.NewHandler(booking_api.NewDispatcher(bookingService, catalogService, "$"), log)
	r := chi.NewRouter()
	r.Use(booking_api.RequestLogger(log))
	h.Routes(r, auth.Middleware(auth.NewHMACVerifier(jwtSecret), log))

	token, err := auth.SignOwnerToken(jwtSecret, "owner-1", time.Hour)
	require.NoError(t, err)

	return &testServer{t: t, router: r, token: token}
}

func (s *testServer) do(method, path string, body interface{}, authed bool) (int, apiResponse) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func decodeData(t *testing.T, resp apiResponse, v interface{}) {
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// seedCatalog sets up the $50 service with a $10 add-on, a 20% add-on, ZIP 90210 and FIVEOFF.
func seedCatalog(t *testing.T, s *testServer) (serviceID, fixedID, pctID string) {
	code, resp := s.do(http.MethodPost, "/api/owner/services", map[string]interface{}{
		"name": "Standard clean", "base_price": "50.00", "duration_minutes": 120,
	}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var svc models.Service
	decodeData(t, resp, &svc)

	code, resp = s.do(http.MethodPost, "/api/owner/services/"+svc.ID+"/options", map[string]interface{}{
		"name": "Inside fridge", "kind": "fixed_amount", "price_impact": "10.00",
	}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var fixed models.ServiceOption
	decodeData(t, resp, &fixed)

	code, resp = s.do(http.MethodPost, "/api/owner/services/"+svc.ID+"/options", map[string]interface{}{
		"name": "Eco products", "kind": "percentage", "price_impact": "20",
	}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var pct models.ServiceOption
	decodeData(t, resp, &pct)

	code, resp = s.do(http.MethodPost, "/api/owner/areas", map[string]interface{}{"zip_codes": []string{"90210", "10001"}}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)

	code, resp = s.do(http.MethodPost, "/api/owner/discounts", map[string]interface{}{
		"code": "FIVEOFF", "kind": "fixed", "value": "5",
	}, true)
	require.Equal(t, http.StatusCreated, code, resp.Error)

	return svc.ID, fixed.ID, pct.ID
}

func TestOwnerRoutesRequireToken(t *testing.T) {
	s := setupServer(t)
	code, resp := s.do(http.MethodGet, "/api/owner/bookings", nil, false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
}

func TestCoverageEndpoint(t *testing.T) {
	s := setupServer(t)
	seedCatalog(t, s)

	code, resp := s.do(http.MethodGet, "/api/public/owner-1/coverage?zip=90210", nil, false)
	require.Equal(t, http.StatusOK, code)
	var res booking_api.CoverageResult
	decodeData(t, resp, &res)
	assert.True(t, res.Covered)

	code, resp = s.do(http.MethodGet, "/api/public/owner-1/coverage?zip=73301", nil, false)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, resp, &res)
	assert.False(t, res.Covered)

	code, resp = s.do(http.MethodGet, "/api/public/owner-1/coverage?zip=abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "zip_code", resp.Field)

	// Deactivating the area takes effect immediately despite the cached verdict.
	code, _ = s.do(http.MethodPatch, "/api/owner/areas/90210", map[string]bool{"active": false}, true)
	require.Equal(t, http.StatusOK, code)
	_, resp = s.do(http.MethodGet, "/api/public/owner-1/coverage?zip=90210", nil, false)
	decodeData(t, resp, &res)
	assert.False(t, res.Covered)

	// Another owner does not share coverage.
	_, resp = s.do(http.MethodGet, "/api/public/owner-2/coverage?zip=10001", nil, false)
	decodeData(t, resp, &res)
	assert.False(t, res.Covered)
}

func TestQuoteAndSubmitFlow(t *testing.T) {
	s := setupServer(t)
	serviceID, fixedID, pctID := seedCatalog(t, s)
	selected := map[string]string{fixedID: "1", pctID: "1"}

	// Test case: quote shows the discounted total without persisting
	code, resp := s.do(http.MethodPost, "/api/public/owner-1/quote", map[string]interface{}{
		"service_id": serviceID, "zip_code": "90210", "selected_options": selected, "discount_code": "fiveoff",
	}, false)
	require.Equal(t, http.StatusOK, code, resp.Error)
	var quote struct {
		Subtotal     string `json:"subtotal"`
		Total        string `json:"total"`
		TotalDisplay string `json:"total_display"`
	}
	decodeData(t, resp, &quote)
	assert.Equal(t, "$65.00", quote.TotalDisplay)

	// Test case: submission
	code, resp = s.do(http.MethodPost, "/api/public/owner-1/bookings", map[string]interface{}{
		"service_id": serviceID, "customer_name": "Jane Doe", "customer_email": "jane@example.com",
		"zip_code": "90210", "selected_options": selected, "discount_code": "FIVEOFF",
		"idempotency_key": "form-abc",
	}, false)
	require.Equal(t, http.StatusCreated, code, resp.Error)
	var created booking_api.BookingResult
	decodeData(t, resp, &created)
	assert.Equal(t, "65.00", created.TotalPrice.StringFixed(2))
	assert.Equal(t, models.BookingPending, created.Status)

	// Test case: the same form submitted again is rejected
	code, _ = s.do(http.MethodPost, "/api/public/owner-1/bookings", map[string]interface{}{
		"service_id": serviceID, "customer_name": "Jane Doe", "customer_email": "jane@example.com",
		"zip_code": "90210", "selected_options": selected, "idempotency_key": "form-abc",
	}, false)
	assert.Equal(t, http.StatusConflict, code)

	// Test case: owner confirms, then cannot move it back
	code, resp = s.do(http.MethodPatch, "/api/owner/bookings/"+created.ID+"/status", map[string]string{"status": "confirmed"}, true)
	require.Equal(t, http.StatusOK, code, resp.Error)
	code, resp = s.do(http.MethodPatch, "/api/owner/bookings/"+created.ID+"/status", map[string]string{"status": "pending"}, true)
	assert.Equal(t, http.StatusConflict, code)

	code, resp = s.do(http.MethodPatch, "/api/owner/bookings/"+created.ID+"/status", map[string]string{"status": "completed"}, true)
	require.Equal(t, http.StatusOK, code, resp.Error)

	code, resp = s.do(http.MethodGet, "/api/owner/stats", nil, true)
	require.Equal(t, http.StatusOK, code)
	var stats models.BookingStats
	decodeData(t, resp, &stats)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, "65.00", stats.Revenue.StringFixed(2))

	code, resp = s.do(http.MethodGet, "/api/owner/bookings?status=completed", nil, true)
	require.Equal(t, http.StatusOK, code)
	var list []models.Booking
	decodeData(t, resp, &list)
	assert.Len(t, list, 1)
}

func TestSubmitErrors(t *testing.T) {
	s := setupServer(t)
	serviceID, _, _ := seedCatalog(t, s)

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"service_id": serviceID, "customer_name": "Jane Doe", "customer_email": "jane@example.com", "zip_code": "90210",
		}
	}

	notCovered := base()
	notCovered["zip_code"] = "73301"
	code, resp := s.do(http.MethodPost, "/api/public/owner-1/bookings", notCovered, false)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Error, "73301")

	badCode := base()
	badCode["discount_code"] = "NOPE"
	code, resp = s.do(http.MethodPost, "/api/public/owner-1/bookings", badCode, false)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, resp.Error, "not found")

	badQty := base()
	badQty["selected_options"] = map[string]string{"missing-option": "1"}
	code, _ = s.do(http.MethodPost, "/api/public/owner-1/bookings", badQty, false)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/owner/bookings/does-not-exist", nil, true)
	assert.Equal(t, http.StatusNotFound, code)

	req := httptest.NewRequest(http.MethodPost, "/api/public/owner-1/bookings", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
