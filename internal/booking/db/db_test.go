package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"mobooking/internal/booking/db"
	"mobooking/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	for _, model := range []interface{}{(*models.Booking)(nil), (*models.Discount)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}
	return &db.DB{Bun: bunDB}, bunDB
}

func newBooking(ownerID string, created time.Time) *models.Booking {
	id := uuid.New().String()
	return &models.Booking{
		ID:              id,
		Reference:       "MB-" + id[:8],
		OwnerID:         ownerID,
		ServiceID:       "svc-1",
		CustomerName:    "Jane Doe",
		CustomerEmail:   "jane@example.com",
		ZipCode:         "90210",
		SelectedOptions: map[string]string{"opt-a": "1"},
		Subtotal:        decimal.RequireFromString("70.00"),
		DiscountAmount:  decimal.Zero,
		TotalPrice:      decimal.RequireFromString("70.00"),
		Status:          models.BookingPending,
		CreatedAt:       created,
	}
}

func insertDiscount(t *testing.T, bunDB *bun.DB, limit *int) *models.Discount {
	d := &models.Discount{
		ID:         uuid.New().String(),
		OwnerID:    "owner-1",
		Code:       "ONCE",
		Kind:       models.DiscountFixed,
		Value:      decimal.NewFromInt(5),
		UsageLimit: limit,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(d).Exec(context.Background())
	require.NoError(t, err)
	return d
}

func timesUsed(t *testing.T, bunDB *bun.DB, id string) int {
	var d models.Discount
	require.NoError(t, bunDB.NewSelect().Model(&d).Where("id = ?", id).Scan(context.Background()))
	return d.TimesUsed
}

func TestCreateAndGetBooking(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	b := newBooking("owner-1", time.Now().UTC())
	require.NoError(t, store.CreateBooking(ctx, b, ""))

	got, err := store.GetBooking(ctx, "owner-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, "1", got.SelectedOptions["opt-a"])
	assert.Equal(t, "70.00", got.TotalPrice.StringFixed(2))
	assert.Nil(t, got.DiscountCode)

	_, err = store.GetBooking(ctx, "owner-2", b.ID)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCreateBookingClaimsDiscount(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	limit := 2
	d := insertDiscount(t, bunDB, &limit)

	for i := 0; i < 2; i++ {
		b := newBooking("owner-1", time.Now().UTC())
		b.DiscountCode = &d.Code
		require.NoError(t, store.CreateBooking(ctx, b, d.ID))
	}
	assert.Equal(t, 2, timesUsed(t, bunDB, d.ID))

	// Test case: third claim fails and the booking is rolled back
	b := newBooking("owner-1", time.Now().UTC())
	b.DiscountCode = &d.Code
	err := store.CreateBooking(ctx, b, d.ID)
	var derr *models.DiscountError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, models.DiscountUsageExceeded, derr.Reason)

	_, err = store.GetBooking(ctx, "owner-1", b.ID)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 2, timesUsed(t, bunDB, d.ID))
}

func TestCreateBookingRollsBackClaimOnInsertFailure(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	d := insertDiscount(t, bunDB, nil)

	first := newBooking("owner-1", time.Now().UTC())
	require.NoError(t, store.CreateBooking(ctx, first, d.ID))

	// Same reference violates the unique constraint after the claim ran.
	dup := newBooking("owner-1", time.Now().UTC())
	dup.Reference = first.Reference
	err := store.CreateBooking(ctx, dup, d.ID)
	var serr *models.StorageError
	require.ErrorAs(t, err, &serr)

	assert.Equal(t, 1, timesUsed(t, bunDB, d.ID))
}

func TestCreateBookingRejectsCodeChangedAfterValidation(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name   string
		change func(q *bun.UpdateQuery) *bun.UpdateQuery
		reason models.DiscountReason
	}{
		{
			name:   "deactivated",
			change: func(q *bun.UpdateQuery) *bun.UpdateQuery { return q.Set("active = ?", false) },
			reason: models.DiscountInvalidCode,
		},
		{
			name:   "expired",
			change: func(q *bun.UpdateQuery) *bun.UpdateQuery { return q.Set("expires_at = ?", now.Add(-time.Hour)) },
			reason: models.DiscountExpired,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := insertDiscount(t, bunDB, nil)
			_, err := bunDB.NewUpdate().Model((*models.Discount)(nil)).Set("code = ?", fmt.Sprintf("CODE%d", i)).Where("id = ?", d.ID).Exec(ctx)
			require.NoError(t, err)
			_, err = tt.change(bunDB.NewUpdate().Model((*models.Discount)(nil)).Where("id = ?", d.ID)).Exec(ctx)
			require.NoError(t, err)

			b := newBooking("owner-1", now)
			b.DiscountCode = &d.Code
			err = store.CreateBooking(ctx, b, d.ID)
			var derr *models.DiscountError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.reason, derr.Reason)

			assert.Equal(t, 0, timesUsed(t, bunDB, d.ID))
			_, err = store.GetBooking(ctx, "owner-1", b.ID)
			var nf *models.NotFoundError
			require.ErrorAs(t, err, &nf)
		})
	}
}

func TestCreateBookingClaimsCodeBeforeExpiry(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	d := insertDiscount(t, bunDB, nil)
	_, err := bunDB.NewUpdate().Model((*models.Discount)(nil)).Set("expires_at = ?", now.Add(time.Hour)).Where("id = ?", d.ID).Exec(ctx)
	require.NoError(t, err)

	b := newBooking("owner-1", now)
	b.DiscountCode = &d.Code
	require.NoError(t, store.CreateBooking(ctx, b, d.ID))
	assert.Equal(t, 1, timesUsed(t, bunDB, d.ID))
}

func TestConcurrentDiscountClaims(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	limit := 1
	d := insertDiscount(t, bunDB, &limit)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, exceeded := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := newBooking("owner-1", time.Now().UTC())
			b.DiscountCode = &d.Code
			err := store.CreateBooking(ctx, b, d.ID)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if derr, ok := err.(*models.DiscountError); ok && derr.Reason == models.DiscountUsageExceeded {
				exceeded++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, exceeded)
	assert.Equal(t, 1, timesUsed(t, bunDB, d.ID))
}

func TestUpdateBookingStatusIsConditional(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	b := newBooking("owner-1", time.Now().UTC())
	require.NoError(t, store.CreateBooking(ctx, b, ""))

	b.Status = models.BookingConfirmed
	b.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.UpdateBookingStatus(ctx, b, models.BookingPending))

	// Test case: a second writer still believing the booking is pending loses
	stale := *b
	stale.Status = models.BookingCancelled
	err := store.UpdateBookingStatus(ctx, &stale, models.BookingPending)
	var terr *models.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.BookingPending, terr.From)

	got, err := store.GetBooking(ctx, "owner-1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)
}

func TestListBookingsAndStats(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	statuses := []models.BookingStatus{models.BookingPending, models.BookingCompleted, models.BookingCompleted, models.BookingCancelled}
	for i, status := range statuses {
		b := newBooking("owner-1", base.Add(time.Duration(i)*time.Hour))
		b.Status = status
		b.TotalPrice = decimal.RequireFromString(fmt.Sprintf("%d.25", 10*(i+1)))
		require.NoError(t, store.CreateBooking(ctx, b, ""))
	}
	require.NoError(t, store.CreateBooking(ctx, newBooking("owner-2", base), ""))

	all, err := store.ListBookings(ctx, "owner-1", models.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, models.BookingCancelled, all[0].Status, "newest first")

	completed, err := store.ListBookings(ctx, "owner-1", models.BookingFilter{Status: models.BookingCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	page, err := store.ListBookings(ctx, "owner-1", models.BookingFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, models.BookingPending, page[1].Status)

	stats, err := store.Stats(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Counts[models.BookingCompleted])
	assert.Equal(t, 1, stats.Counts[models.BookingPending])
	assert.Equal(t, "50.50", stats.Revenue.StringFixed(2))
}
