package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mobooking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const defaultListLimit = 50

type DB struct {
	Bun *bun.DB
}

func storageErr(op string, err error) error {
	return &models.StorageError{Op: op, Err: err}
}

// CreateBooking inserts b and, when discountID is set, claims one use of that discount
// in the same transaction. The claim is a single conditional increment that also requires
// the code to be active and unexpired at b.CreatedAt, so a code that hit its limit, was
// deactivated or expired after validation affects no row and the booking is rolled back.
func (d *DB) CreateBooking(ctx context.Context, b *models.Booking, discountID string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if discountID != "" {
			res, err := tx.NewUpdate().
				Model((*models.Discount)(nil)).
				Set("times_used = times_used + 1").
				Where("id = ?", discountID).
				Where("owner_id = ?", b.OwnerID).
				Where("active = TRUE").
				Where("(expires_at IS NULL OR expires_at >= ?)", b.CreatedAt).
				Where("(usage_limit IS NULL OR times_used < usage_limit)").
				Exec(ctx)
			if err != nil {
				return storageErr("claim discount", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return storageErr("claim discount", err)
			}
			if n == 0 {
				return claimRejected(ctx, tx, b, discountID)
			}
		}

		if _, err := tx.NewInsert().Model(b).Exec(ctx); err != nil {
			return storageErr("create booking", err)
		}
		return nil
	})
}

// claimRejected re-reads the discount to report why the claim matched no row.
func claimRejected(ctx context.Context, tx bun.Tx, b *models.Booking, discountID string) error {
	code := ""
	if b.DiscountCode != nil {
		code = *b.DiscountCode
	}

	var disc models.Discount
	err := tx.NewSelect().
		Model(&disc).
		Where("id = ?", discountID).
		Where("owner_id = ?", b.OwnerID).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &models.DiscountError{Code: code, Reason: models.DiscountNotFound}
	case err != nil:
		return storageErr("claim discount", err)
	case !disc.Active:
		return &models.DiscountError{Code: code, Reason: models.DiscountInvalidCode}
	case disc.ExpiresAt != nil && b.CreatedAt.After(*disc.ExpiresAt):
		return &models.DiscountError{Code: code, Reason: models.DiscountExpired}
	}
	return &models.DiscountError{Code: code, Reason: models.DiscountUsageExceeded}
}

// GetBooking → fetch one of the owner's bookings
func (d *DB) GetBooking(ctx context.Context, ownerID, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "booking", ID: id}
	}
	if err != nil {
		return nil, storageErr("get booking", err)
	}
	return &b, nil
}

// UpdateBookingStatus persists b.Status only if the stored status is still from. When a
// concurrent change got there first no row matches and the caller gets InvalidTransition.
func (d *DB) UpdateBookingStatus(ctx context.Context, b *models.Booking, from models.BookingStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", b.Status).
		Set("updated_at = ?", b.UpdatedAt).
		Where("id = ?", b.ID).
		Where("owner_id = ?", b.OwnerID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return storageErr("update booking status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update booking status", err)
	}
	if n == 0 {
		return &models.InvalidTransitionError{From: from, To: b.Status}
	}
	return nil
}

// ListBookings → owner's bookings, newest first
func (d *DB) ListBookings(ctx context.Context, ownerID string, filter models.BookingFilter) ([]models.Booking, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var bookings []models.Booking
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC", "id ASC").
		Limit(limit).
		Offset(filter.Offset)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list bookings", err)
	}
	return bookings, nil
}

type statusRow struct {
	Status  models.BookingStatus `bun:"status"`
	Count   int                  `bun:"count"`
	Revenue decimal.Decimal      `bun:"revenue"`
}

// Stats → booking count per status and revenue of completed bookings
func (d *DB) Stats(ctx context.Context, ownerID string) (*models.BookingStats, error) {
	var rows []statusRow
	err := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(total_price), 0) AS revenue").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, storageErr("booking stats", err)
	}

	stats := &models.BookingStats{Counts: make(map[models.BookingStatus]int), Revenue: decimal.Zero}
	for _, row := range rows {
		stats.Counts[row.Status] = row.Count
		stats.Total += row.Count
		if row.Status == models.BookingCompleted {
			stats.Revenue = row.Revenue.Round(2)
		}
	}
	return stats, nil
}

// Ping backs the /health check.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.Bun.PingContext(ctx)
}
