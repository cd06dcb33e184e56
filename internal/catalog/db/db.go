package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mobooking/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func storageErr(op string, err error) error {
	return &models.StorageError{Op: op, Err: err}
}

// ---------------- SERVICES ----------------

// CreateService → insert a new service
func (d *DB) CreateService(ctx context.Context, s *models.Service) error {
	if _, err := d.Bun.NewInsert().Model(s).Exec(ctx); err != nil {
		return storageErr("create service", err)
	}
	return nil
}

// UpdateService → update the editable fields of an owner's service
func (d *DB) UpdateService(ctx context.Context, s *models.Service) error {
	res, err := d.Bun.NewUpdate().
		Model(s).
		Column("name", "description", "base_price", "duration_minutes", "updated_at").
		Where("id = ?", s.ID).
		Where("owner_id = ?", s.OwnerID).
		Exec(ctx)
	if err != nil {
		return storageErr("update service", err)
	}
	return requireRow(res, "service", s.ID)
}

// SetServiceStatus → soft (de)activation; services are never deleted
func (d *DB) SetServiceStatus(ctx context.Context, ownerID, id string, status models.ServiceStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Service)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return storageErr("set service status", err)
	}
	return requireRow(res, "service", id)
}

// GetService → fetch one of the owner's services
func (d *DB) GetService(ctx context.Context, ownerID, id string) (*models.Service, error) {
	var s models.Service
	err := d.Bun.NewSelect().
		Model(&s).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "service", ID: id}
	}
	if err != nil {
		return nil, storageErr("get service", err)
	}
	return &s, nil
}

// ListServices → owner's services by name, optionally only active ones
func (d *DB) ListServices(ctx context.Context, ownerID string, activeOnly bool) ([]models.Service, error) {
	var services []models.Service
	q := d.Bun.NewSelect().
		Model(&services).
		Where("owner_id = ?", ownerID).
		Order("name ASC")
	if activeOnly {
		q = q.Where("status = ?", models.ServiceActive)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storageErr("list services", err)
	}
	return services, nil
}

// ---------------- OPTIONS ----------------

func (d *DB) CreateOption(ctx context.Context, o *models.ServiceOption) error {
	if _, err := d.Bun.NewInsert().Model(o).Exec(ctx); err != nil {
		return storageErr("create option", err)
	}
	return nil
}

// UpdateOption rewrites an option of one service and reloads o from the stored row.
func (d *DB) UpdateOption(ctx context.Context, o *models.ServiceOption) error {
	res, err := d.Bun.NewUpdate().
		Model(o).
		Column("name", "description", "kind", "price_impact", "min_value", "max_value", "sort_order").
		Where("id = ?", o.ID).
		Where("service_id = ?", o.ServiceID).
		Where("owner_id = ?", o.OwnerID).
		Exec(ctx)
	if err != nil {
		return storageErr("update option", err)
	}
	if err := requireRow(res, "option", o.ID); err != nil {
		return err
	}

	err = d.Bun.NewSelect().
		Model(o).
		Where("id = ?", o.ID).
		Where("owner_id = ?", o.OwnerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return storageErr("update option", err)
	}
	return nil
}

func (d *DB) DeleteOption(ctx context.Context, ownerID, serviceID, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.ServiceOption)(nil)).
		Where("id = ?", id).
		Where("service_id = ?", serviceID).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return storageErr("delete option", err)
	}
	return requireRow(res, "option", id)
}

// ListOptions → options of one service in display order
func (d *DB) ListOptions(ctx context.Context, ownerID, serviceID string) ([]models.ServiceOption, error) {
	var options []models.ServiceOption
	err := d.Bun.NewSelect().
		Model(&options).
		Where("service_id = ?", serviceID).
		Where("owner_id = ?", ownerID).
		Order("sort_order ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list options", err)
	}
	return options, nil
}

// ---------------- SERVICE AREAS ----------------

// UpsertServiceArea → add a ZIP or reactivate an existing row for it
func (d *DB) UpsertServiceArea(ctx context.Context, area *models.ServiceArea) error {
	_, err := d.Bun.NewInsert().
		Model(area).
		On("CONFLICT (owner_id, zip_code) DO UPDATE").
		Set("active = EXCLUDED.active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return storageErr("upsert service area", err)
	}

	stored, err := d.GetServiceArea(ctx, area.OwnerID, area.ZipCode)
	if err != nil {
		return err
	}
	if stored != nil {
		*area = *stored
	}
	return nil
}

// GetServiceArea → nil, nil when the owner has no row for the ZIP
func (d *DB) GetServiceArea(ctx context.Context, ownerID, zip string) (*models.ServiceArea, error) {
	var area models.ServiceArea
	err := d.Bun.NewSelect().
		Model(&area).
		Where("owner_id = ?", ownerID).
		Where("zip_code = ?", zip).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get service area", err)
	}
	return &area, nil
}

func (d *DB) SetServiceAreaActive(ctx context.Context, ownerID, zip string, active bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.ServiceArea)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("owner_id = ?", ownerID).
		Where("zip_code = ?", zip).
		Exec(ctx)
	if err != nil {
		return storageErr("set service area active", err)
	}
	return requireRow(res, "service area", zip)
}

func (d *DB) DeleteServiceArea(ctx context.Context, ownerID, zip string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.ServiceArea)(nil)).
		Where("owner_id = ?", ownerID).
		Where("zip_code = ?", zip).
		Exec(ctx)
	if err != nil {
		return storageErr("delete service area", err)
	}
	return requireRow(res, "service area", zip)
}

func (d *DB) ListServiceAreas(ctx context.Context, ownerID string) ([]models.ServiceArea, error) {
	var areas []models.ServiceArea
	err := d.Bun.NewSelect().
		Model(&areas).
		Where("owner_id = ?", ownerID).
		Order("zip_code ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list service areas", err)
	}
	return areas, nil
}

// ---------------- DISCOUNTS ----------------

func (d *DB) CreateDiscount(ctx context.Context, disc *models.Discount) error {
	if _, err := d.Bun.NewInsert().Model(disc).Exec(ctx); err != nil {
		return storageErr("create discount", err)
	}
	return nil
}

// GetDiscountByCode → nil, nil when the owner has no such code
func (d *DB) GetDiscountByCode(ctx context.Context, ownerID, code string) (*models.Discount, error) {
	var disc models.Discount
	err := d.Bun.NewSelect().
		Model(&disc).
		Where("owner_id = ?", ownerID).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get discount", err)
	}
	return &disc, nil
}

func (d *DB) SetDiscountActive(ctx context.Context, ownerID, id string, active bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Discount)(nil)).
		Set("active = ?", active).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return storageErr("set discount active", err)
	}
	return requireRow(res, "discount", id)
}

func (d *DB) DeleteDiscount(ctx context.Context, ownerID, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Discount)(nil)).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return storageErr("delete discount", err)
	}
	return requireRow(res, "discount", id)
}

func (d *DB) ListDiscounts(ctx context.Context, ownerID string) ([]models.Discount, error) {
	var discounts []models.Discount
	err := d.Bun.NewSelect().
		Model(&discounts).
		Where("owner_id = ?", ownerID).
		Order("code ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr("list discounts", err)
	}
	return discounts, nil
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return &models.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
