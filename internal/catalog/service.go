package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mobooking/internal/discount"
	"mobooking/internal/logger"
	"mobooking/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateService(ctx context.Context, s *models.Service) error
	UpdateService(ctx context.Context, s *models.Service) error
	SetServiceStatus(ctx context.Context, ownerID, id string, status models.ServiceStatus) error
	GetService(ctx context.Context, ownerID, id string) (*models.Service, error)
	ListServices(ctx context.Context, ownerID string, activeOnly bool) ([]models.Service, error)

	CreateOption(ctx context.Context, o *models.ServiceOption) error
	UpdateOption(ctx context.Context, o *models.ServiceOption) error
	DeleteOption(ctx context.Context, ownerID, serviceID, id string) error
	ListOptions(ctx context.Context, ownerID, serviceID string) ([]models.ServiceOption, error)

	UpsertServiceArea(ctx context.Context, area *models.ServiceArea) error
	GetServiceArea(ctx context.Context, ownerID, zip string) (*models.ServiceArea, error)
	SetServiceAreaActive(ctx context.Context, ownerID, zip string, active bool) error
	DeleteServiceArea(ctx context.Context, ownerID, zip string) error
	ListServiceAreas(ctx context.Context, ownerID string) ([]models.ServiceArea, error)

	CreateDiscount(ctx context.Context, d *models.Discount) error
	GetDiscountByCode(ctx context.Context, ownerID, code string) (*models.Discount, error)
	SetDiscountActive(ctx context.Context, ownerID, id string, active bool) error
	DeleteDiscount(ctx context.Context, ownerID, id string) error
	ListDiscounts(ctx context.Context, ownerID string) ([]models.Discount, error)
}

// ZipNormalizer validates ZIP input and drops cached coverage after area changes.
type ZipNormalizer interface {
	Normalize(zip string) (string, error)
	Invalidate(ctx context.Context, ownerID string)
}

// CatalogService is the owner-facing management of services, options, areas and discounts.
type CatalogService struct {
	DB       DBLayer
	Coverage ZipNormalizer
	Logger   *logger.Logger
	now      func() time.Time
}

func NewCatalogService(db DBLayer, coverage ZipNormalizer, l *logger.Logger) *CatalogService {
	return &CatalogService{DB: db, Coverage: coverage, Logger: l, now: func() time.Time { return time.Now().UTC() }}
}

// ---------------- SERVICES ----------------

func validateService(req *models.ServiceRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	return models.Validate(req)
}

func (s *CatalogService) CreateService(ctx context.Context, ownerID string, req models.ServiceRequest) (*models.Service, error) {
	if err := validateService(&req); err != nil {
		return nil, err
	}
	svc := &models.Service{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Name:            req.Name,
		Description:     req.Description,
		BasePrice:       req.BasePrice,
		DurationMinutes: req.DurationMinutes,
		Status:          models.ServiceActive,
		CreatedAt:       s.now(),
	}
	if err := s.DB.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	s.Logger.LogDatabase("INSERT", "services", fmt.Sprintf("owner %s created service %s", ownerID, svc.ID))
	return svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, ownerID, id string, req models.ServiceRequest) (*models.Service, error) {
	if err := validateService(&req); err != nil {
		return nil, err
	}
	svc, err := s.DB.GetService(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	svc.Name = req.Name
	svc.Description = req.Description
	svc.BasePrice = req.BasePrice
	svc.DurationMinutes = req.DurationMinutes
	svc.UpdatedAt = s.now()
	if err := s.DB.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetServiceActive deactivates or reactivates a service. Bookings keep referencing it.
func (s *CatalogService) SetServiceActive(ctx context.Context, ownerID, id string, active bool) error {
	status := models.ServiceInactive
	if active {
		status = models.ServiceActive
	}
	return s.DB.SetServiceStatus(ctx, ownerID, id, status)
}

func (s *CatalogService) GetService(ctx context.Context, ownerID, id string) (*models.Service, error) {
	return s.DB.GetService(ctx, ownerID, id)
}

func (s *CatalogService) ListServices(ctx context.Context, ownerID string, activeOnly bool) ([]models.Service, error) {
	return s.DB.ListServices(ctx, ownerID, activeOnly)
}

// ---------------- OPTIONS ----------------

func validateOption(req *models.ServiceOptionRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := models.Validate(req); err != nil {
		return err
	}
	if req.MinValue != nil && req.MaxValue != nil && *req.MinValue > *req.MaxValue {
		return models.NewValidationError("max_value", "maximum must not be below the minimum")
	}
	return nil
}

func (s *CatalogService) AddOption(ctx context.Context, ownerID, serviceID string, req models.ServiceOptionRequest) (*models.ServiceOption, error) {
	if err := validateOption(&req); err != nil {
		return nil, err
	}
	if _, err := s.DB.GetService(ctx, ownerID, serviceID); err != nil {
		return nil, err
	}
	opt := &models.ServiceOption{
		ID:        uuid.New().String(),
		ServiceID: serviceID,
		OwnerID:   ownerID,
		CreatedAt: s.now(),
	}
	applyOption(opt, req)
	if err := s.DB.CreateOption(ctx, opt); err != nil {
		return nil, err
	}
	return opt, nil
}

func (s *CatalogService) UpdateOption(ctx context.Context, ownerID, serviceID, id string, req models.ServiceOptionRequest) (*models.ServiceOption, error) {
	if err := validateOption(&req); err != nil {
		return nil, err
	}
	opt := &models.ServiceOption{ID: id, ServiceID: serviceID, OwnerID: ownerID}
	applyOption(opt, req)
	if err := s.DB.UpdateOption(ctx, opt); err != nil {
		return nil, err
	}
	return opt, nil
}

func applyOption(opt *models.ServiceOption, req models.ServiceOptionRequest) {
	opt.Name = req.Name
	opt.Description = req.Description
	opt.Kind = req.Kind
	opt.PriceImpact = req.PriceImpact
	opt.MinValue = req.MinValue
	opt.MaxValue = req.MaxValue
	opt.SortOrder = req.SortOrder
}

func (s *CatalogService) DeleteOption(ctx context.Context, ownerID, serviceID, id string) error {
	return s.DB.DeleteOption(ctx, ownerID, serviceID, id)
}

func (s *CatalogService) ListOptions(ctx context.Context, ownerID, serviceID string) ([]models.ServiceOption, error) {
	return s.DB.ListOptions(ctx, ownerID, serviceID)
}

// ---------------- SERVICE AREAS ----------------

// AddServiceArea adds a ZIP or reactivates an existing inactive one.
func (s *CatalogService) AddServiceArea(ctx context.Context, ownerID, zip string) (*models.ServiceArea, error) {
	normalized, err := s.Coverage.Normalize(zip)
	if err != nil {
		return nil, err
	}
	now := s.now()
	area := &models.ServiceArea{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		ZipCode:   normalized,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.UpsertServiceArea(ctx, area); err != nil {
		return nil, err
	}
	s.Coverage.Invalidate(ctx, ownerID)
	s.Logger.LogCoverage(ownerID, normalized, "area added")
	return area, nil
}

// AddServiceAreas adds every ZIP of a bulk paste. All ZIPs are validated before any is stored.
func (s *CatalogService) AddServiceAreas(ctx context.Context, ownerID string, zips []string) ([]models.ServiceArea, error) {
	seen := make(map[string]bool, len(zips))
	normalized := make([]string, 0, len(zips))
	for _, zip := range zips {
		n, err := s.Coverage.Normalize(zip)
		if err != nil {
			return nil, err
		}
		if !seen[n] {
			seen[n] = true
			normalized = append(normalized, n)
		}
	}

	areas := make([]models.ServiceArea, 0, len(normalized))
	for _, zip := range normalized {
		area, err := s.AddServiceArea(ctx, ownerID, zip)
		if err != nil {
			return areas, err
		}
		areas = append(areas, *area)
	}
	return areas, nil
}

func (s *CatalogService) SetServiceAreaActive(ctx context.Context, ownerID, zip string, active bool) error {
	normalized, err := s.Coverage.Normalize(zip)
	if err != nil {
		return err
	}
	if err := s.DB.SetServiceAreaActive(ctx, ownerID, normalized, active); err != nil {
		return err
	}
	s.Coverage.Invalidate(ctx, ownerID)
	return nil
}

func (s *CatalogService) RemoveServiceArea(ctx context.Context, ownerID, zip string) error {
	normalized, err := s.Coverage.Normalize(zip)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteServiceArea(ctx, ownerID, normalized); err != nil {
		return err
	}
	s.Coverage.Invalidate(ctx, ownerID)
	return nil
}

func (s *CatalogService) ListServiceAreas(ctx context.Context, ownerID string) ([]models.ServiceArea, error) {
	return s.DB.ListServiceAreas(ctx, ownerID)
}

// ---------------- DISCOUNTS ----------------

func (s *CatalogService) CreateDiscount(ctx context.Context, ownerID string, req models.DiscountRequest) (*models.Discount, error) {
	if err := discount.CheckRequest(req); err != nil {
		return nil, err
	}
	code, _ := discount.NormalizeCode(req.Code)

	existing, err := s.DB.GetDiscountByCode(ctx, ownerID, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("code", "code %s already exists", code)
	}

	d := &models.Discount{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Code:       code,
		Kind:       req.Kind,
		Value:      req.Value,
		ExpiresAt:  req.ExpiresAt,
		UsageLimit: req.UsageLimit,
		Active:     true,
		CreatedAt:  s.now(),
	}
	if err := s.DB.CreateDiscount(ctx, d); err != nil {
		return nil, err
	}
	s.Logger.LogDiscount("CREATE", code, discount.Describe(d))
	return d, nil
}

func (s *CatalogService) SetDiscountActive(ctx context.Context, ownerID, id string, active bool) error {
	return s.DB.SetDiscountActive(ctx, ownerID, id, active)
}

func (s *CatalogService) DeleteDiscount(ctx context.Context, ownerID, id string) error {
	return s.DB.DeleteDiscount(ctx, ownerID, id)
}

func (s *CatalogService) ListDiscounts(ctx context.Context, ownerID string) ([]models.Discount, error) {
	return s.DB.ListDiscounts(ctx, ownerID)
}
