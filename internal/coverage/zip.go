package coverage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mobooking/internal/logger"
	"mobooking/internal/models"
)

const DefaultZipPattern = `^\d{5}(-\d{4})?$`

// AreaLookup returns the owner's service area row for a normalised ZIP, or nil when
// no row exists.
type AreaLookup interface {
	GetServiceArea(ctx context.Context, ownerID, zip string) (*models.ServiceArea, error)
}

// Cache stores coverage verdicts per owner generation. Get reports found=false on a miss;
// Set drops the verdict when gen is no longer the owner's current generation.
type Cache interface {
	Generation(ctx context.Context, ownerID string) (int64, error)
	Get(ctx context.Context, ownerID string, gen int64, zip string) (covered bool, found bool, err error)
	Set(ctx context.Context, ownerID string, gen int64, zip string, covered bool) error
	Invalidate(ctx context.Context, ownerID string) error
}

// Index answers whether an owner currently serves a ZIP code.
type Index struct {
	store   AreaLookup
	cache   Cache
	pattern *regexp.Regexp
	logger  *logger.Logger
}

// NewIndex builds an Index. cache may be nil; an empty pattern selects the US format.
func NewIndex(store AreaLookup, cache Cache, pattern string, l *logger.Logger) (*Index, error) {
	if pattern == "" {
		pattern = DefaultZipPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid ZIP pattern %q: %w", pattern, err)
	}
	return &Index{store: store, cache: cache, pattern: re, logger: l}, nil
}

// Normalize validates zip and reduces ZIP+4 input to its five digit base.
func (i *Index) Normalize(zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	if !i.pattern.MatchString(zip) {
		return "", models.NewValidationError("zip_code", "%q is not a valid ZIP code", zip)
	}
	if idx := strings.IndexByte(zip, '-'); idx > 0 {
		zip = zip[:idx]
	}
	return zip, nil
}

// IsCovered reports whether an active service area exists for (ownerID, zip). A missing
// row is "not covered", never an error. A malformed zip is a ValidationError.
func (i *Index) IsCovered(ctx context.Context, ownerID, zip string) (bool, error) {
	normalized, err := i.Normalize(zip)
	if err != nil {
		return false, err
	}

	// The generation is read before the store so a concurrent Invalidate makes our Set a no-op.
	var gen int64
	useCache := i.cache != nil
	if useCache {
		if gen, err = i.cache.Generation(ctx, ownerID); err != nil {
			i.logger.Warn("COVERAGE", fmt.Sprintf("cache generation read failed for %s: %v", ownerID, err))
			useCache = false
		}
	}
	if useCache {
		covered, found, err := i.cache.Get(ctx, ownerID, gen, normalized)
		if err != nil {
			i.logger.Warn("COVERAGE", fmt.Sprintf("cache read failed for %s/%s: %v", ownerID, normalized, err))
		} else if found {
			i.logger.LogCoverage(ownerID, normalized, fmt.Sprintf("cache hit covered=%t", covered))
			return covered, nil
		}
	}

	area, err := i.store.GetServiceArea(ctx, ownerID, normalized)
	if err != nil {
		return false, err
	}
	covered := area != nil && area.Active
	i.logger.LogCoverage(ownerID, normalized, fmt.Sprintf("store lookup covered=%t", covered))

	if useCache {
		if err := i.cache.Set(ctx, ownerID, gen, normalized, covered); err != nil {
			i.logger.Warn("COVERAGE", fmt.Sprintf("cache write failed for %s/%s: %v", ownerID, normalized, err))
		}
	}
	return covered, nil
}

// Require is IsCovered that turns "not covered" into a NotCoveredError.
func (i *Index) Require(ctx context.Context, ownerID, zip string) (string, error) {
	normalized, err := i.Normalize(zip)
	if err != nil {
		return "", err
	}
	covered, err := i.IsCovered(ctx, ownerID, normalized)
	if err != nil {
		return "", err
	}
	if !covered {
		return "", &models.NotCoveredError{ZIP: normalized}
	}
	return normalized, nil
}

// Invalidate drops cached verdicts for an owner after any area change.
func (i *Index) Invalidate(ctx context.Context, ownerID string) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Invalidate(ctx, ownerID); err != nil {
		i.logger.Error("COVERAGE", fmt.Sprintf("cache invalidation failed for %s: %v", ownerID, err))
	}
}
