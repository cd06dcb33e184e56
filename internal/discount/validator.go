package discount

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mobooking/internal/logger"
	"mobooking/internal/models"

	"github.com/shopspring/decimal"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

var hundred = decimal.NewFromInt(100)

// Validator checks a discount's applicability to one owner at one instant.
type Validator struct {
	logger *logger.Logger
}

func NewValidator(l *logger.Logger) *Validator {
	return &Validator{logger: l}
}

// NormalizeCode upper-cases and trims a customer-entered code.
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !codePattern.MatchString(normalized) {
		return "", &models.DiscountError{Code: code, Reason: models.DiscountInvalidCode}
	}
	return normalized, nil
}

// Validate returns d when it may be applied for ownerID at now. A nil discount, or
// one belonging to another owner, is NotFound.
func (v *Validator) Validate(d *models.Discount, code, ownerID string, now time.Time) (*models.Discount, error) {
	if d == nil || d.OwnerID != ownerID {
		v.reject(code, models.DiscountNotFound)
		return nil, &models.DiscountError{Code: code, Reason: models.DiscountNotFound}
	}

	if !d.Active {
		v.reject(d.Code, models.DiscountInvalidCode)
		return nil, &models.DiscountError{Code: d.Code, Reason: models.DiscountInvalidCode}
	}

	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		v.reject(d.Code, models.DiscountExpired)
		return nil, &models.DiscountError{Code: d.Code, Reason: models.DiscountExpired}
	}

	if d.UsageLimit != nil && d.TimesUsed >= *d.UsageLimit {
		v.reject(d.Code, models.DiscountUsageExceeded)
		return nil, &models.DiscountError{Code: d.Code, Reason: models.DiscountUsageExceeded}
	}

	return d, nil
}

func (v *Validator) reject(code string, reason models.DiscountReason) {
	v.logger.LogDiscount("REJECT", code, string(reason))
}

// ComputeAmount is the money a validated discount takes off subtotal, capped at subtotal.
func ComputeAmount(subtotal decimal.Decimal, d *models.Discount) decimal.Decimal {
	if d == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Kind {
	case models.DiscountFixed:
		amount = d.Value
	case models.DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(hundred)
	default:
		return decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// CheckRequest validates an owner's discount definition before it is stored.
func CheckRequest(req models.DiscountRequest) error {
	if err := models.Validate(req); err != nil {
		return err
	}
	if _, err := NormalizeCode(req.Code); err != nil {
		return models.NewValidationError("code", "must be 3-32 letters, digits, '-' or '_'")
	}
	if req.Kind == models.DiscountPercentage && req.Value.GreaterThan(hundred) {
		return models.NewValidationError("value", "percentage must be between 0 and 100")
	}
	return nil
}

// Describe renders a short human summary such as "20% off".
func Describe(d *models.Discount) string {
	if d == nil {
		return ""
	}
	if d.Kind == models.DiscountPercentage {
		return fmt.Sprintf("%s%% off", d.Value.String())
	}
	return fmt.Sprintf("%s off", d.Value.StringFixed(2))
}
