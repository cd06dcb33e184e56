package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"mobooking/internal/models"

	"github.com/shopspring/decimal"
)

// Multiplier values are plain decimals; exponent forms would let a few bytes expand into
// millions of digits once rounded.
var multiplierPattern = regexp.MustCompile(`^\d{1,6}(\.\d{1,4})?$`)

var truthyValues = map[string]bool{
	"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true,
}

// OptionPriceRule turns one selected add-on into a price delta.
type OptionPriceRule struct {
	Option models.ServiceOption
}

func NewOptionPriceRule(option models.ServiceOption) OptionPriceRule {
	return OptionPriceRule{Option: option}
}

// Apply returns the delta the option adds to basePrice for the raw selected value.
func (r OptionPriceRule) Apply(basePrice decimal.Decimal, selected string) (decimal.Decimal, error) {
	impact := r.Option.PriceImpact
	field := r.field()
	selected = strings.TrimSpace(selected)

	switch r.Option.Kind {
	case models.OptionBoolean:
		if IsTruthy(selected) {
			return impact, nil
		}
		return decimal.Zero, nil

	case models.OptionFixedAmount:
		return impact, nil

	case models.OptionPercentage:
		return Percent(basePrice, impact), nil

	case models.OptionMultiplier:
		if strings.HasPrefix(selected, "-") {
			return decimal.Zero, models.NewValidationError(field, "value must not be negative")
		}
		if !multiplierPattern.MatchString(selected) {
			return decimal.Zero, models.NewValidationError(field, "%q is not a number of up to 6 digits and 4 decimals", selected)
		}
		value, err := decimal.NewFromString(selected)
		if err != nil {
			return decimal.Zero, models.NewValidationError(field, "%q is not a number", selected)
		}
		if err := r.checkMultiplierBounds(value); err != nil {
			return decimal.Zero, err
		}
		return impact.Mul(value), nil

	case models.OptionQuantity:
		qty, err := strconv.Atoi(selected)
		if err != nil {
			return decimal.Zero, models.NewValidationError(field, "%q is not a whole number", selected)
		}
		if err := r.checkBounds(qty); err != nil {
			return decimal.Zero, err
		}
		return impact.Mul(decimal.NewFromInt(int64(qty))), nil
	}

	return decimal.Zero, models.NewValidationError(field, "unsupported option kind %q", r.Option.Kind)
}

func (r OptionPriceRule) checkBounds(qty int) error {
	field := r.field()
	lower := 0
	if r.Option.MinValue != nil {
		lower = *r.Option.MinValue
	}
	if qty < lower {
		return models.NewValidationError(field, "quantity %d is below the minimum of %d", qty, lower)
	}
	if r.Option.MaxValue != nil && qty > *r.Option.MaxValue {
		return models.NewValidationError(field, "quantity %d is above the maximum of %d", qty, *r.Option.MaxValue)
	}
	return nil
}

func (r OptionPriceRule) checkMultiplierBounds(value decimal.Decimal) error {
	field := r.field()
	if r.Option.MinValue != nil && value.LessThan(decimal.NewFromInt(int64(*r.Option.MinValue))) {
		return models.NewValidationError(field, "value %s is below the minimum of %d", value, *r.Option.MinValue)
	}
	if r.Option.MaxValue != nil && value.GreaterThan(decimal.NewFromInt(int64(*r.Option.MaxValue))) {
		return models.NewValidationError(field, "value %s is above the maximum of %d", value, *r.Option.MaxValue)
	}
	return nil
}

func (r OptionPriceRule) field() string {
	return "options." + r.Option.ID
}

// IsTruthy reports whether a form value counts as "selected" for a boolean option.
func IsTruthy(value string) bool {
	return truthyValues[strings.ToLower(strings.TrimSpace(value))]
}
