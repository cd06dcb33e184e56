package pricing

import (
	"mobooking/internal/discount"
	"mobooking/internal/models"

	"github.com/shopspring/decimal"
)

type SelectedOption struct {
	Option models.ServiceOption
	Value  string
}

type QuoteLine struct {
	OptionID string            `json:"option_id"`
	Name     string            `json:"name"`
	Kind     models.OptionKind `json:"kind"`
	Value    string            `json:"value"`
	Delta    decimal.Decimal   `json:"delta"`
}

// Quote is the priced breakdown of a booking. Subtotal and DiscountAmount are shown
// rounded to cents; Total is derived from the unrounded figures and rounded once.
type Quote struct {
	ServiceID      string          `json:"service_id"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Lines          []QuoteLine     `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountCode   string          `json:"discount_code,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Calculator is stateless; one instance is shared by every request.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute prices service with the selected options and an already validated discount.
func (c *Calculator) Compute(service models.Service, selected []SelectedOption, d *models.Discount) (*Quote, error) {
	if service.BasePrice.IsNegative() {
		return nil, models.NewValidationError("base_price", "price must not be negative")
	}

	quote := &Quote{
		ServiceID: service.ID,
		BasePrice: service.BasePrice,
		Lines:     make([]QuoteLine, 0, len(selected)),
	}

	seen := make(map[string]bool, len(selected))
	subtotal := service.BasePrice
	for _, sel := range selected {
		if sel.Option.ServiceID != service.ID {
			return nil, models.NewValidationError("options."+sel.Option.ID, "option does not belong to service %s", service.ID)
		}
		if seen[sel.Option.ID] {
			return nil, models.NewValidationError("options."+sel.Option.ID, "option selected more than once")
		}
		seen[sel.Option.ID] = true

		delta, err := NewOptionPriceRule(sel.Option).Apply(service.BasePrice, sel.Value)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(delta)
		quote.Lines = append(quote.Lines, QuoteLine{
			OptionID: sel.Option.ID,
			Name:     sel.Option.Name,
			Kind:     sel.Option.Kind,
			Value:    sel.Value,
			Delta:    RoundMoney(delta),
		})
	}

	if RoundMoney(subtotal).GreaterThanOrEqual(MaxAmount) {
		return nil, models.NewValidationError("total", "booking total must be below %s", FormatPrice(MaxAmount, ""))
	}

	discountAmount := decimal.Zero
	if d != nil {
		discountAmount = discount.ComputeAmount(subtotal, d)
		quote.DiscountCode = d.Code
	}

	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	quote.Subtotal = RoundMoney(subtotal)
	quote.DiscountAmount = RoundMoney(discountAmount)
	quote.Total = RoundMoney(total)
	return quote, nil
}
