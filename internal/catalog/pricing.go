package catalog

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// PricingTier is the tuition plan of a contract type
type PricingTier struct {
	Total             decimal.Decimal
	DownPayment       decimal.Decimal
	Installments      int
	InstallmentAmount decimal.Decimal
	Modality          string
}

// Validate checks that the plan adds up: down payment plus all installments
// equals the total
func (p *PricingTier) Validate() error {
	if p.Installments <= 0 {
		return fmt.Errorf("installments must be positive, got %d", p.Installments)
	}
	if p.Total.IsNegative() || p.DownPayment.IsNegative() || p.InstallmentAmount.IsNegative() {
		return fmt.Errorf("amounts must not be negative")
	}
	sum := p.DownPayment.Add(p.InstallmentAmount.Mul(decimal.NewFromInt(int64(p.Installments))))
	if !sum.Equal(p.Total) {
		return fmt.Errorf("down payment %s + %d x %s = %s does not match total %s",
			p.DownPayment.StringFixed(2), p.Installments, p.InstallmentAmount.StringFixed(2),
			sum.StringFixed(2), p.Total.StringFixed(2))
	}
	return nil
}

// Values renders the tier as canonical field values
func (p *PricingTier) Values() map[string]string {
	return map[string]string{
		KeyTotal:             p.Total.StringFixed(2),
		KeyDownPayment:       p.DownPayment.StringFixed(2),
		KeyInstallments:      strconv.Itoa(p.Installments),
		KeyInstallmentAmount: p.InstallmentAmount.StringFixed(2),
		KeyPaymentModality:   p.Modality,
	}
}
