// Package finance derives profit, ROI and dividend figures from ledger totals.
// Every figure is computed on demand; nothing here caches.
package finance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

var hundred = decimal.NewFromInt(100)

type Snapshot struct {
	Revenue decimal.Decimal
	Cost    decimal.Decimal
}

func FromTotals(totals domain.FinancialTotals) Snapshot {
	return Snapshot{Revenue: totals.Revenue, Cost: totals.Cost}
}

func (s Snapshot) NetProfit() decimal.Decimal {
	return s.Revenue.Sub(s.Cost)
}

// ROIPercent is zero when nothing has been invested.
func (s Snapshot) ROIPercent(totalInvestment decimal.Decimal) decimal.Decimal {
	if !totalInvestment.IsPositive() {
		return decimal.Zero
	}
	return s.NetProfit().Div(totalInvestment).Mul(hundred).Round(2)
}

// DividendAmount is the share of net profit paid out at pct percent. A
// negative profit pays nothing, and a payout can never exceed the profit.
// Amounts are floored to the cent.
func (s Snapshot) DividendAmount(pct decimal.Decimal) (decimal.Decimal, error) {
	if pct.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: dividend percentage must not be negative", store.ErrValidation)
	}
	profit := s.NetProfit()
	amount := decimal.Max(decimal.Zero, profit.Mul(pct).Div(hundred)).RoundFloor(2)
	if amount.GreaterThan(profit) {
		return decimal.Zero, fmt.Errorf("%w: dividend %s exceeds net profit %s", store.ErrValidation, amount, profit)
	}
	return amount, nil
}

func (s Snapshot) ROI(totalInvestment decimal.Decimal) domain.ROIReport {
	return domain.ROIReport{
		TotalInvestment: totalInvestment,
		TotalRevenue:    s.Revenue,
		TotalCost:       s.Cost,
		NetProfit:       s.NetProfit(),
		ROIPercent:      s.ROIPercent(totalInvestment),
	}
}
