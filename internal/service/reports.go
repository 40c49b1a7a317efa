package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agrokoperasi/backend/internal/cache"
	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/export"
)

const (
	uncategorized = "Uncategorized"
	unassigned    = "Unassigned"
)

// cached serves key from the report cache, falling back to build. Cache errors
// degrade to a rebuild and are only logged.
func cached[T any](ctx context.Context, s *Service, key string, build func() (T, error)) (T, error) {
	var out T
	hit, err := s.reports.Get(ctx, key, &out)
	if err != nil {
		s.log.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit && err == nil {
		return out, nil
	}

	out, err = build()
	if err != nil {
		return out, err
	}
	if err := s.reports.Set(ctx, key, out, s.reportTTL); err != nil {
		s.log.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func (s *Service) SalesReport(ctx context.Context, startDate string, endDate string) (*domain.SalesReport, error) {
	filter, err := transactionFilter(startDate, endDate)
	if err != nil {
		return nil, err
	}
	report, err := cached(ctx, s, cache.SalesReportKey(filter.From, filter.To), func() (domain.SalesReport, error) {
		return s.buildSalesReport(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildSalesReport(ctx context.Context, filter domain.TransactionFilter) (domain.SalesReport, error) {
	txs, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return domain.SalesReport{}, err
	}
	products, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return domain.SalesReport{}, err
	}
	categories := make(map[string]string, len(products))
	for _, p := range products {
		categories[p.ID] = p.Category
	}

	report := domain.SalesReport{
		TotalSales:            decimal.Zero,
		TotalTransactions:     len(txs),
		Transactions:          txs,
		PaymentMethods:        map[string]decimal.Decimal{},
		DailySales:            map[string]decimal.Decimal{},
		ProductCategoryTotals: map[string]decimal.Decimal{},
	}
	for _, tx := range txs {
		report.TotalSales = report.TotalSales.Add(tx.TotalAmount)
		report.PaymentMethods[tx.PaymentMethod] = report.PaymentMethods[tx.PaymentMethod].Add(tx.TotalAmount)
		day := tx.Date.UTC().Format(time.DateOnly)
		report.DailySales[day] = report.DailySales[day].Add(tx.TotalAmount)
		for _, item := range tx.Items {
			category := defaultString(categories[item.ProductID], uncategorized)
			report.ProductCategoryTotals[category] = report.ProductCategoryTotals[category].Add(item.Subtotal)
		}
	}
	return report, nil
}

func (s *Service) InventoryReport(ctx context.Context) (*domain.InventoryReport, error) {
	report, err := cached(ctx, s, cache.InventoryReportKey, func() (domain.InventoryReport, error) {
		return s.buildInventoryReport(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildInventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	products, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return domain.InventoryReport{}, err
	}
	livestock, err := s.repo.ListLivestock(ctx, domain.LivestockFilter{})
	if err != nil {
		return domain.InventoryReport{}, err
	}

	type group struct{ kind, status string }
	rows := make(map[group]*domain.LivestockSummaryRow)
	for _, l := range livestock {
		key := group{l.Type, l.Status}
		row, ok := rows[key]
		if !ok {
			row = &domain.LivestockSummaryRow{Type: l.Type, Status: l.Status}
			rows[key] = row
		}
		row.Count++
		row.Quantity += l.Quantity
	}
	summary := make([]domain.LivestockSummaryRow, 0, len(rows))
	for _, row := range rows {
		summary = append(summary, *row)
	}
	slices.SortFunc(summary, func(a, b domain.LivestockSummaryRow) int {
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return strings.Compare(a.Status, b.Status)
	})

	return domain.InventoryReport{Products: products, LivestockSummary: summary}, nil
}

// AllowanceReport summarises a year's invoices. Drafts are not counted.
func (s *Service) AllowanceReport(ctx context.Context, year int) (*domain.AllowanceReport, error) {
	if year == 0 {
		year = s.now().Year()
	}
	invoices, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{Year: year})
	if err != nil {
		return nil, err
	}

	report := &domain.AllowanceReport{
		Year:         year,
		ByMonth:      map[int]decimal.Decimal{},
		ByBranch:     map[string]decimal.Decimal{},
		ByCategory:   map[string]decimal.Decimal{},
		StatusCounts: map[string]int{},
	}
	for _, inv := range invoices {
		if inv.Status == domain.InvoiceDraft {
			continue
		}
		report.StatusCounts[inv.Status]++
		report.ByMonth[inv.Month] = report.ByMonth[inv.Month].Add(inv.TotalAmount)
		branch := defaultString(inv.Branch, unassigned)
		report.ByBranch[branch] = report.ByBranch[branch].Add(inv.TotalAmount)
		for _, item := range inv.Items {
			category := defaultString(item.AllowanceTypeName, uncategorized)
			report.ByCategory[category] = report.ByCategory[category].Add(item.Amount)
		}
	}
	return report, nil
}

// ExportAllowanceCSV renders every invoice of the year, whatever its status.
func (s *Service) ExportAllowanceCSV(ctx context.Context, year int) (*Export, error) {
	if year == 0 {
		year = s.now().Year()
	}
	invoices, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{Year: year})
	if err != nil {
		return nil, err
	}
	body, err := export.AllowanceCSV(invoices)
	if err != nil {
		return nil, err
	}
	out := &Export{Filename: export.AllowanceFilename(year), Body: body}
	s.archive(ctx, out)
	return out, nil
}
