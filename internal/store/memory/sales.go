package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) CreateCheckout(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tx.Items) == 0 {
		return nil, store.ErrEmptyOrder
	}

	pending := map[string]decimal.Decimal{}
	total := decimal.Zero
	items := make([]domain.TransactionItem, 0, len(tx.Items))
	for _, item := range tx.Items {
		product, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		if product.UnitType == domain.UnitPerUnit && !item.Quantity.IsInteger() {
			return nil, fmt.Errorf("%w: %s is sold per unit", store.ErrValidation, product.Name)
		}
		if _, err := s.applyProductDelta(pending, product.ID, item.Quantity.Neg()); err != nil {
			return nil, err
		}
		subtotal := store.LineSubtotal(product.Price, item.Quantity)
		total = total.Add(subtotal)
		items = append(items, domain.TransactionItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
			Subtotal:    subtotal,
		})
	}

	if tx.ID == "" {
		tx.ID = xid.New("trx")
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	tx.Items = items
	tx.TotalAmount = total
	tx.Status = domain.TxStatusCompleted

	s.commitStock(pending, tx.Date)
	s.transactions = append(s.transactions, cloneTransaction(tx))

	created := cloneTransaction(tx)
	return &created, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.ID == id {
			found := cloneTransaction(tx)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if !filter.From.IsZero() && tx.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !tx.Date.Before(filter.To) {
			continue
		}
		out = append(out, cloneTransaction(tx))
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return out, nil
}

func (s *Store) FinancialTotals(_ context.Context) (domain.FinancialTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.FinancialTotals{Revenue: decimal.Zero, Cost: decimal.Zero}
	for _, tx := range s.transactions {
		totals.Revenue = totals.Revenue.Add(tx.TotalAmount)
		for _, item := range tx.Items {
			product, ok := s.products[item.ProductID]
			if !ok || !product.CostPrice.Valid {
				continue
			}
			totals.Cost = totals.Cost.Add(item.Quantity.Mul(product.CostPrice.Decimal))
		}
	}
	return totals, nil
}
