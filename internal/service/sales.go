package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrokoperasi/backend/internal/cache"
	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentQR, domain.PaymentTransfer:
		return true
	default:
		return false
	}
}

// Checkout sells the requested lines in one ledger transaction. Prices are
// snapshotted at sale time and stock is decremented line by line.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Transaction, error) {
	tx, err := s.checkout(ctx, req)
	s.observe("checkout", err)
	return tx, err
}

func (s *Service) checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.Transaction, error) {
	if len(req.Items) == 0 {
		return nil, store.ErrEmptyOrder
	}
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if !isSupportedPaymentMethod(method) {
		return nil, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, req.PaymentMethod)
	}
	items := make([]domain.TransactionItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: productId is required", store.ErrValidation)
		}
		if err := requirePositive("quantity", item.Quantity); err != nil {
			return nil, err
		}
		if err := requireQuantityScale("quantity", item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, domain.TransactionItem{ProductID: productID, Quantity: item.Quantity})
	}

	tx, err := s.repo.CreateCheckout(ctx, domain.Transaction{
		UserID:        actor.UserID,
		MemberID:      strings.TrimSpace(req.MemberID),
		PaymentMethod: method,
		Date:          s.now(),
		Items:         items,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.ActionCreate, "TRANSACTION", tx.ID, nil, tx, "")
	s.invalidateReports(ctx, cache.SalesReportPrefix, cache.InventoryReportKey)
	return tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, startDate string, endDate string) ([]domain.Transaction, error) {
	filter, err := transactionFilter(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, filter)
}

// transactionFilter turns optional calendar bounds into a half-open range.
// A date-only end bound includes the whole day.
func transactionFilter(startDate string, endDate string) (domain.TransactionFilter, error) {
	var filter domain.TransactionFilter
	if strings.TrimSpace(startDate) != "" {
		from, err := parseDate("startDate", startDate)
		if err != nil {
			return filter, err
		}
		filter.From = from
	}
	if strings.TrimSpace(endDate) != "" {
		to, err := parseDate("endDate", endDate)
		if err != nil {
			return filter, err
		}
		if _, dateOnly := time.Parse(time.DateOnly, strings.TrimSpace(endDate)); dateOnly == nil {
			to = to.Add(24 * time.Hour)
		}
		filter.To = to
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return filter, fmt.Errorf("%w: endDate must not be before startDate", store.ErrValidation)
	}
	return filter, nil
}
