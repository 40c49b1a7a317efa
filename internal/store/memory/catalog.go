package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := cmpString(a.Name, b.Name); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skuTakenLocked(product.SKU, "") {
		return nil, fmt.Errorf("%w: sku %s already exists", store.ErrValidation, product.SKU)
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.skuTakenLocked(product.SKU, product.ID) {
		return nil, fmt.Errorf("%w: sku %s already exists", store.ErrValidation, product.SKU)
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, tx := range s.transactions {
		for _, item := range tx.Items {
			if item.ProductID == id {
				return fmt.Errorf("%w: product has sales history", store.ErrInvalidState)
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) skuTakenLocked(sku string, exceptID string) bool {
	for id, p := range s.products {
		if id != exceptID && strings.EqualFold(p.SKU, sku) {
			return true
		}
	}
	return false
}

// applyProductDelta stages a stock change in pending without touching the
// product map, so a failing line leaves the store unchanged.
func (s *Store) applyProductDelta(pending map[string]decimal.Decimal, productID string, delta decimal.Decimal) (decimal.Decimal, error) {
	current, staged := pending[productID]
	if !staged {
		product, ok := s.products[productID]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		current = product.Stock
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: product %s has %s", store.ErrInsufficientStock, productID, current)
	}
	pending[productID] = next
	return next, nil
}

func (s *Store) commitStock(pending map[string]decimal.Decimal, at time.Time) {
	for id, stock := range pending {
		product := s.products[id]
		product.Stock = stock
		product.UpdatedAt = at
		s.products[id] = product
	}
}

func applyLivestockDelta(current int, delta int, livestockID string) (int, error) {
	next := current + delta
	if next < 0 {
		return 0, fmt.Errorf("%w: livestock %s has %d", store.ErrInsufficientQuantity, livestockID, current)
	}
	return next, nil
}

func (s *Store) ListLivestock(_ context.Context, filter domain.LivestockFilter) ([]domain.Livestock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Livestock, 0, len(s.livestock))
	for _, l := range s.livestock {
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Livestock) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out, nil
}

func (s *Store) GetLivestock(_ context.Context, id string) (*domain.Livestock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.livestock[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	l.SlaughterLogs = s.logsForLocked(id)
	return &l, nil
}

func (s *Store) logsForLocked(livestockID string) []domain.SlaughterLog {
	logs := make([]domain.SlaughterLog, 0)
	for i := len(s.slaughterLogs) - 1; i >= 0; i-- {
		if s.slaughterLogs[i].LivestockID == livestockID {
			logs = append(logs, s.slaughterLogs[i])
		}
	}
	return logs
}

func (s *Store) CreateLivestock(_ context.Context, livestock domain.Livestock) (*domain.Livestock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if livestock.ID == "" {
		livestock.ID = xid.New("lvs")
	}
	now := time.Now().UTC()
	livestock.CreatedAt = now
	livestock.UpdatedAt = now
	livestock.SlaughterLogs = nil
	s.livestock[livestock.ID] = livestock
	created := livestock
	return &created, nil
}

func (s *Store) UpdateLivestock(_ context.Context, livestock domain.Livestock) (*domain.Livestock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.livestock[livestock.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	livestock.Type = existing.Type
	livestock.Quantity = existing.Quantity
	livestock.InitialQuantity = existing.InitialQuantity
	livestock.CreatedAt = existing.CreatedAt
	livestock.UpdatedAt = time.Now().UTC()
	livestock.SlaughterLogs = nil
	s.livestock[livestock.ID] = livestock
	updated := livestock
	return &updated, nil
}

func (s *Store) DeleteLivestock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.livestock[id]; !ok {
		return store.ErrNotFound
	}
	for _, log := range s.slaughterLogs {
		if log.LivestockID == id {
			return fmt.Errorf("%w: livestock has slaughter records", store.ErrInvalidState)
		}
	}
	delete(s.livestock, id)
	return nil
}

func (s *Store) ListSlaughterLogs(_ context.Context) ([]domain.SlaughterLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.SlaughterLog(nil), s.slaughterLogs...)
	slices.SortFunc(out, func(a, b domain.SlaughterLog) int {
		return newestFirst(a.Date, a.ID, b.Date, b.ID)
	})
	return out, nil
}

func (s *Store) ProcessSlaughter(_ context.Context, req domain.SlaughterRequest, recordedBy string, at time.Time) (*domain.SlaughterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.livestock[req.LivestockID]
	if !ok {
		return nil, fmt.Errorf("%w: livestock %s", store.ErrNotFound, req.LivestockID)
	}
	switch l.Status {
	case domain.LivestockSlaughtered, domain.LivestockDeceased, domain.LivestockSold:
		return nil, fmt.Errorf("%w: livestock is %s", store.ErrNotAvailable, l.Status)
	}
	remaining, err := applyLivestockDelta(l.Quantity, -req.Quantity, l.ID)
	if err != nil {
		return nil, err
	}

	pending := map[string]decimal.Decimal{}
	result := &domain.SlaughterResult{
		Applied: []domain.ProducedProduct{},
		Skipped: []domain.ProducedProduct{},
	}
	for _, produced := range req.ProducedProducts {
		product, exists := s.products[produced.ProductID]
		if !exists {
			result.Skipped = append(result.Skipped, produced)
			continue
		}
		if product.UnitType == domain.UnitPerUnit && !produced.Quantity.IsInteger() {
			return nil, fmt.Errorf("%w: %s is stocked per unit", store.ErrValidation, product.Name)
		}
		if _, err := s.applyProductDelta(pending, produced.ProductID, produced.Quantity); err != nil {
			return nil, err
		}
		result.Applied = append(result.Applied, produced)
	}

	entry := domain.SlaughterLog{
		ID:          xid.New("slg"),
		LivestockID: l.ID,
		Quantity:    req.Quantity,
		YieldWeight: req.YieldWeight,
		Notes:       req.Notes,
		RecordedBy:  recordedBy,
		Date:        at,
	}
	s.slaughterLogs = append(s.slaughterLogs, entry)

	l.Quantity = remaining
	if remaining == 0 {
		l.Status = domain.LivestockSlaughtered
	} else {
		l.Status = domain.LivestockPartialSlaughtered
	}
	l.UpdatedAt = at
	s.livestock[l.ID] = l
	s.commitStock(pending, at)

	result.Log = entry
	result.Livestock = l
	return result, nil
}
