package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/cache"
	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	product := domain.Product{
		SKU:       strings.ToUpper(strings.TrimSpace(req.SKU)),
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.TrimSpace(req.Category),
		UnitType:  defaultString(strings.ToUpper(req.UnitType), domain.UnitPerUnit),
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Stock:     req.Stock,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := requireNonNegative("stock", product.Stock); err != nil {
		return nil, err
	}
	if err := requireQuantityScale("stock", product.Stock); err != nil {
		return nil, err
	}
	if product.UnitType == domain.UnitPerUnit && !product.Stock.IsInteger() {
		return nil, fmt.Errorf("%w: stock of a per-unit product must be a whole number", store.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "PRODUCT", created.ID, nil, created, "")
	s.invalidateReports(ctx, cache.InventoryReportKey)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.UnitType != nil {
		updated.UnitType = strings.ToUpper(strings.TrimSpace(*req.UnitType))
	}
	if req.Price != nil {
		updated.Price = *req.Price
	}
	if req.CostPrice != nil {
		updated.CostPrice = decimal.NewNullDecimal(*req.CostPrice)
	}
	if err := validateProduct(updated); err != nil {
		return nil, err
	}
	if updated.UnitType == domain.UnitPerUnit && !updated.Stock.IsInteger() {
		return nil, fmt.Errorf("%w: stock %s cannot be held per unit", store.ErrValidation, updated.Stock)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "PRODUCT", saved.ID, existing, saved, "")
	s.invalidateReports(ctx, cache.SalesReportPrefix, cache.InventoryReportKey)
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.record(ctx, domain.ActionDelete, "PRODUCT", id, existing, nil, "")
	s.invalidateReports(ctx, cache.SalesReportPrefix, cache.InventoryReportKey)
	return nil
}

func validateProduct(p domain.Product) error {
	if p.SKU == "" || p.Name == "" {
		return fmt.Errorf("%w: sku and name are required", store.ErrValidation)
	}
	if p.UnitType != domain.UnitPerKG && p.UnitType != domain.UnitPerUnit {
		return fmt.Errorf("%w: unit type must be %s or %s", store.ErrValidation, domain.UnitPerKG, domain.UnitPerUnit)
	}
	if err := requireNonNegative("price", p.Price); err != nil {
		return err
	}
	if p.CostPrice.Valid {
		return requireNonNegative("cost price", p.CostPrice.Decimal)
	}
	return nil
}

func (s *Service) ListLivestock(ctx context.Context, filter domain.LivestockFilter) ([]domain.Livestock, error) {
	filter.Type = strings.ToUpper(strings.TrimSpace(filter.Type))
	filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	return s.repo.ListLivestock(ctx, filter)
}

func (s *Service) GetLivestock(ctx context.Context, id string) (*domain.Livestock, error) {
	return s.repo.GetLivestock(ctx, id)
}

func (s *Service) CreateLivestock(ctx context.Context, req domain.LivestockCreateRequest) (*domain.Livestock, error) {
	kind := strings.ToUpper(strings.TrimSpace(req.Type))
	if kind != domain.LivestockCow && kind != domain.LivestockChicken {
		return nil, fmt.Errorf("%w: type must be %s or %s", store.ErrValidation, domain.LivestockCow, domain.LivestockChicken)
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	received, err := parseDate("dateReceived", req.DateReceived)
	if err != nil {
		return nil, err
	}
	for field, value := range map[string]decimal.NullDecimal{"initial weight": req.InitialWeight, "cost price": req.CostPrice} {
		if value.Valid {
			if err := requireNonNegative(field, value.Decimal); err != nil {
				return nil, err
			}
		}
	}

	created, err := s.repo.CreateLivestock(ctx, domain.Livestock{
		Type:            kind,
		BatchID:         strings.TrimSpace(req.BatchID),
		TagID:           strings.TrimSpace(req.TagID),
		Quantity:        req.Quantity,
		InitialQuantity: req.Quantity,
		InitialWeight:   req.InitialWeight,
		CurrentWeight:   req.InitialWeight,
		Status:          domain.LivestockAlive,
		DateReceived:    received,
		FarmLocation:    strings.TrimSpace(req.FarmLocation),
		CostPrice:       req.CostPrice,
		Notes:           strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "LIVESTOCK", created.ID, nil, created, "")
	s.invalidateReports(ctx, cache.InventoryReportKey)
	return created, nil
}

// UpdateLivestock edits descriptive fields. The only status changes allowed
// here retire an animal group as SOLD or DECEASED; slaughter statuses and
// quantity move only through ProcessSlaughter.
func (s *Service) UpdateLivestock(ctx context.Context, id string, req domain.LivestockUpdateRequest) (*domain.Livestock, error) {
	existing, err := s.repo.GetLivestock(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.SlaughterLogs = nil
	if req.BatchID != nil {
		updated.BatchID = strings.TrimSpace(*req.BatchID)
	}
	if req.TagID != nil {
		updated.TagID = strings.TrimSpace(*req.TagID)
	}
	if req.CurrentWeight != nil {
		if err := requireNonNegative("current weight", *req.CurrentWeight); err != nil {
			return nil, err
		}
		updated.CurrentWeight = decimal.NewNullDecimal(*req.CurrentWeight)
	}
	if req.FarmLocation != nil {
		updated.FarmLocation = strings.TrimSpace(*req.FarmLocation)
	}
	if req.CostPrice != nil {
		if err := requireNonNegative("cost price", *req.CostPrice); err != nil {
			return nil, err
		}
		updated.CostPrice = decimal.NewNullDecimal(*req.CostPrice)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.Status != nil {
		next := strings.ToUpper(strings.TrimSpace(*req.Status))
		if next != existing.Status {
			if next != domain.LivestockSold && next != domain.LivestockDeceased {
				return nil, fmt.Errorf("%w: status can only be set to %s or %s", store.ErrValidation, domain.LivestockSold, domain.LivestockDeceased)
			}
			if existing.Status != domain.LivestockAlive && existing.Status != domain.LivestockPartialSlaughtered {
				return nil, fmt.Errorf("%w: livestock is %s", store.ErrInvalidState, existing.Status)
			}
			updated.Status = next
		}
	}

	saved, err := s.repo.UpdateLivestock(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "LIVESTOCK", saved.ID, existing, saved, "")
	s.invalidateReports(ctx, cache.InventoryReportKey)
	return saved, nil
}

func (s *Service) DeleteLivestock(ctx context.Context, id string) error {
	existing, err := s.repo.GetLivestock(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteLivestock(ctx, id); err != nil {
		return err
	}
	s.record(ctx, domain.ActionDelete, "LIVESTOCK", id, existing, nil, "")
	s.invalidateReports(ctx, cache.InventoryReportKey)
	return nil
}

func (s *Service) ListSlaughterLogs(ctx context.Context) ([]domain.SlaughterLog, error) {
	return s.repo.ListSlaughterLogs(ctx)
}

func (s *Service) ProcessSlaughter(ctx context.Context, req domain.SlaughterRequest) (*domain.SlaughterResult, error) {
	result, err := s.processSlaughter(ctx, req)
	s.observe("slaughter", err)
	return result, err
}

func (s *Service) processSlaughter(ctx context.Context, req domain.SlaughterRequest) (*domain.SlaughterResult, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	req.LivestockID = strings.TrimSpace(req.LivestockID)
	if req.LivestockID == "" {
		return nil, fmt.Errorf("%w: livestockId is required", store.ErrValidation)
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	if req.YieldWeight.Valid {
		if err := requireNonNegative("yield weight", req.YieldWeight.Decimal); err != nil {
			return nil, err
		}
	}
	for _, p := range req.ProducedProducts {
		if err := requireNonNegative("produced quantity", p.Quantity); err != nil {
			return nil, err
		}
		if err := requireQuantityScale("produced quantity", p.Quantity); err != nil {
			return nil, err
		}
	}
	req.Notes = strings.TrimSpace(req.Notes)

	result, err := s.repo.ProcessSlaughter(ctx, req, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("applied=%d skipped=%d", len(result.Applied), len(result.Skipped))
	s.record(ctx, domain.ActionCreate, "SLAUGHTER_LOG", result.Log.ID, nil, result, details)
	s.invalidateReports(ctx, cache.InventoryReportKey)
	return result, nil
}
