package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

const productColumns = `id, sku, name, category, unit_type, price, cost_price, stock, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.UnitType, &p.Price, &p.CostPrice, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	search := strings.TrimSpace(filter.Search)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR category = $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR sku ILIKE '%' || $2 || '%')
		ORDER BY name, id
	`, filter.Category, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, sku, name, category, unit_type, price, cost_price, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
		RETURNING `+productColumns,
		product.ID, product.SKU, product.Name, product.Category, product.UnitType, product.Price, product.CostPrice, product.Stock))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %s already exists", store.ErrValidation, product.SKU)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, category = $4, unit_type = $5, price = $6, cost_price = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.SKU, product.Name, product.Category, product.UnitType, product.Price, product.CostPrice))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: sku %s already exists", store.ErrValidation, product.SKU)
		}
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: product has sales history", store.ErrInvalidState)
		}
		return err
	}
	return requireAffected(res)
}

const livestockColumns = `id, type, batch_id, tag_id, quantity, initial_quantity, initial_weight, current_weight,
	status, date_received, farm_location, cost_price, notes, created_at, updated_at`

func scanLivestock(row rowScanner) (domain.Livestock, error) {
	var l domain.Livestock
	err := row.Scan(&l.ID, &l.Type, &l.BatchID, &l.TagID, &l.Quantity, &l.InitialQuantity, &l.InitialWeight, &l.CurrentWeight,
		&l.Status, &l.DateReceived, &l.FarmLocation, &l.CostPrice, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) ListLivestock(ctx context.Context, filter domain.LivestockFilter) ([]domain.Livestock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+livestockColumns+`
		FROM livestock
		WHERE ($1 = '' OR type = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, filter.Type, filter.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Livestock, 0, 32)
	for rows.Next() {
		l, err := scanLivestock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetLivestock(ctx context.Context, id string) (*domain.Livestock, error) {
	l, err := scanLivestock(s.db.QueryRowContext(ctx, `SELECT `+livestockColumns+` FROM livestock WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	logs, err := s.listSlaughterLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	l.SlaughterLogs = logs
	return &l, nil
}

func (s *Store) CreateLivestock(ctx context.Context, livestock domain.Livestock) (*domain.Livestock, error) {
	if livestock.ID == "" {
		livestock.ID = xid.New("lvs")
	}
	l, err := scanLivestock(s.db.QueryRowContext(ctx, `
		INSERT INTO livestock (id, type, batch_id, tag_id, quantity, initial_quantity, initial_weight, current_weight,
			status, date_received, farm_location, cost_price, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
		RETURNING `+livestockColumns,
		livestock.ID, livestock.Type, livestock.BatchID, livestock.TagID, livestock.Quantity, livestock.InitialQuantity,
		livestock.InitialWeight, livestock.CurrentWeight, livestock.Status, livestock.DateReceived, livestock.FarmLocation,
		livestock.CostPrice, livestock.Notes))
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) UpdateLivestock(ctx context.Context, livestock domain.Livestock) (*domain.Livestock, error) {
	l, err := scanLivestock(s.db.QueryRowContext(ctx, `
		UPDATE livestock
		SET batch_id = $2, tag_id = $3, current_weight = $4, farm_location = $5, cost_price = $6, notes = $7,
			status = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+livestockColumns,
		livestock.ID, livestock.BatchID, livestock.TagID, livestock.CurrentWeight, livestock.FarmLocation,
		livestock.CostPrice, livestock.Notes, livestock.Status))
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *Store) DeleteLivestock(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM livestock WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: livestock has slaughter records", store.ErrInvalidState)
		}
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListSlaughterLogs(ctx context.Context) ([]domain.SlaughterLog, error) {
	return s.listSlaughterLogs(ctx, "")
}

func (s *Store) listSlaughterLogs(ctx context.Context, livestockID string) ([]domain.SlaughterLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, livestock_id, quantity, yield_weight, notes, recorded_by, date
		FROM slaughter_logs
		WHERE ($1 = '' OR livestock_id = $1)
		ORDER BY date DESC, id DESC
	`, livestockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.SlaughterLog, 0, 16)
	for rows.Next() {
		var l domain.SlaughterLog
		if err := rows.Scan(&l.ID, &l.LivestockID, &l.Quantity, &l.YieldWeight, &l.Notes, &l.RecordedBy, &l.Date); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) ProcessSlaughter(ctx context.Context, req domain.SlaughterRequest, recordedBy string, at time.Time) (*domain.SlaughterResult, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `SELECT status FROM livestock WHERE id = $1 FOR UPDATE`, req.LivestockID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: livestock %s", store.ErrNotFound, req.LivestockID)
		}
		return nil, err
	}
	switch status {
	case domain.LivestockSlaughtered, domain.LivestockDeceased, domain.LivestockSold:
		return nil, fmt.Errorf("%w: livestock is %s", store.ErrNotAvailable, status)
	}

	remaining, err := applyLivestockDelta(ctx, pgTx, req.LivestockID, -req.Quantity)
	if err != nil {
		return nil, err
	}
	nextStatus := domain.LivestockPartialSlaughtered
	if remaining == 0 {
		nextStatus = domain.LivestockSlaughtered
	}
	l, err := scanLivestock(pgTx.QueryRowContext(ctx, `
		UPDATE livestock SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+livestockColumns,
		req.LivestockID, nextStatus, at))
	if err != nil {
		return nil, err
	}

	entry := domain.SlaughterLog{
		ID:          xid.New("slg"),
		LivestockID: req.LivestockID,
		Quantity:    req.Quantity,
		YieldWeight: req.YieldWeight,
		Notes:       req.Notes,
		RecordedBy:  recordedBy,
		Date:        at,
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO slaughter_logs (id, livestock_id, quantity, yield_weight, notes, recorded_by, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.LivestockID, entry.Quantity, entry.YieldWeight, entry.Notes, entry.RecordedBy, entry.Date); err != nil {
		return nil, err
	}

	result := &domain.SlaughterResult{
		Log:       entry,
		Livestock: l,
		Applied:   []domain.ProducedProduct{},
		Skipped:   []domain.ProducedProduct{},
	}
	for _, produced := range req.ProducedProducts {
		var name, unitType string
		err := pgTx.QueryRowContext(ctx, `
			SELECT name, unit_type FROM products WHERE id = $1 FOR UPDATE
		`, produced.ProductID).Scan(&name, &unitType)
		if errors.Is(err, sql.ErrNoRows) {
			result.Skipped = append(result.Skipped, produced)
			continue
		}
		if err != nil {
			return nil, err
		}
		if unitType == domain.UnitPerUnit && !produced.Quantity.IsInteger() {
			return nil, fmt.Errorf("%w: %s is stocked per unit", store.ErrValidation, name)
		}
		if _, err := applyProductDelta(ctx, pgTx, produced.ProductID, produced.Quantity); err != nil {
			return nil, err
		}
		result.Applied = append(result.Applied, produced)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}
