package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
	"agrokoperasi/backend/internal/xid"
)

func (s *Store) CreateCheckout(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if len(tx.Items) == 0 {
		return nil, store.ErrEmptyOrder
	}

	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	total := decimal.Zero
	items := make([]domain.TransactionItem, 0, len(tx.Items))
	for _, item := range tx.Items {
		var name, unitType string
		var price decimal.Decimal
		err := pgTx.QueryRowContext(ctx, `
			SELECT name, unit_type, price FROM products WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&name, &unitType, &price)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
			}
			return nil, err
		}
		if unitType == domain.UnitPerUnit && !item.Quantity.IsInteger() {
			return nil, fmt.Errorf("%w: %s is sold per unit", store.ErrValidation, name)
		}
		if _, err := applyProductDelta(ctx, pgTx, item.ProductID, item.Quantity.Neg()); err != nil {
			return nil, err
		}
		subtotal := store.LineSubtotal(price, item.Quantity)
		total = total.Add(subtotal)
		items = append(items, domain.TransactionItem{
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Price:       price,
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

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, member_id, total_amount, payment_method, status, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tx.ID, tx.UserID, tx.MemberID, tx.TotalAmount, tx.PaymentMethod, tx.Status, tx.Date); err != nil {
		return nil, err
	}
	for _, item := range tx.Items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, product_name, quantity, price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, tx.ID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Subtotal); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, member_id, total_amount, payment_method, status, date
		FROM transactions WHERE id = $1
	`, id).Scan(&tx.ID, &tx.UserID, &tx.MemberID, &tx.TotalAmount, &tx.PaymentMethod, &tx.Status, &tx.Date)
	if err != nil {
		return nil, notFound(err)
	}
	byTx, err := s.transactionItems(ctx, []string{tx.ID})
	if err != nil {
		return nil, err
	}
	tx.Items = byTx[tx.ID]
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, member_id, total_amount, payment_method, status, date
		FROM transactions
		WHERE ($1::timestamptz IS NULL OR date >= $1) AND ($2::timestamptz IS NULL OR date < $2)
		ORDER BY date DESC, id DESC
	`, zeroTimeAsNull(filter.From), zeroTimeAsNull(filter.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.MemberID, &tx.TotalAmount, &tx.PaymentMethod, &tx.Status, &tx.Date); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byTx, err := s.transactionItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		txs[i].Items = byTx[txs[i].ID]
		if txs[i].Items == nil {
			txs[i].Items = []domain.TransactionItem{}
		}
	}
	return txs, nil
}

func (s *Store) transactionItems(ctx context.Context, ids []string) (map[string][]domain.TransactionItem, error) {
	out := make(map[string][]domain.TransactionItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, product_id, product_name, quantity, price, subtotal
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		var item domain.TransactionItem
		if err := rows.Scan(&txID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return nil, err
		}
		out[txID] = append(out[txID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FinancialTotals(ctx context.Context) (domain.FinancialTotals, error) {
	totals := domain.FinancialTotals{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(total_amount), 0) FROM transactions),
			(SELECT COALESCE(SUM(ti.quantity * COALESCE(p.cost_price, 0)), 0)
				FROM transaction_items ti
				LEFT JOIN products p ON p.id = ti.product_id)
	`).Scan(&totals.Revenue, &totals.Cost)
	if err != nil {
		return domain.FinancialTotals{}, err
	}
	return totals, nil
}

func zeroTimeAsNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
