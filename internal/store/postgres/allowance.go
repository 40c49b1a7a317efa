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

func (s *Store) ListAllowanceTypes(ctx context.Context) ([]domain.AllowanceType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, approval_required, active FROM allowance_types ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AllowanceType, 0, 8)
	for rows.Next() {
		var t domain.AllowanceType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.ApprovalRequired, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateAllowanceType(ctx context.Context, allowanceType domain.AllowanceType) (*domain.AllowanceType, error) {
	if allowanceType.ID == "" {
		allowanceType.ID = xid.New("alt")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allowance_types (id, name, description, approval_required, active) VALUES ($1,$2,$3,$4,$5)
	`, allowanceType.ID, allowanceType.Name, allowanceType.Description, allowanceType.ApprovalRequired, allowanceType.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: allowance type %s already exists", store.ErrValidation, allowanceType.Name)
		}
		return nil, err
	}
	return &allowanceType, nil
}

const invoiceColumns = `id, invoice_number, user_id, user_name, branch, position, month, year, total_amount, status,
	original_invoice_id, approver_role, approver_name, approval_timestamp, created_at`

func scanInvoice(row rowScanner) (domain.InvoiceAllowance, error) {
	var inv domain.InvoiceAllowance
	var original sql.NullString
	var approvedAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.UserID, &inv.UserName, &inv.Branch, &inv.Position, &inv.Month, &inv.Year,
		&inv.TotalAmount, &inv.Status, &original, &inv.ApproverRole, &inv.ApproverName, &approvedAt, &inv.CreatedAt)
	inv.OriginalInvoiceID = original.String
	inv.ApprovalTimestamp = timePtr(approvedAt)
	return inv, err
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.InvoiceAllowance) (*domain.InvoiceAllowance, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	user, err := scanUser(pgTx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, invoice.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, invoice.UserID)
		}
		return nil, err
	}
	if invoice.OriginalInvoiceID != "" {
		exists, err := rowExists(ctx, pgTx, `SELECT EXISTS (SELECT 1 FROM allowance_invoices WHERE id = $1)`, invoice.OriginalInvoiceID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: original invoice %s", store.ErrNotFound, invoice.OriginalInvoiceID)
		}
	}

	total := decimal.Zero
	items := make([]domain.InvoiceAllowanceItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		err := pgTx.QueryRowContext(ctx, `SELECT name FROM allowance_types WHERE id = $1`, item.AllowanceTypeID).Scan(&item.AllowanceTypeName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: unknown allowance type %s", store.ErrValidation, item.AllowanceTypeID)
			}
			return nil, err
		}
		total = total.Add(item.Amount)
		items = append(items, item)
	}

	var seq int
	period := fmt.Sprintf("%04d%02d", invoice.Year, invoice.Month)
	if err := pgTx.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (period, last_seq) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET last_seq = invoice_sequences.last_seq + 1
		RETURNING last_seq
	`, period).Scan(&seq); err != nil {
		return nil, err
	}

	if invoice.ID == "" {
		invoice.ID = xid.New("ina")
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	invoice.InvoiceNumber = store.InvoiceNumber(invoice.Year, invoice.Month, seq)
	invoice.UserName = user.Name
	invoice.Branch = user.Branch
	invoice.Position = user.Position
	invoice.Items = items
	invoice.TotalAmount = total

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO allowance_invoices (id, invoice_number, user_id, user_name, branch, position, month, year, total_amount,
			status, original_invoice_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, invoice.ID, invoice.InvoiceNumber, invoice.UserID, invoice.UserName, invoice.Branch, invoice.Position, invoice.Month,
		invoice.Year, invoice.TotalAmount, invoice.Status, nullIfEmpty(invoice.OriginalInvoiceID), invoice.CreatedAt); err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO allowance_invoice_items (invoice_id, allowance_type_id, allowance_type_name, amount, description)
			VALUES ($1,$2,$3,$4,$5)
		`, invoice.ID, item.AllowanceTypeID, item.AllowanceTypeName, item.Amount, item.Description); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.InvoiceAllowance, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM allowance_invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	items, err := invoiceItems(ctx, s.db, []string{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.Items = itemsOrEmpty(items[inv.ID])
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceAllowance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM allowance_invoices
		WHERE ($1 = '' OR user_id = $1) AND ($2 = 0 OR month = $2) AND ($3 = 0 OR year = $3)
		ORDER BY year DESC, month DESC, created_at DESC, id DESC
	`, filter.UserID, filter.Month, filter.Year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.InvoiceAllowance, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := invoiceItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = itemsOrEmpty(items[out[i].ID])
	}
	return out, nil
}

func (s *Store) UpdateInvoiceStatus(ctx context.Context, id string, change domain.InvoiceStatusChange) (*domain.InvoiceAllowance, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	if err := pgTx.QueryRowContext(ctx, `SELECT status FROM allowance_invoices WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.InvoiceFinalized {
		return nil, fmt.Errorf("%w: invoice is finalized", store.ErrInvalidState)
	}

	stamp := change.Status == domain.InvoiceApproved || change.Status == domain.InvoiceFinalized
	inv, err := scanInvoice(pgTx.QueryRowContext(ctx, `
		UPDATE allowance_invoices
		SET status = $2,
			approver_role = CASE WHEN $3 THEN $4 ELSE approver_role END,
			approver_name = CASE WHEN $3 THEN $5 ELSE approver_name END,
			approval_timestamp = CASE WHEN $3 THEN $6 ELSE approval_timestamp END
		WHERE id = $1
		RETURNING `+invoiceColumns,
		id, change.Status, stamp, change.ApproverRole, change.ApproverName, change.At))
	if err != nil {
		return nil, err
	}
	items, err := invoiceItems(ctx, pgTx, []string{id})
	if err != nil {
		return nil, err
	}
	inv.Items = itemsOrEmpty(items[id])

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func invoiceItems(ctx context.Context, q queryer, ids []string) (map[string][]domain.InvoiceAllowanceItem, error) {
	out := make(map[string][]domain.InvoiceAllowanceItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT invoice_id, allowance_type_id, allowance_type_name, amount, description
		FROM allowance_invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID string
		var item domain.InvoiceAllowanceItem
		if err := rows.Scan(&invoiceID, &item.AllowanceTypeID, &item.AllowanceTypeName, &item.Amount, &item.Description); err != nil {
			return nil, err
		}
		out[invoiceID] = append(out[invoiceID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func itemsOrEmpty(items []domain.InvoiceAllowanceItem) []domain.InvoiceAllowanceItem {
	if items == nil {
		return []domain.InvoiceAllowanceItem{}
	}
	return items
}
