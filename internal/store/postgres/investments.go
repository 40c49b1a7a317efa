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

const investmentColumns = `id, submitted_by, member_id, amount, type, bank_name, reference_no, date, notes, status,
	rejection_reason, approved_by, approved_at, created_at`

func scanInvestment(row rowScanner) (domain.MemberInvestment, error) {
	var inv domain.MemberInvestment
	var approvedAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.SubmittedBy, &inv.MemberID, &inv.Amount, &inv.Type, &inv.BankName, &inv.ReferenceNo,
		&inv.Date, &inv.Notes, &inv.Status, &inv.RejectionReason, &inv.ApprovedBy, &approvedAt, &inv.CreatedAt)
	inv.ApprovedAt = timePtr(approvedAt)
	return inv, err
}

const summaryColumns = `id, total_amount, start_date, category, active, updated_at`

func scanSummary(row rowScanner) (domain.InvestmentSummary, error) {
	var sum domain.InvestmentSummary
	err := row.Scan(&sum.ID, &sum.TotalAmount, &sum.StartDate, &sum.Category, &sum.Active, &sum.UpdatedAt)
	return sum, err
}

const dividendColumns = `id, summary_id, cycle, percentage, amount, declaration_date, payment_status, active, updated_at`

func scanDividend(row rowScanner) (domain.DividendSetting, error) {
	var d domain.DividendSetting
	var declared sql.NullTime
	err := row.Scan(&d.ID, &d.SummaryID, &d.Cycle, &d.Percentage, &d.Amount, &declared, &d.PaymentStatus, &d.Active, &d.UpdatedAt)
	d.DeclarationDate = timePtr(declared)
	return d, err
}

func (s *Store) CreateMemberInvestment(ctx context.Context, inv domain.MemberInvestment) (*domain.MemberInvestment, error) {
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	created, err := scanInvestment(s.db.QueryRowContext(ctx, `
		INSERT INTO member_investments (id, submitted_by, member_id, amount, type, bank_name, reference_no, date, notes, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING `+investmentColumns,
		inv.ID, inv.SubmittedBy, inv.MemberID, inv.Amount, inv.Type, inv.BankName, inv.ReferenceNo, inv.Date, inv.Notes,
		domain.InvestmentPending, inv.CreatedAt))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetMemberInvestment(ctx context.Context, id string) (*domain.MemberInvestment, error) {
	inv, err := scanInvestment(s.db.QueryRowContext(ctx, `SELECT `+investmentColumns+` FROM member_investments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (s *Store) ListMemberInvestments(ctx context.Context, filter domain.InvestmentFilter) ([]domain.MemberInvestment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+investmentColumns+`
		FROM member_investments
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR submitted_by = $2)
		ORDER BY created_at DESC, id DESC
	`, filter.Status, filter.SubmittedBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MemberInvestment, 0, 32)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func lockPendingInvestment(ctx context.Context, pgTx *sql.Tx, id string) (domain.MemberInvestment, error) {
	inv, err := scanInvestment(pgTx.QueryRowContext(ctx, `
		SELECT `+investmentColumns+` FROM member_investments WHERE id = $1 FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inv, fmt.Errorf("%w: investment %s", store.ErrNotFound, id)
		}
		return inv, err
	}
	if inv.Status != domain.InvestmentPending {
		return inv, fmt.Errorf("%w: investment is %s", store.ErrInvalidState, inv.Status)
	}
	return inv, nil
}

// lockActiveSummary returns the active summary row locked for update, or
// ok=false when none exists.
func lockActiveSummary(ctx context.Context, pgTx *sql.Tx) (domain.InvestmentSummary, bool, error) {
	sum, err := scanSummary(pgTx.QueryRowContext(ctx, `
		SELECT `+summaryColumns+` FROM investment_summaries WHERE active FOR UPDATE
	`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, false, nil
		}
		return sum, false, err
	}
	return sum, true, nil
}

func insertInvestmentHistory(ctx context.Context, pgTx *sql.Tx, h domain.InvestmentHistory) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO investment_history (id, summary_id, previous_amount, new_amount, change_type, edited_by, reason, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, h.ID, h.SummaryID, h.PreviousAmount, h.NewAmount, h.ChangeType, h.EditedBy, h.Reason, h.Timestamp)
	return err
}

func (s *Store) ApproveInvestment(ctx context.Context, id string, approvedBy string, at time.Time) (*domain.ApprovalResult, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	inv, err := lockPendingInvestment(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}

	inv, err = scanInvestment(pgTx.QueryRowContext(ctx, `
		UPDATE member_investments SET status = $2, approved_by = $3, approved_at = $4
		WHERE id = $1
		RETURNING `+investmentColumns,
		id, domain.InvestmentApproved, approvedBy, at))
	if err != nil {
		return nil, err
	}

	summary, ok, err := lockActiveSummary(ctx, pgTx)
	if err != nil {
		return nil, err
	}
	previous := decimal.Zero
	if ok {
		previous = summary.TotalAmount
		summary, err = scanSummary(pgTx.QueryRowContext(ctx, `
			UPDATE investment_summaries SET total_amount = total_amount + $2, updated_at = $3
			WHERE id = $1
			RETURNING `+summaryColumns,
			summary.ID, inv.Amount, at))
	} else {
		summary, err = scanSummary(pgTx.QueryRowContext(ctx, `
			INSERT INTO investment_summaries (id, total_amount, start_date, category, active, updated_at)
			VALUES ($1,$2,$3,$4,true,$3)
			RETURNING `+summaryColumns,
			xid.New("sum"), inv.Amount, at, domain.DefaultSummaryCategory))
	}
	if err != nil {
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO member_investment_history (id, investment_id, member_id, amount, transaction_date, approved_by, approved_at, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, xid.New("mih"), inv.ID, inv.MemberID, inv.Amount, inv.Date, approvedBy, at, domain.InvestmentSourceMember); err != nil {
		return nil, err
	}
	if err := insertInvestmentHistory(ctx, pgTx, domain.InvestmentHistory{
		ID:             xid.New("ivh"),
		SummaryID:      summary.ID,
		PreviousAmount: previous,
		NewAmount:      summary.TotalAmount,
		ChangeType:     domain.ChangeIncrease,
		EditedBy:       approvedBy,
		Reason:         "member investment " + inv.ID + " approved",
		Timestamp:      at,
	}); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &domain.ApprovalResult{Investment: inv, Summary: summary}, nil
}

func (s *Store) RejectInvestment(ctx context.Context, id string, rejectedBy string, reason string, at time.Time) (*domain.MemberInvestment, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if _, err := lockPendingInvestment(ctx, pgTx, id); err != nil {
		return nil, err
	}
	inv, err := scanInvestment(pgTx.QueryRowContext(ctx, `
		UPDATE member_investments SET status = $2, rejection_reason = $3, approved_by = $4, approved_at = $5
		WHERE id = $1
		RETURNING `+investmentColumns,
		id, domain.InvestmentRejected, reason, rejectedBy, at))
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) ListMemberInvestmentHistory(ctx context.Context) ([]domain.MemberInvestmentHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, investment_id, member_id, amount, transaction_date, approved_by, approved_at, source
		FROM member_investment_history
		ORDER BY approved_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.MemberInvestmentHistory, 0, 32)
	for rows.Next() {
		var h domain.MemberInvestmentHistory
		if err := rows.Scan(&h.ID, &h.InvestmentID, &h.MemberID, &h.Amount, &h.TransactionDate, &h.ApprovedBy, &h.ApprovedAt, &h.Source); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetActiveSummary(ctx context.Context) (*domain.InvestmentSummary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM investment_summaries WHERE active`))
	if err != nil {
		return nil, notFound(err)
	}
	return &sum, nil
}

func (s *Store) SaveInvestmentSummary(ctx context.Context, update domain.SummaryUpdate) (*domain.SummaryChange, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, ok, err := lockActiveSummary(ctx, pgTx)
	if err != nil {
		return nil, err
	}

	change := &domain.SummaryChange{}
	previous := decimal.Zero
	var summary domain.InvestmentSummary
	if ok {
		prev := existing
		change.Previous = &prev
		previous = existing.TotalAmount
		summary, err = scanSummary(pgTx.QueryRowContext(ctx, `
			UPDATE investment_summaries
			SET total_amount = $2, start_date = $3, category = $4, active = $5, updated_at = $6
			WHERE id = $1
			RETURNING `+summaryColumns,
			existing.ID, update.TotalAmount, update.StartDate, update.Category, update.Active, update.At))
	} else {
		summary, err = scanSummary(pgTx.QueryRowContext(ctx, `
			INSERT INTO investment_summaries (id, total_amount, start_date, category, active, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING `+summaryColumns,
			xid.New("sum"), update.TotalAmount, update.StartDate, update.Category, update.Active, update.At))
	}
	if err != nil {
		return nil, err
	}

	history := domain.InvestmentHistory{
		ID:             xid.New("ivh"),
		SummaryID:      summary.ID,
		PreviousAmount: previous,
		NewAmount:      update.TotalAmount,
		ChangeType:     store.ChangeTypeFor(previous, update.TotalAmount),
		EditedBy:       update.EditedBy,
		Reason:         update.Reason,
		Timestamp:      update.At,
	}
	if err := insertInvestmentHistory(ctx, pgTx, history); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	change.Summary = summary
	change.History = history
	return change, nil
}

func (s *Store) ListInvestmentHistory(ctx context.Context) ([]domain.InvestmentHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, summary_id, previous_amount, new_amount, change_type, edited_by, reason, at
		FROM investment_history
		ORDER BY at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.InvestmentHistory, 0, 32)
	for rows.Next() {
		var h domain.InvestmentHistory
		if err := rows.Scan(&h.ID, &h.SummaryID, &h.PreviousAmount, &h.NewAmount, &h.ChangeType, &h.EditedBy, &h.Reason, &h.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListDividendSettings(ctx context.Context, summaryID string) ([]domain.DividendSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dividendColumns+` FROM dividend_settings WHERE summary_id = $1 ORDER BY updated_at DESC, id DESC
	`, summaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DividendSetting, 0, 4)
	for rows.Next() {
		d, err := scanDividend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func insertDividendHistory(ctx context.Context, pgTx *sql.Tx, h domain.DividendHistory) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO dividend_history (id, dividend_id, cycle, percentage, amount, declaration_date, status, edited_by, payment_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, h.ID, h.DividendID, h.Cycle, h.Percentage, h.Amount, h.DeclarationDate, h.Status, h.EditedBy, nullTime(h.PaymentDate), h.CreatedAt)
	return err
}

func (s *Store) SaveDividendSetting(ctx context.Context, setting domain.DividendSetting, editedBy string, at time.Time) (*domain.DividendChange, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	exists, err := rowExists(ctx, pgTx, `SELECT EXISTS (SELECT 1 FROM investment_summaries WHERE id = $1)`, setting.SummaryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: investment summary %s", store.ErrNotFound, setting.SummaryID)
	}

	change := &domain.DividendChange{}
	existing, err := scanDividend(pgTx.QueryRowContext(ctx, `
		SELECT `+dividendColumns+` FROM dividend_settings WHERE summary_id = $1 AND cycle = $2 FOR UPDATE
	`, setting.SummaryID, setting.Cycle))
	switch {
	case err == nil:
		change.Previous = &existing
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	saved, err := scanDividend(pgTx.QueryRowContext(ctx, `
		INSERT INTO dividend_settings (id, summary_id, cycle, percentage, amount, declaration_date, payment_status, active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true,$8)
		ON CONFLICT (summary_id, cycle) DO UPDATE
		SET percentage = EXCLUDED.percentage, amount = EXCLUDED.amount, declaration_date = EXCLUDED.declaration_date,
			payment_status = EXCLUDED.payment_status, active = true, updated_at = EXCLUDED.updated_at
		RETURNING `+dividendColumns,
		xid.New("div"), setting.SummaryID, setting.Cycle, setting.Percentage, setting.Amount,
		nullTime(setting.DeclarationDate), setting.PaymentStatus, at))
	if err != nil {
		return nil, err
	}
	if err := insertDividendHistory(ctx, pgTx, store.DividendHistoryFor(saved, editedBy, at)); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	change.Setting = saved
	return change, nil
}

func (s *Store) CancelDividend(ctx context.Context, id string, editedBy string, at time.Time) (*domain.DividendChange, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	existing, err := scanDividend(pgTx.QueryRowContext(ctx, `SELECT `+dividendColumns+` FROM dividend_settings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: dividend %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	if existing.PaymentStatus == domain.DividendCancelled {
		return nil, fmt.Errorf("%w: dividend already cancelled", store.ErrInvalidState)
	}

	saved, err := scanDividend(pgTx.QueryRowContext(ctx, `
		UPDATE dividend_settings SET payment_status = $2, active = false, updated_at = $3
		WHERE id = $1
		RETURNING `+dividendColumns,
		id, domain.DividendCancelled, at))
	if err != nil {
		return nil, err
	}
	if err := insertDividendHistory(ctx, pgTx, store.DividendHistoryFor(saved, editedBy, at)); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &domain.DividendChange{Previous: &existing, Setting: saved}, nil
}

func (s *Store) ListDividendHistory(ctx context.Context) ([]domain.DividendHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dividend_id, cycle, percentage, amount, declaration_date, status, edited_by, payment_date, created_at
		FROM dividend_history
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DividendHistory, 0, 16)
	for rows.Next() {
		var h domain.DividendHistory
		var paid sql.NullTime
		if err := rows.Scan(&h.ID, &h.DividendID, &h.Cycle, &h.Percentage, &h.Amount, &h.DeclarationDate, &h.Status,
			&h.EditedBy, &paid, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.PaymentDate = timePtr(paid)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
