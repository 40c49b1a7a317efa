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

func (s *Store) CreateMemberInvestment(_ context.Context, inv domain.MemberInvestment) (*domain.MemberInvestment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.Status = domain.InvestmentPending
	inv.ApprovedBy = ""
	inv.ApprovedAt = nil
	s.memberInvestments[inv.ID] = inv
	created := cloneInvestment(inv)
	return &created, nil
}

func (s *Store) GetMemberInvestment(_ context.Context, id string) (*domain.MemberInvestment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.memberInvestments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneInvestment(inv)
	return &found, nil
}

func (s *Store) ListMemberInvestments(_ context.Context, filter domain.InvestmentFilter) ([]domain.MemberInvestment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MemberInvestment, 0, len(s.memberInvestments))
	for _, inv := range s.memberInvestments {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.SubmittedBy != "" && inv.SubmittedBy != filter.SubmittedBy {
			continue
		}
		out = append(out, cloneInvestment(inv))
	}
	slices.SortFunc(out, func(a, b domain.MemberInvestment) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out, nil
}

func (s *Store) ApproveInvestment(_ context.Context, id string, approvedBy string, at time.Time) (*domain.ApprovalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.memberInvestments[id]
	if !ok {
		return nil, fmt.Errorf("%w: investment %s", store.ErrNotFound, id)
	}
	if inv.Status != domain.InvestmentPending {
		return nil, fmt.Errorf("%w: investment is %s", store.ErrInvalidState, inv.Status)
	}

	summary, ok := s.activeSummaryLocked()
	if !ok {
		summary = domain.InvestmentSummary{
			ID:          xid.New("sum"),
			TotalAmount: decimal.Zero,
			StartDate:   at,
			Category:    domain.DefaultSummaryCategory,
			Active:      true,
		}
	}
	previous := summary.TotalAmount
	summary.TotalAmount = previous.Add(inv.Amount)
	summary.UpdatedAt = at
	s.summaries[summary.ID] = summary

	approvedAt := at
	inv.Status = domain.InvestmentApproved
	inv.ApprovedBy = approvedBy
	inv.ApprovedAt = &approvedAt
	s.memberInvestments[inv.ID] = inv

	s.memberHistory = append(s.memberHistory, domain.MemberInvestmentHistory{
		ID:              xid.New("mih"),
		InvestmentID:    inv.ID,
		MemberID:        inv.MemberID,
		Amount:          inv.Amount,
		TransactionDate: inv.Date,
		ApprovedBy:      approvedBy,
		ApprovedAt:      at,
		Source:          domain.InvestmentSourceMember,
	})
	s.summaryHistory = append(s.summaryHistory, domain.InvestmentHistory{
		ID:             xid.New("ivh"),
		SummaryID:      summary.ID,
		PreviousAmount: previous,
		NewAmount:      summary.TotalAmount,
		ChangeType:     domain.ChangeIncrease,
		EditedBy:       approvedBy,
		Reason:         "member investment " + inv.ID + " approved",
		Timestamp:      at,
	})

	return &domain.ApprovalResult{Investment: cloneInvestment(inv), Summary: summary}, nil
}

func (s *Store) RejectInvestment(_ context.Context, id string, rejectedBy string, reason string, at time.Time) (*domain.MemberInvestment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.memberInvestments[id]
	if !ok {
		return nil, fmt.Errorf("%w: investment %s", store.ErrNotFound, id)
	}
	if inv.Status != domain.InvestmentPending {
		return nil, fmt.Errorf("%w: investment is %s", store.ErrInvalidState, inv.Status)
	}
	rejectedAt := at
	inv.Status = domain.InvestmentRejected
	inv.RejectionReason = reason
	inv.ApprovedBy = rejectedBy
	inv.ApprovedAt = &rejectedAt
	s.memberInvestments[inv.ID] = inv
	updated := cloneInvestment(inv)
	return &updated, nil
}

func (s *Store) ListMemberInvestmentHistory(_ context.Context) ([]domain.MemberInvestmentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.MemberInvestmentHistory(nil), s.memberHistory...)
	slices.SortFunc(out, func(a, b domain.MemberInvestmentHistory) int {
		return newestFirst(a.ApprovedAt, a.ID, b.ApprovedAt, b.ID)
	})
	return out, nil
}

func (s *Store) activeSummaryLocked() (domain.InvestmentSummary, bool) {
	for _, summary := range s.summaries {
		if summary.Active {
			return summary, true
		}
	}
	return domain.InvestmentSummary{}, false
}

func (s *Store) GetActiveSummary(_ context.Context) (*domain.InvestmentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.activeSummaryLocked()
	if !ok {
		return nil, store.ErrNotFound
	}
	return &summary, nil
}

func (s *Store) SaveInvestmentSummary(_ context.Context, update domain.SummaryUpdate) (*domain.SummaryChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	change := &domain.SummaryChange{}
	summary, ok := s.activeSummaryLocked()
	previousAmount := decimal.Zero
	if ok {
		prev := summary
		change.Previous = &prev
		previousAmount = summary.TotalAmount
	} else {
		summary = domain.InvestmentSummary{ID: xid.New("sum")}
	}

	summary.TotalAmount = update.TotalAmount
	summary.StartDate = update.StartDate
	summary.Category = update.Category
	summary.Active = update.Active
	summary.UpdatedAt = update.At
	s.summaries[summary.ID] = summary

	history := domain.InvestmentHistory{
		ID:             xid.New("ivh"),
		SummaryID:      summary.ID,
		PreviousAmount: previousAmount,
		NewAmount:      update.TotalAmount,
		ChangeType:     store.ChangeTypeFor(previousAmount, update.TotalAmount),
		EditedBy:       update.EditedBy,
		Reason:         update.Reason,
		Timestamp:      update.At,
	}
	s.summaryHistory = append(s.summaryHistory, history)

	change.Summary = summary
	change.History = history
	return change, nil
}

func (s *Store) ListInvestmentHistory(_ context.Context) ([]domain.InvestmentHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.InvestmentHistory(nil), s.summaryHistory...)
	slices.SortFunc(out, func(a, b domain.InvestmentHistory) int {
		return newestFirst(a.Timestamp, a.ID, b.Timestamp, b.ID)
	})
	return out, nil
}

func (s *Store) ListDividendSettings(_ context.Context, summaryID string) ([]domain.DividendSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DividendSetting, 0)
	for _, d := range s.dividends {
		if d.SummaryID == summaryID {
			out = append(out, cloneDividend(d))
		}
	}
	slices.SortFunc(out, func(a, b domain.DividendSetting) int {
		return newestFirst(a.UpdatedAt, a.ID, b.UpdatedAt, b.ID)
	})
	return out, nil
}

func (s *Store) SaveDividendSetting(_ context.Context, setting domain.DividendSetting, editedBy string, at time.Time) (*domain.DividendChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.summaries[setting.SummaryID]; !ok {
		return nil, fmt.Errorf("%w: investment summary %s", store.ErrNotFound, setting.SummaryID)
	}

	change := &domain.DividendChange{}
	setting.ID = xid.New("div")
	for _, existing := range s.dividends {
		if existing.SummaryID == setting.SummaryID && existing.Cycle == setting.Cycle {
			prev := cloneDividend(existing)
			change.Previous = &prev
			setting.ID = existing.ID
			break
		}
	}
	setting.Active = true
	setting.UpdatedAt = at
	s.dividends[setting.ID] = setting
	s.dividendHistory = append(s.dividendHistory, store.DividendHistoryFor(setting, editedBy, at))

	change.Setting = cloneDividend(setting)
	return change, nil
}

func (s *Store) CancelDividend(_ context.Context, id string, editedBy string, at time.Time) (*domain.DividendChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setting, ok := s.dividends[id]
	if !ok {
		return nil, fmt.Errorf("%w: dividend %s", store.ErrNotFound, id)
	}
	if setting.PaymentStatus == domain.DividendCancelled {
		return nil, fmt.Errorf("%w: dividend already cancelled", store.ErrInvalidState)
	}
	prev := cloneDividend(setting)
	setting.PaymentStatus = domain.DividendCancelled
	setting.Active = false
	setting.UpdatedAt = at
	s.dividends[id] = setting
	s.dividendHistory = append(s.dividendHistory, store.DividendHistoryFor(setting, editedBy, at))

	return &domain.DividendChange{Previous: &prev, Setting: cloneDividend(setting)}, nil
}

func (s *Store) ListDividendHistory(_ context.Context) ([]domain.DividendHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.DividendHistory(nil), s.dividendHistory...)
	slices.SortFunc(out, func(a, b domain.DividendHistory) int {
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out, nil
}
