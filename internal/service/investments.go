package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/finance"
	"agrokoperasi/backend/internal/store"
)

const defaultInvestmentType = "CASH"

// SubmitInvestment records a member contribution awaiting approval.
func (s *Service) SubmitInvestment(ctx context.Context, req domain.MemberInvestmentRequest) (*domain.MemberInvestment, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateMemberInvestment(ctx, domain.MemberInvestment{
		SubmittedBy: actor.UserID,
		MemberID:    defaultString(req.MemberID, actor.UserID),
		Amount:      req.Amount,
		Type:        defaultString(strings.ToUpper(req.Type), defaultInvestmentType),
		BankName:    strings.TrimSpace(req.BankName),
		ReferenceNo: strings.TrimSpace(req.ReferenceNo),
		Date:        date,
		Notes:       strings.TrimSpace(req.Notes),
		Status:      domain.InvestmentPending,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "MEMBER_INVESTMENT", created.ID, nil, created, "")
	return created, nil
}

func (s *Service) PendingInvestments(ctx context.Context) ([]domain.MemberInvestment, error) {
	return s.repo.ListMemberInvestments(ctx, domain.InvestmentFilter{Status: domain.InvestmentPending})
}

func (s *Service) MyInvestments(ctx context.Context) ([]domain.MemberInvestment, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMemberInvestments(ctx, domain.InvestmentFilter{SubmittedBy: actor.UserID})
}

func (s *Service) MemberInvestmentHistory(ctx context.Context) ([]domain.MemberInvestmentHistory, error) {
	return s.repo.ListMemberInvestmentHistory(ctx)
}

// IndividualInvestments groups approved contributions per member, largest
// total first.
func (s *Service) IndividualInvestments(ctx context.Context) ([]domain.IndividualInvestment, error) {
	history, err := s.repo.ListMemberInvestmentHistory(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	byMember := make(map[string]*domain.IndividualInvestment)
	for _, h := range history {
		entry, ok := byMember[h.MemberID]
		if !ok {
			entry = &domain.IndividualInvestment{
				MemberID:                h.MemberID,
				MemberName:              defaultString(names[h.MemberID], "Unknown"),
				TotalApprovedInvestment: decimal.Zero,
			}
			byMember[h.MemberID] = entry
		}
		entry.TotalApprovedInvestment = entry.TotalApprovedInvestment.Add(h.Amount)
		entry.InvestmentCount++
		if entry.LastInvestmentDate == nil || h.ApprovedAt.After(*entry.LastInvestmentDate) {
			at := h.ApprovedAt
			entry.LastInvestmentDate = &at
		}
	}

	out := make([]domain.IndividualInvestment, 0, len(byMember))
	for _, entry := range byMember {
		out = append(out, *entry)
	}
	slices.SortFunc(out, func(a, b domain.IndividualInvestment) int {
		if c := b.TotalApprovedInvestment.Cmp(a.TotalApprovedInvestment); c != 0 {
			return c
		}
		return strings.Compare(a.MemberID, b.MemberID)
	})
	return out, nil
}

// ApproveInvestment moves a PENDING contribution into the active summary.
func (s *Service) ApproveInvestment(ctx context.Context, id string) (*domain.ApprovalResult, error) {
	result, err := s.approveInvestment(ctx, id)
	s.observe("investment_approval", err)
	return result, err
}

func (s *Service) approveInvestment(ctx context.Context, id string) (*domain.ApprovalResult, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	before, err := s.repo.GetMemberInvestment(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.repo.ApproveInvestment(ctx, id, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "MEMBER_INVESTMENT", id, before, result.Investment, "approved")
	return result, nil
}

func (s *Service) RejectInvestment(ctx context.Context, id string, req domain.RejectRequest) (*domain.MemberInvestment, error) {
	inv, err := s.rejectInvestment(ctx, id, req)
	s.observe("investment_rejection", err)
	return inv, err
}

func (s *Service) rejectInvestment(ctx context.Context, id string, req domain.RejectRequest) (*domain.MemberInvestment, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", store.ErrValidation)
	}
	before, err := s.repo.GetMemberInvestment(ctx, id)
	if err != nil {
		return nil, err
	}
	rejected, err := s.repo.RejectInvestment(ctx, id, actor.UserID, reason, s.now())
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "MEMBER_INVESTMENT", id, before, rejected, reason)
	return rejected, nil
}

// InvestmentSummary returns the active summary, or nil when none exists yet.
func (s *Service) InvestmentSummary(ctx context.Context) (*domain.InvestmentSummary, error) {
	summary, err := s.repo.GetActiveSummary(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return summary, err
}

func (s *Service) SaveInvestmentSummary(ctx context.Context, req domain.InvestmentSummaryRequest) (*domain.SummaryChange, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to edit the investment summary", store.ErrValidation)
	}
	if err := requireNonNegative("totalAmount", req.TotalAmount); err != nil {
		return nil, err
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	change, err := s.repo.SaveInvestmentSummary(ctx, domain.SummaryUpdate{
		TotalAmount: req.TotalAmount,
		StartDate:   start,
		Category:    defaultString(strings.ToUpper(req.Category), domain.DefaultSummaryCategory),
		Active:      active,
		Reason:      reason,
		EditedBy:    actor.UserID,
		At:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "INVESTMENT_SUMMARY", change.Summary.ID, change.Previous, change.Summary, reason)
	return change, nil
}

func (s *Service) InvestmentHistory(ctx context.Context) ([]domain.InvestmentHistory, error) {
	return s.repo.ListInvestmentHistory(ctx)
}

// Dividends lists the settings of the active summary.
func (s *Service) Dividends(ctx context.Context) ([]domain.DividendSetting, error) {
	summary, err := s.repo.GetActiveSummary(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return []domain.DividendSetting{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.ListDividendSettings(ctx, summary.ID)
}

// SaveDividend declares or re-declares the dividend for a cycle. The amount is
// fixed from the profit at declaration time.
func (s *Service) SaveDividend(ctx context.Context, req domain.DividendRequest) (*domain.DividendChange, error) {
	change, err := s.saveDividend(ctx, req)
	s.observe("dividend", err)
	return change, err
}

func (s *Service) saveDividend(ctx context.Context, req domain.DividendRequest) (*domain.DividendChange, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	cycle := strings.ToUpper(strings.TrimSpace(req.Cycle))
	if !slices.Contains([]string{domain.CycleQuarterly, domain.CycleHalfYear, domain.CycleYearly}, cycle) {
		return nil, fmt.Errorf("%w: cycle must be %s, %s or %s", store.ErrValidation, domain.CycleQuarterly, domain.CycleHalfYear, domain.CycleYearly)
	}
	status := defaultString(strings.ToUpper(req.PaymentStatus), domain.DividendDeclared)
	if status != domain.DividendDeclared && status != domain.DividendPaid {
		return nil, fmt.Errorf("%w: payment status must be %s or %s", store.ErrValidation, domain.DividendDeclared, domain.DividendPaid)
	}
	declared, err := parseOptionalDate("declarationDate", req.DeclarationDate)
	if err != nil {
		return nil, err
	}

	summary, err := s.repo.GetActiveSummary(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no active investment summary", store.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.FinancialTotals(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := finance.FromTotals(totals).DividendAmount(req.Percentage)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if declared == nil {
		declared = &now
	}
	change, err := s.repo.SaveDividendSetting(ctx, domain.DividendSetting{
		SummaryID:       summary.ID,
		Cycle:           cycle,
		Percentage:      req.Percentage,
		Amount:          amount,
		DeclarationDate: declared,
		PaymentStatus:   status,
	}, actor.UserID, now)
	if err != nil {
		return nil, err
	}

	action := domain.ActionCreate
	if change.Previous != nil {
		action = domain.ActionUpdate
	}
	s.record(ctx, action, "DIVIDEND_SETTING", change.Setting.ID, change.Previous, change.Setting, "")
	return change, nil
}

func (s *Service) CancelDividend(ctx context.Context, id string) (*domain.DividendChange, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	change, err := s.repo.CancelDividend(ctx, id, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionUpdate, "DIVIDEND_SETTING", id, change.Previous, change.Setting, "cancelled")
	return change, nil
}

func (s *Service) DividendHistory(ctx context.Context) ([]domain.DividendHistory, error) {
	return s.repo.ListDividendHistory(ctx)
}

// ROI recomputes the return on the active summary from live totals.
func (s *Service) ROI(ctx context.Context) (domain.ROIReport, error) {
	invested := decimal.Zero
	summary, err := s.repo.GetActiveSummary(ctx)
	switch {
	case err == nil:
		invested = summary.TotalAmount
	case !errors.Is(err, store.ErrNotFound):
		return domain.ROIReport{}, err
	}
	totals, err := s.repo.FinancialTotals(ctx)
	if err != nil {
		return domain.ROIReport{}, err
	}
	return finance.FromTotals(totals).ROI(invested), nil
}
