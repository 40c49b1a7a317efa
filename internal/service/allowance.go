package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/store"
)

var invoiceStatuses = []string{
	domain.InvoiceDraft, domain.InvoiceIssued, domain.InvoiceSubmitted, domain.InvoiceApproved, domain.InvoiceFinalized,
}

// Roles that may see and filter every member's allowance invoices.
var allowanceManagerRoles = []string{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFinance}

func (s *Service) ListAllowanceTypes(ctx context.Context) ([]domain.AllowanceType, error) {
	return s.repo.ListAllowanceTypes(ctx)
}

func (s *Service) CreateAllowanceType(ctx context.Context, req domain.AllowanceTypeRequest) (*domain.AllowanceType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: allowance type name is required", store.ErrValidation)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := s.repo.CreateAllowanceType(ctx, domain.AllowanceType{
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		ApprovalRequired: req.ApprovalRequired,
		Active:           active,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "ALLOWANCE_TYPE", created.ID, nil, created, "")
	return created, nil
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (*domain.InvoiceAllowance, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", store.ErrValidation)
	}
	if req.Month < 1 || req.Month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", store.ErrValidation)
	}
	if req.Year < 2000 || req.Year > 9999 {
		return nil, fmt.Errorf("%w: year is invalid", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one allowance item is required", store.ErrValidation)
	}
	items := make([]domain.InvoiceAllowanceItem, 0, len(req.Items))
	for _, item := range req.Items {
		if strings.TrimSpace(item.AllowanceTypeID) == "" {
			return nil, fmt.Errorf("%w: allowanceTypeId is required", store.ErrValidation)
		}
		if err := requireNonNegative("amount", item.Amount); err != nil {
			return nil, err
		}
		items = append(items, domain.InvoiceAllowanceItem{
			AllowanceTypeID: strings.TrimSpace(item.AllowanceTypeID),
			Amount:          item.Amount,
			Description:     strings.TrimSpace(item.Description),
		})
	}

	created, err := s.repo.CreateInvoice(ctx, domain.InvoiceAllowance{
		UserID:            userID,
		Month:             req.Month,
		Year:              req.Year,
		Status:            domain.InvoiceIssued,
		OriginalInvoiceID: strings.TrimSpace(req.OriginalInvoiceID),
		Items:             items,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, domain.ActionCreate, "INVOICE_ALLOWANCE", created.ID, nil, created, created.InvoiceNumber)
	return created, nil
}

// ListInvoices returns invoices visible to the caller. Managers may filter by
// member; everyone else only ever sees their own.
func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceAllowance, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	if !hasRole(actor.Role, allowanceManagerRoles...) {
		filter.UserID = actor.UserID
	}
	return s.repo.ListInvoices(ctx, filter)
}

func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, req domain.InvoiceStatusRequest) (*domain.InvoiceAllowance, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if !slices.Contains(invoiceStatuses, status) {
		return nil, fmt.Errorf("%w: unknown invoice status %q", store.ErrValidation, req.Status)
	}
	before, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	approverName := actor.Username
	if user, err := s.repo.GetUserByID(ctx, actor.UserID); err == nil {
		approverName = user.Name
	}
	updated, err := s.repo.UpdateInvoiceStatus(ctx, id, domain.InvoiceStatusChange{
		Status:       status,
		ApproverRole: actor.Role,
		ApproverName: approverName,
		At:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s -> %s", before.Status, updated.Status)
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		details += ": " + reason
	}
	s.record(ctx, domain.ActionUpdate, "INVOICE_ALLOWANCE", id, before, updated, details)
	return updated, nil
}
