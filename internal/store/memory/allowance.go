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

func (s *Store) ListAllowanceTypes(_ context.Context) ([]domain.AllowanceType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AllowanceType, 0, len(s.allowanceTypes))
	for _, t := range s.allowanceTypes {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.AllowanceType) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateAllowanceType(_ context.Context, allowanceType domain.AllowanceType) (*domain.AllowanceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.allowanceTypes {
		if strings.EqualFold(t.Name, allowanceType.Name) {
			return nil, fmt.Errorf("%w: allowance type %s already exists", store.ErrValidation, allowanceType.Name)
		}
	}
	if allowanceType.ID == "" {
		allowanceType.ID = xid.New("alt")
	}
	s.allowanceTypes[allowanceType.ID] = allowanceType
	return &allowanceType, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.InvoiceAllowance) (*domain.InvoiceAllowance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[invoice.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, invoice.UserID)
	}
	if invoice.OriginalInvoiceID != "" {
		if _, ok := s.invoices[invoice.OriginalInvoiceID]; !ok {
			return nil, fmt.Errorf("%w: original invoice %s", store.ErrNotFound, invoice.OriginalInvoiceID)
		}
	}

	total := decimal.Zero
	items := make([]domain.InvoiceAllowanceItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		t, ok := s.allowanceTypes[item.AllowanceTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown allowance type %s", store.ErrValidation, item.AllowanceTypeID)
		}
		item.AllowanceTypeName = t.Name
		total = total.Add(item.Amount)
		items = append(items, item)
	}

	period := fmt.Sprintf("%04d%02d", invoice.Year, invoice.Month)
	seq := s.invoiceSeq[period] + 1
	s.invoiceSeq[period] = seq

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
	s.invoices[invoice.ID] = cloneInvoice(invoice)

	created := cloneInvoice(invoice)
	return &created, nil
}

func (s *Store) GetInvoice(_ context.Context, id string) (*domain.InvoiceAllowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := cloneInvoice(inv)
	return &found, nil
}

func (s *Store) ListInvoices(_ context.Context, filter domain.InvoiceFilter) ([]domain.InvoiceAllowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.InvoiceAllowance, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if filter.UserID != "" && inv.UserID != filter.UserID {
			continue
		}
		if filter.Month != 0 && inv.Month != filter.Month {
			continue
		}
		if filter.Year != 0 && inv.Year != filter.Year {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	slices.SortFunc(out, func(a, b domain.InvoiceAllowance) int {
		if a.Year != b.Year {
			return b.Year - a.Year
		}
		if a.Month != b.Month {
			return b.Month - a.Month
		}
		return newestFirst(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateInvoiceStatus(_ context.Context, id string, change domain.InvoiceStatusChange) (*domain.InvoiceAllowance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if inv.Status == domain.InvoiceFinalized {
		return nil, fmt.Errorf("%w: invoice is finalized", store.ErrInvalidState)
	}
	inv.Status = change.Status
	if change.Status == domain.InvoiceApproved || change.Status == domain.InvoiceFinalized {
		at := change.At
		inv.ApproverRole = change.ApproverRole
		inv.ApproverName = change.ApproverName
		inv.ApprovalTimestamp = &at
	}
	s.invoices[id] = inv
	updated := cloneInvoice(inv)
	return &updated, nil
}
