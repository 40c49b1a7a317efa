// Package export renders CSV exports and archives a copy of each file.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"agrokoperasi/backend/internal/domain"
)

const ComplianceNotice = "Compliance: All recorded allowances are cooperative-approved and do not represent employment salary, wages, or payroll."

const dateLayout = "2006-01-02"

var expenseHeader = []string{
	"Date", "Name", "Category", "Amount", "Payment Method", "Reference No", "Bank", "Notes", "Created By",
}

var allowanceHeader = []string{
	"Invoice Number", "Name", "Branch", "Position", "Month", "Year", "Status", "Total",
	"Category", "Amount", "Description", "Approved By (Role+Name)",
}

func ExpensesFilename(at time.Time) string {
	return fmt.Sprintf("expenses_%s.csv", at.UTC().Format("20060102"))
}

func AllowanceFilename(year int) string {
	return fmt.Sprintf("allowance_%d.csv", year)
}

func ExpensesCSV(expenses []domain.Expense) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(expenseHeader); err != nil {
		return nil, err
	}
	for _, e := range expenses {
		record := []string{
			e.Date.UTC().Format(dateLayout),
			e.Name,
			e.CategoryName,
			e.Amount.StringFixed(2),
			e.PaymentMethod,
			e.ReferenceNo,
			e.BankName,
			e.Notes,
			e.CreatedBy,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AllowanceCSV writes the compliance notice, a blank line, the header and one
// row per invoice item.
func AllowanceCSV(invoices []domain.InvoiceAllowance) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{ComplianceNotice}); err != nil {
		return nil, err
	}
	if err := w.Write([]string{""}); err != nil {
		return nil, err
	}
	if err := w.Write(allowanceHeader); err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		for _, item := range inv.Items {
			record := []string{
				inv.InvoiceNumber,
				inv.UserName,
				inv.Branch,
				inv.Position,
				strconv.Itoa(inv.Month),
				strconv.Itoa(inv.Year),
				inv.Status,
				inv.TotalAmount.StringFixed(2),
				item.AllowanceTypeName,
				item.Amount.StringFixed(2),
				item.Description,
				approvedBy(inv),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func approvedBy(inv domain.InvoiceAllowance) string {
	if inv.ApproverName == "" {
		return inv.ApproverRole
	}
	return inv.ApproverRole + " - " + inv.ApproverName
}
