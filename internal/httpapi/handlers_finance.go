package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"agrokoperasi/backend/internal/domain"
)

func (a *API) handleSubmitInvestment(w http.ResponseWriter, r *http.Request) {
	var req domain.MemberInvestmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	inv, err := a.service.SubmitInvestment(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handleMyInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := a.service.MyInvestments(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) handlePendingInvestments(w http.ResponseWriter, r *http.Request) {
	invs, err := a.service.PendingInvestments(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invs)
}

func (a *API) handleMemberInvestmentHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.MemberInvestmentHistory(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleIndividualInvestments(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.IndividualInvestments(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) handleApproveInvestment(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ApproveInvestment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleRejectInvestment(w http.ResponseWriter, r *http.Request) {
	var req domain.RejectRequest
	if !a.decode(w, r, &req) {
		return
	}
	inv, err := a.service.RejectInvestment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) handleInvestmentSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.InvestmentSummary(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSaveInvestmentSummary(w http.ResponseWriter, r *http.Request) {
	var req domain.InvestmentSummaryRequest
	if !a.decode(w, r, &req) {
		return
	}
	change, err := a.service.SaveInvestmentSummary(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *API) handleInvestmentHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.InvestmentHistory(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleDividends(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.Dividends(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleSaveDividend(w http.ResponseWriter, r *http.Request) {
	var req domain.DividendRequest
	if !a.decode(w, r, &req) {
		return
	}
	change, err := a.service.SaveDividend(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *API) handleCancelDividend(w http.ResponseWriter, r *http.Request) {
	change, err := a.service.CancelDividend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (a *API) handleDividendHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.DividendHistory(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleROI(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.ROI(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListExpenseCategories(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) handleCreateExpenseCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCategory
	if !a.decode(w, r, &req) {
		return
	}
	category, err := a.service.CreateExpenseCategory(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := a.service.ListExpenses(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if !a.decode(w, r, &req) {
		return
	}
	expense, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (a *API) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseRequest
	if !a.decode(w, r, &req) {
		return
	}
	expense, err := a.service.UpdateExpense(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (a *API) handleExpenseHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.ExpenseHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) handleExpenseVisibility(w http.ResponseWriter, r *http.Request) {
	visibility, err := a.service.ExpenseVisibility(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visibility)
}

func (a *API) handleSaveExpenseVisibility(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseVisibility
	if !a.decode(w, r, &req) {
		return
	}
	visibility, err := a.service.SaveExpenseVisibility(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visibility)
}

func (a *API) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	file, err := a.service.ExportExpensesCSV(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeCSV(w, file.Filename, file.Body)
}

func (a *API) handleAllowanceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.service.ListAllowanceTypes(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (a *API) handleCreateAllowanceType(w http.ResponseWriter, r *http.Request) {
	var req domain.AllowanceTypeRequest
	if !a.decode(w, r, &req) {
		return
	}
	allowanceType, err := a.service.CreateAllowanceType(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, allowanceType)
}

func (a *API) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	invoice, err := a.service.CreateInvoice(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	month, err := queryInt(r, "month")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	invoices, err := a.service.ListInvoices(r.Context(), domain.InvoiceFilter{
		UserID: r.URL.Query().Get("userId"),
		Month:  month,
		Year:   year,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (a *API) handleUpdateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceStatusRequest
	if !a.decode(w, r, &req) {
		return
	}
	invoice, err := a.service.UpdateInvoiceStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.SalesReport(r.Context(), r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleInventoryReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.InventoryReport(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleAllowanceReport(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := a.service.AllowanceReport(r.Context(), year)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleExportAllowance(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	file, err := a.service.ExportAllowanceCSV(r.Context(), year)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeCSV(w, file.Filename, file.Body)
}
