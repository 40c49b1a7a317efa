package httpapi

import (
	"github.com/go-chi/chi/v5"

	"agrokoperasi/backend/internal/domain"
)

var (
	financeRoles  = []string{domain.RoleSuperAdmin, domain.RoleFinance}
	managerRoles  = []string{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFinance}
	catalogRoles  = []string{domain.RoleAdmin, domain.RoleFarmManager}
	userAdminRole = []string{domain.RoleSuperAdmin, domain.RoleAdmin}
)

func (a *API) userRoutes(r chi.Router) {
	r.Get("/me/permissions", a.handleMyPermissions)

	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(userAdminRole...), a.requireModule(domain.ModuleUsers))
		r.Get("/", a.handleListUsers)
		r.Post("/", a.handleCreateUser)
		r.Put("/{id}", a.handleUpdateUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(domain.RoleSuperAdmin), a.requireModule(domain.ModuleUsers))
		r.Get("/{id}/permissions", a.handleUserPermissions)
		r.Put("/{id}/permissions", a.handleUpdateUserPermissions)
	})
}

func (a *API) productRoutes(r chi.Router) {
	r.Use(a.requireModule(domain.ModuleProducts))
	r.Get("/", a.handleListProducts)
	r.Get("/{id}", a.handleGetProduct)
	r.With(a.requireRole(catalogRoles...)).Post("/", a.handleCreateProduct)
	r.With(a.requireRole(catalogRoles...)).Put("/{id}", a.handleUpdateProduct)
	r.With(a.requireRole(domain.RoleAdmin)).Delete("/{id}", a.handleDeleteProduct)
}

func (a *API) livestockRoutes(r chi.Router) {
	r.Use(a.requireModule(domain.ModuleInventory))
	r.Get("/", a.handleListLivestock)
	r.Get("/{id}", a.handleGetLivestock)
	r.With(a.requireRole(catalogRoles...)).Post("/", a.handleCreateLivestock)
	r.With(a.requireRole(catalogRoles...)).Put("/{id}", a.handleUpdateLivestock)
	r.With(a.requireRole(domain.RoleAdmin)).Delete("/{id}", a.handleDeleteLivestock)
}

func (a *API) slaughterRoutes(r chi.Router) {
	r.Use(a.requireModule(domain.ModuleSlaughter))
	r.Get("/", a.handleListSlaughterLogs)
	r.With(a.requireRole(domain.RoleAdmin, domain.RoleFarmManager, domain.RoleInventory)).Post("/", a.handleSlaughter)
}

func (a *API) transactionRoutes(r chi.Router) {
	r.Use(a.requireModule(domain.ModulePOS))
	r.Post("/", a.handleCheckout)
	r.Get("/", a.handleListTransactions)
	r.Get("/{id}", a.handleGetTransaction)
}

func (a *API) investmentRoutes(r chi.Router) {
	r.Post("/member", a.handleSubmitInvestment)
	r.Get("/member/me", a.handleMyInvestments)
	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(financeRoles...))
		r.Get("/member/pending", a.handlePendingInvestments)
		r.Get("/member/history", a.handleMemberInvestmentHistory)
		r.Get("/member/individual", a.handleIndividualInvestments)
		r.Put("/member/{id}/approve", a.handleApproveInvestment)
		r.Put("/member/{id}/reject", a.handleRejectInvestment)
		r.Get("/history", a.handleInvestmentHistory)
	})

	r.With(a.requireRole(managerRoles...)).Get("/summary", a.handleInvestmentSummary)
	r.With(a.requireRole(domain.RoleSuperAdmin)).Put("/summary", a.handleSaveInvestmentSummary)

	r.With(a.requireRole(managerRoles...)).Get("/dividends", a.handleDividends)
	r.With(a.requireRole(managerRoles...)).Get("/dividends/history", a.handleDividendHistory)
	r.With(a.requireRole(domain.RoleSuperAdmin)).Post("/dividends", a.handleSaveDividend)
	r.With(a.requireRole(domain.RoleSuperAdmin)).Put("/dividends/{id}/cancel", a.handleCancelDividend)

	r.With(a.requireRole(managerRoles...)).Get("/roi", a.handleROI)
}

func (a *API) expenseRoutes(r chi.Router) {
	r.Get("/categories", a.handleExpenseCategories)
	r.With(a.requireRole(managerRoles...)).Post("/categories", a.handleCreateExpenseCategory)

	r.Get("/", a.handleListExpenses)
	r.With(a.requireRole(managerRoles...)).Post("/", a.handleCreateExpense)
	r.With(a.requireRole(managerRoles...)).Put("/{id}", a.handleUpdateExpense)
	r.With(a.requireRole(managerRoles...)).Get("/{id}/history", a.handleExpenseHistory)

	r.With(a.requireRole(managerRoles...)).Get("/visibility", a.handleExpenseVisibility)
	r.With(a.requireRole(domain.RoleSuperAdmin)).Put("/visibility", a.handleSaveExpenseVisibility)

	r.Get("/export/csv", a.handleExportExpenses)
}

func (a *API) allowanceRoutes(r chi.Router) {
	r.With(a.requireModule(domain.ModuleAllowance)).Get("/types", a.handleAllowanceTypes)
	r.With(a.requireModule(domain.ModuleAllowance, domain.ModuleMyAllowance)).Get("/invoices", a.handleListInvoices)

	r.Group(func(r chi.Router) {
		r.Use(a.requireRole(managerRoles...), a.requireModule(domain.ModuleAllowance))
		r.Post("/types", a.handleCreateAllowanceType)
		r.Post("/invoices", a.handleCreateInvoice)
		r.Put("/invoices/{id}/status", a.handleUpdateInvoiceStatus)
	})
}

func (a *API) reportRoutes(r chi.Router) {
	r.Use(a.requireModule(domain.ModuleReports))
	r.With(a.requireRole(managerRoles...)).Get("/sales", a.handleSalesReport)
	r.With(a.requireRole(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleFarmAdmin)).Get("/inventory", a.handleInventoryReport)
	r.With(a.requireRole(managerRoles...)).Get("/allowance", a.handleAllowanceReport)
	r.With(a.requireRole(managerRoles...)).Get("/allowance/export/csv", a.handleExportAllowance)
}
