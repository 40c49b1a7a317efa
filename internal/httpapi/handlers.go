package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agrokoperasi/backend/internal/domain"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.service.Me(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.service.ResetPassword(r.Context(), req); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password reset"})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.service.CreateUser(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.service.MyPermissions(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.service.Permissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) handleUpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	var req domain.PermissionUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	perms, err := a.service.SetPermissions(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context(), domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListLivestock(w http.ResponseWriter, r *http.Request) {
	livestock, err := a.service.ListLivestock(r.Context(), domain.LivestockFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, livestock)
}

func (a *API) handleGetLivestock(w http.ResponseWriter, r *http.Request) {
	livestock, err := a.service.GetLivestock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, livestock)
}

func (a *API) handleCreateLivestock(w http.ResponseWriter, r *http.Request) {
	var req domain.LivestockCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	livestock, err := a.service.CreateLivestock(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, livestock)
}

func (a *API) handleUpdateLivestock(w http.ResponseWriter, r *http.Request) {
	var req domain.LivestockUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	livestock, err := a.service.UpdateLivestock(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, livestock)
}

func (a *API) handleDeleteLivestock(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteLivestock(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListSlaughterLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListSlaughterLogs(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) handleSlaughter(w http.ResponseWriter, r *http.Request) {
	var req domain.SlaughterRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.service.ProcessSlaughter(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	tx, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.service.ListTransactions(r.Context(), r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
