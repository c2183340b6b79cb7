package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// AdminHandler serves the moderation and platform views under /admin. The
// router mounts it behind RequireRole(admin); the services check the role
// again against the stored identity.
type AdminHandler struct {
	admin      *service.AdminService
	catalog    *service.CatalogService
	orders     *service.OrderService
	reviews    *service.ReviewService
	categories *service.CategoryService
	logger     *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(
	admin *service.AdminService,
	catalog *service.CatalogService,
	orders *service.OrderService,
	reviews *service.ReviewService,
	categories *service.CategoryService,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:      admin,
		catalog:    catalog,
		orders:     orders,
		reviews:    reviews,
		categories: categories,
		logger:     logger,
	}
}

// BanRequest is the JSON request body for setting the ban flag.
type BanRequest struct {
	IsBanned *bool `json:"is_banned" validate:"required"`
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.GetStats(r.Context(), identityFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

// ListUsers handles GET /api/v1/admin/users?role=
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := domain.UserFilter{Role: r.URL.Query().Get("role")}

	users, total, err := h.admin.ListUsers(r.Context(), identityFrom(r), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(users, total, page))
}

// ApproveUser handles PATCH /api/v1/admin/users/{id}/approve
func (h *AdminHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	user, err := h.admin.ApproveUser(r.Context(), identityFrom(r), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// BanUser handles PATCH /api/v1/admin/users/{id}/ban
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req BanRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.admin.BanUser(r.Context(), identityFrom(r), id, *req.IsBanned)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(r.Context(), identityFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// ListProducts handles GET /api/v1/admin/products. Inactive products are
// included unless ?include_inactive=false.
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	in := listInput(r, r.URL.Query().Get("seller_id"))
	in.IncludeInactive = r.URL.Query().Get("include_inactive") != "false"

	products, total, err := h.catalog.ListProducts(r.Context(), identityFrom(r), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, in.Page))
}

// ListOrders handles GET /api/v1/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if !id.IsAdmin() {
		httputil.WriteError(w, r, apperrors.Forbidden("admin role required"), h.logger)
		return
	}

	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListOrders(r.Context(), id, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(orders, total, page))
}

// ListReviews handles GET /api/v1/admin/reviews
func (h *AdminHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	reviews, total, err := h.reviews.ListAllReviews(r.Context(), identityFrom(r), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(reviews, total, page))
}

// ListCategories handles GET /api/v1/admin/categories
func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, categories)
}
