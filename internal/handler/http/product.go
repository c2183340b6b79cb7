package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
// The seller is always the caller and cannot be set.
type CreateProductRequest struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	Price       int64             `json:"price" validate:"gte=0"`
	CategoryID  string            `json:"category_id" validate:"required,uuid"`
	Weight      float64           `json:"weight" validate:"gte=0"`
	Dimensions  domain.Dimensions `json:"dimensions"`
	Images      []string          `json:"images" validate:"max=10,dive,required"`
	IsActive    *bool             `json:"is_active"`
	Stock       int               `json:"stock" validate:"gte=0"`
}

// UpdateProductRequest is the JSON request body for updating a product. All
// fields are optional.
type UpdateProductRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description" validate:"omitempty,max=5000"`
	Price       *int64             `json:"price" validate:"omitempty,gte=0"`
	CategoryID  *string            `json:"category_id" validate:"omitempty,uuid"`
	Weight      *float64           `json:"weight" validate:"omitempty,gte=0"`
	Dimensions  *domain.Dimensions `json:"dimensions"`
	Images      *[]string          `json:"images" validate:"omitempty,max=10,dive,required"`
	IsActive    *bool              `json:"is_active"`
	Stock       *int               `json:"stock" validate:"omitempty,gte=0"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, listInput(r, ""))
}

// ListSellerProducts handles GET /api/v1/sellers/{id}/products
func (h *ProductHandler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.list(w, r, listInput(r, sellerID))
}

// ListMyProducts handles GET /api/v1/products/seller/mine. The caller's own
// listing includes inactive products.
func (h *ProductHandler) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id == nil {
		httputil.WriteError(w, r, apperrors.Unauthenticated("authentication required"), h.logger)
		return
	}
	h.list(w, r, listInput(r, id.ID))
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, in service.ListProductsInput) {
	products, total, err := h.service.ListProducts(r.Context(), identityFrom(r), in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, in.Page))
}

// SearchProducts handles GET /api/v1/search/products?q=
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	q := r.URL.Query()

	products, total, err := h.service.SearchProducts(r.Context(), q.Get("q"), q.Get("category_id"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(products, total, page))
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), identityFrom(r), service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Weight:      req.Weight,
		Dimensions:  req.Dimensions,
		Images:      req.Images,
		IsActive:    req.IsActive,
		Stock:       req.Stock,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), identityFrom(r), id, domain.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Weight:      req.Weight,
		Dimensions:  req.Dimensions,
		Images:      req.Images,
		IsActive:    req.IsActive,
		Stock:       req.Stock,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), identityFrom(r), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// listInput reads the catalog listing query parameters.
func listInput(r *http.Request, sellerID string) service.ListProductsInput {
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))
	return service.ListProductsInput{
		CategoryID:      q.Get("category_id"),
		SellerID:        sellerID,
		Search:          q.Get("search"),
		IncludeInactive: includeInactive,
		Page:            pagination.FromRequest(r),
	}
}
