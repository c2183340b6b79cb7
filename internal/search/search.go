// Package search mirrors products into a full-text index.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
)

// ErrDisabled is returned by Search when no index is configured.
var ErrDisabled = errors.New("search index disabled")

// Query is a full-text product search.
type Query struct {
	Text       string
	CategoryID string
	Page       int
	PerPage    int
}

// Result holds matching product ids in relevance order.
type Result struct {
	IDs   []string
	Total int
}

// Index is a product search index. Only active products are returned by
// Search.
type Index interface {
	Index(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q Query) (*Result, error)
}

// Document is the indexed representation of a product.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id"`
	SellerID    string    `json:"seller_id"`
	Price       int64     `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDocument converts a product.
func NewDocument(p *domain.Product) Document {
	return Document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		SellerID:    p.SellerID,
		Price:       p.Price,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}

// NoopIndex is used when search is disabled. Search reports no support so
// callers fall back to the store.
type NoopIndex struct{}

func (NoopIndex) Index(context.Context, *domain.Product) error { return nil }
func (NoopIndex) Delete(context.Context, string) error         { return nil }
func (NoopIndex) Search(context.Context, Query) (*Result, error) {
	return nil, ErrDisabled
}
