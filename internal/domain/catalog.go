package domain

import "time"

// Category groups products. Names are unique case-insensitively.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Dimensions of a product package, in centimetres.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NonNegative reports whether every dimension is >= 0.
func (d Dimensions) NonNegative() bool {
	return d.Length >= 0 && d.Width >= 0 && d.Height >= 0
}

// Product is a seller's listing. Price is in minor currency units. Images
// are ordered and the first one is the primary image. ReviewStats is never
// stored; it is derived from reviews on every read.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       int64       `json:"price"`
	CategoryID  string      `json:"category_id"`
	Weight      float64     `json:"weight"`
	Dimensions  Dimensions  `json:"dimensions"`
	Images      []string    `json:"images"`
	SellerID    string      `json:"seller_id"`
	IsActive    bool        `json:"is_active"`
	Stock       int         `json:"stock"`
	ReviewStats ReviewStats `json:"review_stats"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PrimaryImage returns the first image or "".
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductFilter holds the criteria of a catalog listing.
type ProductFilter struct {
	CategoryID string
	SellerID   string
	// Search matches name or description, case-insensitively.
	Search string
	// IncludeInactive disables the is_active filter.
	IncludeInactive bool
}

// ProductUpdate lists the client-settable product fields. Nil means
// unchanged. SellerID is deliberately absent.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *int64
	CategoryID  *string
	Weight      *float64
	Dimensions  *Dimensions
	Images      *[]string
	IsActive    *bool
	Stock       *int
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.CategoryID != nil {
		p.CategoryID = *u.CategoryID
	}
	if u.Weight != nil {
		p.Weight = *u.Weight
	}
	if u.Dimensions != nil {
		p.Dimensions = *u.Dimensions
	}
	if u.Images != nil {
		p.Images = append([]string(nil), (*u.Images)...)
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
}
