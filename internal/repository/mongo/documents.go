package mongo

import (
	"time"

	"github.com/utafrali/marketplace/internal/domain"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	Name         string    `bson:"name"`
	Role         string    `bson:"role"`
	IsApproved   bool      `bson:"is_approved"`
	IsBanned     bool      `bson:"is_banned"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func toUserDoc(u *domain.User) userDoc {
	return userDoc(*u)
}

func (d userDoc) toDomain() domain.User {
	return domain.User(d)
}

type categoryDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameLower   string    `bson:"name_lower"`
	Slug        string    `bson:"slug"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d categoryDoc) toDomain() domain.Category {
	return domain.Category{
		ID:          d.ID,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type dimensionsDoc struct {
	Length float64 `bson:"length"`
	Width  float64 `bson:"width"`
	Height float64 `bson:"height"`
}

type productDoc struct {
	ID          string        `bson:"_id"`
	Name        string        `bson:"name"`
	Description string        `bson:"description"`
	Price       int64         `bson:"price"`
	CategoryID  string        `bson:"category_id"`
	Weight      float64       `bson:"weight"`
	Dimensions  dimensionsDoc `bson:"dimensions"`
	Images      []string      `bson:"images"`
	SellerID    string        `bson:"seller_id"`
	IsActive    bool          `bson:"is_active"`
	Stock       int           `bson:"stock"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func toProductDoc(p *domain.Product) productDoc {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		Weight:      p.Weight,
		Dimensions:  dimensionsDoc(p.Dimensions),
		Images:      images,
		SellerID:    p.SellerID,
		IsActive:    p.IsActive,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d productDoc) toDomain() domain.Product {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return domain.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		CategoryID:  d.CategoryID,
		Weight:      d.Weight,
		Dimensions:  domain.Dimensions(d.Dimensions),
		Images:      images,
		SellerID:    d.SellerID,
		IsActive:    d.IsActive,
		Stock:       d.Stock,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Image     string `bson:"image"`
	Quantity  int    `bson:"quantity"`
	Price     int64  `bson:"price"`
}

type addressDoc struct {
	Street  string `bson:"street,omitempty"`
	City    string `bson:"city,omitempty"`
	State   string `bson:"state,omitempty"`
	Zip     string `bson:"zip,omitempty"`
	Country string `bson:"country,omitempty"`
}

// orderDoc embeds its items, so an order insert is a single document write.
type orderDoc struct {
	ID              string         `bson:"_id"`
	UserID          string         `bson:"user_id"`
	Items           []orderItemDoc `bson:"items"`
	ShippingAddress addressDoc     `bson:"shipping_address"`
	Total           int64          `bson:"total"`
	Status          string         `bson:"status"`
	PaymentIntentID *string        `bson:"payment_intent_id,omitempty"`
	TrackingNumber  *string        `bson:"tracking_number,omitempty"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

func toOrderDoc(o *domain.Order) orderDoc {
	items := make([]orderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDoc(it)
	}
	return orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: addressDoc(o.ShippingAddress),
		Total:           o.Total,
		Status:          string(o.Status),
		PaymentIntentID: o.PaymentIntentID,
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d orderDoc) toDomain() domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = domain.OrderItem(it)
	}
	return domain.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           items,
		ShippingAddress: domain.ShippingAddress(d.ShippingAddress),
		Total:           d.Total,
		Status:          domain.OrderStatus(d.Status),
		PaymentIntentID: d.PaymentIntentID,
		TrackingNumber:  d.TrackingNumber,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type reviewDoc struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"product_id"`
	UserID    string    `bson:"user_id"`
	UserName  string    `bson:"user_name"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d reviewDoc) toDomain() domain.Review {
	return domain.Review(d)
}
