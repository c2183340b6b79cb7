package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/search"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

type catalogMocks struct {
	products   *mockProductRepository
	categories *mockCategoryRepository
	reviews    *mockReviewRepository
}

func newTestCatalogService(index search.Index) (*CatalogService, catalogMocks) {
	m := catalogMocks{
		products:   new(mockProductRepository),
		categories: new(mockCategoryRepository),
		reviews:    new(mockReviewRepository),
	}
	return NewCatalogService(m.products, m.categories, m.reviews, index, nopEmitter(), newTestLogger()), m
}

type stubIndex struct {
	indexed []string
	deleted []string
	result  *search.Result
	err     error
}

func (s *stubIndex) Index(_ context.Context, p *domain.Product) error {
	s.indexed = append(s.indexed, p.ID)
	return s.err
}

func (s *stubIndex) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *stubIndex) Search(context.Context, search.Query) (*search.Result, error) {
	return s.result, s.err
}

func TestListProducts_PublicSeesActiveOnlyWithStats(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()
	page := pagination.New(1, 10)

	m.products.On("List", ctx, domain.ProductFilter{Search: "lamp"}, page).
		Return([]domain.Product{{ID: "p1", IsActive: true}, {ID: "p2", IsActive: true}}, 2, nil)
	m.reviews.On("RatingCounts", ctx, []string{"p1", "p2"}).
		Return(map[string][5]int{"p1": {0, 0, 0, 1, 1}}, nil)

	products, total, err := svc.ListProducts(ctx, nil, ListProductsInput{Search: " lamp ", IncludeInactive: true, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, products[0].ReviewStats.TotalReviews)
	assert.InDelta(t, 4.5, products[0].ReviewStats.AverageRating, 0.001)
	assert.Equal(t, 0, products[1].ReviewStats.TotalReviews)
	assert.Zero(t, products[1].ReviewStats.AverageRating)
	m.products.AssertExpectations(t)
}

func TestListProducts_VisibilityOfInactive(t *testing.T) {
	tests := []struct {
		name    string
		id      *domain.Identity
		in      ListProductsInput
		include bool
	}{
		{"seller own listing", seller("s1", true), ListProductsInput{SellerID: "s1"}, true},
		{"seller browsing another seller", seller("s1", true), ListProductsInput{SellerID: "s2"}, false},
		{"admin asking for all", admin("a1"), ListProductsInput{IncludeInactive: true}, true},
		{"admin default view", admin("a1"), ListProductsInput{}, false},
		{"customer asking for all", customer("c1"), ListProductsInput{IncludeInactive: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newTestCatalogService(nil)
			ctx := context.Background()

			m.products.On("List", ctx, mock.MatchedBy(func(f domain.ProductFilter) bool {
				return f.IncludeInactive == tc.include && f.SellerID == tc.in.SellerID
			}), mock.Anything).Return([]domain.Product{}, 0, nil)

			_, _, err := svc.ListProducts(ctx, tc.id, tc.in)
			require.NoError(t, err)
			m.products.AssertExpectations(t)
		})
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()
	m.products.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("product", "missing"))

	_, err := svc.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetProduct_InactiveStillReturnedWithStats(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()
	m.products.On("GetByID", ctx, "p1").Return(&domain.Product{ID: "p1", IsActive: false}, nil)
	m.reviews.On("RatingCounts", ctx, []string{"p1"}).Return(map[string][5]int{"p1": {1, 0, 0, 0, 0}}, nil)

	p, err := svc.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewStats.TotalReviews)
	assert.Equal(t, 1, p.ReviewStats.RatingDistribution[1])
}

func TestCreateProduct_Gates(t *testing.T) {
	tests := []struct {
		name string
		id   *domain.Identity
		want error
	}{
		{"anonymous", nil, apperrors.ErrUnauthenticated},
		{"customer", customer("c1"), apperrors.ErrForbidden},
		{"admin", admin("a1"), apperrors.ErrForbidden},
		{"unapproved seller", seller("s1", false), apperrors.ErrPendingApproval},
		{"banned seller", &domain.Identity{ID: "s1", Role: domain.RoleSeller, IsApproved: true, IsBanned: true}, apperrors.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newTestCatalogService(nil)
			_, err := svc.CreateProduct(context.Background(), tc.id, CreateProductInput{Name: "Lamp", CategoryID: "c1"})
			assert.ErrorIs(t, err, tc.want)
			m.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateProduct_Success(t *testing.T) {
	idx := &stubIndex{}
	svc, m := newTestCatalogService(idx)
	ctx := context.Background()

	m.categories.On("GetByID", ctx, "c1").Return(&domain.Category{ID: "c1"}, nil)
	m.products.On("Create", ctx, mock.AnythingOfType("*domain.Product")).Return(nil)

	p, err := svc.CreateProduct(ctx, seller("s1", true), CreateProductInput{
		Name: "Lamp", Price: 1999, CategoryID: "c1", Images: []string{"a.png", "b.png"}, Stock: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SellerID)
	assert.True(t, p.IsActive)
	assert.Equal(t, "a.png", p.PrimaryImage())
	assert.Equal(t, []string{p.ID}, idx.indexed)
}

func TestCreateProduct_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateProductInput
	}{
		{"negative price", CreateProductInput{Name: "Lamp", CategoryID: "c1", Price: -1}},
		{"negative weight", CreateProductInput{Name: "Lamp", CategoryID: "c1", Weight: -0.5}},
		{"negative dimension", CreateProductInput{Name: "Lamp", CategoryID: "c1", Dimensions: domain.Dimensions{Height: -1}}},
		{"negative stock", CreateProductInput{Name: "Lamp", CategoryID: "c1", Stock: -2}},
		{"missing name", CreateProductInput{CategoryID: "c1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestCatalogService(nil)
			_, err := svc.CreateProduct(context.Background(), seller("s1", true), tc.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()
	m.categories.On("GetByID", ctx, "nope").Return(nil, apperrors.NotFound("category", "nope"))

	_, err := svc.CreateProduct(ctx, seller("s1", true), CreateProductInput{Name: "Lamp", CategoryID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateProduct_OwnerAppliesAllowListedFields(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()

	m.products.On("GetByID", ctx, "p1").Return(&domain.Product{ID: "p1", Name: "Lamp", SellerID: "s1", Price: 100, IsActive: true}, nil)
	m.products.On("Update", ctx, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Price == 250 && !p.IsActive && p.SellerID == "s1" && p.Name == "Lamp"
	})).Return(nil)
	m.reviews.On("RatingCounts", ctx, []string{"p1"}).Return(map[string][5]int{}, nil)

	price := int64(250)
	inactive := false
	p, err := svc.UpdateProduct(ctx, seller("s1", true), "p1", domain.ProductUpdate{Price: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.Price)
	m.products.AssertExpectations(t)
}

func TestUpdateProduct_AbsentOrForeignIsNotFoundOrForbidden(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()

	m.products.On("GetByID", ctx, "p1").Return(&domain.Product{ID: "p1", SellerID: "s1"}, nil)
	m.products.On("GetByID", ctx, "gone").Return(nil, apperrors.NotFound("product", "gone"))

	name := "Hijacked"
	_, err := svc.UpdateProduct(ctx, seller("s2", true), "p1", domain.ProductUpdate{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	_, err = svc.UpdateProduct(ctx, seller("s2", true), "gone", domain.ProductUpdate{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	m.products.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateProduct_AdminMayEdit(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()

	m.products.On("GetByID", ctx, "p1").Return(&domain.Product{ID: "p1", Name: "Lamp", SellerID: "s1"}, nil)
	m.products.On("Update", ctx, mock.Anything).Return(nil)
	m.reviews.On("RatingCounts", ctx, mock.Anything).Return(map[string][5]int{}, nil)

	stock := 9
	_, err := svc.UpdateProduct(ctx, admin("a1"), "p1", domain.ProductUpdate{Stock: &stock})
	assert.NoError(t, err)
}

func TestDeleteProduct(t *testing.T) {
	idx := &stubIndex{}
	svc, m := newTestCatalogService(idx)
	ctx := context.Background()

	m.products.On("GetByID", ctx, "p1").Return(&domain.Product{ID: "p1", SellerID: "s1"}, nil)
	m.products.On("GetByID", ctx, "gone").Return(nil, apperrors.NotFound("product", "gone"))
	m.products.On("Delete", ctx, "p1").Return(nil).Once()

	err := svc.DeleteProduct(ctx, seller("s2", true), "p1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	err = svc.DeleteProduct(ctx, customer("c1"), "gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteProduct(ctx, seller("s1", false), "p1"))
	assert.Equal(t, []string{"p1"}, idx.deleted)
	m.products.AssertExpectations(t)
}

func TestSearchProducts_FallsBackWithoutIndex(t *testing.T) {
	svc, m := newTestCatalogService(nil)
	ctx := context.Background()
	page := pagination.DefaultParams()

	m.products.On("List", ctx, domain.ProductFilter{Search: "desk"}, page).Return([]domain.Product{{ID: "p1", IsActive: true}}, 1, nil)
	m.reviews.On("RatingCounts", ctx, []string{"p1"}).Return(map[string][5]int{}, nil)

	products, total, err := svc.SearchProducts(ctx, "desk", "", page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, products, 1)
}

func TestSearchProducts_KeepsRelevanceOrderAndDropsInactive(t *testing.T) {
	idx := &stubIndex{result: &search.Result{IDs: []string{"p3", "p1", "p2"}, Total: 3}}
	svc, m := newTestCatalogService(idx)
	ctx := context.Background()

	m.products.On("GetByIDs", ctx, []string{"p3", "p1", "p2"}).Return([]domain.Product{
		{ID: "p1", IsActive: true}, {ID: "p2", IsActive: false}, {ID: "p3", IsActive: true},
	}, nil)
	m.reviews.On("RatingCounts", ctx, []string{"p3", "p1"}).Return(map[string][5]int{}, nil)

	products, _, err := svc.SearchProducts(ctx, "lamp", "", pagination.DefaultParams())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p3", products[0].ID)
	assert.Equal(t, "p1", products[1].ID)
}

func TestSearchProducts_IndexFailureIsUpstream(t *testing.T) {
	svc, _ := newTestCatalogService(&stubIndex{err: errors.New("cluster red")})
	_, _, err := svc.SearchProducts(context.Background(), "lamp", "", pagination.DefaultParams())
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	svc, m := newTestCatalogService(&stubIndex{err: errors.New("cluster red")})
	ctx := context.Background()

	m.categories.On("GetByID", ctx, "c1").Return(&domain.Category{ID: "c1"}, nil)
	m.products.On("Create", ctx, mock.Anything).Return(nil)

	_, err := svc.CreateProduct(ctx, seller("s1", true), CreateProductInput{Name: "Lamp", CategoryID: "c1"})
	assert.NoError(t, err)
}
