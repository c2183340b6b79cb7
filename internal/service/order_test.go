package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

type orderMocks struct {
	orders   *mockOrderRepository
	products *mockProductRepository
	users    *mockUserRepository
}

func newTestOrderService(verifyTotal bool) (*OrderService, orderMocks) {
	m := orderMocks{
		orders:   new(mockOrderRepository),
		products: new(mockProductRepository),
		users:    new(mockUserRepository),
	}
	return NewOrderService(m.orders, m.products, m.users, nopEmitter(), newTestLogger(), verifyTotal), m
}

func strPtr(s string) *string { return &s }

func TestCreateOrder_SnapshotsAndPendingStatus(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.products.On("GetByIDs", ctx, []string{"p1", "p2"}).Return([]domain.Product{
		{ID: "p1", Name: "Lamp", Price: 5000, Images: []string{"lamp.png", "lamp2.png"}},
		{ID: "p2", Name: "Desk", Price: 1},
	}, nil)
	m.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	order, err := svc.CreateOrder(ctx, customer("u1"), CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: "p1", Quantity: 2, Price: 999},
			{ProductID: "p2", Quantity: 1, Price: 2},
		},
		Total: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, "Lamp", order.Items[0].Name)
	assert.Equal(t, "lamp.png", order.Items[0].Image)
	assert.Equal(t, int64(999), order.Items[0].Price, "caller price is kept, not re-read")
	assert.Nil(t, order.PaymentIntentID)
}

func TestCreateOrder_PaidWithPaymentIntent(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.products.On("GetByIDs", ctx, []string{"p1"}).Return([]domain.Product{{ID: "p1", Name: "Lamp"}}, nil)
	m.orders.On("Create", ctx, mock.Anything).Return(nil)

	order, err := svc.CreateOrder(ctx, customer("u1"), CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: "p1", Quantity: 1, Price: 500}},
		Total:           500,
		PaymentIntentID: strPtr("pi_123"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "pi_123", *order.PaymentIntentID)
}

func TestCreateOrder_TotalVerification(t *testing.T) {
	in := CreateOrderInput{
		Items: []OrderItemInput{{ProductID: "p1", Quantity: 2, Price: 999}},
		Total: 1,
	}

	t.Run("verified", func(t *testing.T) {
		svc, m := newTestOrderService(true)
		m.products.On("GetByIDs", mock.Anything, mock.Anything).Return([]domain.Product{{ID: "p1"}}, nil)

		_, err := svc.CreateOrder(context.Background(), customer("u1"), in)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		m.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("trusted", func(t *testing.T) {
		svc, m := newTestOrderService(false)
		m.products.On("GetByIDs", mock.Anything, mock.Anything).Return([]domain.Product{{ID: "p1"}}, nil)
		m.orders.On("Create", mock.Anything, mock.Anything).Return(nil)

		order, err := svc.CreateOrder(context.Background(), customer("u1"), in)
		require.NoError(t, err)
		assert.Equal(t, int64(1), order.Total)
	})
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateOrderInput
	}{
		{"no items", CreateOrderInput{}},
		{"zero quantity", CreateOrderInput{Items: []OrderItemInput{{ProductID: "p1", Quantity: 0}}}},
		{"negative price", CreateOrderInput{Items: []OrderItemInput{{ProductID: "p1", Quantity: 1, Price: -1}}}},
		{"negative total", CreateOrderInput{Items: []OrderItemInput{{ProductID: "p1", Quantity: 1}}, Total: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestOrderService(true)
			_, err := svc.CreateOrder(context.Background(), customer("u1"), tc.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, m := newTestOrderService(true)
	m.products.On("GetByIDs", mock.Anything, []string{"ghost"}).Return([]domain.Product{}, nil)

	_, err := svc.CreateOrder(context.Background(), customer("u1"), CreateOrderInput{
		Items: []OrderItemInput{{ProductID: "ghost", Quantity: 1, Price: 1}}, Total: 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateOrder_RequiresAuthentication(t *testing.T) {
	svc, _ := newTestOrderService(true)
	_, err := svc.CreateOrder(context.Background(), nil, CreateOrderInput{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestListOrders_Scoping(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()
	page := pagination.DefaultParams()

	m.orders.On("List", ctx, domain.OrderFilter{UserID: "u1"}, page).Return([]domain.Order{{ID: "o1", UserID: "u1"}}, 1, nil)
	m.orders.On("List", ctx, domain.OrderFilter{}, page).Return([]domain.Order{{ID: "o1", UserID: "u1"}, {ID: "o2", UserID: "u2"}}, 2, nil)
	m.users.On("Names", ctx, []string{"u1", "u2"}).Return(map[string]string{"u1": "Amy"}, nil)

	own, total, err := svc.ListOrders(ctx, customer("u1"), page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, own[0].CustomerName)

	all, total, err := svc.ListOrders(ctx, admin("a1"), page)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Amy", all[0].CustomerName)
	assert.Empty(t, all[1].CustomerName, "deleted buyer keeps an empty name")
}

func TestGetOrder_ForeignOrderIsNotFound(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1"}, nil)
	m.users.On("Names", ctx, []string{"u1"}).Return(map[string]string{"u1": "Amy"}, nil)

	_, err := svc.GetOrder(ctx, customer("u2"), "o1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.GetOrder(ctx, seller("s1", true), "o1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	o, err := svc.GetOrder(ctx, admin("a1"), "o1")
	require.NoError(t, err)
	assert.Equal(t, "Amy", o.CustomerName)

	o, err = svc.GetOrder(ctx, customer("u1"), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
}

func TestListSellerOrders(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()
	page := pagination.DefaultParams()

	m.products.On("IDsBySeller", ctx, "s1").Return([]string{"p1", "p2"}, nil)
	m.products.On("IDsBySeller", ctx, "s3").Return([]string{}, nil)
	m.orders.On("List", ctx, domain.OrderFilter{ProductIDs: []string{"p1", "p2"}}, page).
		Return([]domain.Order{{ID: "o1", UserID: "u1"}}, 1, nil)
	m.users.On("Names", ctx, []string{"u1"}).Return(map[string]string{"u1": "Amy"}, nil)

	orders, total, err := svc.ListSellerOrders(ctx, seller("s1", true), "", page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Amy", orders[0].CustomerName)

	_, _, err = svc.ListSellerOrders(ctx, seller("s2", true), "s1", page)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = svc.ListSellerOrders(ctx, customer("u1"), "", page)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = svc.ListSellerOrders(ctx, admin("a1"), "s1", page)
	assert.NoError(t, err)

	orders, total, err = svc.ListSellerOrders(ctx, seller("s3", true), "s3", page)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestUpdateStatus_Guarded(t *testing.T) {
	tests := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		ok   bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPaid, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPaid, domain.OrderStatusShipped, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPaid, false},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusPaid, domain.OrderStatusPaid, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			svc, m := newTestOrderService(true)
			ctx := context.Background()

			m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1", Status: tc.from}, nil)
			m.orders.On("UpdateStatus", ctx, "o1", tc.from, tc.to, mock.Anything).Return(nil)
			m.users.On("Names", ctx, mock.Anything).Return(map[string]string{}, nil)

			order, err := svc.UpdateStatus(ctx, admin("a1"), "o1", UpdateStatusInput{Status: tc.to})
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, order.Status)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
				m.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestUpdateStatus_TrackingRecordedWhenShipping(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPaid}, nil)
	m.orders.On("UpdateStatus", ctx, "o1", domain.OrderStatusPaid, domain.OrderStatusShipped,
		mock.MatchedBy(func(s *string) bool { return s != nil && *s == "TRK-1" })).Return(nil)
	m.users.On("Names", ctx, mock.Anything).Return(map[string]string{}, nil)

	order, err := svc.UpdateStatus(ctx, admin("a1"), "o1", UpdateStatusInput{Status: domain.OrderStatusShipped, TrackingNumber: strPtr(" TRK-1 ")})
	require.NoError(t, err)
	assert.Equal(t, "TRK-1", *order.TrackingNumber)
	m.orders.AssertExpectations(t)
}

func TestUpdateStatus_Scoping(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPending}, nil)
	m.orders.On("GetByID", ctx, "gone").Return(nil, apperrors.NotFound("order", "gone"))

	_, err := svc.UpdateStatus(ctx, customer("u2"), "o1", UpdateStatusInput{Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	_, err = svc.UpdateStatus(ctx, customer("u2"), "gone", UpdateStatusInput{Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, apperrors.ErrNotFoundOrForbidden)

	_, err = svc.UpdateStatus(ctx, customer("u1"), "o1", UpdateStatusInput{Status: "refunded"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateStatus_LostRaceIsInvalidTransition(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPending}, nil)
	m.orders.On("UpdateStatus", ctx, "o1", domain.OrderStatusPending, domain.OrderStatusCancelled, mock.Anything).
		Return(apperrors.NotFound("order", "o1"))

	_, err := svc.UpdateStatus(ctx, customer("u1"), "o1", UpdateStatusInput{Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestConfirmPayment_PaysOrderCarryingAttachedIntent(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	var stored domain.Order
	m.products.On("GetByIDs", ctx, []string{"p1"}).Return([]domain.Product{{ID: "p1", Name: "Lamp"}}, nil)
	m.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) { stored = *args.Get(1).(*domain.Order) }).
		Return(nil)

	created, err := svc.CreateOrder(ctx, customer("u1"), CreateOrderInput{
		Items: []OrderItemInput{{ProductID: "p1", Quantity: 1, Price: 500}},
		Total: 500,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, stored.Status)

	m.orders.On("GetByID", ctx, created.ID).Return(&stored, nil)
	m.orders.On("AttachPaymentIntent", ctx, created.ID, "pi_9").
		Run(func(args mock.Arguments) {
			intent := args.String(2)
			stored.PaymentIntentID = &intent
		}).
		Return(nil).Once()
	m.orders.On("GetByPaymentIntent", ctx, "pi_9").Return(&stored, nil)
	m.orders.On("UpdateStatus", ctx, created.ID, domain.OrderStatusPending, domain.OrderStatusPaid, (*string)(nil)).
		Run(func(args mock.Arguments) { stored.Status = args.Get(3).(domain.OrderStatus) }).
		Return(nil).Once()

	attached, err := svc.AttachPaymentIntent(ctx, customer("u1"), created.ID, "pi_9")
	require.NoError(t, err)
	require.NotNil(t, attached.PaymentIntentID)
	assert.Equal(t, domain.OrderStatusPending, stored.Status, "attaching an intent does not pay the order")

	order, err := svc.ConfirmPayment(ctx, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)

	// A redelivered webhook leaves the paid order alone.
	order, err = svc.ConfirmPayment(ctx, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	m.orders.AssertExpectations(t)
}

func TestConfirmPayment_OrderPaidAtCreationIsUnchanged(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	var stored domain.Order
	m.products.On("GetByIDs", ctx, []string{"p1"}).Return([]domain.Product{{ID: "p1", Name: "Lamp"}}, nil)
	m.orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).
		Run(func(args mock.Arguments) { stored = *args.Get(1).(*domain.Order) }).
		Return(nil)

	_, err := svc.CreateOrder(ctx, customer("u1"), CreateOrderInput{
		Items:           []OrderItemInput{{ProductID: "p1", Quantity: 1, Price: 500}},
		Total:           500,
		PaymentIntentID: strPtr("pi_3"),
	})
	require.NoError(t, err)
	m.orders.On("GetByPaymentIntent", ctx, "pi_3").Return(&stored, nil)

	order, err := svc.ConfirmPayment(ctx, "pi_3")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	m.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachPaymentIntent_Guards(t *testing.T) {
	svc, m := newTestOrderService(true)
	ctx := context.Background()

	m.orders.On("GetByID", ctx, "o1").Return(&domain.Order{ID: "o1", UserID: "u1", Status: domain.OrderStatusPending}, nil)
	m.orders.On("GetByID", ctx, "o2").Return(&domain.Order{ID: "o2", UserID: "u1", Status: domain.OrderStatusPaid}, nil)
	m.orders.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("order", "missing"))
	m.orders.On("AttachPaymentIntent", ctx, "o1", "pi_1").Return(apperrors.NotFound("order", "o1"))

	_, err := svc.AttachPaymentIntent(ctx, nil, "o1", "pi_1")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = svc.AttachPaymentIntent(ctx, customer("u2"), "o1", "pi_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "another customer's order is hidden")

	_, err = svc.AttachPaymentIntent(ctx, customer("u1"), "missing", "pi_1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.AttachPaymentIntent(ctx, customer("u1"), "o2", "pi_1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = svc.AttachPaymentIntent(ctx, customer("u1"), "o1", " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// The order left pending between the read and the write.
	_, err = svc.AttachPaymentIntent(ctx, customer("u1"), "o1", "pi_1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}
