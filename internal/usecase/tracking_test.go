package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
	"shop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func trackOrder(status model.OrderStatus) model.Order {
	return model.Order{
		ID:            42,
		UserID:        7,
		AddressID:     3,
		Status:        status,
		PaymentStatus: model.PaymentStatusPaid,
		TotalAmount:   price("35.00"),
		TrackingToken: "tok-abc",
	}
}

func completedLabels(ms []usecase.Milestone) []string {
	var out []string
	for _, m := range ms {
		if m.Completed {
			out = append(out, m.Label)
		}
	}
	return out
}

func TestTrackByToken(t *testing.T) {
	ctx := context.Background()

	newTrackUC := func(status model.OrderStatus) (*usecase.OrderUsecase, *txFixture) {
		f := newTxFixture()
		f.orders.On("FindByTrackingToken", mock.Anything, "tok-abc").Return(trackOrder(status), nil)
		f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
			{ProductID: 1, Quantity: 3, PriceAtPurchase: price("10.00")},
		}, nil)
		return usecase.NewOrderUsecase(f.tx, usecase.NewIdentityResolver()), f
	}

	t.Run("ステータスごとのマイルストーン", func(t *testing.T) {
		cases := []struct {
			status    model.OrderStatus
			completed []string
		}{
			{model.OrderStatusPending, []string{"Placed"}},
			{model.OrderStatusProcessing, []string{"Placed", "Processing"}},
			{model.OrderStatusShipped, []string{"Placed", "Processing", "Shipped"}},
			{model.OrderStatusDelivered, []string{"Placed", "Processing", "Shipped", "Delivered"}},
			{model.OrderStatusReturned, []string{"Placed", "Processing", "Shipped", "Delivered"}},
			//キャンセルは注文した事実だけ残る
			{model.OrderStatusCancelled, []string{"Placed"}},
		}

		for _, tc := range cases {
			t.Run(string(tc.status), func(t *testing.T) {
				uc, f := newTrackUC(tc.status)
				f.addresses.On("FindByID", mock.Anything, int64(3)).Return(model.Address{}, repo.ErrNotFound)

				out, err := uc.TrackByToken(ctx, "tok-abc")
				assert.NoError(t, err)
				assert.Len(t, out.Milestones, 4)
				assert.Equal(t, tc.completed, completedLabels(out.Milestones))
			})
		}
	})

	t.Run("住所が読めたら配送先を添える", func(t *testing.T) {
		uc, f := newTrackUC(model.OrderStatusShipped)
		f.addresses.On("FindByID", mock.Anything, int64(3)).Return(model.Address{
			StreetAddress: "1-2-3 Chiyoda",
			City:          "Tokyo",
			PostalCode:    "100-0001",
			Country:       "JP",
		}, nil)

		out, err := uc.TrackByToken(ctx, "tok-abc")
		assert.NoError(t, err)
		if assert.NotNil(t, out.Address) {
			assert.Equal(t, "Tokyo", out.Address.City)
		}
		assert.Len(t, out.Items, 1)
	})

	t.Run("未知のトークンは404", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewOrderUsecase(f.tx, usecase.NewIdentityResolver())
		f.orders.On("FindByTrackingToken", mock.Anything, "nope").Return(model.Order{}, repo.ErrNotFound)

		_, err := uc.TrackByToken(ctx, "nope")
		assertHTTPStatus(t, err, http.StatusNotFound)
	})

	t.Run("空トークンは404", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewOrderUsecase(f.tx, usecase.NewIdentityResolver())

		_, err := uc.TrackByToken(ctx, "  ")
		assertHTTPStatus(t, err, http.StatusNotFound)
	})
}
