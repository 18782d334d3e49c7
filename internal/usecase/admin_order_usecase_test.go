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

func TestAdminUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	processingPaid := func() model.Order {
		return model.Order{
			ID:            42,
			UserID:        7,
			Status:        model.OrderStatusProcessing,
			PaymentStatus: model.PaymentStatusPaid,
		}
	}

	t.Run("前進遷移は許可して監査ログを残す", func(t *testing.T) {
		f := newTxFixture()
		audit := &AuditRepoMock{}
		uc := usecase.NewAdminOrderUsecase(f.tx, audit)

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(processingPaid(), nil)
		f.orders.On("UpdateStatus", mock.Anything, int64(42), model.OrderStatusShipped, model.PaymentStatusPaid).Return(nil)
		audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
			return l.ActorUserID == int64(100) &&
				l.Action == model.AuditActionUpdateOrderStatus &&
				l.ResourceID == int64(42)
		})).Return(nil)

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
		assert.NoError(t, err)
		audit.AssertExpectations(t)
	})

	t.Run("後退・飛び越し遷移は400", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewAdminOrderUsecase(f.tx, &AuditRepoMock{})

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(processingPaid(), nil)

		for _, status := range []string{"PENDING", "DELIVERED"} {
			err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: status})
			assertHTTPStatus(t, err, http.StatusBadRequest)
		}
		f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("同じステータスへの更新は何もしないで成功", func(t *testing.T) {
		f := newTxFixture()
		audit := &AuditRepoMock{}
		uc := usecase.NewAdminOrderUsecase(f.tx, audit)

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(processingPaid(), nil)

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "PROCESSING"})
		assert.NoError(t, err)
		f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("CANCELLEDへの遷移は在庫戻し経路を通る", func(t *testing.T) {
		f := newTxFixture()
		audit := &AuditRepoMock{}
		uc := usecase.NewAdminOrderUsecase(f.tx, audit)

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(processingPaid(), nil)
		f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
			{ProductID: 1, Quantity: 3},
		}, nil)
		f.inventory.On("Restore", mock.Anything, map[int64]int64{1: 3}).Return(nil)
		f.orders.On("UpdateStatus", mock.Anything, int64(42), model.OrderStatusCancelled, model.PaymentStatusRefunded).Return(nil)
		audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
			return l.Action == model.AuditActionCancelOrder
		})).Return(nil)

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "CANCELLED"})
		assert.NoError(t, err)
		f.inventory.AssertExpectations(t)
		audit.AssertExpectations(t)
	})

	t.Run("終端状態はDELIVERED→RETURNED以外400", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewAdminOrderUsecase(f.tx, &AuditRepoMock{})

		cancelled := processingPaid()
		cancelled.Status = model.OrderStatusCancelled

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(cancelled, nil)

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "PROCESSING"})
		assertHTTPStatus(t, err, http.StatusBadRequest)
	})

	t.Run("DELIVERED→RETURNEDは許可", func(t *testing.T) {
		f := newTxFixture()
		audit := &AuditRepoMock{}
		uc := usecase.NewAdminOrderUsecase(f.tx, audit)

		delivered := processingPaid()
		delivered.Status = model.OrderStatusDelivered

		f.orders.On("FindByIDForUpdate", mock.Anything, int64(42)).Return(delivered, nil)
		f.orders.On("UpdateStatus", mock.Anything, int64(42), model.OrderStatusReturned, model.PaymentStatusPaid).Return(nil)
		audit.On("Create", mock.Anything, mock.Anything).Return(nil)

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "RETURNED"})
		assert.NoError(t, err)
	})

	t.Run("未知のステータス文字列は400", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewAdminOrderUsecase(f.tx, &AuditRepoMock{})

		err := uc.UpdateStatus(ctx, 100, 42, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPING"})
		assertHTTPStatus(t, err, http.StatusBadRequest)
	})
}

func TestAdminListOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("フィルタをそのままrepoへ渡す", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewAdminOrderUsecase(f.tx, &AuditRepoMock{})

		filter := repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "PROCESSING"}
		f.orders.On("ListAdmin", mock.Anything, filter).Return([]model.Order{
			{ID: 1, UserID: 7, Status: model.OrderStatusProcessing},
		}, int64(1), nil)
		f.items.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.OrderItem{}, nil)

		outs, err := uc.List(ctx, filter)
		assert.NoError(t, err)
		assert.Len(t, outs, 1)
	})

	t.Run("page/limitの検証", func(t *testing.T) {
		f := newTxFixture()
		uc := usecase.NewAdminOrderUsecase(f.tx, &AuditRepoMock{})

		_, err := uc.List(ctx, repo.AdminOrderListFilter{Page: 0, Limit: 20})
		assertHTTPStatus(t, err, http.StatusBadRequest)

		_, err = uc.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 101})
		assertHTTPStatus(t, err, http.StatusBadRequest)
	})
}
