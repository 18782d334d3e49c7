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

func userOwner(id int64) repo.CartOwner {
	return repo.CartOwner{UserID: &id}
}

func guestOwner(gid string) repo.CartOwner {
	return repo.CartOwner{GuestID: &gid}
}

func TestAddToCart(t *testing.T) {
	ctx := context.Background()

	mug := model.Product{ID: 1, Name: "Mug", Price: price("10.00"), Stock: 5, IsActive: true}

	t.Run("正常系: 追加後のカートを返す", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		products.On("FindByID", mock.Anything, int64(1)).Return(mug, nil)
		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{}, nil).Once()
		cartItems.On("UpsertByOwnerAndProduct", mock.Anything, mock.Anything, int64(1), int64(2)).
			Return(model.CartItem{ID: 11, ProductID: 1, Quantity: 2}, nil)
		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{
			{ID: 11, ProductID: 1, Quantity: 2},
		}, nil)

		out, err := uc.AddToCart(ctx, userOwner(7), usecase.AddCartInput{ProductID: 1, Quantity: 2})

		assert.NoError(t, err)
		assert.Equal(t, int64(2), out.TotalItems)
		assert.True(t, out.Total.Equal(price("20.00")))
		cartItems.AssertExpectations(t)
	})

	t.Run("在庫を超える追加は400", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		products.On("FindByID", mock.Anything, int64(1)).Return(mug, nil)
		//既にカートに4個あるので +2 は在庫5を超える
		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{
			{ID: 11, ProductID: 1, Quantity: 4},
		}, nil)

		_, err := uc.AddToCart(ctx, guestOwner("g-1"), usecase.AddCartInput{ProductID: 1, Quantity: 2})

		assertHTTPStatus(t, err, http.StatusBadRequest)
		cartItems.AssertNotCalled(t, "UpsertByOwnerAndProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("非公開商品は400", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		inactive := mug
		inactive.IsActive = false
		products.On("FindByID", mock.Anything, int64(1)).Return(inactive, nil)

		_, err := uc.AddToCart(ctx, userOwner(7), usecase.AddCartInput{ProductID: 1, Quantity: 1})
		assertHTTPStatus(t, err, http.StatusBadRequest)
	})

	t.Run("識別情報が無ければ400", func(t *testing.T) {
		uc := usecase.NewCartUsecase(&CartItemRepoMock{}, &ProductRepoMock{})

		_, err := uc.AddToCart(ctx, repo.CartOwner{}, usecase.AddCartInput{ProductID: 1, Quantity: 1})
		assertHTTPStatus(t, err, http.StatusBadRequest)
	})
}

func TestUpdateCartItem(t *testing.T) {
	ctx := context.Background()

	mug := model.Product{ID: 1, Name: "Mug", Price: price("10.00"), Stock: 5, IsActive: true}

	t.Run("数量変更は所有者チェック込み", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		cartItems.On("FindActiveByID", mock.Anything, int64(11), mock.Anything).
			Return(model.CartItem{ID: 11, ProductID: 1, Quantity: 2}, nil)
		products.On("FindByID", mock.Anything, int64(1)).Return(mug, nil)
		cartItems.On("UpdateQuantity", mock.Anything, int64(11), int64(3)).Return(nil)
		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{
			{ID: 11, ProductID: 1, Quantity: 3},
		}, nil)

		out, err := uc.UpdateCartItem(ctx, userOwner(7), 11, usecase.UpdateCartItemInput{Quantity: 3})
		assert.NoError(t, err)
		assert.Equal(t, int64(3), out.TotalItems)
	})

	t.Run("他人の明細は404", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, &ProductRepoMock{})

		cartItems.On("FindActiveByID", mock.Anything, int64(11), mock.Anything).
			Return(model.CartItem{}, repo.ErrNotFound)

		_, err := uc.UpdateCartItem(ctx, userOwner(8), 11, usecase.UpdateCartItemInput{Quantity: 3})
		assertHTTPStatus(t, err, http.StatusNotFound)
	})

	t.Run("在庫超えの数量は400", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		cartItems.On("FindActiveByID", mock.Anything, int64(11), mock.Anything).
			Return(model.CartItem{ID: 11, ProductID: 1, Quantity: 2}, nil)
		products.On("FindByID", mock.Anything, int64(1)).Return(mug, nil)

		_, err := uc.UpdateCartItem(ctx, userOwner(7), 11, usecase.UpdateCartItemInput{Quantity: 6})
		assertHTTPStatus(t, err, http.StatusBadRequest)
		cartItems.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetCart(t *testing.T) {
	ctx := context.Background()

	t.Run("非公開になった商品は合計から除く", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		products := &ProductRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, products)

		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{
			{ID: 11, ProductID: 1, Quantity: 2},
			{ID: 12, ProductID: 2, Quantity: 1},
		}, nil)
		products.On("FindByID", mock.Anything, int64(1)).
			Return(model.Product{ID: 1, Name: "Mug", Price: price("10.00"), Stock: 5, IsActive: true}, nil)
		products.On("FindByID", mock.Anything, int64(2)).
			Return(model.Product{ID: 2, Name: "Old", Price: price("99.00"), IsActive: false}, nil)

		out, err := uc.GetCart(ctx, guestOwner("g-1"))
		assert.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.True(t, out.Total.Equal(price("20.00")))
	})
}

func TestRemoveCartItem(t *testing.T) {
	ctx := context.Background()

	t.Run("削除はソフト削除", func(t *testing.T) {
		cartItems := &CartItemRepoMock{}
		uc := usecase.NewCartUsecase(cartItems, &ProductRepoMock{})

		cartItems.On("FindActiveByID", mock.Anything, int64(11), mock.Anything).
			Return(model.CartItem{ID: 11, ProductID: 1, Quantity: 2}, nil)
		cartItems.On("Deactivate", mock.Anything, int64(11)).Return(nil)
		cartItems.On("ListActiveByOwner", mock.Anything, mock.Anything).Return([]model.CartItem{}, nil)

		out, err := uc.RemoveCartItem(ctx, userOwner(7), 11)
		assert.NoError(t, err)
		assert.Len(t, out.Items, 0)
		cartItems.AssertExpectations(t)
	})
}
